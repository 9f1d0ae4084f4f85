package models

import "time"

// Election status constants
const (
	StatusDraft     = "draft"
	StatusUpcoming  = "upcoming"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusPostponed = "postponed"
)

// Notification kinds
const (
	KindVotingCredential = "voting_credential"
	KindChallengeCode    = "challenge_code"
	KindResultsDeclared  = "results_declared"
)

// PurposeVotingCredential is the challenge purpose that guards credential
// requests.
const PurposeVotingCredential = "voting_credential"

// MaxVoteViews is how many times a voter may look at their own vote.
const MaxVoteViews = 2

// Domain types

type CandidateTally struct {
	CandidateID    string  `json:"candidate_id"`
	VoteCount      int     `json:"vote_count"`
	VotePercentage float64 `json:"vote_percentage"`
}

type ElectionResults struct {
	WinnerCandidateID string     `json:"winner_candidate_id,omitempty"`
	WinnerVotes       int        `json:"winner_votes"`
	WinnerPercentage  float64    `json:"winner_percentage"`
	Tied              bool       `json:"tied"`
	IsDeclared        bool       `json:"is_declared"`
	DeclaredAt        *time.Time `json:"declared_at,omitempty"`
}

type Election struct {
	ID                  string           `json:"id"`
	Title               string           `json:"title"`
	Description         string           `json:"description"`
	Jurisdiction        string           `json:"jurisdiction"`
	Status              string           `json:"status"`
	Archived            bool             `json:"archived"`
	VotingStart         time.Time        `json:"voting_start"`
	VotingEnd           time.Time        `json:"voting_end"`
	ResultDeclarationAt time.Time        `json:"result_declaration_at"`
	Candidates          []CandidateTally `json:"candidates"`
	TotalVoters         int              `json:"total_voters"`
	TotalVotesCast      int              `json:"total_votes_cast"`
	TurnoutPercentage   float64          `json:"turnout_percentage"`
	Results             ElectionResults  `json:"results"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// HasCandidate reports whether candidateID is assigned to the election.
func (e Election) HasCandidate(candidateID string) bool {
	for _, c := range e.Candidates {
		if c.CandidateID == candidateID {
			return true
		}
	}
	return false
}

// CandidateIDs returns the candidate IDs in ballot order.
func (e Election) CandidateIDs() []string {
	ids := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		ids[i] = c.CandidateID
	}
	return ids
}

// Clone returns a copy that shares no slices or pointers with e.
func (e Election) Clone() Election {
	out := e
	out.Candidates = append([]CandidateTally(nil), e.Candidates...)
	if e.Results.DeclaredAt != nil {
		at := *e.Results.DeclaredAt
		out.Results.DeclaredAt = &at
	}
	return out
}

type Vote struct {
	ID           string     `json:"id"`
	ElectionID   string     `json:"election_id"`
	VoterID      string     `json:"-"` // Never expose in JSON
	CandidateID  string     `json:"candidate_id"`
	CastAt       time.Time  `json:"cast_at"`
	ViewCount    int        `json:"view_count"`
	LastViewedAt *time.Time `json:"last_viewed_at,omitempty"`
}

// VotingCredential is a live one-time voting password. It is never
// persisted to durable storage. Attempts is only set on the per-voter
// failure counter the broker keeps next to the credential.
type VotingCredential struct {
	Secret    string
	ExpiresAt time.Time
	Attempts  int
}

type Voter struct {
	ID           string `json:"id"`
	Email        string `json:"-"`
	CardNumber   string `json:"-"`
	Jurisdiction string `json:"jurisdiction"`
}

// ElectionFilter narrows ListElections. Zero value lists every
// non-archived election.
type ElectionFilter struct {
	Statuses        []string
	IncludeArchived bool
}

type Notification struct {
	Recipient string            `json:"recipient" msgpack:"recipient"`
	Kind      string            `json:"kind" msgpack:"kind"`
	Payload   map[string]string `json:"payload" msgpack:"payload"`
}

// Request types

type CreateElectionRequest struct {
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	Jurisdiction        string    `json:"jurisdiction"`
	VotingStart         time.Time `json:"voting_start"`
	VotingEnd           time.Time `json:"voting_end"`
	ResultDeclarationAt time.Time `json:"result_declaration_at"`
	CandidateIDs        []string  `json:"candidate_ids"`
	TotalVoters         int       `json:"total_voters"`
}

// UpdateElectionRequest carries a partial edit; nil fields are left alone.
type UpdateElectionRequest struct {
	Title               *string    `json:"title,omitempty"`
	Description         *string    `json:"description,omitempty"`
	VotingStart         *time.Time `json:"voting_start,omitempty"`
	VotingEnd           *time.Time `json:"voting_end,omitempty"`
	ResultDeclarationAt *time.Time `json:"result_declaration_at,omitempty"`
	CandidateIDs        []string   `json:"candidate_ids,omitempty"`
	TotalVoters         *int       `json:"total_voters,omitempty"`
}

type ChallengeRequest struct {
	Purpose string `json:"purpose"`
}

type CredentialRequest struct {
	Email         string `json:"email"`
	CardNumber    string `json:"card_number"`
	ChallengeCode string `json:"challenge_code,omitempty"`
}

type VerifyCredentialRequest struct {
	Email      string `json:"email"`
	CardNumber string `json:"card_number"`
	Secret     string `json:"secret"`
}

type CastVoteRequest struct {
	CandidateID string `json:"candidate_id"`
}

// Response types

type CreateElectionResponse struct {
	Election Election `json:"election"`
	AdminKey string   `json:"admin_key"`
}

type ChallengeReceipt struct {
	Purpose string `json:"purpose"`
	Sent    bool   `json:"sent"`
}

type CredentialReceipt struct {
	ExpiresAt time.Time `json:"expires_at"`
	Delivered bool      `json:"delivered"`
}

type VerifyCredentialResponse struct {
	CandidateIDs []string  `json:"candidate_ids"`
	BallotUntil  time.Time `json:"ballot_until"`
}

type CastVoteResponse struct {
	VoteID  string `json:"vote_id"`
	Message string `json:"message"`
}

type VoteStatus struct {
	HasVoted       bool       `json:"has_voted"`
	CastAt         *time.Time `json:"cast_at,omitempty"`
	ViewsRemaining int        `json:"views_remaining"`
}

type ViewVoteResponse struct {
	Vote           Vote `json:"vote"`
	ViewsRemaining int  `json:"views_remaining"`
}

type ResultsResponse struct {
	ElectionID        string           `json:"election_id"`
	Candidates        []CandidateTally `json:"candidates"`
	TotalVoters       int              `json:"total_voters"`
	TotalVotesCast    int              `json:"total_votes_cast"`
	TurnoutPercentage float64          `json:"turnout_percentage"`
	Results           ElectionResults  `json:"results"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
