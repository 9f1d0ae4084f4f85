// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/quickly-elect/auth"
	"github.com/danielhkuo/quickly-elect/models"
)

const (
	DefaultCredentialTTL     = 24 * time.Hour
	DefaultBallotWindow      = 15 * time.Minute
	DefaultMaxVerifyAttempts = 5
)

// IdentityClaim is what a voter asserts about themselves when asking for,
// or presenting, a voting credential.
type IdentityClaim struct {
	VoterID    string
	ElectionID string
	Email      string
	CardNumber string
}

// CredentialBroker issues single-use voting passwords bound to a
// (voter, election) pair and delivers them through the Notifier. A
// successful verification leaves a short-lived ballot grant that
// BallotCaster consumes when it is wired as the caster's gate.
type CredentialBroker struct {
	Elections ElectionStore
	Votes     VoteLedger
	Voters    VoterDirectory
	Store     CredentialStore
	Notifier  Notifier
	Clock     Clock
	Logger    *slog.Logger

	TTL          time.Duration
	BallotWindow time.Duration
	// MaxAttempts caps failed verifications per (voter, election). The count
	// survives reissued credentials until TTL passes without a failure.
	// Zero means no cap.
	MaxAttempts  int

	// mu makes match-then-delete atomic for a broker instance.
	mu sync.Mutex
}

func credentialKey(voterID, electionID string) string {
	return "credential:" + electionID + ":" + voterID
}

func failuresKey(voterID, electionID string) string {
	return "failures:" + electionID + ":" + voterID
}

func grantKey(voterID, electionID string) string {
	return "ballot:" + electionID + ":" + voterID
}

func (b *CredentialBroker) now() time.Time {
	return resolveClock(b.Clock).Now().UTC()
}

func (b *CredentialBroker) ttl() time.Duration {
	if b.TTL <= 0 {
		return DefaultCredentialTTL
	}
	return b.TTL
}

func (b *CredentialBroker) ballotWindow() time.Duration {
	if b.BallotWindow <= 0 {
		return DefaultBallotWindow
	}
	return b.BallotWindow
}

// CheckEligibility runs the identity and voting window checks that
// RequestCredential applies, without issuing anything. Callers use it to
// reject a claim before spending a one-time challenge on it.
func (b *CredentialBroker) CheckEligibility(ctx context.Context, claim IdentityClaim) error {
	if _, err := b.checkIdentity(ctx, claim); err != nil {
		return err
	}
	_, err := b.openElection(ctx, claim.ElectionID, b.now())
	return err
}

// RequestCredential generates a fresh secret for the claim and sends it to
// the voter's email. The secret is never returned to the caller.
func (b *CredentialBroker) RequestCredential(ctx context.Context, claim IdentityClaim) (models.CredentialReceipt, error) {
	logger := ResolveLogger(b.Logger)
	now := b.now()

	voter, err := b.checkIdentity(ctx, claim)
	if err != nil {
		return models.CredentialReceipt{}, err
	}
	if _, err := b.openElection(ctx, claim.ElectionID, now); err != nil {
		return models.CredentialReceipt{}, err
	}

	if purged := b.Store.Purge(now); purged > 0 {
		logger.Debug("expired credentials purged", "event", "credential_purge", "count", purged)
	}

	secret, err := auth.GenerateVotingSecret()
	if err != nil {
		return models.CredentialReceipt{}, err
	}
	expiresAt := now.Add(b.ttl())

	b.mu.Lock()
	b.Store.Put(credentialKey(claim.VoterID, claim.ElectionID), models.VotingCredential{
		Secret:    secret,
		ExpiresAt: expiresAt,
	})
	b.mu.Unlock()

	receipt := models.CredentialReceipt{ExpiresAt: expiresAt}
	if b.Notifier != nil {
		err := b.Notifier.Send(ctx, models.Notification{
			Recipient: voter.Email,
			Kind:      models.KindVotingCredential,
			Payload: map[string]string{
				"election_id": claim.ElectionID,
				"secret":      secret,
				"expires_at":  expiresAt.Format(time.RFC3339),
				"expires_in":  humanize.RelTime(expiresAt, now, "ago", "from now"),
			},
		})
		if err != nil {
			logger.Warn("voting credential delivery failed",
				"event", "credential_delivery_failed",
				"election_id", claim.ElectionID,
				"voter_id", claim.VoterID,
				"error", err.Error(),
			)
		} else {
			receipt.Delivered = true
		}
	}

	logger.Info("voting credential issued",
		"event", "credential_issued",
		"election_id", claim.ElectionID,
		"voter_id", claim.VoterID,
		"delivered", receipt.Delivered,
	)
	return receipt, nil
}

// VerifyCredential checks the supplied secret. A match consumes the
// credential and returns the ballot; a mismatch leaves it in place until
// it expires or MaxAttempts is reached.
func (b *CredentialBroker) VerifyCredential(ctx context.Context, claim IdentityClaim, secret string) (models.VerifyCredentialResponse, error) {
	logger := ResolveLogger(b.Logger)
	now := b.now()

	if _, err := b.checkIdentity(ctx, claim); err != nil {
		return models.VerifyCredentialResponse{}, err
	}
	election, err := b.openElection(ctx, claim.ElectionID, now)
	if err != nil {
		return models.VerifyCredentialResponse{}, err
	}
	voted, err := b.Votes.HasVoted(ctx, claim.ElectionID, claim.VoterID)
	if err != nil {
		return models.VerifyCredentialResponse{}, storeErr("check vote", err)
	}
	if voted {
		return models.VerifyCredentialResponse{}, models.ErrAlreadyVoted
	}

	if err := b.consume(claim, secret, now); err != nil {
		logger.Warn("voting credential rejected",
			"event", "credential_rejected",
			"election_id", claim.ElectionID,
			"voter_id", claim.VoterID,
			"error", err.Error(),
		)
		return models.VerifyCredentialResponse{}, err
	}

	ballotUntil := now.Add(b.ballotWindow())
	if ballotUntil.After(election.VotingEnd) {
		ballotUntil = election.VotingEnd
	}
	b.mu.Lock()
	b.Store.Put(grantKey(claim.VoterID, claim.ElectionID), models.VotingCredential{ExpiresAt: ballotUntil})
	b.mu.Unlock()

	logger.Info("voting credential verified",
		"event", "credential_verified",
		"election_id", claim.ElectionID,
		"voter_id", claim.VoterID,
	)
	return models.VerifyCredentialResponse{
		CandidateIDs: election.CandidateIDs(),
		BallotUntil:  ballotUntil,
	}, nil
}

func (b *CredentialBroker) consume(claim IdentityClaim, secret string, now time.Time) error {
	key := credentialKey(claim.VoterID, claim.ElectionID)

	b.mu.Lock()
	defer b.mu.Unlock()

	cred, ok := b.Store.Get(key)
	if !ok {
		return models.ErrCredentialNotFound
	}
	if !now.Before(cred.ExpiresAt) {
		b.Store.Delete(key)
		return models.ErrCredentialExpired
	}
	fkey := failuresKey(claim.VoterID, claim.ElectionID)
	if subtle.ConstantTimeCompare([]byte(cred.Secret), []byte(secret)) != 1 {
		failures, _ := b.Store.Get(fkey)
		if !now.Before(failures.ExpiresAt) {
			failures = models.VotingCredential{}
		}
		failures.Attempts++
		failures.ExpiresAt = now.Add(b.ttl())
		b.Store.Put(fkey, failures)
		if b.MaxAttempts > 0 && failures.Attempts >= b.MaxAttempts {
			b.Store.Delete(key)
			return fmt.Errorf("%w: attempt limit reached, request a new credential", models.ErrCredentialMismatch)
		}
		return models.ErrCredentialMismatch
	}
	b.Store.Delete(key)
	b.Store.Delete(fkey)
	return nil
}

// CheckBallotGrant reports whether a successful verification left a grant
// that is still inside its ballot window. An elapsed grant is dropped.
func (b *CredentialBroker) CheckBallotGrant(voterID, electionID string) error {
	key := grantKey(voterID, electionID)
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	grant, ok := b.Store.Get(key)
	if !ok {
		return models.ErrBallotNotAuthorized
	}
	if now.After(grant.ExpiresAt) {
		b.Store.Delete(key)
		return fmt.Errorf("%w: verification window elapsed", models.ErrBallotNotAuthorized)
	}
	return nil
}

// ConsumeBallotGrant spends the grant left by a successful verification.
func (b *CredentialBroker) ConsumeBallotGrant(voterID, electionID string) {
	b.mu.Lock()
	b.Store.Delete(grantKey(voterID, electionID))
	b.mu.Unlock()
}

func (b *CredentialBroker) checkIdentity(ctx context.Context, claim IdentityClaim) (models.Voter, error) {
	if claim.VoterID == "" || claim.ElectionID == "" {
		return models.Voter{}, invalidInput("voter and election are required")
	}
	voter, err := b.Voters.GetVoter(ctx, claim.VoterID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.Voter{}, fmt.Errorf("%w: voter profile not found", models.ErrIdentityMismatch)
		}
		return models.Voter{}, storeErr("get voter", err)
	}
	emailOK := strings.EqualFold(strings.TrimSpace(voter.Email), strings.TrimSpace(claim.Email))
	cardOK := subtle.ConstantTimeCompare(
		[]byte(strings.TrimSpace(voter.CardNumber)),
		[]byte(strings.TrimSpace(claim.CardNumber)),
	) == 1
	if !emailOK || !cardOK {
		return models.Voter{}, models.ErrIdentityMismatch
	}
	return voter, nil
}

func (b *CredentialBroker) openElection(ctx context.Context, electionID string, now time.Time) (models.Election, error) {
	e, err := b.Elections.GetElection(ctx, electionID)
	if err != nil {
		return models.Election{}, storeErr("get election", err)
	}
	if err := models.CheckVotingWindow(e, now); err != nil {
		return models.Election{}, err
	}
	return e, nil
}
