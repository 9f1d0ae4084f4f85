// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/quickly-elect/auth"
	"github.com/danielhkuo/quickly-elect/cliparse"
	"github.com/danielhkuo/quickly-elect/memstore"
	"github.com/danielhkuo/quickly-elect/models"
	"github.com/danielhkuo/quickly-elect/testutil"
)

var t0 = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = at
}

// outbox records every notification so tests can read codes and secrets.
type outbox struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (o *outbox) Send(_ context.Context, n models.Notification) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, n)
	return nil
}

// latest returns the payload value of the newest notification of kind sent
// to recipient.
func (o *outbox) latest(t *testing.T, kind, recipient, key string) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.sent) - 1; i >= 0; i-- {
		n := o.sent[i]
		if n.Kind == kind && n.Recipient == recipient {
			return n.Payload[key]
		}
	}
	t.Fatalf("no %s notification for %s", kind, recipient)
	return ""
}

func (o *outbox) count(kind string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, msg := range o.sent {
		if msg.Kind == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	svc   Services
	store *memstore.Store
	clock *fakeClock
	box   *outbox
	cfg   cliparse.Config

	elections *ElectionHandler
	voting    *VotingHandler
	results   *ResultsHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, testutil.GetTestConfig())
}

func newFixtureWithConfig(t *testing.T, cfg cliparse.Config) *fixture {
	t.Helper()
	store := memstore.New()
	clock := &fakeClock{now: t0}
	box := &outbox{}
	svc := NewServices(store, box, cfg, clock, slog.New(slog.NewTextHandler(io.Discard, nil)))

	return &fixture{
		svc:       svc,
		store:     store,
		clock:     clock,
		box:       box,
		cfg:       cfg,
		elections: NewElectionHandler(svc, cfg),
		voting:    NewVotingHandler(svc, cfg),
		results:   NewResultsHandler(svc, cfg),
	}
}

// call runs fn against a request built from the arguments. pathValues are
// name/value pairs as the router would set them.
func call(fn http.HandlerFunc, method, path string, body interface{}, headers map[string]string, pathValues ...string) *httptest.ResponseRecorder {
	req := testutil.MakeRequest(method, path, body, headers)
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	w := httptest.NewRecorder()
	fn(w, req)
	return w
}

func adminHeaders(key string) map[string]string {
	return map[string]string{"X-Admin-Key": key}
}

func voterHeaders(voterID string) map[string]string {
	return map[string]string{"X-Voter-ID": voterID}
}

// createRequest opens an hour before t0 and closes an hour after.
func createRequest() models.CreateElectionRequest {
	return models.CreateElectionRequest{
		Title:               "School board",
		Jurisdiction:        "district-1",
		VotingStart:         t0.Add(-time.Hour),
		VotingEnd:           t0.Add(time.Hour),
		ResultDeclarationAt: t0.Add(2 * time.Hour),
		CandidateIDs:        []string{"1", "2"},
		TotalVoters:         10,
	}
}

func (f *fixture) createElection(t *testing.T, req models.CreateElectionRequest) (models.Election, string) {
	t.Helper()
	w := call(f.elections.CreateElection, "POST", "/elections", req, nil)
	testutil.AssertStatus(t, w, http.StatusCreated)
	var resp models.CreateElectionResponse
	testutil.AssertJSON(t, w, &resp)
	return resp.Election, resp.AdminKey
}

// openElection creates, publishes and starts an election.
func (f *fixture) openElection(t *testing.T) (string, string) {
	t.Helper()
	e, adminKey := f.createElection(t, createRequest())
	for _, op := range []http.HandlerFunc{f.elections.PublishElection, f.elections.StartElection} {
		w := call(op, "POST", "/elections/"+e.ID, nil, adminHeaders(adminKey), "id", e.ID)
		testutil.AssertStatus(t, w, http.StatusOK)
	}
	return e.ID, adminKey
}

func (f *fixture) addVoter(t *testing.T, id string) models.Voter {
	t.Helper()
	v := testutil.TestVoter(id)
	f.store.PutVoter(v)
	return v
}

// authorize runs challenge, credential request and verification so the
// voter holds a ballot grant for electionID.
func (f *fixture) authorize(t *testing.T, voterID, electionID string) {
	t.Helper()
	v := testutil.TestVoter(voterID)

	w := call(f.voting.IssueChallenge, "POST", "/voters/"+voterID+"/challenge",
		models.ChallengeRequest{Purpose: models.PurposeVotingCredential}, voterHeaders(voterID), "voterId", voterID)
	testutil.AssertStatus(t, w, http.StatusAccepted)
	code := f.box.latest(t, models.KindChallengeCode, v.Email, "code")

	w = call(f.voting.RequestCredential, "POST", "/elections/"+electionID+"/credential",
		models.CredentialRequest{Email: v.Email, CardNumber: v.CardNumber, ChallengeCode: code},
		voterHeaders(voterID), "id", electionID)
	testutil.AssertStatus(t, w, http.StatusAccepted)
	secret := f.box.latest(t, models.KindVotingCredential, v.Email, "secret")

	w = call(f.voting.VerifyCredential, "POST", "/elections/"+electionID+"/credential/verify",
		models.VerifyCredentialRequest{Email: v.Email, CardNumber: v.CardNumber, Secret: secret},
		voterHeaders(voterID), "id", electionID)
	testutil.AssertStatus(t, w, http.StatusOK)
}

func (f *fixture) castVote(voterID, electionID, candidateID string) *httptest.ResponseRecorder {
	return call(f.voting.CastVote, "POST", "/elections/"+electionID+"/votes",
		models.CastVoteRequest{CandidateID: candidateID}, voterHeaders(voterID), "id", electionID)
}

func assertCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	testutil.AssertStatus(t, w, status)
	var resp models.ErrorResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Code != code {
		t.Errorf("Expected code %q, got %q (%s)", code, resp.Code, resp.Message)
	}
}

func validAdminKey(id string) string {
	return auth.GenerateAdminKey(id, testutil.GetTestConfig().AdminKeySalt)
}
