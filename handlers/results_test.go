// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/quickly-elect/models"
	"github.com/danielhkuo/quickly-elect/testutil"
)

func TestGetResults(t *testing.T) {
	f := newFixture(t)
	electionID, adminKey := f.openElection(t)

	votes := map[string]string{"alice": "1", "bob": "2", "carol": "2"}
	for voter, candidate := range votes {
		f.addVoter(t, voter)
		f.authorize(t, voter, electionID)
		testutil.AssertStatus(t, f.castVote(voter, electionID, candidate), http.StatusCreated)
	}

	getResults := func() *httptest.ResponseRecorder {
		return call(f.results.GetResults, "GET", "/elections/"+electionID+"/results", nil, nil, "id", electionID)
	}

	t.Run("sealed while voting", func(t *testing.T) {
		assertCode(t, getResults(), http.StatusConflict, "invalid_state")
	})

	t.Run("missing election", func(t *testing.T) {
		w := call(f.results.GetResults, "GET", "/elections/ghost/results", nil, nil, "id", "ghost")
		assertCode(t, w, http.StatusNotFound, "not_found")
	})

	f.clock.Set(t0.Add(90 * time.Minute))
	w := call(f.elections.DeclareResults, "POST", "/", nil, adminHeaders(adminKey), "id", electionID)
	testutil.AssertStatus(t, w, http.StatusOK)

	t.Run("visible after declaration", func(t *testing.T) {
		w := getResults()
		testutil.AssertStatus(t, w, http.StatusOK)

		var resp models.ResultsResponse
		testutil.AssertJSON(t, w, &resp)
		if !resp.Results.IsDeclared || resp.Results.DeclaredAt == nil {
			t.Fatalf("Expected declared results, got %+v", resp.Results)
		}
		if resp.Results.WinnerCandidateID != "2" || resp.Results.WinnerVotes != 2 || resp.Results.WinnerPercentage != 66.67 {
			t.Errorf("Unexpected winner: %+v", resp.Results)
		}
		if resp.Results.Tied {
			t.Error("Expected no tie")
		}
		if resp.TotalVotesCast != 3 || resp.TurnoutPercentage != 30 {
			t.Errorf("Expected 3 votes and 30%% turnout, got %d and %v", resp.TotalVotesCast, resp.TurnoutPercentage)
		}
		if resp.Candidates[0].VotePercentage != 33.33 {
			t.Errorf("Expected 33.33%% for candidate 1, got %v", resp.Candidates[0].VotePercentage)
		}
	})

	t.Run("declaring again is a no-op", func(t *testing.T) {
		before := f.box.count(models.KindResultsDeclared)
		w := call(f.elections.DeclareResults, "POST", "/", nil, adminHeaders(adminKey), "id", electionID)
		testutil.AssertStatus(t, w, http.StatusOK)
		if after := f.box.count(models.KindResultsDeclared); after != before {
			t.Errorf("Expected no new notifications, got %d more", after-before)
		}
	})
}

func TestGetResultsNoVotes(t *testing.T) {
	f := newFixture(t)
	electionID, adminKey := f.openElection(t)

	f.clock.Set(t0.Add(90 * time.Minute))
	w := call(f.elections.DeclareResults, "POST", "/", nil, adminHeaders(adminKey), "id", electionID)
	testutil.AssertStatus(t, w, http.StatusOK)

	w = call(f.results.GetResults, "GET", "/", nil, nil, "id", electionID)
	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.ResultsResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Results.WinnerCandidateID != "" || resp.TotalVotesCast != 0 {
		t.Errorf("Expected no winner, got %+v", resp.Results)
	}
}
