// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/quickly-elect/cliparse"
	"github.com/danielhkuo/quickly-elect/db"
	"github.com/danielhkuo/quickly-elect/models"
)

// SetupTestDB creates a fresh SQLite database with the full schema in a
// temporary directory. It is closed when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	conn, err := db.Open(context.Background(), db.TypeSQLite, dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:              3318,
		DatabaseType:      cliparse.DatabaseMemory,
		AdminKeySalt:      "test-admin-salt",
		SweepInterval:     time.Minute,
		CredentialTTL:     24 * time.Hour,
		BallotWindow:      15 * time.Minute,
		MaxVerifyAttempts: 5,
	}
}

// TestElection returns an election open for voting around now, with
// candidates "1" and "2" and ten eligible voters in district-1.
func TestElection(id, status string, now time.Time) models.Election {
	now = now.UTC()
	return models.Election{
		ID:                  id,
		Title:               "Test Election " + id,
		Description:         "A test election",
		Jurisdiction:        "district-1",
		Status:              status,
		VotingStart:         now.Add(-time.Hour),
		VotingEnd:           now.Add(time.Hour),
		ResultDeclarationAt: now.Add(2 * time.Hour),
		Candidates: []models.CandidateTally{
			{CandidateID: "1"},
			{CandidateID: "2"},
		},
		TotalVoters: 10,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TestVoter returns a voter in district-1 whose email and card number are
// derived from id.
func TestVoter(id string) models.Voter {
	return models.Voter{
		ID:           id,
		Email:        id + "@example.com",
		CardNumber:   "CARD-" + id,
		Jurisdiction: "district-1",
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
