// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidAdminKey = errors.New("invalid admin key")
)

const (
	alphanumeric = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits       = "0123456789"

	// VotingSecretLength is the length of a voting credential secret.
	VotingSecretLength = 8
	// ChallengeCodeLength is the length of a one-time passcode.
	ChallengeCodeLength = 6
)

// GenerateAdminKey creates an HMAC-based operator key for an election
// This is deterministic and verifiable
func GenerateAdminKey(electionID, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(electionID))
	sum := h.Sum(nil)
	// Use URL-safe base64 and trim padding for cleaner keys
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidateAdminKey checks if the provided admin key is valid for the election
func ValidateAdminKey(electionID, adminKey, salt string) error {
	expected := GenerateAdminKey(electionID, salt)
	if !hmac.Equal([]byte(adminKey), []byte(expected)) {
		return ErrInvalidAdminKey
	}
	return nil
}

// GenerateVotingSecret creates a random 8-character alphanumeric secret
func GenerateVotingSecret() (string, error) {
	s, err := randomString(VotingSecretLength, alphanumeric)
	if err != nil {
		return "", fmt.Errorf("failed to generate voting secret: %w", err)
	}
	return s, nil
}

// GenerateChallengeCode creates a random 6-digit passcode
func GenerateChallengeCode() (string, error) {
	s, err := randomString(ChallengeCodeLength, digits)
	if err != nil {
		return "", fmt.Errorf("failed to generate challenge code: %w", err)
	}
	return s, nil
}

// randomString draws n characters uniformly from alphabet using rejection
// sampling so that no character is favoured by the modulo.
func randomString(n int, alphabet string) (string, error) {
	size := len(alphabet)
	limit := 256 - 256%size
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%size])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
