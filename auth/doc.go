// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides operator keys and random secret generation.

# Admin Keys

Admin keys use HMAC-SHA256 to create deterministic, verifiable keys:

	adminKey := auth.GenerateAdminKey(electionID, salt)
	err := auth.ValidateAdminKey(electionID, adminKey, salt)

The key is URL-safe base64 encoded without padding. Since it's deterministic,
the same election ID and salt always produce the same key. This allows
validation without storing the key in the database. Operator routes expect it
in the X-Admin-Key header.

# Voting Secrets

Voting credentials are 8 alphanumeric characters drawn from crypto/rand:

	secret, err := auth.GenerateVotingSecret()

# Challenge Codes

One-time passcodes are 6 decimal digits:

	code, err := auth.GenerateChallengeCode()

Both use rejection sampling so every character is equally likely.
*/
package auth
