// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package otp issues and verifies one-time challenge codes.

Codes are 6 digits, live for 10 minutes and allow 5 wrong guesses:

	issuer := otp.NewIssuer(notifier, logger)
	code, err := issuer.Issue(ctx, voterID, "voting_credential")
	res, err := issuer.Verify(ctx, voterID, submitted, "voting_credential")
	if !res.Valid {
		// res.Reason is one of no_challenge, expired, mismatch, too_many_attempts
	}

Issuing a new code for the same identity and purpose replaces the old one.
*/
package otp
