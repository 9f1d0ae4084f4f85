// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package otp

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/patrickmn/go-cache"

	"github.com/danielhkuo/quickly-elect/auth"
	"github.com/danielhkuo/quickly-elect/engine"
	"github.com/danielhkuo/quickly-elect/models"
)

const (
	DefaultTTL         = 10 * time.Minute
	DefaultMaxAttempts = 5
)

// Verification reasons
const (
	ReasonNoChallenge = "no_challenge"
	ReasonExpired     = "expired"
	ReasonMismatch    = "mismatch"
	ReasonLocked      = "too_many_attempts"
)

type challenge struct {
	code      string
	expiresAt time.Time
	attempts  int
}

// Issuer hands out 6-digit codes bound to an identity and a purpose and
// delivers them through a Notifier. A code is good for one successful
// verification.
type Issuer struct {
	Notifier engine.Notifier
	// Voters, when set, resolves identity to the voter's email for delivery.
	Voters   engine.VoterDirectory
	Clock    engine.Clock
	Logger   *slog.Logger

	TTL         time.Duration
	MaxAttempts int

	mu    sync.Mutex
	codes *cache.Cache
}

func NewIssuer(notifier engine.Notifier, logger *slog.Logger) *Issuer {
	return &Issuer{
		Notifier:    notifier,
		Logger:      logger,
		TTL:         DefaultTTL,
		MaxAttempts: DefaultMaxAttempts,
		codes:       cache.New(cache.NoExpiration, DefaultTTL),
	}
}

func key(identity, purpose string) string {
	return purpose + ":" + identity
}

func (i *Issuer) now() time.Time {
	if i.Clock == nil {
		return time.Now().UTC()
	}
	return i.Clock.Now().UTC()
}

func (i *Issuer) store() *cache.Cache {
	if i.codes == nil {
		i.codes = cache.New(cache.NoExpiration, DefaultTTL)
	}
	return i.codes
}

func (i *Issuer) ttl() time.Duration {
	if i.TTL <= 0 {
		return DefaultTTL
	}
	return i.TTL
}

// Issue replaces any outstanding code for (identity, purpose) and sends the
// new one to identity. The code is also returned for callers that deliver
// it themselves.
func (i *Issuer) Issue(ctx context.Context, identity, purpose string) (string, error) {
	code, err := auth.GenerateChallengeCode()
	if err != nil {
		return "", err
	}
	now := i.now()
	expiresAt := now.Add(i.ttl())

	i.mu.Lock()
	i.store().Set(key(identity, purpose), &challenge{code: code, expiresAt: expiresAt}, i.ttl())
	i.mu.Unlock()

	logger := engine.ResolveLogger(i.Logger)
	if i.Notifier != nil {
		err := i.Notifier.Send(ctx, models.Notification{
			Recipient: i.recipient(ctx, identity),
			Kind:      models.KindChallengeCode,
			Payload: map[string]string{
				"purpose":    purpose,
				"code":       code,
				"expires_at": expiresAt.Format(time.RFC3339),
				"expires_in": humanize.RelTime(expiresAt, now, "ago", "from now"),
			},
		})
		if err != nil {
			logger.Warn("challenge delivery failed",
				"event", "challenge_delivery_failed",
				"purpose", purpose,
				"error", err.Error(),
			)
		}
	}
	logger.Info("challenge issued", "event", "challenge_issued", "purpose", purpose)
	return code, nil
}

func (i *Issuer) recipient(ctx context.Context, identity string) string {
	if i.Voters == nil {
		return identity
	}
	v, err := i.Voters.GetVoter(ctx, identity)
	if err != nil || v.Email == "" {
		return identity
	}
	return v.Email
}

// Verify checks code. A match consumes the challenge; a miss counts toward
// MaxAttempts, after which the challenge is discarded.
func (i *Issuer) Verify(_ context.Context, identity, code, purpose string) (engine.Verification, error) {
	k := key(identity, purpose)
	now := i.now()

	i.mu.Lock()
	defer i.mu.Unlock()

	v, ok := i.store().Get(k)
	if !ok {
		return engine.Verification{Reason: ReasonNoChallenge}, nil
	}
	c := v.(*challenge)
	if !now.Before(c.expiresAt) {
		i.store().Delete(k)
		return engine.Verification{Reason: ReasonExpired}, nil
	}
	if subtle.ConstantTimeCompare([]byte(c.code), []byte(code)) != 1 {
		c.attempts++
		if i.MaxAttempts > 0 && c.attempts >= i.MaxAttempts {
			i.store().Delete(k)
			return engine.Verification{Reason: ReasonLocked}, nil
		}
		return engine.Verification{Reason: ReasonMismatch}, nil
	}
	i.store().Delete(k)
	return engine.Verification{Valid: true}, nil
}

// InvalidateOutstanding drops any live code for (identity, purpose).
func (i *Issuer) InvalidateOutstanding(_ context.Context, identity, purpose string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.store().Delete(key(identity, purpose))
}
