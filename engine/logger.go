// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielhkuo/quickly-elect/models"
)

// ResolveLogger guarantees a non-nil logger for engine code paths.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

var passthrough = []error{
	models.ErrNotFound,
	models.ErrInvalidInput,
	models.ErrInvalidState,
	models.ErrConflict,
	models.ErrAlreadyVoted,
	models.ErrVotingClosed,
	models.ErrInvalidCandidate,
	models.ErrViewLimitExceeded,
	models.ErrUnavailable,
}

// storeErr keeps domain errors intact and classifies anything else coming
// out of a store as ErrUnavailable.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range passthrough {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %v", models.ErrUnavailable, op, err)
}
