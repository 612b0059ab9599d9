// Package services holds the session commands, the aggregation views and the
// points ledger. Handlers and background jobs call into it; it never talks HTTP.
package services

import (
	"errors"
	"fmt"

	"github.com/cppla/posturemon/rewards"
	"github.com/cppla/posturemon/store"
)

var (
	ErrInvalidInput    = rewards.ErrInvalidInput
	ErrNotFound        = store.ErrNotFound
	ErrUserNotFound    = errors.New("user not found")
	ErrAlreadyUnlocked = errors.New("badge already unlocked")
	ErrUnknownBadge    = errors.New("invalid badge id")
	ErrSessionEnded    = errors.New("session already ended")
)

func invalid(field string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, field)
}

// storeErr maps store identifier errors onto ErrInvalidInput and wraps the rest with op.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrInvalidID):
		return fmt.Errorf("%w: invalid session_id", ErrInvalidInput)
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
