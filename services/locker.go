package services

import "context"

// Locker serialises ledger updates for one user. Unlock must be called once the update is written.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// NoopLocker grants every lock immediately. Concurrent ledger writes for one user may then lose updates.
type NoopLocker struct{}

func (NoopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

func ledgerKey(userID string) string {
	return "posturemon:ledger:" + userID
}
