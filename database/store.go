// Package database holds the key-value backends cart records are stored in.
// Every backend speaks the same small byte-oriented contract; which one is
// active is decided once at startup by Open.
package database

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when no record exists for the key.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned by Update when optimistic retries are exhausted.
	ErrConflict = errors.New("concurrent update conflict")
)

// MaxUpdateRetries bounds optimistic retries inside Updater implementations.
const MaxUpdateRetries = 16

// KeyValueStore is the capability the cart store needs from a backend.
// Implementations must be safe for concurrent use.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
	Close() error
}

// UpdateFunc receives the current record (found=false when absent) and returns
// the record to write back.
type UpdateFunc func(current []byte, found bool) ([]byte, error)

// Updater is implemented by backends that can run a read-modify-write on one
// key atomically, so concurrent updates of the same key are never lost.
type Updater interface {
	Update(ctx context.Context, key string, fn UpdateFunc) error
}
