// Package ident allocates random numeric row identifiers that are unused
// in a target table.
//
// The host schema keys playlists (and other tables) by random 32-bit
// values stored as text. Values below ReservedBelow are reserved for
// host-defined rows and are never returned.
//
// Allocation is check-then-use: the value is unused when Next returns, but
// another writer may claim it before the caller inserts. Run Next on the
// same write transaction as the insert (see store.Store.WithTx), or treat a
// store.ErrCodeConflict from the insert as a signal to allocate again.
package ident

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/roach88/djmd/internal/store"
)

const (
	// ReservedBelow is the smallest identifier Next may return.
	ReservedBelow = 100

	// DefaultMaxAttempts bounds the number of candidates drawn per call.
	DefaultMaxAttempts = 64
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Allocator draws identifiers from a cryptographically strong source.
type Allocator struct {
	q           store.Querier
	rand        io.Reader
	maxAttempts int
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithMaxAttempts overrides DefaultMaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithRand replaces crypto/rand as the candidate source. Used for testing.
func WithRand(r io.Reader) Option {
	return func(a *Allocator) {
		a.rand = r
	}
}

// New returns an Allocator that checks candidates against q.
func New(q store.Querier, opts ...Option) *Allocator {
	a := &Allocator{q: q, rand: rand.Reader, maxAttempts: DefaultMaxAttempts}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Next returns an identifier not present in table's ID column.
//
// Draws below ReservedBelow and draws already in use both count as
// attempts; once maxAttempts candidates have been rejected Next fails with
// store.ErrCodeAllocationExhausted instead of looping.
func (a *Allocator) Next(ctx context.Context, table string) (uint32, error) {
	if !tableName.MatchString(table) {
		return 0, store.NewError(store.ErrCodeConfiguration, "allocate identifier",
			fmt.Errorf("invalid table name %q", table))
	}
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE ID = ?)", table)

	var buf [4]byte
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		if _, err := io.ReadFull(a.rand, buf[:]); err != nil {
			return 0, store.NewError(store.ErrCodeUnavailable, "allocate identifier",
				fmt.Errorf("read random source: %w", err))
		}
		id := binary.BigEndian.Uint32(buf[:])
		if id < ReservedBelow {
			continue
		}

		var used bool
		if err := a.q.QueryRowContext(ctx, query, strconv.FormatUint(uint64(id), 10)).Scan(&used); err != nil {
			return 0, store.Classify("allocate identifier", err)
		}
		if !used {
			return id, nil
		}
	}

	return 0, store.NewError(store.ErrCodeAllocationExhausted, "allocate identifier",
		fmt.Errorf("no free identifier in %s after %d attempts", table, a.maxAttempts))
}

// NextString is Next formatted the way the host stores identifiers.
func (a *Allocator) NextString(ctx context.Context, table string) (string, error) {
	id, err := a.Next(ctx, table)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(uint64(id), 10), nil
}
