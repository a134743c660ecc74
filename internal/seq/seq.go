// Package seq allocates the library's change sequence numbers (USNs).
//
// The host keeps a single counter row in agentRegistry. Every synchronized
// mutation stamps its rows with a fresh value from that counter; an external
// sync protocol uses the stamps to find rows changed since its last pass.
package seq

import (
	"context"
	"errors"

	"github.com/roach88/djmd/internal/store"
)

// RegistryKey identifies the counter row in agentRegistry.
const RegistryKey = "localUpdateCount"

// ErrCounterMissing is wrapped when the counter row does not exist.
var ErrCounterMissing = errors.New("change counter row missing")

// Allocator hands out change sequence numbers.
//
// Next is linearizable across processes: each call returns a unique value,
// strictly greater than every value returned before it.
type Allocator interface {
	Next(ctx context.Context) (int64, error)
}

// Source binds an Allocator to a querier, usually the write transaction
// whose rows the allocated values will stamp.
type Source func(q store.Querier) Allocator

// Bind is the default Source. It returns a Counter running against q.
func Bind(q store.Querier) Allocator {
	return New(q)
}

// Counter is the agentRegistry-backed Allocator. It holds no state of its
// own; the increment and the read are a single UPDATE ... RETURNING.
//
// Bind it to a transaction (New(tx)) when the value stamps rows written in
// that transaction, so a rollback also rolls the increment back.
type Counter struct {
	q store.Querier
}

// New returns a Counter that runs against q.
func New(q store.Querier) *Counter {
	return &Counter{q: q}
}

// Next increments the counter and returns the new value.
func (c *Counter) Next(ctx context.Context) (int64, error) {
	var usn int64
	err := c.q.QueryRowContext(ctx, `
		UPDATE agentRegistry
		SET int_1 = int_1 + 1
		WHERE registry_id = ?
		RETURNING int_1
	`, RegistryKey).Scan(&usn)
	if err != nil {
		return 0, classify("next change sequence", err)
	}
	return usn, nil
}

// Current returns the counter value without incrementing it.
// For diagnostics only: never derive a value to write from it.
func (c *Counter) Current(ctx context.Context) (int64, error) {
	var usn int64
	err := c.q.QueryRowContext(ctx, `
		SELECT int_1 FROM agentRegistry WHERE registry_id = ?
	`, RegistryKey).Scan(&usn)
	if err != nil {
		return 0, classify("read change sequence", err)
	}
	return usn, nil
}

func classify(op string, err error) error {
	err = store.Classify(op, err)
	if store.IsNotFound(err) {
		return store.NewError(store.ErrCodeNotFound, op, ErrCounterMissing)
	}
	return err
}
