// Package userlock serializes ledger-mutating operations per user. Every
// deposit confirmation, swap and withdrawal transition for a given user id
// acquires that user's exclusive lock before its first storage read and
// releases it after the storage transaction resolves. Operations on
// different users proceed fully concurrently.
package userlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"asset-settlement-go/internal/store"

	"golang.org/x/sync/semaphore"
)

const DefaultTimeout = 30 * time.Second

type entry struct {
	sem *semaphore.Weighted
	// refs counts holders plus waiters. The entry is evicted when it drops
	// to zero, keeping the registry bounded by the number of users with
	// in-flight operations.
	refs int
}

// Registry hands out per-user exclusive locks, created lazily on first use.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	timeout time.Duration
}

func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{
		entries: make(map[string]*entry),
		timeout: timeout,
	}
}

// Acquire takes the exclusive lock for userId, waiting up to the registry
// timeout. On success it returns a release function that must be called
// exactly once. On timeout it returns store.ErrLockBusy and the caller holds
// nothing; the same applies when ctx is cancelled while waiting.
func (r *Registry) Acquire(ctx context.Context, userId string) (func(), error) {
	r.mu.Lock()
	e, ok := r.entries[userId]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		r.entries[userId] = e
	}
	e.refs++
	r.mu.Unlock()

	acquireCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := e.sem.Acquire(acquireCtx, 1); err != nil {
		r.unref(userId, e)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("user %s: %w", userId, store.ErrLockBusy)
		}
		return nil, fmt.Errorf("user %s: lock acquisition cancelled: %w", userId, err)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			e.sem.Release(1)
			r.unref(userId, e)
		})
	}
	return release, nil
}

func (r *Registry) unref(userId string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(r.entries, userId)
	}
}

// Len reports how many users currently have an entry. Exposed for tests and
// metrics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
