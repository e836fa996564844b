// Package lock provides per-key mutual exclusion for payment submission.
//
// LocalLocker serialises callers inside one process. RedisLocker extends the
// same guarantee across processes sharing a Redis instance.
//
// # Usage
//
//	release, err := locker.Acquire(ctx, lock.PurchaseKey(userID, bookID))
//	if err != nil {
//		return err // lock.ErrLocked when another submission holds the key
//	}
//	defer release()
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrLocked is returned when the key is already held.
var ErrLocked = errors.New("lock is held")

// Locker acquires an exclusive hold on a key without waiting.
// The returned release func is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// PurchaseKey names the lock guarding payment submission for one (user, book).
func PurchaseKey(userID, bookID uint) string {
	return fmt.Sprintf("purchase:%d:%d", userID, bookID)
}

// LocalLocker is an in-process Locker.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, ErrLocked
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
