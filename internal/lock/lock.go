// Package lock provides per-key mutual exclusion for bulk applies.
//
// A Locker hands out at most one holder per key. LocalLocker works within a
// single process; RedisLocker extends the guarantee across replicas that
// share a Redis instance.
package lock

import (
	"context"

	"github.com/cockroachdb/errors"
)

// ErrLocked is returned by TryLock when the key is already held.
var ErrLocked = errors.New("lock already held")

// Locker acquires a key without waiting. On success the returned function
// releases the key; it is safe to call more than once.
type Locker interface {
	TryLock(ctx context.Context, key string) (release func(), err error)
}
