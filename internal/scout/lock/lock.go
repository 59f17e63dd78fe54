// Package lock provides Redis-backed mutual exclusion for scout runs:
// one lock per scope (so two runs never scrape the same region
// concurrently) and one supervisor lock (so only one scheduler process
// drives the nine-phase loop at a time). Built on github.com/redis/go-redis/v9
// and the standard SETNX-plus-TTL distributed-lock idiom.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld means Release or Refresh was called against a lock this
// process no longer holds (expired, or taken by someone else).
var ErrNotHeld = errors.New("lock: not held")

const keyPrefix = "scout:lock:"

// Lock is one acquired region or supervisor lock. The zero value is not
// usable; obtain one via Acquire.
type Lock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// Acquire attempts to take the named lock (typically a scope name like
// "minneapolis-mn" or the literal "supervisor") with the given TTL. Returns
// ok=false (no error) if another holder already has it — callers should
// treat that as "skip this cycle", not a failure.
func Acquire(ctx context.Context, client *redis.Client, name string, ttl time.Duration) (l *Lock, ok bool, err error) {
	key := keyPrefix + name
	token := uuid.NewString()

	set, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("lock: acquire %s: %w", name, err)
	}
	if !set {
		return nil, false, nil
	}
	return &Lock{client: client, key: key, token: token, ttl: ttl}, true, nil
}

// releaseScript deletes the key only if it still holds our token, so a
// lock we lost to expiry (then re-acquired by someone else) isn't deleted
// out from under its new holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// Release gives up the lock, if this process still holds it.
func (l *Lock) Release(ctx context.Context) error {
	res, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("lock: release %s: %w", l.key, err)
	}
	if res == 0 {
		return ErrNotHeld
	}
	return nil
}

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end
`)

// Refresh extends the lock's TTL, for a long-running run that outlives the
// original lease. Call this periodically (e.g. every ttl/3) from the
// caller's own ticker; lock does not run a background refresher itself.
func (l *Lock) Refresh(ctx context.Context) error {
	res, err := refreshScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("lock: refresh %s: %w", l.key, err)
	}
	if res == 0 {
		return ErrNotHeld
	}
	return nil
}
