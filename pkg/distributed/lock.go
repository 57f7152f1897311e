package distributed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Unlock when the lock expired or was taken over.
var ErrNotHeld = errors.New("lock not held by this instance")

// Lock is a Redis-backed mutual exclusion primitive for work that must run
// on exactly one instance, such as the backup cycle. It is reusable: each
// successful TryLock starts a renewal goroutine that Unlock stops.
type Lock struct {
	client *redis.Client
	key    string
	ttl    time.Duration

	mu        sync.Mutex
	value     string // identifies the current holder
	stopRenew chan struct{}
}

func NewLock(client *redis.Client, key string, ttl time.Duration) *Lock {
	return &Lock{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

// TryLock attempts to acquire the lock without blocking.
func (l *Lock) TryLock(ctx context.Context) (bool, error) {
	value := randomValue()

	acquired, err := l.client.SetNX(ctx, l.key, value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("try lock %s: %w", l.key, err)
	}
	if !acquired {
		return false, nil
	}

	l.mu.Lock()
	l.value = value
	l.stopRenew = make(chan struct{})
	go l.renew(l.stopRenew, value)
	l.mu.Unlock()

	return true, nil
}

// Unlock releases the lock if this instance still holds it.
func (l *Lock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	value := l.value
	if l.stopRenew != nil {
		close(l.stopRenew)
		l.stopRenew = nil
	}
	l.value = ""
	l.mu.Unlock()

	if value == "" {
		return ErrNotHeld
	}

	// Delete only our own lock value.
	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`
	result, err := l.client.Eval(ctx, script, []string{l.key}, value).Result()
	if err != nil {
		return fmt.Errorf("unlock %s: %w", l.key, err)
	}
	if result.(int64) == 0 {
		return ErrNotHeld
	}
	return nil
}

// IsLocked reports whether any instance currently holds the lock.
func (l *Lock) IsLocked(ctx context.Context) (bool, error) {
	exists, err := l.client.Exists(ctx, l.key).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// renew extends the TTL at half-interval while the lock is held.
func (l *Lock) renew(stop <-chan struct{}, value string) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/2)
			current, err := l.client.Get(ctx, l.key).Result()
			if err != nil || current != value {
				cancel()
				return
			}
			l.client.Expire(ctx, l.key, l.ttl)
			cancel()

		case <-stop:
			return
		}
	}
}

func randomValue() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
