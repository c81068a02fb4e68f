package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Get when no live record exists.
var ErrNotFound = errors.New("session record not found")

// ErrUnavailable wraps every Redis failure other than a miss.
var ErrUnavailable = errors.New("session store unavailable")

// Namespace partitions records so token kinds for one identity never collide.
type Namespace string

const (
	NamespaceRefresh Namespace = "refresh"
	NamespaceReset   Namespace = "reset"
	NamespaceVerify  Namespace = "verify"
	NamespaceOnline  Namespace = "online"
)

// DefaultPrefix is used when NewStore is given an empty prefix.
const DefaultPrefix = "ak"

// consumeIfMatch deletes KEYS[1] only when it holds ARGV[1].
var consumeIfMatchLua = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// swapIfMatch replaces KEYS[1] with ARGV[2] for ARGV[3] ms only when it
// holds ARGV[1].
var swapIfMatchLua = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
  return 1
end
return 0
`)

// Store is a Redis-backed token membership store. It is safe for concurrent use.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore returns a Store writing keys under prefix.
func NewStore(rdb redis.UniversalClient, prefix string) *Store {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{redis: rdb, prefix: prefix}
}

// Key returns the Redis key for (identity, ns).
func (s *Store) Key(identity string, ns Namespace) string {
	return s.prefix + ":" + string(ns) + ":" + identity
}

// Put stores token for (identity, ns) with ttl, replacing any prior record.
func (s *Store) Put(ctx context.Context, identity string, ns Namespace, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("session ttl must be positive")
	}
	if err := s.redis.Set(ctx, s.Key(identity, ns), token, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get returns the live token for (identity, ns) or ErrNotFound.
func (s *Store) Get(ctx context.Context, identity string, ns Namespace) (string, error) {
	token, err := s.redis.Get(ctx, s.Key(identity, ns)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return token, nil
}

// Exists reports whether (identity, ns) has a live record.
func (s *Store) Exists(ctx context.Context, identity string, ns Namespace) (bool, error) {
	n, err := s.redis.Exists(ctx, s.Key(identity, ns)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n == 1, nil
}

// Delete removes the record for (identity, ns). Deleting an absent record
// is not an error.
func (s *Store) Delete(ctx context.Context, identity string, ns Namespace) error {
	if err := s.redis.Del(ctx, s.Key(identity, ns)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// DeleteAll removes the records for identity in every given namespace with
// one DEL.
func (s *Store) DeleteAll(ctx context.Context, identity string, namespaces ...Namespace) error {
	if len(namespaces) == 0 {
		return nil
	}
	keys := make([]string, 0, len(namespaces))
	for _, ns := range namespaces {
		keys = append(keys, s.Key(identity, ns))
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ConsumeIfMatch atomically deletes the record for (identity, ns) when it
// holds token. It reports whether the record was consumed, which makes a
// single-use token redeemable at most once under concurrency.
func (s *Store) ConsumeIfMatch(ctx context.Context, identity string, ns Namespace, token string) (bool, error) {
	n, err := consumeIfMatchLua.Run(ctx, s.redis, []string{s.Key(identity, ns)}, token).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n == 1, nil
}

// SwapIfMatch atomically replaces current with next for (identity, ns) and
// resets the expiry to ttl. It reports false when the stored value is not
// current.
func (s *Store) SwapIfMatch(ctx context.Context, identity string, ns Namespace, current, next string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errors.New("session ttl must be positive")
	}
	n, err := swapIfMatchLua.Run(ctx, s.redis, []string{s.Key(identity, ns)}, current, next, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n == 1, nil
}

// TTL returns the remaining lifetime of the record, or ErrNotFound.
func (s *Store) TTL(ctx context.Context, identity string, ns Namespace) (time.Duration, error) {
	ttl, err := s.redis.PTTL(ctx, s.Key(identity, ns)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl < 0 {
		return 0, ErrNotFound
	}
	return ttl, nil
}

// Ping checks connectivity to Redis.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
