package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/studybot/internal/clock"
)

const (
	redisKeyPrefix = "studybot:session:"

	// maxCommitAttempts bounds WATCH retries when another process wrote
	// the same key between read and write.
	maxCommitAttempts = 8
)

// ErrCommitConflict is returned when a Redis commit lost the optimistic
// race maxCommitAttempts times in a row.
var ErrCommitConflict = errors.New("session commit conflict")

// RedisStore is a Store backed by Redis, for deployments where several
// processes share conversation state.
//
// Commits within one process are serialised by a local identity lock.
// Across processes the key is WATCHed and the write retried on conflict,
// so fn may run more than once for a single Commit and must not have side
// effects beyond computing the next session.
type RedisStore struct {
	client *redis.Client
	clock  clock.Clock
	locks  keyedMutex
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisClock sets the clock used to stamp UpdatedAt.
func WithRedisClock(c clock.Clock) RedisOption {
	return func(s *RedisStore) { s.clock = c }
}

// NewRedisStore returns a store using client. The client lifecycle is
// managed by the caller.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, clock: clock.Real()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func redisKey(id Identity) string {
	return redisKeyPrefix + string(id)
}

// Get implements Store. A missing key is created as the idle session.
func (s *RedisStore) Get(ctx context.Context, id Identity) (Session, error) {
	if err := checkIdentity(id); err != nil {
		return Session{}, err
	}
	key := redisKey(id)

	data, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		return Unmarshal(data)
	}
	if !errors.Is(err, redis.Nil) {
		return Session{}, fmt.Errorf("get session %s: %w", id, err)
	}

	sess := New(id)
	sess.UpdatedAt = s.clock.Now()
	encoded, err := Marshal(sess)
	if err != nil {
		return Session{}, err
	}
	created, err := s.client.SetNX(ctx, key, encoded, 0).Result()
	if err != nil {
		return Session{}, fmt.Errorf("create session %s: %w", id, err)
	}
	if !created {
		// Someone else created it first.
		return s.Get(ctx, id)
	}
	return sess, nil
}

// Commit implements Store.
func (s *RedisStore) Commit(ctx context.Context, id Identity, fn MutateFunc) (Session, error) {
	if err := checkIdentity(id); err != nil {
		return Session{}, err
	}
	unlock := s.locks.lock(id)
	defer unlock()

	key := redisKey(id)
	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		var result Session
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := s.read(ctx, tx, id)
			if err != nil {
				return err
			}
			next, err := apply(id, cur, fn, s.clock.Now())
			if err != nil {
				result = cur
				return err
			}
			encoded, err := Marshal(next)
			if err != nil {
				result = cur
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				return nil
			})
			if err != nil {
				return err
			}
			result = next
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			slog.Debug("session commit conflict, retrying",
				"identity", id,
				"attempt", attempt,
			)
			continue
		}
		return result, err
	}
	return Session{}, fmt.Errorf("commit %s: %w", id, ErrCommitConflict)
}

func (s *RedisStore) read(ctx context.Context, tx *redis.Tx, id Identity) (Session, error) {
	data, err := tx.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		sess := New(id)
		sess.UpdatedAt = s.clock.Now()
		return sess, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session %s: %w", id, err)
	}
	return Unmarshal(data)
}
