package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vuonglv2610/storefront/internal/domain"
)

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

type RedisStore struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisStore) Put(ctx context.Context, session *domain.CheckoutSession) (string, error) {
	key := uuid.NewString()
	if err := r.Restore(ctx, key, session); err != nil {
		return "", err
	}
	return key, nil
}

// Restore stages a session under a known key. Used by Put and to hand a
// consumed session back after a failed submission, so retrying the checkout
// does not require redoing cart confirmation.
func (r *RedisStore) Restore(ctx context.Context, key string, session *domain.CheckoutSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	ttl := r.baseTTL + jitter
	if errSet := r.client.Set(ctx, sessionKey(key), payload, ttl).Err(); errSet != nil {
		return fmt.Errorf("redis set failed: %w", errSet)
	}
	return nil
}

// Take consumes the session with GETDEL, so it can be read exactly once.
func (r *RedisStore) Take(ctx context.Context, key string) (*domain.CheckoutSession, error) {
	data, err := r.client.GetDel(ctx, sessionKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis getdel failed: %w", err)
	}

	var session domain.CheckoutSession
	if err2 := json.Unmarshal(data, &session); err2 != nil {
		return nil, fmt.Errorf("unmarshal session failed: %w", err2)
	}
	return &session, nil
}

// Claim marks a gateway callback reference as processed. The first caller
// gets fresh=true; later callers receive the stored result bytes instead,
// so a browser refresh replays the outcome rather than re-verifying.
func (r *RedisStore) Claim(ctx context.Context, ref string) (prev []byte, fresh bool, err error) {
	ok, err := r.client.SetNX(ctx, callbackKey(ref), "", 24*time.Hour).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx failed: %w", err)
	}
	if ok {
		return nil, true, nil
	}
	data, err := r.client.Get(ctx, callbackKey(ref)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return data, false, nil
}

// ReleaseClaim drops an unfinished claim, so a callback whose verification
// could not complete stays verifiable on the next visit.
func (r *RedisStore) ReleaseClaim(ctx context.Context, ref string) error {
	if err := r.client.Del(ctx, callbackKey(ref)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func (r *RedisStore) StoreResult(ctx context.Context, ref string, result []byte) error {
	if err := r.client.Set(ctx, callbackKey(ref), result, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func sessionKey(key string) string {
	return fmt.Sprintf("checkout:session:%s", key)
}

func callbackKey(ref string) string {
	return fmt.Sprintf("checkout:callback:%s", ref)
}
