package otp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type redisTicket struct {
	Payload Payload `json:"payload"`
	Code    string  `json:"code"`
}

// RedisStore backs the OTP registry with Redis so tickets survive process
// restarts and are shared across instances. Expiry is delegated to the key
// TTL, so an expired ticket is indistinguishable from a missing one and
// surfaces as ErrNoTicket.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore with the given code lifetime.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(email string) string {
	return "otp:" + email
}

// Issue stores a fresh code for the email with the store TTL, replacing
// any live ticket.
func (s *RedisStore) Issue(ctx context.Context, email string, payload Payload) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(redisTicket{Payload: payload, Code: code})
	if err != nil {
		return "", fmt.Errorf("failed to marshal OTP ticket: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(email), body, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store OTP ticket: %w", err)
	}
	return code, nil
}

// Verify checks the supplied code against the stored ticket, consuming
// it on a match.
func (s *RedisStore) Verify(ctx context.Context, email, code string) (Payload, error) {
	body, err := s.client.Get(ctx, redisKey(email)).Bytes()
	if err == redis.Nil {
		return Payload{}, ErrNoTicket
	}
	if err != nil {
		return Payload{}, fmt.Errorf("failed to load OTP ticket: %w", err)
	}

	var t redisTicket
	if err := json.Unmarshal(body, &t); err != nil {
		return Payload{}, fmt.Errorf("failed to decode OTP ticket: %w", err)
	}
	if t.Code != code {
		return Payload{}, ErrCodeMismatch
	}
	if err := s.client.Del(ctx, redisKey(email)).Err(); err != nil {
		return Payload{}, fmt.Errorf("failed to consume OTP ticket: %w", err)
	}
	return t.Payload, nil
}

// Evict discards any ticket for the email.
func (s *RedisStore) Evict(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, redisKey(email)).Err(); err != nil {
		return fmt.Errorf("failed to evict OTP ticket: %w", err)
	}
	return nil
}
