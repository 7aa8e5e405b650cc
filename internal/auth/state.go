package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"
)

const (
	// StateTTL bounds how long a user has to complete the provider round trip.
	StateTTL = 10 * time.Minute

	stateKeyPrefix = "oauth:state:"
)

// StateStore keeps OAuth state values in Valkey. Each state is bound to
// one provider and can be consumed once.
type StateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStateStore creates a StateStore backed by the given Valkey client.
func NewStateStore(client *redis.Client) *StateStore {
	return &StateStore{client: client, ttl: StateTTL}
}

// Issue creates a new state for provider.
func (s *StateStore) Issue(ctx context.Context, provider string) (string, error) {
	state := xid.New().String()
	if err := s.client.Set(ctx, stateKeyPrefix+state, provider, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("auth: storing oauth state: %w", err)
	}
	return state, nil
}

// Consume deletes the state and reports whether it was issued for provider.
func (s *StateStore) Consume(ctx context.Context, state, provider string) (bool, error) {
	if state == "" {
		return false, nil
	}
	got, err := s.client.GetDel(ctx, stateKeyPrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("auth: consuming oauth state: %w", err)
	}
	return got == provider, nil
}
