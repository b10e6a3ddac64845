package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redrule/reddigen/internal/pkg/cache"
)

const intentTTL = 24 * time.Hour

// PendingPaymentIntent is what the dashboard stashes right before sending a
// user to the hosted checkout. It survives the redirect round-trip so the
// return handler can recover the plan selection even when the provider
// strips query parameters.
type PendingPaymentIntent struct {
	SessionID    string    `json:"session_id"`
	PlanType     string    `json:"plan_type"`
	BillingCycle string    `json:"billing_cycle"`
	CreatedAt    time.Time `json:"created_at"`
}

// IntentStore persists pending checkout intents per user. Load returns
// (nil, nil) when no intent is stored.
type IntentStore interface {
	Save(ctx context.Context, userID uint, intent PendingPaymentIntent) error
	Load(ctx context.Context, userID uint) (*PendingPaymentIntent, error)
	Clear(ctx context.Context, userID uint) error
}

// RedisIntentStore keeps intents in Redis with a bounded lifetime, so stale
// abandoned checkouts age out on their own.
type RedisIntentStore struct{}

// NewRedisIntentStore creates the default intent store.
func NewRedisIntentStore() *RedisIntentStore {
	return &RedisIntentStore{}
}

func intentKey(userID uint) string {
	return fmt.Sprintf("payment:intent:%d", userID)
}

func (s *RedisIntentStore) Save(ctx context.Context, userID uint, intent PendingPaymentIntent) error {
	data, err := json.Marshal(intent)
	if err != nil {
		return err
	}
	return cache.GetClient().Set(ctx, intentKey(userID), data, intentTTL).Err()
}

func (s *RedisIntentStore) Load(ctx context.Context, userID uint) (*PendingPaymentIntent, error) {
	data, err := cache.GetClient().Get(ctx, intentKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var intent PendingPaymentIntent
	if err := json.Unmarshal([]byte(data), &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

func (s *RedisIntentStore) Clear(ctx context.Context, userID uint) error {
	return cache.GetClient().Del(ctx, intentKey(userID)).Err()
}

// MemoryIntentStore is an in-process IntentStore used in tests.
type MemoryIntentStore struct {
	mu      sync.RWMutex
	intents map[uint]PendingPaymentIntent
}

// NewMemoryIntentStore creates an empty in-process store.
func NewMemoryIntentStore() *MemoryIntentStore {
	return &MemoryIntentStore{intents: make(map[uint]PendingPaymentIntent)}
}

func (s *MemoryIntentStore) Save(_ context.Context, userID uint, intent PendingPaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents[userID] = intent
	return nil
}

func (s *MemoryIntentStore) Load(_ context.Context, userID uint) (*PendingPaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	intent, ok := s.intents[userID]
	if !ok {
		return nil, nil
	}
	cp := intent
	return &cp, nil
}

func (s *MemoryIntentStore) Clear(_ context.Context, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.intents, userID)
	return nil
}
