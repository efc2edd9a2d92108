package models

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"bitbucket.org/mmdatafocus/pos_backend/config"
)

const cartKeyPrefix = "cart:"

// NewCartSessionId issues the session key for a fresh cart.
func NewCartSessionId() string {
	return uuid.NewString()
}

// cartTTL is refreshed on every save, so an abandoned cart expires on
// its own.
const cartTTL = 24 * time.Hour

// CartStore persists carts by session id. Load returns (nil, nil) when
// no cart exists for the session.
type CartStore interface {
	Load(ctx context.Context, sessionId string) (*Cart, error)
	Save(ctx context.Context, cart *Cart) error
	Delete(ctx context.Context, sessionId string) error
}

// RedisCartStore keeps carts in redis under "cart:<session>" with a
// sliding TTL.
type RedisCartStore struct{}

func NewRedisCartStore() *RedisCartStore {
	return &RedisCartStore{}
}

func (s *RedisCartStore) Load(ctx context.Context, sessionId string) (*Cart, error) {
	var cart Cart
	found, err := config.GetRedisObject(cartKeyPrefix+sessionId, &cart)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &cart, nil
}

func (s *RedisCartStore) Save(ctx context.Context, cart *Cart) error {
	return config.SetRedisObject(cartKeyPrefix+cart.SessionId, cart, cartTTL)
}

func (s *RedisCartStore) Delete(ctx context.Context, sessionId string) error {
	return config.DeleteRedisKey(cartKeyPrefix + sessionId)
}

// MemoryCartStore is the in-process fallback used when redis is not
// configured, and in tests.
type MemoryCartStore struct {
	mu    sync.Mutex
	carts map[string]*Cart
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: make(map[string]*Cart)}
}

func (s *MemoryCartStore) Load(ctx context.Context, sessionId string) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[sessionId]
	if !ok {
		return nil, nil
	}
	clone := *cart
	clone.Items = append([]CartItem(nil), cart.Items...)
	return &clone, nil
}

func (s *MemoryCartStore) Save(ctx context.Context, cart *Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *cart
	clone.Items = append([]CartItem(nil), cart.Items...)
	s.carts[cart.SessionId] = &clone
	return nil
}

func (s *MemoryCartStore) Delete(ctx context.Context, sessionId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionId)
	return nil
}

// DefaultCartStore picks redis when connected, memory otherwise.
func DefaultCartStore() CartStore {
	if config.RedisEnabled() {
		return NewRedisCartStore()
	}
	return NewMemoryCartStore()
}
