package conversation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/bluele/gcache"
)

// MemoryStore holds conversations in an LRU cache. Each write resets the
// entry's expiry.
type MemoryStore struct {
	mu    sync.Mutex
	cache gcache.Cache
	clock gcache.Clock
}

func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	return newMemoryStore(size, ttl, gcache.NewRealClock())
}

func newMemoryStore(size int, ttl time.Duration, clock gcache.Clock) *MemoryStore {
	return &MemoryStore{
		cache: gcache.New(size).
			LRU().
			Expiration(ttl).
			Clock(clock).
			Build(),
		clock: clock,
	}
}

func (s *MemoryStore) lookup(id string) (*Conversation, error) {
	v, err := s.cache.GetIFPresent(id)
	if errors.Is(err, gcache.KeyNotFoundError) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v.(*Conversation), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return conv.clone(), nil
}

func (s *MemoryStore) update(id string, fn func(*Conversation)) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	conv, err := s.lookup(id)
	if errors.Is(err, ErrNotFound) {
		conv = newConversation(id, now)
	} else if err != nil {
		return nil, err
	} else {
		conv = conv.clone()
	}

	fn(conv)
	conv.UpdatedAt = now
	if err := s.cache.Set(id, conv); err != nil {
		return nil, err
	}
	return conv.clone(), nil
}

func (s *MemoryStore) Append(_ context.Context, id string, turns ...Turn) (*Conversation, error) {
	return s.update(id, func(c *Conversation) {
		c.History = append(c.History, turns...)
	})
}

func (s *MemoryStore) SetContext(_ context.Context, id, key string, value any) error {
	_, err := s.update(id, func(c *Conversation) {
		c.Context[key] = value
	})
	return err
}

func (s *MemoryStore) List(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, k := range s.cache.Keys(false) {
		if _, err := s.cache.GetIFPresent(k); err == nil {
			ids = append(ids, k.(string))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Maintain evicts expired conversations; gcache only drops them on access.
func (s *MemoryStore) Maintain(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range s.cache.Keys(false) {
		_, _ = s.cache.GetIFPresent(k)
	}
	return nil
}

// Len reports the number of stored conversations, expired ones included.
func (s *MemoryStore) Len() int {
	return s.cache.Len(false)
}

func (s *MemoryStore) Close() error {
	s.cache.Purge()
	return nil
}
