package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "conv:"

// BadgerStore persists conversations as JSON. Every write refreshes the
// entry TTL so idle conversations expire on their own.
type BadgerStore struct {
	db           *badger.DB
	ttl          time.Duration
	discardRatio float64
	logger       *logrus.Logger
	now          func() time.Time

	mu sync.Mutex
}

func NewBadgerStore(path string, ttl time.Duration, discardRatio float64, logger *logrus.Logger) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("opening conversation store: %w", err)
	}
	return newBadgerStore(db, ttl, discardRatio, logger), nil
}

func newBadgerStore(db *badger.DB, ttl time.Duration, discardRatio float64, logger *logrus.Logger) *BadgerStore {
	return &BadgerStore{
		db:           db,
		ttl:          ttl,
		discardRatio: discardRatio,
		logger:       logger,
		now:          time.Now,
	}
}

func dbKey(id string) []byte {
	return []byte(keyPrefix + id)
}

func read(txn *badger.Txn, id string) (*Conversation, error) {
	item, err := txn.Get(dbKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var conv Conversation
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &conv)
	})
	if err != nil {
		return nil, fmt.Errorf("decoding conversation %s: %w", id, err)
	}
	if conv.Context == nil {
		conv.Context = map[string]any{}
	}
	return &conv, nil
}

func (s *BadgerStore) Get(_ context.Context, id string) (*Conversation, error) {
	var conv *Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		conv, err = read(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *BadgerStore) update(id string, fn func(*Conversation)) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var conv *Conversation
	err := s.db.Update(func(txn *badger.Txn) error {
		now := s.now()
		var err error
		conv, err = read(txn, id)
		if errors.Is(err, ErrNotFound) {
			conv = newConversation(id, now)
		} else if err != nil {
			return err
		}

		fn(conv)
		conv.UpdatedAt = now

		data, err := json.Marshal(conv)
		if err != nil {
			return fmt.Errorf("encoding conversation %s: %w", id, err)
		}
		return txn.SetEntry(badger.NewEntry(dbKey(id), data).WithTTL(s.ttl))
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *BadgerStore) Append(_ context.Context, id string, turns ...Turn) (*Conversation, error) {
	return s.update(id, func(c *Conversation) {
		c.History = append(c.History, turns...)
	})
}

func (s *BadgerStore) SetContext(_ context.Context, id, key string, value any) error {
	_, err := s.update(id, func(c *Conversation) {
		c.Context[key] = value
	})
	return err
}

func (s *BadgerStore) List(context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), keyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	return ids, nil
}

// Maintain runs value log GC until there is nothing left to rewrite.
// Expired keys are dropped by badger itself during compaction.
func (s *BadgerStore) Maintain(ctx context.Context) error {
	rounds := 0
	for ctx.Err() == nil {
		err := s.db.RunValueLogGC(s.discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			break
		}
		if err != nil {
			return fmt.Errorf("value log gc: %w", err)
		}
		rounds++
	}
	if rounds > 0 {
		s.logger.WithField("rounds", rounds).Debug("conversation store gc finished")
	}
	return ctx.Err()
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
