package conversation

import (
	"context"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/bluele/gcache"
	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danpilch/tripdesk/internal/config"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func inMemoryBadger(t *testing.T) *BadgerStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	s := newBadgerStore(db, time.Hour, 0.5, testLogger())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(10, time.Hour),
		"badger": inMemoryBadger(t),
	}
}

func TestStoreAppendCreatesOnFirstReference(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "conv_a")
			assert.ErrorIs(t, err, ErrNotFound)

			conv, err := s.Append(ctx, "conv_a", Turn{Role: RoleUser, Content: "trains from Pune"})
			require.NoError(t, err)
			assert.Equal(t, "conv_a", conv.ID)
			assert.Len(t, conv.History, 1)

			_, err = s.Append(ctx, "conv_a", Turn{Role: RoleAssistant, Content: "Found 3 trains."})
			require.NoError(t, err)

			conv, err = s.Get(ctx, "conv_a")
			require.NoError(t, err)
			require.Len(t, conv.History, 2)
			assert.Equal(t, RoleUser, conv.History[0].Role)
			assert.Equal(t, "Found 3 trains.", conv.History[1].Content)
			assert.False(t, conv.UpdatedAt.Before(conv.CreatedAt))
		})
	}
}

func TestStoreContext(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.SetContext(ctx, "conv_b", "last_listing_url", "https://example.com/list"))
			require.NoError(t, s.SetContext(ctx, "conv_b", "last_kind", "train"))

			conv, err := s.Get(ctx, "conv_b")
			require.NoError(t, err)
			assert.Equal(t, "https://example.com/list", conv.String("last_listing_url"))
			assert.Equal(t, "train", conv.String("last_kind"))
			assert.Empty(t, conv.String("missing"))
			assert.Empty(t, conv.History)
		})
	}
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"conv_2", "conv_1"} {
				_, err := s.Append(ctx, id, Turn{Role: RoleUser, Content: "hi"})
				require.NoError(t, err)
			}
			ids, err := s.List(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"conv_1", "conv_2"}, ids)
			assert.NoError(t, s.Maintain(ctx))
		})
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10, time.Hour)
	conv, err := s.Append(ctx, "conv_c", Turn{Role: RoleUser, Content: "hi"})
	require.NoError(t, err)

	conv.History[0].Content = "changed"
	conv.Context["k"] = "v"

	stored, err := s.Get(ctx, "conv_c")
	require.NoError(t, err)
	assert.Equal(t, "hi", stored.History[0].Content)
	assert.NotContains(t, stored.Context, "k")
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	clock := gcache.NewFakeClock()
	s := newMemoryStore(10, time.Hour, clock)

	_, err := s.Append(ctx, "conv_old", Turn{Role: RoleUser, Content: "hi"})
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)
	_, err = s.Append(ctx, "conv_new", Turn{Role: RoleUser, Content: "hi"})
	require.NoError(t, err)
	clock.Advance(45 * time.Minute)

	assert.Equal(t, 2, s.Len())
	require.NoError(t, s.Maintain(ctx))
	assert.Equal(t, 1, s.Len())

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"conv_new"}, ids)

	_, err = s.Get(ctx, "conv_old")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2, time.Hour)
	for _, id := range []string{"conv_1", "conv_2", "conv_3"} {
		_, err := s.Append(ctx, id, Turn{Role: RoleUser, Content: id})
		require.NoError(t, err)
	}

	_, err := s.Get(ctx, "conv_1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, "conv_3")
	assert.NoError(t, err)
}

func TestNewID(t *testing.T) {
	id := NewID()
	assert.Regexp(t, regexp.MustCompile(`^conv_[0-9a-f]{8}$`), id)
	assert.NotEqual(t, id, NewID())
}

func TestOpen(t *testing.T) {
	cfg := config.Default()
	s, err := Open(cfg, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	cfg.Store.Backend = "badger"
	cfg.Store.Path = t.TempDir()
	s, err = Open(cfg, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, s)
	assert.NoError(t, s.Close())

	cfg.Store.Backend = "redis"
	_, err = Open(cfg, testLogger())
	assert.Error(t, err)
}
