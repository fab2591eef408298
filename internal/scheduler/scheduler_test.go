package scheduler

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type countingStore struct {
	calls atomic.Int32
	err   error
}

func (c *countingStore) Maintain(context.Context) error {
	c.calls.Add(1)
	return c.err
}

type countingCache struct {
	calls atomic.Int32
}

func (c *countingCache) PruneCache() int {
	c.calls.Add(1)
	return 0
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestSchedulerRunsTasksUntilStopped(t *testing.T) {
	store := &countingStore{err: errors.New("gc failed")}
	cache := &countingCache{}
	s := NewScheduler(5*time.Millisecond, store, cache, testLogger())

	s.Start(context.Background())
	assert.Eventually(t, func() bool {
		return store.calls.Load() >= 2 && cache.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)
	s.Stop()

	after := store.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, store.calls.Load())

	tasks := s.Tasks()
	assert.Len(t, tasks, 2)
	assert.Equal(t, TaskStoreMaintenance, tasks[0].Type)
	assert.GreaterOrEqual(t, tasks[0].Runs, 2)
	assert.False(t, tasks[1].LastRun.IsZero())
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	cache := &countingCache{}
	s := NewScheduler(5*time.Millisecond, nil, cache, testLogger())
	assert.Len(t, s.Tasks(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestSchedulerNonPositiveIntervalUsesDefault(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		s := NewScheduler(interval, nil, &countingCache{}, testLogger())
		assert.Equal(t, DefaultInterval, s.interval)

		ctx, cancel := context.WithCancel(context.Background())
		assert.NotPanics(t, func() { s.Start(ctx) })
		cancel()
		s.wg.Wait()
	}
}

func TestTaskTypeString(t *testing.T) {
	assert.Equal(t, "store_maintenance", TaskStoreMaintenance.String())
	assert.Equal(t, "cache_prune", TaskCachePrune.String())
	assert.Equal(t, "task(9)", TaskType(9).String())
}
