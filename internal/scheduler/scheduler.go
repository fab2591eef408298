package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type TaskType int

const (
	TaskStoreMaintenance TaskType = iota
	TaskCachePrune
)

func (t TaskType) String() string {
	switch t {
	case TaskStoreMaintenance:
		return "store_maintenance"
	case TaskCachePrune:
		return "cache_prune"
	default:
		return fmt.Sprintf("task(%d)", int(t))
	}
}

// Maintainer is satisfied by every conversation.Store.
type Maintainer interface {
	Maintain(ctx context.Context) error
}

// CachePruner is satisfied by *scraper.Scraper.
type CachePruner interface {
	PruneCache() int
}

type Task struct {
	Type    TaskType
	LastRun time.Time
	Runs    int
}

type Scheduler struct {
	interval time.Duration
	store    Maintainer
	cache    CachePruner
	logger   *logrus.Logger

	mu     sync.Mutex
	tasks  []Task
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// DefaultInterval replaces a non-positive interval.
const DefaultInterval = 10 * time.Minute

// NewScheduler runs maintenance every interval. store or cache may be nil
// to skip the matching task.
func NewScheduler(interval time.Duration, store Maintainer, cache CachePruner, logger *logrus.Logger) *Scheduler {
	if interval <= 0 {
		logger.WithField("interval", interval.String()).Warn("non-positive maintenance interval, using default")
		interval = DefaultInterval
	}
	s := &Scheduler{
		interval: interval,
		store:    store,
		cache:    cache,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
	if store != nil {
		s.tasks = append(s.tasks, Task{Type: TaskStoreMaintenance})
	}
	if cache != nil {
		s.tasks = append(s.tasks, Task{Type: TaskCachePrune})
	}
	return s
}

func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// Tasks returns a copy of the task list with run counters.
func (s *Scheduler) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Task(nil), s.tasks...)
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.WithFields(logrus.Fields{
		"interval": s.interval.String(),
		"tasks":    len(s.tasks),
	}).Info("maintenance scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped: context cancelled")
			return
		case <-s.stopCh:
			s.logger.Info("scheduler stopped: stop signal received")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for i := range s.tasks {
		s.executeTask(ctx, &s.tasks[i])
		s.tasks[i].LastRun = now
		s.tasks[i].Runs++
	}
}

func (s *Scheduler) executeTask(ctx context.Context, task *Task) {
	s.logger.WithField("type", task.Type).Debug("executing task")

	var err error

	switch task.Type {
	case TaskStoreMaintenance:
		err = s.store.Maintain(ctx)

	case TaskCachePrune:
		remaining := s.cache.PruneCache()
		s.logger.WithField("cached_listings", remaining).Debug("listing cache pruned")
	}

	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"type":  task.Type,
			"error": err,
		}).Error("task execution failed")
	}
}
