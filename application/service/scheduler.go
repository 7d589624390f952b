package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/embedq/embedq/domain/store"
	"github.com/embedq/embedq/domain/vectorizer"
	"golang.org/x/sync/errgroup"
)

// Scheduler drives the periodic workers: on each poll it finds enabled
// vectorizers whose interval has elapsed and runs their ticks with bounded
// concurrency.
type Scheduler struct {
	vectorizers vectorizer.Store
	worker      *Worker
	logger      *slog.Logger
	poll        time.Duration
	concurrency int

	// nextDue tracks per-vectorizer deadlines between polls.
	nextDue map[int64]time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewScheduler creates a Scheduler. poll is how often due vectorizers are
// checked; concurrency bounds simultaneous ticks.
func NewScheduler(vectorizers vectorizer.Store, worker *Worker, poll time.Duration, concurrency int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if poll <= 0 {
		poll = 5 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Scheduler{
		vectorizers: vectorizers,
		worker:      worker,
		logger:      logger,
		poll:        poll,
		concurrency: concurrency,
		nextDue:     make(map[int64]time.Time),
	}
}

// Start begins scheduling in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()

	s.logger.Info("scheduler started", slog.Duration("poll", s.poll), slog.Int("concurrency", s.concurrency))
}

// Stop cancels the background goroutine and waits for in-flight ticks.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	s.pass(ctx)

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pass(ctx)
		}
	}
}

// pass runs the ticks that are due.
func (s *Scheduler) pass(ctx context.Context) {
	enabled, err := s.vectorizers.Find(ctx, store.WithEnabled(true))
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("scheduler failed to list vectorizers", slog.String("error", err.Error()))
		return
	}

	now := time.Now()
	due := make([]vectorizer.Vectorizer, 0, len(enabled))
	seen := make(map[int64]bool, len(enabled))

	for _, v := range enabled {
		seen[v.ID()] = true

		interval, ok := v.Config().ScheduleInterval()
		if !ok {
			// Manual-only vectorizer; change capture still queues work.
			continue
		}
		if deadline, tracked := s.nextDue[v.ID()]; tracked && now.Before(deadline) {
			continue
		}
		s.nextDue[v.ID()] = now.Add(interval)
		due = append(due, v)
	}

	// Forget vectorizers that were removed or disabled since last pass, so
	// re-enabling starts fresh.
	for id := range s.nextDue {
		if !seen[id] {
			delete(s.nextDue, id)
		}
	}

	if len(due) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, v := range due {
		g.Go(func() error {
			if _, err := s.worker.Tick(gctx, v); err != nil && gctx.Err() == nil {
				s.logger.Warn("tick failed",
					slog.Int64("vectorizer", v.ID()),
					slog.String("name", v.Name()),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}
