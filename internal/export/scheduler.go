package export

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/portal/internal/model"
	"github.com/alfredjeanlab/portal/internal/store"
)

// Scheduler periodically snapshots the backend's records to one or more
// destinations.
type Scheduler struct {
	store        store.Store
	resources    []*model.Resource
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports the given resources from
// the store to the destinations at the specified interval.
func NewScheduler(s store.Store, resources []*model.Resource, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:        s,
		resources:    resources,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start begins periodic export. It runs an initial export immediately, then
// on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current export (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.Once(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Once(ctx)
		}
	}
}

// Once exports a single snapshot to every destination. Destination
// failures are logged and do not stop the others.
func (s *Scheduler) Once(ctx context.Context) {
	snap, err := FromStore(ctx, s.store, s.resources)
	if err != nil {
		s.logger.Error("export snapshot failed", "err", err)
		return
	}
	p, err := Encode(snap)
	if err != nil {
		s.logger.Error("export encode failed", "err", err)
		return
	}

	failed := 0
	for i, dest := range s.destinations {
		if err := dest.Write(ctx, p); err != nil {
			failed++
			s.logger.Error("export destination write failed", "destination", i, "err", err)
		}
	}

	s.logger.Info("export completed", "destinations", len(s.destinations), "failed", failed, "bytes", len(p.Data))
}
