package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/twofa/internal/twofa/tokenstore"
)

// Sweepable is the maintenance side of a token store.
type Sweepable interface {
	SweepExpired(ctx context.Context) (int, error)
	Stats(ctx context.Context) (tokenstore.Stats, error)
}

// HousekeepingService periodically drops expired temp login and setup
// tokens so abandoned challenges don't sit in the stores until evicted.
type HousekeepingService struct {
	Stores   []Sweepable
	Logger   *slog.Logger
	Interval time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 minute.
func NewHousekeepingService(logger *slog.Logger, interval time.Duration, stores ...Sweepable) *HousekeepingService {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HousekeepingService{
		Stores:   stores,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until the worker has finished any in-progress sweep.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep runs one pass over every store. A failing store doesn't stop the others.
// It returns the number of entries removed.
func (s *HousekeepingService) Sweep(ctx context.Context) int {
	var total int
	for _, st := range s.Stores {
		n, err := st.SweepExpired(ctx)
		if err != nil {
			s.Logger.Error("failed to sweep token store", "error", err)
			continue
		}
		total += n

		stats, err := st.Stats(ctx)
		if err != nil {
			s.Logger.Error("failed to read token store stats", "error", err)
			continue
		}
		s.Logger.Debug("swept token store",
			"store", stats.Name,
			"removed", n,
			"size", stats.Size,
			"capacity", stats.Capacity,
			"evictions", stats.Evictions,
		)
	}
	if total > 0 {
		s.Logger.Info("housekeeping sweep completed", "removed", total)
	}
	return total
}
