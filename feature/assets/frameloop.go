package assets

import (
	"context"
	"time"

	"asset-streamer/core/resource"

	"go.uber.org/zap"
)

// FrameLoop is the goroutine owning post-sync work. Every tick it spends at
// most Budget advancing the post-sync queues of all registered managers.
type FrameLoop struct {
	registry *resource.Registry
	interval time.Duration
	budget   time.Duration
	logger   *zap.Logger
}

// NewFrameLoop creates a frame loop over registry.
func NewFrameLoop(registry *resource.Registry, interval, budget time.Duration, logger *zap.Logger) *FrameLoop {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &FrameLoop{registry: registry, interval: interval, budget: budget, logger: logger}
}

// Tick runs one frame and returns the unused budget.
func (f *FrameLoop) Tick() time.Duration {
	return f.registry.PerformAllPostSync(f.budget)
}

// Run ticks until ctx is done.
func (f *FrameLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.logger.Info("Frame loop started",
		zap.Duration("interval", f.interval),
		zap.Duration("budget", f.budget))
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("Frame loop stopped")
			return nil
		case <-ticker.C:
			f.Tick()
		}
	}
}
