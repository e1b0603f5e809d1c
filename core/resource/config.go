package resource

import (
	"fmt"
	"strings"
	"time"

	"github.com/docker/go-units"
)

// Config holds configuration for a resource manager.
type Config struct {
	// Async enables the background processor and generation-based collection.
	Async bool `mapstructure:"async" default:"true"`
	// Budget is the cache budget as a human readable size (e.g. 256MiB).
	Budget string `mapstructure:"budget" default:"256MiB"`
	// GenUpdateInterval is how often the worker reclassifies generations.
	GenUpdateInterval time.Duration `mapstructure:"gen_update_interval" default:"250ms"`
	// CollectInterval is how often the worker sweeps for eviction.
	CollectInterval time.Duration `mapstructure:"collect_interval" default:"1s"`
	// IdleSleep is how long the worker waits when the queue is empty.
	IdleSleep time.Duration `mapstructure:"idle_sleep" default:"10ms"`
	// GenerationLifetimes is a comma separated, ascending list of durations.
	// A resource unused for longer than the k-th entry moves to generation k+1.
	GenerationLifetimes string `mapstructure:"generation_lifetimes" default:"3s,10s,20s"`
	// CollectFromGeneration is the hottest generation the collector may evict from.
	CollectFromGeneration int `mapstructure:"collect_from_generation" default:"2"`
	// PurgeColdest unloads every idle resource of the coldest generation on each
	// sweep, even when the cache is under budget.
	PurgeColdest bool `mapstructure:"purge_coldest" default:"false"`
	// MaxOpsPerSecond limits background operation throughput. 0 disables it.
	MaxOpsPerSecond float64 `mapstructure:"max_ops_per_second" default:"0"`
	// PostSyncBudget is the time the frame loop may spend on post-sync work per frame.
	PostSyncBudget time.Duration `mapstructure:"post_sync_budget" default:"4ms"`
	// FrameInterval is the frame loop tick.
	FrameInterval time.Duration `mapstructure:"frame_interval" default:"16ms"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Async:                 true,
		Budget:                "256MiB",
		GenUpdateInterval:     250 * time.Millisecond,
		CollectInterval:       time.Second,
		IdleSleep:             10 * time.Millisecond,
		GenerationLifetimes:   "3s,10s,20s",
		CollectFromGeneration: 2,
		PostSyncBudget:        4 * time.Millisecond,
		FrameInterval:         16 * time.Millisecond,
	}
}

// BudgetBytes parses Budget.
func (c Config) BudgetBytes() (int64, error) {
	if strings.TrimSpace(c.Budget) == "" {
		return 0, fmt.Errorf("cache budget is empty")
	}
	n, err := units.RAMInBytes(c.Budget)
	if err != nil {
		return 0, fmt.Errorf("invalid cache budget %q: %w", c.Budget, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid cache budget %q: negative", c.Budget)
	}
	return n, nil
}

// Lifetimes parses GenerationLifetimes. The result is strictly ascending and
// non-empty; the number of generations is len(result)+1.
func (c Config) Lifetimes() ([]time.Duration, error) {
	parts := strings.Split(c.GenerationLifetimes, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		d, err := time.ParseDuration(p)
		if err != nil {
			return nil, fmt.Errorf("invalid generation lifetime %q: %w", p, err)
		}
		if len(out) > 0 && d <= out[len(out)-1] {
			return nil, fmt.Errorf("generation lifetimes must be ascending: %s after %s", d, out[len(out)-1])
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one generation lifetime is required")
	}
	return out, nil
}

func (c Config) validate() error {
	if c.GenUpdateInterval <= 0 || c.CollectInterval <= 0 {
		return fmt.Errorf("generation update and collect intervals must be positive")
	}
	if c.MaxOpsPerSecond < 0 {
		return fmt.Errorf("max ops per second must not be negative")
	}
	return nil
}
