package service

import (
	"context"
	"log"
	"time"
)

// Prunable is any store that can drop rows older than a cutoff.
type Prunable interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner periodically trims time-series tables (heartbeat history, manual
// commands) to a retention period. It runs as a background goroutine and
// is safe to stop via its context or the Stop method.
//
// A retention of 0 disables pruning entirely.
type Pruner struct {
	targets   map[string]Prunable
	retention time.Duration
	interval  time.Duration
	logger    *log.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

// PrunerConfig holds the parameters for NewPruner.
type PrunerConfig struct {
	// RetentionDays is how many days of history to keep.
	// 0 means keep everything (pruner will not start).
	RetentionDays int

	// IntervalHours is how often the pruner runs. Defaults to 6.
	IntervalHours int
}

// NewPruner creates a pruner over the named targets but does not start it.
// Call Start to begin the background loop.
func NewPruner(targets map[string]Prunable, cfg PrunerConfig, logger *log.Logger) *Pruner {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Pruner{
		targets:   targets,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  interval,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start begins the background pruning loop. It runs an immediate prune on
// startup, then repeats on the configured interval. The loop exits when
// ctx is cancelled or Stop is called.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		p.logger.Printf("retention pruner disabled (retention=0)")
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)

	go p.loop(ctx)

	p.logger.Printf("retention pruner started (retention=%dd, interval=%dh, targets=%d)",
		int(p.retention.Hours()/24), int(p.interval.Hours()), len(p.targets))
}

// Stop signals the pruner to exit and waits for it to finish.
func (p *Pruner) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *Pruner) loop(ctx context.Context) {
	defer close(p.done)

	// Run immediately on startup to clean up any backlog.
	p.prune(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-p.retention)
	for name, target := range p.targets {
		deleted, err := target.PruneOlderThan(ctx, cutoff)
		if err != nil {
			p.logger.Printf("prune %s: %v", name, err)
			continue
		}
		if deleted > 0 {
			p.logger.Printf("prune %s: deleted %d rows older than %s",
				name, deleted, cutoff.Format(time.RFC3339))
		}
	}
}
