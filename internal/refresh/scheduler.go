package refresh

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/snapfresh/snapfresh/internal/metrics"
)

// Mode selects between a single pass and a continuous loop.
type Mode string

// Scheduler modes.
const (
	ModeOnce       Mode = "once"
	ModeContinuous Mode = "continuous"
)

// ParseMode validates a mode string from the CLI.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeOnce, ModeContinuous:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, ModeOnce, ModeContinuous)
	}
}

// ErrPartialFailure marks a completed pass in which some entries failed.
// Callers map it to a distinct exit status so misconfiguration and
// data-quality problems stay distinguishable.
var ErrPartialFailure = errors.New("cycle completed with per-entry failures")

// Scheduler orchestrates refresh cycles for one domain and owns the
// cooperative shutdown contract: the context is observed between cycles
// and, through the Runner, between batches, never mid-probe.
type Scheduler struct {
	runner    *Runner
	store     CatalogStore
	publisher Publisher
	stats     *Aggregator
	clock     Clock
	sleep     Sleeper
	topic     string
	logger    *zap.Logger
}

// NewScheduler constructs a Scheduler. publisher may be nil, in which
// case reports are not fanned out. topic names the publish destination.
func NewScheduler(
	runner *Runner,
	store CatalogStore,
	publisher Publisher,
	stats *Aggregator,
	clock Clock,
	sleep Sleeper,
	topic string,
	logger *zap.Logger,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		runner:    runner,
		store:     store,
		publisher: publisher,
		stats:     stats,
		clock:     clock,
		sleep:     sleep,
		topic:     topic,
		logger:    logger,
	}
}

// Run executes cycles until the mode or the context says stop.
// In once mode the error reflects the single pass: nil for a clean
// pass, ErrPartialFailure when entries failed, or the load/persist
// error. In continuous mode cycle errors are logged and the next cycle
// is still attempted; Run returns nil once shutdown is requested.
func (s *Scheduler) Run(ctx context.Context, cfg DomainConfig, mode Mode) error {
	log := s.logger.With(zap.String("domain", cfg.Name), zap.String("mode", string(mode)))

	if mode == ModeOnce {
		return s.runCycle(ctx, cfg, log)
	}

	for {
		if ctx.Err() != nil {
			log.Info("shutdown requested, scheduler terminating")
			return nil
		}
		start := s.clock.Now()
		if err := s.runCycle(ctx, cfg, log); err != nil && !errors.Is(err, ErrPartialFailure) {
			log.Error("cycle failed", zap.Error(err))
		}

		// Cadence is start-to-start and best-effort: a slow cycle is
		// followed immediately, never queued.
		remaining := cfg.RefreshInterval() - s.clock.Now().Sub(start)
		if remaining <= 0 {
			continue
		}
		log.Debug("sleeping until next cycle", zap.Duration("remaining", remaining))
		if err := s.sleep.Sleep(ctx, remaining); err != nil {
			log.Info("shutdown requested during sleep, scheduler terminating")
			return nil
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context, cfg DomainConfig, log *zap.Logger) error {
	entries, err := s.store.Load(ctx, cfg.SourcePath)
	if err != nil {
		metrics.ObserveCycle(cfg.Name, "load_failed")
		return fmt.Errorf("load catalog %s: %w", cfg.SourcePath, err)
	}
	log.Info("cycle starting", zap.Int("entries", len(entries)))

	updated, report := s.runner.Run(ctx, cfg, entries)

	if err := s.store.Save(ctx, cfg.OutputPath, updated); err != nil {
		// The previous output file is intact; report the cycle as
		// failed and let the caller decide whether to keep looping.
		report.PersistError = err.Error()
		s.finalize(ctx, report, log)
		return fmt.Errorf("persist catalog %s: %w", cfg.OutputPath, err)
	}

	s.finalize(ctx, report, log)
	if report.Failed() > 0 {
		return fmt.Errorf("%d of %d entries failed: %w", report.Failed(), report.Total, ErrPartialFailure)
	}
	return nil
}

// finalize hands the immutable report to the aggregator, metrics, and
// the optional publisher.
func (s *Scheduler) finalize(ctx context.Context, report CycleReport, log *zap.Logger) {
	s.stats.Record(report)
	metrics.ObserveCycle(report.Domain, report.Outcome())

	if s.publisher == nil || s.topic == "" {
		return
	}
	if _, err := s.publisher.Publish(context.WithoutCancel(ctx), s.topic, report); err != nil {
		log.Warn("cycle report publish failed", zap.Error(err))
	}
}
