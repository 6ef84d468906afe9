package refresh

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/snapfresh/snapfresh/internal/metrics"
)

// Runner executes one full refresh pass over a domain's catalog.
// Entries are processed in catalog order, in batches of the domain's
// batch size; within a batch up to batch-size entries are probed
// concurrently. The prober's connection pool is shared across the pass.
type Runner struct {
	prober Prober
	policy RetryPolicy
	clock  Clock
	sleep  Sleeper
	logger *zap.Logger
}

// NewRunner constructs a Runner.
func NewRunner(prober Prober, policy RetryPolicy, clock Clock, sleep Sleeper, logger *zap.Logger) *Runner {
	metrics.Init()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		prober: prober,
		policy: policy,
		clock:  clock,
		sleep:  sleep,
		logger: logger,
	}
}

// entryResult pairs an updated entry with the probe latencies observed
// while refreshing it. Results are written into a position-indexed
// slice, so workers never share state.
type entryResult struct {
	entry     Entry
	latencies []time.Duration
}

// Run processes every entry once and returns the updated catalog plus
// a finalized CycleReport. The output always has the same length and
// order as the input. The context is polled only at batch boundaries;
// an in-flight batch always finishes.
func (r *Runner) Run(ctx context.Context, cfg DomainConfig, entries []Entry) ([]Entry, CycleReport) {
	report := CycleReport{
		CycleID:   uuid.NewString(),
		Domain:    cfg.Name,
		StartedAt: r.clock.Now(),
		Total:     len(entries),
	}
	log := r.logger.With(zap.String("domain", cfg.Name), zap.String("cycle_id", report.CycleID))

	results := make([]entryResult, len(entries))
	for i, e := range entries {
		results[i] = entryResult{entry: e.Clone()}
	}

	// Probes and backoff sleeps run on a detached context: shutdown is
	// cooperative and an in-flight batch must reach terminal state.
	workCtx := context.WithoutCancel(ctx)

	processed := 0
	for start := 0; start < len(entries); start += cfg.BatchSize {
		if ctx.Err() != nil {
			log.Info("shutdown requested, stopping before next batch",
				zap.Int("processed", processed),
				zap.Int("remaining", len(entries)-processed))
			break
		}
		end := start + cfg.BatchSize
		if end > len(entries) {
			end = len(entries)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx] = r.refreshEntry(workCtx, cfg, results[idx].entry, log)
			}(i)
		}
		wg.Wait()
		processed += end - start
	}

	updated := make([]Entry, len(entries))
	var latencies []time.Duration
	for i, res := range results {
		updated[i] = res.entry
		latencies = append(latencies, res.latencies...)
		if i >= processed {
			report.Skipped++
			continue
		}
		switch res.entry.Status {
		case StatusVerified:
			report.Succeeded++
		case StatusFailedPermanent:
			report.FailedPermanent++
		case StatusFailedRetries:
			report.FailedRetries++
		default:
			report.Skipped++
		}
		metrics.ObserveEntry(cfg.Name, string(res.entry.Status))
	}
	report.Latency = SummarizeLatency(latencies)
	report.FinishedAt = r.clock.Now()

	log.Info("cycle pass complete",
		zap.Int("total", report.Total),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed_permanent", report.FailedPermanent),
		zap.Int("failed_after_retries", report.FailedRetries),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return updated, report
}

// refreshEntry drives one entry through rewrite, probe, and retry. The
// entry's previous URL and lastRefreshedAt survive every failure path
// so downstream consumers keep a complete, last-known-good catalog.
func (r *Runner) refreshEntry(ctx context.Context, cfg DomainConfig, e Entry, log *zap.Logger) entryResult {
	rewritten, err := RewriteTimestamp(e.URL, cfg.ParameterNames, cfg.TimestampParameter, r.clock.Now())
	if err != nil {
		log.Warn("entry skipped, url rewrite failed",
			zap.String("entry_id", e.ID),
			zap.Error(err))
		e.Status = StatusFailedPermanent
		e.Attempts = 1
		return entryResult{entry: e}
	}

	var latencies []time.Duration
	for attempt := 1; ; attempt++ {
		res := r.prober.Probe(ctx, ProbeRequest{
			URL:     rewritten,
			Domain:  cfg.Name,
			Timeout: cfg.RequestTimeout(),
		})
		if res.Duration > 0 {
			latencies = append(latencies, res.Duration)
		}
		e.Attempts = attempt

		switch res.Class {
		case ClassSuccess:
			e.URL = rewritten
			e.LastRefreshedAt = r.clock.Now()
			e.Status = StatusVerified
			return entryResult{entry: e, latencies: latencies}
		case ClassPermanent:
			log.Warn("entry failed permanently",
				zap.String("entry_id", e.ID),
				zap.Int("status_code", res.StatusCode))
			e.Status = StatusFailedPermanent
			return entryResult{entry: e, latencies: latencies}
		}

		retry, delay := r.policy.Decide(res.Class, attempt)
		if !retry {
			log.Warn("entry failed after retries",
				zap.String("entry_id", e.ID),
				zap.Int("attempts", attempt),
				zap.Int("status_code", res.StatusCode),
				zap.Error(res.Err))
			e.Status = StatusFailedRetries
			return entryResult{entry: e, latencies: latencies}
		}
		log.Debug("retrying entry",
			zap.String("entry_id", e.ID),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay))
		if err := r.sleep.Sleep(ctx, delay); err != nil {
			e.Status = StatusFailedRetries
			return entryResult{entry: e, latencies: latencies}
		}
	}
}

// SummarizeLatency reduces probe durations to min/median/max.
func SummarizeLatency(durations []time.Duration) LatencySummary {
	if len(durations) == 0 {
		return LatencySummary{}
	}
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return LatencySummary{
		Min:    sorted[0],
		Median: sorted[len(sorted)/2],
		Max:    sorted[len(sorted)-1],
	}
}
