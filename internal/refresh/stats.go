package refresh

import "sync"

// Totals is a cumulative view across all completed cycles.
type Totals struct {
	Cycles          int `json:"cycles"`
	Entries         int `json:"entries"`
	Succeeded       int `json:"succeeded"`
	FailedPermanent int `json:"failed_permanent"`
	FailedRetries   int `json:"failed_after_retries"`
}

// Aggregator accumulates cycle reports. It is updated only at cycle
// boundaries by the Scheduler, never by workers, and is safe for
// concurrent readers (the status API).
type Aggregator struct {
	mu     sync.RWMutex
	totals Totals
	last   map[string]CycleReport
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{last: make(map[string]CycleReport)}
}

// Record folds a finalized report into the cumulative totals.
func (a *Aggregator) Record(report CycleReport) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totals.Cycles++
	a.totals.Entries += report.Total
	a.totals.Succeeded += report.Succeeded
	a.totals.FailedPermanent += report.FailedPermanent
	a.totals.FailedRetries += report.FailedRetries
	a.last[report.Domain] = report
}

// Snapshot returns the cumulative totals.
func (a *Aggregator) Snapshot() Totals {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.totals
}

// LastReport returns the most recent report for a domain, if any.
func (a *Aggregator) LastReport(domain string) (CycleReport, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	report, ok := a.last[domain]
	return report, ok
}
