// Package refresh defines core types shared across subsystems.
package refresh

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status represents the verification state of a catalog entry.
type Status string

// Entry status values persisted in the output catalog.
const (
	StatusUnverified      Status = "unverified"
	StatusVerified        Status = "verified"
	StatusFailedPermanent Status = "failed-permanent"
	StatusFailedRetries   Status = "failed-after-retries"
)

// Keys the agent owns inside an entry document. Everything else is
// opaque metadata passed through untouched.
const (
	keyID          = "id"
	keyURL         = "url"
	keyRefreshedAt = "lastRefreshedAt"
	keyStatus      = "verificationStatus"
	keyAttempts    = "attempts"
)

// Entry is one catalog record describing a single endpoint to refresh
// and verify. Extra holds domain-specific fields the agent never
// interprets; they round-trip byte-for-byte.
type Entry struct {
	ID              string
	URL             string
	LastRefreshedAt time.Time
	Status          Status
	Attempts        int
	Extra           map[string]json.RawMessage
}

// UnmarshalJSON decodes the fields the agent owns and captures every
// other field into Extra.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode entry: %w", err)
	}
	*e = Entry{Status: StatusUnverified}
	if v, ok := raw[keyID]; ok {
		if err := json.Unmarshal(v, &e.ID); err != nil {
			return fmt.Errorf("decode entry id: %w", err)
		}
		delete(raw, keyID)
	}
	if v, ok := raw[keyURL]; ok {
		if err := json.Unmarshal(v, &e.URL); err != nil {
			return fmt.Errorf("decode entry url: %w", err)
		}
		delete(raw, keyURL)
	}
	if v, ok := raw[keyRefreshedAt]; ok {
		if err := json.Unmarshal(v, &e.LastRefreshedAt); err != nil {
			return fmt.Errorf("decode entry lastRefreshedAt: %w", err)
		}
		delete(raw, keyRefreshedAt)
	}
	if v, ok := raw[keyStatus]; ok {
		if err := json.Unmarshal(v, &e.Status); err != nil {
			return fmt.Errorf("decode entry verificationStatus: %w", err)
		}
		delete(raw, keyStatus)
	}
	if v, ok := raw[keyAttempts]; ok {
		if err := json.Unmarshal(v, &e.Attempts); err != nil {
			return fmt.Errorf("decode entry attempts: %w", err)
		}
		delete(raw, keyAttempts)
	}
	if len(raw) > 0 {
		e.Extra = raw
	}
	return nil
}

// MarshalJSON re-assembles the document: owned fields plus the opaque
// passthrough fields.
func (e Entry) MarshalJSON() ([]byte, error) {
	doc := make(map[string]json.RawMessage, len(e.Extra)+5)
	for k, v := range e.Extra {
		doc[k] = v
	}
	put := func(key string, value any) error {
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode entry %s: %w", key, err)
		}
		doc[key] = b
		return nil
	}
	if err := put(keyID, e.ID); err != nil {
		return nil, err
	}
	if err := put(keyURL, e.URL); err != nil {
		return nil, err
	}
	if !e.LastRefreshedAt.IsZero() {
		if err := put(keyRefreshedAt, e.LastRefreshedAt); err != nil {
			return nil, err
		}
	}
	status := e.Status
	if status == "" {
		status = StatusUnverified
	}
	if err := put(keyStatus, status); err != nil {
		return nil, err
	}
	if err := put(keyAttempts, e.Attempts); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// Clone returns a deep copy of the entry. Workers receive clones so no
// two goroutines ever share a mutable entry.
func (e Entry) Clone() Entry {
	out := e
	if e.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(e.Extra))
		for k, v := range e.Extra {
			cp := make(json.RawMessage, len(v))
			copy(cp, v)
			out.Extra[k] = cp
		}
	}
	return out
}

// DomainConfig captures per-domain settings supplied by configuration.
type DomainConfig struct {
	Name                   string   `mapstructure:"-" json:"name"`
	SourcePath             string   `mapstructure:"source_path" json:"source_path"`
	OutputPath             string   `mapstructure:"output_path" json:"output_path"`
	RefreshIntervalSeconds int      `mapstructure:"refresh_interval_seconds" json:"refresh_interval_seconds"`
	BatchSize              int      `mapstructure:"batch_size" json:"batch_size"`
	URLTemplate            string   `mapstructure:"url_template" json:"url_template,omitempty"`
	ParameterNames         []string `mapstructure:"parameter_names" json:"parameter_names"`
	TimestampParameter     string   `mapstructure:"timestamp_parameter" json:"timestamp_parameter"`
	RequestTimeoutSeconds  int      `mapstructure:"request_timeout_seconds" json:"request_timeout_seconds"`
	MaxAttempts            int      `mapstructure:"max_attempts" json:"max_attempts"`
}

// RefreshInterval returns the configured cycle cadence.
func (c DomainConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// RequestTimeout returns the per-probe timeout.
func (c DomainConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Class is the retry-relevant classification of a probe outcome.
type Class int

// Probe outcome classes.
const (
	ClassSuccess Class = iota
	ClassTransient
	ClassRateLimited
	ClassPermanent
)

// String returns the class name used in logs and metrics labels.
func (c Class) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassTransient:
		return "transient"
	case ClassRateLimited:
		return "rate_limited"
	case ClassPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// ProbeRequest captures everything needed to probe a URL.
type ProbeRequest struct {
	URL     string
	Domain  string
	Timeout time.Duration
}

// ProbeResult is the classified outcome of one reachability probe.
type ProbeResult struct {
	Class      Class
	StatusCode int
	Duration   time.Duration
	Err        error
}

// LatencySummary describes the probe latency distribution of a cycle.
type LatencySummary struct {
	Min    time.Duration `json:"min"`
	Median time.Duration `json:"median"`
	Max    time.Duration `json:"max"`
}

// CycleReport summarizes one full pass over a domain's catalog. It is
// immutable once the runner returns it.
type CycleReport struct {
	CycleID         string         `json:"cycle_id"`
	Domain          string         `json:"domain"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
	Total           int            `json:"total"`
	Succeeded       int            `json:"succeeded"`
	FailedPermanent int            `json:"failed_permanent"`
	FailedRetries   int            `json:"failed_after_retries"`
	Skipped         int            `json:"skipped,omitempty"`
	Latency         LatencySummary `json:"latency"`
	PersistError    string         `json:"persist_error,omitempty"`
}

// Failed returns the number of entries that did not verify this cycle.
func (r CycleReport) Failed() int {
	return r.FailedPermanent + r.FailedRetries
}

// Outcome returns the label recorded in cycle metrics.
func (r CycleReport) Outcome() string {
	switch {
	case r.PersistError != "":
		return "persist_failed"
	case r.Failed() > 0:
		return "partial"
	default:
		return "ok"
	}
}
