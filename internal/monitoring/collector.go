// Package monitoring watches benchmark run health and posts webhook alerts
// when failure, error-rate, staleness or cost thresholds are breached.
package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geo-benchmark/internal/model"
	"github.com/sells-group/geo-benchmark/internal/store"
)

// runScanLimit caps how many recent runs one collection inspects.
const runScanLimit = 500

// Snapshot is a point-in-time view of run health within a lookback window.
type Snapshot struct {
	RunsTotal     int `json:"runs_total"`
	RunsCompleted int `json:"runs_completed"`
	RunsFailed    int `json:"runs_failed"`
	RunsRunning   int `json:"runs_running"`

	// FailedRuns and StaleRuns hold run ids. A stale run is still running
	// with no progress past the stale threshold and is a candidate for --resume.
	FailedRuns []int64 `json:"failed_runs,omitempty"`
	StaleRuns  []int64 `json:"stale_runs,omitempty"`

	Items          int                    `json:"items"`
	ItemErrors     int                    `json:"item_errors"`
	ErrorRate      float64                `json:"error_rate"`
	ProviderErrors map[model.Provider]int `json:"provider_errors,omitempty"`
	CostUSD        float64                `json:"cost_usd"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers run health from the store.
type Collector struct {
	store store.Store
	now   func() time.Time
}

// NewCollector creates a new collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect inspects runs started within lookbackHours. Any run still running
// with no progress for staleHours is reported as stale, however old.
func (c *Collector) Collect(ctx context.Context, lookbackHours, staleHours int) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{
		LookbackHours:  lookbackHours,
		CollectedAt:    now,
		ProviderErrors: make(map[model.Provider]int),
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)
	staleCutoff := now.Add(-time.Duration(staleHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{Limit: runScanLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	for _, r := range runs {
		// Stale runs are reported whether or not they started inside the window.
		if r.Status == model.RunStatusRunning && staleHours > 0 && lastProgress(r).Before(staleCutoff) {
			snap.StaleRuns = append(snap.StaleRuns, r.ID)
		}
		if r.StartedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		switch r.Status {
		case model.RunStatusCompleted:
			snap.RunsCompleted++
		case model.RunStatusFailed:
			snap.RunsFailed++
			snap.FailedRuns = append(snap.FailedRuns, r.ID)
		case model.RunStatusRunning:
			snap.RunsRunning++
		}

		responses, err := c.store.ListResponses(ctx, r.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "monitoring: list responses for run %d", r.ID)
		}
		for _, resp := range responses {
			snap.Items++
			if resp.Status == model.ResponseError {
				snap.ItemErrors++
				snap.ProviderErrors[resp.Provider]++
			}
			if u := resp.Metadata.Usage; u != nil {
				snap.CostUSD += u.CostUSD
			}
			if u := resp.Metadata.ParseUsage; u != nil {
				snap.CostUSD += u.CostUSD
			}
		}
	}

	if snap.Items > 0 {
		snap.ErrorRate = float64(snap.ItemErrors) / float64(snap.Items)
	}
	sort.Slice(snap.FailedRuns, func(i, j int) bool { return snap.FailedRuns[i] < snap.FailedRuns[j] })
	sort.Slice(snap.StaleRuns, func(i, j int) bool { return snap.StaleRuns[i] < snap.StaleRuns[j] })
	return snap, nil
}

// lastProgress is the later of the run's own progress stamp and its start.
func lastProgress(r model.Run) time.Time {
	if r.LastProgressAt.After(r.StartedAt) {
		return r.LastProgressAt
	}
	return r.StartedAt
}
