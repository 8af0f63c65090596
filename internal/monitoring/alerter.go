package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geo-benchmark/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailure    AlertType = "run_failure"
	AlertItemErrorRate AlertType = "item_error_rate"
	AlertStaleRun      AlertType = "stale_run"
	AlertCostOverrun   AlertType = "cost_overrun"
)

// minItemsForRate avoids alerting on error rates over a handful of items.
const minItemsForRate = 10

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and sends
// alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.RunsFailed > 0 {
		alerts = append(alerts, Alert{
			Type:      AlertRunFailure,
			Severity:  "high",
			Message:   fmt.Sprintf("%d benchmark run(s) failed in last %dh", snap.RunsFailed, snap.LookbackHours),
			Details:   map[string]any{"run_ids": snap.FailedRuns},
			Timestamp: now,
		})
	}

	if len(snap.StaleRuns) > 0 {
		alerts = append(alerts, Alert{
			Type:      AlertStaleRun,
			Severity:  "medium",
			Message:   fmt.Sprintf("%d run(s) running with no progress for %dh; resume with geo-benchmark run --resume <id>", len(snap.StaleRuns), a.cfg.StaleRunHours),
			Details:   map[string]any{"run_ids": snap.StaleRuns},
			Timestamp: now,
		})
	}

	if snap.Items >= minItemsForRate && a.cfg.ErrorRateThreshold > 0 && snap.ErrorRate > a.cfg.ErrorRateThreshold {
		providers := make(map[string]int, len(snap.ProviderErrors))
		for p, n := range snap.ProviderErrors {
			providers[string(p)] = n
		}
		alerts = append(alerts, Alert{
			Type:     AlertItemErrorRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Work item error rate %.1f%% exceeds threshold %.1f%% (%d errors / %d items in last %dh)",
				snap.ErrorRate*100, a.cfg.ErrorRateThreshold*100,
				snap.ItemErrors, snap.Items, snap.LookbackHours,
			),
			Details: map[string]any{
				"error_rate": snap.ErrorRate,
				"threshold":  a.cfg.ErrorRateThreshold,
				"providers":  providers,
			},
			Timestamp: now,
		})
	}

	if a.cfg.CostThresholdUSD > 0 && snap.CostUSD > a.cfg.CostThresholdUSD {
		alerts = append(alerts, Alert{
			Type:     AlertCostOverrun,
			Severity: "high",
			Message: fmt.Sprintf(
				"API cost $%.2f exceeds threshold $%.2f in last %dh",
				snap.CostUSD, a.cfg.CostThresholdUSD, snap.LookbackHours,
			),
			Details: map[string]any{
				"cost_usd":      snap.CostUSD,
				"threshold_usd": a.cfg.CostThresholdUSD,
				"runs_total":    snap.RunsTotal,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
