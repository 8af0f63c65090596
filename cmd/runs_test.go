package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geo-benchmark/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 10, 15, 10, 30, 0, 0, time.UTC)
	done := now.Add(12 * time.Minute)
	runs := []model.Run{
		{
			ID: 2, RunDate: "2026-10-15", TriggerType: model.TriggerScheduled,
			Status: model.RunStatusCompleted, TotalItems: 96, CompletedItems: 96,
			StartedAt: now, CompletedAt: &done,
		},
		{
			ID: 1, RunDate: "2026-10-14", TriggerType: model.TriggerManual,
			Status: model.RunStatusFailed, TotalItems: 96,
			StartedAt:    now.Add(-24 * time.Hour),
			ErrorMessage: "aborted before any work item was dispatched",
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "PROGRESS")
	assert.Contains(t, output, "scheduled")
	assert.Contains(t, output, "96/96")
	assert.Contains(t, output, "12m0s")
	assert.Contains(t, output, "2026-10-15 10:30")
	assert.Contains(t, output, "failed (aborted before any work item was disp...)")
	assert.Contains(t, output, "0/96")
}

func TestParseRunID(t *testing.T) {
	id, err := parseRunID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-3", "abc"} {
		_, err := parseRunID(bad)
		assert.Error(t, err, bad)
	}
}
