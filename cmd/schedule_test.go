package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gennaro-ai/gennaro/internal/scheduler"
)

func TestRenderJobTable(t *testing.T) {
	t.Parallel()

	lastRun := time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC)
	jobs := []scheduler.Job{
		{
			ID:         "job-1",
			WorkflowID: "daily-report",
			CronExpr:   "0 9 * * *",
			Enabled:    true,
			LastRun:    &lastRun,
		},
		{
			ID:              "job-2",
			WorkflowID:      "poller",
			IntervalSeconds: 30,
			Enabled:         false,
		},
	}

	out := renderJobTable(jobs)

	assert.Contains(t, out, "WORKFLOW")
	assert.Contains(t, out, "job-1")
	assert.Contains(t, out, "0 9 * * *")
	assert.Contains(t, out, "2026-08-01T09:30:00Z")
	assert.Contains(t, out, "every 30s")
	// A job that never ran shows a placeholder.
	assert.Contains(t, out, " - ")
}
