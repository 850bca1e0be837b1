package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvonguyen/bill-insights/internal/store"
	"github.com/lvonguyen/bill-insights/internal/store/storetest"
)

func sampleSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bills.db")
	require.NoError(t, store.SaveSQLite(context.Background(), path, storetest.Sample().Tables()))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAnomalyCommand(t *testing.T) {
	out, err := run(t, "anomaly", "1001", "2025-08", "--sqlite", sampleSnapshot(t))
	require.NoError(t, err)

	var report struct {
		BillID    int `json:"bill_id"`
		Anomalies []struct {
			Category string `json:"category"`
		} `json:"anomalies"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 4, report.BillID)
	assert.Len(t, report.Anomalies, 3)
}

func TestAutofixCommand(t *testing.T) {
	out, err := run(t, "autofix", "1001", "2025-08", "--sqlite", sampleSnapshot(t))
	require.NoError(t, err)

	var rec struct {
		RecommendedTotal float64 `json:"recommended_total"`
		OneClickAction   struct {
			Type string `json:"type"`
		} `json:"one_click_action"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.InDelta(t, 448.4, rec.RecommendedTotal, 1e-9)
	assert.Equal(t, "apply_recommendation", rec.OneClickAction.Type)
}

func TestWhatifCommand(t *testing.T) {
	out, err := run(t, "whatif", "1001", "2025-08", "--sqlite", sampleSnapshot(t),
		"--plan", "2", "--disable-vas", "--block-premium-sms")
	require.NoError(t, err)

	var r struct {
		PlanID   int     `json:"plan_id"`
		NewTotal float64 `json:"new_total"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, 2, r.PlanID)
	assert.InDelta(t, 448.4, r.NewTotal, 1e-9)
}

func TestCohortCommand(t *testing.T) {
	out, err := run(t, "cohort", "1001", "2025-08", "--sqlite", sampleSnapshot(t))
	require.NoError(t, err)

	var c struct {
		CohortType string  `json:"cohort_type"`
		CohortSize int     `json:"cohort_size"`
		UserTotal  float64 `json:"user_total"`
		Difference float64 `json:"difference"`
		Band       string  `json:"percentile_band"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.Equal(t, "retail", c.CohortType)
	assert.Equal(t, 1, c.CohortSize)
	assert.InDelta(t, 654.78, c.UserTotal, 1e-9)
	assert.Zero(t, c.Difference)
	assert.Equal(t, "low", c.Band)
}

func TestReportCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "report", "4", "--sqlite", sampleSnapshot(t), "--format", "json", "--output", dir)
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	assert.Equal(t, dir, filepath.Dir(path))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestCommandErrors(t *testing.T) {
	db := sampleSnapshot(t)

	_, err := run(t, "anomaly", "abc", "2025-08", "--sqlite", db)
	assert.ErrorContains(t, err, "invalid user id")

	_, err = run(t, "explain", "999", "--sqlite", db)
	assert.ErrorContains(t, err, "not found")

	_, err = run(t, "anomaly", "1001", "2025-08", "--sqlite", filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "billcheck version")
}
