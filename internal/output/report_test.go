package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/torosent/trafficgen/internal/metrics"
	"github.com/torosent/trafficgen/internal/threshold"
)

func reportStats() metrics.Stats {
	return metrics.Stats{
		LatencyStats: metrics.LatencyStats{
			Total:      100,
			Successes:  95,
			Failures:   5,
			P99Latency: 3 * time.Second,
		},
		Navigations: 60,
		Refreshes:   40,
		PagesPerSec: 1.5,
		Duration:    2 * time.Minute,
		Targets: map[string]metrics.LatencyStats{
			"https://a.example": {Total: 70, Successes: 70},
			"https://b.example": {Total: 30, Successes: 25, Failures: 5},
		},
		DNS: metrics.LatencyStats{Total: 8, Failures: 1},
		DNSServers: map[string]metrics.LatencyStats{
			"8.8.8.8": {Total: 8, Failures: 1},
		},
		Sessions: metrics.SessionStats{Acquired: 10, Released: 10},
		Errors:   map[string]int{"*navigator.StatusError": 5},
		StatusBuckets: map[string]map[string]int{
			"navigate": {"503": 5},
		},
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, reportStats())

	output := buf.String()
	for _, want := range []string{
		"Page Loads:        100",
		"Navigations:     60",
		"Refreshes:       40",
		"Pages/sec:         1.50",
		"NAVIGATE 503: 5",
		"https://a.example: total=70 (70.0%)",
		"8.8.8.8: total=8, failures=1",
		"HTTP error response: 5",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("report missing %q\n%s", want, output)
		}
	}
	if strings.Index(output, "https://a.example") > strings.Index(output, "https://b.example") {
		t.Error("targets should be ordered by total descending")
	}
}

func TestPrintReportWithoutDNS(t *testing.T) {
	stats := reportStats()
	stats.DNS = metrics.LatencyStats{}
	var buf bytes.Buffer
	PrintReport(&buf, stats)
	if strings.Contains(buf.String(), "DNS Queries") {
		t.Error("DNS section should be omitted when no queries ran")
	}
}

func TestPrintJSONReport(t *testing.T) {
	results := []threshold.Result{{
		Threshold: threshold.Threshold{Raw: "page_load_failed:rate < 0.01"},
		Actual:    0.05,
		Pass:      false,
	}}
	var buf bytes.Buffer
	err := PrintJSONReport(&buf, JSONReport{
		RunID:      "01HZX",
		Stats:      reportStats(),
		Thresholds: ThresholdsForJSON(results),
	})
	if err != nil {
		t.Fatalf("PrintJSONReport() error = %v", err)
	}

	var parsed struct {
		RunID string `json:"run_id"`
		Stats struct {
			Total       int64 `json:"total"`
			Navigations int64 `json:"navigations"`
		} `json:"stats"`
		Thresholds []struct {
			Pass bool `json:"pass"`
		} `json:"thresholds"`
	}
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.RunID != "01HZX" || parsed.Stats.Total != 100 || parsed.Stats.Navigations != 60 {
		t.Errorf("parsed = %+v", parsed)
	}
	if len(parsed.Thresholds) != 1 || parsed.Thresholds[0].Pass {
		t.Errorf("thresholds = %+v", parsed.Thresholds)
	}
}

func TestPrintThresholdResults(t *testing.T) {
	var buf bytes.Buffer
	PrintThresholdResults(&buf, nil)
	if buf.Len() != 0 {
		t.Fatalf("expected no output for empty results, got %q", buf.String())
	}
	PrintThresholdResults(&buf, []threshold.Result{{Message: "✓ page_loads:count > 1: 5.00 > 1.00", Pass: true}})
	if !strings.Contains(buf.String(), "Thresholds:") || !strings.Contains(buf.String(), "page_loads:count") {
		t.Errorf("output = %q", buf.String())
	}
}
