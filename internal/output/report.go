package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/torosent/trafficgen/internal/metrics"
	"github.com/torosent/trafficgen/internal/threshold"
)

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, stats metrics.Stats) {
	fmt.Fprintln(w, "\n--- Traffic Generation Results ---")
	fmt.Fprintf(w, "Page Loads:        %d\n", stats.Total)
	fmt.Fprintf(w, "  Navigations:     %d\n", stats.Navigations)
	fmt.Fprintf(w, "  Refreshes:       %d\n", stats.Refreshes)
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", stats.Failures)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	fmt.Fprintf(w, "Pages/sec:         %.2f\n", stats.PagesPerSec)
	fmt.Fprintln(w, "\nPage Load Latency:")
	writeLatency(w, stats.LatencyStats, "  ")

	fmt.Fprintln(w, "\nBrowser Sessions:")
	fmt.Fprintf(w, "  Started:         %d\n", stats.Sessions.Acquired)
	fmt.Fprintf(w, "  Failed to start: %d\n", stats.Sessions.AcquireFailures)
	fmt.Fprintf(w, "  Released:        %d\n", stats.Sessions.Released)
	if stats.Sessions.Acquired > 0 {
		fmt.Fprintf(w, "  Startup P50:     %s\n", stats.Sessions.Startup.P50Latency)
	}

	if stats.DNS.Total > 0 {
		fmt.Fprintln(w, "\nDNS Queries:")
		fmt.Fprintf(w, "  Total:           %d\n", stats.DNS.Total)
		fmt.Fprintf(w, "  Failed:          %d\n", stats.DNS.Failures)
		fmt.Fprintf(w, "  Mean:            %s\n", stats.DNS.MeanLatency)
		fmt.Fprintf(w, "  P99:             %s\n", stats.DNS.P99Latency)
		for _, name := range sortedByTotal(stats.DNSServers) {
			server := stats.DNSServers[name]
			fmt.Fprintf(w, "  - %s: total=%d, failures=%d, p99=%s\n", name, server.Total, server.Failures, server.P99Latency)
		}
	}

	if len(stats.StatusBuckets) > 0 {
		fmt.Fprintln(w, "\nFailures:")
		writeStatusBuckets(w, stats.StatusBuckets, "  ")
	}

	if len(stats.Targets) > 0 {
		fmt.Fprintln(w, "\nTarget Breakdown:")
		for _, name := range sortedByTotal(stats.Targets) {
			target := stats.Targets[name]
			share := 0.0
			if stats.Total > 0 {
				share = (float64(target.Total) / float64(stats.Total)) * 100
			}
			fmt.Fprintf(
				w,
				"  - %s: total=%d (%.1f%%), successes=%d, failures=%d, p50=%s, p99=%s\n",
				name,
				target.Total,
				share,
				target.Successes,
				target.Failures,
				target.P50Latency,
				target.P99Latency,
			)
		}
	}

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		names := make([]string, 0, len(stats.Errors))
		for name := range stats.Errors {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if stats.Errors[names[i]] == stats.Errors[names[j]] {
				return names[i] < names[j]
			}
			return stats.Errors[names[i]] > stats.Errors[names[j]]
		})
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %d\n", metrics.FriendlyErrorName(name), stats.Errors[name])
		}
	}
}

// PrintThresholdResults prints pass/fail lines for evaluated thresholds.
func PrintThresholdResults(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(w, "\nThresholds:")
	for _, r := range results {
		fmt.Fprintf(w, "  %s\n", r.Message)
	}
}

// JSONReport is the document written by --json-output.
type JSONReport struct {
	RunID      string              `json:"run_id,omitempty"`
	Stats      metrics.Stats       `json:"stats"`
	Thresholds []JSONThreshold     `json:"thresholds,omitempty"`
	History    []metrics.DataPoint `json:"history,omitempty"`
}

type JSONThreshold struct {
	Threshold string  `json:"threshold"`
	Actual    float64 `json:"actual"`
	Pass      bool    `json:"pass"`
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, report JSONReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// ThresholdsForJSON converts evaluation results for JSONReport.
func ThresholdsForJSON(results []threshold.Result) []JSONThreshold {
	if len(results) == 0 {
		return nil
	}
	out := make([]JSONThreshold, 0, len(results))
	for _, r := range results {
		out = append(out, JSONThreshold{Threshold: r.Threshold.Raw, Actual: r.Actual, Pass: r.Pass})
	}
	return out
}

func writeLatency(w io.Writer, s metrics.LatencyStats, indent string) {
	fmt.Fprintf(w, "%sMin:             %s\n", indent, s.MinLatency)
	fmt.Fprintf(w, "%sMax:             %s\n", indent, s.MaxLatency)
	fmt.Fprintf(w, "%sMean:            %s\n", indent, s.MeanLatency)
	fmt.Fprintf(w, "%sP50:             %s\n", indent, s.P50Latency)
	fmt.Fprintf(w, "%sP90:             %s\n", indent, s.P90Latency)
	fmt.Fprintf(w, "%sP95:             %s\n", indent, s.P95Latency)
	fmt.Fprintf(w, "%sP99:             %s\n", indent, s.P99Latency)
}

func writeStatusBuckets(w io.Writer, buckets map[string]map[string]int, indent string) {
	rows := metrics.FlattenStatusBuckets(buckets)
	if len(rows) == 0 {
		fmt.Fprintf(w, "%sNone\n", indent)
		return
	}
	for _, row := range rows {
		fmt.Fprintf(
			w,
			"%s%s %s: %d\n",
			indent,
			strings.ToUpper(row.Kind),
			row.Code,
			row.Count,
		)
	}
}

func sortedByTotal(m map[string]metrics.LatencyStats) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if m[names[i]].Total == m[names[j]].Total {
			return names[i] < names[j]
		}
		return m[names[i]].Total > m[names[j]].Total
	})
	return names
}
