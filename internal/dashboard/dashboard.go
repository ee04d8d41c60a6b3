package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/trafficgen/internal/metrics"
)

// RunConfig holds run parameters for display.
type RunConfig struct {
	RunID        string
	Targets      int           // number of URLs being browsed
	Browsers     int           // simulated users
	Navigator    string        // chrome or http
	VisitMode    string        // random or round_robin
	RefreshRate  time.Duration
	Jitter       time.Duration
	Duration     time.Duration // 0 = unbounded
	DNSFrequency int           // percent of iterations that issue a lookup
	Resolvers    int
	ConfigFile   string
}

// Dashboard renders a live terminal UI for run metrics.
type Dashboard struct {
	collector    *metrics.Collector
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid           *ui.Grid
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	sessionGauge   *widgets.Gauge
	errorList      *widgets.List
	targetList     *widgets.List
	summaryPara    *widgets.Paragraph
	metricsPara    *widgets.Paragraph
	dnsPara        *widgets.Paragraph
	latencyHistory []float64
	startTime      time.Time
	runDuration    time.Duration
	runConfig      RunConfig
}

func New(collector *metrics.Collector, cfg RunConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		collector:      collector,
		ctx:            ctx,
		cancel:         cancel,
		shutdownFunc:   shutdownFunc,
		latencyHistory: make([]float64, 0, 100),
		startTime:      time.Now(),
		runConfig:      cfg,
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

func (d *Dashboard) initWidgets() {
	sparkline := widgets.NewSparkline()
	sparkline.Title = "P95 page load (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Page Load Latency"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency Stats"
	d.latencyPara.Text = "Min: 0ms\nMean: 0ms\nP50: 0ms\nP95: 0ms\nP99: 0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.sessionGauge = widgets.NewGauge()
	d.sessionGauge.Title = "Active Browsers"
	d.sessionGauge.Percent = 0
	d.sessionGauge.BarColor = ui.ColorBlue
	d.sessionGauge.BorderStyle.Fg = ui.ColorCyan
	d.sessionGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.errorList = widgets.NewList()
	d.errorList.Title = "Failures"
	d.errorList.Rows = []string{"No failures"}
	d.errorList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.errorList.BorderStyle.Fg = ui.ColorCyan

	d.targetList = widgets.NewList()
	d.targetList.Title = "Targets"
	d.targetList.Rows = []string{"Awaiting data"}
	d.targetList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.targetList.BorderStyle.Fg = ui.ColorCyan

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run Summary"
	d.summaryPara.Text = "Starting browsers..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.metricsPara = widgets.NewParagraph()
	d.metricsPara.Title = "Page Loads"
	d.metricsPara.Text = "Waiting for data..."
	d.metricsPara.BorderStyle.Fg = ui.ColorCyan

	d.dnsPara = widgets.NewParagraph()
	d.dnsPara.Title = "DNS Injection"
	d.dnsPara.Text = "No queries yet"
	d.dnsPara.TextStyle = ui.NewStyle(ui.ColorGreen)
	d.dnsPara.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.14,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.20,
			ui.NewCol(0.5, d.sessionGauge),
			ui.NewCol(0.5, d.metricsPara),
		),
		ui.NewRow(0.26,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.40,
			ui.NewCol(0.45, d.targetList),
			ui.NewCol(0.30, d.errorList),
			ui.NewCol(0.25, d.dnsPara),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	d.runDuration = time.Since(d.startTime)
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// GetFinalStats returns the final statistics after the dashboard has stopped.
func (d *Dashboard) GetFinalStats() metrics.Stats {
	return d.collector.Stats(d.runDuration)
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop() cancels the context once the pool has drained.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update samples the collector and refreshes every widget.
func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := time.Since(d.startTime)
	point := d.collector.Snapshot()
	stats := d.collector.Stats(elapsed)

	if point.TotalLoads > 0 {
		d.latencyHistory = append(d.latencyHistory, point.P95LatencyMs)
		if len(d.latencyHistory) > 100 {
			d.latencyHistory = d.latencyHistory[1:]
		}
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf(
			"Page Load Latency | P95: %.0fms | Min: %.0fms | Max: %.0fms",
			point.P95LatencyMs,
			stats.MinLatencyMs,
			stats.MaxLatencyMs,
		)
	}

	d.sessionGauge.Percent = sessionPercent(stats.Sessions.Active, d.runConfig.Browsers)
	d.sessionGauge.Label = fmt.Sprintf("%d / %d browsers", stats.Sessions.Active, d.runConfig.Browsers)

	successRate := 0.0
	if stats.Total > 0 {
		successRate = (float64(stats.Successes) / float64(stats.Total)) * 100
	}

	d.summaryPara.Text = fmt.Sprintf(
		"%s\nElapsed: %s | Page loads: %d | Success Rate: %.1f%% | q to stop",
		formatRunParams(d.runConfig),
		elapsed.Round(time.Second),
		stats.Total,
		successRate,
	)

	d.metricsPara.Text = fmt.Sprintf(
		"Navigations:       %d\nRefreshes:         %d\nFailed:            %d\nPages/sec (now):   %.2f\nStart failures:    %d",
		stats.Navigations,
		stats.Refreshes,
		stats.Failures,
		point.PagesPerSec,
		stats.Sessions.AcquireFailures,
	)

	d.latencyPara.Text = fmt.Sprintf(
		"Min:  %.0fms\nMean: %.0fms\nP50:  %.0fms\nP95:  %.0fms\nP99:  %.0fms",
		stats.MinLatencyMs,
		stats.MeanLatencyMs,
		stats.P50LatencyMs,
		stats.P95LatencyMs,
		stats.P99LatencyMs,
	)

	d.errorList.Rows = formatStatusListRows(stats.StatusBuckets)
	d.targetList.Rows = formatTargetRows(stats)
	d.dnsPara.Text = formatDNSText(stats)
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func sessionPercent(active int64, browsers int) int {
	if browsers <= 0 || active <= 0 {
		return 0
	}
	pct := int(active * 100 / int64(browsers))
	if pct > 100 {
		pct = 100
	}
	return pct
}

func formatTargetRows(stats metrics.Stats) []string {
	if len(stats.Targets) == 0 {
		return []string{"[No page loads yet](fg:green)"}
	}
	names := make([]string, 0, len(stats.Targets))
	for name := range stats.Targets {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := stats.Targets[names[i]], stats.Targets[names[j]]
		if a.Total == b.Total {
			return names[i] < names[j]
		}
		return a.Total > b.Total
	})
	rows := make([]string, 0, len(names))
	for _, name := range names {
		t := stats.Targets[name]
		share := 0.0
		if stats.Total > 0 {
			share = (float64(t.Total) / float64(stats.Total)) * 100
		}
		rows = append(rows, fmt.Sprintf("[%s](fg:cyan) | %5.1f%% | P95 %6.0fms | Err %d",
			name,
			share,
			t.P95LatencyMs,
			t.Failures,
		))
	}
	return rows
}

func formatDNSText(stats metrics.Stats) string {
	if stats.DNS.Total == 0 {
		return "[No queries yet](fg:green)"
	}
	lines := []string{
		fmt.Sprintf("Queries: %d  Failed: %d", stats.DNS.Total, stats.DNS.Failures),
		fmt.Sprintf("Mean: %.1fms  P99: %.1fms", stats.DNS.MeanLatencyMs, stats.DNS.P99LatencyMs),
	}
	servers := make([]string, 0, len(stats.DNSServers))
	for name := range stats.DNSServers {
		servers = append(servers, name)
	}
	sort.Strings(servers)
	for _, name := range servers {
		s := stats.DNSServers[name]
		lines = append(lines, fmt.Sprintf("  [%s](fg:white) [%d](fg:yellow)", name, s.Total))
	}
	return strings.Join(lines, "\n")
}

func formatStatusListRows(buckets map[string]map[string]int) []string {
	rows := metrics.FlattenStatusBuckets(buckets)
	if len(rows) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	maxRows := len(rows)
	if maxRows > 10 {
		maxRows = 10
	}
	formatted := make([]string, 0, maxRows)
	for i := 0; i < maxRows; i++ {
		row := rows[i]
		formatted = append(formatted, fmt.Sprintf("[%s %s](fg:red) %d", strings.ToUpper(row.Kind), row.Code, row.Count))
	}
	return formatted
}

// formatRunParams formats the run configuration for the summary panel.
func formatRunParams(cfg RunConfig) string {
	var parts []string

	if cfg.RunID != "" {
		parts = append(parts, fmt.Sprintf("Run: %s", cfg.RunID))
	}
	if cfg.Browsers > 0 {
		parts = append(parts, fmt.Sprintf("Browsers: %d", cfg.Browsers))
	}
	if cfg.Navigator != "" {
		parts = append(parts, fmt.Sprintf("Navigator: %s", cfg.Navigator))
	}
	if cfg.Targets > 0 {
		parts = append(parts, fmt.Sprintf("URLs: %d (%s)", cfg.Targets, cfg.VisitMode))
	}
	parts = append(parts, fmt.Sprintf("Refresh: %s±%s", cfg.RefreshRate, cfg.Jitter))
	if cfg.Duration > 0 {
		parts = append(parts, fmt.Sprintf("Duration: %s", cfg.Duration))
	} else {
		parts = append(parts, "Duration: unbounded")
	}
	if cfg.Resolvers > 0 {
		parts = append(parts, fmt.Sprintf("DNS: %d%% via %d servers", cfg.DNSFrequency, cfg.Resolvers))
	}
	if cfg.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", cfg.ConfigFile))
	}

	return strings.Join(parts, " | ")
}
