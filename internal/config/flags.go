package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "trafficgen",
		Short:         "Generate synthetic web browsing traffic",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// secondsValue is a duration flag that also accepts a bare integer number of
// seconds ("20" == "20s").
type secondsValue time.Duration

func newSecondsValue(def time.Duration) *secondsValue {
	v := secondsValue(def)
	return &v
}

func (s *secondsValue) String() string { return time.Duration(*s).String() }

func (s *secondsValue) Set(raw string) error {
	d, err := asDuration(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	*s = secondsValue(d)
	return nil
}

func (s *secondsValue) Type() string { return "seconds" }

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	defaults := Defaults()

	// Target flags
	flags.StringP("url", "u", "", "Single URL to browse (mutually exclusive with --config)")
	flags.StringP("config", "y", "", "Path to configuration file (YAML or JSON) listing urls and dns resolvers")
	flags.String("yml", "", "Alias for --config")
	_ = flags.MarkHidden("yml")

	// Timing flags
	flags.VarP(newSecondsValue(defaults.RefreshRate), "refresh-rate", "r", "Base interval between page loads (seconds or duration)")
	flags.VarP(newSecondsValue(defaults.Jitter), "jitter", "j", "Maximum random deviation from the refresh rate (seconds or duration)")
	flags.VarP(newSecondsValue(defaults.Duration), "duration", "d", "How long to generate traffic; 0 runs until interrupted (seconds or duration)")
	flags.Var(newSecondsValue(defaults.GraceMargin), "grace-margin", "Extra time past duration+jitter before lingering workers are cancelled")

	// Worker flags
	flags.IntP("browsers", "b", defaults.Browsers, "Number of simulated users (browsers)")
	flags.Bool("disable-threading", false, "Run a single worker in the foreground")
	flags.String("visit-mode", string(defaults.VisitMode), "How workers choose the next url: random or round_robin")
	flags.String("navigator", string(defaults.Navigator), "Navigator backend: chrome or http")
	flags.Bool("headless", defaults.Headless, "Run chrome without a visible window")
	flags.Var(newSecondsValue(defaults.NavigationTimeout), "navigation-timeout", "Per page-load timeout")
	flags.Int("launch-concurrency", 0, "Maximum browsers being launched at once (0 means unlimited)")
	flags.Float64("spawn-rate", 0, "Workers started per second (0 starts all at once)")
	flags.String("arrival-model", string(ArrivalModelUniform), "Arrival model used when pacing worker starts (uniform or poisson)")
	flags.Int("retries", 0, "Number of retries per failed page load")
	flags.Int64("seed", 0, "Random seed (0 derives one from the clock)")
	flags.Bool("respect-robots", false, "Skip urls disallowed by the site's robots.txt")
	flags.String("user-agent", defaults.UserAgent, "User-Agent sent with every page load")
	flags.Bool("fetch-assets", defaults.FetchAssets, "http navigator: also fetch images, scripts and stylesheets")
	flags.Bool("disable-cache", defaults.DisableCache, "chrome navigator: disable the browser cache")

	// DNS flags
	flags.IntP("dns-frequency", "f", defaults.DNSFrequency, "Percent chance (0-100) of a DNS lookup after each page load")
	flags.StringSlice("dns", nil, "DNS resolver address (repeatable, host or host:port)")
	flags.Var(newSecondsValue(defaults.DNSTimeout), "dns-timeout", "Per DNS lookup timeout")

	// Output flags
	flags.StringP("log-level", "l", defaults.LogLevel, "Log level: debug, info, warning, error or critical")
	flags.Bool("print-usage", false, "Print extended usage with a sample config file and exit")
	flags.Bool("print-config", false, "Print the effective configuration as YAML and exit")
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.Bool("dashboard", false, "Show live terminal dashboard with metrics")
	flags.Bool("log-errors", false, "Log each failed page load to stderr")
	flags.String("html-output", "", "Generate HTML report to the specified file path")
	flags.String("results-db", "", "Record every event to the SQLite database at this path")

	// Threshold flags
	flags.StringSlice("threshold", nil, "Pass/fail thresholds (repeatable, e.g., 'page_load_duration:p95 < 3000')")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.String("tracing-service-name", "", "Service name reported to the collector")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of actions sampled (0.0-1.0)")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Bool("tracing-propagate", true, "Inject W3C trace headers into http navigator requests")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

func getSeconds(fs *pflag.FlagSet, name string) time.Duration {
	if v, ok := fs.Lookup(name).Value.(*secondsValue); ok {
		return time.Duration(*v)
	}
	return 0
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("url") {
		val, err := fs.GetString("url")
		if err != nil {
			return err
		}
		cfg.URL = strings.TrimSpace(val)
	}
	for _, name := range []string{"refresh-rate", "jitter", "duration", "grace-margin", "navigation-timeout", "dns-timeout"} {
		if !fs.Changed(name) {
			continue
		}
		val := getSeconds(fs, name)
		switch name {
		case "refresh-rate":
			cfg.RefreshRate = val
		case "jitter":
			cfg.Jitter = val
		case "duration":
			cfg.Duration = val
		case "grace-margin":
			cfg.GraceMargin = val
		case "navigation-timeout":
			cfg.NavigationTimeout = val
		case "dns-timeout":
			cfg.DNSTimeout = val
		}
	}
	if fs.Changed("browsers") {
		val, err := fs.GetInt("browsers")
		if err != nil {
			return err
		}
		cfg.Browsers = val
	}
	if fs.Changed("disable-threading") {
		val, err := fs.GetBool("disable-threading")
		if err != nil {
			return err
		}
		cfg.DisableThreading = val
	}
	if fs.Changed("visit-mode") {
		val, err := fs.GetString("visit-mode")
		if err != nil {
			return err
		}
		cfg.VisitMode = VisitMode(normalizeEnum(val))
	}
	if fs.Changed("navigator") {
		val, err := fs.GetString("navigator")
		if err != nil {
			return err
		}
		cfg.Navigator = NavigatorKind(normalizeEnum(val))
	}
	if fs.Changed("headless") {
		val, err := fs.GetBool("headless")
		if err != nil {
			return err
		}
		cfg.Headless = val
	}
	if fs.Changed("launch-concurrency") {
		val, err := fs.GetInt("launch-concurrency")
		if err != nil {
			return err
		}
		cfg.LaunchConcurrency = val
	}
	if fs.Changed("spawn-rate") {
		val, err := fs.GetFloat64("spawn-rate")
		if err != nil {
			return err
		}
		cfg.SpawnRate = val
	}
	if fs.Changed("arrival-model") {
		val, err := fs.GetString("arrival-model")
		if err != nil {
			return err
		}
		cfg.Arrival.Model = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("retries") {
		val, err := fs.GetInt("retries")
		if err != nil {
			return err
		}
		cfg.Retries = val
	}
	if fs.Changed("seed") {
		val, err := fs.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = val
	}
	if fs.Changed("respect-robots") {
		val, err := fs.GetBool("respect-robots")
		if err != nil {
			return err
		}
		cfg.RespectRobots = val
	}
	if fs.Changed("user-agent") {
		val, err := fs.GetString("user-agent")
		if err != nil {
			return err
		}
		cfg.UserAgent = strings.TrimSpace(val)
	}
	if fs.Changed("fetch-assets") {
		val, err := fs.GetBool("fetch-assets")
		if err != nil {
			return err
		}
		cfg.FetchAssets = val
	}
	if fs.Changed("disable-cache") {
		val, err := fs.GetBool("disable-cache")
		if err != nil {
			return err
		}
		cfg.DisableCache = val
	}
	if fs.Changed("dns-frequency") {
		val, err := fs.GetInt("dns-frequency")
		if err != nil {
			return err
		}
		cfg.DNSFrequency = val
	}
	if fs.Changed("dns") {
		val, err := fs.GetStringSlice("dns")
		if err != nil {
			return err
		}
		cfg.Resolvers = trimAll(val)
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("print-usage") {
		val, err := fs.GetBool("print-usage")
		if err != nil {
			return err
		}
		cfg.PrintUsage = val
	}
	if fs.Changed("print-config") {
		val, err := fs.GetBool("print-config")
		if err != nil {
			return err
		}
		cfg.PrintConfig = val
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return err
		}
		cfg.LogErrors = val
	}
	if fs.Changed("html-output") {
		val, err := fs.GetString("html-output")
		if err != nil {
			return err
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}
	if fs.Changed("results-db") {
		val, err := fs.GetString("results-db")
		if err != nil {
			return err
		}
		cfg.ResultsDB = strings.TrimSpace(val)
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = append(cfg.Thresholds, val...)
	}

	return applyTracingFlags(&cfg.Tracing, fs)
}

func applyTracingFlags(t *TracingConfig, fs *pflag.FlagSet) error {
	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		t.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		t.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-service-name") {
		val, err := fs.GetString("tracing-service-name")
		if err != nil {
			return err
		}
		t.ServiceName = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		t.SampleRate = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		t.Insecure = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		t.Propagate = &val
	}
	return nil
}

// normalizeEnum lowercases and maps dashes to underscores so "round-robin"
// and "Round_Robin" both select round_robin.
func normalizeEnum(raw string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_")
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
