package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/torosent/trafficgen/internal/targets"
)

// DefaultConfigFile is read from the working directory when neither --url
// nor --config is given.
const DefaultConfigFile = "config.yml"

// DefaultUserAgent is sent by both navigator backends unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

type VisitMode string

const (
	VisitModeRandom     VisitMode = "random"
	VisitModeRoundRobin VisitMode = "round_robin"
)

type NavigatorKind string

const (
	NavigatorChrome NavigatorKind = "chrome"
	NavigatorHTTP   NavigatorKind = "http"
)

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

type ArrivalConfig struct {
	Model ArrivalModel `mapstructure:"model" yaml:"model"`
}

type Config struct {
	URL               string          `mapstructure:"url" yaml:"url,omitempty"`
	URLs              []string        `mapstructure:"urls" yaml:"urls"`
	Resolvers         []string        `mapstructure:"dns" yaml:"dns,omitempty"`
	RefreshRate       time.Duration   `mapstructure:"refresh_rate" yaml:"refresh_rate"`
	Jitter            time.Duration   `mapstructure:"jitter" yaml:"jitter"`
	Duration          time.Duration   `mapstructure:"duration" yaml:"duration"`
	DNSFrequency      int             `mapstructure:"dns_frequency" yaml:"dns_frequency"`
	Browsers          int             `mapstructure:"browsers" yaml:"browsers"`
	DisableThreading  bool            `mapstructure:"disable_threading" yaml:"disable_threading"`
	VisitMode         VisitMode       `mapstructure:"visit_mode" yaml:"visit_mode"`
	Navigator         NavigatorKind   `mapstructure:"navigator" yaml:"navigator"`
	Headless          bool            `mapstructure:"headless" yaml:"headless"`
	NavigationTimeout time.Duration   `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	DNSTimeout        time.Duration   `mapstructure:"dns_timeout" yaml:"dns_timeout"`
	GraceMargin       time.Duration   `mapstructure:"grace_margin" yaml:"grace_margin"`
	LaunchConcurrency int             `mapstructure:"launch_concurrency" yaml:"launch_concurrency"`
	SpawnRate         float64         `mapstructure:"spawn_rate" yaml:"spawn_rate"`
	Arrival           ArrivalConfig   `mapstructure:"arrival" yaml:"arrival"`
	Retries           int             `mapstructure:"retries" yaml:"retries"`
	Seed              int64           `mapstructure:"seed" yaml:"seed"`
	LogLevel          string          `mapstructure:"log_level" yaml:"log_level"`
	RespectRobots     bool            `mapstructure:"respect_robots" yaml:"respect_robots"`
	UserAgent         string          `mapstructure:"user_agent" yaml:"user_agent"`
	FetchAssets       bool            `mapstructure:"fetch_assets" yaml:"fetch_assets"`
	DisableCache      bool            `mapstructure:"disable_cache" yaml:"disable_cache"`
	JSONOutput        bool            `mapstructure:"json_output" yaml:"json_output"`
	Dashboard         bool            `mapstructure:"dashboard" yaml:"dashboard"`
	LogErrors         bool            `mapstructure:"log_errors" yaml:"log_errors"`
	HTMLOutput        string          `mapstructure:"html_output" yaml:"html_output,omitempty"`
	ResultsDB         string          `mapstructure:"results_db" yaml:"results_db,omitempty"`
	Thresholds        []string        `mapstructure:"thresholds" yaml:"thresholds,omitempty"`
	Tracing           TracingConfig   `mapstructure:"tracing" yaml:"tracing"`
	ConfigFile        string          `mapstructure:"-" yaml:"-"`
	PrintUsage        bool            `mapstructure:"-" yaml:"-"`
	PrintConfig       bool            `mapstructure:"-" yaml:"-"`
}

// TracingConfig configures OpenTelemetry export. Tracing is enabled when an
// endpoint is set.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Protocol    string  `mapstructure:"protocol" yaml:"protocol,omitempty"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name,omitempty"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure"`
	Propagate   *bool   `mapstructure:"propagate" yaml:"propagate,omitempty"`
}

func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// ShouldPropagate defaults to true when tracing is enabled.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// Defaults returns a Config populated with the documented default values.
func Defaults() Config {
	return Config{
		RefreshRate:       20 * time.Second,
		Jitter:            10 * time.Second,
		Duration:          60 * time.Second,
		DNSFrequency:      20,
		Browsers:          10,
		VisitMode:         VisitModeRandom,
		Navigator:         NavigatorChrome,
		Headless:          true,
		NavigationTimeout: 30 * time.Second,
		DNSTimeout:        5 * time.Second,
		GraceMargin:       10 * time.Second,
		Arrival:           ArrivalConfig{Model: ArrivalModelUniform},
		LogLevel:          "info",
		UserAgent:         DefaultUserAgent,
		FetchAssets:       true,
		DisableCache:      true,
		Tracing:           TracingConfig{SampleRate: 1.0},
	}
}

// Targets returns the URL set workers browse: the single --url when given,
// otherwise the configured list.
func (c Config) Targets() []string {
	if strings.TrimSpace(c.URL) != "" {
		return []string{strings.TrimSpace(c.URL)}
	}
	return targets.Normalize(c.URLs)
}

// Unbounded reports whether the run has no fixed end.
func (c Config) Unbounded() bool {
	return c.Duration == 0
}

// GraceWindow is how long the pool waits for workers before cancelling them.
// Unbounded runs have no grace window.
func (c Config) GraceWindow() time.Duration {
	if c.Unbounded() {
		return 0
	}
	return c.Duration + c.Jitter + c.GraceMargin
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string
	var warnings []string

	urls := c.Targets()
	if len(urls) == 0 {
		issues = append(issues, "at least one url is required (use --url or the urls key of a config file)")
	} else if urlIssues := targets.ValidateAll(urls); len(urlIssues) > 0 {
		issues = append(issues, urlIssues...)
	}

	if c.Browsers > 100 {
		warnings = append(warnings, fmt.Sprintf("WARNING: %d browsers configured. Each one is a full browser process; ensure the host can sustain it.", c.Browsers))
	}
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, w)
	}

	if c.RefreshRate <= 0 {
		issues = append(issues, "refresh rate must be > 0")
	}
	if c.Jitter < 0 {
		issues = append(issues, "jitter must be >= 0")
	}
	if c.Duration < 0 {
		issues = append(issues, "duration must be >= 0")
	}
	if c.DNSFrequency < 0 || c.DNSFrequency > 100 {
		issues = append(issues, fmt.Sprintf("dns frequency must be between 0 and 100, got %d", c.DNSFrequency))
	}
	if c.Browsers < 1 {
		issues = append(issues, "browsers must be >= 1")
	}
	if c.NavigationTimeout < 0 {
		issues = append(issues, "navigation timeout must be >= 0")
	}
	if c.DNSTimeout < 0 {
		issues = append(issues, "dns timeout must be >= 0")
	}
	if c.GraceMargin < 0 {
		issues = append(issues, "grace margin must be >= 0")
	}
	if c.LaunchConcurrency < 0 {
		issues = append(issues, "launch concurrency must be >= 0")
	}
	if c.SpawnRate < 0 {
		issues = append(issues, "spawn rate must be >= 0")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json-output are mutually exclusive")
	}

	switch c.VisitMode {
	case VisitModeRandom, VisitModeRoundRobin:
	default:
		issues = append(issues, fmt.Sprintf("visit mode %q is not supported", c.VisitMode))
	}
	switch c.Navigator {
	case NavigatorChrome, NavigatorHTTP:
	default:
		issues = append(issues, fmt.Sprintf("navigator %q is not supported", c.Navigator))
	}
	if !validLogLevel(c.LogLevel) {
		issues = append(issues, fmt.Sprintf("log level %q is not supported (debug, info, warning, error, critical)", c.LogLevel))
	}

	issues = append(issues, validateArrivalConfig(c.Arrival)...)
	issues = append(issues, validateResolvers(c.Resolvers)...)
	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}

	return nil
}

func validLogLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "info", "warning", "warn", "error", "critical":
		return true
	}
	return false
}

func validateArrivalConfig(arr ArrivalConfig) []string {
	model := arr.Model
	if model == "" {
		model = ArrivalModelUniform
	}
	switch model {
	case ArrivalModelUniform, ArrivalModelPoisson:
		return nil
	default:
		return []string{fmt.Sprintf("arrival model %q is not supported", model)}
	}
}

func validateResolvers(resolvers []string) []string {
	var issues []string
	for idx, r := range resolvers {
		if strings.TrimSpace(r) == "" {
			issues = append(issues, fmt.Sprintf("dns[%d]: resolver address is empty", idx))
		}
	}
	return issues
}

func validateTracingConfig(t TracingConfig) []string {
	if !t.Enabled() {
		return nil
	}
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: unsupported protocol %q (grpc or http)", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
