package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct {
	// DefaultFile is read when neither --url nor --config is supplied.
	DefaultFile string
}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// ErrURLAndConfig is returned when both --url and --config are supplied.
var ErrURLAndConfig = errors.New("--url and --config are mutually exclusive")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{DefaultFile: DefaultConfigFile}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (l Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := strings.TrimSpace(flagSet.Lookup("config").Value.String())
	if configPath == "" {
		configPath = strings.TrimSpace(flagSet.Lookup("yml").Value.String())
	}
	urlFlag := strings.TrimSpace(flagSet.Lookup("url").Value.String())
	if urlFlag != "" && configPath != "" {
		return nil, ErrURLAndConfig
	}
	if urlFlag == "" && configPath == "" && l.DefaultFile != "" {
		if info, err := os.Stat(l.DefaultFile); err == nil && !info.IsDir() {
			configPath = l.DefaultFile
		} else if len(args) == 0 {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	settings := cfgViper.AllSettings()

	defaults := Defaults()
	cfg := &defaults
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "urls", "url"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("urls: %w", err)
		}
		cfg.URLs = trimAll(val)
	}

	if raw, ok := lookupSetting(settings, "dns", "resolvers"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("dns: %w", err)
		}
		cfg.Resolvers = trimAll(val)
	}

	durations := []struct {
		name string
		keys []string
		dst  *time.Duration
	}{
		{"refresh_rate", []string{"refreshrate", "refresh_rate", "refresh-rate"}, &cfg.RefreshRate},
		{"jitter", []string{"jitter"}, &cfg.Jitter},
		{"duration", []string{"duration"}, &cfg.Duration},
		{"navigation_timeout", []string{"navigationtimeout", "navigation_timeout", "navigation-timeout"}, &cfg.NavigationTimeout},
		{"dns_timeout", []string{"dnstimeout", "dns_timeout", "dns-timeout"}, &cfg.DNSTimeout},
		{"grace_margin", []string{"gracemargin", "grace_margin", "grace-margin"}, &cfg.GraceMargin},
	}
	for _, d := range durations {
		if raw, ok := lookupSetting(settings, d.keys...); ok {
			val, err := asDuration(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", d.name, err)
			}
			*d.dst = val
		}
	}

	ints := []struct {
		name string
		keys []string
		dst  *int
	}{
		{"dns_frequency", []string{"dnsfrequency", "dns_frequency", "dns-frequency"}, &cfg.DNSFrequency},
		{"browsers", []string{"browsers"}, &cfg.Browsers},
		{"launch_concurrency", []string{"launchconcurrency", "launch_concurrency", "launch-concurrency"}, &cfg.LaunchConcurrency},
		{"retries", []string{"retries"}, &cfg.Retries},
	}
	for _, i := range ints {
		if raw, ok := lookupSetting(settings, i.keys...); ok {
			val, err := asInt(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", i.name, err)
			}
			*i.dst = val
		}
	}

	if raw, ok := lookupSetting(settings, "seed"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		cfg.Seed = int64(val)
	}

	if raw, ok := lookupSetting(settings, "spawnrate", "spawn_rate", "spawn-rate"); ok {
		val, err := asNumber(raw)
		if err != nil {
			return fmt.Errorf("spawn_rate: %w", err)
		}
		cfg.SpawnRate = val
	}

	bools := []struct {
		name string
		keys []string
		dst  *bool
	}{
		{"disable_threading", []string{"disablethreading", "disable_threading", "disable-threading"}, &cfg.DisableThreading},
		{"headless", []string{"headless"}, &cfg.Headless},
		{"respect_robots", []string{"respectrobots", "respect_robots", "respect-robots"}, &cfg.RespectRobots},
		{"fetch_assets", []string{"fetchassets", "fetch_assets", "fetch-assets"}, &cfg.FetchAssets},
		{"disable_cache", []string{"disablecache", "disable_cache", "disable-cache"}, &cfg.DisableCache},
		{"json_output", []string{"jsonoutput", "json_output", "json-output"}, &cfg.JSONOutput},
		{"dashboard", []string{"dashboard"}, &cfg.Dashboard},
		{"log_errors", []string{"logerrors", "log_errors", "log-errors"}, &cfg.LogErrors},
	}
	for _, b := range bools {
		if raw, ok := lookupSetting(settings, b.keys...); ok {
			val, err := asBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", b.name, err)
			}
			*b.dst = val
		}
	}

	if raw, ok := lookupSetting(settings, "visitmode", "visit_mode", "visit-mode"); ok {
		val := asString(raw)
		cfg.VisitMode = VisitMode(normalizeEnum(val))
	}

	if raw, ok := lookupSetting(settings, "navigator"); ok {
		val := asString(raw)
		cfg.Navigator = NavigatorKind(normalizeEnum(val))
	}

	if raw, ok := lookupSetting(settings, "loglevel", "log_level", "log-level"); ok {
		val := asString(raw)
		cfg.LogLevel = val
	}

	if raw, ok := lookupSetting(settings, "useragent", "user_agent", "user-agent"); ok {
		val := asString(raw)
		cfg.UserAgent = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "htmloutput", "html_output", "html-output"); ok {
		val := asString(raw)
		cfg.HTMLOutput = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "resultsdb", "results_db", "results-db"); ok {
		val := asString(raw)
		cfg.ResultsDB = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "arrival"); ok {
		arrival, err := parseArrival(raw)
		if err != nil {
			return fmt.Errorf("arrival: %w", err)
		}
		if arrival.Model != "" {
			cfg.Arrival = arrival
		}
	} else if raw, ok := lookupSetting(settings, "arrivalmodel", "arrival_model", "arrival-model"); ok {
		arrival, err := parseArrival(raw)
		if err != nil {
			return fmt.Errorf("arrival_model: %w", err)
		}
		if arrival.Model != "" {
			cfg.Arrival = arrival
		}
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracingConfig(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}

func parseArrival(value interface{}) (ArrivalConfig, error) {
	if value == nil {
		return ArrivalConfig{}, nil
	}
	switch v := value.(type) {
	case string:
		model := strings.ToLower(strings.TrimSpace(v))
		if model == "" {
			return ArrivalConfig{}, nil
		}
		return ArrivalConfig{Model: ArrivalModel(model)}, nil
	default:
		entry, err := toStringKeyMap(value)
		if err != nil {
			return ArrivalConfig{}, err
		}
		if raw, ok := lookupSetting(entry, "model"); ok {
			val := asString(raw)
			return ArrivalConfig{Model: ArrivalModel(strings.ToLower(strings.TrimSpace(val)))}, nil
		}
		return ArrivalConfig{}, fmt.Errorf("model field is required")
	}
}

func parseTracingConfig(value interface{}, base TracingConfig) (TracingConfig, error) {
	if value == nil {
		return base, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	t := base
	if raw, ok := lookupSetting(entry, "endpoint"); ok {
		val := asString(raw)
		t.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "protocol"); ok {
		val := asString(raw)
		t.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(entry, "servicename", "service_name", "service-name"); ok {
		val := asString(raw)
		t.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asNumber(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("sample_rate: %w", err)
		}
		t.SampleRate = val
	}
	if raw, ok := lookupSetting(entry, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
		t.Insecure = val
	}
	if raw, ok := lookupSetting(entry, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("propagate: %w", err)
		}
		t.Propagate = &val
	}
	return t, nil
}
