package main

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/torosent/trafficgen/internal/config"
)

const exampleUsage = `Examples:
  trafficgen --url http://192.168.65.129:5601 --browsers 3 --refresh-rate 5 --jitter 1 --duration 20
  trafficgen --config sites.yml --navigator http --dashboard
  trafficgen --config sites.yml --duration 0 --results-db runs.db

Without --url or --config, config.yml in the working directory is used.
`

const sampleConfig = `# config.yml
urls:
  - https://www.example.com
  - http://192.168.65.129:5601
dns:
  - 8.8.8.8
  - 1.1.1.1:53
refresh_rate: 20   # seconds between page loads
jitter: 10         # maximum random deviation, seconds
duration: 60       # seconds; 0 runs until interrupted
dns_frequency: 20  # percent of page loads followed by a lookup
browsers: 10
visit_mode: random # or round_robin
navigator: chrome  # or http
thresholds:
  - "page_load_duration:p95 < 5000"
  - "page_load_failed:rate < 0.05"
`

func printUsage(w io.Writer) error {
	if _, err := fmt.Fprint(w, exampleUsage); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nSample configuration:\n\n%s", sampleConfig)
	return err
}

func printConfig(w io.Writer, cfg *config.Config) error {
	out, err := configYAML(cfg)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

func configYAML(cfg *config.Config) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return buf.String(), nil
}
