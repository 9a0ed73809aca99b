// Package config handles TOML configuration for towercmp.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/yairfalse/towercmp/pkg/resource"
)

// Export formats supported for the structured report.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
)

// Config is the root configuration structure.
type Config struct {
	Tower    SourceConfig   `toml:"tower"`
	AWX      SourceConfig   `toml:"awx"`
	HTTP     HTTPConfig     `toml:"http"`
	Compare  CompareConfig  `toml:"compare"`
	Report   ReportConfig   `toml:"report"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	OTEL     OTELConfig     `toml:"otel"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Log      LogConfig      `toml:"log"`
}

// SourceConfig describes one side of the comparison.
type SourceConfig struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

// HTTPConfig holds client settings shared by both sources.
type HTTPConfig struct {
	InsecureSkipVerify *bool         `toml:"insecure_skip_verify"`
	TimeoutStr         string        `toml:"timeout"`
	Timeout            time.Duration `toml:"-"`
}

// SkipVerify reports whether TLS certificate checks are disabled.
// Unset means disabled.
func (h HTTPConfig) SkipVerify() bool {
	return h.InsecureSkipVerify == nil || *h.InsecureSkipVerify
}

// CompareConfig selects what gets compared.
type CompareConfig struct {
	ResourceTypes   []string `toml:"resource_types"`
	Exclude         []string `toml:"exclude"`
	ContinueOnError bool     `toml:"continue_on_error"`
}

// ReportConfig holds report output settings.
type ReportConfig struct {
	Path         string `toml:"path"`
	ExportPath   string `toml:"export_path"`
	ExportFormat string `toml:"export_format"`
}

// SnapshotConfig holds snapshot store settings.
type SnapshotConfig struct {
	Path string `toml:"path"`
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string            `toml:"endpoint"`
	Insecure    bool              `toml:"insecure"`
	ServiceName string            `toml:"service_name"`
	Traces      TracesConfig      `toml:"traces"`
	Metrics     OTLPMetricsConfig `toml:"metrics"`
}

// TracesConfig holds tracing settings.
type TracesConfig struct {
	Enabled    bool    `toml:"enabled"`
	SampleRate float64 `toml:"sample_rate"`
}

// OTLPMetricsConfig toggles OTLP metric export.
type OTLPMetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// MetricsConfig holds local metric output settings.
type MetricsConfig struct {
	Textfile string `toml:"textfile"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	_ = parseTimeout(cfg)
	return cfg
}

// Load reads and parses a TOML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := parseTimeout(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Tower.Name == "" {
		cfg.Tower.Name = resource.DefaultSides.Left
	}
	if cfg.AWX.Name == "" {
		cfg.AWX.Name = resource.DefaultSides.Right
	}
	if len(cfg.Compare.ResourceTypes) == 0 {
		for _, t := range resource.AllTypes {
			cfg.Compare.ResourceTypes = append(cfg.Compare.ResourceTypes, string(t))
		}
	}
	if cfg.Report.Path == "" {
		cfg.Report.Path = "comparison_output.txt"
	}
	if cfg.Report.ExportFormat == "" {
		cfg.Report.ExportFormat = FormatJSON
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "towercmp"
	}
	if cfg.HTTP.TimeoutStr == "" {
		cfg.HTTP.TimeoutStr = "0s"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func parseTimeout(cfg *Config) error {
	d, err := time.ParseDuration(cfg.HTTP.TimeoutStr)
	if err != nil {
		return fmt.Errorf("parse timeout %q: %w", cfg.HTTP.TimeoutStr, err)
	}
	cfg.HTTP.Timeout = d
	return nil
}

// Sides returns the configured source names.
func (c *Config) Sides() resource.Sides {
	return resource.Sides{Left: c.Tower.Name, Right: c.AWX.Name}
}

// Types returns the selected resource types in processing order.
func (c *Config) Types() ([]resource.Type, error) {
	selected := make(map[resource.Type]bool, len(c.Compare.ResourceTypes))
	for _, s := range c.Compare.ResourceTypes {
		t, err := resource.ParseType(s)
		if err != nil {
			return nil, fmt.Errorf("compare: %w", err)
		}
		selected[t] = true
	}

	types := make([]resource.Type, 0, len(selected))
	for _, t := range resource.AllTypes {
		if selected[t] {
			types = append(types, t)
		}
	}
	return types, nil
}

// Validate checks the configuration is valid. Source URLs are only required
// when the comparison talks to the live APIs.
func (c *Config) Validate(online bool) error {
	if online {
		if err := validateURL("tower", c.Tower.URL); err != nil {
			return err
		}
		if err := validateURL("awx", c.AWX.URL); err != nil {
			return err
		}
	}
	if c.Tower.Name == c.AWX.Name {
		return fmt.Errorf("source names must differ (both %q)", c.Tower.Name)
	}
	if _, err := c.Types(); err != nil {
		return err
	}
	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("http: timeout must not be negative")
	}
	switch c.Report.ExportFormat {
	case FormatJSON, FormatYAML, FormatCSV:
	default:
		return fmt.Errorf("report: unknown export_format %q (must be json, yaml or csv)", c.Report.ExportFormat)
	}
	if c.OTEL.Traces.SampleRate < 0.0 || c.OTEL.Traces.SampleRate > 1.0 {
		return fmt.Errorf("otel: traces.sample_rate must be between 0.0 and 1.0 (got %v)", c.OTEL.Traces.SampleRate)
	}
	return nil
}

func validateURL(section, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s: url required", section)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: parse url: %w", section, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s: url must be absolute http(s), got %q", section, raw)
	}
	return nil
}
