// Package config holds the settings of a flowstats batch. Settings come
// from an optional YAML file, overridden by command line flags, which in
// turn may be given as environment variables.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/apex/log"
	"gopkg.in/yaml.v3"

	"github.com/m-lab/flowstats/compressx"
	"github.com/m-lab/flowstats/rtt"
)

// Input sources.
const (
	SourcePcap = "pcap"
	SourceCSV  = "csv"
)

// Output formats.
const (
	OutputCSV  = "csv"
	OutputNone = "none"
)

// Config is the configuration of one invocation.
type Config struct {
	// Directory is the run directory, or the root of run directories when
	// Recursive is set.
	Directory string `yaml:"directory"`
	Source    string `yaml:"source"`
	Output    string `yaml:"output"`
	// DeltaT is the bucket width in seconds.
	DeltaT    float64 `yaml:"delta_t"`
	Recursive bool    `yaml:"recursive"`
	// OnlyNew skips run directories that were already analysed.
	OnlyNew     bool   `yaml:"only_new"`
	Compression string `yaml:"compression"`
	// SyncTolerance is the slack allowed when comparing the window gain
	// sum with the number of started flows.
	SyncTolerance   float64       `yaml:"sync_tolerance"`
	RTTProbeHorizon time.Duration `yaml:"rtt_probe_horizon"`
	// Archive enables the JSONL archive next to the CSV files.
	Archive  bool   `yaml:"archive"`
	LogLevel string `yaml:"log_level"`

	Redis   RedisConfig   `yaml:"redis"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// RedisConfig configures the publication of flow summaries.
type RedisConfig struct {
	// Addr is empty to disable publication.
	Addr string `yaml:"addr"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is empty to disable the endpoint.
	Listen string `yaml:"listen"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Directory:       ".",
		Source:          SourcePcap,
		Output:          OutputCSV,
		DeltaT:          0.2,
		Compression:     string(compressx.Gzip),
		RTTProbeHorizon: rtt.DefaultHorizon,
		LogLevel:        "info",
	}
}

// Load reads the YAML file at path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// RegisterFlags binds every setting of c to a flag of fs, using the
// current values as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Directory, "directory", c.Directory, "Run directory, or root of run directories with -recursive")
	fs.StringVar(&c.Source, "source", c.Source, "Analyse captures (pcap) or reload CSV files (csv)")
	fs.StringVar(&c.Output, "output", c.Output, "Output format: csv or none")
	fs.Float64Var(&c.DeltaT, "delta_t", c.DeltaT, "Bucket width in seconds")
	fs.BoolVar(&c.Recursive, "recursive", c.Recursive, "Process every run directory below -directory")
	fs.BoolVar(&c.OnlyNew, "only_new", c.OnlyNew, "Skip run directories that already hold results")
	fs.StringVar(&c.Compression, "compression", c.Compression, "Compression of the CSV files: none, gzip or bzip2")
	fs.Float64Var(&c.SyncTolerance, "sync_tolerance", c.SyncTolerance, "Absolute tolerance of the synchronization criterion")
	fs.DurationVar(&c.RTTProbeHorizon, "rtt_probe_horizon", c.RTTProbeHorizon, "How long a timestamp probe waits for its echo")
	fs.BoolVar(&c.Archive, "archive", c.Archive, "Also write a JSONL archive of every run")
	fs.StringVar(&c.LogLevel, "log.level", c.LogLevel, "Log level")
	fs.StringVar(&c.Redis.Addr, "redis.addr", c.Redis.Addr, "Redis address for flow summaries; empty disables publication")
	fs.StringVar(&c.Metrics.Listen, "metrics.listen", c.Metrics.Listen, "Address of the Prometheus endpoint; empty disables it")
}

// Overlay copies into c the flags that were explicitly set on fs, from the
// command line or from the environment.
func (c *Config) Overlay(fs *flag.FlagSet) error {
	own := flag.NewFlagSet("overlay", flag.ContinueOnError)
	c.RegisterFlags(own)
	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil || own.Lookup(f.Name) == nil {
			return
		}
		err = own.Set(f.Name, f.Value.String())
	})
	return err
}

// Validate checks that the settings are consistent.
func (c *Config) Validate() error {
	switch c.Source {
	case SourcePcap, SourceCSV:
	default:
		return fmt.Errorf("unknown source %q", c.Source)
	}
	switch c.Output {
	case OutputCSV, OutputNone:
	default:
		return fmt.Errorf("unknown output %q", c.Output)
	}
	if c.DeltaT <= 0 {
		return fmt.Errorf("delta_t must be positive, got %v", c.DeltaT)
	}
	if _, err := compressx.ParseMethod(c.Compression); err != nil {
		return err
	}
	if c.SyncTolerance < 0 {
		return fmt.Errorf("sync_tolerance must not be negative, got %v", c.SyncTolerance)
	}
	if c.RTTProbeHorizon < 0 {
		return fmt.Errorf("rtt_probe_horizon must not be negative, got %v", c.RTTProbeHorizon)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Method returns the compression method of the CSV files. It assumes a
// validated configuration.
func (c *Config) Method() compressx.Method {
	m, _ := compressx.ParseMethod(c.Compression)
	return m
}
