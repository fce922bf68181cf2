package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/m-lab/go/rtx"

	"github.com/m-lab/flowstats/compressx"
)

const sample = `
directory: /data/runs
recursive: true
delta_t: 0.5
compression: bzip2
sync_tolerance: 0.05
rtt_probe_horizon: 30s
archive: true
redis:
  addr: localhost:6379
metrics:
  listen: :9990
`

func TestDefault(t *testing.T) {
	cfg := Default()
	rtx.Must(cfg.Validate(), "default config is invalid")
	if cfg.DeltaT != 0.2 || cfg.Source != SourcePcap || cfg.Method() != compressx.Gzip {
		t.Errorf("Default() = %+v", cfg)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowstats.yaml")
	rtx.Must(os.WriteFile(path, []byte(sample), 0644), "Could not write config")
	got, err := Load(path)
	rtx.Must(err, "Load failed")
	want := Default()
	want.Directory = "/data/runs"
	want.Recursive = true
	want.DeltaT = 0.5
	want.Compression = "bzip2"
	want.SyncTolerance = 0.05
	want.RTTProbeHorizon = 30 * time.Second
	want.Archive = true
	want.Redis.Addr = "localhost:6379"
	want.Metrics.Listen = ":9990"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	rtx.Must(got.Validate(), "loaded config is invalid")
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load should fail on a missing file")
	}
	bad := filepath.Join(dir, "bad.yaml")
	rtx.Must(os.WriteFile(bad, []byte("delta_t: [1, 2]\n"), 0644), "Could not write config")
	if _, err := Load(bad); err == nil {
		t.Error("Load should fail on a malformed file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"source", func(c *Config) { c.Source = "pdf" }},
		{"output", func(c *Config) { c.Output = "pdf+csv" }},
		{"delta_t", func(c *Config) { c.DeltaT = 0 }},
		{"compression", func(c *Config) { c.Compression = "zip" }},
		{"sync_tolerance", func(c *Config) { c.SyncTolerance = -1 }},
		{"rtt_probe_horizon", func(c *Config) { c.RTTProbeHorizon = -time.Second }},
		{"log_level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(c)
			if err := c.Validate(); err == nil {
				t.Errorf("Validate() accepted a bad %s", tt.name)
			}
		})
	}
}

func TestOverlay(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	flags := Default()
	flags.RegisterFlags(fs)
	fs.String("config", "", "unrelated flag")
	rtx.Must(fs.Parse([]string{"-delta_t=0.1", "-redis.addr=redis:6379", "-config=x.yaml"}), "Parse failed")

	cfg := Default()
	cfg.DeltaT = 0.5
	cfg.Directory = "/from/file"
	rtx.Must(cfg.Overlay(fs), "Overlay failed")
	if cfg.DeltaT != 0.1 || cfg.Redis.Addr != "redis:6379" {
		t.Errorf("flags were not applied: %+v", cfg)
	}
	if cfg.Directory != "/from/file" {
		t.Errorf("unset flag overrode the file: %q", cfg.Directory)
	}
}
