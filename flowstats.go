// flowstats analyses the captures and telemetry logs of congestion control
// experiments and writes per-flow time series and summaries.
package main

import (
	"context"
	"flag"
	"net/http"
	"time"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/httpx"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/go/warnonerror"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m-lab/flowstats/analyzer"
	"github.com/m-lab/flowstats/config"
	"github.com/m-lab/flowstats/flowflag"
	"github.com/m-lab/flowstats/layout"
	"github.com/m-lab/flowstats/logging"
	"github.com/m-lab/flowstats/redis"
)

var (
	cfg        = config.Default()
	configFile = flag.String("config", "", "YAML configuration file; explicitly set flags override it")

	// Context for the whole program.
	ctx, cancel = context.WithCancel(context.Background())
)

func init() {
	cfg.RegisterFlags(flag.CommandLine)
}

// loadConfig returns the effective configuration: defaults, then the YAML
// file, then the flags set on the command line or in the environment.
func loadConfig() *config.Config {
	if *configFile == "" {
		return cfg
	}
	c, err := config.Load(*configFile)
	rtx.Must(err, "Could not load configuration")
	rtx.Must(c.Overlay(flag.CommandLine), "Could not apply flags to configuration")
	return c
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from environment")
	defer cancel()

	c := loadConfig()
	rtx.Must(c.Validate(), "Invalid configuration")
	rtx.Must(logging.SetLevel(c.LogLevel), "Could not set log level")

	if c.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{
			Addr:    c.Metrics.Listen,
			Handler: logging.MakeAccessLogHandler(mux),
		}
		rtx.Must(httpx.ListenAndServeAsync(srv), "Could not start metrics server")
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			warnonerror.Close(shutdownCloser{srv, sctx}, "could not stop metrics server")
		}()
	}

	p := &analyzer.Processor{
		Config: c,
		Flags:  flowflag.New(flowflag.DefaultMin, flowflag.DefaultMax, time.Now().UnixNano()),
	}
	if c.Redis.Addr != "" {
		rc := redis.NewClient(c.Redis.Addr)
		defer warnonerror.Close(rc, "could not close redis client")
		if err := rc.Ping(ctx); err != nil {
			logging.Logger.WithError(err).Warn("redis unavailable, summaries will not be published")
		} else {
			p.Publisher = rc
		}
	}

	dirs, err := layout.FindRunDirs(c.Directory, c.Recursive, c.OnlyNew)
	rtx.Must(err, "Could not list run directories")
	if len(dirs) == 0 {
		logging.Logger.WithField("directory", c.Directory).Warn("no run directory found")
	}
	failed := 0
	for _, dir := range dirs {
		if ctx.Err() != nil {
			break
		}
		if err := p.Process(ctx, dir); err != nil {
			failed++
			logging.Logger.WithError(err).WithField("dir", dir).Error("run failed")
		}
	}
	logging.Logger.WithField("runs", len(dirs)).WithField("failed", failed).Info("done")
}

// shutdownCloser gracefully stops an http.Server on Close.
type shutdownCloser struct {
	srv *http.Server
	ctx context.Context
}

func (s shutdownCloser) Close() error {
	return s.srv.Shutdown(s.ctx)
}
