package analyzer

import (
	"context"
	"path/filepath"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"github.com/m-lab/flowstats/config"
	"github.com/m-lab/flowstats/flowflag"
	"github.com/m-lab/flowstats/layout"
	"github.com/m-lab/flowstats/logging"
	"github.com/m-lab/flowstats/metrics"
	"github.com/m-lab/flowstats/model"
	"github.com/m-lab/flowstats/redis"
	"github.com/m-lab/flowstats/results"
	"github.com/m-lab/flowstats/stats"
)

// Publisher receives the summary of every flow of a run.
type Publisher interface {
	PublishSummary(ctx context.Context, s *redis.FlowSummary) error
}

// Processor analyses run directories and stores or publishes the results.
type Processor struct {
	Config *config.Config
	// Flags hands out the flags of published flows.
	Flags *flowflag.Allocator
	// Publisher is optional.
	Publisher Publisher
}

// Process handles the run directory dir according to the configuration.
func (p *Processor) Process(ctx context.Context, dir string) error {
	start := time.Now()
	res, err := p.load(ctx, dir)
	metrics.RunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Runs.WithLabelValues("error").Inc()
		return err
	}
	metrics.Runs.WithLabelValues("ok").Inc()

	if p.Config.Source == config.SourcePcap && p.Config.Output == config.OutputCSV {
		if err := results.WriteCSV(dir, res, p.Config.Method()); err != nil {
			return err
		}
	}
	run := uuid.NewString()
	summaries := stats.Flows(res)
	flags := p.assignFlags(summaries)
	defer p.releaseFlags(flags)
	if p.Config.Archive {
		if err := writeArchive(filepath.Join(dir, layout.ArchiveFile), run, dir, p.Config.DeltaT, res, summaries, flags); err != nil {
			return err
		}
	}
	if p.Publisher != nil {
		p.publish(ctx, run, summaries, flags)
	}
	logging.Logger.WithFields(log.Fields{
		"dir":      dir,
		"run":      run,
		"flows":    len(summaries),
		"windows":  len(res.Info.SyncWindows),
		"duration": time.Since(start).String(),
	}).Info("run processed")
	return nil
}

func (p *Processor) load(ctx context.Context, dir string) (*model.Results, error) {
	if p.Config.Source == config.SourceCSV {
		return FromCSV(dir)
	}
	return Run(ctx, dir, p.Config)
}

// assignFlags returns the flag of every summarized flow. Flows get no flag
// once the allocator is exhausted.
func (p *Processor) assignFlags(summaries []stats.FlowSummary) map[string]int {
	flags := make(map[string]int, len(summaries))
	if p.Flags == nil {
		return flags
	}
	for _, s := range summaries {
		f, err := p.Flags.Next()
		if err != nil {
			logging.Logger.WithError(err).WithField("flow", s.Flow).Warn("no flag for flow")
			continue
		}
		flags[s.Flow] = f
	}
	return flags
}

// releaseFlags returns the flags of a finished run to the allocator.
// Published summaries are keyed by run, so later runs may reuse them.
func (p *Processor) releaseFlags(flags map[string]int) {
	if p.Flags == nil {
		return
	}
	for _, f := range flags {
		p.Flags.Release(f)
	}
}

// publish sends the flows that have a flag. Failures are logged: the
// results on disk do not depend on the publication.
func (p *Processor) publish(ctx context.Context, run string, summaries []stats.FlowSummary, flags map[string]int) {
	for _, s := range summaries {
		flag, ok := flags[s.Flow]
		if !ok {
			continue
		}
		err := p.Publisher.PublishSummary(ctx, &redis.FlowSummary{Run: run, Flag: flag, FlowSummary: s})
		if err != nil {
			logging.Logger.WithError(err).WithFields(log.Fields{
				"flow": s.Flow,
				"flag": flag,
			}).Warn("could not publish flow summary")
		}
	}
}

func writeArchive(path, run, dir string, deltaT float64, res *model.Results, summaries []stats.FlowSummary, flags map[string]int) error {
	a, err := results.CreateArchive(path)
	if err != nil {
		return err
	}
	h := &results.ArchiveHeader{
		UUID:        run,
		Version:     results.ArchiveVersion,
		Directory:   dir,
		Created:     time.Now().UTC(),
		DeltaT:      deltaT,
		SyncWindows: res.Info.SyncWindows,
	}
	for _, s := range summaries {
		h.Flows = append(h.Flows, s.Flow)
	}
	if err := a.WriteHeader(h); err != nil {
		a.Close()
		return err
	}
	for _, s := range summaries {
		rec := &results.FlowRecord{Flow: s.Flow, Flag: flags[s.Flow], Summary: s}
		if ip, ok := model.ClientIP(s.Flow); ok {
			if bbr, ok := res.BBR.Lookup(ip.String()); ok {
				rec.BBR = results.BBRRecords(model.BBRSamples(bbr))
			}
		}
		if err := a.WriteFlow(rec); err != nil {
			a.Close()
			return err
		}
	}
	return a.Close()
}
