// Package analyzer runs the analysis of experiment run directories.
//
// A run directory holds a sender side capture, a bottleneck side capture,
// one congestion control log per flow and one backlog log per shaped
// interface. The captures are streamed one after the other while the logs
// are parsed concurrently; the cross flow statistics are computed once
// everything has been read.
package analyzer

import (
	"context"
	"fmt"
	"io"

	"github.com/apex/log"
	"github.com/m-lab/go/warnonerror"
	"golang.org/x/sync/errgroup"

	"github.com/m-lab/flowstats/bucket"
	"github.com/m-lab/flowstats/capture"
	"github.com/m-lab/flowstats/config"
	"github.com/m-lab/flowstats/fairness"
	"github.com/m-lab/flowstats/layout"
	"github.com/m-lab/flowstats/logging"
	"github.com/m-lab/flowstats/metrics"
	"github.com/m-lab/flowstats/model"
	"github.com/m-lab/flowstats/results"
	"github.com/m-lab/flowstats/syncdetect"
	"github.com/m-lab/flowstats/telemetry"
	"github.com/m-lab/flowstats/tracker"
)

// cancelCheck is how many frames are read between context checks.
const cancelCheck = 4096

// Run analyses the run directory dir.
func Run(ctx context.Context, dir string, cfg *config.Config) (*model.Results, error) {
	sender, bottleneck, err := layout.Captures(dir)
	if err != nil {
		return nil, err
	}
	flowFiles, err := layout.FlowFiles(dir)
	if err != nil {
		return nil, err
	}
	bufferFiles, err := layout.BufferFiles(dir)
	if err != nil {
		return nil, err
	}

	res := model.NewResults()
	flows := make([]*telemetry.Flow, len(flowFiles))
	backlogs := make([]*telemetry.Backlog, len(bufferFiles))
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return capturePasses(ctx, sender, bottleneck, cfg, res)
	})
	for i, path := range flowFiles {
		i, path := i, path
		g.Go(func() error {
			f, err := telemetry.ParseFlowFile(path)
			flows[i] = f
			return err
		})
	}
	for i, path := range bufferFiles {
		i, path := i, path
		g.Go(func() error {
			b, err := telemetry.ParseBacklogFile(path)
			backlogs[i] = b
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	addTelemetry(res, flows, backlogs)
	addFairness(res)
	bbr := make(map[string][]model.BBRSample)
	for _, ip := range res.BBR.IDs() {
		s, _ := res.BBR.Lookup(ip)
		bbr[ip] = model.BBRSamples(s)
	}
	sync := syncdetect.Detect(bbr, syncdetect.Options{Tolerance: cfg.SyncTolerance})
	if len(bbr) > 0 {
		sync.AppendTo(res.BBRTotal)
	}
	res.Info.SyncWindows = sync.Windows
	return res, nil
}

// FromCSV reloads the series written for dir by an earlier run.
func FromCSV(dir string) (*model.Results, error) {
	return results.ReadCSV(dir)
}

// capturePasses streams the sender capture, then the bottleneck capture on
// the boundaries established by the sender.
func capturePasses(ctx context.Context, sender, bottleneck string, cfg *config.Config, res *model.Results) error {
	sp := bucket.NewSenderPass(cfg.DeltaT, tracker.Options{
		Vantage:         "sender",
		RTTProbeHorizon: cfg.RTTProbeHorizon,
	}, res)
	if err := stream(ctx, sender, "sender", sp.Observe); err != nil {
		return err
	}
	bp := bucket.NewBottleneckPass(sp.Clock(), cfg.DeltaT, tracker.Options{Vantage: "bottleneck"}, res)
	if err := stream(ctx, bottleneck, "bottleneck", bp.Observe); err != nil {
		return err
	}
	logging.Logger.WithFields(log.Fields{
		"sender_flows":     len(sp.Tracker().Connections()),
		"sender_unknown":   sp.Tracker().Unknown(),
		"bottleneck_flows": len(bp.Tracker().Connections()),
	}).Info("captures analysed")
	return nil
}

func stream(ctx context.Context, path, vantage string, observe func(*model.SegmentEvent)) error {
	r, err := capture.Open(path, vantage)
	if err != nil {
		return fmt.Errorf("opening %s capture: %w", vantage, err)
	}
	defer warnonerror.Close(r, "could not close "+path)
	for n := 0; ; n++ {
		if n%cancelCheck == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		observe(&ev)
	}
	logging.Logger.WithFields(log.Fields{
		"vantage": vantage,
		"path":    path,
		"decoded": r.Decoded(),
		"skipped": r.Skipped(),
	}).Debug("capture read")
	return nil
}

// addTelemetry stores the parsed logs into res. Samples that repeat the
// timestamp of the previous sample of their flow are dropped.
func addTelemetry(res *model.Results, flows []*telemetry.Flow, backlogs []*telemetry.Backlog) {
	dropped := 0
	for _, f := range flows {
		if _, dup := res.BBR.Lookup(f.IP); dup {
			logging.Logger.WithField("ip", f.IP).Warn("several logs for one flow, merging")
		}
		if len(f.BBR) > 0 {
			s := res.BBR.Get(f.IP)
			for _, b := range f.BBR {
				if !model.AppendBBR(s, b) {
					dropped++
				}
			}
		}
		if len(f.Cwnd) > 0 {
			s := res.Cwnd.Get(f.IP)
			for _, c := range f.Cwnd {
				if !s.Append(c.T, c.Cwnd, c.SSThresh) {
					dropped++
				}
			}
		}
	}
	for _, b := range backlogs {
		if len(b.Samples) == 0 {
			continue
		}
		s := res.BufferBacklog.Get(b.Interface)
		for _, sample := range b.Samples {
			if !s.Append(sample.T, sample.Bits) {
				dropped++
			}
		}
	}
	if dropped > 0 {
		metrics.SamplesDropped.WithLabelValues("telemetry").Add(float64(dropped))
		logging.Logger.WithField("samples", dropped).Debug("dropped out of order telemetry samples")
	}
}

func addFairness(res *model.Results) {
	for _, m := range []struct {
		id string
		ss *model.SeriesSet
	}{
		{model.FairnessThroughputID, res.Throughput},
		{model.FairnessSendingRateID, res.SendingRate},
	} {
		if samples := fairness.Compute(m.ss); len(samples) > 0 {
			fairness.AppendTo(res.Fairness.Get(m.id), samples)
		}
	}
}
