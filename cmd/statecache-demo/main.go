// Runs the fraction scenario against a statecache engine and dumps the
// registry.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/unkn0wn-root/statecache"
	"github.com/unkn0wn-root/statecache/codec"
	"github.com/unkn0wn-root/statecache/config"
	asynchook "github.com/unkn0wn-root/statecache/hooks/async"
	"github.com/unkn0wn-root/statecache/otelhooks"
	"github.com/unkn0wn-root/statecache/promhooks"
	"github.com/unkn0wn-root/statecache/sloghooks"
)

var (
	configPath = flag.String("config", "", "Optional YAML/TOML config with engine settings and method kinds.")
	strict     = flag.Bool("strict", false, "Fail on unknown config keys.")
	logger     = flag.String("logger", "slog", "Engine logger: slog/zap/logrus")
	logLevel   = flag.String("log_level", "info", "Log level: debug/info/warn/error")
	logFormat  = flag.String("log_format", "json", "Log format: json/text")
	hooksKind  = flag.String("hooks", "slog", "Engine hooks: slog/prom/otel/none")
	dumpCodec  = flag.String("dump", "json", "Codec of the final registry dump: json/msgpack/cbor, empty to skip.")
	ttl        = flag.Duration("ttl", time.Second, "TTL of DoubleValue when no config is given.")
)

type runOptions struct {
	configPath string
	strict     bool
	log        logSetup
	hooks      string
	dump       string
	ttl        time.Duration
	sweepEvery time.Duration // 0 => engine default
	now        func() time.Time
	wait       func(context.Context, time.Duration) error
}

func main() {
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	err := run(ctx, os.Stdout, os.Stderr, runOptions{
		configPath: *configPath,
		strict:     *strict,
		log:        logSetup{backend: *logger, level: *logLevel, format: *logFormat},
		hooks:      *hooksKind,
		dump:       *dumpCodec,
		ttl:        *ttl,
	})
	if err != nil {
		slog.Error("Demo failed.", "err", err)
		os.Exit(1)
	}
}

// run executes the scenario. Logs go to logOut, the dump to out.
func run(ctx context.Context, out, logOut io.Writer, ro runOptions) error {
	logOut = &syncWriter{w: logOut}
	engLog, sl, flush, err := newLogger(ro.log, logOut)
	if err != nil {
		return err
	}
	defer flush()
	if ro.wait == nil {
		ro.wait = sleep
	}

	opts := statecache.Options{
		Name: "fraction",
		Dispatch: statecache.NewPolicy().
			Mutator("SetNum", "SetDenum").
			Cacheable("DoubleValue", ro.ttl),
		Logger:        engLog,
		SweepInterval: ro.sweepEvery,
		Now:           ro.now,
	}
	if ro.configPath != "" {
		res, err := config.Load(ro.configPath, config.LoadOptions{Strict: ro.strict})
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			sl.Warn("Config warning.", "warning", w)
		}
		res.File.Apply(&opts)
	}

	report, closeHooks, err := attachHooks(ro.hooks, sl, &opts)
	if err != nil {
		return err
	}

	fr := &Fraction{Num: 2, Denum: 3}
	eng, err := statecache.New(fr, opts)
	if err != nil {
		closeHooks()
		return err
	}
	defer eng.Close()
	c := cachedFraction{e: eng}

	read := func(step string) error {
		v, err := c.DoubleValue(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", step, err)
		}
		served := fr.Hit()
		s, _ := c.String(ctx)
		sl.Info("DoubleValue.", "step", step, "fraction", s, "value", v, "served", served)
		return nil
	}

	steps := []func() error{
		func() error { return read("first read") },
		func() error { return read("second read") },
		func() error { return c.SetNum(ctx, 5) },
		func() error { return read("after SetNum(5)") },
		func() error { return read("after SetNum(5), again") },
		func() error { return c.SetNum(ctx, 2) },
		func() error { return read("back to 2/3") },
		func() error { return ro.wait(ctx, ro.ttl+ro.ttl/10) },
		func() error { return read("after the ttl") },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			closeHooks()
			return err
		}
	}

	if err := dump(out, ro.dump, eng.SnapshotRegistry()); err != nil {
		closeHooks()
		return err
	}
	stats := eng.RunSweepNow()
	sl.Info("Manual sweep.", "entries_removed", stats.EntriesRemoved,
		"states_removed", stats.StatesRemoved, "states", stats.StatesRemaining)

	closeHooks()
	report()
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func dump(out io.Writer, name string, snap statecache.Snapshot) error {
	if name == "" {
		return nil
	}
	c, err := codec.Named[statecache.Snapshot](name, 0)
	if err != nil {
		return err
	}
	b, err := c.Encode(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := out.Write(b); err != nil {
		return err
	}
	if name == "json" {
		_, err = io.WriteString(out, "\n")
	}
	return err
}

// attachHooks wires the selected hooks into opts. report logs what the hooks
// collected; closeHooks drains asynchronous ones.
func attachHooks(kind string, sl *slog.Logger, opts *statecache.Options) (report, closeHooks func(), err error) {
	noop := func() {}
	switch kind {
	case "none", "":
		return noop, noop, nil
	case "slog":
		h := asynchook.New(sloghooks.New(sl, sloghooks.Options{}), 1, 256)
		opts.Hooks = h
		return noop, h.Close, nil
	case "prom":
		reg := prometheus.NewRegistry()
		opts.Hooks = promhooks.New(reg, opts.Name)
		return func() { reportProm(sl, reg) }, noop, nil
	case "otel":
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		h, err := otelhooks.New(mp.Meter("statecache-demo"), opts.Name)
		if err != nil {
			return nil, nil, err
		}
		opts.Hooks = h
		report := func() {
			reportOtel(sl, reader)
			_ = mp.Shutdown(context.Background())
		}
		return report, noop, nil
	}
	return nil, nil, errors.New("unknown hooks " + kind + " (want slog, prom, otel or none)")
}

func reportProm(sl *slog.Logger, g prometheus.Gatherer) {
	mfs, err := g.Gather()
	if err != nil {
		sl.Error("Gather failed.", "err", err)
		return
	}
	for _, mf := range mfs {
		var total float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		sl.Info("Metric.", "name", mf.GetName(), "value", total)
	}
}

func reportOtel(sl *slog.Logger, reader *sdkmetric.ManualReader) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		sl.Error("Collect failed.", "err", err)
		return
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				var total int64
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
				sl.Info("Metric.", "name", m.Name, "value", total)
			}
		}
	}
}
