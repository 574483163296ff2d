package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	taskengine "github.com/Swind/go-task-engine"
	"github.com/Swind/go-task-engine/core"
	obs "github.com/Swind/go-task-engine/observability/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Submit a synthetic workload and stop the engine when it drains",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Worker count (overrides the config file)",
			},
			&cli.IntFlag{
				Name:    "tasks",
				Aliases: []string{"n"},
				Value:   100,
				Usage:   "Number of tasks to submit",
			},
			&cli.DurationFlag{
				Name:  "task-duration",
				Value: 5 * time.Millisecond,
				Usage: "How long each synthetic task sleeps",
			},
			&cli.Float64Flag{
				Name:  "fault-rate",
				Value: 0.05,
				Usage: "Fraction of tasks that return an error",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (overrides the config file)",
			},
			&cli.BoolFlag{
				Name:  "serve-metrics",
				Usage: "Expose /metrics on the configured address while running",
			},
		},
		Action: RunAction,
	}
}

func RunAction(c *cli.Context) error {
	cfg, err := core.LoadConfig(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	if n := c.Int("workers"); n > 0 {
		cfg.Workers = n
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	level, err := core.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	faultRate := c.Float64("fault-rate")
	if faultRate < 0 || faultRate > 1 {
		return cli.Exit("fault-rate must be between 0 and 1", 1)
	}

	reg := prom.NewRegistry()
	exporter, err := obs.NewMetricsExporter(cfg.MetricsNamespace, reg, obs.ExporterOptions{})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	poller, err := obs.NewSnapshotPoller(cfg.MetricsNamespace, reg, cfg.PollInterval())
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	logger := &core.DefaultLogger{MinLevel: level}
	engine, err := taskengine.NewEngine(cfg.Workers,
		taskengine.WithConfig(cfg),
		taskengine.WithLogger(logger),
		taskengine.WithMetrics(exporter),
	)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poller.AddEngine(engine.Name(), engine)
	poller.Start(ctx)
	defer poller.Stop()

	if c.Bool("serve-metrics") {
		shutdownServer := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer shutdownServer()
	}

	engine.AddFaultObserver(core.FaultObserverFunc(func(ev core.FaultEvent) {
		logger.Debug("fault observed", core.F("error", ev.Err))
	}))

	submitted := submitWorkload(ctx, engine, c.Int("tasks"), c.Duration("task-duration"), faultRate)
	logger.Info("workload submitted", core.F("tasks", submitted))

	shutdownCtx := context.Background()
	if timeout := cfg.ShutdownTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, timeout)
		defer cancel()
	}
	if err := engine.Shutdown(shutdownCtx); err != nil {
		return cli.Exit(fmt.Sprintf("Shutdown did not finish: %v", err), 1)
	}

	poller.CollectOnce()
	st := engine.Stats()
	fmt.Printf("✓ Done: engine=%s accepted=%d rejected=%d faults=%d\n",
		st.Name, st.Accepted, st.Rejected, st.Faults)
	return nil
}

// submitWorkload posts n synthetic tasks with a 1:2:1 high/normal/low mix.
func submitWorkload(ctx context.Context, engine *taskengine.Engine, n int, d time.Duration, faultRate float64) int {
	priorities := []core.Priority{core.PriorityHigh, core.PriorityNormal, core.PriorityNormal, core.PriorityLow}
	submitted := 0
	for i := range n {
		if ctx.Err() != nil {
			break
		}
		id := i
		fail := rand.Float64() < faultRate
		ok, err := engine.SubmitFunc(func() error {
			time.Sleep(d)
			if fail {
				return fmt.Errorf("synthetic task %d failed", id)
			}
			return nil
		}, priorities[i%len(priorities)])
		if err != nil || !ok {
			break
		}
		submitted++
	}
	engine.RecordQueueDepth()
	return submitted
}

func serveMetrics(addr string, reg *prom.Registry, logger core.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", core.F("addr", addr), core.F("error", err))
		}
	}()
	logger.Info("serving metrics", core.F("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
