package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	threadservice "github.com/Swind/go-thread-service"
	"github.com/Swind/go-thread-service/config"
	"github.com/Swind/go-thread-service/core"
	obs "github.com/Swind/go-thread-service/observability/prometheus"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"
)

const (
	configFlag       = "config"
	tasksFlag        = "tasks"
	taskDurationFlag = "task-duration"
	poolFlag         = "pool"
	metricsAddrFlag  = "metrics-addr"
	watchFlag        = "watch"
	drainFlag        = "drain"
	lingerFlag       = "linger"
)

func main() {
	grip.EmergencyFatal(buildApp().Run(os.Args))
}

func buildApp() *cli.App {
	app := cli.NewApp()
	app.Name = "threadservice"
	app.Usage = "run workloads on bounded thread pools"
	app.Version = "0.1.0"
	app.Commands = []cli.Command{
		runCommand(),
		checkCommand(),
	}
	return app
}

func checkCommand() cli.Command {
	return cli.Command{
		Name:  "check",
		Usage: "validate a configuration file",
		Flags: []cli.Flag{
			cli.StringFlag{Name: configFlag, Usage: "path to a .yaml or .toml file"},
		},
		Action: func(c *cli.Context) error {
			path := c.String(configFlag)
			if path == "" {
				return errors.New("--config is required")
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			grip.Info(message.Fields{
				"message":        "configuration valid",
				"path":           path,
				"global_threads": cfg.GlobalThreads,
				"pools":          len(cfg.Pools),
			})
			return nil
		},
	}
}

func runCommand() cli.Command {
	return cli.Command{
		Name:  "run",
		Usage: "submit a synthetic workload and serve pool metrics",
		Flags: []cli.Flag{
			cli.StringFlag{Name: configFlag, Usage: "path to a .yaml or .toml file"},
			cli.IntFlag{Name: tasksFlag, Value: 32, Usage: "number of tasks to submit"},
			cli.DurationFlag{Name: taskDurationFlag, Value: 20 * time.Millisecond, Usage: "how long each task sleeps"},
			cli.StringFlag{Name: poolFlag, Value: "global", Usage: "name of the pool receiving the workload"},
			cli.StringFlag{Name: metricsAddrFlag, Usage: "listen address for /metrics (overrides the config file)"},
			cli.BoolFlag{Name: watchFlag, Usage: "reapply the config file when it changes"},
			cli.BoolTFlag{Name: drainFlag, Usage: "run queued tasks before shutting down"},
			cli.DurationFlag{Name: lingerFlag, Usage: "keep serving metrics this long after the workload"},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	cfg := config.Default()
	if path := c.String(configFlag); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return err
		}
	}
	if addr := c.String(metricsAddrFlag); addr != "" {
		cfg.MetricsAddr = addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prom.NewRegistry()
	exporter, err := obs.NewMetricsExporter("threadservice", reg, obs.ExporterOptions{})
	if err != nil {
		return errors.Wrap(err, "create metrics exporter")
	}
	poller, err := obs.NewSnapshotPoller(reg, cfg.Interval())
	if err != nil {
		return errors.Wrap(err, "create snapshot poller")
	}

	logger := core.NewDefaultLogger()
	svc := threadservice.NewService(cfg.ServiceConfig(logger, exporter))
	if err := svc.Activate(); err != nil {
		return errors.Wrap(err, "activate thread service")
	}
	defer svc.Deactivate()

	poller.AddService(svc)
	poller.Start(ctx)
	defer poller.Stop()

	if cfg.MetricsAddr != "" {
		server := serveMetrics(cfg.MetricsAddr, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			grip.Warning(server.Shutdown(shutdownCtx))
		}()
	}

	if path := c.String(configFlag); path != "" && c.Bool(watchFlag) {
		w, err := config.NewWatcher(path, svc, logger)
		if err != nil {
			return err
		}
		w.Start(ctx)
		defer w.Close()
	}

	poolID, ok := svc.PoolByName(c.String(poolFlag))
	if !ok {
		return errors.Errorf("no pool named %q", c.String(poolFlag))
	}

	submitWorkload(svc, poolID, c.Int(tasksFlag), c.Duration(taskDurationFlag))

	pool, _ := svc.Pool(poolID)
	if c.BoolT(drainFlag) {
		if err := pool.WaitContext(ctx, core.DrainBlockInvoke); err != nil {
			grip.Warning(message.WrapError(err, "workload interrupted"))
		}
	}
	reportStats(svc)

	if linger := c.Duration(lingerFlag); linger > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(linger):
		}
	}
	return nil
}

func serveMetrics(addr string, reg *prom.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			grip.Error(message.WrapError(err, message.Fields{"message": "metrics server failed", "addr": addr}))
		}
	}()
	grip.Info(message.Fields{"message": "serving metrics", "addr": addr})
	return server
}

func submitWorkload(svc *threadservice.Service, poolID threadservice.PoolID, n int, d time.Duration) {
	overflowed := 0
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("sleep-%d", i)
		res, err := svc.Submit(name, core.TaskFunc(func(ctx context.Context, th *core.Threader) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		}), poolID)
		if err != nil {
			grip.Warning(message.WrapError(err, message.Fields{"message": "submit failed", "task": name}))
			continue
		}
		if res.Overflow {
			overflowed++
		}
	}
	grip.Info(message.Fields{
		"message":     "workload submitted",
		"pool_id":     poolID,
		"tasks":       n,
		"overflowed":  overflowed,
		"peak_queued": svc.PeakQueued(),
	})
}

func reportStats(svc *threadservice.Service) {
	stats := svc.Stats()
	ids := make([]threadservice.PoolID, 0, len(stats))
	for id := range stats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		s := stats[id]
		grip.Info(message.Fields{
			"message":     "pool stats",
			"pool_id":     id,
			"pool":        s.Name,
			"state":       s.State.String(),
			"allocated":   s.Allocated,
			"max_threads": s.MaxThreads,
			"completed":   s.Completed,
			"overflowed":  s.Overflowed,
			"task_errors": s.TaskErrors,
		})
	}
}
