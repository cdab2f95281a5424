package main

import (
	"context"
	"flag"
	"os"

	"github.com/go-kratos/kratos/v2"
	kconfig "github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	klog "github.com/go-kratos/kratos/v2/log"

	"github.com/compintel/compradar/internal/conf"
	"github.com/compintel/compradar/internal/engine"
	"github.com/compintel/compradar/internal/export"
	"github.com/compintel/compradar/internal/logger"
	"github.com/compintel/compradar/internal/model"
	"github.com/compintel/compradar/internal/pipeline"
	"github.com/compintel/compradar/internal/schedule"
	"github.com/compintel/compradar/internal/server"
	"github.com/compintel/compradar/internal/service"
	"github.com/compintel/compradar/internal/store"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the registered service name.
	Name = "compradar"
	// Version is stamped at build time.
	Version string
	// flagconf is the config file path flag.
	flagconf string

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()
	klogger := klog.With(klog.NewStdLogger(os.Stdout),
		"ts", klog.DefaultTimestamp,
		"caller", klog.DefaultCaller,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)

	c := kconfig.New(
		kconfig.WithSource(
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}

	app, cleanup, err := initApp(&bc, klogger)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	if err := app.Run(); err != nil {
		panic(err)
	}
}

// initApp assembles the full application by hand.
func initApp(bc *conf.Bootstrap, klogger klog.Logger) (*kratos.App, func(), error) {
	ctx := context.Background()

	var db *conf.Database
	if bc.Data != nil {
		db = bc.Data.Database
	}
	cfg := bc.Pipeline.AsPipelineConfig(db)

	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		return nil, nil, err
	}

	st, closeStore, err := pipeline.NewStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	eng, err := pipeline.NewEngine(ctx, cfg, st)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	exporter := export.NewAdapter(eng, export.NewCSVRenderer(), export.NewPDFRenderer())
	svc := service.NewAnalysisService(st, eng, exporter, klogger)
	hs := server.NewHTTPServer(bc.Server, svc)

	sched := schedule.New()
	if cfg.Schedule != "" {
		job := recurringRun(st, eng, cfg.Competitors)
		if err := sched.Schedule(cfg.Schedule, job); err != nil {
			closeStore()
			return nil, nil, err
		}
		sched.Start()
	}

	app := kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(klogger),
		kratos.Server(hs),
	)
	cleanup := func() {
		sched.Stop()
		closeStore()
	}
	return app, cleanup, nil
}

// recurringRun starts an analysis over the configured competitor names,
// creating competitor records that do not exist yet.
func recurringRun(st store.Store, eng *engine.Engine, names []string) func() {
	return func() {
		ctx := context.Background()
		ids, err := pipeline.EnsureCompetitors(ctx, st, names)
		if err != nil {
			logger.Log.Errorf("scheduled run: resolve competitors: %v", err)
			return
		}
		if len(ids) == 0 {
			logger.Log.Warn("scheduled run skipped: no competitors configured")
			return
		}
		run, err := eng.StartRun(ctx, ids, model.RunOptions{GenerateInsights: true})
		if err != nil {
			logger.Log.Errorf("scheduled run: start: %v", err)
			return
		}
		if err := eng.Execute(ctx, run.ID); err != nil {
			logger.Log.Errorf("scheduled run %d: %v", run.ID, err)
		}
	}
}
