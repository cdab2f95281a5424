// Command compradar runs a single competitor analysis from a YAML config
// and prints the comparison, optionally writing an export artifact.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/compintel/compradar/internal/config"
	"github.com/compintel/compradar/internal/export"
	"github.com/compintel/compradar/internal/logger"
	"github.com/compintel/compradar/internal/model"
	"github.com/compintel/compradar/internal/pipeline"
)

var (
	flagconf        = flag.String("conf", "configs/cli.yaml", "config path")
	flagCompetitors = flag.String("competitors", "", "comma-separated competitor names, overrides config")
	flagInsights    = flag.Bool("insights", false, "generate insights even if disabled in config")
	flagDaysBack    = flag.Int("days", 0, "override collection window in days")
	flagExport      = flag.String("export", "", "write an export artifact: csv or pdf")
	flagOut         = flag.String("out", "", "export output path, defaults to the artifact name")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*flagconf)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("init logger: %v", err)
	}

	names := cfg.Competitors
	if *flagCompetitors != "" {
		names = nil
		for _, n := range strings.Split(*flagCompetitors, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
	}
	if len(names) == 0 {
		logger.Log.Fatal("no competitors configured; set competitors in config or pass -competitors")
	}
	if *flagInsights {
		cfg.Insights.Enabled = true
	}

	ctx := context.Background()

	st, closeStore, err := pipeline.NewStore(cfg)
	if err != nil {
		logger.Log.Fatalf("store: %v", err)
	}
	defer closeStore()

	eng, err := pipeline.NewEngine(ctx, cfg, st)
	if err != nil {
		logger.Log.Fatalf("pipeline: %v", err)
	}

	ids, err := pipeline.EnsureCompetitors(ctx, st, names)
	if err != nil {
		logger.Log.Fatalf("resolve competitors: %v", err)
	}

	opts := model.RunOptions{
		GenerateInsights: cfg.Insights.Enabled,
		DaysBack:         cfg.Collection.DaysBack,
		MaxDocs:          cfg.Collection.MaxDocs,
		TopTopics:        cfg.Collection.TopTopics,
		BucketHours:      cfg.Collection.BucketHours,
		CreatedBy:        "cli",
	}
	if *flagDaysBack > 0 {
		opts.DaysBack = *flagDaysBack
	}

	run, err := eng.StartRun(ctx, ids, opts)
	if err != nil {
		logger.Log.Fatalf("start run: %v", err)
	}
	logger.Log.Infof("run %d started over %d competitors", run.ID, len(ids))

	if err := eng.Execute(ctx, run.ID); err != nil {
		logger.Log.Fatalf("run %d: %v", run.ID, err)
	}

	view, err := eng.Status(ctx, run.ID)
	if err != nil {
		logger.Log.Fatalf("status: %v", err)
	}
	if view.Status == model.StatusFailed {
		for _, e := range view.Errors {
			logger.Log.Errorf("  [%s] %s", e.Stage, e.Message)
		}
		logger.Log.Fatalf("run %d failed", run.ID)
	}

	res, err := eng.Result(ctx, run.ID)
	if err != nil {
		logger.Log.Fatalf("result: %v", err)
	}
	printComparison(res)

	if *flagExport != "" {
		writeExport(ctx, eng, run.ID)
	}
}

func printComparison(res *model.ExportModel) {
	fmt.Printf("\nRun %d (%s): %d mentions\n\n", res.Run.ID, res.Run.Status, res.Comparison.TotalMentions)
	for _, s := range res.Comparison.Summaries {
		fmt.Printf("%-24s mentions=%-3d sentiment=%+.2f share=%5.1f%% visibility=%3.0f trend=%s\n",
			s.CompetitorName, s.MentionCount, s.MeanSentiment, s.ShareOfVoice*100, s.VisibilityScore, s.TrendDirection)
		for _, t := range s.TopTopics {
			fmt.Printf("    topic %-14s %d\n", t.Topic, t.Count)
		}
	}
	if len(res.Insights) > 0 {
		fmt.Println("\nInsights:")
		for _, i := range res.Insights {
			title := i.Title
			if title != "" {
				title += ": "
			}
			fmt.Printf("  [%s] %s%s\n", i.Kind, title, i.Text)
		}
	}
}

func writeExport(ctx context.Context, results export.ResultProvider, runID int64) {
	adapter := export.NewAdapter(results, export.NewCSVRenderer(), export.NewPDFRenderer())
	f, err := adapter.Export(ctx, runID, export.Format(*flagExport))
	if err != nil {
		logger.Log.Fatalf("export: %v", err)
	}
	path := *flagOut
	if path == "" {
		path = f.Name
	}
	if err := os.WriteFile(path, f.Data, 0o644); err != nil {
		logger.Log.Fatalf("write %s: %v", path, err)
	}
	logger.Log.Infof("export written to %s (%d bytes)", path, len(f.Data))
}
