package cmd

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"property-scraper/scraper/frontier"
	"property-scraper/services"
)

const (
	stageDiscover = "discover"
	stageIngest   = "ingest"
	stageParse    = "parse"
)

// pipeline lists the stages in dependency order.
var pipeline = []string{stageDiscover, stageIngest, stageParse}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the crawl pipeline",
	Long: `Runs discovery, raw ingestion and parsing. Stages always execute in that order
whatever order they are given in; a failed stage is reported and the following
stages still run over whatever work is already queued.`,
	RunE: withApp(runPipeline),
}

func init() {
	RootCmd.AddCommand(runCmd)
	runCmd.Flags().StringSlice("stages", pipeline, "stages to run: discover, ingest, parse")
	runCmd.Flags().Bool("notify", false, "post the run summary to Slack")
}

// parseStages validates names and returns them in pipeline order without duplicates.
func parseStages(names []string) ([]string, error) {
	want := map[string]bool{}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if !slices.Contains(pipeline, n) {
			return nil, fmt.Errorf("unknown stage %q (want one of %s)", n, strings.Join(pipeline, ", "))
		}
		want[n] = true
	}
	if len(want) == 0 {
		return nil, errors.New("no stages selected")
	}

	var out []string
	for _, s := range pipeline {
		if want[s] {
			out = append(out, s)
		}
	}
	return out, nil
}

func runPipeline(ctx context.Context, a *app, cmd *cobra.Command) error {
	names, _ := cmd.Flags().GetStringSlice("stages")
	send, _ := cmd.Flags().GetBool("notify")

	stages, err := parseStages(names)
	if err != nil {
		return err
	}

	if err := a.db.Migrate(); err != nil {
		return err
	}

	a.logger.Info("=== Property scraper starting: stages %s ===", strings.Join(stages, ","))
	a.logger.Info("Config: concurrency %d | rate %dms | batch %d | max pages %d | %d cities",
		a.cfg.MaxConcurrency, a.cfg.RateLimitMs, a.cfg.BatchSize, a.cfg.MaxPages, len(a.cfg.Targets.Cities))

	fetcher := a.fetcher()
	var failed []string

	for _, stage := range stages {
		if ctx.Err() != nil {
			break
		}
		logger := a.logger.With("stage", stage)

		var err error
		switch stage {
		case stageDiscover:
			var walker *frontier.Walker
			walker, err = frontier.NewWalker(a.cfg.BaseURL, fetcher, a.db, a.cfg.MaxPages, logger)
			if err == nil {
				_, err = services.NewDiscoveryService(a.db, walker, a.cfg.Targets, logger).Run(ctx)
			}
		case stageIngest:
			_, err = services.NewIngestService(a.db, fetcher, a.stageOptions(stage), logger).Run(ctx)
		case stageParse:
			var parser *services.ParseService
			parser, err = services.NewParseService(a.db, a.cfg.BaseURL, a.stageOptions(stage), logger)
			if err == nil {
				_, err = parser.Run(ctx)
			}
		}

		if err != nil {
			logger.Error("[%s] stage failed: %v", stage, err)
			failed = append(failed, fmt.Sprintf("%s: %v", stage, err))
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := a.report(ctx, send, failed...); err != nil {
		a.logger.Error("[summary] %v", err)
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d stage(s) failed: %s", len(failed), strings.Join(failed, "; "))
	}
	a.logger.Info("=== Property scraper finished ===")
	return nil
}
