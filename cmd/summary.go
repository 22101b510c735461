package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"property-scraper/notify"
	"property-scraper/services"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print today's crawl counts",
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command) error {
		send, _ := cmd.Flags().GetBool("notify")
		return a.report(ctx, send)
	}),
}

func init() {
	RootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().Bool("notify", false, "also post the summary to Slack")
}

// report prints today's summary and optionally posts it to Slack.
func (a *app) report(ctx context.Context, send bool, stageErrors ...string) error {
	svc := services.NewSummaryService(a.db, a.logger)
	r, err := svc.Generate(ctx, stageErrors...)
	if err != nil {
		return err
	}
	svc.Print(os.Stdout, r)
	if send {
		notify.NewSlack(a.cfg.SlackWebhookURL, a.logger).Notify(ctx, services.Text(r))
	}
	return nil
}
