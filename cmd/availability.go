package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"property-scraper/services"
)

var availabilityCmd = &cobra.Command{
	Use:   "check-availability",
	Short: "Re-check stored listings and mark removed ones unavailable",
	RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command) error {
		logger := a.logger.With("stage", "availability")
		svc := services.NewAvailabilityService(a.db, a.fetcher(), a.stageOptions("availability"), logger)
		n, err := svc.Run(ctx)
		if err != nil {
			return err
		}
		logger.Info("[availability] %d listings marked unavailable", n)
		return nil
	}),
}

func init() {
	RootCmd.AddCommand(availabilityCmd)
}
