package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"property-scraper/storage"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write recently created properties to a CSV file",
	RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command) error {
		out, _ := cmd.Flags().GetString("out")
		window, _ := cmd.Flags().GetDuration("since")

		w, err := storage.NewCSVWriter(out)
		if err != nil {
			return err
		}
		defer w.Close()

		since := time.Now().Add(-window)
		var cursor int64
		for {
			page, err := a.db.PropertiesCreatedAfter(ctx, since, cursor, a.cfg.BatchSize)
			if err != nil {
				return err
			}
			if len(page) == 0 {
				break
			}
			if err := w.WriteProperties(page); err != nil {
				return err
			}
			cursor = page[len(page)-1].ID
		}

		a.logger.Info("[export] %d properties created since %s written to %s",
			w.Rows(), since.Format(time.RFC3339), out)
		return nil
	}),
}

func init() {
	RootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("out", "output/properties.csv", "CSV file to write")
	exportCmd.Flags().Duration("since", 24*time.Hour, "export properties created within this window")
}
