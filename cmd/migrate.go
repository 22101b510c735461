package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: withApp(func(_ context.Context, a *app, _ *cobra.Command) error {
		return a.db.Migrate()
	}),
}

func init() {
	RootCmd.AddCommand(migrateCmd)
}
