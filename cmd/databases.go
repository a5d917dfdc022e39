package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/chatdb"
)

var databasesCmd = &cobra.Command{
	Use:     "databases",
	Short:   "List the databases on the server",
	Example: `./chatdb databases --dialect mysql --host localhost --port 3306 --username root --password pass`,
	RunE:    runDatabases,
}

func runDatabases(cmd *cobra.Command, args []string) error {
	return withService(cmd, func(ctx context.Context, svc *chatdb.Service) error {
		dbs, err := svc.ListDatabases(ctx)
		if err != nil {
			return fmt.Errorf("failed to list databases: %w", err)
		}
		for _, name := range dbs {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	})
}
