package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/chatdb"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/sqltext"
)

var queryCmd = &cobra.Command{
	Use:     "query [sql]",
	Short:   "Execute SQL and print the rows",
	Long:    `Executes a statement and prints its rows. Statements other than SELECT ask for confirmation unless --yes is given.`,
	Example: `./chatdb query "SELECT customer, SUM(amount) FROM orders GROUP BY customer" --dialect mysql --host localhost --port 3306 --username root --password pass --database shop`,
	Args:    cobra.ExactArgs(1),
	RunE:    runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(args[0])
	if query == "" {
		return fmt.Errorf("a SQL statement is required")
	}
	if kw := sqltext.LeadingKeyword(query); kw != "SELECT" && !confirm(cmd, fmt.Sprintf("a %s statement", kw)) {
		return nil
	}

	return withService(cmd, func(ctx context.Context, svc *chatdb.Service) error {
		rows, err := svc.ExecuteQuery(ctx, query, nil)
		if err != nil {
			return err
		}
		printRows(cmd.OutOrStdout(), rows)
		return nil
	})
}
