package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/chatdb"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/utils"
)

var tablesCmd = &cobra.Command{
	Use:     "tables",
	Short:   "Show table structure and sample rows",
	Long:    `Lists the columns of each table with their declared type and class, followed by a few rows of data.`,
	Example: `./chatdb tables --dialect mysql --host localhost --port 3306 --username root --password pass --database shop --tables "orders[customer,amount]" --sample-rows 3`,
	RunE:    runTables,
}

func runTables(cmd *cobra.Command, args []string) error {
	tablesFlag, _ := cmd.Flags().GetString("tables")
	sampleRows, _ := cmd.Flags().GetInt("sample-rows")
	filters, err := utils.ParseTablesFlag(tablesFlag)
	if err != nil {
		return fmt.Errorf("invalid --tables: %w", err)
	}

	return withService(cmd, func(ctx context.Context, svc *chatdb.Service) error {
		overview, err := svc.TableOverview(ctx, filters, sampleRows)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, t := range overview {
			fmt.Fprintf(w, "--- Table: %s ---\n", t.Table.Name)
			for _, c := range t.Table.Columns {
				dateLike := ""
				if c.DateLike {
					dateLike = ", date-like"
				}
				fmt.Fprintf(w, "  %s %s (%s%s)\n", c.Name, c.DeclaredType, c.Class, dateLike)
			}
			printRows(w, t.Rows)
			fmt.Fprintln(w)
		}
		rootLogger.Info("Table overview completed", zap.Int("tables", len(overview)))
		return nil
	})
}

func init() {
	tablesCmd.Flags().String("tables", "", "Tables and columns to include, e.g. \"orders[customer,amount],customers\"")
	tablesCmd.Flags().Int("sample-rows", chatdb.DefaultSampleRows, "Rows of data to show per table")
}
