package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/chatdb"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/ingest"
)

var importCmd = &cobra.Command{
	Use:   "import [file.csv]",
	Short: "Import a CSV file into a table",
	Long: `Creates a table with one VARCHAR(255) column per CSV header (if it does not exist) and inserts
every row in one transaction. The table name defaults to the file name.`,
	Example: `./chatdb import ./orders.csv --table orders --dialect mysql --host localhost --port 3306 --username root --password pass --database shop --create-database`,
	Args:    cobra.ExactArgs(1),
	RunE:    runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	table, _ := cmd.Flags().GetString("table")
	if table == "" {
		table = ingest.TableNameFromPath(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if !confirm(cmd, fmt.Sprintf("an import of %s into table %s", path, table)) {
		return nil
	}

	return withService(cmd, func(ctx context.Context, svc *chatdb.Service) error {
		res, err := svc.ImportCSV(ctx, table, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d row(s) into %s (%d columns).\n", res.Rows, res.Table, len(res.Columns))
		return nil
	})
}

func init() {
	importCmd.Flags().String("table", "", "Target table (defaults to the file name)")
}
