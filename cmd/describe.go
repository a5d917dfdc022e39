package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/describe"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/utils"
)

var describeCmd = &cobra.Command{
	Use:   "describe [sql]",
	Short: "Describe SQL in plain English",
	Long:  `Describes each statement clause by clause. No database connection is needed.`,
	Example: `./chatdb describe "SELECT COUNT(*) FROM orders WHERE amount > 100 GROUP BY customer"
./chatdb describe --file ./shop_queries.sql`,
	Args: cobra.MaximumNArgs(1),
	// Runs offline, so configuration errors must not block it.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runDescribe,
}

func runDescribe(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	constructs, _ := cmd.Flags().GetStringSlice("constructs")

	statements := args
	if file != "" {
		fromFile, err := utils.ReadSQLStatementsFromFile(file)
		if err != nil {
			return err
		}
		statements = append(statements, fromFile...)
	}
	if len(statements) == 0 {
		return fmt.Errorf("a SQL statement or --file is required")
	}

	w := cmd.OutOrStdout()
	for _, sql := range statements {
		if len(statements) > 1 {
			fmt.Fprintf(w, "%s;\n", sql)
		}
		fmt.Fprintln(w, describe.Describe(sql, constructs...))
	}
	return nil
}

func init() {
	describeCmd.Flags().StringP("file", "f", "", "File of semicolon-terminated SQL statements")
	describeCmd.Flags().StringSlice("constructs", nil, "Constructs to mention, e.g. --constructs \"GROUP BY,SUM\"")
}
