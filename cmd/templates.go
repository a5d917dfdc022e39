package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/chatdb"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/config"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/utils"
)

var templatesCmd = &cobra.Command{
	Use:     "templates",
	Short:   "Generate SQL templates from the live schema",
	Long:    `Generates SQL templates with {placeholders} for every table, in schema order. Use --out_file to also save them.`,
	Example: `./chatdb templates --dialect mysql --host localhost --port 3306 --username root --password pass --database shop --tables orders --out_file ./shop_templates.sql`,
	RunE:    runTemplates,
}

func runTemplates(cmd *cobra.Command, args []string) error {
	tablesFlag, _ := cmd.Flags().GetString("tables")
	outputFile, _ := cmd.Flags().GetString("out_file")
	filters, err := utils.ParseTablesFlag(tablesFlag)
	if err != nil {
		return fmt.Errorf("invalid --tables: %w", err)
	}

	return withService(cmd, func(ctx context.Context, svc *chatdb.Service) error {
		tmpls, err := svc.GenerateTemplates(ctx, filters)
		if err != nil {
			return err
		}
		var b strings.Builder
		lastTable := ""
		for _, t := range tmpls {
			if t.Table != lastTable {
				fmt.Fprintf(&b, "-- Table: %s\n", t.Table)
				lastTable = t.Table
			}
			fmt.Fprintf(&b, "%s;\n", t.SQL)
		}
		fmt.Fprint(cmd.OutOrStdout(), b.String())

		if outputFile == "" {
			return nil
		}
		if outputFile == "-" {
			outputFile = utils.GetDefaultOutputFilePath(config.GetConfig().Database.DBName, "templates")
		}
		if err := utils.WriteOutputFile(outputFile, b.String()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Templates written to: %s\n", outputFile)
		return nil
	})
}

func init() {
	templatesCmd.Flags().String("tables", "", "Tables and columns to include, e.g. \"orders[customer,amount],customers\"")
	templatesCmd.Flags().StringP("out_file", "o", "", "File path to save templates to (\"-\" for <database>_templates.sql)")
}
