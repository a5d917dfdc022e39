package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/chatdb"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/config"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/utils"
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Generate executable sample queries with descriptions",
	Long: `Resolves randomly chosen templates with live values from the database. With --construct only
templates using that construct (e.g. "GROUP BY") are eligible and a single query is returned.`,
	Example: `./chatdb sample --dialect mysql --host localhost --port 3306 --username root --password pass --database shop --count 5 --construct "group by" --seed 42`,
	RunE:    runSample,
}

func runSample(cmd *cobra.Command, args []string) error {
	count, _ := cmd.Flags().GetInt("count")
	construct, _ := cmd.Flags().GetString("construct")
	execute, _ := cmd.Flags().GetBool("execute")
	outputFile, _ := cmd.Flags().GetString("out_file")
	if count == 0 {
		count = config.GetConfig().Sampler.DefaultCount
	}
	if count < 0 {
		return fmt.Errorf("--count must not be negative")
	}

	return withService(cmd, func(ctx context.Context, svc *chatdb.Service) error {
		queries, err := svc.SampleQueries(ctx, count, construct)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		printDescribed(w, queries)

		if outputFile != "" {
			if err := utils.WriteOutputFile(outputFile, sqlScript(queries)); err != nil {
				return err
			}
			fmt.Fprintf(w, "Queries written to: %s\n", outputFile)
		}

		if !execute || len(queries) == 0 {
			return nil
		}
		if !confirm(cmd, fmt.Sprintf("%d sample queries", len(queries))) {
			rootLogger.Info("Execution cancelled by user")
			return nil
		}
		for i, q := range queries {
			rows, err := svc.ExecuteQuery(ctx, q.SQL, nil)
			if err != nil {
				rootLogger.Warn("Sample query failed", zap.String("sql", q.SQL), zap.Error(err))
				fmt.Fprintf(w, "\n%d. failed: %v\n", i+1, err)
				continue
			}
			fmt.Fprintf(w, "\n%d. %s\n", i+1, q.SQL)
			printRows(w, rows)
		}
		return nil
	})
}

func init() {
	sampleCmd.Flags().IntP("count", "n", 0, "Number of queries to generate (defaults to sampler.default_count)")
	sampleCmd.Flags().String("construct", "", "Only use templates containing this construct, e.g. \"GROUP BY\"")
	sampleCmd.Flags().Bool("execute", false, "Run the generated queries and print their rows")
	sampleCmd.Flags().StringP("out_file", "o", "", "File path to save the queries to")
}
