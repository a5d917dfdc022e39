package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/chatdb"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/config"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/utils"
)

var modelQueriesCmd = &cobra.Command{
	Use:   "model-queries",
	Short: "Generate queries with a Gemini model",
	Long: `Sends the schema to a Gemini model and keeps the placeholder-free SELECT statements it returns.
Requires --gemini-api-key or GEMINI_API_KEY.`,
	Example: `./chatdb model-queries --count 5 --gemini-api-key $GEMINI_API_KEY --dialect mysql --host localhost --port 3306 --username root --password pass --database shop`,
	RunE:    runModelQueries,
}

func runModelQueries(cmd *cobra.Command, args []string) error {
	count, _ := cmd.Flags().GetInt("count")
	outputFile, _ := cmd.Flags().GetString("out_file")
	cfg := config.GetConfig()
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("a Gemini API key is required (--gemini-api-key or GEMINI_API_KEY)")
	}
	if count <= 0 {
		count = cfg.Sampler.DefaultCount
	}

	return withService(cmd, func(ctx context.Context, svc *chatdb.Service) error {
		queries, err := svc.GenerateModelQueries(ctx, count)
		if err != nil {
			return err
		}
		printDescribed(cmd.OutOrStdout(), queries)
		if outputFile == "" {
			return nil
		}
		if outputFile == "-" {
			outputFile = utils.GetDefaultOutputFilePath(cfg.Database.DBName, "model-queries")
		}
		if err := utils.WriteOutputFile(outputFile, sqlScript(queries)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Queries written to: %s\n", outputFile)
		return nil
	})
}

func init() {
	modelQueriesCmd.Flags().IntP("count", "n", 0, "Number of queries to request (defaults to sampler.default_count)")
	modelQueriesCmd.Flags().StringP("out_file", "o", "", "File path to save the queries to (\"-\" for <database>_queries.sql)")
}
