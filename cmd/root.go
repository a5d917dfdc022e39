/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/chatdb"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/config"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/database"
	_ "github.com/GoogleCloudPlatform/chatdb-query-engine/internal/database/mysql"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/genai"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/logging"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/utils"
)

var (
	configFile  string
	assumeYes   bool
	rootLogger  = zap.NewNop()
	flagToField = map[string]string{
		"dialect":                           "database.dialect",
		"host":                              "database.host",
		"port":                              "database.port",
		"username":                          "database.username",
		"password":                          "database.password",
		"database":                          "database.name",
		"cloudsql-instance-connection-name": "database.cloudsql_instance_connection_name",
		"cloudsql-use-private-ip":           "database.cloudsql_use_private_ip",
		"create-database":                   "database.create_if_missing",
		"log-level":                         "logging.level",
		"log-format":                        "logging.encoding",
		"seed":                              "sampler.seed",
		"max-attempts":                      "sampler.max_attempts",
		"gemini-api-key":                    "gemini_api_key",
		"model":                             "model",
	}
)

var rootCmd = &cobra.Command{
	Use:   "chatdb",
	Short: "Explore a MySQL database with generated SQL",
	Long: `chatdb is a CLI tool that inspects a live MySQL schema and synthesizes SQL from it:
query templates, executable sample queries with plain-English descriptions, and
best-effort translations of natural-language questions.`,
	PersistentPreRunE: initFlagsAndConfig,
	SilenceUsage:      true,
}

// initFlagsAndConfig loads configuration from defaults, the config file, the environment and the
// command flags, and builds the process logger.
func initFlagsAndConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Root().PersistentFlags(), configFile)
	if err != nil {
		return err
	}
	config.SetConfig(cfg)

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	rootLogger = logger
	return nil
}

// loadConfig binds flags to their configuration keys and loads the configuration.
func loadConfig(flags *pflag.FlagSet, file string) (*config.Config, error) {
	v := viper.New()
	for name, key := range flagToField {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
			}
		}
	}
	return config.Load(v, file)
}

func setupDatabase(ctx context.Context) (*database.DB, error) {
	dbConfig := config.GetConfig().Database
	if err := dbConfig.Validate(); err != nil {
		return nil, err
	}
	db, err := database.New(ctx, dbConfig, rootLogger)
	if err != nil {
		rootLogger.Error("Failed to connect to database", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// withService connects to the database, builds the engine and runs fn. The Gemini client is only
// created when an API key is configured.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *chatdb.Service) error) error {
	ctx := cmd.Context()
	cfg := config.GetConfig()

	db, err := setupDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	llm, err := openModel(ctx, cfg)
	if err != nil {
		return err
	}
	if llm != nil {
		defer llm.Close()
	}

	svc := chatdb.NewService(db, llm, chatdb.Config{
		DBName:      cfg.Database.DBName,
		MaxAttempts: cfg.Sampler.MaxAttempts,
		Seed:        cfg.Sampler.Seed,
	}, rootLogger)
	return fn(ctx, svc)
}

var newModelClient = genai.NewClient

// openModel returns nil when no Gemini API key is configured. A configured key must pass
// validation before the client is used.
func openModel(ctx context.Context, cfg *config.Config) (genai.LLMClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, nil
	}
	client, err := newModelClient(ctx, genai.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.Model}, rootLogger)
	if err != nil {
		return nil, err
	}
	if err := client.IsAPIKeyValid(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("gemini API key check failed: %w", err)
	}
	return client, nil
}

// confirm asks before touching the database unless --yes was given.
func confirm(cmd *cobra.Command, what string) bool {
	if assumeYes {
		return true
	}
	return utils.ConfirmAction(cmd.InOrStdin(), cmd.OutOrStdout(), what)
}

func printRows(w io.Writer, rows []map[string]any) {
	for _, row := range rows {
		fmt.Fprintln(w, database.FormatRow(row))
	}
	fmt.Fprintf(w, "(%d row(s))\n", len(rows))
}

func printDescribed(w io.Writer, queries []chatdb.DescribedQuery) {
	for i, q := range queries {
		fmt.Fprintf(w, "%d. %s;\n   -- %s\n", i+1, q.SQL, q.Description)
		if len(q.Constructs) > 0 {
			fmt.Fprintf(w, "   -- constructs: %s\n", strings.Join(q.Constructs, ", "))
		}
	}
	if len(queries) == 0 {
		fmt.Fprintln(w, "No queries generated.")
	}
}

func sqlScript(queries []chatdb.DescribedQuery) string {
	var b strings.Builder
	for _, q := range queries {
		fmt.Fprintf(&b, "-- %s\n%s;\n", q.Description, q.SQL)
	}
	return b.String()
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (YAML, TOML or JSON)")
	flags.BoolVarP(&assumeYes, "yes", "y", false, "Run statements against the database without asking")

	// Database connection flags
	flags.String("dialect", "", fmt.Sprintf("Database dialect (%s)", strings.Join(config.SupportedDialects, ", ")))
	flags.String("host", "", "Database host")
	flags.Int("port", 0, "Database port")
	flags.String("username", "", "Database username")
	flags.String("password", "", "Database password")
	flags.String("database", "", "Database name")
	flags.String("cloudsql-instance-connection-name", "", "Cloud SQL instance connection name (for Cloud SQL dialects)")
	flags.Bool("cloudsql-use-private-ip", false, "Use private IP for Cloud SQL connection (Cloud SQL)")
	flags.Bool("create-database", false, "Create the database if it does not exist")

	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (console, json)")
	flags.Int64("seed", 0, "Random seed for query sampling (0 seeds randomly)")
	flags.Int("max-attempts", 0, "Attempt budget of one sampling request")

	// Gemini API Key flag
	flags.String("gemini-api-key", "", "Gemini API key (can also be set via GEMINI_API_KEY environment variable)")
	flags.String("model", "", "Gemini model used by model-queries")

	rootCmd.AddCommand(databasesCmd)
	rootCmd.AddCommand(tablesCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(modelQueriesCmd)
	rootCmd.AddCommand(serveCmd)
}
