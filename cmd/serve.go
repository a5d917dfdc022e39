package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/chatdb"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/config"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Serve the JSON HTTP API",
	Example: `./chatdb serve --addr :8080 --dialect mysql --host localhost --port 3306 --username root --password pass --database shop`,
	RunE:    runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if origins, _ := cmd.Flags().GetStringSlice("allowed-origins"); len(origins) > 0 {
		cfg.Server.AllowedOrigins = origins
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	return withService(cmd, func(ctx context.Context, svc *chatdb.Service) error {
		return server.New(svc, cfg.Server, cfg.Sampler.DefaultCount, rootLogger).ListenAndServe(ctx)
	})
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (defaults to server.addr)")
	serveCmd.Flags().StringSlice("allowed-origins", nil, "CORS origins allowed to call the API")
}
