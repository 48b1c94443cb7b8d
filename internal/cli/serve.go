package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"docrag/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API on the configured address.

Endpoints:
  GET  /health
  POST /upload          multipart field "file"
  POST /ingest          {"document_id": "...", "text": "..."}
  POST /ingest/path     {"path": "file under data_dir"}
  GET  /retrieve        ?document_id=&question=&top_k=&mode=`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	a, err := buildApp(cfg, GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// not fatal: chunks that cannot be stored are reported per request
	_ = a.store.EnsureSchema(ctx)

	srv := server.New(server.Options{
		Addr:           cfg.Server.Addr,
		ReadTimeout:    cfg.Server.ReadTimeout(),
		WriteTimeout:   cfg.Server.WriteTimeout(),
		MaxUploadBytes: cfg.Server.MaxUploadBytes(),
		RateLimit:      cfg.Server.RateLimit,
		Burst:          cfg.Server.Burst,
	}, a.ingest, a.retrieve, logger)

	return srv.Run(ctx)
}
