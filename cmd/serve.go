package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/scribevault/internal/api"
	"github.com/example/scribevault/internal/botadapter"
	"github.com/example/scribevault/internal/config"
	"github.com/example/scribevault/internal/pipeline"
	"github.com/example/scribevault/internal/processors"
	"github.com/example/scribevault/internal/store"
	"github.com/example/scribevault/internal/vault"
)

// serveCmd starts the HTTP server: join/status/artifact/revision API
// backed by the store, vault, bot provider adapter, and processor
// pipeline.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scribevault HTTP server",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadRootConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bindConfigFlags(cmd); err != nil {
			return err
		}
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		return runServe(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// bindConfigFlags maps config.BindFlags' viper-key -> flag-name pairs
// onto this command's concrete flag set, the same indirection the
// teacher uses to let a subcommand bind the persistent flags it cares
// about without hardcoding every key.
func bindConfigFlags(cmd *cobra.Command) error {
	return config.BindFlags(v, func(key, flag string) error {
		return v.BindPFlag(key, cmd.Flags().Lookup(flag))
	})
}

func runServe(cfg *config.Config) error {
	gdb, err := store.Open(cfg.DB.Type, cfg.DB.DSN)
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	st := store.New(gdb, cfg.MasterKeyBytes())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate metadata store: %w", err)
	}

	v8, err := vault.New(cfg.Vault.Dir)
	if err != nil {
		return fmt.Errorf("failed to open storage vault: %w", err)
	}

	botClient := botadapter.New(cfg.BotProvider.BaseURL, cfg.BotProvider.APIKey)
	pollClient := botadapter.NewPollingClient(botClient, float64(cfg.BotProvider.PollPerSec))

	transcriber := processors.NewTranscriber(cfg.Processors.Transcriber, cfg.Processors.AllowMock)
	summarizer := processors.NewSummarizer(cfg.Processors.Summarizer, cfg.Processors.AllowMock)

	orchestrator := pipeline.New(st, v8, pollClient, transcriber, summarizer)

	verifier := api.NewStaticTokenVerifier(cfg.AuthTokens)
	server := api.New(orchestrator, st, v8, verifier)

	return (&httpServer{addr: cfg.HTTP.ListenAddress(), handler: server.Handler()}).Start()
}

// httpServer wraps net/http's server lifecycle with the teacher's
// signal-driven graceful shutdown.
type httpServer struct {
	addr    string
	handler http.Handler
}

func (s *httpServer) Start() error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 3 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Debug("shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Debug("server forced to shutdown", "err", err)
		}
	}()

	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	defer func() { _ = lis.Close() }()
	slog.Info("listening", "addr", lis.Addr().String())

	return srv.Serve(lis)
}
