package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/holefill/internal/server"
	"github.com/cwbudde/holefill/internal/store"
)

var (
	serveAddr    string
	serveDataDir string
	serveMemory  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP job server",
	Long: `Starts an HTTP server that accepts fill jobs, streams their progress
over server-sent events and serves finished results. Interrupting the
server cancels running jobs.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "Result storage directory (default from config)")
	serveCmd.Flags().BoolVar(&serveMemory, "memory", false, "Keep results in memory only")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defaults, err := cfg.Options()
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	var st *store.FSStore
	if !serveMemory {
		dir := serveDataDir
		if dir == "" {
			dir = cfg.Server.DataDir
		}
		if st, err = store.NewFSStore(dir); err != nil {
			return fmt.Errorf("failed to create result store: %w", err)
		}
		slog.Info("Persisting results", "dir", dir)
	}

	exec, release := newExecutor(cfg)
	defer release()

	srv := server.NewServer(addr, st, defaults, exec)

	errC := make(chan error, 1)
	go func() {
		errC <- srv.Start()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errC:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
