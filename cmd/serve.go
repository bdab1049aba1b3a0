package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/api"
)

var servePort int

// shutdownTimeout bounds draining requests and pending edits on exit.
const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the deal desk API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, "serve")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pub, closePub, err := initPublisher(ctx)
		if err != nil {
			return err
		}
		defer closePub()

		syncDirectory(ctx, st)

		board := initBoard()
		claude := initClaude()
		svc, err := initIntake(ctx, st, pub, board, claude)
		if err != nil {
			return err
		}

		server := api.New(api.Deps{
			Store:     st,
			Intake:    svc,
			Matcher:   initMatcher(st, pub, claude),
			Publisher: pub,
			Board:     board,
		}, api.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			EditDebounce:   time.Duration(cfg.Server.EditDebounceMS) * time.Millisecond,
			MaxUploadBytes: cfg.Intake.MaxUploadMB << 20,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown: stop accepting requests, then write pending edits.
		done := make(chan struct{})
		go func() {
			defer close(done)
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
			if err := server.Close(shutdownCtx); err != nil {
				zap.L().Error("pending edits not saved", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		<-done
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
