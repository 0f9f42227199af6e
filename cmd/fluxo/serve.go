package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fluxo-ledger/fluxo/internal/api"
	"github.com/fluxo-ledger/fluxo/internal/common"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the staging pipeline over HTTP",
		Long: `Serve the session staging, preview, commit, and cancel surfaces over
HTTP. Expired staging sessions are purged hourly.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if listenAddr == "" {
				listenAddr = a.cfg.ListenAddr
			}

			scheduler := cron.New()
			_, err = scheduler.AddFunc("@hourly", func() {
				purgeCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				n, purgeErr := a.pipeline.PurgeExpired(purgeCtx, a.cfg.SessionTTL)
				if purgeErr != nil {
					common.LogError(purgeErr, "session purge failed", nil)
					return
				}
				if n > 0 {
					common.LogInfo("purged expired sessions", common.Fields{"count": n})
				}
			})
			if err != nil {
				return fmt.Errorf("failed to schedule session purge: %w", err)
			}
			scheduler.Start()
			defer scheduler.Stop()

			server := &http.Server{
				Addr:              listenAddr,
				Handler:           api.NewServer(a.pipeline).Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}()

			common.LogInfo("serving", common.Fields{"addr": listenAddr})
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (default from config)")

	return cmd
}
