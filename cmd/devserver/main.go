// Command devserver runs the contact handler behind a local HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hub612/contactsync/internal/config"
	"github.com/hub612/contactsync/internal/gateway"
	"github.com/hub612/contactsync/pkg/contact"
)

var addr string

var rootCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Serve the contact form handler locally",
	Long:  "Runs the Brevo contact sync behind " + gateway.ContactPath + " with the same CORS policy as production.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		log, err := config.NewLogger(cfg.Log)
		if err != nil {
			return eris.Wrap(err, "init logger")
		}
		defer log.Sync()

		if err := cfg.Validate(); err != nil {
			log.Warn("configuration is incomplete, requests will fail", zap.Error(err))
		}

		h, err := contact.NewFromConfig(cfg, log)
		if err != nil {
			return err
		}

		if addr == "" {
			addr = cfg.Server.Addr
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           gateway.NewRouter(h, cfg.CORS.AllowedOrigins, log),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			log.Info("shutting down server")
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(sctx)
		}()

		log.Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&addr, "addr", "", "listen address (default from SERVER_ADDR)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
