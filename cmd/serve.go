package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/suderio/ultramafia/internal/httpapi"
	"github.com/suderio/ultramafia/internal/solicit"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve games over a JSON HTTP API",
	Long: `Starts the HTTP transport. Clients create rooms, join, answer prompts and
poll /mailbox/<room or participant> for what the game tells them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appCfg
		if zerolog.GlobalLevel() > zerolog.DebugLevel {
			gin.SetMode(gin.ReleaseMode)
		}

		box := httpapi.NewMailbox(0)
		broker := solicit.NewBroker(box, cfg.Timings.ForGame(cfg.Game))
		m, closeStore, err := openManager(cfg, broker, box)
		if err != nil {
			return err
		}
		defer closeStore()

		ctx, stop := signalContext()
		defer stop()
		go func() { _ = m.Run(ctx) }()
		go logLifecycle(ctx, m)

		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           httpapi.NewServer(m, broker, box),
			ReadHeaderTimeout: 10 * time.Second,
		}
		errs := make(chan error, 1)
		go func() {
			log.Info().Str("addr", cfg.HTTP.Addr).Msg("http transport listening")
			errs <- srv.ListenAndServe()
		}()

		select {
		case err = <-errs:
		case <-ctx.Done():
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = srv.Shutdown(sctx)
			cancel()
		}
		shutdown(m)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	_ = viper.BindPFlag("http.addr", serveCmd.Flags().Lookup("addr"))
}
