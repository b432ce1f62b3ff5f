package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rkirkendall/lumina/internal/config"
	"github.com/rkirkendall/lumina/internal/httpapi"
	"github.com/rkirkendall/lumina/internal/studio"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the studio over HTTP",
		Long:  "Expose one studio session as a JSON API for browser or script front ends. Stops gracefully on SIGINT/SIGTERM.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, logger, cfg, err := connect(cmd)
			if err != nil {
				return err
			}
			orch := studio.New(gw,
				studio.WithLogger(logger),
				studio.WithNotifier(studio.NotifierFunc(func(msg string) {
					logger.Warn().Msg(msg)
				})),
			)
			server := &http.Server{
				Addr:              cfg.Addr,
				Handler:           httpapi.NewRouter(httpapi.NewApp(orch, logger), logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info().Str("addr", cfg.Addr).Msg("lumina listening")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("failed to shutdown server")
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
		Example: `lumina serve --addr :8080`,
	}
	cmd.Flags().String("addr", config.DefaultAddr, "Listen address")
	viper.BindPFlag(config.KeyAddr, cmd.Flags().Lookup("addr"))
	return cmd
}

func init() { rootCmd.AddCommand(newServeCmd()) }
