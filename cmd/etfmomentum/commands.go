package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/etfmomentum/internal/app"
	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/server"
)

// newRootCmd creates the root command with serve, refresh and version subcommands.
func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "etfmomentum",
		Short:         "ETF momentum tracker",
		Long:          "Tracks ETF trailing returns, ranks momentum and derives the market risk status.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: $ETFM_CONFIG, ./etfmomentum.toml next to the binary, config/etfmomentum.toml)")

	rootCmd.AddCommand(
		newServeCmd(&configPath),
		newRefreshCmd(&configPath),
		newVersionCmd(),
	)
	return rootCmd
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the optional refresh scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.NewApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			common.PrintBanner(a.Config, a.Logger)

			a.StartScheduler()

			srv := server.NewServer(a)
			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			a.Logger.Info().
				Str("url", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)).
				Msg("Server ready")

			// Wait for interrupt signal or a listener failure
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			select {
			case <-sigChan:
				a.Logger.Info().Msg("Shutdown signal received")
			case err := <-errCh:
				return fmt.Errorf("HTTP server failed: %w", err)
			}

			// Graceful shutdown
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				a.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
			}

			common.PrintShutdownBanner(a.Logger)
			return nil
		},
	}
}

func newRefreshCmd(configPath *string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run one refresh and print the summary as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.NewApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			summary, err := a.RefreshService.Refresh(ctx)
			if err != nil {
				return err
			}
			return writeSummary(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "abandon the run after this long (0 disables)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			common.LoadVersionFromFile()
			_, err := fmt.Fprintln(cmd.OutOrStdout(), common.GetFullVersion())
			return err
		},
	}
}

func writeSummary(w io.Writer, summary interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
