package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/grabtree/grabtree/internal/config"
	"github.com/grabtree/grabtree/internal/execution"
	"github.com/grabtree/grabtree/internal/library"
	"github.com/grabtree/grabtree/internal/metrics"
	"github.com/grabtree/grabtree/internal/models"
)

var (
	silent     bool
	autoSelect bool
)

func main() {
	cfg := config.GetConfig()
	logger := config.GetLogger()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize crash reporting")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewHTTPServer(cfg.Metrics.Address, cfg.Metrics.Port)
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("Starting Prometheus metrics HTTP server")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Failed to serve metrics")
			}
		}()
		defer func() {
			if err := metricsServer.Shutdown(context.Background()); err != nil {
				logger.Error().Err(err).Msg("Failed to shutdown metrics server")
			}
		}()
	}

	root := newRootCmd(cfg)
	if err := root.ExecuteContext(ctx); err != nil {
		if execution.IsCancelled(err) {
			logger.Info().Msg("Cancelled")
			os.Exit(1)
		}
		logger.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "grabtree",
		Short:         "Download and organize media with their cover and metadata sidecars",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&silent, "silent", "s", false, "no prompts or progress output")
	cmd.PersistentFlags().BoolVarP(&autoSelect, "auto-select", "y", false, "pick the first download option without asking")

	cmd.AddCommand(newDownloadCmd(cfg))
	cmd.AddCommand(newOrganizeCmd(cfg))
	return cmd
}

// newEngine wires the engine with the configured library service, if any.
func newEngine(cfg *config.Config) *execution.Engine {
	opts := []execution.Option{}
	if svc := library.NewJellyfin(cfg); svc != nil {
		opts = append(opts, execution.WithLibrary(svc))
	}
	return execution.New(cfg, opts...)
}

func newDownloadCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "download <url>...",
		Short: "Download one or more URLs into the output directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := config.GetLogger()
			engine := newEngine(cfg)

			failed := 0
			for _, url := range args {
				ok, err := engine.DownloadFromURL(cmd.Context(), url, silent, autoSelect)
				if err != nil {
					if execution.IsCancelled(err) {
						return err
					}
					logger.Error().Err(err).Str("url", url).Msg("Download failed")
					failed++
					continue
				}
				if !ok {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d downloads failed", failed, len(args))
			}
			return nil
		},
	}
}

func newOrganizeCmd(cfg *config.Config) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "organize <file>...",
		Short: "Move existing files into the organized layout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name != "" && len(args) > 1 {
				return fmt.Errorf("--name only applies to a single file")
			}

			logger := config.GetLogger()
			engine := newEngine(cfg)

			failed := 0
			for _, source := range args {
				item, err := moveItemFor(source, name)
				if err != nil {
					logger.Error().Err(err).Str("source", source).Msg("Cannot organize file")
					failed++
					continue
				}
				ok, err := engine.Run(cmd.Context(), item, silent)
				if err != nil {
					return err
				}
				if !ok {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed to organize", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "target name, defaults to the source filename")
	return cmd
}

// moveItemFor builds an organize item for a local file. The target name
// defaults to the source filename without its extension.
func moveItemFor(source, name string) (*models.OperationItem, error) {
	if name == "" {
		base := filepath.Base(source)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	item, err := models.NewMoveItem(source, name)
	if err != nil {
		return nil, err
	}
	item.SetCustomPrefix(name)
	return item, nil
}
