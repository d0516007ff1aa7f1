package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zeusync/scenesync/internal/config"
	"github.com/zeusync/scenesync/internal/core/observability/log"
	"github.com/zeusync/scenesync/internal/injector"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scenesync",
		Short:         "Authoritative scene state server for shared 3D environments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), versionCmd())
	return root
}

func serveCmd() *cobra.Command {
	var (
		configPath string
		listenAddr string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the environment server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.Server.ListenAddr = listenAddr
			}
			if err = cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file (defaults to $"+config.EnvPath+")")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "Override server.listen_addr")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	srv, cleanup, err := injector.InitializeServer(cfg)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}
	defer cleanup()

	logger := log.Provide().With(log.String("component", "cmd"))
	if err = srv.Start(ctx); err != nil {
		return err
	}
	logger.Info("Serving", log.String("version", Version), log.String("addr", srv.Addr().String()))

	<-ctx.Done()
	logger.Info("Shutting down")
	return srv.Close()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "scenesync", Version)
		},
	}
}
