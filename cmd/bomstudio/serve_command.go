package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bomstudio/internal/daemon"
	"bomstudio/internal/logging"
	"bomstudio/internal/store/backend"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline daemon and HTTP API in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			st, err := backend.Open(runCtx, cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			stages, err := daemon.BuildStages(cfg, logger)
			if err != nil {
				st.Close()
				return fmt.Errorf("build stages: %w", err)
			}
			deliverer, err := daemon.BuildDeliverer(runCtx, cfg, logger)
			if err != nil {
				st.Close()
				return fmt.Errorf("build deliverer: %w", err)
			}
			d, err := daemon.New(cfg, st, logger, stages, deliverer)
			if err != nil {
				st.Close()
				return fmt.Errorf("create daemon: %w", err)
			}
			defer d.Close()

			// The daemon outlives the signal context so Stop can roll back
			// in-flight runs before the store closes.
			if err := d.Start(context.WithoutCancel(runCtx)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bomstudio listening on %s (config %s)\n", d.Status().APIAddress, ctx.configPath)

			<-runCtx.Done()
			logger.Info("bomstudio shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
			return nil
		},
	}
}
