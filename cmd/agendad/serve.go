package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cyp0633/libagenda/agenda"
	"github.com/cyp0633/libagenda/server"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCommand(configPath *string) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the cleanup sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if listen == "" {
				listen = a.cfg.Listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if a.cfg.Sweep.Enabled {
				sweeper, err := agenda.NewSweeper(a.service, a.cfg.Sweep.Schedule,
					a.logger.With().Str("component", "sweeper").Logger())
				if err != nil {
					return err
				}
				if err := sweeper.Start(ctx); err != nil {
					return err
				}
				defer sweeper.Stop()
			}

			go logChanges(ctx, a)

			if a.cfg.Log.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			srv := server.New(a.service, a.feed,
				server.WithLogger(a.logger.With().Str("component", "http").Logger()))
			return srv.ListenAndServe(ctx, listen)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides config)")
	return cmd
}

// logChanges traces store writes until ctx is done
func logChanges(ctx context.Context, a *app) {
	changes, err := a.store.Watch(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("change feed unavailable")
		return
	}
	for change := range changes {
		a.logger.Debug().
			Str("change", string(change.Type)).
			Str("item", change.Item.ID).
			Str("status", string(change.Item.Status)).
			Msg("item changed")
	}
}
