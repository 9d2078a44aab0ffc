package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fusiondex/internal/api"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the fusion API and sprites over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.ensureRuntime(cmd.Context())
			if err != nil {
				return err
			}
			if strings.TrimSpace(bind) == "" {
				bind = rt.cfg.API.Bind
			}
			srv := api.New(api.Options{
				Bind:           bind,
				AllowedOrigins: rt.cfg.API.AllowedOrigins,
				Resolver:       rt.coordinator,
				Cache:          rt.cache,
				Entities:       rt.entities,
				Builder:        rt.teamBuilder(false),
				TeamSize:       rt.cfg.Teams.TeamSize,
				SpritesDir:     rt.cfg.Paths.SpritesDir,
				Offline:        rt.coordinator.Offline(),
				Workers:        rt.coordinator.Workers(),
				WriteTimeout:   rt.cfg.BatchTimeout() + time.Minute,
				Logger:         rt.logger,
			})
			return srv.ListenAndServe(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (defaults to api.bind)")
	return cmd
}
