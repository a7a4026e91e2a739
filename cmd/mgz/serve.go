package main

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/techreview-es/mgz-harvester/internal/schedule"
	"github.com/techreview-es/mgz-harvester/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the manual sync trigger and run the daily sync",
	Long: `Starts the HTTP trigger (GET /sync?limit=&offset=, GET /healthz) and, when
schedule.enabled is set, syncs one page every day at schedule.hour:schedule.minute.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		p, err := buildPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		srv := server.New(p.syncer, server.Options{
			Addr:          cfg.Server.Addr,
			DefaultLimit:  cfg.Upstream.Limit,
			DefaultOffset: cfg.Upstream.Offset,
			WriteTimeout:  cfg.Server.WriteTimeout,
		}, log)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.ListenAndServe(ctx) })
		if cfg.Schedule.Enabled {
			daily := schedule.Daily{
				Hour:     cfg.Schedule.Hour,
				Minute:   cfg.Schedule.Minute,
				Location: cfg.ScheduleLocation(),
			}
			sched := schedule.New(daily, func(ctx context.Context) error {
				_, err := p.syncer.PerformSync(ctx, cfg.Upstream.Limit, cfg.Upstream.Offset)
				return err
			}, log)
			g.Go(func() error {
				if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
					return err
				}
				return nil
			})
		}
		return g.Wait()
	},
}
