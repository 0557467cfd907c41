package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/drukpa1455/crewai-job/internal/api"
	"github.com/drukpa1455/crewai-job/internal/config"
	"github.com/drukpa1455/crewai-job/internal/pipeline"
	"github.com/drukpa1455/crewai-job/pkg/types"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(func(c *config.Config) {
			if servePort != 0 {
				c.Port = servePort
			}
		})
		if err != nil {
			return err
		}
		ctx, stop := runContext(cmd)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.pipeline(ctx)
		if err != nil {
			return err
		}
		run := func(ctx context.Context, url string, v types.Variant) (*pipeline.Result, error) {
			return p.ForVariant(v).Run(ctx, url)
		}
		return api.NewServer(cfg.Port, a.scraper, run, a.db, a.registry).Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (default from PORT or 8080)")
}
