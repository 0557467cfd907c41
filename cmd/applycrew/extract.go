package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/drukpa1455/crewai-job/internal/config"
)

var extractStrict bool

var extractCmd = &cobra.Command{
	Use:   "extract <job-url>",
	Short: "Scrape a job posting and print it as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(func(c *config.Config) {
			if extractStrict {
				c.StrictExtraction = true
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

		posting, err := a.scraper.Fetch(ctx, args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(posting)
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().BoolVar(&extractStrict, "strict", false, "fail when the title or company cannot be found")
}
