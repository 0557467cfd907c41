package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/drukpa1455/crewai-job/internal/bot"
	"github.com/drukpa1455/crewai-job/pkg/types"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Discord bot",
	Long: `Run a Discord bot that tailors documents for every job link posted in a
channel it can read, and replies with the rendered PDFs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		if cfg.DiscordBotToken == "" {
			return errors.New("DISCORD_BOT_TOKEN is not set")
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
		b, err := bot.New(cfg.DiscordBotToken, p.ForVariant(types.VariantRender), 0)
		if err != nil {
			return err
		}
		if err := b.Start(); err != nil {
			return err
		}
		defer b.Close()

		<-ctx.Done()
		slog.Info("Shutting down bot")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(botCmd)
}
