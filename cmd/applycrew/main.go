package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	envFile    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "applycrew",
	Short: "Tailor a CV and cover letter to a job posting",
	Long: `applycrew scrapes a job posting, then runs a crew of LLM agents that
tailor your CV and cover letter to it.

The review variant writes plain text files and scores the result.
The render variant produces validated documents rendered to PDF and JPEG.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (default applycrew.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file (default .env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\nError during execution: %v\n", err)
		os.Exit(1)
	}
}
