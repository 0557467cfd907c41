package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/drukpa1455/crewai-job/internal/secrets"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage LLM API keys in the OS keychain",
}

var keySetCmd = &cobra.Command{
	Use:   "set <provider>",
	Short: "Store an API key read from stdin",
	Example: `  echo "$OPENAI_API_KEY" | applycrew key set openai
  applycrew key set gemini`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.ErrOrStderr(), "Enter the %s API key: ", args[0])
		sc := bufio.NewScanner(cmd.InOrStdin())
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return err
			}
			return fmt.Errorf("no API key provided")
		}
		if err := secrets.SetAPIKey(args[0], strings.TrimSpace(sc.Text())); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored API key for %s\n", args[0])
		return nil
	},
}

var keyDeleteCmd = &cobra.Command{
	Use:   "delete <provider>",
	Short: "Remove a stored API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := secrets.DeleteAPIKey(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted API key for %s\n", args[0])
		return nil
	},
}

func init() {
	keyCmd.AddCommand(keySetCmd, keyDeleteCmd)
	rootCmd.AddCommand(keyCmd)
}
