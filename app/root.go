// Package app implements the main application commands.
package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agromano/identity-gate/internal/config"
	"github.com/agromano/identity-gate/internal/logger"
)

const defaultConfigPath = "etc/main.toml"

var (
	configPath string // path to the configuration file
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "identity-gate",
	Short: "identity-gate keeps local accounts in line with the identity provider",
	Long: `identity-gate verifies bearer tokens issued by the identity provider,
reconciles provider users with local accounts and resolves permissions
from the local role of each account.`,
	Args:          cobra.OnlyValidArgs,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		if cfg, err = config.ReadConfig(configPath); err != nil {
			return err
		}

		if dev, _ := cmd.Flags().GetBool("dev"); dev {
			cfg.DevMode = true
		}

		return logger.Init(cfg.Log)
	},
}

func init() { //nolint: gochecknoinits
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to the configuration file")
	rootCmd.PersistentFlags().Bool("dev", false, "Enable dev mode")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	cmd.Println(string(out))

	return nil
}
