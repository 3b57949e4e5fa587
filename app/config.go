package app

import (
	"github.com/spf13/cobra"

	"github.com/agromano/identity-gate/internal/config"
)

func init() { //nolint: gochecknoinits
	dumpCmd.Flags().Bool("json", false, "Print JSON instead of TOML")
	configCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the merged configuration with secrets redacted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		redacted := config.Redacted(cfg)

		dump := config.DumpConfig
		if asJSON {
			dump = config.DumpConfigJSON
		}

		out, err := dump(&redacted)
		if err != nil {
			return err
		}

		cmd.Println(out)

		return nil
	},
}
