package app

import (
	"github.com/spf13/cobra"

	"github.com/agromano/identity-gate/internal/daemon"
	"github.com/agromano/identity-gate/internal/reconcile"
)

func init() { //nolint: gochecknoinits
	integrityCmd.Flags().Bool("stats", false, "Print the summary only")
	cleanupCmd.Flags().Bool("apply", false, "Deactivate orphaned accounts instead of listing them")
	rootCmd.AddCommand(integrityCmd, cleanupCmd)
}

var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Compare local accounts with the provider directory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		stats, _ := cmd.Flags().GetBool("stats")

		return withDaemon(func(d *daemon.Daemon) error {
			if stats {
				res, err := d.Reconcile.Stats(cmd.Context())
				if err != nil {
					return err
				}

				return printJSON(cmd, res)
			}

			res, err := d.Reconcile.CheckIntegrity(cmd.Context())
			if err != nil {
				return err
			}

			return printJSON(cmd, res)
		})
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Deactivate local accounts whose provider identity is gone",
	RunE: func(cmd *cobra.Command, _ []string) error {
		apply, _ := cmd.Flags().GetBool("apply")

		return withDaemon(func(d *daemon.Daemon) error {
			res, err := d.Reconcile.CleanupOrphans(cmd.Context(), !apply, reconcile.Actor{ExternalID: "cli"})
			if err != nil {
				return err
			}

			return printJSON(cmd, res)
		})
	},
}
