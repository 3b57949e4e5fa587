package app

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/agromano/identity-gate/internal/daemon"
	"github.com/agromano/identity-gate/internal/web/handler"
)

var errSyncTarget = errors.New("pass an external id or --all")

func init() { //nolint: gochecknoinits
	syncCmd.Flags().Bool("all", false, "Synchronise every provider user")
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync [external_id]",
	Short: "Create local accounts for provider users",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) == 1) {
			return errSyncTarget
		}

		return withDaemon(func(d *daemon.Daemon) error {
			if all {
				res, err := d.Reconcile.SyncAll(cmd.Context())
				if err != nil {
					return err
				}

				return printJSON(cmd, res)
			}

			res, err := d.Reconcile.SyncOne(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return printJSON(cmd, map[string]any{
				"account": handler.NewAccountView(res.Account),
				"created": res.Created,
			})
		})
	},
}

func withDaemon(fn func(d *daemon.Daemon) error) error {
	d, err := daemon.New(&cfg)
	if err != nil {
		return err
	}

	runErr := fn(d)
	closeErr := d.Close()

	return errors.Join(runErr, closeErr)
}
