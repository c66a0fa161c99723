package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) disconnectCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "disconnect [NAME]",
		Aliases: []string{"d"},
		Short:   "Disconnect the active VPN",
		Long: `Disconnect tears down the active tunnel. With a name or alias the
request only applies when that profile is the active one; without an
argument whatever is up comes down. Disconnecting while idle succeeds
without touching the platform tool.`,
		Args: rangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}

			before := a.manager.State()
			resolved, err := a.manager.Disconnect(cmd.Context(), target)
			if err != nil {
				return err
			}

			switch {
			case !before.IsBusy():
				fmt.Fprintln(a.out, "No active connection.")
			case resolved != "" && resolved != before.Profile:
				fmt.Fprintf(a.out, "%s is not the active connection, nothing to do.\n", resolved)
			default:
				fmt.Fprintf(a.out, "Disconnected from %s.\n", before.Profile)
			}
			return nil
		},
	}
}
