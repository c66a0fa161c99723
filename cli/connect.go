package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) connectCommand() *cobra.Command {
	var askPass bool

	cmd := &cobra.Command{
		Use:     "connect NAME",
		Aliases: []string{"c"},
		Short:   "Connect to a VPN profile by name or alias",
		Long: `Connect brings up the tunnel for the given profile and waits until
the platform tool confirms it. An already-active tunnel for a different
profile is disconnected first.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			if askPass {
				secret, err := a.promptSecret(fmt.Sprintf("Password for %s: ", name))
				if err != nil {
					return err
				}
				if err := a.manager.SetSecret(name, secret); err != nil {
					return err
				}
			}

			fmt.Fprintf(a.out, "Connecting to %s...\n", name)
			p, err := a.manager.Connect(cmd.Context(), name)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Connected to %s.\n", p.Name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&askPass, "ask-pass", false, "prompt for the VPN password and store it before connecting")
	return cmd
}
