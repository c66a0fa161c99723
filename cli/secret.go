package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) secretCommand() *cobra.Command {
	secret := &cobra.Command{
		Use:   "secret",
		Short: "Manage stored VPN passwords",
		Long: `Secret stores per-profile passwords in the system keyring (or an
encrypted file when no keyring service is available). Passwords are
handed to the platform tool at connect time and never written to the
profile registry or logs.`,
	}

	set := &cobra.Command{
		Use:   "set NAME",
		Short: "Prompt for and store a profile's password",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			value, err := a.promptSecret(fmt.Sprintf("Password for %s: ", name))
			if err != nil {
				return err
			}
			if err := a.manager.SetSecret(name, value); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Stored secret for %s.\n", name)
			return nil
		},
	}

	clear := &cobra.Command{
		Use:   "clear NAME",
		Short: "Delete a profile's stored password",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.manager.ClearSecret(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Cleared secret for %s.\n", args[0])
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show NAME",
		Short: "Report whether a profile has a stored password",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.manager.HasSecret(args[0]) {
				fmt.Fprintf(a.out, "%s has a stored secret.\n", args[0])
			} else {
				fmt.Fprintf(a.out, "%s has no stored secret.\n", args[0])
			}
			return nil
		},
	}

	secret.AddCommand(set, clear, show)
	return secret
}
