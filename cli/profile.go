package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"vpnswitch/common"
	"vpnswitch/vpn"
)

// profileFlags holds the attribute flags shared by add and edit.
type profileFlags struct {
	gateway     string
	alias       string
	category    string
	protocol    string
	username    string
	certPath    string
	autoConnect bool
}

func (f *profileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.gateway, "gateway", "", "VPN server address (host or FQDN)")
	cmd.Flags().StringVar(&f.alias, "alias", "", "short alias, unique across profiles")
	cmd.Flags().StringVar(&f.category, "category", "", "grouping category")
	cmd.Flags().StringVar(&f.protocol, "protocol", "", "protocol label (IKEv2, OpenVPN, ...)")
	cmd.Flags().StringVar(&f.username, "username", "", "authentication user")
	cmd.Flags().StringVar(&f.certPath, "cert", "", "client certificate path")
	cmd.Flags().BoolVar(&f.autoConnect, "auto-connect", false, "connect this profile at startup")
}

func (a *app) addCommand() *cobra.Command {
	flags := &profileFlags{}

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a profile for an existing OS-side VPN entry",
		Long: `Add registers a profile. The name must match the VPN connection as the
platform tool knows it (nmcli connection name, scutil service name, or
rasdial phonebook entry).`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := vpn.NewProfile(args[0], flags.gateway)
			p.Alias = flags.alias
			p.Category = flags.category
			p.Protocol = flags.protocol
			p.Username = flags.username
			p.CertPath = flags.certPath
			p.AutoConnect = flags.autoConnect

			if err := a.manager.Add(p); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Added %s.\n", p.Name)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func (a *app) editCommand() *cobra.Command {
	flags := &profileFlags{}

	cmd := &cobra.Command{
		Use:   "edit NAME",
		Short: "Update profile attributes",
		Long: `Edit changes only the attributes whose flags are given; everything
else keeps its value. The name itself is immutable.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := vpn.Patch{}
			set := cmd.Flags()
			if set.Changed("gateway") {
				patch.Gateway = &flags.gateway
			}
			if set.Changed("alias") {
				patch.Alias = &flags.alias
			}
			if set.Changed("category") {
				patch.Category = &flags.category
			}
			if set.Changed("protocol") {
				patch.Protocol = &flags.protocol
			}
			if set.Changed("username") {
				patch.Username = &flags.username
			}
			if set.Changed("cert") {
				patch.CertPath = &flags.certPath
			}
			if set.Changed("auto-connect") {
				patch.AutoConnect = &flags.autoConnect
			}

			if err := a.manager.Update(args[0], patch); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Updated %s.\n", args[0])
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func (a *app) removeCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "remove NAME",
		Aliases: []string{"rm"},
		Short:   "Remove a profile and its stored secret",
		Long: `Remove deletes a profile from the registry. If the profile's tunnel is
up it is disconnected first; a failed disconnect aborts the removal.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !yes && !a.confirm(fmt.Sprintf("Remove profile %q?", name)) {
				fmt.Fprintln(a.out, "Aborted.")
				return nil
			}

			if err := a.manager.Remove(cmd.Context(), name); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed %s.\n", name)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func (a *app) aliasCommand() *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   "alias NAME [ALIAS]",
		Short: "Set or clear a profile's alias",
		Args:  rangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			alias := ""
			switch {
			case clear:
			case len(args) == 2:
				alias = args[1]
			default:
				return fmt.Errorf("%w: alias expects a value or --clear", common.ErrInvalidInput)
			}

			if err := a.manager.Update(name, vpn.Patch{Alias: &alias}); err != nil {
				return err
			}
			if alias == "" {
				fmt.Fprintf(a.out, "Cleared alias for %s.\n", name)
			} else {
				fmt.Fprintf(a.out, "%s is now reachable as %q.\n", name, alias)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "remove the alias")
	return cmd
}
