package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vpnswitch/vpn"
)

func (a *app) statusCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"s"},
		Short:   "Show the current connection state",
		Args:    exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch {
				return a.watchState(cmd.Context())
			}

			st := a.manager.State()
			fmt.Fprintln(a.out, st.String())

			if st.Phase == vpn.PhaseConnected {
				if ip := a.activeIP(cmd.Context(), st.Profile); ip != "" {
					fmt.Fprintf(a.out, "IP: %s\n", ip)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep printing state transitions until interrupted")
	return cmd
}

// watchState streams state transitions to stdout until the context is
// cancelled or the feed closes.
func (a *app) watchState(ctx context.Context) error {
	feed := a.manager.SubscribeState()
	defer a.manager.UnsubscribeState(feed)

	fmt.Fprintf(a.out, "%s %s\n", time.Now().Format("15:04:05"), a.manager.State().String())
	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-feed:
			if !ok {
				return nil
			}
			fmt.Fprintf(a.out, "%s %s\n", time.Now().Format("15:04:05"), st.String())
		}
	}
}

// activeIP looks up the tunnel address the backend reports for name.
func (a *app) activeIP(ctx context.Context, name string) string {
	actives, err := a.manager.ActiveDetails(ctx)
	if err != nil {
		return ""
	}
	for _, ac := range actives {
		if ac.Name == name {
			return ac.IP
		}
	}
	return ""
}
