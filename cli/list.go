package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"vpnswitch/vpn"
)

func (a *app) listCommand() *cobra.Command {
	var sortKey string

	cmd := &cobra.Command{
		Use:     "list [QUERY]",
		Aliases: []string{"l"},
		Short:   "List profiles, optionally filtered by a search query",
		Long: `List prints the profile registry. A query filters by name, alias, or
category substring, case-insensitively. The active profile's state and
tunnel address are filled in from the backend.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			profiles := a.manager.Search(query, vpn.ParseSortKey(sortKey))
			if len(profiles) == 0 {
				if query == "" {
					fmt.Fprintln(a.out, "No profiles configured. Add one with: vpnswitch add NAME --gateway HOST")
				} else {
					fmt.Fprintf(a.out, "No profiles match %q.\n", query)
				}
				return nil
			}

			st := a.manager.State()
			ips := make(map[string]string)
			if actives, err := a.manager.ActiveDetails(cmd.Context()); err == nil {
				for _, ac := range actives {
					ips[ac.Name] = ac.IP
				}
			}

			rows := make([]table.Row, 0, len(profiles))
			for _, p := range profiles {
				status := "-"
				if st.Profile == p.Name && st.Phase != vpn.PhaseIdle {
					status = st.Phase.String()
				}
				rows = append(rows, table.Row{
					p.Name,
					orDash(p.Alias),
					p.Category,
					status,
					orDash(ips[p.Name]),
					formatLastUsed(p.LastUsed),
				})
			}
			a.printTable(table.Row{"NAME", "ALIAS", "CATEGORY", "STATUS", "IP", "LAST USED"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&sortKey, "sort", string(a.defaultSort), "sort key: name, category, or last-used")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatLastUsed(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("2006-01-02 15:04")
}
