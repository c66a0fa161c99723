package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"vpnswitch/common"
	"vpnswitch/importer"
)

func (a *app) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import [PATH...]",
		Short: "Import profiles from Azure VPN XML or OpenVPN files",
		Long: `Import parses exported profile files (.xml, .azvpn, .ovpn) and adds the
profiles they describe. Without arguments the imports directory under
the config dir is scanned. Existing profiles are never overwritten;
duplicates are reported and skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.collectImports(args)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(a.out, "Nothing to import.")
				return nil
			}

			stored, err := a.manager.ImportProfiles(importer.Candidates(results))
			if err != nil {
				return err
			}

			rows := make([]table.Row, 0, len(results)+len(stored))
			parseFailures := 0
			for _, r := range results {
				if r.Err != nil {
					parseFailures++
					rows = append(rows, table.Row{"-", filepath.Base(r.Path), r.Err.Error()})
				}
			}
			accepted := 0
			for _, r := range stored {
				outcome := "imported"
				if r.Err != nil {
					outcome = r.Err.Error()
				} else {
					accepted++
				}
				rows = append(rows, table.Row{r.Name, filepath.Base(r.Path), outcome})
			}
			a.printTable(table.Row{"PROFILE", "FILE", "RESULT"}, rows)
			fmt.Fprintf(a.out, "%d of %d profiles imported.\n", accepted, len(stored))

			if accepted == 0 && parseFailures > 0 {
				return fmt.Errorf("%w: no profiles imported", common.ErrInvalidInput)
			}
			return nil
		},
	}
}

// collectImports parses the given files and directories, or the default
// imports directory when none are given.
func (a *app) collectImports(paths []string) ([]importer.FileResult, error) {
	if len(paths) == 0 {
		dir, err := common.GetImportsDir()
		if err != nil {
			return nil, err
		}
		results, err := importer.LoadDir(dir)
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			fmt.Fprintf(a.out, "No importable files in %s.\n", dir)
		}
		return results, nil
	}

	var results []importer.FileResult
	for _, path := range paths {
		info, err := os.Stat(path)
		switch {
		case err != nil:
			results = append(results, importer.FileResult{Path: path, Err: common.WrapError(err, "cannot read import path")})
		case info.IsDir():
			sub, err := importer.LoadDir(path)
			if err != nil {
				return nil, err
			}
			results = append(results, sub...)
		default:
			profiles, err := importer.ParseFile(path)
			results = append(results, importer.FileResult{Path: path, Profiles: profiles, Err: err})
		}
	}
	return results, nil
}
