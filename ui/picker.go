package ui

import (
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"vpnswitch/common"
	"vpnswitch/importer"
	"vpnswitch/vpn"
)

// importPicker lists the importable files found in the imports
// directory. Selection is by index; paths is immutable once built.
type importPicker struct {
	dir    string
	paths  []string
	cursor int
}

func newImportPicker() (importPicker, error) {
	dir, err := common.GetImportsDir()
	if err != nil {
		return importPicker{}, err
	}
	paths, err := importer.ScanDir(dir)
	if err != nil {
		return importPicker{}, err
	}
	return importPicker{dir: dir, paths: paths}, nil
}

func (pk *importPicker) next() {
	if len(pk.paths) == 0 {
		return
	}
	pk.cursor = (pk.cursor + 1) % len(pk.paths)
}

func (pk *importPicker) prev() {
	if len(pk.paths) == 0 {
		return
	}
	pk.cursor = (pk.cursor - 1 + len(pk.paths)) % len(pk.paths)
}

func (pk *importPicker) selectedPath() string {
	if pk.cursor < 0 || pk.cursor >= len(pk.paths) {
		return ""
	}
	return pk.paths[pk.cursor]
}

func (pk *importPicker) names() []string {
	out := make([]string, len(pk.paths))
	for i, p := range pk.paths {
		out[i] = filepath.Base(p)
	}
	return out
}

// importFiles parses the given files and registers the candidates in
// one batch. Runs off the Update loop; the outcome comes back as an
// importedMsg.
func importFiles(mgr *vpn.Manager, paths []string) tea.Cmd {
	return func() tea.Msg {
		var candidates []*vpn.Profile
		var firstErr error
		for _, path := range paths {
			profiles, err := importer.ParseFile(path)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			candidates = append(candidates, profiles...)
		}
		results, err := mgr.ImportProfiles(candidates)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		accepted := 0
		for _, r := range results {
			if r.Accepted() {
				accepted++
			}
		}
		return importedMsg{accepted: accepted, total: len(results), err: firstErr}
	}
}
