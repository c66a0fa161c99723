// Package cli implements the vpnswitch command-line interface. It
// exposes one-shot subcommands over a wired Manager so VPN connections
// can be scripted without launching the interactive interface, and maps
// error classes to distinct process exit codes.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"vpnswitch/common"
	"vpnswitch/vpn"
)

// Exit codes returned by Execute. Scripts rely on these staying stable.
const (
	ExitOK           = 0
	ExitError        = 1
	ExitNotFound     = 2
	ExitBackend      = 3
	ExitTimeout      = 4
	ExitInvalidInput = 5
)

// Options carries the wired application core into the command tree.
type Options struct {
	Manager *vpn.Manager
	Version string
	// DefaultSort is the configured listing order, used when --sort is
	// not given.
	DefaultSort vpn.SortKey
	// RunTUI launches the interactive interface when the root command
	// is invoked without a subcommand. Nil falls back to help output.
	RunTUI func(ctx context.Context) error
}

type app struct {
	manager     *vpn.Manager
	runTUI      func(ctx context.Context) error
	defaultSort vpn.SortKey
	out         io.Writer
	errOut      io.Writer
	in          io.Reader
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, opts Options) int {
	a := &app{
		manager:     opts.Manager,
		runTUI:      opts.RunTUI,
		defaultSort: vpn.ParseSortKey(string(opts.DefaultSort)),
		out:         os.Stdout,
		errOut:      os.Stderr,
		in:          os.Stdin,
	}

	root := a.rootCommand(opts.Version)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(a.errOut, "vpnswitch: %v\n", err)
		return ExitCode(err)
	}
	return ExitOK
}

// ExitCode maps an error to the documented exit codes. Backend timeouts
// unwrap to ErrTimeout and take precedence over the generic backend
// class.
func ExitCode(err error) int {
	var backendErr *vpn.BackendError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, common.ErrProfileNotFound):
		return ExitNotFound
	case errors.Is(err, common.ErrTimeout):
		return ExitTimeout
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrInvalidProfile):
		return ExitInvalidInput
	case errors.As(err, &backendErr):
		return ExitBackend
	default:
		return ExitError
	}
}

func (a *app) rootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "vpnswitch",
		Short: "Switch between VPN profiles from the terminal",
		Long: `vpnswitch keeps a registry of VPN profiles and drives the native
platform tools (nmcli, scutil, rasdial) so that exactly one tunnel is
up at a time.

Run without arguments to open the interactive interface. Subcommands
cover scripted use:

  vpnswitch connect office
  vpnswitch disconnect
  vpnswitch status --watch
  vpnswitch list --sort last-used
  vpnswitch import ~/Downloads/corp.xml`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.runTUI == nil {
				return cmd.Help()
			}
			return a.runTUI(cmd.Context())
		},
	}

	root.AddCommand(
		a.connectCommand(),
		a.disconnectCommand(),
		a.statusCommand(),
		a.listCommand(),
		a.addCommand(),
		a.editCommand(),
		a.removeCommand(),
		a.aliasCommand(),
		a.importCommand(),
		a.secretCommand(),
	)
	return root
}

// exactArgs mirrors cobra.ExactArgs but classifies violations as
// invalid input so they exit with the right code.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("%w: %s expects %d argument(s), got %d", common.ErrInvalidInput, cmd.Name(), n, len(args))
		}
		return nil
	}
}

func rangeArgs(min, max int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < min || len(args) > max {
			return fmt.Errorf("%w: %s expects between %d and %d arguments, got %d", common.ErrInvalidInput, cmd.Name(), min, max, len(args))
		}
		return nil
	}
}

// printTable renders rows with the shared table style.
func (a *app) printTable(header table.Row, rows []table.Row) {
	t := table.NewWriter()
	t.SetStyle(table.StyleDefault)
	t.SetOutputMirror(a.out)
	t.AppendHeader(header)
	t.AppendRows(rows)
	t.Render()
}

// promptSecret reads a password without echo when attached to a
// terminal, falling back to a plain line read for piped input.
func (a *app) promptSecret(prompt string) (string, error) {
	fmt.Fprint(a.out, prompt)
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.out)
		if err != nil {
			return "", common.WrapError(err, "failed to read password")
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return "", common.WrapError(err, "failed to read password")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// confirm asks a yes/no question and defaults to no.
func (a *app) confirm(prompt string) bool {
	fmt.Fprintf(a.out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
