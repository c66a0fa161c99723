// Package main is the entry point for vpnswitch, a VPN connection
// switcher for profiles already registered with the operating system.
// It launches the interactive terminal interface when invoked without
// a subcommand, and a scripting-friendly CLI otherwise.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"vpnswitch/cli"
	"vpnswitch/common"
	"vpnswitch/config"
	"vpnswitch/importer"
	"vpnswitch/keyring"
	"vpnswitch/notify"
	"vpnswitch/ui"
	"vpnswitch/usage"
	"vpnswitch/vpn"
)

// Build-time version injected via ldflags (-X main.appVersion=x.y.z).
var appVersion = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: using default settings: %v\n", err)
		cfg = config.DefaultSettings()
	}

	if err := common.InitLogger(common.LogConfig{
		Level:      common.ParseLevel(cfg.LogLevel),
		EnableFile: true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not initialize file logging: %v\n", err)
	}
	defer common.CloseLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	dataDir, err := common.GetDataDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot resolve data directory: %v\n", err)
		return 1
	}

	var recorder common.UsageRecorder
	tracker, err := usage.Open(filepath.Join(dataDir, common.UsageDBFileName))
	if err != nil {
		common.LogWarn("usage history unavailable: %v", err)
	} else {
		recorder = tracker
		defer tracker.Close()
	}

	store, err := vpn.NewStore(filepath.Join(dataDir, common.ProfilesFileName), recorder)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot load profiles: %v\n", err)
		return 1
	}

	vault := keyring.Service{}
	backend := vpn.NewBackend(vault, time.Duration(cfg.BackendTimeoutSeconds)*time.Second)

	notifier := notify.Disabled()
	if cfg.ShowNotifications {
		notifier = notify.New()
	}

	mgr := vpn.NewManager(vpn.ManagerOptions{
		Store:       store,
		Backend:     backend,
		Tuning:      tuningFromSettings(cfg),
		Secrets:     vault,
		Notifier:    notifier,
		Notify:      cfg.ShowNotifications,
		AdoptActive: cfg.AdoptActiveOnStart,
	})

	common.LogInfo("starting %s v%s (backend: %s)", common.AppName, appVersion, backend.Name())
	mgr.Start(ctx)
	defer mgr.Stop()

	if cfg.AutoImport {
		autoImport(mgr)
	}

	defaultSort := vpn.ParseSortKey(cfg.DefaultSort)
	return cli.Execute(ctx, cli.Options{
		Manager:     mgr,
		Version:     appVersion,
		DefaultSort: defaultSort,
		RunTUI: func(ctx context.Context) error {
			go autoConnect(ctx, mgr)
			return ui.Run(ctx, mgr, ui.Options{Sort: defaultSort, Theme: cfg.Theme})
		},
	})
}

// autoConnect brings up the first profile flagged auto_connect when an
// interactive session starts and nothing is active yet. It runs in the
// background so the interface never waits on it.
func autoConnect(ctx context.Context, mgr *vpn.Manager) {
	if mgr.State().Phase != vpn.PhaseIdle {
		return
	}
	for _, p := range mgr.List(vpn.SortByName) {
		if !p.AutoConnect {
			continue
		}
		common.LogInfo("auto-connect: %s", p.Name)
		if _, err := mgr.Connect(ctx, p.Name); err != nil {
			common.LogWarn("auto-connect %s: %v", p.Name, err)
		}
		return
	}
}

// autoImport sweeps the imports directory at startup. Failures are
// logged and skipped; a bad file must not block the application.
func autoImport(mgr *vpn.Manager) {
	dir, err := common.GetImportsDir()
	if err != nil {
		common.LogWarn("auto-import: %v", err)
		return
	}
	results, err := importer.LoadDir(dir)
	if err != nil {
		common.LogWarn("auto-import: %v", err)
		return
	}
	candidates := importer.Candidates(results)
	if len(candidates) == 0 {
		return
	}
	outcomes, err := mgr.ImportProfiles(candidates)
	if err != nil {
		common.LogWarn("auto-import: %v", err)
	}
	accepted := 0
	for _, r := range outcomes {
		if r.Accepted() {
			accepted++
		}
	}
	if accepted > 0 {
		common.LogInfo("auto-import: %d of %d profiles imported from %s", accepted, len(outcomes), dir)
	}
}

func tuningFromSettings(cfg *config.Settings) vpn.Tuning {
	return vpn.Tuning{
		ConnectAttempts:                cfg.ConnectAttempts,
		PollInterval:                   time.Duration(cfg.PollIntervalSeconds) * time.Second,
		PollAttempts:                   cfg.PollAttempts,
		DisconnectPollAttempts:         cfg.DisconnectPollAttempts,
		RetryDelay:                     time.Duration(cfg.RetryDelaySeconds) * time.Second,
		StatusCheckInterval:            time.Duration(cfg.StatusCheckIntervalSeconds) * time.Second,
		QueueCapacity:                  cfg.QueueCapacity,
		SwitchAbortOnDisconnectFailure: cfg.SwitchAbortOnDisconnectFailure,
	}
}

// setupSignalHandler cancels the root context on SIGINT or SIGTERM so
// in-flight backend calls unwind before exit.
func setupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		common.LogInfo("received signal %v, shutting down", sig)
		cancel()
	}()
}
