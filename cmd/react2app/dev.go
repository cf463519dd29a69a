package main

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kyleqiq/react2app/internal/config"
	"github.com/kyleqiq/react2app/internal/devserver"
	"github.com/kyleqiq/react2app/internal/doctor"
	"github.com/kyleqiq/react2app/internal/manifest"
	"github.com/kyleqiq/react2app/internal/network"
	"github.com/kyleqiq/react2app/internal/output"
	"github.com/kyleqiq/react2app/internal/session"
	"github.com/kyleqiq/react2app/internal/state"
)

type devFlags struct {
	host         string
	port         int
	device       string
	readyTimeout time.Duration
	noWatch      bool
	skipServices bool
}

func newDevCmd(a *app) *cobra.Command {
	var flags devFlags

	cmd := &cobra.Command{
		Use:       "dev [ios|android]",
		Short:     "Start the web and Expo dev servers together",
		Long:      "Start the web dev server and the Expo dev server side by side.\nWith a platform argument the native app is built and installed with `expo run` instead of opening in Expo Go.",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"ios", "android"},
		RunE: func(cmd *cobra.Command, args []string) error {
			platform := ""
			if len(args) == 1 {
				platform = args[0]
			}
			timeoutSet := cmd.Flags().Changed("ready-timeout")
			return a.runDev(cmd.Context(), platform, flags, timeoutSet)
		},
	}

	cmd.Flags().StringVar(&flags.host, "host", "", "host to bind both servers to (default: this machine's LAN address)")
	cmd.Flags().IntVarP(&flags.port, "port", "p", 0, "preferred web server port")
	cmd.Flags().StringVar(&flags.device, "device", "", "device or simulator name for `dev ios|android`")
	cmd.Flags().DurationVar(&flags.readyTimeout, "ready-timeout", config.DefaultReadyTimeout, "how long each server may take to become ready (0 waits forever)")
	cmd.Flags().BoolVar(&flags.noWatch, "no-watch", false, "do not re-sync app.json when react2app.yaml changes")
	cmd.Flags().BoolVar(&flags.skipServices, "skip-services", false, "skip database and cache reachability checks")
	return cmd
}

func (a *app) runDev(ctx context.Context, platform string, flags devFlags, timeoutSet bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a.printer.Banner("react2app - dev")

	cfg, paths, err := a.loadProject()
	if err != nil {
		return err
	}

	// Doctor first, like every dev run
	a.printer.Step("Checking environment...")
	result := doctor.Run(ctx, doctor.Options{
		Config:       cfg,
		Paths:        paths,
		Platform:     platform,
		SkipServices: flags.skipServices,
	})
	result.PrintResults(a.printer)
	if !result.Valid {
		return errors.New("environment check failed; fix the errors above and retry")
	}

	a.printer.Step("Syncing %s...", paths.ManifestFile())
	if err := manifest.Sync(paths, cfg, a.logger); err != nil {
		return err
	}

	web, err := devserver.DetectWebFramework(paths.Root, cfg.Dev.Framework)
	if err != nil {
		return err
	}
	web = web.WithPorts(cfg.Dev.WebPorts)

	appFramework := devserver.Expo(paths.MobileRoot)
	if platform != "" {
		appFramework = devserver.ExpoRun(paths.MobileRoot, platform, flags.device)
	}
	appFramework = appFramework.WithPorts(cfg.Dev.AppPorts)

	store, err := state.DefaultStore()
	if err != nil {
		a.logger.Warn("session state disabled", "err", err)
		store = nil
	}

	host := flags.host
	if host == "" {
		host = cfg.Dev.Host
	}
	port := flags.port
	if port == 0 {
		port = cfg.Dev.WebPort
	}

	a.printer.Step("Resolving addresses...")
	plan, err := session.MakePlan(session.PlanRequest{
		Paths:    paths,
		Host:     host,
		WebPort:  port,
		Web:      web,
		App:      appFramework,
		Resolver: &network.Resolver{Logger: a.logger},
		Store:    store,
		Logger:   a.logger,
	})
	if err != nil {
		return err
	}
	a.logger.Debug("planned", "web", plan.Web.URL(), "app", plan.App.URL())
	if plan.Session != nil {
		a.logger.Debug("recorded session", "id", plan.Session.ID, "state", store.Path())
	}

	timeout := cfg.Dev.Timeout()
	if timeoutSet {
		timeout = flags.readyTimeout
	}

	shared := output.NewLockedWriter(os.Stdout)
	webLog := a.openLog(store, paths.Root, "web")
	defer closeLog(webLog)
	appLog := a.openLog(store, paths.Root, "app")
	defer closeLog(appLog)

	webServer := devserver.New(devserver.Config{
		Name:         "web",
		Framework:    web,
		Address:      plan.Web,
		Logging:      devserver.Logging{Verbose: a.flags.verbose},
		ReadyTimeout: timeout,
		Stdout:       shared,
		LogFile:      webLog,
	}, a.logger)
	appServer := devserver.New(devserver.Config{
		Name:         "app",
		Framework:    appFramework,
		Address:      plan.App,
		Logging:      devserver.Logging{Verbose: a.flags.verbose},
		ReadyTimeout: timeout,
		Stdout:       shared,
		LogFile:      appLog,
	}, a.logger)

	reporter := session.NewReporter(os.Stdout, appFramework.DeepLinkScheme)
	reporter.Out = shared

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.printer.Step("Starting %s and %s (this can take a moment)...", web.Name, appFramework.Name)
	return session.Run(sessionCtx, session.Options{
		Web:      webServer,
		App:      appServer,
		Printer:  a.printer,
		Logger:   a.logger,
		Reporter: reporter,
		OnReady: func(network.ServerAddress, network.ServerAddress) {
			if flags.noWatch {
				return
			}
			a.watchConfig(sessionCtx, paths)
		},
	})
}

// watchConfig re-syncs app.json whenever react2app.yaml is saved.
func (a *app) watchConfig(ctx context.Context, paths config.ProjectPaths) {
	err := manifest.Watch(ctx, paths.ConfigFile, a.logger, func() {
		cfg, err := config.LoadConfig(paths.ConfigFile)
		if err != nil || cfg == nil {
			a.logger.Warn("could not reload config", "err", err)
			return
		}
		if err := cfg.Validate(); err != nil {
			a.logger.Warn("config changed but is invalid, not syncing", "err", err)
			return
		}
		if err := manifest.Sync(config.NewProjectPaths(cfg), cfg, a.logger); err != nil {
			a.logger.Warn("sync failed", "err", err)
			return
		}
		a.logger.Info("synced app.json; reload the app to see changes")
	})
	if err != nil {
		a.logger.Warn("not watching config", "err", err)
	}
}

func (a *app) openLog(store *state.Store, project, server string) io.WriteCloser {
	if store == nil {
		return nil
	}
	f, err := store.OpenLog(project, server)
	if err != nil {
		a.logger.Warn("server log disabled", "server", server, "err", err)
		return nil
	}
	a.logger.Debug("logging", "server", server, "file", f.Name())
	return f
}

func closeLog(w io.WriteCloser) {
	if w != nil {
		w.Close()
	}
}
