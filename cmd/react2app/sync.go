package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kyleqiq/react2app/internal/doctor"
	"github.com/kyleqiq/react2app/internal/manifest"
)

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Copy react2app.yaml settings and assets into the Expo project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, paths, err := a.loadProject()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a.printer.Step("Syncing %s...", paths.ManifestFile())
			if err := manifest.Sync(paths, cfg, a.logger); err != nil {
				return err
			}
			a.printer.Success("app.json is up to date")
			return nil
		},
	}
}

func newDoctorCmd(a *app) *cobra.Command {
	var skipServices bool

	cmd := &cobra.Command{
		Use:       "doctor [ios|android]",
		Short:     "Check tools, project layout, and backing services",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"ios", "android"},
		RunE: func(cmd *cobra.Command, args []string) error {
			platform := ""
			if len(args) == 1 {
				platform = args[0]
			}

			opts := doctor.Options{Platform: platform, SkipServices: skipServices}
			cfg, paths, err := a.loadProject()
			if err == nil {
				opts.Config = cfg
				opts.Paths = paths
			} else {
				a.logger.Debug("no config", "err", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			a.printer.Header("🩺 react2app doctor")
			result := doctor.Run(ctx, opts)
			result.PrintResults(a.printer)
			return result.Err()
		},
	}
	cmd.Flags().BoolVar(&skipServices, "skip-services", false, "skip database and cache reachability checks")
	return cmd
}
