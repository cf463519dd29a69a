package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kyleqiq/react2app/internal/state"
)

// projectRoot is the web project root, or the working directory without a config.
func (a *app) projectRoot() (string, error) {
	if cfg, _, err := a.loadProject(); err == nil {
		return cfg.Dir(), nil
	}
	return os.Getwd()
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the addresses and logs of the last dev session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := a.projectRoot()
			if err != nil {
				return err
			}
			store, err := state.DefaultStore()
			if err != nil {
				return err
			}
			return a.runStatus(store, root)
		},
	}
}

func (a *app) runStatus(store *state.Store, root string) error {
	sess, ok, err := store.Lookup(root)
	if err != nil {
		return err
	}
	if !ok {
		a.printer.Info("No dev session recorded for %s", root)
		return nil
	}

	a.printer.Header("Last dev session")
	a.printer.Detail("Session: %s", sess.ID)
	a.printer.Detail("Started: %s (%s ago)", sess.StartedAt.Local().Format(time.DateTime), time.Since(sess.StartedAt).Round(time.Second))
	a.printRecord("Web", sess.WebServer)
	a.printRecord("App", sess.AppServer)
	return nil
}

func (a *app) printRecord(label string, rec state.ServerRecord) {
	a.printer.Detail("%s: http://%s:%d (%s)", label, rec.LastHost, rec.LastPort, rec.Framework)
	if rec.LogFile != "" {
		a.printer.Detail("     log: %s", rec.LogFile)
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the react2app version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "react2app %s\n", version)
		},
	}
}
