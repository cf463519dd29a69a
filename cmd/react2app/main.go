package main

import (
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/kyleqiq/react2app/internal/config"
	"github.com/kyleqiq/react2app/internal/devserver"
	"github.com/kyleqiq/react2app/internal/output"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

type globalFlags struct {
	configPath string
	verbose    bool
}

// app carries what every command needs.
type app struct {
	flags   globalFlags
	printer *output.Printer
	logger  *log.Logger
}

func main() {
	a := &app{printer: output.NewPrinter(os.Stdout)}
	root := newRootCmd(a)

	if err := root.Execute(); err != nil {
		a.reportError(err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "react2app",
		Short:         "Run your React or Next.js app as a mobile app",
		Long:          "react2app wraps a React or Next.js project in an Expo app and runs both dev servers side by side.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.logger = output.NewLogger(os.Stderr, a.flags.verbose)
		},
	}

	root.PersistentFlags().StringVarP(&a.flags.configPath, "config", "c", "", "path to react2app.yaml (default: search from the current directory)")
	root.PersistentFlags().BoolVarP(&a.flags.verbose, "verbose", "v", false, "show dev server output before ready and debug logs")
	root.PersistentFlags().BoolVar(&a.flags.verbose, "debug", false, "alias for --verbose")

	root.AddCommand(
		newDevCmd(a),
		newSyncCmd(a),
		newDoctorCmd(a),
		newInitCmd(a),
		newStatusCmd(a),
		newCleanCmd(a),
		newVersionCmd(a),
	)
	return root
}

// loadProject finds and loads react2app.yaml and derives the project paths.
func (a *app) loadProject() (*config.Config, config.ProjectPaths, error) {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return nil, config.ProjectPaths{}, err
	}
	return cfg, config.NewProjectPaths(cfg), nil
}

func (a *app) reportError(err error) {
	var startErr *devserver.StartError
	if errors.As(err, &startErr) && startErr.Hint != "" {
		a.printer.Error("%s server failed to start", startErr.Server)
		a.printer.Detail("%v", startErr.Err)
		a.printer.Detail("💡 %s", startErr.Hint)
		return
	}
	a.printer.Error("%v", err)
}
