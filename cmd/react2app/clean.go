package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kyleqiq/react2app/internal/config"
	"github.com/kyleqiq/react2app/internal/session"
	"github.com/kyleqiq/react2app/internal/state"
)

// wrapperDir holds the Expo project and design assets inside the web project.
const wrapperDir = "react2app"

type cleanOptions struct {
	yes       bool
	stateOnly bool
}

func newCleanCmd(a *app) *cobra.Command {
	var opts cleanOptions

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove react2app from this project",
		Long:  "Remove react2app.yaml, the react2app/ folder with the Expo project, and the recorded session and logs.\nUse --state-only to keep the project files and only forget the session.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := a.loadProject()
			if err != nil && !errors.Is(err, config.ErrNotFound) {
				return err
			}
			root := ""
			if cfg != nil {
				root = cfg.Dir()
			} else if root, err = os.Getwd(); err != nil {
				return err
			}

			store, err := state.DefaultStore()
			if err != nil {
				return err
			}
			return a.runClean(store, root, cfg, opts, cmd.InOrStdin(), session.IsTerminal(os.Stdin))
		},
	}
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "do not ask for confirmation")
	cmd.Flags().BoolVar(&opts.stateOnly, "state-only", false, "only forget the recorded session and logs")
	return cmd
}

// removalTargets lists what clean deletes, existing paths only. A mobile dir
// configured outside the project root is left alone.
func removalTargets(root string, cfg *config.Config) []string {
	wrapper := filepath.Join(root, wrapperDir)
	candidates := []string{filepath.Join(root, config.FileName), wrapper}
	if cfg != nil {
		candidates[0] = cfg.Path()
		mobile := cfg.Mobile.Dir
		if mobile != "" && within(root, mobile) && !within(wrapper, mobile) {
			candidates = append(candidates, mobile)
		}
	}

	var targets []string
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			targets = append(targets, path)
		}
	}
	return targets
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (a *app) runClean(store *state.Store, root string, cfg *config.Config, opts cleanOptions, in io.Reader, interactive bool) error {
	var targets []string
	if !opts.stateOnly {
		targets = removalTargets(root, cfg)
	}

	if len(targets) > 0 && !opts.yes {
		if !interactive {
			return errors.New("refusing to delete project files without --yes")
		}
		a.printer.Warning("This removes:")
		for _, path := range targets {
			a.printer.Detail("%s", path)
		}
		fmt.Fprint(a.printer.Writer(), "Continue? [y/N] ")
		answer, _ := bufio.NewReader(in).ReadString('\n')
		if reply := strings.ToLower(strings.TrimSpace(answer)); reply != "y" && reply != "yes" {
			return errors.New("aborted, nothing was removed")
		}
	}

	for _, path := range targets {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		a.printer.Info("Removed %s", path)
	}

	if err := store.Forget(root); err != nil {
		return err
	}
	a.printer.Success("Cleared session state for %s", root)
	return nil
}
