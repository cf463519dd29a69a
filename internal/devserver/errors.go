package devserver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kyleqiq/react2app/internal/process"
)

// ErrNotStarted is returned by Address before Start has succeeded.
var ErrNotStarted = errors.New("dev server has not started")

// ErrPrematureExit marks a server that exited before printing its ready line.
var ErrPrematureExit = errors.New("exited before becoming ready")

// Phase is the point of Start where a failure happened.
type Phase string

const (
	PhaseLaunch Phase = "launch"
	PhaseReady  Phase = "ready"
	PhaseExit   Phase = "exit"
)

// StartError reports which server failed, where, and what to do about it.
type StartError struct {
	Server   string
	Phase    Phase
	ExitCode int
	Hint     string
	Err      error
}

func (e *StartError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s server failed to start", e.Server)
	switch e.Phase {
	case PhaseExit:
		if e.ExitCode < 0 {
			b.WriteString(": was stopped before becoming ready")
		} else {
			fmt.Fprintf(&b, ": exited with code %d before becoming ready", e.ExitCode)
		}
	default:
		fmt.Fprintf(&b, " (%s): %v", e.Phase, e.Err)
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, "; %s", e.Hint)
	}
	return b.String()
}

func (e *StartError) Unwrap() error {
	return e.Err
}

var accessDeniedMarkers = []string{"EACCES", "permission denied", "Permission denied"}

// hintFor derives an actionable hint from the failure and recent output.
func hintFor(err error, port int, output []string) string {
	var notInstalled *process.ProgramNotInstalledError
	if errors.As(err, &notInstalled) {
		switch notInstalled.Program {
		case "npx", "npm", "node":
			return "install Node.js (https://nodejs.org) so that " + notInstalled.Program + " is on PATH"
		default:
			return "install " + notInstalled.Program + " and make sure it is on PATH"
		}
	}

	texts := append([]string{}, output...)
	if err != nil {
		texts = append(texts, err.Error())
	}
	for _, text := range texts {
		for _, marker := range accessDeniedMarkers {
			if strings.Contains(text, marker) {
				return fmt.Sprintf("permission denied for port %d; use a port above 1024", port)
			}
		}
		if strings.Contains(text, "EADDRINUSE") || strings.Contains(text, "address already in use") {
			return fmt.Sprintf("port %d was taken by another process; stop it or pass --port", port)
		}
	}
	return ""
}
