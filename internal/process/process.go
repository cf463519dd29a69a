package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"
)

// State represents the lifecycle state of a launched process
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	StateError    State = "error"
)

// TerminateGrace is how long a process group gets between SIGTERM and SIGKILL.
var TerminateGrace = 5 * time.Second

// ErrProgramNotInstalled matches every ProgramNotInstalledError.
var ErrProgramNotInstalled = errors.New("program is not installed")

// ProgramNotInstalledError is returned when the executable cannot be found.
type ProgramNotInstalledError struct {
	Program string
	Err     error
}

func (e *ProgramNotInstalledError) Error() string {
	return fmt.Sprintf("%s is not installed or not on PATH", e.Program)
}

func (e *ProgramNotInstalledError) Is(target error) bool {
	return target == ErrProgramNotInstalled
}

func (e *ProgramNotInstalledError) Unwrap() error {
	return e.Err
}

// Spec describes a command to launch.
type Spec struct {
	Name string
	Args []string
	Dir  string
	// Env is overlaid on the parent environment.
	Env map[string]string
}

func (s Spec) String() string {
	return strings.TrimSpace(s.Name + " " + strings.Join(s.Args, " "))
}

// Process is a running child. Stdout and Stderr must both be drained by the
// caller; they reach EOF once the process has exited.
type Process struct {
	Spec   Spec
	Stdout io.Reader
	Stderr io.Reader

	cmd     *exec.Cmd
	stdoutW *io.PipeWriter
	stderrW *io.PipeWriter
	done    chan struct{}

	mu         sync.RWMutex
	state      State
	exitCode   int
	err        error
	terminated bool
}

// Launch starts spec as a child process in its own process group.
func Launch(spec Spec) (*Process, error) {
	if spec.Dir != "" {
		if info, err := os.Stat(spec.Dir); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("working directory %s does not exist", spec.Dir)
		}
	}

	cmd := exec.Command(spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = MergeEnv(os.Environ(), spec.Env)
	cmd.WaitDelay = 2 * time.Second
	setProcessGroup(cmd)

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	p := &Process{
		Spec:    spec,
		Stdout:  stdoutR,
		Stderr:  stderrR,
		cmd:     cmd,
		stdoutW: stdoutW,
		stderrW: stderrW,
		done:    make(chan struct{}),
		state:   StateStarting,
	}

	if err := cmd.Start(); err != nil {
		stdoutW.Close()
		stderrW.Close()
		if isNotFound(err) {
			return nil, &ProgramNotInstalledError{Program: spec.Name, Err: err}
		}
		return nil, fmt.Errorf("failed to start %s: %w", spec.Name, err)
	}

	p.setState(StateRunning)
	go p.monitorExit()

	return p, nil
}

// monitorExit waits for the child and records how it ended
func (p *Process) monitorExit() {
	err := p.cmd.Wait()

	if errors.Is(err, exec.ErrWaitDelay) {
		err = nil
	}

	p.mu.Lock()
	p.exitCode = -1
	if p.cmd.ProcessState != nil {
		p.exitCode = p.cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		p.err = err
	}
	if p.terminated || (err == nil && p.exitCode == 0) {
		p.state = StateStopped
	} else {
		p.state = StateError
	}
	p.mu.Unlock()

	p.stdoutW.Close()
	p.stderrW.Close()
	close(p.done)
}

// Done is closed when the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitCode is the exit status, or -1 while running or when killed by a signal.
func (p *Process) ExitCode() int {
	select {
	case <-p.done:
	default:
		return -1
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitCode
}

// Err reports a wait failure that is not a plain non-zero exit.
func (p *Process) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

// Pid returns the child's process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// State returns the current lifecycle state.
func (p *Process) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// IsRunning returns whether the process has not exited yet
func (p *Process) IsRunning() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Terminated reports whether Terminate was called.
func (p *Process) Terminated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.terminated
}

// Terminate signals the process group to stop and escalates to a hard kill
// after TerminateGrace. Calling it more than once is a no-op.
func (p *Process) Terminate() error {
	p.mu.Lock()
	if p.terminated {
		p.mu.Unlock()
		return nil
	}
	p.terminated = true
	if p.IsRunning() {
		p.state = StateStopping
	}
	p.mu.Unlock()

	if !p.IsRunning() {
		return nil
	}

	if err := signalTerminate(p.cmd); err != nil {
		return fmt.Errorf("failed to stop %s: %w", p.Spec.Name, err)
	}

	go func() {
		select {
		case <-p.done:
		case <-time.After(TerminateGrace):
			forceKill(p.cmd)
		}
	}()
	return nil
}

// Wait blocks until the process exits or ctx is done.
func (p *Process) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Process) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// MergeEnv overlays extra on base, replacing keys that already exist.
func MergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}

	env := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, overridden := extra[key]; overridden {
			continue
		}
		env = append(env, kv)
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

// Probe runs a short command and returns its combined output.
func Probe(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if isNotFound(err) {
			return "", &ProgramNotInstalledError{Program: name, Err: err}
		}
		return string(out), fmt.Errorf("%s %s failed: %w", name, strings.Join(args, " "), err)
	}
	return string(out), nil
}

// LookPath reports whether name resolves to an executable.
func LookPath(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return &ProgramNotInstalledError{Program: name, Err: err}
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}
