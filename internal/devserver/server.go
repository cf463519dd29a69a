package devserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"

	"github.com/kyleqiq/react2app/internal/network"
	"github.com/kyleqiq/react2app/internal/process"
	"github.com/kyleqiq/react2app/internal/readiness"
)

// tailLines is how much recent output is kept for error hints.
const tailLines = 20

// Logging controls how a server's output reaches the terminal.
type Logging struct {
	Prefix string
	Color  color.Attribute
	// Verbose forwards output produced before the server is ready.
	Verbose bool
}

// Config binds a framework to an address and a logging policy.
type Config struct {
	Name         string
	Framework    Framework
	Address      network.ServerAddress
	Logging      Logging
	ReadyTimeout time.Duration
	Stdout       io.Writer
	Stderr       io.Writer
	// LogFile receives every line, ready or not, without colour.
	LogFile io.Writer
}

// DevServer owns one dev server child process for the length of a session.
// It cannot be restarted once killed.
type DevServer struct {
	cfg    Config
	logger *log.Logger
	prefix string
	errFmt *color.Color

	mu       sync.Mutex
	proc     *process.Process
	detector *readiness.Detector
	started  bool
	killed   bool
	exitCode int
	tail     []string

	done     chan struct{}
	doneOnce sync.Once
}

// New creates a dev server. Nothing runs until Start.
func New(cfg Config, logger *log.Logger) *DevServer {
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = cfg.Stdout
	}
	if cfg.Logging.Prefix == "" {
		cfg.Logging.Prefix = cfg.Framework.LogPrefix
	}
	if cfg.Logging.Color == 0 {
		cfg.Logging.Color = cfg.Framework.Color
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Framework.Name
	}

	return &DevServer{
		cfg:      cfg,
		logger:   logger.With("server", cfg.Name),
		prefix:   color.New(cfg.Logging.Color, color.Bold).Sprint(cfg.Logging.Prefix),
		errFmt:   color.New(color.FgRed),
		exitCode: -1,
		done:     make(chan struct{}),
	}
}

// Name identifies the server in messages.
func (s *DevServer) Name() string {
	return s.cfg.Name
}

// Framework returns the descriptor this server runs.
func (s *DevServer) Framework() Framework {
	return s.cfg.Framework
}

// Start launches the process and blocks until it is ready, fails, exits, or
// ctx is done. Any failure leaves no child running.
func (s *DevServer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.killed {
		s.mu.Unlock()
		return fmt.Errorf("%s server was already stopped", s.cfg.Name)
	}
	if s.proc != nil {
		s.mu.Unlock()
		return fmt.Errorf("%s server is already running", s.cfg.Name)
	}

	cmd := s.cfg.Framework.BuildCommand(s.cfg.Address)
	s.logger.Debug("launching", "cmd", cmd.Name, "args", cmd.Args, "dir", cmd.Dir, "addr", s.cfg.Address.String())

	proc, err := process.Launch(process.Spec{
		Name: cmd.Name,
		Args: cmd.Args,
		Dir:  cmd.Dir,
		Env:  cmd.Env,
	})
	if err != nil {
		s.mu.Unlock()
		return &StartError{
			Server: s.cfg.Name,
			Phase:  PhaseLaunch,
			Hint:   hintFor(err, s.cfg.Address.Port, nil),
			Err:    err,
		}
	}

	detector := readiness.New(s.cfg.Framework.ReadyMessage, s.readyTimeout())
	s.proc = proc
	s.detector = detector
	s.mu.Unlock()

	var streams sync.WaitGroup
	streams.Add(2)
	go func() {
		defer streams.Done()
		detector.Watch(proc.Stdout, func(line string, ready bool) {
			s.forward(s.cfg.Stdout, line, ready, false)
		})
	}()
	go func() {
		defer streams.Done()
		s.forwardStderr(proc.Stderr, detector)
	}()
	go func() {
		<-proc.Done()
		streams.Wait()
		s.mu.Lock()
		s.exitCode = proc.ExitCode()
		s.mu.Unlock()
		s.markDone()
	}()

	waitErr := make(chan error, 1)
	go func() { waitErr <- detector.Wait(ctx) }()

	select {
	case err = <-waitErr:
	case <-s.done:
		err = readiness.ErrStreamClosed
	}

	if err == nil {
		s.mu.Lock()
		s.started = true
		s.mu.Unlock()
		s.logger.Debug("ready", "url", s.cfg.Address.URL())
		return nil
	}

	if errors.Is(err, readiness.ErrStreamClosed) {
		select {
		case <-s.done:
		case <-ctx.Done():
			s.Kill()
			<-s.done
		}
		if detector.IsReady() {
			// printed the ready line and exited in the same breath
			s.mu.Lock()
			s.started = true
			s.mu.Unlock()
			return nil
		}
		code := s.ExitCode()
		return &StartError{
			Server:   s.cfg.Name,
			Phase:    PhaseExit,
			ExitCode: code,
			Hint:     hintFor(nil, s.cfg.Address.Port, s.recentOutput()),
			Err:      fmt.Errorf("%w (exit code %d)", ErrPrematureExit, code),
		}
	}

	s.Kill()
	return &StartError{
		Server: s.cfg.Name,
		Phase:  PhaseReady,
		Hint:   hintFor(err, s.cfg.Address.Port, s.recentOutput()),
		Err:    err,
	}
}

// Kill stops the process if it is running. It is safe to call repeatedly,
// before Start, and after the process has exited on its own.
func (s *DevServer) Kill() {
	s.mu.Lock()
	if s.killed {
		s.mu.Unlock()
		return
	}
	s.killed = true
	proc := s.proc
	s.proc = nil
	s.mu.Unlock()

	if proc == nil {
		// nothing was launched, so nothing will ever close done
		s.markDone()
		return
	}
	if err := proc.Terminate(); err != nil {
		s.logger.Warn("failed to stop", "err", err)
		return
	}
	s.logger.Debug("stopped", "pid", proc.Pid())
}

// Killed reports whether Kill has been called.
func (s *DevServer) Killed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.killed
}

// Address returns the address the server is serving on.
func (s *DevServer) Address() (network.ServerAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return network.ServerAddress{}, ErrNotStarted
	}
	return s.cfg.Address, nil
}

// IsReady reports whether the ready line has been seen.
func (s *DevServer) IsReady() bool {
	s.mu.Lock()
	d := s.detector
	s.mu.Unlock()
	return d != nil && d.IsReady()
}

// Done is closed once the process has exited and its output is drained, or
// when a server that never launched is killed.
func (s *DevServer) Done() <-chan struct{} {
	return s.done
}

func (s *DevServer) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// ExitCode is the process exit status, -1 while running or when signalled.
func (s *DevServer) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

func (s *DevServer) readyTimeout() time.Duration {
	timeout := s.cfg.ReadyTimeout
	if timeout != 0 && s.cfg.Framework.ReadyTimeout > timeout {
		timeout = s.cfg.Framework.ReadyTimeout
	}
	return timeout
}

func (s *DevServer) forwardStderr(r io.Reader, detector *readiness.Detector) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		s.forward(s.cfg.Stderr, scanner.Text(), detector.IsReady(), true)
	}
	_, _ = io.Copy(io.Discard, r)
}

func (s *DevServer) forward(w io.Writer, line string, ready, isErr bool) {
	s.mu.Lock()
	s.tail = append(s.tail, line)
	if len(s.tail) > tailLines {
		s.tail = s.tail[1:]
	}
	s.mu.Unlock()

	if s.cfg.LogFile != nil {
		fmt.Fprintf(s.cfg.LogFile, "[%s] %s %s\n", time.Now().Format("15:04:05"), s.cfg.Logging.Prefix, line)
	}

	if !ready && !s.cfg.Logging.Verbose {
		return
	}
	if isErr {
		line = s.errFmt.Sprint(line)
	}
	fmt.Fprintf(w, "%s %s\n", s.prefix, line)
}

func (s *DevServer) recentOutput() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tail...)
}
