package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/kyleqiq/react2app/internal/devserver"
	"github.com/kyleqiq/react2app/internal/network"
	"github.com/kyleqiq/react2app/internal/output"
	"github.com/kyleqiq/react2app/internal/process"
)

// Server is one side of a dev session.
type Server interface {
	Name() string
	Start(ctx context.Context) error
	Kill()
	Address() (network.ServerAddress, error)
	Done() <-chan struct{}
	ExitCode() int
}

// ExitError is returned when a server stops on its own during a session.
type ExitError struct {
	Server   string
	ExitCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s server exited unexpectedly (exit code %d)", e.Server, e.ExitCode)
}

// Options configures Run.
type Options struct {
	Web Server
	App Server

	Printer *output.Printer
	Logger  *log.Logger
	// Reporter prints the status block once both servers are ready.
	Reporter *Reporter
	// Signals overrides the interrupt source; nil listens for SIGINT and SIGTERM.
	Signals <-chan os.Signal
	// OnReady runs after the status block, while the session is live.
	OnReady func(web, app network.ServerAddress)
}

// Run starts both servers, reports where they are, and keeps them alive until
// an interrupt, ctx, or one of them exiting ends the session. Both servers are
// always stopped before Run returns. An interrupt is a clean exit (nil).
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = output.DiscardLogger()
	}
	printer := opts.Printer
	if printer == nil {
		printer = output.NewPrinter(nil)
	}

	signals := opts.Signals
	if signals == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		signals = ch
	}

	var stopOnce sync.Once
	stopAll := func() {
		stopOnce.Do(func() {
			logger.Debug("stopping dev servers")
			opts.Web.Kill()
			opts.App.Kill()
			waitStopped(opts.Web, opts.App)
		})
	}
	defer stopAll()

	startCtx, cancelStart := context.WithCancel(ctx)
	defer cancelStart()

	// each server's own start result, readable once started has fired
	var webErr, appErr error
	g, gctx := errgroup.WithContext(startCtx)
	g.Go(func() error {
		webErr = opts.Web.Start(gctx)
		return webErr
	})
	g.Go(func() error {
		appErr = opts.App.Start(gctx)
		return appErr
	})
	started := make(chan error, 1)
	go func() { started <- g.Wait() }()

	select {
	case sig := <-signals:
		logger.Debug("interrupted during start-up", "signal", sig)
		printer.Info("\n🛑 Shutting down...")
		cancelStart()
		stopAll()
		<-started
		return nil
	case <-ctx.Done():
		cancelStart()
		stopAll()
		<-started
		return nil
	case err := <-started:
		if err != nil {
			stopAll()
			return err
		}
	case <-opts.Web.Done():
		cancelStart()
		stopAll()
		<-started
		return exitedDuringStartup(opts.Web, webErr)
	case <-opts.App.Done():
		cancelStart()
		stopAll()
		<-started
		return exitedDuringStartup(opts.App, appErr)
	}

	webAddr, _ := opts.Web.Address()
	appAddr, _ := opts.App.Address()
	if opts.Reporter != nil {
		opts.Reporter.Print(webAddr, appAddr)
	}
	if opts.OnReady != nil {
		opts.OnReady(webAddr, appAddr)
	}

	select {
	case sig := <-signals:
		logger.Debug("interrupted", "signal", sig)
		printer.Info("\n🛑 Shutting down...")
		stopAll()
		return nil
	case <-ctx.Done():
		stopAll()
		return nil
	case <-opts.Web.Done():
		stopAll()
		return &ExitError{Server: opts.Web.Name(), ExitCode: opts.Web.ExitCode()}
	case <-opts.App.Done():
		stopAll()
		return &ExitError{Server: opts.App.Name(), ExitCode: opts.App.ExitCode()}
	}
}

// exitedDuringStartup is the error for srv exiting while its sibling was
// still booting. A start failure of srv itself is returned as is.
func exitedDuringStartup(srv Server, startErr error) error {
	var se *devserver.StartError
	if _, err := srv.Address(); err != nil && errors.As(startErr, &se) {
		return startErr
	}
	return &ExitError{Server: srv.Name(), ExitCode: srv.ExitCode()}
}

// waitStopped gives killed servers time to go away so none outlive the CLI.
func waitStopped(servers ...Server) {
	deadline := time.After(process.TerminateGrace + 2*time.Second)
	for _, srv := range servers {
		select {
		case <-srv.Done():
		case <-deadline:
			return
		}
	}
}
