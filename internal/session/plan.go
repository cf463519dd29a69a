package session

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/kyleqiq/react2app/internal/config"
	"github.com/kyleqiq/react2app/internal/devserver"
	"github.com/kyleqiq/react2app/internal/envfile"
	"github.com/kyleqiq/react2app/internal/network"
	"github.com/kyleqiq/react2app/internal/state"
)

// PlanRequest is everything needed to decide where both servers will bind.
type PlanRequest struct {
	Paths   config.ProjectPaths
	Host    string // preferred host for both servers
	WebPort int    // preferred web port
	Web     devserver.Framework
	App     devserver.Framework

	Resolver *network.Resolver
	// Store is optional; when set the addresses are remembered.
	Store  *state.Store
	Logger *log.Logger
}

// Plan holds the addresses both servers will use.
type Plan struct {
	Web     network.ServerAddress
	App     network.ServerAddress
	Session *state.Session
}

// MakePlan resolves the web address completely, then the app address, and
// writes the web URL into the mobile wrapper's env file.
func MakePlan(req PlanRequest) (*Plan, error) {
	resolver := req.Resolver
	if resolver == nil {
		resolver = &network.Resolver{Logger: req.Logger}
	}

	web, err := resolver.Resolve(network.Request{
		PreferredHost: req.Host,
		PreferredPort: req.WebPort,
		FallbackPorts: req.Web.Ports(),
	})
	if err != nil {
		return nil, fmt.Errorf("web server: %w", err)
	}

	app, err := resolver.Resolve(network.Request{
		PreferredHost: web.Host,
		FallbackPorts: req.App.Ports(),
		Exclude:       []int{web.Port},
	})
	if err != nil {
		return nil, fmt.Errorf("app server: %w", err)
	}

	envPath := req.Paths.MobileEnvFile()
	if err := envfile.EnsureFile(envPath); err != nil {
		return nil, err
	}
	if err := envfile.UpdateEnvFile(envPath, map[string]string{
		envfile.WebViewURLKey: web.URL(),
	}); err != nil {
		return nil, err
	}

	plan := &Plan{Web: web, App: app}
	if req.Store != nil {
		session, err := req.Store.Record(req.Paths.Root,
			state.ServerRecord{LastHost: web.Host, LastPort: web.Port, Framework: req.Web.Name, LogFile: req.Store.LogPath(req.Paths.Root, "web")},
			state.ServerRecord{LastHost: app.Host, LastPort: app.Port, Framework: req.App.Name, LogFile: req.Store.LogPath(req.Paths.Root, "app")},
		)
		if err != nil {
			// losing the state file never blocks a dev session
			if req.Logger != nil {
				req.Logger.Warn("could not record session", "err", err)
			}
		} else {
			plan.Session = session
		}
	}
	return plan, nil
}
