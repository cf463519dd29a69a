package devserver

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"

	"github.com/kyleqiq/react2app/internal/config"
	"github.com/kyleqiq/react2app/internal/network"
)

// Command is what a framework needs run to serve at an address.
type Command struct {
	Name string
	Args []string
	Env  map[string]string
	Dir  string
}

// Framework describes how to run and recognise one kind of dev server.
// Values are built once by the constructors below and never mutated.
type Framework struct {
	Name          string
	DefaultPort   int
	FallbackPorts []int
	ReadyMessage  string
	LogPrefix     string
	Color         color.Attribute
	// DeepLinkScheme is set for servers a phone connects to directly (Expo Go).
	DeepLinkScheme string
	// ReadyTimeout raises the session timeout for slow starters.
	ReadyTimeout time.Duration
	// Build renders the command for a resolved address.
	Build func(addr network.ServerAddress) Command
}

// BuildCommand renders the command line for addr.
func (f Framework) BuildCommand(addr network.ServerAddress) Command {
	return f.Build(addr)
}

// Ports returns the candidate ports, DefaultPort first.
func (f Framework) Ports() []int {
	ports := make([]int, 0, len(f.FallbackPorts)+1)
	if f.DefaultPort != 0 {
		ports = append(ports, f.DefaultPort)
	}
	for _, p := range f.FallbackPorts {
		if p != f.DefaultPort {
			ports = append(ports, p)
		}
	}
	return ports
}

// WithPorts returns a copy that tries ports instead of the built-in fallbacks.
func (f Framework) WithPorts(ports []int) Framework {
	if len(ports) == 0 {
		return f
	}
	f.FallbackPorts = append([]int(nil), ports...)
	return f
}

const (
	webPrefix = "[Web]"
	appPrefix = "[App]"
)

// NextJS runs `next dev` from the web project root.
func NextJS(dir string) Framework {
	return Framework{
		Name:          "Next.js",
		DefaultPort:   3000,
		FallbackPorts: network.WebPorts,
		ReadyMessage:  "✓ Ready",
		LogPrefix:     webPrefix,
		Color:         color.FgBlue,
		Build: func(addr network.ServerAddress) Command {
			port := strconv.Itoa(addr.Port)
			return Command{
				Name: "npx",
				Args: []string{"next", "dev", "-H", addr.Host, "-p", port},
				Env:  map[string]string{"PORT": port},
				Dir:  dir,
			}
		},
	}
}

// Vite runs the vite dev server with a fixed port.
func Vite(dir string) Framework {
	return Framework{
		Name:          "Vite",
		DefaultPort:   5173,
		FallbackPorts: network.WebPorts,
		ReadyMessage:  "ready in",
		LogPrefix:     webPrefix,
		Color:         color.FgBlue,
		Build: func(addr network.ServerAddress) Command {
			return Command{
				Name: "npx",
				Args: []string{"vite", "--host", addr.Host, "--port", strconv.Itoa(addr.Port), "--strictPort"},
				Dir:  dir,
			}
		},
	}
}

// CreateReactApp runs the project's start script, configured through env.
func CreateReactApp(dir string) Framework {
	return Framework{
		Name:          "React",
		DefaultPort:   3000,
		FallbackPorts: network.WebPorts,
		ReadyMessage:  "You can now view",
		LogPrefix:     webPrefix,
		Color:         color.FgBlue,
		Build: func(addr network.ServerAddress) Command {
			return Command{
				Name: "npm",
				Args: []string{"run", "start"},
				Env: map[string]string{
					"HOST":    addr.Host,
					"PORT":    strconv.Itoa(addr.Port),
					"BROWSER": "none",
				},
				Dir: dir,
			}
		},
	}
}

// Expo runs the Metro bundler for Expo Go from the mobile wrapper root.
func Expo(dir string) Framework {
	return Framework{
		Name:           "Expo",
		DefaultPort:    8081,
		FallbackPorts:  network.AppPorts,
		ReadyMessage:   "Logs for your project will appear below",
		LogPrefix:      appPrefix,
		Color:          color.FgYellow,
		DeepLinkScheme: "exp",
		Build: func(addr network.ServerAddress) Command {
			port := strconv.Itoa(addr.Port)
			return Command{
				Name: "npx",
				Args: []string{"expo", "start", "--port", port},
				Env: map[string]string{
					"PORT":                           port,
					"REACT_NATIVE_PACKAGER_HOSTNAME": addr.Host,
				},
				Dir: dir,
			}
		},
	}
}

// ExpoRun builds and installs the native app on a device, then serves it.
func ExpoRun(dir, platform, device string) Framework {
	f := Expo(dir)
	f.Name = "Expo (" + platform + ")"
	f.DeepLinkScheme = ""
	f.ReadyTimeout = 15 * time.Minute
	f.Build = func(addr network.ServerAddress) Command {
		port := strconv.Itoa(addr.Port)
		args := []string{"expo", "run:" + platform, "--port", port}
		if device != "" {
			args = append(args, "--device", device)
		}
		return Command{
			Name: "npx",
			Args: args,
			Env: map[string]string{
				"REACT_NATIVE_PACKAGER_HOSTNAME": addr.Host,
			},
			Dir: dir,
		}
	}
	return f
}

// DetectWebFramework picks the web dev server for the project at root.
// A non-empty override (nextjs, vite, react) wins over detection.
func DetectWebFramework(root, override string) (Framework, error) {
	switch override {
	case "nextjs":
		return NextJS(root), nil
	case "vite":
		return Vite(root), nil
	case "react":
		return CreateReactApp(root), nil
	case "":
	default:
		return Framework{}, fmt.Errorf("unknown web framework %q", override)
	}

	manifest, err := config.ReadPackageManifest(root)
	if err != nil {
		return Framework{}, err
	}

	switch {
	case manifest.HasDependency("next"):
		return NextJS(root), nil
	case manifest.HasDependency("vite"):
		return Vite(root), nil
	case manifest.HasDependency("react-scripts"), manifest.HasDependency("react"):
		return CreateReactApp(root), nil
	}
	return Framework{}, fmt.Errorf("could not detect a React or Next.js project in %s", root)
}
