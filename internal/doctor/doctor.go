package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/kyleqiq/react2app/internal/config"
	"github.com/kyleqiq/react2app/internal/envfile"
	"github.com/kyleqiq/react2app/internal/output"
	"github.com/kyleqiq/react2app/internal/process"
)

// Result collects what doctor found
type Result struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (r *Result) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Options selects what to check
type Options struct {
	Config *config.Config
	Paths  config.ProjectPaths
	// Platform is "ios", "android", or empty for Expo Go only.
	Platform string
	// SkipServices turns off the database and cache reachability checks.
	SkipServices bool

	LookPath func(name string) error
	Probe    func(ctx context.Context, name string, args ...string) (string, error)
	Timeout  time.Duration
}

// Run checks programs, project layout, config, and the web project's backing
// services. Missing services are warnings: the web app may not need them to boot.
func Run(ctx context.Context, opts Options) *Result {
	if opts.LookPath == nil {
		opts.LookPath = process.LookPath
	}
	if opts.Probe == nil {
		opts.Probe = process.Probe
	}
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Second
	}

	result := &Result{Valid: true}

	checkProgram(result, opts, "node", "Node.js (https://nodejs.org)")
	checkProgram(result, opts, "npx", "npx, bundled with Node.js")

	if opts.Config == nil {
		result.fail("%v", config.ErrNotFound)
		return result
	}
	if err := opts.Config.Validate(); err != nil {
		result.fail("%v", err)
	}

	if _, err := config.ReadPackageManifest(opts.Paths.Root); err != nil {
		result.fail("%v", err)
	}
	checkExpoProject(result, opts.Paths)

	switch opts.Platform {
	case "":
	case "ios":
		checkIOS(ctx, result, opts)
	case "android":
		checkAndroid(ctx, result, opts)
	default:
		result.fail("unknown platform %q (use ios or android)", opts.Platform)
	}

	if !opts.SkipServices {
		checkServices(ctx, result, opts)
	}

	return result
}

func checkProgram(result *Result, opts Options, name, description string) {
	if err := opts.LookPath(name); err != nil {
		result.fail("%s not found in PATH (install %s)", name, description)
	}
}

func checkExpoProject(result *Result, paths config.ProjectPaths) {
	if _, err := os.Stat(paths.MobileRoot); err != nil {
		result.fail("Expo project not found at %s (run `react2app init`)", paths.MobileRoot)
		return
	}
	if _, err := os.Stat(paths.ManifestFile()); err != nil {
		result.warn("%s is missing; `react2app sync` will create it", paths.ManifestFile())
	}
	if _, err := os.Stat(paths.MobileEnvFile()); err != nil {
		result.warn("%s is missing; it will be created on the next `react2app dev`", paths.MobileEnvFile())
	}
}

func checkIOS(ctx context.Context, result *Result, opts Options) {
	if runtime.GOOS != "darwin" {
		result.fail("iOS builds require macOS")
		return
	}
	if err := opts.LookPath("xcrun"); err != nil {
		result.fail("xcrun not found in PATH (install Xcode command line tools: xcode-select --install)")
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := opts.Probe(probeCtx, "xcrun", "simctl", "list", "devices", "booted")
	if err != nil {
		result.warn("could not list iOS simulators: %v", err)
		return
	}
	if !strings.Contains(out, "(Booted)") {
		result.warn("no booted iOS simulator; Expo will try to boot one")
	}
}

func checkAndroid(ctx context.Context, result *Result, opts Options) {
	if err := opts.LookPath("adb"); err != nil {
		result.fail("adb not found in PATH (install Android platform-tools)")
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := opts.Probe(probeCtx, "adb", "devices")
	if err != nil {
		result.warn("could not list Android devices: %v", err)
		return
	}
	if countAndroidDevices(out) == 0 {
		result.warn("no Android device or emulator connected")
	}
}

// countAndroidDevices counts "<serial>\tdevice" lines in `adb devices` output.
func countAndroidDevices(out string) int {
	count := 0
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == "device" {
			count++
		}
	}
	return count
}

func checkServices(ctx context.Context, result *Result, opts Options) {
	envPath := envfile.FirstExisting(opts.Paths.WebEnvFiles()...)
	if envPath == "" {
		return
	}
	vars, err := envfile.Read(envPath)
	if err != nil {
		result.warn("could not read %s: %v", envPath, err)
		return
	}

	if dsn := vars["DATABASE_URL"]; isPostgresURL(dsn) {
		if err := validatePostgres(ctx, dsn, opts.Timeout); err != nil {
			result.warn("PostgreSQL from DATABASE_URL: %v", err)
		}
	}
	if redisURL := vars["REDIS_URL"]; redisURL != "" {
		if err := validateRedis(ctx, redisURL, opts.Timeout); err != nil {
			result.warn("Redis from REDIS_URL: %v", err)
		}
	}
}

// PrintResults prints validation results in a user-friendly format
func (r *Result) PrintResults(p *output.Printer) {
	if r.Valid {
		p.Success("All checks passed")
	} else {
		p.Error("Doctor found problems:")
		for _, err := range r.Errors {
			p.Detail("❌ %s", err)
		}
	}

	if len(r.Warnings) > 0 {
		p.Warning("Warnings:")
		for _, warn := range r.Warnings {
			p.Detail("⚠️  %s", warn)
		}
	}
}

// Err turns a failed result into an error for the CLI exit path.
func (r *Result) Err() error {
	if r.Valid {
		return nil
	}
	return errors.New(strings.Join(r.Errors, "; "))
}
