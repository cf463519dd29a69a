package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file looked up by every command.
const FileName = "react2app.yaml"

// DefaultReadyTimeout is used when dev.ready_timeout is not set.
const DefaultReadyTimeout = 30 * time.Second

// ErrNotFound is returned when no config file can be located.
var ErrNotFound = errors.New("react2app.yaml not found (run `react2app init` first)")

// Config represents the complete react2app.yaml structure
type Config struct {
	ProjectName   string       `yaml:"project_name"`
	DisplayName   string       `yaml:"display_name"`
	AppID         string       `yaml:"app_id"`
	Version       string       `yaml:"version"`
	Scheme        string       `yaml:"scheme"`
	ProductionURL string       `yaml:"production_url"`
	Design        DesignConfig `yaml:"design"`
	Dev           DevConfig    `yaml:"dev"`
	Mobile        MobileConfig `yaml:"mobile"`

	// path the config was loaded from
	path string
}

// DesignConfig points at the branding assets inside the web project
type DesignConfig struct {
	Icon   string       `yaml:"icon"`
	Splash SplashConfig `yaml:"splash"`
}

// SplashConfig describes the native splash screen
type SplashConfig struct {
	Image           string `yaml:"image"`
	BackgroundColor string `yaml:"background_color"`
	ImageWidth      int    `yaml:"image_width"`
}

// DevConfig controls the dev session
type DevConfig struct {
	Host         string    `yaml:"host"`          // Optional: bind host, detected when empty
	WebPort      int       `yaml:"web_port"`      // Optional: preferred web port
	WebPorts     []int     `yaml:"web_ports"`     // Fallback ports for the web server
	AppPorts     []int     `yaml:"app_ports"`     // Fallback ports for Expo
	ReadyTimeout *Duration `yaml:"ready_timeout"` // Optional: 30s, or bare seconds; 0 waits indefinitely
	Framework    string    `yaml:"framework"`     // Optional: nextjs, vite, react; detected when empty
}

// MobileConfig locates the Expo wrapper project
type MobileConfig struct {
	Dir string `yaml:"dir"` // Optional: defaults to react2app/<project_name>
}

// ValidationError names the offending field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s %s", e.Field, e.Reason)
}

var (
	appIDPattern   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*(\.[a-zA-Z][a-zA-Z0-9_]*)+$`)
	slugPattern    = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
	versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	colorPattern   = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

// LoadConfig reads the config at configPath. A missing file is not an
// error: it returns (nil, nil).
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.path = configPath
	config.applyDefaults()

	// Resolve relative paths to absolute
	configDir := filepath.Dir(configPath)
	config.Design.Icon = resolve(configDir, config.Design.Icon)
	config.Design.Splash.Image = resolve(configDir, config.Design.Splash.Image)
	config.Mobile.Dir = resolve(configDir, config.Mobile.Dir)

	return &config, nil
}

// Load finds and loads the project config. Unlike LoadConfig it fails with
// ErrNotFound when there is none.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		found, err := FindConfigFile()
		if err != nil {
			return nil, err
		}
		configPath = found
	}
	if abs, err := filepath.Abs(configPath); err == nil {
		configPath = abs
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrNotFound
	}
	return cfg, nil
}

// FindConfigFile searches for react2app.yaml in the current directory and
// up to five parents
func FindConfigFile() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return findFrom(cwd)
}

func findFrom(dir string) (string, error) {
	current := dir
	for i := 0; i <= 5; i++ {
		configPath := filepath.Join(current, FileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return "", ErrNotFound
}

// Path returns the file this config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Dir returns the directory of the config file, which is the web project root.
func (c *Config) Dir() string {
	return filepath.Dir(c.path)
}

// Validate checks required fields and formats
func (c *Config) Validate() error {
	switch {
	case c.ProjectName == "":
		return &ValidationError{Field: "project_name", Reason: "is required"}
	case !slugPattern.MatchString(c.ProjectName):
		return &ValidationError{Field: "project_name", Reason: "must be lowercase letters, digits and dashes"}
	case c.DisplayName == "":
		return &ValidationError{Field: "display_name", Reason: "is required"}
	case c.AppID == "":
		return &ValidationError{Field: "app_id", Reason: "is required"}
	case !appIDPattern.MatchString(c.AppID):
		return &ValidationError{Field: "app_id", Reason: "must be a reverse domain name like com.example.app"}
	case !versionPattern.MatchString(c.Version):
		return &ValidationError{Field: "version", Reason: "must look like 1.0.0"}
	case c.Scheme == "":
		return &ValidationError{Field: "scheme", Reason: "is required"}
	case c.Design.Splash.BackgroundColor != "" && !colorPattern.MatchString(c.Design.Splash.BackgroundColor):
		return &ValidationError{Field: "design.splash.background_color", Reason: "must be a hex color like #ffffff"}
	case c.Design.Splash.ImageWidth < 0:
		return &ValidationError{Field: "design.splash.image_width", Reason: "must be positive"}
	case c.Dev.ReadyTimeout != nil && time.Duration(*c.Dev.ReadyTimeout) < 0:
		return &ValidationError{Field: "dev.ready_timeout", Reason: "must not be negative"}
	}

	switch c.Dev.Framework {
	case "", "nextjs", "vite", "react":
	default:
		return &ValidationError{Field: "dev.framework", Reason: "must be one of nextjs, vite, react"}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = "1.0.0"
	}
	if c.Scheme == "" {
		c.Scheme = c.ProjectName
	}
	if c.Design.Icon == "" {
		c.Design.Icon = "react2app/design/icon.png"
	}
	if c.Design.Splash.Image == "" {
		c.Design.Splash.Image = "react2app/design/splash.png"
	}
	if c.Design.Splash.BackgroundColor == "" {
		c.Design.Splash.BackgroundColor = "#ffffff"
	}
	if c.Design.Splash.ImageWidth == 0 {
		c.Design.Splash.ImageWidth = 200
	}
	if len(c.Dev.WebPorts) == 0 {
		c.Dev.WebPorts = []int{3000, 3001, 3002, 3003, 3004, 3005, 3006, 3007}
	}
	if len(c.Dev.AppPorts) == 0 {
		c.Dev.AppPorts = []int{8081, 8082, 8083, 8084, 8085, 8086, 8087, 8088}
	}
	if c.Mobile.Dir == "" && c.ProjectName != "" {
		c.Mobile.Dir = filepath.Join("react2app", c.ProjectName)
	}
}

// Timeout returns the readiness timeout, DefaultReadyTimeout when unset.
func (d DevConfig) Timeout() time.Duration {
	if d.ReadyTimeout == nil {
		return DefaultReadyTimeout
	}
	return time.Duration(*d.ReadyTimeout)
}

// Duration reads "45s"-style durations or a bare number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a duration like 30s", value.Line)
	}
	if value.Tag == "!!int" || value.Tag == "!!float" {
		var seconds float64
		if err := value.Decode(&seconds); err != nil {
			return err
		}
		*d = Duration(seconds * float64(time.Second))
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q (use e.g. 30s or 2m)", value.Line, value.Value)
	}
	*d = Duration(parsed)
	return nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
