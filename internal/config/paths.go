package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ProjectPaths locates everything react2app touches for one project.
type ProjectPaths struct {
	Root       string // web project root, holds package.json
	ConfigFile string // react2app.yaml
	MobileRoot string // Expo wrapper project
}

// NewProjectPaths derives the project layout from a loaded config.
func NewProjectPaths(cfg *Config) ProjectPaths {
	return ProjectPaths{
		Root:       cfg.Dir(),
		ConfigFile: cfg.Path(),
		MobileRoot: cfg.Mobile.Dir,
	}
}

// MobileEnvFile is the .env the Expo wrapper reads at start-up.
func (p ProjectPaths) MobileEnvFile() string {
	return filepath.Join(p.MobileRoot, ".env")
}

// ManifestFile is the Expo app.json.
func (p ProjectPaths) ManifestFile() string {
	return filepath.Join(p.MobileRoot, "app.json")
}

// MobileAssetsDir holds the icon and splash images Expo bundles.
func (p ProjectPaths) MobileAssetsDir() string {
	return filepath.Join(p.MobileRoot, "assets", "images")
}

// PackageJSON is the web project's package.json.
func (p ProjectPaths) PackageJSON() string {
	return filepath.Join(p.Root, "package.json")
}

// WebEnvFiles lists the web project's env files in lookup order.
func (p ProjectPaths) WebEnvFiles() []string {
	return []string{
		filepath.Join(p.Root, ".env.local"),
		filepath.Join(p.Root, ".env.development"),
		filepath.Join(p.Root, ".env"),
	}
}

// PackageManifest is the subset of package.json react2app reads.
type PackageManifest struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// HasDependency reports whether name is a dependency or dev dependency.
func (m *PackageManifest) HasDependency(name string) bool {
	if _, ok := m.Dependencies[name]; ok {
		return true
	}
	_, ok := m.DevDependencies[name]
	return ok
}

// ReadPackageManifest parses package.json in root. A project root without
// one is not a web project.
func ReadPackageManifest(root string) (*PackageManifest, error) {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s is not a web project: package.json not found", root)
		}
		return nil, fmt.Errorf("failed to read package.json: %w", err)
	}

	var manifest PackageManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse package.json: %w", err)
	}
	return &manifest, nil
}
