package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kyleqiq/react2app/internal/config"
	"github.com/kyleqiq/react2app/internal/envfile"
)

func newInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create react2app.yaml in the current web project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			return a.runInit(cwd, force)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing react2app.yaml")
	return cmd
}

func (a *app) runInit(root string, force bool) error {
	configPath := filepath.Join(root, config.FileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	name := "my-app"
	if pkg, err := config.ReadPackageManifest(root); err == nil && pkg.Name != "" {
		name = slugify(pkg.Name)
	} else {
		a.printer.Warning("No package.json name found, using %q", name)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig(name)), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}
	a.printer.Success("Created %s", configPath)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	paths := config.NewProjectPaths(cfg)
	if err := os.MkdirAll(paths.MobileRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", paths.MobileRoot, err)
	}
	if err := envfile.EnsureFile(paths.MobileEnvFile()); err != nil {
		return err
	}

	a.printer.Info("Next steps:")
	a.printer.Detail("1. Create the Expo app: npx create-expo-app %s", paths.MobileRoot)
	a.printer.Detail("2. Put your icon and splash image in react2app/design/")
	a.printer.Detail("3. Run: react2app dev")
	return nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9-]+`)

// slugify turns a package name like "@acme/Shop_Web" into "acme-shop-web".
func slugify(name string) string {
	s := nonSlug.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "my-app"
	}
	return s
}

func displayName(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func exampleConfig(slug string) string {
	appID := "com.example." + strings.ReplaceAll(slug, "-", "")
	if slug[0] >= '0' && slug[0] <= '9' {
		appID = "com.example.app" + strings.ReplaceAll(slug, "-", "")
	}

	return fmt.Sprintf(`# react2app configuration
# Run with: react2app dev

project_name: %s
display_name: %s
app_id: %s
version: 1.0.0
scheme: %s
# production_url: https://example.com

design:
  icon: react2app/design/icon.png
  splash:
    image: react2app/design/splash.png
    background_color: "#ffffff"
    image_width: 200

dev:
  # host: 192.168.1.20     # default: this machine's LAN address
  # web_port: 3000
  # framework: nextjs      # nextjs, vite or react; detected from package.json
  ready_timeout: 30s       # 0s waits forever

# mobile:
#   dir: react2app/%s
`, slug, displayName(slug), appID, slug, slug)
}
