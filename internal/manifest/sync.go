package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/kyleqiq/react2app/internal/config"
)

const (
	splashPlugin = "expo-splash-screen"
	iconAsset    = "./assets/images/icon.png"
	splashAsset  = "./assets/images/splash.png"
)

// Sync brings the Expo app.json and branding assets in line with cfg.
func Sync(paths config.ProjectPaths, cfg *config.Config, logger *log.Logger) error {
	existing, err := Read(paths.ManifestFile())
	if err != nil {
		logger.Warn("app.json is unreadable, starting from an empty manifest", "path", paths.ManifestFile(), "err", err)
		existing = map[string]any{}
	}

	merged := Merge(existing, cfg)
	if err := Write(paths.ManifestFile(), merged); err != nil {
		return err
	}
	logger.Debug("updated manifest", "path", paths.ManifestFile())

	return CopyAssets(paths, cfg, logger)
}

// Read loads a JSON manifest. A missing file is an empty manifest.
func Read(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// Write saves doc as two-space indented JSON, replacing path atomically.
func Write(path string, doc map[string]any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".app.json.*")
	if err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Merge overlays the fields react2app owns onto doc under "expo". Every
// other field, known to us or not, is left as it was.
func Merge(doc map[string]any, cfg *config.Config) map[string]any {
	if doc == nil {
		doc = map[string]any{}
	}
	expo := object(doc, "expo")

	expo["name"] = cfg.DisplayName
	expo["slug"] = cfg.ProjectName
	expo["version"] = cfg.Version
	expo["scheme"] = cfg.Scheme
	expo["icon"] = iconAsset

	object(expo, "ios")["bundleIdentifier"] = cfg.AppID
	object(expo, "android")["package"] = cfg.AppID

	expo["plugins"] = upsertSplashPlugin(expo["plugins"], map[string]any{
		"backgroundColor": cfg.Design.Splash.BackgroundColor,
		"image":           splashAsset,
		"imageWidth":      cfg.Design.Splash.ImageWidth,
	})

	return doc
}

// object returns parent[key] as an object, replacing anything that is not one.
func object(parent map[string]any, key string) map[string]any {
	if m, ok := parent[key].(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	parent[key] = m
	return m
}

// upsertSplashPlugin sets the splash plugin options, keeping other plugins
// and any splash options not managed here.
func upsertSplashPlugin(raw any, options map[string]any) []any {
	plugins, _ := raw.([]any)

	for i, p := range plugins {
		switch v := p.(type) {
		case string:
			if v == splashPlugin {
				plugins[i] = []any{splashPlugin, options}
				return plugins
			}
		case []any:
			if len(v) == 0 || v[0] != splashPlugin {
				continue
			}
			merged := map[string]any{}
			if len(v) > 1 {
				if old, ok := v[1].(map[string]any); ok {
					for k, val := range old {
						merged[k] = val
					}
				}
			}
			for k, val := range options {
				merged[k] = val
			}
			plugins[i] = []any{splashPlugin, merged}
			return plugins
		}
	}

	return append(plugins, []any{splashPlugin, options})
}

// CopyAssets copies the icon and splash images into the Expo project.
// A missing source image is a warning, not a failure.
func CopyAssets(paths config.ProjectPaths, cfg *config.Config, logger *log.Logger) error {
	assets := []struct {
		name string
		src  string
	}{
		{"icon.png", cfg.Design.Icon},
		{"splash.png", cfg.Design.Splash.Image},
	}

	dir := paths.MobileAssetsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create assets directory: %w", err)
	}

	for _, asset := range assets {
		if asset.src == "" {
			continue
		}
		if _, err := os.Stat(asset.src); err != nil {
			logger.Warn("asset not found, skipping", "asset", asset.name, "path", asset.src)
			continue
		}
		dst := filepath.Join(dir, asset.name)
		if err := copyFile(asset.src, dst); err != nil {
			return fmt.Errorf("failed to copy %s: %w", asset.name, err)
		}
		logger.Debug("copied asset", "from", asset.src, "to", dst)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
