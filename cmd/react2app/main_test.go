package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleqiq/react2app/internal/config"
	"github.com/kyleqiq/react2app/internal/output"
	"github.com/kyleqiq/react2app/internal/state"
)

func testApp() (*app, *bytes.Buffer) {
	color.NoColor = true
	var buf bytes.Buffer
	return &app{printer: output.NewPrinter(&buf), logger: output.DiscardLogger()}, &buf
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "acme-shop-web", slugify("@acme/Shop_Web"))
	assert.Equal(t, "shop", slugify("shop"))
	assert.Equal(t, "my-app", slugify("@@@"))
}

func TestRunInit(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "package.json"), []byte(`{"name":"@acme/shop-web"}`), 0o644))
	a, buf := testApp()

	require.NoError(t, a.runInit(root, false))

	cfg, err := config.LoadConfig(filepath.Join(root, config.FileName))
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "acme-shop-web", cfg.ProjectName)
	assert.Equal(t, "Acme Shop Web", cfg.DisplayName)
	assert.Equal(t, "com.example.acmeshopweb", cfg.AppID)
	assert.Equal(t, config.DefaultReadyTimeout, cfg.Dev.Timeout())

	paths := config.NewProjectPaths(cfg)
	assert.FileExists(t, paths.MobileEnvFile())
	assert.Contains(t, buf.String(), "react2app dev")

	err = a.runInit(root, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.NoError(t, a.runInit(root, true))
}

func TestRunInit_NumericName(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "package.json"), []byte(`{"name":"2048"}`), 0o644))
	a, _ := testApp()

	require.NoError(t, a.runInit(root, false))
	cfg, err := config.LoadConfig(filepath.Join(root, config.FileName))
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestRootCmd(t *testing.T) {
	a, _ := testApp()
	root := newRootCmd(a)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "react2app dev\n", out.String())

	root.SetArgs([]string{"dev", "ios", "android"})
	assert.Error(t, root.Execute())
}

func TestRunStatus(t *testing.T) {
	a, buf := testApp()
	store := state.NewStore(t.TempDir())
	root := "/work/shop"

	require.NoError(t, a.runStatus(store, root))
	assert.Contains(t, buf.String(), "No dev session recorded")

	sess, err := store.Record(root,
		state.ServerRecord{LastHost: "192.168.1.20", LastPort: 3000, Framework: "Next.js", LogFile: store.LogPath(root, "web")},
		state.ServerRecord{LastHost: "192.168.1.20", LastPort: 8081, Framework: "Expo", LogFile: store.LogPath(root, "app")},
	)
	require.NoError(t, err)

	buf.Reset()
	require.NoError(t, a.runStatus(store, root))
	out := buf.String()
	assert.Contains(t, out, sess.ID)
	assert.Contains(t, out, "Web: http://192.168.1.20:3000 (Next.js)")
	assert.Contains(t, out, "App: http://192.168.1.20:8081 (Expo)")
	assert.Contains(t, out, "log: "+store.LogPath(root, "web"))
	assert.Contains(t, out, "log: "+store.LogPath(root, "app"))
}

// initProject creates a web project with react2app initialised and a recorded session.
func initProject(t *testing.T, a *app) (string, *config.Config, *state.Store) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "package.json"), []byte(`{"name":"shop"}`), 0o644))
	require.NoError(t, a.runInit(root, false))

	cfg, err := config.LoadConfig(filepath.Join(root, config.FileName))
	require.NoError(t, err)

	store := state.NewStore(t.TempDir())
	_, err = store.Record(root, state.ServerRecord{LastPort: 3000}, state.ServerRecord{LastPort: 8081})
	require.NoError(t, err)
	logFile, err := store.OpenLog(root, "web")
	require.NoError(t, err)
	require.NoError(t, logFile.Close())
	return root, cfg, store
}

func TestRunClean_RemovesProjectFilesAndState(t *testing.T) {
	a, _ := testApp()
	root, cfg, store := initProject(t, a)

	require.NoError(t, a.runClean(store, root, cfg, cleanOptions{yes: true}, strings.NewReader(""), false))

	assert.NoFileExists(t, filepath.Join(root, config.FileName))
	assert.NoDirExists(t, filepath.Join(root, "react2app"))
	assert.FileExists(t, filepath.Join(root, "package.json"))
	assert.NoDirExists(t, store.LogDir(root))
	_, ok, err := store.Lookup(root)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunClean_Confirmation(t *testing.T) {
	a, _ := testApp()
	root, cfg, store := initProject(t, a)

	err := a.runClean(store, root, cfg, cleanOptions{}, strings.NewReader(""), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	err = a.runClean(store, root, cfg, cleanOptions{}, strings.NewReader("n\n"), true)
	require.Error(t, err)
	assert.FileExists(t, filepath.Join(root, config.FileName))
	_, ok, _ := store.Lookup(root)
	assert.True(t, ok)

	require.NoError(t, a.runClean(store, root, cfg, cleanOptions{}, strings.NewReader("y\n"), true))
	assert.NoFileExists(t, filepath.Join(root, config.FileName))
	assert.NoDirExists(t, filepath.Join(root, "react2app"))
}

func TestRunClean_StateOnly(t *testing.T) {
	a, _ := testApp()
	root, cfg, store := initProject(t, a)

	require.NoError(t, a.runClean(store, root, cfg, cleanOptions{stateOnly: true}, strings.NewReader(""), false))

	assert.FileExists(t, filepath.Join(root, config.FileName))
	assert.DirExists(t, cfg.Mobile.Dir)
	_, ok, err := store.Lookup(root)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemovalTargets_KeepsMobileDirOutsideProject(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	cfgPath := filepath.Join(root, config.FileName)
	content := "project_name: shop\nmobile:\n  dir: " + outside + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))
	cfg, err := config.LoadConfig(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, []string{cfgPath}, removalTargets(root, cfg))
}
