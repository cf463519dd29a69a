// Package testutil builds the fake dev server used by process-level tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
)

var (
	buildOnce sync.Once
	binPath   string
	buildErr  error
)

// MockDevServer compiles testdata/mock_devserver.go once per test binary and
// returns the path of the executable.
func MockDevServer(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("mock dev server relies on POSIX signals")
	}

	buildOnce.Do(func() {
		_, file, _, _ := runtime.Caller(0)
		testdata := filepath.Join(filepath.Dir(file), "..", "..", "testdata")

		dir, err := os.MkdirTemp("", "react2app-mock-")
		if err != nil {
			buildErr = err
			return
		}
		binPath = filepath.Join(dir, "mock_devserver")

		cmd := exec.Command("go", "build", "-o", binPath, "mock_devserver.go")
		cmd.Dir = testdata
		if out, err := cmd.CombinedOutput(); err != nil {
			buildErr = &buildFailure{err: err, output: string(out)}
		}
	})

	if buildErr != nil {
		t.Fatalf("Failed to build mock dev server: %v", buildErr)
	}
	return binPath
}

type buildFailure struct {
	err    error
	output string
}

func (b *buildFailure) Error() string {
	return b.err.Error() + "\n" + b.output
}
