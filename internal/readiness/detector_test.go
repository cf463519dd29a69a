package readiness

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nextReady = "✓ Ready"

func TestObserve_Monotonic(t *testing.T) {
	d := New(nextReady, 0)

	assert.False(t, d.Observe("▲ Next.js 14.2.3"))
	assert.False(t, d.IsReady())
	assert.True(t, d.Observe(" ✓ Ready in 1843ms"))
	assert.True(t, d.IsReady())

	assert.True(t, d.Observe("compiling /page ..."))
	assert.True(t, d.IsReady())

	select {
	case <-d.Ready():
	default:
		t.Fatal("ready channel should be closed")
	}
}

func TestWatch_ForwardsEveryLine(t *testing.T) {
	d := New("Logs for your project will appear below", 0)
	input := "Starting Metro Bundler\nLogs for your project will appear below. Press Ctrl+C to exit.\nAndroid Bundled 512ms\n"

	type seen struct {
		line  string
		ready bool
	}
	var lines []seen
	d.Watch(strings.NewReader(input), func(line string, ready bool) {
		lines = append(lines, seen{line, ready})
	})

	require.Len(t, lines, 3)
	assert.False(t, lines[0].ready)
	assert.True(t, lines[1].ready)
	assert.True(t, lines[2].ready)
	assert.NoError(t, d.Wait(context.Background()))
}

func TestWait_PendingWithoutTimeout(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	d := New(nextReady, 0)
	go d.Watch(pr, nil)

	go func() {
		for i := 0; i < 10; i++ {
			if _, err := pw.Write([]byte("compiling...\n")); err != nil {
				return
			}
			time.Sleep(100 * time.Millisecond)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := d.Wait(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, d.IsReady())
}

func TestWait_Timeout(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	err := WaitForReady(context.Background(), pr, nextReady, 100*time.Millisecond)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.True(t, errors.Is(err, ErrReadinessTimeout))
	assert.Equal(t, nextReady, timeoutErr.Sentinel)
	assert.Equal(t, 100*time.Millisecond, timeoutErr.After)
}

func TestWait_StreamClosedBeforeReady(t *testing.T) {
	err := WaitForReady(context.Background(), strings.NewReader("Error: Cannot find module 'next'\n"), nextReady, time.Second)
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestWaitForReady_ResolvesOnSentinel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	go func() {
		pw.Write([]byte("▲ Next.js 14\n"))
		time.Sleep(50 * time.Millisecond)
		pw.Write([]byte(" ✓ Ready in 900ms\n"))
		// keeps writing after readiness; must not block
		for i := 0; i < 100; i++ {
			if _, err := pw.Write([]byte("GET / 200\n")); err != nil {
				return
			}
		}
	}()

	err := WaitForReady(context.Background(), pr, nextReady, 5*time.Second)
	assert.NoError(t, err)
}
