package readiness

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTimeout bounds how long a dev server may take to print its ready line.
const DefaultTimeout = 30 * time.Second

var (
	// ErrReadinessTimeout matches every TimeoutError.
	ErrReadinessTimeout = errors.New("readiness timeout")
	// ErrStreamClosed is returned when output ends before the ready line.
	ErrStreamClosed = errors.New("output closed before the server became ready")
)

// TimeoutError is returned when the sentinel does not appear in time.
type TimeoutError struct {
	Sentinel string
	After    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("did not see %q within %s", e.Sentinel, e.After)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrReadinessTimeout
}

// Detector watches process output for a sentinel substring. It flips to
// ready exactly once and never back.
type Detector struct {
	sentinel string
	timeout  time.Duration

	ready     atomic.Bool
	readyCh   chan struct{}
	readyOnce sync.Once

	closedCh   chan struct{}
	closedOnce sync.Once
}

// New creates a detector. A zero timeout waits indefinitely.
func New(sentinel string, timeout time.Duration) *Detector {
	return &Detector{
		sentinel: sentinel,
		timeout:  timeout,
		readyCh:  make(chan struct{}),
		closedCh: make(chan struct{}),
	}
}

// Sentinel returns the substring being watched for.
func (d *Detector) Sentinel() string {
	return d.sentinel
}

// Observe feeds a chunk of output and reports whether the detector is ready
// after seeing it.
func (d *Detector) Observe(text string) bool {
	if d.ready.Load() {
		return true
	}
	if !strings.Contains(text, d.sentinel) {
		return false
	}
	d.readyOnce.Do(func() {
		d.ready.Store(true)
		close(d.readyCh)
	})
	return true
}

// Watch reads r line by line until EOF, observing each line and handing it
// to onLine. It keeps draining after readiness so the writer never blocks.
func (d *Detector) Watch(r io.Reader, onLine func(line string, ready bool)) {
	defer d.closedOnce.Do(func() { close(d.closedCh) })

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		// hand the line over before flipping so the ready line is written
		// before anyone waiting on Ready wakes up
		if onLine != nil {
			onLine(line, d.IsReady() || strings.Contains(line, d.sentinel))
		}
		d.Observe(line)
	}
	// a line longer than the buffer stops the scanner; keep the pipe flowing
	_, _ = io.Copy(io.Discard, r)
}

// Ready is closed once the sentinel has been seen.
func (d *Detector) Ready() <-chan struct{} {
	return d.readyCh
}

// IsReady reports whether the sentinel has been seen.
func (d *Detector) IsReady() bool {
	return d.ready.Load()
}

// Wait blocks until the detector is ready, ctx is done, the watched stream
// closes without the sentinel, or the timeout elapses.
func (d *Detector) Wait(ctx context.Context) error {
	var timeout <-chan time.Time
	if d.timeout > 0 {
		timer := time.NewTimer(d.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-d.readyCh:
		return nil
	default:
	}

	select {
	case <-d.readyCh:
		return nil
	case <-d.closedCh:
		if d.IsReady() {
			return nil
		}
		return ErrStreamClosed
	case <-timeout:
		return &TimeoutError{Sentinel: d.sentinel, After: d.timeout}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitForReady watches r in the background and waits for sentinel.
// The stream keeps being drained after this returns.
func WaitForReady(ctx context.Context, r io.Reader, sentinel string, timeout time.Duration) error {
	d := New(sentinel, timeout)
	go d.Watch(r, nil)
	return d.Wait(ctx)
}
