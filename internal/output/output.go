package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	stepColor    = color.New(color.FgBlue, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	dimColor     = color.New(color.Faint)
)

// Printer writes user-facing CLI output.
type Printer struct {
	w io.Writer
}

// NewPrinter returns a printer writing to w, or stdout when w is nil.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{w: w}
}

// Writer exposes the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.w
}

// Banner prints the boxed title shown at the top of long-running commands.
func (p *Printer) Banner(title string) {
	const width = 48
	pad := width - len([]rune(title))
	if pad < 0 {
		pad = 0
	}
	left := pad / 2
	line := strings.Repeat("═", width)
	headerColor.Fprintf(p.w, "╔%s╗\n", line)
	headerColor.Fprintf(p.w, "║%*s%s%*s║\n", left, "", title, pad-left, "")
	headerColor.Fprintf(p.w, "╚%s╝\n", line)
	fmt.Fprintln(p.w)
}

func (p *Printer) Header(format string, args ...any) {
	fmt.Fprintln(p.w)
	headerColor.Fprintf(p.w, format+"\n", args...)
}

func (p *Printer) Step(format string, args ...any) {
	stepColor.Fprint(p.w, "→ ")
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *Printer) Success(format string, args ...any) {
	successColor.Fprintf(p.w, "✅ "+format+"\n", args...)
}

func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *Printer) Warning(format string, args ...any) {
	warnColor.Fprintf(p.w, "⚠️  "+format+"\n", args...)
}

func (p *Printer) Error(format string, args ...any) {
	errorColor.Fprintf(p.w, "❌ "+format+"\n", args...)
}

// Detail prints an indented, dimmed line under a previous message.
func (p *Printer) Detail(format string, args ...any) {
	dimColor.Fprintf(p.w, "   "+format+"\n", args...)
}

// NewLogger builds the diagnostic logger shared by all commands.
func NewLogger(w io.Writer, verbose bool) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "react2app",
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}
	return logger
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *log.Logger {
	return log.New(io.Discard)
}

// LockedWriter serializes writes so concurrent line writers never tear lines.
type LockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewLockedWriter(w io.Writer) *LockedWriter {
	return &LockedWriter{w: w}
}

func (l *LockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
