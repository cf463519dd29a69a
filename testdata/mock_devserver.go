package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// mock_devserver.go - stands in for `next dev` / `expo start` in tests.
// It prints a few boot lines, waits, prints the ready line, then serves
// until SIGTERM. Flags make it fail in the ways real dev servers do.

func main() {
	ready := flag.String("ready", "✓ Ready in 120ms", "line printed once booted")
	delay := flag.Duration("delay", 100*time.Millisecond, "boot time before the ready line")
	exitCode := flag.Int("exit-code", 0, "exit with this code instead of becoming ready")
	stderr := flag.String("stderr", "", "line written to stderr while booting")
	ignoreTerm := flag.Bool("ignore-term", false, "ignore SIGTERM")
	exitAfter := flag.Duration("exit-after", 0, "exit with code 1 this long after becoming ready")
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	if *ignoreTerm {
		signal.Ignore(syscall.SIGTERM)
	} else {
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	}

	fmt.Printf("mock dev server booting (PORT=%s)\n", os.Getenv("PORT"))
	fmt.Printf("args: %v\n", flag.Args())
	if *stderr != "" {
		fmt.Fprintln(os.Stderr, *stderr)
	}

	select {
	case <-time.After(*delay):
	case <-sigChan:
		fmt.Println("shutting down")
		return
	}
	if *exitCode != 0 {
		fmt.Println("fatal: giving up")
		os.Exit(*exitCode)
	}

	fmt.Println(*ready)

	var crash <-chan time.Time
	if *exitAfter > 0 {
		crash = time.After(*exitAfter)
	}

	select {
	case <-sigChan:
		fmt.Println("shutting down")
	case <-crash:
		fmt.Println("crashed")
		os.Exit(1)
	}
}
