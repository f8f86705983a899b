// Package debug is ct's opt-in trace log.
//
// CT_DEBUG=1 writes to stderr. CT_DEBUG_FILE=path appends to a file instead
// and implies CT_DEBUG; use it with the TUI, where stderr shares the screen.
//
//	CT_DEBUG_FILE=/tmp/ct.log ct --file tree.json
//
// With neither set every function here is a no-op.
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

const prefix = "[CT_DEBUG] "

var (
	mu      sync.RWMutex
	enabled bool
	logger  = log.New(os.Stderr, prefix, log.Ltime|log.Lmicroseconds)
)

func init() {
	if path := os.Getenv("CT_DEBUG_FILE"); path != "" {
		if err := LogToFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "warning: CT_DEBUG_FILE: %v\n", err)
		}
		return
	}
	enabled = os.Getenv("CT_DEBUG") != ""
}

// Enabled reports whether trace output is on.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// SetEnabled turns trace output on or off without changing its destination.
func SetEnabled(e bool) {
	mu.Lock()
	enabled = e
	mu.Unlock()
}

// SetOutput redirects trace output without timestamps. Tests use it to
// capture lines.
func SetOutput(w io.Writer) {
	mu.Lock()
	logger = log.New(w, prefix, 0)
	mu.Unlock()
}

// LogToFile appends trace output to path and enables it. The file stays open
// for the life of the process.
func LogToFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	mu.Lock()
	logger = log.New(f, prefix, log.Ldate|log.Ltime|log.Lmicroseconds)
	enabled = true
	mu.Unlock()
	return nil
}

// Log writes one trace line.
func Log(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if enabled {
		logger.Printf(format, args...)
	}
}

// LogEnterExit traces entry now and exit, with the elapsed time, when the
// returned func runs.
//
//	defer debug.LogEnterExit("ApplyQuery")()
func LogEnterExit(name string) func() {
	if !Enabled() {
		return func() {}
	}
	Log("-> %s", name)
	start := time.Now()
	return func() { Log("<- %s (%v)", name, time.Since(start)) }
}
