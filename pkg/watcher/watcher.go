// Package watcher notifies ct when the loaded tree file changes on disk.
//
// Raw filesystem events are only a hint: after the debounce window the file
// is re-read and a change is reported when its content digest differs from
// the last one seen. Touches, chmods and editors that rewrite identical
// bytes therefore do not trigger a reload.
package watcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/checktree/pkg/debug"
)

// DefaultPollInterval is the stat interval in polling mode.
const DefaultPollInterval = 2 * time.Second

// ForcePollEnvVar forces polling mode when set to a truthy value.
const ForcePollEnvVar = "CT_FORCE_POLL"

var (
	ErrFileRemoved    = errors.New("watched file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDuration sets how long events must settle before the file is
// re-read.
func WithDebounceDuration(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounceDuration = d }
}

// WithPollInterval sets the stat interval for polling mode.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.pollInterval = d }
}

// WithOnChange sets a callback run on every content change, before Changed
// is signalled.
func WithOnChange(fn func()) WatcherOption {
	return func(w *Watcher) { w.onChange = fn }
}

// WithOnError sets a callback run for every watch error, before Errors is
// signalled.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onError = fn }
}

// WithForcePoll skips fsnotify and polls.
func WithForcePoll(force bool) WatcherOption {
	return func(w *Watcher) { w.forcePoll = force }
}

// fileState is what the watcher last knew about the file.
type fileState struct {
	exists bool
	mtime  time.Time
	size   int64
	digest [sha256.Size]byte
}

// statOnly reports whether the cheap metadata differs. Polling uses it to
// decide whether hashing is worth it.
func (s fileState) statOnly(info os.FileInfo) bool {
	return !s.exists || !info.ModTime().Equal(s.mtime) || info.Size() != s.size
}

// readState stats and hashes path. A missing file yields a zero state and no
// error.
func readState(path string) (fileState, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileState{}, nil
		}
		if os.IsPermission(err) {
			return fileState{}, ErrPermission
		}
		return fileState{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fileState{}, err
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fileState{}, err
	}
	st := fileState{exists: true, mtime: info.ModTime(), size: info.Size()}
	copy(st.digest[:], h.Sum(nil))
	return st, nil
}

// Watcher follows one tree file. fsnotify watches the parent directory so
// saves by rename are seen; polling is the fallback.
type Watcher struct {
	path             string
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func()
	onError          func(error)
	forcePoll        bool

	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	polling   bool
	last      fileState

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
	mu       sync.RWMutex
	changeCh chan struct{}
	errCh    chan error
}

// NewWatcher creates a watcher for path. The file need not exist yet.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:             absPath,
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func() {},
		onError:          func(error) {},
		changeCh:         make(chan struct{}, 1),
		errCh:            make(chan error, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debouncer = NewDebouncer(w.debounceDuration)
	return w, nil
}

// Start records the current file state and begins watching.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}
	st, err := readState(w.path)
	if err != nil {
		return err
	}
	w.last = st

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.polling = w.forcePoll || envBool(ForcePollEnvVar)

	if !w.polling {
		fsw, err := fsnotify.NewWatcher()
		switch {
		case err != nil:
			debug.Log("watcher: fsnotify unavailable, polling %s: %v", w.path, err)
			w.polling = true
		case fsw.Add(filepath.Dir(w.path)) != nil:
			fsw.Close()
			w.polling = true
		default:
			w.fsWatcher = fsw
			w.wg.Add(1)
			go w.watchEvents(ctx, fsw)
		}
	}
	if w.polling {
		w.wg.Add(1)
		go w.watchPolling(ctx)
	}

	debug.Log("watcher: started on %s (polling=%v)", w.path, w.polling)
	w.started = true
	return nil
}

// Stop ends watching and waits for the goroutines. Changed and Errors stay
// open so a blocked receiver is not woken with a zero value.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.cancel()
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
	w.debouncer.Cancel()
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.polling
}

func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed receives once per burst of content changes. Notifications
// coalesce while nobody is receiving.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changeCh
}

// Errors receives watch errors such as ErrFileRemoved. Only the oldest
// unread error is kept.
func (w *Watcher) Errors() <-chan error {
	return w.errCh
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

func (w *Watcher) PollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pollInterval
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func (w *Watcher) watchEvents(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	target := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == target && !event.Has(fsnotify.Chmod) {
				w.debouncer.Trigger(w.check)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.report(err)
		}
	}
}

func (w *Watcher) watchPolling(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		w.mu.RLock()
		last := w.last
		w.mu.RUnlock()

		info, err := os.Stat(w.path)
		switch {
		case err == nil && last.statOnly(info):
			w.debouncer.Trigger(w.check)
		case os.IsNotExist(err) && last.exists:
			w.debouncer.Trigger(w.check)
		case os.IsPermission(err):
			w.report(ErrPermission)
		case err != nil && !os.IsNotExist(err):
			w.report(err)
		}
	}
}

// check re-reads the file after events settled and reports a removal or a
// content change.
func (w *Watcher) check() {
	if !w.IsStarted() {
		return
	}
	st, err := readState(w.path)
	if err != nil {
		w.report(err)
		return
	}

	w.mu.Lock()
	prev := w.last
	w.last = st
	w.mu.Unlock()

	switch {
	case !st.exists && prev.exists:
		w.report(ErrFileRemoved)
	case st.exists && (!prev.exists || st.digest != prev.digest):
		w.notifyChange()
	default:
		debug.Log("watcher: %s unchanged, skipping reload", w.path)
	}
}

func (w *Watcher) notifyChange() {
	w.onChange()
	select {
	case w.changeCh <- struct{}{}:
	default:
	}
}

func (w *Watcher) report(err error) {
	w.onError(err)
	select {
	case w.errCh <- err:
	default:
	}
}
