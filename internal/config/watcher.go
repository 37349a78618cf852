package config

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DebounceDelay coalesces the burst of events an editor produces on save.
const DebounceDelay = 150 * time.Millisecond

// Watcher reloads a config file when it changes on disk.
//
// The parent directory is watched rather than the file itself, since many
// editors save by writing a temp file and renaming it over the original.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	logger   *log.Logger
	onChange func(Config)

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewWatcher starts watching path. onChange runs on the watcher goroutine
// with every successfully loaded config. Files that fail to parse are
// logged and skipped.
func NewWatcher(path string, logger *log.Logger, onChange func(Config)) (*Watcher, error) {
	if _, err := FormatFor(path); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}

	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{
		path:     abs,
		fsw:      fsw,
		logger:   logger.WithPrefix("config"),
		onChange: onChange,
		done:     make(chan struct{}),
	}, nil
}

// Run processes events until ctx is done or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	var pending <-chan time.Time
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.Close()
			return
		case <-w.done:
			return
		case e, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != w.path {
				continue
			}
			if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) && !e.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(DebounceDelay)
			} else {
				timer.Reset(DebounceDelay)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

func (w *Watcher) reload() {
	c, warnings, err := Load(w.path)
	if err != nil {
		w.logger.Warn("reload failed", "path", w.path, "err", err)
		return
	}
	for _, msg := range warnings {
		w.logger.Warn(msg)
	}
	w.logger.Info("config reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(c)
	}
}

// Close stops the watcher. Closing twice returns an error.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("config watcher already closed")
	}
	w.closed = true
	close(w.done)
	return w.fsw.Close()
}
