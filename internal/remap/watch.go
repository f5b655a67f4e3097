package remap

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Logger defines the logging interface used by the rules watcher.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Watcher reloads a rules file when it changes on disk. The parent directory
// is watched rather than the file itself, so editors that replace the file
// via rename are still observed; event bursts collapse into one reload after
// a short quiet period. A file that fails to parse is logged and skipped,
// keeping the previous rules in force.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(*Config) error
	logger   Logger
}

// NewWatcher creates a watcher for the rules file at path. Each successfully
// parsed rule set is handed to onChange; an onChange error is logged and the
// watcher keeps running.
func NewWatcher(path string, onChange func(*Config) error) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: 250 * time.Millisecond,
		onChange: onChange,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the watcher.
func (w *Watcher) SetLogger(logger Logger) {
	w.logger = logger
}

// Run watches the rules file until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("remap: create rules watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("remap: watch %s: %w", dir, err)
	}
	w.logger.Debug("watching rules file", "path", w.path)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer = time.NewTimer(w.debounce)
			fire = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("rules watcher error", "error", err)

		case <-fire:
			timer = nil
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		w.logger.Error("rules reload failed", "path", w.path, "error", err)
		return
	}
	if err := w.onChange(cfg); err != nil {
		w.logger.Error("rules apply failed", "path", w.path, "error", err)
		return
	}
	w.logger.Info("rules reloaded", "path", w.path,
		"renames", len(cfg.Renames), "merges", len(cfg.Merges), "syncs", len(cfg.Syncs))
}
