package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/polisai/shelf/pkg/telemetry"
)

// Loader loads a configuration file and reloads it when it changes on disk.
type Loader struct {
	path    string
	logger  *slog.Logger
	metrics *telemetry.Metrics

	mu        sync.RWMutex
	current   *Config
	watcher   *fsnotify.Watcher
	onChange  func(*Config)
	close     chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

// NewLoader creates a Loader for path.
func NewLoader(path string, logger *slog.Logger, metrics *telemetry.Metrics) (*Loader, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		path:    absPath,
		logger:  logger.With("config", absPath),
		metrics: metrics,
		close:   make(chan struct{}),
	}, nil
}

// Path returns the absolute path of the configuration file.
func (l *Loader) Path() string { return l.path }

// Load reads and validates the file. The current configuration only changes on success.
func (l *Loader) Load() (*Config, error) {
	cfg, err := Load(l.path)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Current returns the last successfully loaded configuration.
func (l *Loader) Current() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Watch starts monitoring the file. onChange runs after every successful
// reload; a file that fails to load keeps the previous configuration.
func (l *Loader) Watch(onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Editors replace files atomically, so the directory is watched.
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	l.mu.Lock()
	l.watcher = watcher
	l.onChange = onChange
	l.done = make(chan struct{})
	l.mu.Unlock()

	go l.watchLoop(watcher, l.done)
	return nil
}

func (l *Loader) watchLoop(watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-l.close:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != l.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			l.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Warn("Config watcher error", "error", err)
		}
	}
}

func (l *Loader) reload() {
	cfg, err := l.Load()
	if err != nil {
		l.metrics.RecordConfigReload("failure")
		l.logger.Error("Config reload failed, keeping previous configuration", "error", err)
		return
	}
	l.metrics.RecordConfigReload("success")
	l.logger.Info("Config reloaded")

	l.mu.RLock()
	onChange := l.onChange
	l.mu.RUnlock()
	if onChange != nil {
		onChange(cfg)
	}
}

// Close stops the watcher and waits for it to exit.
func (l *Loader) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.close)
		l.mu.RLock()
		watcher, done := l.watcher, l.done
		l.mu.RUnlock()
		if watcher != nil {
			err = watcher.Close()
			<-done
		}
	})
	return err
}
