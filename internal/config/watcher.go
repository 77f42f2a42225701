package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounceDelay = 300 * time.Millisecond

// Watcher reloads the configuration when a YAML file in the loader's directory changes
// and hands valid results to the registered callbacks. Invalid reloads are logged and
// dropped; the previous configuration stays current.
type Watcher struct {
	loader  *Loader
	logger  *zap.Logger
	fs      *fsnotify.Watcher
	delay   time.Duration
	done    chan struct{}
	stopped sync.Once

	mu        sync.RWMutex
	current   *Config
	callbacks []func(*Config)
}

// NewWatcher starts watching the loader's directory.
func NewWatcher(loader *Loader, initial *Config, logger *zap.Logger) (*Watcher, error) {
	return newWatcher(loader, initial, logger, debounceDelay)
}

func newWatcher(loader *Loader, initial *Config, logger *zap.Logger, delay time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(loader.Dir()); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		loader:  loader,
		logger:  logger,
		fs:      fsw,
		delay:   delay,
		done:    make(chan struct{}),
		current: initial,
	}
	go w.loop()

	logger.Info("configuration hot reload enabled", zap.String("dir", loader.Dir()))
	return w, nil
}

// OnChange registers fn to run after every successful reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Current returns the latest valid configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.stopped.Do(func() {
		close(w.done)
		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) loop() {
	var timer *time.Timer
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !isConfigFile(event.Name) {
				continue
			}
			w.logger.Debug("configuration file changed",
				zap.String("file", event.Name),
				zap.String("op", event.Op.String()),
			)
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.delay, w.reload)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("configuration watcher error", zap.Error(err))

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Load()
	if err != nil {
		w.logger.Error("configuration reload rejected", zap.Error(err))
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = cfg
	callbacks := append([]func(*Config){}, w.callbacks...)
	w.mu.Unlock()

	if old != nil && old.Batch.MaxConcurrency != cfg.Batch.MaxConcurrency {
		w.logger.Info("batch concurrency changed",
			zap.Int("from", old.Batch.MaxConcurrency),
			zap.Int("to", cfg.Batch.MaxConcurrency),
		)
	}
	for _, fn := range callbacks {
		fn(cfg)
	}
}

func isConfigFile(name string) bool {
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
