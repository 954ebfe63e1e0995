package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	threadservice "github.com/Swind/go-thread-service"
	"github.com/Swind/go-thread-service/core"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher reapplies a config file to a Service whenever the file changes.
type Watcher struct {
	path     string
	svc      *threadservice.Service
	logger   core.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher

	mu       sync.Mutex
	onReload func(Config, error)
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewWatcher watches path's directory so that editors replacing the file are
// noticed as well as in-place writes.
func NewWatcher(path string, svc *threadservice.Service, logger core.Logger) (*Watcher, error) {
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve config path %s", path)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create file watcher")
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "watch config directory %s", filepath.Dir(abs))
	}

	return &Watcher{
		path:     abs,
		svc:      svc,
		logger:   logger,
		debounce: defaultDebounce,
		watcher:  fw,
	}, nil
}

// OnReload registers fn to be called after each reload attempt.
func (w *Watcher) OnReload(fn func(Config, error)) {
	w.mu.Lock()
	w.onReload = fn
	w.mu.Unlock()
}

// Start begins watching; repeated calls are no-ops.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.loop(ctx, w.done)
}

// Close stops watching and releases the underlying watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return errors.Wrap(w.watcher.Close(), "close file watcher")
}

func (w *Watcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Wait for writers that truncate and then fill the file.
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.debounce):
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", core.F("path", w.path), core.F("error", err))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err == nil {
		err = Apply(w.svc, cfg)
	}
	if err != nil {
		w.logger.Error("config reload failed", core.F("path", w.path), core.F("error", err))
	} else {
		w.logger.Info("config reloaded", core.F("path", w.path), core.F("pools", len(cfg.Pools)))
	}

	w.mu.Lock()
	fn := w.onReload
	w.mu.Unlock()
	if fn != nil {
		fn(cfg, err)
	}
}
