package catalogue

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads a catalogue file into a Catalogue whenever it changes.
type Watcher struct {
	path     string
	target   *Catalogue
	base     []Tool
	logger   *zap.Logger
	debounce time.Duration
	onReload func(tools []Tool, err error)

	fsw     *fsnotify.Watcher
	closeCh chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithBase sets the tools the file is merged over on every reload.
func WithBase(tools []Tool) WatchOption {
	return func(w *Watcher) {
		w.base = append([]Tool(nil), tools...)
	}
}

// WithWatchLogger sets the logger.
func WithWatchLogger(l *zap.Logger) WatchOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// OnReload registers a callback invoked after each reload attempt.
func OnReload(fn func(tools []Tool, err error)) WatchOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// Watch starts watching path. The directory is watched rather than the
// file so that editors replacing the file are noticed.
// A reload that fails to parse leaves target unchanged.
func Watch(path string, target *Catalogue, opts ...WatchOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	w := &Watcher{
		path:     abs,
		target:   target,
		logger:   zap.NewNop(),
		debounce: DefaultDebounce,
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("catalogue watcher error", zap.Error(err))

		case <-timerC:
			timerC = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	tools, err := Load(w.path)
	if err != nil {
		w.logger.Warn("catalogue reload failed", zap.String("path", w.path), zap.Error(err))
	} else {
		w.target.Replace(Merge(w.base, tools))
		w.logger.Info("catalogue reloaded", zap.String("path", w.path), zap.Int("tools", len(tools)))
	}
	if w.onReload != nil {
		w.onReload(tools, err)
	}
}
