package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/notesearch/internal/config"
)

// LanguageFunc applies a new search language. It returns an error when the
// switch failed, in which case the change is retried on the next config event.
type LanguageFunc func(ctx context.Context, language string) error

// ConfigWatcher watches the config file and reports changes of search.language.
// The file's directory is watched rather than the file itself, because many
// editors save by replacing the file.
type ConfigWatcher struct {
	path       string
	onLanguage LanguageFunc
	debounce   time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	language string
}

// ConfigWatcherOption configures a ConfigWatcher.
type ConfigWatcherOption func(*ConfigWatcher)

// WithConfigLogger sets a logger for reload events.
func WithConfigLogger(l *zap.Logger) ConfigWatcherOption {
	return func(c *ConfigWatcher) { c.logger = l }
}

// WithConfigDebounce sets how long the config file must stay quiet before it is reloaded.
func WithConfigDebounce(d time.Duration) ConfigWatcherOption {
	return func(c *ConfigWatcher) { c.debounce = d }
}

// NewConfigWatcher watches the config file at path; language is the language in effect now.
func NewConfigWatcher(path, language string, onLanguage LanguageFunc, opts ...ConfigWatcherOption) *ConfigWatcher {
	c := &ConfigWatcher{
		path:       filepath.Clean(path),
		onLanguage: onLanguage,
		debounce:   defaultDebounce,
		logger:     zap.NewNop(),
		language:   language,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Language returns the last language applied successfully.
func (c *ConfigWatcher) Language() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.language
}

// Run watches until ctx is done.
func (c *ConfigWatcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()
	if err := fsw.Add(filepath.Dir(c.path)); err != nil {
		return err
	}
	pending := newDebouncer(c.debounce)
	defer pending.stop()
	c.logger.Debug("config watcher started", zap.String("path", c.path))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != c.path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			pending.trigger(c.path, func() { c.Reload(ctx) })
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			c.logger.Debug("config watcher error", zap.Error(err))
		}
	}
}

// Reload reads the config file and applies a changed search language. An
// unreadable or invalid file is logged and ignored.
func (c *ConfigWatcher) Reload(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	cfg, err := config.Load(c.path)
	if err != nil {
		c.logger.Warn("config reload failed", zap.String("path", c.path), zap.Error(err))
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	next := cfg.Search.Language
	if next == c.language {
		return
	}
	c.logger.Info("search language changed", zap.String("from", c.language), zap.String("to", next))
	if err := c.onLanguage(ctx, next); err != nil {
		c.logger.Error("failed to apply search language", zap.String("language", next), zap.Error(err))
		return
	}
	c.language = next
}
