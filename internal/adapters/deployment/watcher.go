package deployment

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/jsamuelsen/managed-concurrency/internal/platform/config"
)

// Watcher reloads the application set from a YAML file whenever it changes.
// The parent directory is watched so that editors which replace the file
// by rename are picked up too.
type Watcher struct {
	path    string
	service *Service
	fsw     *fsnotify.Watcher
	logger  *slog.Logger
}

// NewWatcher starts watching path. Call Run to process changes and Close to
// release the watch.
func NewWatcher(path string, service *Service, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:    abs,
		service: service,
		fsw:     fsw,
		logger:  logger.With(slog.String("component", "applications-watcher"), slog.String("file", abs)),
	}, nil
}

// Reload reads the file and synchronises the deployment service with it.
func (w *Watcher) Reload(ctx context.Context) error {
	cfgs, err := config.LoadApplicationsFile(w.path)
	if err != nil {
		return err
	}

	return w.service.Sync(ctx, ApplicationsFromConfig(cfgs))
}

// Run processes file events until ctx is done or the watcher is closed.
// Reload failures are logged and the previous application set is kept.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "watching applications file")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != w.path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if err := w.Reload(ctx); err != nil {
				w.logger.ErrorContext(ctx, "applications reload failed", slog.Any("error", err))
				continue
			}

			w.logger.InfoContext(ctx, "applications reloaded", slog.String("op", event.Op.String()))

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}

			w.logger.ErrorContext(ctx, "file watcher error", slog.Any("error", err))
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
