package provider

import (
	"context"
	"errors"
	"log/slog"

	eserrors "github.com/eventscout/eventscout/internal/errors"
	"github.com/eventscout/eventscout/internal/watcher"
)

// WatchCatalog reindexes local whenever the catalog file at path changes,
// so curated entries can be edited without a restart. The returned stop
// function releases the watcher. A reload that fails, or a deleted file,
// keeps the last good entries.
func WatchCatalog(ctx context.Context, path string, local *Local) (func(), error) {
	w, err := watcher.NewFileWatcher(watcher.DefaultOptions())
	if err != nil {
		return nil, eserrors.InternalError("catalog watcher init failed", err)
	}

	go func() {
		if err := w.Start(ctx, path); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("catalog watcher stopped",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}()

	go func() {
		for {
			select {
			case batch, ok := <-w.Events():
				if !ok {
					return
				}
				applyCatalogChange(path, local, batch)
			case werr, ok := <-w.Errors():
				if !ok {
					return
				}
				slog.Warn("catalog watcher error",
					slog.String("path", path),
					slog.String("error", werr.Error()))
			}
		}
	}()

	return func() { _ = w.Stop() }, nil
}

func applyCatalogChange(path string, local *Local, batch []watcher.FileEvent) {
	if len(batch) == 0 {
		return
	}

	removed := true
	for _, ev := range batch {
		if ev.Operation != watcher.OpDelete {
			removed = false
		}
	}
	if removed {
		slog.Warn("catalog file removed, keeping last good entries",
			slog.String("path", path))
		return
	}

	catalog, err := LoadCatalog(path)
	if err != nil {
		slog.Warn("catalog reload failed, keeping last good entries",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	if err := local.Reload(catalog); err != nil {
		slog.Warn("catalog reindex failed, keeping last good entries",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}
