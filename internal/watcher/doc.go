// Package watcher provides single-file change notification with automatic
// debouncing, used to pick up edits to the curated event catalog without a
// restart.
//
// The package implements a hybrid watching strategy:
//   - Primary: fsnotify for efficient event-based watching
//   - Fallback: Polling for environments where fsnotify fails (network mounts, Docker volumes)
//
// Raw events are debounced so editor save bursts (write, write, rename)
// collapse into one batch per window. The watcher only reports changes;
// reloading is the consumer's job.
//
// Usage:
//
//	w, err := watcher.NewFileWatcher(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go w.Start(ctx, "/path/to/catalog.yaml")
//
//	for batch := range w.Events() {
//	    for _, event := range batch {
//	        switch event.Operation {
//	        case watcher.OpDelete:
//	            // Keep the last good state
//	        default:
//	            // Reload from event.Path
//	        }
//	    }
//	}
package watcher
