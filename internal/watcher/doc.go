// Package watcher reports debounced file changes under a workspace root.
//
// Events from fsnotify are filtered through a skip function, coalesced per
// path over a short window and delivered in batches ordered by path:
//
//	w, err := watcher.New(root, watcher.Options{Skip: loader.ShouldSkip})
//	if err != nil {
//	    return err
//	}
//	go func() { _ = w.Run(ctx) }()
//	for batch := range w.Events() {
//	    coordinator.HandleEvents(ctx, batch)
//	}
package watcher
