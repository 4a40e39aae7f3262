// Package watcher rebuilds the lexical index when the corpus file changes.
//
// CorpusWatcher watches the corpus file's directory with fsnotify, keeps only
// events for the corpus itself and falls back to stat polling where fsnotify
// is unavailable (network mounts, some container volumes). Events are
// debounced so that an export written in several steps triggers one rebuild.
// Rebuilder consumes the debounced batches, runs a build and swaps the new
// index into the engine; queries keep using the old index until the swap.
//
// Usage:
//
//	w, err := watcher.NewCorpusWatcher(corpusPath, watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//	go func() { _ = w.Start(ctx) }()
//
//	rb := watcher.NewRebuilder(build, engine)
//	return rb.Run(ctx, w.Events())
package watcher
