// Package watch keeps a documentation directory indexed. File changes
// trigger a debounced reindex of the directory into a fixed session
// collection, so a running server answers against the latest files.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"docpilot/internal/fetch"
	"docpilot/internal/logging"
	"docpilot/internal/segmenter"
	"docpilot/internal/store"
	"docpilot/internal/types"
)

// defaultDebounce batches rapid editor save bursts into one reindex.
const defaultDebounce = 500 * time.Millisecond

// indexedExtensions are the file types the watcher indexes.
var indexedExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".html":     true,
	".htm":      true,
}

// Watcher reindexes a documentation directory on change.
type Watcher struct {
	dir       string
	sessionID string
	segmenter *segmenter.Segmenter
	store     store.FragmentStore
	watcher   *fsnotify.Watcher
	debounce  time.Duration
}

// New creates a Watcher over dir, indexing into the given session
// collection.
func New(dir, sessionID string, seg *segmenter.Segmenter, fragments store.FragmentStore) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cannot watch %s: not a directory", dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:       dir,
		sessionID: sessionID,
		segmenter: seg,
		store:     fragments,
		watcher:   fsw,
		debounce:  defaultDebounce,
	}, nil
}

// Run indexes the directory once, then blocks reindexing on changes until
// ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.reindex(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	dirty := false
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !indexedExtensions[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				logging.Watch("Change detected: %s %s", event.Op, event.Name)
				dirty = true
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.Get(logging.CategoryWatch).Warn("Watcher error: %v", err)

		case <-ticker.C:
			if !dirty {
				continue
			}
			dirty = false
			if err := w.reindex(ctx); err != nil && ctx.Err() == nil {
				logging.Get(logging.CategoryWatch).Error("Reindex failed: %v", err)
			}
		}
	}
}

// reindex rebuilds the session collection from the current directory
// contents.
func (w *Watcher) reindex(ctx context.Context) error {
	timer := logging.StartTimer(logging.CategoryWatch, "reindex")
	defer timer.Stop()

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", w.dir, err)
	}

	var fragments []types.Fragment
	var indexed int
	for _, entry := range entries {
		if entry.IsDir() || !indexedExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		doc, err := parseFile(path)
		if err != nil {
			logging.Get(logging.CategoryWatch).Warn("Skipping %s: %v", path, err)
			continue
		}
		docFragments := w.segmenter.MergeOverlapping(w.segmenter.Segment(doc))
		fragments = append(fragments, docFragments...)
		indexed++
	}

	if err := w.store.DeleteCollection(ctx, w.sessionID); err != nil && !errors.Is(err, store.ErrCollectionNotFound) {
		return fmt.Errorf("failed to reset collection: %w", err)
	}
	if len(fragments) == 0 {
		logging.Watch("Reindexed %s: no indexable files", w.dir)
		return nil
	}
	if err := w.store.AddFragments(ctx, w.sessionID, fragments); err != nil {
		return fmt.Errorf("failed to index fragments: %w", err)
	}

	logging.Watch("Reindexed %s: %d file(s), %d fragment(s)", w.dir, indexed, len(fragments))
	return nil
}

func parseFile(path string) (types.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Document{}, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return fetch.ParseHTML(f, path)
	default:
		return fetch.ParseMarkdown(f, path)
	}
}
