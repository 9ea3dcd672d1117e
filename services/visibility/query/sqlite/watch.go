// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sqlite

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce is how long the watcher waits for writes to settle.
const DefaultWatchDebounce = 250 * time.Millisecond

// ChangeHandler is called once per settled burst of database writes.
type ChangeHandler func()

// Watcher turns writes to a SQLite database file (and its -wal/-journal
// side files) into a debounced data-change signal.
//
// # Description
//
// A commit touches the main file, the WAL, or both, often several times.
// Events are collected and the handler fires once the debounce window
// passes without further events, which maps one transaction commit to one
// hierarchy rebuild.
//
// # Thread Safety
//
// Safe for concurrent use. The handler is called from a single goroutine.
type Watcher struct {
	dir      string
	base     string
	watcher  *fsnotify.Watcher
	handler  ChangeHandler
	debounce time.Duration
	logger   *slog.Logger

	events   chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	watching bool
}

// NewWatcher creates a watcher for the database at path. A non-positive
// debounce uses DefaultWatchDebounce.
func NewWatcher(path string, handler ChangeHandler, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if path == "" || path == MemoryPath {
		return nil, errors.New("sqlite: cannot watch an in-memory database")
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		dir:      filepath.Dir(abs),
		base:     filepath.Base(abs),
		watcher:  fw,
		handler:  handler,
		debounce: debounce,
		logger:   logger,
		events:   make(chan struct{}, 64),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. Both goroutines exit on Stop or when ctx is
// canceled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// relevant reports whether name is the database or one of its side files.
func (w *Watcher) relevant(name string) bool {
	return strings.HasPrefix(filepath.Base(name), w.base)
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event.Name) || (event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write)) {
				continue
			}
			select {
			case w.events <- struct{}{}:
			default:
				// A signal is already pending; the debouncer only needs one.
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("database watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-w.events:
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			w.logger.Debug("database change detected", slog.String("path", filepath.Join(w.dir, w.base)))
			if w.handler != nil {
				w.handler()
			}
		}
	}
}
