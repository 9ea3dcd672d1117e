// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package visibility

import (
	"context"
	"log/slog"
	"time"

	"github.com/AleutianAI/scenevis/services/visibility/query/postgres"
	"github.com/AleutianAI/scenevis/services/visibility/query/sqlite"
)

// WatchOptions configures WatchSource.
type WatchOptions struct {
	// Debounce coalesces file events of a SQLite source.
	Debounce time.Duration

	// Channel is the Postgres NOTIFY channel.
	Channel string
}

// WatchSource forwards the source's data-change signal to DataChanged until
// ctx is canceled.
//
// Description:
//
//	A file-backed SQLite source is watched with fsnotify. A Postgres source
//	LISTENs on opts.Channel in a background goroutine. Other sources return
//	ErrUnsupportedSource.
//
// Outputs:
//
//	stop - Stops watching. Safe to call more than once.
//	error - The watcher could not be started.
func (s *Service) WatchSource(ctx context.Context, opts WatchOptions) (stop func(), err error) {
	switch src := s.src.(type) {
	case *sqlite.Source:
		w, err := sqlite.NewWatcher(src.Path(), s.DataChanged, opts.Debounce, s.logger)
		if err != nil {
			return nil, err
		}
		if err := w.Start(ctx); err != nil {
			w.Stop()
			return nil, err
		}
		return w.Stop, nil

	case *postgres.Source:
		ctx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			err := src.Listen(ctx, opts.Channel, func(payload string) {
				s.logger.Debug("scene change notification", slog.String("payload", payload))
				s.DataChanged()
			})
			if err != nil {
				s.logger.Error("listen for scene changes failed", slog.String("error", err.Error()))
			}
		}()
		return func() {
			cancel()
			<-done
		}, nil

	default:
		return nil, ErrUnsupportedSource
	}
}
