// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package overrides

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("scenevis.overrides")
	meter  = otel.Meter("scenevis.overrides")
)

var (
	rebuildTotal    metric.Int64Counter
	rebuildLatency  metric.Float64Histogram
	supersededTotal metric.Int64Counter
	scheduledTotal  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		rebuildTotal, err = meter.Int64Counter(
			"override_rebuilds_total",
			metric.WithDescription("Total number of override index rebuilds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		rebuildLatency, err = meter.Float64Histogram(
			"override_rebuild_duration_seconds",
			metric.WithDescription("Duration of override index rebuilds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		supersededTotal, err = meter.Int64Counter(
			"override_rebuilds_superseded_total",
			metric.WithDescription("Rebuilds discarded because a newer change arrived"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		scheduledTotal, err = meter.Int64Counter(
			"override_change_events_total",
			metric.WithDescription("Change events received by override caches"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordRebuild(ctx context.Context, set SetType, duration time.Duration, err error) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("set", set.String()),
		attribute.Bool("success", err == nil),
	)
	rebuildTotal.Add(ctx, 1, attrs)
	rebuildLatency.Record(ctx, duration.Seconds(), attrs)
}

func recordSuperseded(ctx context.Context, set SetType) {
	if initMetrics() != nil {
		return
	}
	supersededTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("set", set.String())))
}

func recordScheduled(ctx context.Context, set SetType) {
	if initMetrics() != nil {
		return
	}
	scheduledTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("set", set.String())))
}

func startRebuildSpan(ctx context.Context, set SetType, generation uint64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "overrides.Cache.rebuild",
		trace.WithAttributes(
			attribute.String("overrides.set", set.String()),
			attribute.Int64("overrides.generation", int64(generation)),
		),
	)
}
