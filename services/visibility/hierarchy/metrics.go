// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package hierarchy

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
	tracer = otel.Tracer("scenevis.hierarchy")
	meter  = otel.Meter("scenevis.hierarchy")
)

var (
	buildTotal        metric.Int64Counter
	buildLatency      metric.Float64Histogram
	countQueriesTotal metric.Int64Counter
	cyclesTotal       metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildTotal, err = meter.Int64Counter(
			"hierarchy_builds_total",
			metric.WithDescription("Total number of hierarchy index builds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildLatency, err = meter.Float64Histogram(
			"hierarchy_build_duration_seconds",
			metric.WithDescription("Duration of hierarchy index builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		countQueriesTotal, err = meter.Int64Counter(
			"hierarchy_category_count_queries_total",
			metric.WithDescription("Total number of category element count queries"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cyclesTotal, err = meter.Int64Counter(
			"hierarchy_subject_cycles_total",
			metric.WithDescription("Total number of subject parent cycles detected"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordBuild(ctx context.Context, duration time.Duration, err error) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", err == nil))
	buildTotal.Add(ctx, 1, attrs)
	buildLatency.Record(ctx, duration.Seconds(), attrs)
}

func recordCountQuery(ctx context.Context) {
	if initMetrics() != nil {
		return
	}
	countQueriesTotal.Add(ctx, 1)
}

func recordCycles(ctx context.Context, n int) {
	if n == 0 || initMetrics() != nil {
		return
	}
	cyclesTotal.Add(ctx, int64(n))
}

func startBuildSpan(ctx context.Context, version uint64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "hierarchy.Index.build",
		trace.WithAttributes(attribute.Int64("hierarchy.version", int64(version))),
	)
}
