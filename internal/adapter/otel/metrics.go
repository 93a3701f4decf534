package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "classpad"

// Metrics holds all ClassPad metric instruments.
type Metrics struct {
	SessionsStarted  metric.Int64Counter
	SessionsEnded    metric.Int64Counter
	SessionDuration  metric.Float64Histogram
	SnapshotsTaken   metric.Int64Counter
	SnapshotBytes    metric.Int64Histogram
	BroadcastsSent   metric.Int64Counter
	BroadcastsFailed metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.SessionsStarted, err = meter.Int64Counter("classpad.sessions.started",
		metric.WithDescription("Number of live sessions started"))
	if err != nil {
		return nil, err
	}

	m.SessionsEnded, err = meter.Int64Counter("classpad.sessions.ended",
		metric.WithDescription("Number of live sessions ended"))
	if err != nil {
		return nil, err
	}

	m.SessionDuration, err = meter.Float64Histogram("classpad.session.duration_seconds",
		metric.WithDescription("Session duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.SnapshotsTaken, err = meter.Int64Counter("classpad.snapshots.taken",
		metric.WithDescription("Number of editor snapshots appended"))
	if err != nil {
		return nil, err
	}

	m.SnapshotBytes, err = meter.Int64Histogram("classpad.snapshot.bytes",
		metric.WithDescription("Size of appended editor snapshots in bytes"))
	if err != nil {
		return nil, err
	}

	m.BroadcastsSent, err = meter.Int64Counter("classpad.broadcasts.sent",
		metric.WithDescription("Number of realtime broadcasts delivered"))
	if err != nil {
		return nil, err
	}

	m.BroadcastsFailed, err = meter.Int64Counter("classpad.broadcasts.failed",
		metric.WithDescription("Number of realtime broadcasts that failed or were shed"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
