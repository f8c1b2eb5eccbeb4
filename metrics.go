package gonimbusx

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("github.com/nimbuskv/gonimbusx",
		metric.WithInstrumentationVersion(buildVersion))
)

var (
	// operationsEnqueued tracks the number of packets handed to a pipeline for flushing.
	operationsEnqueued, _ = meter.Int64Counter("gonimbusx.operations_enqueued")

	// operationsTimedOut tracks pending operations completed by the expiry sweep.
	operationsTimedOut, _ = meter.Int64Counter("gonimbusx.operations_timed_out")

	// operationsCancelled tracks pending operations completed by cancellation.
	operationsCancelled, _ = meter.Int64Counter("gonimbusx.operations_cancelled")

	// orphanedResponses tracks responses whose opaque matched no pending operation.
	orphanedResponses, _ = meter.Int64Counter("gonimbusx.orphaned_responses")

	// serverDurations records server-reported processing times from extended
	// response frames, in microseconds.
	serverDurations, _ = meter.Int64Histogram("gonimbusx.server_duration_us")
)
