package ingest

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/ravenlog/ravenlog/internal/ingest"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
