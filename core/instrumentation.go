package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const scopeName = "github.com/koscakluka/ema-voice/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	turnsCounter               = newCounter("session.turns", "User turns sent for completion")
	completionFallbackCounter  = newCounter("session.completion_fallbacks", "Completions replaced by the fallback reply")
	synthesisFailureCounter    = newCounter("session.synthesis_failures", "Replies that could not be synthesized")
	recognitionRestartsCounter = newCounter("session.recognition_restarts", "Automatic recognition restarts")
)

func newCounter(name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		logger.Warn("failed to create counter, using a no-op one", "counter", name, "error", err)
		return noop.Int64Counter{}
	}
	return counter
}
