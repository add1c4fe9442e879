package tracing

import (
	"context"
	"io"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/sarchlab/motesim/sim"
	"github.com/sarchlab/motesim/sim/hooking"
)

// TracerName is the instrumentation name of the spans.
const TracerName = "github.com/sarchlab/motesim"

// SpanName is the name of the span that covers one loop lifetime.
const SpanName = "motesim.run"

// RunTracer is a hook that opens a span when a loop starts and ends it when
// the loop stops.
type RunTracer struct {
	tracer trace.Tracer

	lock  sync.Mutex
	spans map[string]trace.Span
}

// NewRunTracer creates a RunTracer that uses the given provider.
func NewRunTracer(provider trace.TracerProvider) *RunTracer {
	return &RunTracer{
		tracer: provider.Tracer(TracerName),
		spans:  make(map[string]trace.Span),
	}
}

// Func opens and closes the spans.
func (t *RunTracer) Func(ctx hooking.HookCtx) {
	info, ok := ctx.Detail.(sim.RunInfo)
	if !ok {
		return
	}

	e, _ := ctx.Item.(*sim.Engine)

	switch ctx.Pos {
	case sim.HookPosSimulationStarted:
		t.start(ctx.Context, e, info)
	case sim.HookPosSimulationStopped:
		t.end(e, info)
	}
}

func (t *RunTracer) start(ctx context.Context, e *sim.Engine, info sim.RunInfo) {
	if ctx == nil {
		ctx = context.Background()
	}

	attrs := []attribute.KeyValue{attribute.String("motesim.run.id", info.ID)}
	if e != nil {
		attrs = append(attrs,
			attribute.String("motesim.title", e.Title()),
			attribute.Int64("motesim.sim_time.start", e.SimulationTime()),
			attribute.Int("motesim.units", e.UnitCount()),
		)
	}

	_, span := t.tracer.Start(ctx, SpanName, trace.WithAttributes(attrs...))

	t.lock.Lock()
	t.spans[info.ID] = span
	t.lock.Unlock()
}

func (t *RunTracer) end(e *sim.Engine, info sim.RunInfo) {
	t.lock.Lock()
	span, ok := t.spans[info.ID]
	delete(t.spans, info.ID)
	t.lock.Unlock()

	if !ok {
		return
	}

	span.SetAttributes(attribute.Int64("motesim.rounds", int64(info.Rounds)))
	if e != nil {
		span.SetAttributes(
			attribute.Int64("motesim.sim_time.end", e.SimulationTime()))
	}

	if info.Err != nil {
		span.RecordError(info.Err)
		span.SetStatus(codes.Error, info.Err.Error())
	}

	span.End()
}

// NewStdoutProvider creates a tracer provider that prints spans to w. The
// returned function flushes and shuts the provider down.
func NewStdoutProvider(
	w io.Writer,
) (trace.TracerProvider, func(context.Context) error, error) {
	exp, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
		stdouttrace.WithoutTimestamps(),
	)
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))

	return tp, tp.Shutdown, nil
}
