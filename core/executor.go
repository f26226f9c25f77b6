package core

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"shade/core/events"
	"shade/core/state"
	"shade/native/common"
	"shade/observability/metrics"
)

type frameKey struct{}

// frame identifies the top-level call an executor is running.
type frame struct {
	owner *executor
	id    string
}

// executor serialises the entry points of one instance and gives each
// top-level call all-or-nothing semantics over state and events.
type executor struct {
	mu      sync.Mutex
	guard   *common.Guard
	state   *state.Manager
	buffer  *events.Buffer
	sink    events.Emitter
	logger  *slog.Logger
	metrics *metrics.ContractMetrics
	tracer  trace.Tracer
}

// run executes fn as one entry point. A call whose context already carries a
// frame of this executor is a callback from code invoked by the running call,
// so it joins that frame instead of waiting on the lock. A callback that lost
// the frame finds the lock held while the guard is locked and fails with
// ErrReentrancy.
func (e *executor) run(ctx context.Context, method string, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if f, ok := ctx.Value(frameKey{}).(*frame); ok && f.owner == e {
		e.logger.Debug("nested call", slog.String("method", method), slog.String("call_id", f.id))
		return fn(ctx)
	}

	if !e.mu.TryLock() {
		if e.guard != nil && e.guard.Locked() {
			e.metrics.ObserveCall(method, outcomeOf(common.ErrReentrancy), 0)
			e.logger.Warn("call rejected",
				slog.String("method", method),
				slog.String("outcome", outcomeOf(common.ErrReentrancy)))
			return common.ErrReentrancy
		}
		e.mu.Lock()
	}
	defer e.mu.Unlock()

	callID := uuid.NewString()
	ctx = context.WithValue(ctx, frameKey{}, &frame{owner: e, id: callID})
	ctx, span := e.tracer.Start(ctx, "shade."+method, trace.WithAttributes(
		attribute.String("shade.method", method),
		attribute.String("shade.call_id", callID),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	if err == nil {
		err = e.state.Commit()
	}
	elapsed := time.Since(start)
	if err != nil {
		e.state.Discard()
		e.buffer.Reset()
		outcome := outcomeOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		e.metrics.ObserveCall(method, outcome, elapsed)
		e.logger.Warn("call failed",
			slog.String("method", method),
			slog.String("call_id", callID),
			slog.String("outcome", outcome),
			slog.Duration("duration", elapsed),
			slog.Any("error", err))
		return err
	}

	published := e.buffer.Flush(e.sink)
	for _, evt := range published {
		e.metrics.RecordEvent(evt.EventType())
	}
	span.SetAttributes(attribute.Int("shade.events", len(published)))
	e.metrics.ObserveCall(method, "ok", elapsed)
	e.logger.Debug("call finished",
		slog.String("method", method),
		slog.String("call_id", callID),
		slog.Int("events", len(published)),
		slog.Duration("duration", elapsed))
	return nil
}

// query runs a read-only entry point through the executor and returns its
// result.
func query[T any](e *executor, ctx context.Context, method string, fn func() (T, error)) (T, error) {
	var out T
	err := e.run(ctx, method, func(context.Context) error {
		var err error
		out, err = fn()
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// outcomeOf labels err for metrics and logs.
func outcomeOf(err error) string {
	var contractErr *common.Error
	if errors.As(err, &contractErr) {
		return strings.ReplaceAll(contractErr.Name, " ", "_")
	}
	var external *common.ExternalError
	if errors.As(err, &external) {
		return "external"
	}
	return "internal"
}
