package command

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/FishWoWater/trellis-blender/internal/logging"
	"github.com/FishWoWater/trellis-blender/internal/protocol"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/FishWoWater/trellis-blender/internal/command"

// viewCommands must run with the host's primary view established.
var viewCommands = map[string]bool{
	"import_model":               true,
	"execute_code":               true,
	"download_marketplace_asset": true,
}

// ViewContext establishes the host's primary view for the duration of fn and
// releases it on every exit path.
type ViewContext interface {
	WithPrimaryView(fn func() error) error
}

// Observer receives one call per dispatched command.
type Observer interface {
	ObserveCommand(commandType, status string, elapsed time.Duration)
}

// Outcome labels reported to the Observer.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeUnknown = "unknown"
	OutcomeInvalid = "invalid"
)

// PanicError is a handler panic converted to an error.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprint(e.Value)
}

// Dispatcher resolves commands against the current capability table and
// turns every outcome into a response envelope. It never panics and never
// returns without a response.
type Dispatcher struct {
	catalog  Catalog
	table    atomic.Pointer[Table]
	view     ViewContext
	observer Observer
	tracer   trace.Tracer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithViewContext sets the host view used for context-sensitive commands.
func WithViewContext(v ViewContext) Option {
	return func(d *Dispatcher) {
		d.view = v
	}
}

// WithObserver sets the per-command observer (metrics).
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		d.observer = o
	}
}

// NewDispatcher builds the initial capability table from the catalog.
func NewDispatcher(catalog Catalog, features Features, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		catalog: catalog,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.Reconfigure(features); err != nil {
		return nil, err
	}
	return d, nil
}

// Reconfigure rebuilds the capability table for a new feature set. Commands
// dispatched afterwards see the new table; no restart is needed.
func (d *Dispatcher) Reconfigure(features Features) error {
	table, err := NewTable(d.catalog, features)
	if err != nil {
		return fmt.Errorf("failed to build handler table: %w", err)
	}
	d.table.Store(table)
	logging.Info("Handler table built",
		zap.Int("commands", len(table.Types())),
		zap.Bool("marketplace", features.Enabled(FeatureMarketplace)),
	)
	return nil
}

// Table returns the current capability table.
func (d *Dispatcher) Table() *Table {
	return d.table.Load()
}

// Dispatch runs one command and returns its response.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd protocol.Command) protocol.Response {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "bridge.dispatch",
		trace.WithAttributes(attribute.String("command.type", cmd.Type)),
	)
	defer span.End()

	resp, outcome := d.dispatch(ctx, cmd)
	if !resp.OK() {
		span.SetStatus(codes.Error, resp.Message)
	}
	span.SetAttributes(attribute.String("command.outcome", outcome))

	elapsed := time.Since(start)
	logging.LogCommand(cmd.Type, resp.Status, elapsed)
	if d.observer != nil {
		d.observer.ObserveCommand(cmd.Type, outcome, elapsed)
	}
	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, cmd protocol.Command) (protocol.Response, string) {
	e, ok := d.Table().lookup(cmd.Type)
	if !ok {
		logging.Warn("Unknown command type", zap.String("type", cmd.Type))
		return protocol.UnknownCommand(cmd.Type), OutcomeUnknown
	}

	params := Params(cmd.Params)
	if params == nil {
		params = Params{}
	}
	if err := e.validate(params); err != nil {
		return protocol.Error(err.Error()), OutcomeInvalid
	}

	var result any
	var err error
	if viewCommands[cmd.Type] && d.view != nil {
		err = d.view.WithPrimaryView(func() error {
			var herr error
			result, herr = invoke(ctx, e.spec.Handler, params)
			return herr
		})
	} else {
		result, err = invoke(ctx, e.spec.Handler, params)
	}

	if err != nil {
		fields := []zap.Field{zap.String("type", cmd.Type), zap.Error(err)}
		var perr *PanicError
		if errors.As(err, &perr) {
			fields = append(fields, zap.ByteString("stack", perr.Stack))
		}
		logging.Error("Handler failed", fields...)
		return protocol.Error(err.Error()), OutcomeError
	}
	return protocol.Success(result), OutcomeSuccess
}

// invoke runs a handler, converting a panic into a *PanicError.
func invoke(ctx context.Context, h Handler, params Params) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return h.Handle(ctx, params)
}
