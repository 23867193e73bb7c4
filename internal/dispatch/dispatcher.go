// Package dispatch routes a contract call to the handler registered for its
// method selector and runs that handler on the worker pool.
//
// A call whose data matches no selector is not an error: Execute returns a nil
// result and a nil error. A matched call always yields either a non-nil result
// or one of the typed errors from package handler.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liquichain/contract_layer/internal/abi"
	"github.com/liquichain/contract_layer/internal/events"
	"github.com/liquichain/contract_layer/internal/handler"
	"github.com/liquichain/contract_layer/internal/metrics"
	"github.com/liquichain/contract_layer/internal/selector"
	"github.com/liquichain/contract_layer/internal/worker"
	"github.com/liquichain/contract_layer/pkg/logger"
)

// ErrNoLoader is returned by New when Config.Loader is nil.
var ErrNoLoader = errors.New("dispatch: handler loader is required")

// Loader resolves handler identifiers. *handler.Loader implements it.
type Loader interface {
	Resolve(id string) (handler.Factory, error)
	Instantiate(id string, factory handler.Factory) (handler.Handler, error)
}

// Config wires a Dispatcher.
type Config struct {
	// Selectors is the ordered routing table. Nil behaves as empty.
	Selectors *selector.Registry

	// ABI is the contract's ABI JSON document.
	ABI string

	Loader Loader

	// Pool runs handlers. When nil the dispatcher creates and owns one with
	// worker.DefaultLimiterConfig.
	Pool *worker.Pool

	// Timeout bounds each handler invocation. 0 waits as long as the
	// caller's context allows.
	Timeout time.Duration

	Logger  *logger.Logger
	Metrics metrics.Recorder
	Events  events.Recorder
}

// Dispatcher is immutable after New and safe for concurrent use.
type Dispatcher struct {
	selectors *selector.Registry
	loader    Loader
	pool      *worker.Pool
	ownsPool  bool
	timeout   time.Duration

	functions []abi.ContractFunction
	methods   map[string]abi.ContractFunction

	log     *logger.Logger
	metrics metrics.Recorder
	events  events.Recorder
}

// New parses the ABI and builds a dispatcher. A malformed ABI is returned as
// *abi.MalformedABIError.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Loader == nil {
		return nil, ErrNoLoader
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("dispatch")
	}

	log.WithField("abi", cfg.ABI).Debug("loading contract ABI")
	fns, err := abi.ParseWithObserver(cfg.ABI, func(i int, fn abi.ContractFunction) {
		log.WithFields(map[string]any{
			"index":    i,
			"function": fn.String(),
			"selector": fn.Selector(),
		}).Info("contract function")
	})
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		selectors: cfg.Selectors,
		loader:    cfg.Loader,
		pool:      cfg.Pool,
		timeout:   cfg.Timeout,
		functions: fns,
		methods:   abi.Index(fns),
		log:       log,
		metrics:   cfg.Metrics,
		events:    cfg.Events,
	}
	if d.pool == nil {
		d.pool = worker.NewPool(worker.DefaultLimiterConfig())
		d.ownsPool = true
	}
	if d.metrics == nil {
		d.metrics = metrics.NoOp{}
	}
	if d.events == nil {
		d.events = events.NoOp{}
	}

	log.WithFields(map[string]any{
		"selectors": cfg.Selectors.Len(),
		"functions": len(fns),
		"timeout":   cfg.Timeout.String(),
	}).Info("dispatcher ready")
	return d, nil
}

// Execute dispatches in to the handler whose selector prefixes its call data.
//
// It returns (nil, nil) when the registry is empty or nothing matches, a
// *handler.ResolutionError when the matched identifier has no factory, and a
// *handler.ExecutionError when the handler could not be built, failed,
// panicked, or did not finish before ctx or the configured timeout ended.
func (d *Dispatcher) Execute(ctx context.Context, in handler.Input) (*handler.Result, error) {
	if d.selectors.Empty() {
		return nil, nil
	}

	data := selector.Normalize(in.Transaction.Data)
	log := d.log.WithField("request_id", in.RequestID)

	entry, ok := d.selectors.Lookup(data)
	if !ok {
		d.metrics.RecordNoMatch()
		events.New(events.EventNoMatch).
			Severity(events.SeverityDebug).
			RequestID(in.RequestID).
			Metadata("call_data", abbreviate(data)).
			LogTo(ctx, d.events)
		log.WithField("call_data", abbreviate(data)).Debug("no selector matched")
		return nil, nil
	}

	method := d.methodName(data)
	log = log.WithFields(map[string]any{
		"handler":  entry.Handler,
		"selector": entry.Selector,
		"method":   method,
	})

	factory, err := d.loader.Resolve(entry.Handler)
	if err != nil {
		var re *handler.ResolutionError
		if !errors.As(err, &re) {
			re = &handler.ResolutionError{Handler: entry.Handler}
		}
		d.metrics.RecordDispatch(entry.Handler, metrics.OutcomeUnresolved, 0)
		events.New(events.EventResolveFailed).
			Handler(entry.Handler).
			Selector(entry.Selector).
			Method(method).
			RequestID(in.RequestID).
			Err(re).
			LogTo(ctx, d.events)
		log.WithError(re).Error("handler resolution failed")
		return nil, re
	}

	events.New(events.EventMatched).
		Severity(events.SeverityDebug).
		Handler(entry.Handler).
		Selector(entry.Selector).
		Method(method).
		RequestID(in.RequestID).
		LogTo(ctx, d.events)

	start := time.Now()
	value, err := d.run(ctx, entry.Handler, factory, in)
	elapsed := time.Since(start)

	stats := d.pool.Stats()
	d.metrics.RecordWorkerPermits(stats.Active, stats.Waiting)

	if err != nil {
		execErr := &handler.ExecutionError{Handler: entry.Handler, Cause: err}

		outcome, eventType := metrics.OutcomeFailed, events.EventFailed
		if errors.Is(err, context.DeadlineExceeded) {
			outcome, eventType = metrics.OutcomeTimeout, events.EventTimeout
		}
		d.metrics.RecordDispatch(entry.Handler, outcome, elapsed)
		events.New(eventType).
			Handler(entry.Handler).
			Selector(entry.Selector).
			Method(method).
			RequestID(in.RequestID).
			Duration(elapsed).
			Err(execErr).
			LogTo(ctx, d.events)
		log.WithError(execErr).WithField("duration", elapsed.String()).Error("handler execution failed")
		return nil, execErr
	}

	// The handler owns what it returned; fill in a copy.
	result := &handler.Result{}
	if r, _ := value.(*handler.Result); r != nil {
		*result = *r
	}
	if result.Handler == "" {
		result.Handler = entry.Handler
	}
	if result.Method == "" {
		result.Method = method
	}

	d.metrics.RecordDispatch(entry.Handler, metrics.OutcomeCompleted, elapsed)
	events.New(events.EventCompleted).
		Handler(entry.Handler).
		Selector(entry.Selector).
		Method(method).
		RequestID(in.RequestID).
		Duration(elapsed).
		LogTo(ctx, d.events)
	log.WithField("duration", elapsed.String()).Info("handler completed")
	return result, nil
}

// run builds a fresh handler and calls ProcessData on a pool goroutine. The
// wait is the only place Execute blocks.
func (d *Dispatcher) run(ctx context.Context, id string, factory handler.Factory, in handler.Input) (any, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	d.metrics.IncInFlight(id)
	defer d.metrics.DecInFlight(id)

	future, err := d.pool.Submit(ctx, func(taskCtx context.Context) (any, error) {
		h, err := d.loader.Instantiate(id, factory)
		if err != nil {
			return nil, err
		}
		return h.ProcessData(taskCtx, in)
	})
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	return future.Wait(ctx)
}

// Match reports which entry, if any, would handle callData.
func (d *Dispatcher) Match(callData string) (selector.Entry, bool) {
	return d.selectors.Lookup(callData)
}

// Functions returns a copy of the parsed ABI.
func (d *Dispatcher) Functions() []abi.ContractFunction {
	out := make([]abi.ContractFunction, len(d.functions))
	copy(out, d.functions)
	return out
}

// Close releases the worker pool when the dispatcher created it.
func (d *Dispatcher) Close(ctx context.Context) error {
	if !d.ownsPool {
		return nil
	}
	return d.pool.Close(ctx)
}

// methodName returns the ABI function name for the 4-byte selector at the
// start of data, or "".
func (d *Dispatcher) methodName(data string) string {
	if len(data) < 8 {
		return ""
	}
	return d.methods[data[:8]].Name
}

func abbreviate(data string) string {
	if len(data) > 16 {
		return data[:16] + "..."
	}
	return data
}
