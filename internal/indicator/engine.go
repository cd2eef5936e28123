// Package indicator computes rolling technical indicators (change in price,
// SMA, EMA, RSI) over a symbol-partitioned price frame, and replays every
// previously requested indicator whenever new rows are appended.
//
// Each public indicator method validates its parameters, records the
// invocation in the registry, then writes its derived column(s) in place.
// Refresh replays all recorded invocations in original order with their
// original arguments, so dependency columns (RSI needs change in price) are
// regenerated before their dependents see them.
package indicator

import (
	"fmt"
	"math"

	"stockrobotv1/internal/frame"
)

// Derived column names written by the indicator routines.
const (
	ColChangeInPrice = "change_in_price"
	ColSMA           = "sma"
	ColEMA           = "ema"
	ColRSI           = "rsi"
)

// MethodWilders is the only supported RSI smoothing method label.
const MethodWilders = "wilders"

// RSI helper columns, dropped before RSI returns.
const (
	colUpDay    = "up_day"
	colDownDay  = "down_day"
	colEwmaUp   = "ewma_up"
	colEwmaDown = "ewma_down"
)

// Engine owns a frame and the registry of indicator invocations.
// Single-writer: all methods mutate the frame in place and must be
// serialized by the caller.
type Engine struct {
	frame    *frame.Frame
	registry *Registry
}

// NewEngine creates an indicator engine over the given frame with an empty
// registry.
func NewEngine(f *frame.Frame) *Engine {
	return &Engine{
		frame:    f,
		registry: NewRegistry(),
	}
}

// Frame returns the underlying price frame.
func (e *Engine) Frame() *frame.Frame { return e.frame }

// Registry returns the engine's indicator registry.
func (e *Engine) Registry() *Registry { return e.registry }

// ChangeInPrice writes the row-over-row close difference per symbol group
// into the change_in_price column. The first row of each group is undefined.
func (e *Engine) ChangeInPrice() error {
	e.registry.Register(Record{Name: ColChangeInPrice, Kind: KindChangeInPrice})
	return e.computeChangeInPrice()
}

// SMA writes the simple moving average of close over a trailing window of
// `period` rows into the sma column. The first period-1 rows of each group
// are undefined.
func (e *Engine) SMA(period int) error {
	if period <= 0 {
		return fmt.Errorf("sma: period must be a positive integer, got %d: %w", period, ErrInvalidParameter)
	}
	e.registry.Register(Record{Name: ColSMA, Kind: KindSMA, Params: Params{Period: period}})
	return e.computeSMA(period)
}

// EMA writes the exponential moving average of close into the ema column.
// The smoothing factor is alpha when alpha > 0, else 2/(period+1); the
// recurrence is seeded from the first close of each group.
func (e *Engine) EMA(period int, alpha float64) error {
	if period <= 0 {
		return fmt.Errorf("ema: period must be a positive integer, got %d: %w", period, ErrInvalidParameter)
	}
	if alpha < 0 || alpha >= 1 {
		return fmt.Errorf("ema: alpha must be in [0,1), got %g: %w", alpha, ErrInvalidParameter)
	}
	e.registry.Register(Record{Name: ColEMA, Kind: KindEMA, Params: Params{Period: period, Alpha: alpha}})
	return e.computeEMA(period, alpha)
}

// RSI writes the Relative Strength Index into the rsi column, computing the
// change_in_price prerequisite first. method must be "wilders"
// (or empty, which defaults to it). Helper columns are dropped before
// returning; the change_in_price column persists.
func (e *Engine) RSI(period int, method string) error {
	if period <= 0 {
		return fmt.Errorf("rsi: period must be a positive integer, got %d: %w", period, ErrInvalidParameter)
	}
	if method == "" {
		method = MethodWilders
	}
	if method != MethodWilders {
		return fmt.Errorf("rsi: unsupported method %q: %w", method, ErrInvalidParameter)
	}
	e.registry.Register(Record{Name: ColRSI, Kind: KindRSI, Params: Params{Period: period, Method: method}})
	return e.computeRSI(period)
}

// Invoke validates and applies rec through the public registration path.
// Used by callers that build records dynamically (service API, config).
func (e *Engine) Invoke(rec Record) error {
	switch rec.Kind {
	case KindChangeInPrice:
		return e.ChangeInPrice()
	case KindSMA:
		return e.SMA(rec.Params.Period)
	case KindEMA:
		return e.EMA(rec.Params.Period, rec.Params.Alpha)
	case KindRSI:
		return e.RSI(rec.Params.Period, rec.Params.Method)
	}
	return fmt.Errorf("indicator: unknown kind %q: %w", rec.Kind, ErrInvalidParameter)
}

// Refresh replays every registered indicator, in registration order and
// with its stored arguments, against the current (possibly grown) frame.
// Recomputes never re-register. The first failure aborts the remaining
// replays: a partially refreshed frame is unsafe, so the caller must treat
// the whole refresh as not-completed.
func (e *Engine) Refresh() error {
	for _, rec := range e.registry.Records() {
		if err := e.apply(rec); err != nil {
			return fmt.Errorf("refresh %s: %w", rec.Name, err)
		}
	}
	return nil
}

// apply dispatches a record to its computation routine without touching the
// registry. Parameters are re-validated so a corrupt record fails the replay
// instead of writing a garbage column.
func (e *Engine) apply(rec Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	switch rec.Kind {
	case KindChangeInPrice:
		return e.computeChangeInPrice()
	case KindSMA:
		return e.computeSMA(rec.Params.Period)
	case KindEMA:
		return e.computeEMA(rec.Params.Period, rec.Params.Alpha)
	case KindRSI:
		return e.computeRSI(rec.Params.Period)
	}
	return fmt.Errorf("indicator: unknown kind %q: %w", rec.Kind, ErrInvalidParameter)
}

func (e *Engine) computeChangeInPrice() error {
	if !e.frame.HasColumn(frame.ColClose) {
		return fmt.Errorf("change_in_price: close: %w", ErrMissingColumn)
	}
	return e.frame.ApplyPerSymbol(frame.ColClose, ColChangeInPrice, diff)
}

func (e *Engine) computeSMA(period int) error {
	if !e.frame.HasColumn(frame.ColClose) {
		return fmt.Errorf("sma: close: %w", ErrMissingColumn)
	}
	return e.frame.ApplyPerSymbol(frame.ColClose, ColSMA, rollingMean(period))
}

func (e *Engine) computeEMA(period int, alpha float64) error {
	if !e.frame.HasColumn(frame.ColClose) {
		return fmt.Errorf("ema: close: %w", ErrMissingColumn)
	}
	if alpha == 0 {
		alpha = spanAlpha(period)
	}
	return e.frame.ApplyPerSymbol(frame.ColClose, ColEMA, ewma(alpha))
}

// computeRSI derives RSI from exponentially smoothed up/down moves.
// avgDown == 0 yields RSI = 100; the division by zero can never happen.
func (e *Engine) computeRSI(period int) error {
	// Prerequisite: change_in_price, computed fresh but not registered.
	// Always recomputed — after an append the existing column is stale on
	// the new rows, and the recompute is idempotent.
	if err := e.computeChangeInPrice(); err != nil {
		return err
	}

	// Up-moves: change >= 0, else 0. The undefined first change stays
	// undefined so RSI is undefined on the first row of each group.
	err := e.frame.ApplyPerSymbol(ColChangeInPrice, colUpDay, mapVals(func(v float64) float64 {
		if math.IsNaN(v) {
			return math.NaN()
		}
		if v >= 0 {
			return v
		}
		return 0
	}))
	if err != nil {
		return err
	}

	// Down-moves: |change| when change < 0, else 0.
	err = e.frame.ApplyPerSymbol(ColChangeInPrice, colDownDay, mapVals(func(v float64) float64 {
		if math.IsNaN(v) {
			return math.NaN()
		}
		if v < 0 {
			return -v
		}
		return 0
	}))
	if err != nil {
		return err
	}

	// Wilder's smoothing (span convention): alpha = 2/(period+1).
	alpha := spanAlpha(period)
	if err := e.frame.ApplyPerSymbol(colUpDay, colEwmaUp, ewma(alpha)); err != nil {
		return err
	}
	if err := e.frame.ApplyPerSymbol(colDownDay, colEwmaDown, ewma(alpha)); err != nil {
		return err
	}

	err = e.frame.CombineColumns(colEwmaUp, colEwmaDown, ColRSI, func(up, down float64) float64 {
		if math.IsNaN(up) || math.IsNaN(down) {
			return math.NaN()
		}
		if down == 0 {
			return 100.0
		}
		rs := up / down
		return 100.0 - (100.0 / (1.0 + rs))
	})
	if err != nil {
		return err
	}

	e.frame.DropColumns(colEwmaUp, colEwmaDown, colDownDay, colUpDay)
	return nil
}
