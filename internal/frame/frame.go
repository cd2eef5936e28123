// Package frame holds the symbol-partitioned price table that indicators
// operate on.
//
// Rows are keyed by (symbol, timestamp) and kept in chronological order
// within each symbol group. Windowed transforms are always scoped to one
// group at a time, so values from one symbol can never influence another.
// Positions not yet covered by a statistic's warmup window carry NaN.
package frame

import (
	"fmt"
	"math"
	"sort"
	"time"

	"stockrobotv1/internal/model"
)

// Base column names present on every row.
const (
	ColOpen  = "open"
	ColHigh  = "high"
	ColLow   = "low"
	ColClose = "close"
)

// WindowFunc transforms the ordered input column of one symbol group into an
// output column of the same length. Undefined positions are NaN on both sides.
type WindowFunc func(in []float64) []float64

// Defined reports whether v holds a computed value (i.e. is not NaN).
func Defined(v float64) bool {
	return !math.IsNaN(v)
}

// Row is one price row plus its derived indicator values.
type Row struct {
	Symbol string
	TS     time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64

	derived map[string]float64
}

// Value returns the named column value for this row, NaN if undefined.
func (r *Row) Value(col string) float64 {
	switch col {
	case ColOpen:
		return r.Open
	case ColHigh:
		return r.High
	case ColLow:
		return r.Low
	case ColClose:
		return r.Close
	}
	if v, ok := r.derived[col]; ok {
		return v
	}
	return math.NaN()
}

func (r *Row) setDerived(col string, v float64) {
	if r.derived == nil {
		r.derived = make(map[string]float64, 4)
	}
	r.derived[col] = v
}

// Frame is the symbol-partitioned table. Single-writer: callers must
// serialize all mutations (append + column writes) externally.
type Frame struct {
	groups  map[string][]Row
	symbols []string        // sorted, for deterministic iteration
	derived map[string]bool // derived column names currently present
}

// New builds a Frame from historical bars. Bars may arrive in any order;
// each group ends up chronological.
func New(bars []model.Bar) *Frame {
	f := &Frame{
		groups:  make(map[string][]Row),
		derived: make(map[string]bool),
	}
	f.AppendRows(bars)
	return f
}

// AppendRows inserts new price rows, maintaining chronological order within
// each symbol group. A bar with an existing (symbol, timestamp) replaces the
// old row; its derived values are discarded and restored on the next refresh.
func (f *Frame) AppendRows(bars []model.Bar) {
	for _, b := range bars {
		row := Row{
			Symbol: b.Symbol,
			TS:     b.TS,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}

		g, ok := f.groups[b.Symbol]
		if !ok {
			f.groups[b.Symbol] = []Row{row}
			f.insertSymbol(b.Symbol)
			continue
		}

		// Common case: strictly newer than the last row — append.
		if b.TS.After(g[len(g)-1].TS) {
			f.groups[b.Symbol] = append(g, row)
			continue
		}

		i := sort.Search(len(g), func(i int) bool {
			return !g[i].TS.Before(b.TS)
		})
		if i < len(g) && g[i].TS.Equal(b.TS) {
			g[i] = row // replace, last write wins
			continue
		}
		g = append(g, Row{})
		copy(g[i+1:], g[i:])
		g[i] = row
		f.groups[b.Symbol] = g
	}
}

func (f *Frame) insertSymbol(symbol string) {
	i := sort.SearchStrings(f.symbols, symbol)
	f.symbols = append(f.symbols, "")
	copy(f.symbols[i+1:], f.symbols[i:])
	f.symbols[i] = symbol
}

// Symbols returns all symbols in the frame, sorted.
func (f *Frame) Symbols() []string {
	out := make([]string, len(f.symbols))
	copy(out, f.symbols)
	return out
}

// Len returns the total number of rows across all symbol groups.
func (f *Frame) Len() int {
	n := 0
	for _, g := range f.groups {
		n += len(g)
	}
	return n
}

// GroupLen returns the number of rows for one symbol.
func (f *Frame) GroupLen(symbol string) int {
	return len(f.groups[symbol])
}

// HasColumn reports whether the named column exists (base or derived).
func (f *Frame) HasColumn(name string) bool {
	switch name {
	case ColOpen, ColHigh, ColLow, ColClose:
		return true
	}
	return f.derived[name]
}

// Column returns the ordered values of one column for a symbol group.
// Undefined positions are NaN. Returns nil for an unknown symbol.
func (f *Frame) Column(symbol, name string) []float64 {
	g, ok := f.groups[symbol]
	if !ok {
		return nil
	}
	out := make([]float64, len(g))
	for i := range g {
		out[i] = g[i].Value(name)
	}
	return out
}

// Timestamps returns the ordered timestamps of a symbol group.
func (f *Frame) Timestamps(symbol string) []time.Time {
	g, ok := f.groups[symbol]
	if !ok {
		return nil
	}
	out := make([]time.Time, len(g))
	for i := range g {
		out[i] = g[i].TS
	}
	return out
}

// Last returns the most recent row for a symbol.
func (f *Frame) Last(symbol string) (Row, bool) {
	g, ok := f.groups[symbol]
	if !ok || len(g) == 0 {
		return Row{}, false
	}
	return g[len(g)-1], true
}

// ApplyPerSymbol applies fn to the ordered colIn sequence of every symbol
// group independently and writes the aligned result into colOut. Row count
// and identity are never changed by a transform; only derived columns may be
// written.
func (f *Frame) ApplyPerSymbol(colIn, colOut string, fn WindowFunc) error {
	if isBaseColumn(colOut) {
		return fmt.Errorf("frame: cannot overwrite base column %q", colOut)
	}
	for _, symbol := range f.symbols {
		g := f.groups[symbol]
		in := make([]float64, len(g))
		for i := range g {
			in[i] = g[i].Value(colIn)
		}
		out := fn(in)
		if len(out) != len(g) {
			return fmt.Errorf("frame: window output length %d != group length %d for %s", len(out), len(g), symbol)
		}
		for i := range g {
			g[i].setDerived(colOut, out[i])
		}
	}
	f.derived[colOut] = true
	return nil
}

// CombineColumns writes colOut[i] = fn(colA[i], colB[i]) for every row,
// per symbol group. Used for element-wise derivations from two columns.
func (f *Frame) CombineColumns(colA, colB, colOut string, fn func(a, b float64) float64) error {
	if isBaseColumn(colOut) {
		return fmt.Errorf("frame: cannot overwrite base column %q", colOut)
	}
	for _, symbol := range f.symbols {
		g := f.groups[symbol]
		for i := range g {
			g[i].setDerived(colOut, fn(g[i].Value(colA), g[i].Value(colB)))
		}
	}
	f.derived[colOut] = true
	return nil
}

// DropColumns removes derived columns from every row. Base columns are
// never dropped.
func (f *Frame) DropColumns(names ...string) {
	for _, name := range names {
		if isBaseColumn(name) || !f.derived[name] {
			continue
		}
		for _, g := range f.groups {
			for i := range g {
				delete(g[i].derived, name)
			}
		}
		delete(f.derived, name)
	}
}

// DerivedColumns returns the names of all derived columns, sorted.
func (f *Frame) DerivedColumns() []string {
	out := make([]string, 0, len(f.derived))
	for name := range f.derived {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func isBaseColumn(name string) bool {
	switch name {
	case ColOpen, ColHigh, ColLow, ColClose:
		return true
	}
	return false
}
