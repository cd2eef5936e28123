// Package portfolio tracks owned positions and values them against the
// latest close prices flowing through the frame engine.
//
// It maintains a real-time view of all holdings, reports per-symbol
// profitability, and provides portfolio-level market value and unrealized
// P&L summaries.
package portfolio

import (
	"fmt"
	"sync"
	"time"

	"stockrobotv1/internal/model"
)

// Position represents a single holding.
type Position struct {
	Symbol        string    `json:"symbol"`
	Qty           int64     `json:"qty"` // positive = long, negative = short
	PurchasePrice float64   `json:"purchase_price"`
	PurchaseDate  time.Time `json:"purchase_date"`
	LastPrice     float64   `json:"last_price"` // latest close seen for the symbol
}

// MarketValue returns the position's value at the last seen price.
func (p *Position) MarketValue() float64 {
	return p.LastPrice * float64(p.Qty)
}

// UnrealizedPnL returns the unrealized P&L against the purchase price.
func (p *Position) UnrealizedPnL() float64 {
	return (p.LastPrice - p.PurchasePrice) * float64(p.Qty)
}

// Portfolio tracks all holdings, keyed by symbol.
type Portfolio struct {
	mu        sync.RWMutex
	positions map[string]*Position
}

// New creates a new empty Portfolio.
func New() *Portfolio {
	return &Portfolio{
		positions: make(map[string]*Position),
	}
}

// Add records a holding. Adding an existing symbol overwrites it.
func (pf *Portfolio) Add(pos Position) error {
	if pos.Symbol == "" {
		return fmt.Errorf("portfolio: position symbol is empty")
	}
	if pos.Qty == 0 {
		return fmt.Errorf("portfolio: position %s has zero quantity", pos.Symbol)
	}
	pf.mu.Lock()
	defer pf.mu.Unlock()
	p := pos
	if p.LastPrice == 0 {
		p.LastPrice = p.PurchasePrice
	}
	pf.positions[p.Symbol] = &p
	return nil
}

// AddMany records multiple holdings, stopping at the first invalid one.
func (pf *Portfolio) AddMany(positions []Position) error {
	for _, pos := range positions {
		if err := pf.Add(pos); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes the holding for symbol, reporting whether it existed.
func (pf *Portfolio) Remove(symbol string) bool {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	if _, ok := pf.positions[symbol]; !ok {
		return false
	}
	delete(pf.positions, symbol)
	return true
}

// Owns reports whether symbol is held.
func (pf *Portfolio) Owns(symbol string) bool {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	_, ok := pf.positions[symbol]
	return ok
}

// Get returns a copy of the holding for symbol, if held.
func (pf *Portfolio) Get(symbol string) (Position, bool) {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	p, ok := pf.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions returns a snapshot of all holdings.
func (pf *Portfolio) Positions() []Position {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	result := make([]Position, 0, len(pf.positions))
	for _, p := range pf.positions {
		result = append(result, *p)
	}
	return result
}

// UpdatePrice updates the last seen price for a held symbol from a bar.
// Bars for symbols not held are ignored.
func (pf *Portfolio) UpdatePrice(bar model.Bar) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	if pos, ok := pf.positions[bar.Symbol]; ok {
		pos.LastPrice = bar.Close
	}
}

// IsProfitable reports whether the holding for symbol is worth more than it
// cost at the given price. A short position profits when the price falls.
func (pf *Portfolio) IsProfitable(symbol string, price float64) (bool, error) {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	pos, ok := pf.positions[symbol]
	if !ok {
		return false, fmt.Errorf("portfolio: symbol %s is not held", symbol)
	}
	if pos.Qty < 0 {
		return price < pos.PurchasePrice, nil
	}
	return price > pos.PurchasePrice, nil
}

// TotalMarketValue returns the portfolio's value at last seen prices.
func (pf *Portfolio) TotalMarketValue() float64 {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	var total float64
	for _, p := range pf.positions {
		total += p.MarketValue()
	}
	return total
}

// TotalUnrealizedPnL returns the total unrealized P&L across all holdings.
func (pf *Portfolio) TotalUnrealizedPnL() float64 {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	var total float64
	for _, p := range pf.positions {
		total += p.UnrealizedPnL()
	}
	return total
}

// Summary is a portfolio-level valuation snapshot.
type Summary struct {
	Positions     int     `json:"positions"`
	MarketValue   float64 `json:"market_value"`
	CostBasis     float64 `json:"cost_basis"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// GetSummary returns the current valuation summary.
func (pf *Portfolio) GetSummary() Summary {
	pf.mu.RLock()
	defer pf.mu.RUnlock()

	s := Summary{Positions: len(pf.positions)}
	for _, p := range pf.positions {
		s.MarketValue += p.MarketValue()
		s.CostBasis += p.PurchasePrice * float64(p.Qty)
		s.UnrealizedPnL += p.UnrealizedPnL()
	}
	return s
}
