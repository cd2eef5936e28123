package portfolio

import (
	"math"
	"testing"
	"time"

	"stockrobotv1/internal/model"
)

var purchased = time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

func long(symbol string, qty int64, price float64) Position {
	return Position{Symbol: symbol, Qty: qty, PurchasePrice: price, PurchaseDate: purchased}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAddRemoveOwns(t *testing.T) {
	pf := New()
	if pf.Owns("AAA") {
		t.Error("empty portfolio should own nothing")
	}
	if err := pf.Add(long("AAA", 10, 150)); err != nil {
		t.Fatal(err)
	}
	if !pf.Owns("AAA") {
		t.Error("AAA should be held after Add")
	}
	if !pf.Remove("AAA") {
		t.Error("Remove should report the holding existed")
	}
	if pf.Remove("AAA") {
		t.Error("second Remove should report missing")
	}
	if pf.Owns("AAA") {
		t.Error("AAA should be gone after Remove")
	}
}

func TestAdd_Validation(t *testing.T) {
	pf := New()
	if err := pf.Add(Position{Qty: 10, PurchasePrice: 5}); err == nil {
		t.Error("empty symbol should be rejected")
	}
	if err := pf.Add(long("AAA", 0, 5)); err == nil {
		t.Error("zero quantity should be rejected")
	}
	if len(pf.Positions()) != 0 {
		t.Error("rejected positions must not be stored")
	}
}

func TestAdd_OverwritesExisting(t *testing.T) {
	pf := New()
	if err := pf.Add(long("AAA", 10, 150)); err != nil {
		t.Fatal(err)
	}
	if err := pf.Add(long("AAA", 20, 140)); err != nil {
		t.Fatal(err)
	}
	pos, ok := pf.Get("AAA")
	if !ok {
		t.Fatal("AAA should be held")
	}
	if pos.Qty != 20 || !approx(pos.PurchasePrice, 140) {
		t.Errorf("overwrite lost: %+v", pos)
	}
	if len(pf.Positions()) != 1 {
		t.Error("overwrite should not duplicate the holding")
	}
}

func TestAddMany_StopsAtInvalid(t *testing.T) {
	pf := New()
	err := pf.AddMany([]Position{
		long("AAA", 10, 150),
		{Symbol: "", Qty: 5, PurchasePrice: 10},
		long("CCC", 3, 40),
	})
	if err == nil {
		t.Fatal("expected error for invalid position")
	}
	if !pf.Owns("AAA") {
		t.Error("positions before the invalid one should be kept")
	}
	if pf.Owns("CCC") {
		t.Error("positions after the invalid one should not be added")
	}
}

func TestUpdatePrice_OnlyHeldSymbols(t *testing.T) {
	pf := New()
	if err := pf.Add(long("AAA", 10, 150)); err != nil {
		t.Fatal(err)
	}
	pf.UpdatePrice(model.Bar{Symbol: "AAA", Close: 160})
	pf.UpdatePrice(model.Bar{Symbol: "ZZZ", Close: 999})

	pos, _ := pf.Get("AAA")
	if !approx(pos.LastPrice, 160) {
		t.Errorf("last price: got %.2f, want 160", pos.LastPrice)
	}
	if pf.Owns("ZZZ") {
		t.Error("price update must not create holdings")
	}
}

func TestIsProfitable(t *testing.T) {
	pf := New()
	if err := pf.Add(long("AAA", 10, 150)); err != nil {
		t.Fatal(err)
	}
	if err := pf.Add(Position{Symbol: "SSS", Qty: -5, PurchasePrice: 80, PurchaseDate: purchased}); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		symbol string
		price  float64
		want   bool
	}{
		{"AAA", 160, true},
		{"AAA", 150, false}, // flat is not profit
		{"AAA", 140, false},
		{"SSS", 70, true}, // short profits on the way down
		{"SSS", 90, false},
	}
	for _, c := range cases {
		got, err := pf.IsProfitable(c.symbol, c.price)
		if err != nil {
			t.Fatalf("%s@%.0f: %v", c.symbol, c.price, err)
		}
		if got != c.want {
			t.Errorf("%s@%.0f: got %v, want %v", c.symbol, c.price, got, c.want)
		}
	}

	if _, err := pf.IsProfitable("ZZZ", 100); err == nil {
		t.Error("unheld symbol should error, not report false silently")
	}
}

func TestValuation(t *testing.T) {
	pf := New()
	if err := pf.Add(long("AAA", 10, 150)); err != nil { // cost 1500
		t.Fatal(err)
	}
	if err := pf.Add(long("BBB", 4, 50)); err != nil { // cost 200
		t.Fatal(err)
	}
	pf.UpdatePrice(model.Bar{Symbol: "AAA", Close: 160}) // value 1600
	pf.UpdatePrice(model.Bar{Symbol: "BBB", Close: 45})  // value 180

	if v := pf.TotalMarketValue(); !approx(v, 1780) {
		t.Errorf("market value: got %.2f, want 1780", v)
	}
	if v := pf.TotalUnrealizedPnL(); !approx(v, 80) { // +100 - 20
		t.Errorf("unrealized pnl: got %.2f, want 80", v)
	}

	s := pf.GetSummary()
	if s.Positions != 2 || !approx(s.MarketValue, 1780) || !approx(s.CostBasis, 1700) || !approx(s.UnrealizedPnL, 80) {
		t.Errorf("summary: %+v", s)
	}
}

func TestLastPriceDefaultsToPurchasePrice(t *testing.T) {
	pf := New()
	if err := pf.Add(long("AAA", 10, 150)); err != nil {
		t.Fatal(err)
	}
	// No bar seen yet: valued at cost, zero unrealized P&L.
	if v := pf.TotalUnrealizedPnL(); !approx(v, 0) {
		t.Errorf("unrealized pnl before any price: got %.2f, want 0", v)
	}
	if v := pf.TotalMarketValue(); !approx(v, 1500) {
		t.Errorf("market value before any price: got %.2f, want 1500", v)
	}
}
