package frame

import (
	"math"
	"testing"
	"time"

	"stockrobotv1/internal/model"
)

var t0 = time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC)

func bar(symbol string, minute int, close float64) model.Bar {
	return model.Bar{
		Symbol: symbol,
		TS:     t0.Add(time.Duration(minute) * time.Minute),
		Open:   close,
		High:   close + 0.5,
		Low:    close - 0.5,
		Close:  close,
		Volume: 100,
	}
}

func bars(symbol string, closes ...float64) []model.Bar {
	out := make([]model.Bar, len(closes))
	for i, c := range closes {
		out[i] = bar(symbol, i, c)
	}
	return out
}

func TestAppendRows_ChronologicalOrder(t *testing.T) {
	f := New(nil)
	// Append out of order
	f.AppendRows([]model.Bar{bar("AAA", 2, 12), bar("AAA", 0, 10), bar("AAA", 1, 11)})

	got := f.Column("AAA", ColClose)
	want := []float64{10, 11, 12}
	if len(got) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d: close=%.2f, want %.2f", i, got[i], want[i])
		}
	}
}

func TestAppendRows_DuplicateKeyReplaces(t *testing.T) {
	f := New(bars("AAA", 10, 11, 12))
	f.AppendRows([]model.Bar{bar("AAA", 1, 99)})

	if f.GroupLen("AAA") != 3 {
		t.Fatalf("expected 3 rows after replace, got %d", f.GroupLen("AAA"))
	}
	if got := f.Column("AAA", ColClose)[1]; got != 99 {
		t.Errorf("expected replaced close=99, got %.2f", got)
	}
}

func TestApplyPerSymbol_RowIdentityUnchanged(t *testing.T) {
	f := New(bars("AAA", 10, 11, 12))
	before := f.Timestamps("AAA")

	err := f.ApplyPerSymbol(ColClose, "doubled", func(in []float64) []float64 {
		out := make([]float64, len(in))
		for i, v := range in {
			out[i] = v * 2
		}
		return out
	})
	if err != nil {
		t.Fatal(err)
	}

	after := f.Timestamps("AAA")
	if len(before) != len(after) {
		t.Fatalf("row count changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if !before[i].Equal(after[i]) {
			t.Errorf("row %d timestamp changed", i)
		}
	}
	if got := f.Column("AAA", "doubled"); got[2] != 24 {
		t.Errorf("doubled[2]=%.2f, want 24", got[2])
	}
}

func TestApplyPerSymbol_SymbolIsolation(t *testing.T) {
	f := New(append(bars("AAA", 10, 11, 12), bars("BBB", 50, 51, 52)...))

	// A transform that depends on the whole sequence
	cumsum := func(in []float64) []float64 {
		out := make([]float64, len(in))
		sum := 0.0
		for i, v := range in {
			sum += v
			out[i] = sum
		}
		return out
	}
	if err := f.ApplyPerSymbol(ColClose, "cum", cumsum); err != nil {
		t.Fatal(err)
	}
	bbbBefore := f.Column("BBB", "cum")

	// Mutate AAA's rows and recompute — BBB's values must not move.
	f.AppendRows([]model.Bar{bar("AAA", 0, 1000)})
	if err := f.ApplyPerSymbol(ColClose, "cum", cumsum); err != nil {
		t.Fatal(err)
	}
	bbbAfter := f.Column("BBB", "cum")

	for i := range bbbBefore {
		if bbbBefore[i] != bbbAfter[i] {
			t.Errorf("BBB row %d changed after AAA mutation: %.2f -> %.2f", i, bbbBefore[i], bbbAfter[i])
		}
	}
}

func TestApplyPerSymbol_LengthMismatchRejected(t *testing.T) {
	f := New(bars("AAA", 10, 11, 12))
	err := f.ApplyPerSymbol(ColClose, "bad", func(in []float64) []float64 {
		return in[:1]
	})
	if err == nil {
		t.Fatal("expected error for short window output")
	}
}

func TestApplyPerSymbol_BaseColumnWriteRejected(t *testing.T) {
	f := New(bars("AAA", 10, 11, 12))
	err := f.ApplyPerSymbol(ColClose, ColClose, func(in []float64) []float64 { return in })
	if err == nil {
		t.Fatal("expected error writing to base column")
	}
}

func TestColumn_UndefinedIsNaN(t *testing.T) {
	f := New(bars("AAA", 10, 11))
	got := f.Column("AAA", "nonexistent")
	for i, v := range got {
		if !math.IsNaN(v) {
			t.Errorf("row %d: expected NaN for missing column, got %.2f", i, v)
		}
	}
	if Defined(got[0]) {
		t.Error("Defined() should be false for NaN")
	}
}

func TestApplyPerSymbol_NaNInputDoesNotPanic(t *testing.T) {
	f := New(bars("AAA", 10, 11, 12))
	// "gaps" has NaN everywhere since it was never written
	err := f.ApplyPerSymbol("gaps", "out", func(in []float64) []float64 {
		out := make([]float64, len(in))
		for i, v := range in {
			if math.IsNaN(v) {
				out[i] = math.NaN()
				continue
			}
			out[i] = v + 1
		}
		return out
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range f.Column("AAA", "out") {
		if !math.IsNaN(v) {
			t.Errorf("expected NaN output, got %.2f", v)
		}
	}
}

func TestDropColumns(t *testing.T) {
	f := New(bars("AAA", 10, 11))
	if err := f.ApplyPerSymbol(ColClose, "tmp", func(in []float64) []float64 { return in }); err != nil {
		t.Fatal(err)
	}
	if !f.HasColumn("tmp") {
		t.Fatal("expected tmp column to exist")
	}

	f.DropColumns("tmp", ColClose) // base column drop is a no-op
	if f.HasColumn("tmp") {
		t.Error("tmp column should be gone")
	}
	if !f.HasColumn(ColClose) {
		t.Error("close column must survive DropColumns")
	}
	for _, v := range f.Column("AAA", "tmp") {
		if !math.IsNaN(v) {
			t.Errorf("dropped column should read NaN, got %.2f", v)
		}
	}
}

func TestCombineColumns(t *testing.T) {
	f := New(bars("AAA", 10, 20))
	if err := f.CombineColumns(ColClose, ColOpen, "spread", func(a, b float64) float64 {
		return a - b
	}); err != nil {
		t.Fatal(err)
	}
	for i, v := range f.Column("AAA", "spread") {
		if v != 0 {
			t.Errorf("row %d: spread=%.2f, want 0", i, v)
		}
	}
}

func TestSymbols_Sorted(t *testing.T) {
	f := New(append(bars("ZZZ", 1), append(bars("AAA", 2), bars("MMM", 3)...)...))
	got := f.Symbols()
	want := []string{"AAA", "MMM", "ZZZ"}
	if len(got) != len(want) {
		t.Fatalf("expected %d symbols, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("symbol %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestLast(t *testing.T) {
	f := New(bars("AAA", 10, 11, 12))
	row, ok := f.Last("AAA")
	if !ok || row.Close != 12 {
		t.Fatalf("Last: got (%.2f,%v), want (12,true)", row.Close, ok)
	}
	if _, ok := f.Last("NOPE"); ok {
		t.Error("Last on unknown symbol should report !ok")
	}
}
