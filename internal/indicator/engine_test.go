package indicator

import (
	"errors"
	"math"
	"strings"
	"testing"

	"stockrobotv1/internal/frame"
	"stockrobotv1/internal/model"
)

func TestRegistry_FirstInsertionOrderPreserved(t *testing.T) {
	r := NewRegistry()
	r.Register(Record{Name: "rsi", Kind: KindRSI, Params: Params{Period: 14}})
	r.Register(Record{Name: "sma", Kind: KindSMA, Params: Params{Period: 20}})
	// Re-registering rsi with new arguments must keep its original slot.
	r.Register(Record{Name: "rsi", Kind: KindRSI, Params: Params{Period: 7}})

	recs := r.Records()
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Name != "rsi" || recs[1].Name != "sma" {
		t.Errorf("order changed on overwrite: got [%s, %s]", recs[0].Name, recs[1].Name)
	}
	if recs[0].Params.Period != 7 {
		t.Errorf("overwrite should replace arguments: got period %d", recs[0].Params.Period)
	}
}

func TestRegistry_RecordsIsACopy(t *testing.T) {
	r := NewRegistry()
	r.Register(Record{Name: "sma", Kind: KindSMA, Params: Params{Period: 5}})
	recs := r.Records()
	r.Register(Record{Name: "sma", Kind: KindSMA, Params: Params{Period: 9}})
	if recs[0].Params.Period != 5 {
		t.Error("snapshot of records should not observe later mutations")
	}
}

func TestEngine_MethodsRegister(t *testing.T) {
	e := newEngine(10, 11, 12, 13, 14)
	if err := e.SMA(3); err != nil {
		t.Fatal(err)
	}
	if err := e.EMA(5, 0); err != nil {
		t.Fatal(err)
	}
	if err := e.RSI(3, ""); err != nil {
		t.Fatal(err)
	}

	recs := e.Registry().Records()
	if len(recs) != 3 {
		t.Fatalf("expected 3 registered indicators, got %d", len(recs))
	}
	wantOrder := []string{ColSMA, ColEMA, ColRSI}
	for i, rec := range recs {
		if rec.Name != wantOrder[i] {
			t.Errorf("position %d: got %s, want %s", i, rec.Name, wantOrder[i])
		}
	}
	// Empty RSI method is normalized before it reaches the registry.
	if rsi, _ := e.Registry().Get(ColRSI); rsi.Params.Method != MethodWilders {
		t.Errorf("rsi method should default to %q, got %q", MethodWilders, rsi.Params.Method)
	}
}

func TestRefresh_ReplayMatchesDirectCompute(t *testing.T) {
	closes := []float64{100, 102, 101, 104, 103, 106, 105, 108, 110, 109}
	head, tail := closes[:6], closes[6:]

	// Engine A: register over the head, append the tail, then Refresh.
	ea := NewEngine(frame.New(seriesBars("AAA", head...)))
	if err := ea.SMA(3); err != nil {
		t.Fatal(err)
	}
	if err := ea.EMA(5, 0); err != nil {
		t.Fatal(err)
	}
	if err := ea.RSI(3, MethodWilders); err != nil {
		t.Fatal(err)
	}

	tailBars := make([]model.Bar, len(tail))
	for i, c := range tail {
		b := seriesBars("AAA", closes...)[len(head)+i]
		b.Close = c
		tailBars[i] = b
	}
	ea.Frame().AppendRows(tailBars)
	if err := ea.Refresh(); err != nil {
		t.Fatal(err)
	}

	// Engine B: compute directly over the complete series.
	eb := NewEngine(frame.New(seriesBars("AAA", closes...)))
	if err := eb.SMA(3); err != nil {
		t.Fatal(err)
	}
	if err := eb.EMA(5, 0); err != nil {
		t.Fatal(err)
	}
	if err := eb.RSI(3, MethodWilders); err != nil {
		t.Fatal(err)
	}

	for _, col := range []string{ColChangeInPrice, ColSMA, ColEMA, ColRSI} {
		a := ea.Frame().Column("AAA", col)
		b := eb.Frame().Column("AAA", col)
		if len(a) != len(b) {
			t.Fatalf("%s: lengths differ %d vs %d", col, len(a), len(b))
		}
		for i := range a {
			if math.IsNaN(a[i]) && math.IsNaN(b[i]) {
				continue
			}
			if math.Abs(a[i]-b[i]) > 1e-9 {
				t.Errorf("%s position %d: replay %.9f, direct %.9f", col, i, a[i], b[i])
			}
		}
	}
}

func TestRefresh_DoesNotReRegister(t *testing.T) {
	e := newEngine(10, 11, 12, 13)
	if err := e.SMA(2); err != nil {
		t.Fatal(err)
	}
	if err := e.RSI(2, MethodWilders); err != nil {
		t.Fatal(err)
	}
	before := e.Registry().Len()
	for i := 0; i < 3; i++ {
		if err := e.Refresh(); err != nil {
			t.Fatal(err)
		}
	}
	if e.Registry().Len() != before {
		t.Errorf("refresh grew the registry: %d -> %d", before, e.Registry().Len())
	}
}

func TestRefresh_FailFast(t *testing.T) {
	e := newEngine(10, 11, 12, 13)
	if err := e.SMA(2); err != nil {
		t.Fatal(err)
	}
	if err := e.EMA(3, 0); err != nil {
		t.Fatal(err)
	}
	// Corrupt the sma record so its replay fails; ema must not run.
	e.registry.records[ColSMA] = Record{Name: ColSMA, Kind: KindSMA, Params: Params{Period: -1}}
	e.Frame().DropColumns(ColSMA, ColEMA)

	err := e.Refresh()
	if err == nil {
		t.Fatal("expected refresh to fail")
	}
	if !strings.Contains(err.Error(), "refresh sma") {
		t.Errorf("error should name the failed indicator: %v", err)
	}
	if e.Frame().HasColumn(ColEMA) {
		t.Error("indicators after the failure must not run")
	}
}

func TestRefresh_CorruptedRecordSurfacesInvalidParameter(t *testing.T) {
	e := newEngine(10, 11, 12)
	if err := e.SMA(2); err != nil {
		t.Fatal(err)
	}
	e.registry.records[ColSMA] = Record{Name: ColSMA, Kind: Kind("bogus")}
	if err := e.Refresh(); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for unknown kind, got %v", err)
	}
}

func TestInvoke_DispatchesThroughPublicPath(t *testing.T) {
	e := newEngine(10, 11, 9, 9, 12)
	if err := e.Invoke(Record{Name: ColSMA, Kind: KindSMA, Params: Params{Period: 2}}); err != nil {
		t.Fatal(err)
	}
	got := e.Frame().Column("AAA", ColSMA)
	assertColumn(t, "invoke sma(2)", got, []float64{nan, 10.5, 10, 9, 10.5}, 0.0001)
	if e.Registry().Len() != 1 {
		t.Error("Invoke should register like the direct method")
	}

	if err := e.Invoke(Record{Kind: Kind("vwap")}); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("unknown kind: expected ErrInvalidParameter, got %v", err)
	}
}

func TestRefresh_AppendThenRefreshDefinesNewRows(t *testing.T) {
	e := newEngine(10, 11, 9)
	if err := e.RSI(2, MethodWilders); err != nil {
		t.Fatal(err)
	}

	all := seriesBars("AAA", 10, 11, 9, 9, 12)
	e.Frame().AppendRows(all[3:])

	// Before refresh the appended rows have no derived values.
	col := e.Frame().Column("AAA", ColRSI)
	if frame.Defined(col[3]) || frame.Defined(col[4]) {
		t.Fatal("appended rows should be undefined before refresh")
	}

	if err := e.Refresh(); err != nil {
		t.Fatal(err)
	}
	col = e.Frame().Column("AAA", ColRSI)
	if !frame.Defined(col[3]) || !frame.Defined(col[4]) {
		t.Error("appended rows should be defined after refresh")
	}
	// change_in_price must be fresh on the appended rows too.
	chg := e.Frame().Column("AAA", ColChangeInPrice)
	assertClose(t, "change[4] after append", chg[4], 3, 0.0001)
}
