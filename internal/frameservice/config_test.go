package frameservice

import (
	"testing"

	"stockrobotv1/internal/indicator"
)

func TestParseIndicatorSpecs(t *testing.T) {
	specs := ParseIndicatorSpecs("sma:20,ema:9,rsi:14,change")
	if len(specs) != 4 {
		t.Fatalf("expected 4 specs, got %d", len(specs))
	}

	if specs[0].Kind != indicator.KindSMA || specs[0].Params.Period != 20 {
		t.Errorf("spec 0: %+v", specs[0])
	}
	if specs[1].Kind != indicator.KindEMA || specs[1].Params.Period != 9 {
		t.Errorf("spec 1: %+v", specs[1])
	}
	if specs[2].Kind != indicator.KindRSI || specs[2].Params.Period != 14 {
		t.Errorf("spec 2: %+v", specs[2])
	}
	if specs[2].Params.Method != indicator.MethodWilders {
		t.Errorf("rsi spec should default to wilders: %+v", specs[2])
	}
	if specs[3].Kind != indicator.KindChangeInPrice {
		t.Errorf("spec 3: %+v", specs[3])
	}
}

func TestParseIndicatorSpecs_SkipsInvalid(t *testing.T) {
	specs := ParseIndicatorSpecs("sma:20,bogus:5,ema:abc,rsi:-3,macd:12")
	if len(specs) != 1 {
		t.Fatalf("expected 1 valid spec, got %d: %+v", len(specs), specs)
	}
	if specs[0].Kind != indicator.KindSMA {
		t.Errorf("surviving spec: %+v", specs[0])
	}
}

func TestParseIndicatorSpecs_EmptyUsesDefaults(t *testing.T) {
	specs := ParseIndicatorSpecs("")
	if len(specs) == 0 {
		t.Fatal("defaults should not be empty")
	}
	kinds := map[indicator.Kind]bool{}
	for _, s := range specs {
		kinds[s.Kind] = true
	}
	for _, k := range []indicator.Kind{indicator.KindChangeInPrice, indicator.KindSMA, indicator.KindEMA, indicator.KindRSI} {
		if !kinds[k] {
			t.Errorf("defaults missing kind %s", k)
		}
	}
}

func TestParseIndicatorSpecs_AllInvalidFallsBack(t *testing.T) {
	specs := ParseIndicatorSpecs("bogus:1,nope")
	if len(specs) == 0 {
		t.Fatal("all-invalid input should fall back to defaults")
	}
}

func TestParseSymbols(t *testing.T) {
	got := parseSymbols(" aapl, MSFT ,,sq ")
	want := []string{"AAPL", "MSFT", "SQ"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("symbol %d: got %q, want %q", i, got[i], want[i])
		}
	}
	if parseSymbols("") != nil {
		t.Error("empty input should yield nil")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	// No env set in tests: everything should come back as defaults.
	cfg := LoadConfig()
	if cfg.RedisAddr == "" || cfg.SQLitePath == "" {
		t.Errorf("defaults missing: %+v", cfg)
	}
	if cfg.SnapshotIntervalS <= 0 {
		t.Errorf("snapshot interval must be positive: %d", cfg.SnapshotIntervalS)
	}
	if len(cfg.IndicatorSpecs) == 0 {
		t.Error("default indicator specs should not be empty")
	}
}
