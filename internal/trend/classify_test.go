package trend

import (
	"errors"
	"reflect"
	"testing"

	"soltrend/internal/indicator"
	"soltrend/internal/model"
)

// linearSeries builds n hourly candles moving by one unit per bar. The wick
// on the side opposite the move widens slowly so stochastics keep moving.
func linearSeries(n int, rising bool) model.Series {
	s := model.Series{Symbol: "SOLUSDT", Interval: "1h", Candles: make([]model.Candle, n)}
	for i := range s.Candles {
		wick := 1.0 + 0.001*float64(i)
		c := model.Candle{TS: int64(i) * 3_600_000, Volume: 1000}
		if rising {
			c.Close = 1000 + float64(i)
			c.Open, c.High, c.Low = c.Close-1, c.Close+0.5, c.Close-wick
		} else {
			c.Close = 1000 - float64(i)
			c.Open, c.High, c.Low = c.Close+1, c.Close+wick, c.Close-0.5
		}
		s.Candles[i] = c
	}
	return s
}

func mustClassify(t *testing.T, s model.Series) *Summary {
	t.Helper()
	f, err := indicator.Compute(s)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	sum, err := Classify(f)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	return sum
}

// tieRows returns two identical rows scoring 10 bullish and 10 bearish.
func tieRows() []indicator.Row {
	r := indicator.Row{
		Candle:     model.Candle{Close: 100},
		EMA20:      99,
		SMA20:      102,
		SMA50:      101,
		SMA200:     90,
		PlusDI:     10,
		MinusDI:    20,
		ADX:        15,
		MACD:       1,
		MACDSignal: 0.5,
		RSI:        60,
		CCI:        50,
		ROC:        2,
		UO:         55,
		StochK:     80,
		StochD:     70,
		WilliamsR:  -20,
		OBV:        100,
		CMF:        -0.1,
		AD:         50,
	}
	return []indicator.Row{r, r}
}

func TestClassify_RisingSeries(t *testing.T) {
	s := mustClassify(t, linearSeries(300, true))

	if s.Overall.Trend != Bullish {
		t.Errorf("trend = %s, want BULLISH", s.Overall.Trend)
	}
	if s.Momentum.Score != "7/7" {
		t.Errorf("momentum = %s, want 7/7 (%v)", s.Momentum.Score, s.Momentum.Details)
	}
	if s.Trend.Score != "7/7" {
		t.Errorf("trend = %s, want 7/7 (%v)", s.Trend.Score, s.Trend.Details)
	}
	if s.Volume.Score != "3/3" {
		t.Errorf("volume = %s, want 3/3 (%v)", s.Volume.Score, s.Volume.Details)
	}
}

func TestClassify_FallingSeries(t *testing.T) {
	s := mustClassify(t, linearSeries(300, false))

	if s.Overall.Trend != Bearish {
		t.Errorf("trend = %s, want BEARISH", s.Overall.Trend)
	}
	if s.Momentum.Bullish != 0 {
		t.Errorf("momentum bullish = %d, want 0 (%v)", s.Momentum.Bullish, s.Momentum.Details)
	}
	if s.Trend.Bullish != 0 {
		t.Errorf("trend bullish = %d, want 0 (%v)", s.Trend.Bullish, s.Trend.Details)
	}
	if s.Volume.Bullish != 0 {
		t.Errorf("volume bullish = %d, want 0 (%v)", s.Volume.Bullish, s.Volume.Details)
	}
}

func TestClassify_CountsSum(t *testing.T) {
	want := map[Category]int{Momentum: 7, Trend: 7, Volatility: 3, Volume: 3}
	for _, rising := range []bool{true, false} {
		s := mustClassify(t, linearSeries(260, rising))
		total := 0
		for c, n := range want {
			cs := s.Category(c)
			if cs.Total() != n || len(cs.Details) != n {
				t.Errorf("%s: %d+%d (%d details), want %d", c, cs.Bullish, cs.Bearish, len(cs.Details), n)
			}
			if RuleCount(c) != n {
				t.Errorf("RuleCount(%s) = %d, want %d", c, RuleCount(c), n)
			}
			total += n
		}
		if got := s.Overall.BullishScore + s.Overall.BearishScore; got != total {
			t.Errorf("overall = %d, want %d", got, total)
		}
	}
}

func TestClassify_TieIsBearish(t *testing.T) {
	s, err := Classify(&indicator.Frame{Symbol: "TIE", Rows: tieRows()})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if s.Overall.BullishScore != 10 || s.Overall.BearishScore != 10 {
		t.Fatalf("scores = %d/%d, want 10/10\n%s", s.Overall.BullishScore, s.Overall.BearishScore, s.Text())
	}
	if s.Overall.Trend != Bearish {
		t.Errorf("tie resolved to %s, want BEARISH", s.Overall.Trend)
	}
}

func TestClassify_Pure(t *testing.T) {
	f, err := indicator.Compute(linearSeries(280, true))
	if err != nil {
		t.Fatal(err)
	}
	a, err := Classify(f)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Classify(f)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("two calls on the same frame differ")
	}
}

func TestClassify_Errors(t *testing.T) {
	one := tieRows()[:1]
	tests := []struct {
		name  string
		frame *indicator.Frame
		want  error
	}{
		{"nil frame", nil, ErrEmptyFrame},
		{"no rows", &indicator.Frame{}, ErrEmptyFrame},
		{"one row", &indicator.Frame{Rows: one}, ErrInsufficientHistory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Classify(tt.frame)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClassify_MinimumSeriesNeedsTwoRows(t *testing.T) {
	f, err := indicator.Compute(linearSeries(indicator.MinCandles, true))
	if err != nil {
		t.Fatalf("Compute at boundary: %v", err)
	}
	if _, err := Classify(f); !errors.Is(err, ErrInsufficientHistory) {
		t.Errorf("err = %v, want ErrInsufficientHistory", err)
	}
	if _, err := indicator.Compute(linearSeries(indicator.MinCandles-1, true)); !errors.Is(err, ErrInsufficientHistory) {
		t.Errorf("199 candles: err = %v, want ErrInsufficientHistory", err)
	}
}

func TestSummary_Signals(t *testing.T) {
	s, err := Classify(&indicator.Frame{Rows: tieRows()})
	if err != nil {
		t.Fatal(err)
	}
	bull, bear := s.Signals(3)
	wantBull := []string{"MACD > Signal", "RSI > 50", "CCI > 0"}
	wantBear := []string{"EMA20 > SMA50", "Close > SMA20", "+DI > -DI"}
	if !reflect.DeepEqual(bull, wantBull) {
		t.Errorf("bullish = %v, want %v", bull, wantBull)
	}
	if !reflect.DeepEqual(bear, wantBear) {
		t.Errorf("bearish = %v, want %v", bear, wantBear)
	}

	all, _ := s.Signals(100)
	seen := map[string]bool{}
	for _, l := range all {
		if seen[l] {
			t.Errorf("label %q repeated", l)
		}
		seen[l] = true
	}
}

func TestCategory_String(t *testing.T) {
	if Trend.String() != "Trend" || Category(42).String() != "Unknown" {
		t.Errorf("unexpected names %q %q", Trend, Category(42))
	}
}
