package trend

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"soltrend/internal/indicator"
)

func TestText_Format(t *testing.T) {
	s, err := Classify(&indicator.Frame{Rows: tieRows()})
	if err != nil {
		t.Fatal(err)
	}
	text := s.Text()

	wantPrefix := "Overall Trend: BEARISH\nBullish Signals: 10\nBearish Signals: 10\n\n[Momentum] 7/7\n  MACD > Signal: PASS\n"
	if !strings.HasPrefix(text, wantPrefix) {
		t.Errorf("text starts with:\n%s\nwant:\n%s", text[:len(wantPrefix)], wantPrefix)
	}
	for _, line := range []string{"[Trend] 3/7", "[Volatility] 0/3", "[Volume] 0/3", "  ADX > 20 with +DI lead: FAIL", "  OBV Rising: FAIL"} {
		if !strings.Contains(text, line+"\n") {
			t.Errorf("missing line %q in:\n%s", line, text)
		}
	}
	if s.Text() != text {
		t.Error("Text is not deterministic")
	}
}

func TestParseText_RoundTrip(t *testing.T) {
	frames := map[string]*indicator.Frame{"tie": {Rows: tieRows()}}
	for _, rising := range []bool{true, false} {
		f, err := indicator.Compute(linearSeries(300, rising))
		if err != nil {
			t.Fatal(err)
		}
		if rising {
			frames["rising"] = f
		} else {
			frames["falling"] = f
		}
	}

	for name, f := range frames {
		t.Run(name, func(t *testing.T) {
			want, err := Classify(f)
			if err != nil {
				t.Fatal(err)
			}
			got, err := ParseText(want.Text())
			if err != nil {
				t.Fatalf("ParseText: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("round trip mismatch\ngot:  %+v\nwant: %+v", got, want)
			}
		})
	}
}

func TestParseText_Malformed(t *testing.T) {
	s, err := Classify(&indicator.Frame{Rows: tieRows()})
	if err != nil {
		t.Fatal(err)
	}
	good := s.Text()

	tests := []struct {
		name string
		text string
	}{
		{"bad mark", strings.Replace(good, ": PASS", ": MAYBE", 1)},
		{"wrong header score", strings.Replace(good, "[Momentum] 7/7", "[Momentum] 6/7", 1)},
		{"wrong totals", strings.Replace(good, "Bullish Signals: 10", "Bullish Signals: 11", 1)},
		{"wrong trend", strings.Replace(good, "Overall Trend: BEARISH", "Overall Trend: BULLISH", 1)},
		{"unknown category", strings.Replace(good, "[Volume]", "[Sentiment]", 1)},
		{"rule before header", "  RSI > 50: PASS\n"},
		{"garbage", "hello\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseText(tt.text); !errors.Is(err, ErrMalformedText) {
				t.Errorf("err = %v, want ErrMalformedText", err)
			}
		})
	}
}
