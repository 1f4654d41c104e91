package indicator

import (
	"math"

	"soltrend/internal/model"
)

// Row is one candle extended with the full indicator set.
type Row struct {
	model.Candle

	SMA20      float64 `json:"sma_20"`
	SMA50      float64 `json:"sma_50"`
	SMA200     float64 `json:"sma_200"`
	EMA20      float64 `json:"ema_20"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	RSI        float64 `json:"rsi"`
	ROC        float64 `json:"roc"`
	CCI        float64 `json:"cci"`
	UO         float64 `json:"uo"`
	StochK     float64 `json:"stoch_k"`
	StochD     float64 `json:"stoch_d"`
	WilliamsR  float64 `json:"williams_r"`
	PlusDI     float64 `json:"+DI"`
	MinusDI    float64 `json:"-DI"`
	ADX        float64 `json:"adx"`
	OBV        float64 `json:"obv"`
	CMF        float64 `json:"cmf"`
	AD         float64 `json:"ad"`
}

// columns maps column names to row accessors, in display order.
var columns = []struct {
	name string
	get  func(*Row) float64
}{
	{"open", func(r *Row) float64 { return r.Open }},
	{"high", func(r *Row) float64 { return r.High }},
	{"low", func(r *Row) float64 { return r.Low }},
	{"close", func(r *Row) float64 { return r.Close }},
	{"volume", func(r *Row) float64 { return r.Volume }},
	{"sma_20", func(r *Row) float64 { return r.SMA20 }},
	{"sma_50", func(r *Row) float64 { return r.SMA50 }},
	{"sma_200", func(r *Row) float64 { return r.SMA200 }},
	{"ema_20", func(r *Row) float64 { return r.EMA20 }},
	{"macd", func(r *Row) float64 { return r.MACD }},
	{"macd_signal", func(r *Row) float64 { return r.MACDSignal }},
	{"rsi", func(r *Row) float64 { return r.RSI }},
	{"roc", func(r *Row) float64 { return r.ROC }},
	{"cci", func(r *Row) float64 { return r.CCI }},
	{"uo", func(r *Row) float64 { return r.UO }},
	{"stoch_k", func(r *Row) float64 { return r.StochK }},
	{"stoch_d", func(r *Row) float64 { return r.StochD }},
	{"williams_r", func(r *Row) float64 { return r.WilliamsR }},
	{"+DI", func(r *Row) float64 { return r.PlusDI }},
	{"-DI", func(r *Row) float64 { return r.MinusDI }},
	{"adx", func(r *Row) float64 { return r.ADX }},
	{"obv", func(r *Row) float64 { return r.OBV }},
	{"cmf", func(r *Row) float64 { return r.CMF }},
	{"ad", func(r *Row) float64 { return r.AD }},
}

// ColumnNames returns every column name a Frame exposes, in display order.
func ColumnNames() []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	return names
}

// Frame is the read-only output of Compute.
type Frame struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Rows     []Row  `json:"rows"`
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// Latest returns the last row, or nil for an empty frame.
func (f *Frame) Latest() *Row {
	if f.Len() == 0 {
		return nil
	}
	return &f.Rows[len(f.Rows)-1]
}

// Previous returns the row before the latest, or nil when there is none.
func (f *Frame) Previous() *Row {
	if f.Len() < 2 {
		return nil
	}
	return &f.Rows[len(f.Rows)-2]
}

// Column returns the named column across all rows.
func (f *Frame) Column(name string) ([]float64, bool) {
	for _, c := range columns {
		if c.name != name {
			continue
		}
		out := make([]float64, f.Len())
		for i := range out {
			out[i] = c.get(&f.Rows[i])
		}
		return out, true
	}
	return nil, false
}

// Tail returns a frame holding at most the last n rows. The rows are shared.
func (f *Frame) Tail(n int) *Frame {
	if n < 0 || n >= f.Len() {
		return f
	}
	return &Frame{Symbol: f.Symbol, Interval: f.Interval, Rows: f.Rows[len(f.Rows)-n:]}
}

// defined reports whether every column of r is finite.
func (r *Row) defined() bool {
	for _, c := range columns {
		v := c.get(r)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
