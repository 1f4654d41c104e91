package trend

import "soltrend/internal/indicator"

// Category groups trend rules for scoring.
type Category int

const (
	Momentum Category = iota
	Trend
	Volatility
	Volume
	numCategories
)

var categoryNames = [numCategories]string{"Momentum", "Trend", "Volatility", "Volume"}

func (c Category) String() string {
	if c < 0 || c >= numCategories {
		return "Unknown"
	}
	return categoryNames[c]
}

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{Momentum, Trend, Volatility, Volume}
}

// frameView is what a rule sees: the latest row, the one before it, and
// frame-wide aggregates.
type frameView struct {
	latest  *indicator.Row
	prev    *indicator.Row
	meanADX float64
}

// Rule is one bullish predicate. A rule that does not hold counts as bearish.
type Rule struct {
	Label    string
	Category Category
	check    func(v *frameView) bool
}

// adxTrendLevel is the ADX reading above which a directional trend is
// considered established.
const adxTrendLevel = 20

var rules = []Rule{
	{"MACD > Signal", Momentum, func(v *frameView) bool { return v.latest.MACD > v.latest.MACDSignal }},
	{"RSI > 50", Momentum, func(v *frameView) bool { return v.latest.RSI > 50 }},
	{"CCI > 0", Momentum, func(v *frameView) bool { return v.latest.CCI > 0 }},
	{"ROC > 0", Momentum, func(v *frameView) bool { return v.latest.ROC > 0 }},
	{"UO > 50", Momentum, func(v *frameView) bool { return v.latest.UO > 50 }},
	{"Stoch %K > %D", Momentum, func(v *frameView) bool { return v.latest.StochK > v.latest.StochD }},
	{"Williams %R > -50", Momentum, func(v *frameView) bool { return v.latest.WilliamsR > -50 }},

	{"Close > EMA20", Trend, func(v *frameView) bool { return v.latest.Close > v.latest.EMA20 }},
	{"EMA20 > SMA50", Trend, func(v *frameView) bool { return v.latest.EMA20 > v.latest.SMA50 }},
	{"Close > SMA20", Trend, func(v *frameView) bool { return v.latest.Close > v.latest.SMA20 }},
	{"SMA20 > SMA50", Trend, func(v *frameView) bool { return v.latest.SMA20 > v.latest.SMA50 }},
	{"Close > SMA200", Trend, func(v *frameView) bool { return v.latest.Close > v.latest.SMA200 }},
	{"+DI > -DI", Trend, func(v *frameView) bool { return v.latest.PlusDI > v.latest.MinusDI }},
	// ADX measures strength only; the reading counts as bullish when +DI leads.
	{"ADX > 20 with +DI lead", Trend, func(v *frameView) bool {
		return v.latest.ADX > adxTrendLevel && v.latest.PlusDI > v.latest.MinusDI
	}},

	{"Close > SMA20", Volatility, func(v *frameView) bool { return v.latest.Close > v.latest.SMA20 }},
	{"Close > SMA50", Volatility, func(v *frameView) bool { return v.latest.Close > v.latest.SMA50 }},
	{"ADX > Mean ADX", Volatility, func(v *frameView) bool { return v.latest.ADX > v.meanADX }},

	{"OBV Rising", Volume, func(v *frameView) bool { return v.latest.OBV > v.prev.OBV }},
	{"CMF > 0", Volume, func(v *frameView) bool { return v.latest.CMF > 0 }},
	{"AD Rising", Volume, func(v *frameView) bool { return v.latest.AD > v.prev.AD }},
}

// RuleCount returns the number of rules in category c.
func RuleCount(c Category) int {
	n := 0
	for i := range rules {
		if rules[i].Category == c {
			n++
		}
	}
	return n
}
