// Package trend scores an indicator frame against a fixed rule table and
// produces a bullish or bearish verdict.
package trend

import (
	"fmt"

	"soltrend/internal/indicator"
)

// Errors returned by Classify.
var (
	ErrEmptyFrame          = indicator.ErrEmptyFrame
	ErrInsufficientHistory = indicator.ErrInsufficientHistory
)

// Verdict is the overall direction.
type Verdict string

const (
	Bullish Verdict = "BULLISH"
	Bearish Verdict = "BEARISH"
)

// CategorySummary is the tally of one rule category.
type CategorySummary struct {
	Bullish int             `json:"bullish"`
	Bearish int             `json:"bearish"`
	Score   string          `json:"score"`
	Details map[string]bool `json:"details,omitempty"`
}

// Total returns the number of rules evaluated in the category.
func (c CategorySummary) Total() int { return c.Bullish + c.Bearish }

// Overall aggregates all categories.
type Overall struct {
	BullishScore int     `json:"bullish_score"`
	BearishScore int     `json:"bearish_score"`
	Trend        Verdict `json:"trend"`
}

// Summary is the result of Classify.
type Summary struct {
	Momentum   CategorySummary `json:"momentum"`
	Trend      CategorySummary `json:"trend"`
	Volatility CategorySummary `json:"volatility"`
	Volume     CategorySummary `json:"volume"`
	Overall    Overall         `json:"overall"`
}

// Category returns the summary of category c.
func (s *Summary) Category(c Category) *CategorySummary {
	switch c {
	case Momentum:
		return &s.Momentum
	case Trend:
		return &s.Trend
	case Volatility:
		return &s.Volatility
	case Volume:
		return &s.Volume
	}
	return nil
}

// Classify evaluates every rule against the latest row of f.
//
// It returns ErrEmptyFrame for a nil or empty frame and ErrInsufficientHistory
// when only one row is available. The frame is not modified.
func Classify(f *indicator.Frame) (*Summary, error) {
	switch n := f.Len(); {
	case n == 0:
		return nil, fmt.Errorf("classify: %w", ErrEmptyFrame)
	case n < 2:
		return nil, fmt.Errorf("classify %s: need 2 rows, got %d: %w", f.Symbol, n, ErrInsufficientHistory)
	}

	v := &frameView{
		latest:  f.Latest(),
		prev:    f.Previous(),
		meanADX: meanADX(f),
	}

	s := &Summary{}
	for _, c := range Categories() {
		s.Category(c).Details = make(map[string]bool, RuleCount(c))
	}
	for i := range rules {
		r := &rules[i]
		cs := s.Category(r.Category)
		ok := r.check(v)
		cs.Details[r.Label] = ok
		if ok {
			cs.Bullish++
		} else {
			cs.Bearish++
		}
	}
	s.finish()
	return s, nil
}

// finish fills score strings and the overall record from category counts.
func (s *Summary) finish() {
	s.Overall = Overall{}
	for _, c := range Categories() {
		cs := s.Category(c)
		cs.Score = fmt.Sprintf("%d/%d", cs.Bullish, cs.Total())
		s.Overall.BullishScore += cs.Bullish
		s.Overall.BearishScore += cs.Bearish
	}
	s.Overall.Trend = Bearish
	if s.Overall.BullishScore > s.Overall.BearishScore {
		s.Overall.Trend = Bullish
	}
}

func meanADX(f *indicator.Frame) float64 {
	sum := 0.0
	for i := range f.Rows {
		sum += f.Rows[i].ADX
	}
	return sum / float64(len(f.Rows))
}

// Signals returns up to n labels of passing and failing rules, in rule
// order, without repeating a label shared by two categories.
func (s *Summary) Signals(n int) (bullish, bearish []string) {
	seen := make(map[string]bool, len(rules))
	for i := range rules {
		r := &rules[i]
		if seen[r.Label] {
			continue
		}
		ok, present := s.Category(r.Category).Details[r.Label]
		if !present {
			continue
		}
		seen[r.Label] = true
		if ok && len(bullish) < n {
			bullish = append(bullish, r.Label)
		} else if !ok && len(bearish) < n {
			bearish = append(bearish, r.Label)
		}
	}
	return bullish, bearish
}
