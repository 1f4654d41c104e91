package trend

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedText is returned by ParseText for input not produced by Text.
var ErrMalformedText = errors.New("malformed trend summary text")

const (
	passMark = "PASS"
	failMark = "FAIL"
)

// Text renders s as the plain-text summary handed to the assistant relay.
// Rule lines follow the rule table order, so output is deterministic.
func (s *Summary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Overall Trend: %s\n", s.Overall.Trend)
	fmt.Fprintf(&b, "Bullish Signals: %d\n", s.Overall.BullishScore)
	fmt.Fprintf(&b, "Bearish Signals: %d\n", s.Overall.BearishScore)

	for _, c := range Categories() {
		cs := s.Category(c)
		fmt.Fprintf(&b, "\n[%s] %s\n", c, cs.Score)
		for i := range rules {
			r := &rules[i]
			if r.Category != c {
				continue
			}
			ok, present := cs.Details[r.Label]
			if !present {
				continue
			}
			mark := failMark
			if ok {
				mark = passMark
			}
			fmt.Fprintf(&b, "  %s: %s\n", r.Label, mark)
		}
	}
	return b.String()
}

// ParseText reads a summary rendered by Text back into a Summary.
// Category counts are recomputed from the rule lines and checked against the
// header scores and overall totals.
func ParseText(text string) (*Summary, error) {
	s := &Summary{}
	byName := make(map[string]Category, numCategories)
	for _, c := range Categories() {
		byName[c.String()] = c
	}

	var (
		cur          *CategorySummary
		headerScores = make(map[Category]string, numCategories)
		trend        string
		bull, bear   = -1, -1
		line         int
	)
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line++
		raw := sc.Text()
		switch {
		case strings.TrimSpace(raw) == "":
			continue
		case strings.HasPrefix(raw, "Overall Trend: "):
			trend = strings.TrimPrefix(raw, "Overall Trend: ")
		case strings.HasPrefix(raw, "Bullish Signals: "):
			n, err := strconv.Atoi(strings.TrimPrefix(raw, "Bullish Signals: "))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedText, line, err)
			}
			bull = n
		case strings.HasPrefix(raw, "Bearish Signals: "):
			n, err := strconv.Atoi(strings.TrimPrefix(raw, "Bearish Signals: "))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedText, line, err)
			}
			bear = n
		case strings.HasPrefix(raw, "["):
			end := strings.Index(raw, "] ")
			if end < 0 {
				return nil, fmt.Errorf("%w: line %d: bad category header %q", ErrMalformedText, line, raw)
			}
			c, ok := byName[raw[1:end]]
			if !ok {
				return nil, fmt.Errorf("%w: line %d: unknown category %q", ErrMalformedText, line, raw[1:end])
			}
			cur = s.Category(c)
			cur.Details = make(map[string]bool)
			headerScores[c] = raw[end+2:]
		case strings.HasPrefix(raw, "  "):
			if cur == nil {
				return nil, fmt.Errorf("%w: line %d: rule outside category", ErrMalformedText, line)
			}
			sep := strings.LastIndex(raw, ": ")
			if sep < 0 {
				return nil, fmt.Errorf("%w: line %d: bad rule line %q", ErrMalformedText, line, raw)
			}
			label, mark := strings.TrimSpace(raw[:sep]), raw[sep+2:]
			switch mark {
			case passMark:
				cur.Details[label] = true
				cur.Bullish++
			case failMark:
				cur.Details[label] = false
				cur.Bearish++
			default:
				return nil, fmt.Errorf("%w: line %d: bad mark %q", ErrMalformedText, line, mark)
			}
		default:
			return nil, fmt.Errorf("%w: line %d: unexpected %q", ErrMalformedText, line, raw)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	s.finish()
	for c, score := range headerScores {
		if got := s.Category(c).Score; got != score {
			return nil, fmt.Errorf("%w: [%s] header says %s, rules give %s", ErrMalformedText, c, score, got)
		}
	}
	if bull != s.Overall.BullishScore || bear != s.Overall.BearishScore {
		return nil, fmt.Errorf("%w: totals %d/%d do not match rules %d/%d",
			ErrMalformedText, bull, bear, s.Overall.BullishScore, s.Overall.BearishScore)
	}
	if string(s.Overall.Trend) != trend {
		return nil, fmt.Errorf("%w: trend %q does not match counts", ErrMalformedText, trend)
	}
	return s, nil
}
