package indicator

import "math"

var nan = math.NaN()

// Window is a fixed-size rolling window over the last period values.
// Uses a preallocated circular buffer; aggregates are recomputed from the
// buffer so a flat stretch sums to exactly zero instead of carrying
// subtraction residue.
type Window struct {
	period int
	buf    []float64 // preallocated circular buffer
	idx    int       // current write position
	count  int       // total values received
}

// NewWindow creates a rolling window with the given period.
func NewWindow(period int) *Window {
	return &Window{
		period: period,
		buf:    make([]float64, period),
	}
}

// Push appends v, evicting the oldest value once the window is full.
func (w *Window) Push(v float64) {
	w.buf[w.idx] = v
	w.idx = (w.idx + 1) % w.period
	w.count++
}

// Ready returns true once period values have been pushed.
func (w *Window) Ready() bool { return w.count >= w.period }

// Sum returns the window sum, NaN until ready or if the window holds a NaN.
func (w *Window) Sum() float64 {
	if !w.Ready() {
		return nan
	}
	sum := 0.0
	for _, v := range w.buf {
		sum += v
	}
	return sum
}

// Mean returns the simple moving average of the window.
func (w *Window) Mean() float64 {
	return w.Sum() / float64(w.period)
}

// Min returns the smallest value in the window, NaN until ready.
func (w *Window) Min() float64 {
	if !w.Ready() {
		return nan
	}
	m := w.buf[0]
	for _, v := range w.buf[1:] {
		if math.IsNaN(v) {
			return nan
		}
		if v < m {
			m = v
		}
	}
	return m
}

// Max returns the largest value in the window, NaN until ready.
func (w *Window) Max() float64 {
	if !w.Ready() {
		return nan
	}
	m := w.buf[0]
	for _, v := range w.buf[1:] {
		if math.IsNaN(v) {
			return nan
		}
		if v > m {
			m = v
		}
	}
	return m
}

// MeanAbsDev returns the mean absolute deviation of the window around its mean.
func (w *Window) MeanAbsDev() float64 {
	mean := w.Mean()
	if math.IsNaN(mean) {
		return nan
	}
	dev := 0.0
	for _, v := range w.buf {
		dev += math.Abs(v - mean)
	}
	return dev / float64(w.period)
}

// SMA returns the simple moving average of xs over period.
// The first period-1 values are NaN.
func SMA(xs []float64, period int) []float64 {
	return rolling(xs, period, (*Window).Mean)
}

// RollingSum returns the trailing sum of xs over period.
func RollingSum(xs []float64, period int) []float64 {
	return rolling(xs, period, (*Window).Sum)
}

func rolling(xs []float64, period int, agg func(*Window) float64) []float64 {
	out := make([]float64, len(xs))
	w := NewWindow(period)
	for i, x := range xs {
		w.Push(x)
		out[i] = agg(w)
	}
	return out
}
