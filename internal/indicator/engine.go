package indicator

import (
	"fmt"

	"soltrend/internal/model"
)

// Compute derives the indicator frame for s.
//
// It fails with ErrInsufficientHistory when s holds fewer than MinCandles
// candles, with model.ErrInvalidCandle when s does not validate, and with
// ErrEmptyFrame when no row is fully defined. The input is not modified.
func Compute(s model.Series) (*Frame, error) {
	n := s.Len()
	if n < MinCandles {
		return nil, fmt.Errorf("compute %s: need %d candles, got %d: %w", s.Symbol, MinCandles, n, ErrInsufficientHistory)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("compute %s: %w", s.Symbol, err)
	}
	candles := s.Candles
	closes := s.Closes()

	sma20 := SMA(closes, periodSMAFast)
	sma50 := SMA(closes, periodSMAMid)
	sma200 := SMA(closes, periodSMASlow)
	ema20 := EMASeries(closes, periodEMA)
	macd, macdSig := MACD(closes, periodMACDFast, periodMACDSlow, periodMACDSig)
	rsi := RSI(closes, periodRSI)
	roc := ROC(closes, periodROC)
	cci := CCI(candles, periodCCI)
	uo := UltimateOscillator(candles, uoShort, uoMid, uoLong)
	stochK, stochD := Stochastic(candles, periodStoch, periodStochD)
	willR := WilliamsR(candles, periodStoch)
	plusDI, minusDI, adx := DMI(candles, periodDMI)
	obv := OBV(candles)
	cmf := CMF(candles, periodCMF)
	ad := AD(candles)

	f := &Frame{
		Symbol:   s.Symbol,
		Interval: s.Interval,
		Rows:     make([]Row, 0, n-MinCandles+1),
	}
	for i := range candles {
		row := Row{
			Candle:     candles[i],
			SMA20:      sma20[i],
			SMA50:      sma50[i],
			SMA200:     sma200[i],
			EMA20:      ema20[i],
			MACD:       macd[i],
			MACDSignal: macdSig[i],
			RSI:        rsi[i],
			ROC:        roc[i],
			CCI:        cci[i],
			UO:         uo[i],
			StochK:     stochK[i],
			StochD:     stochD[i],
			WilliamsR:  willR[i],
			PlusDI:     plusDI[i],
			MinusDI:    minusDI[i],
			ADX:        adx[i],
			OBV:        obv[i],
			CMF:        cmf[i],
			AD:         ad[i],
		}
		if row.defined() {
			f.Rows = append(f.Rows, row)
		}
	}
	if len(f.Rows) == 0 {
		return nil, fmt.Errorf("compute %s: %w", s.Symbol, ErrEmptyFrame)
	}
	return f, nil
}
