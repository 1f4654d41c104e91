// Package notification delivers trend-change alerts to external channels.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertWarning AlertLevel = "WARNING"
)

// Alert represents a notification to be sent.
type Alert struct {
	ID      string     `json:"id"`
	Level   AlertLevel `json:"level"`
	Symbol  string     `json:"symbol,omitempty"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Time    time.Time  `json:"time"`

	Previous string   `json:"previous,omitempty"`
	Current  string   `json:"current,omitempty"`
	Bullish  []string `json:"bullish,omitempty"`
	Bearish  []string `json:"bearish,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// TrendChangeAlert builds the alert sent when the verdict for symbol flips
// from prev to next, listing example supporting signals.
func TrendChangeAlert(symbol, prev, next string, bullish, bearish []string) Alert {
	var b strings.Builder
	fmt.Fprintf(&b, "%s trend changed from %s to %s.", symbol, prev, next)
	if len(bullish) > 0 {
		fmt.Fprintf(&b, "\nBullish: %s", strings.Join(bullish, ", "))
	}
	if len(bearish) > 0 {
		fmt.Fprintf(&b, "\nBearish: %s", strings.Join(bearish, ", "))
	}

	return Alert{
		ID:       uuid.NewString(),
		Level:    AlertWarning,
		Symbol:   symbol,
		Title:    fmt.Sprintf("%s trend: %s", symbol, next),
		Message:  b.String(),
		Time:     time.Now().UTC(),
		Previous: prev,
		Current:  next,
		Bullish:  bullish,
		Bearish:  bearish,
	}
}

// LogNotifier logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Info().Str("component", "notify").
		Str("id", alert.ID).
		Str("level", string(alert.Level)).
		Str("title", alert.Title).
		Msg(alert.Message)
	return nil
}

// Multi fans an alert out to every notifier. All are attempted; failures
// are joined.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
