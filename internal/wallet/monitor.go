package wallet

import (
	"fmt"
	"time"

	"soltrend/internal/metrics"
)

// Config selects and configures a monitor.
type Config struct {
	Mode         string // "poll" or "stream"
	Address      string
	APIKey       string
	APIBase      string
	StreamURL    string
	PollInterval time.Duration
	ErrorBackoff time.Duration
}

// NewMonitor builds the monitor for cfg.Mode writing into l.
func NewMonitor(cfg Config, l *Log, m *metrics.Metrics) (Monitor, error) {
	switch cfg.Mode {
	case "", "poll":
		return NewPoller(PollerConfig{
			APIBase:      cfg.APIBase,
			Address:      cfg.Address,
			APIKey:       cfg.APIKey,
			Interval:     cfg.PollInterval,
			ErrorBackoff: cfg.ErrorBackoff,
		}, l, m)
	case "stream":
		return NewStreamListener(StreamConfig{
			URL:     cfg.StreamURL,
			Address: cfg.Address,
			APIKey:  cfg.APIKey,
			Backoff: cfg.ErrorBackoff,
		}, l, m)
	}
	return nil, fmt.Errorf("wallet: unknown mode %q", cfg.Mode)
}
