package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// WebhookEvent is the JSON document POSTed for a trend change.
type WebhookEvent struct {
	Event   string         `json:"event"`
	ID      string         `json:"id"`
	Symbol  string         `json:"symbol"`
	From    string         `json:"from"`
	To      string         `json:"to"`
	Signals WebhookSignals `json:"signals"`
	Text    string         `json:"text"`
	SentAt  time.Time      `json:"sent_at"`
}

// WebhookSignals lists the leading rule labels on each side.
type WebhookSignals struct {
	Bullish []string `json:"bullish"`
	Bearish []string `json:"bearish"`
}

const trendChangeEvent = "trend.changed"

// WebhookNotifier POSTs trend changes to an HTTP endpoint. The alert ID is
// sent as Idempotency-Key so receivers can drop redeliveries.
type WebhookNotifier struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

func (w *WebhookNotifier) event(alert Alert) WebhookEvent {
	return WebhookEvent{
		Event:  trendChangeEvent,
		ID:     alert.ID,
		Symbol: alert.Symbol,
		From:   alert.Previous,
		To:     alert.Current,
		Signals: WebhookSignals{
			Bullish: nonNil(alert.Bullish),
			Bearish: nonNil(alert.Bearish),
		},
		Text:   alert.Message,
		SentAt: w.now().UTC(),
	}
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(w.event(alert))
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", alert.ID)
	req.Header.Set("X-Event", trendChangeEvent)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send %s: %w", alert.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("webhook: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	log.Debug().Str("component", "webhook").
		Str("id", alert.ID).
		Str("symbol", alert.Symbol).
		Str("to", alert.Current).
		Msg("trend change delivered")
	return nil
}

// nonNil keeps empty signal lists as [] rather than null.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
