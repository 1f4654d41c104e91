package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestTrendChangeAlert(t *testing.T) {
	a := TrendChangeAlert("SOLUSDT", "BEARISH", "BULLISH", []string{"MACD > Signal", "RSI > 50"}, nil)

	if a.ID == "" {
		t.Fatal("expected alert id")
	}
	if a.Symbol != "SOLUSDT" || a.Previous != "BEARISH" || a.Current != "BULLISH" {
		t.Fatalf("unexpected alert %+v", a)
	}
	if !strings.Contains(a.Message, "from BEARISH to BULLISH") {
		t.Errorf("message %q missing transition", a.Message)
	}
	if !strings.Contains(a.Message, "Bullish: MACD > Signal, RSI > 50") {
		t.Errorf("message %q missing signals", a.Message)
	}
	if strings.Contains(a.Message, "Bearish:") {
		t.Errorf("message %q lists empty bearish signals", a.Message)
	}

	b := TrendChangeAlert("SOLUSDT", "BEARISH", "BULLISH", nil, nil)
	if a.ID == b.ID {
		t.Error("alert ids should be unique")
	}
}

func TestWebhookNotifier(t *testing.T) {
	var raw map[string]interface{}
	var got WebhookEvent
	var key, event string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("Idempotency-Key")
		event = r.Header.Get("X-Event")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.Unmarshal(body, &raw)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	sentAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return sentAt }

	alert := TrendChangeAlert("SOLUSDT", "BULLISH", "BEARISH", nil, []string{"Close > SMA20"})
	if err := n.Send(context.Background(), alert); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.ID != alert.ID || key != alert.ID {
		t.Errorf("id mismatch: body %q header %q want %q", got.ID, key, alert.ID)
	}
	if event != "trend.changed" || got.Event != "trend.changed" {
		t.Errorf("event header %q body %q", event, got.Event)
	}
	if got.Symbol != "SOLUSDT" || got.From != "BULLISH" || got.To != "BEARISH" {
		t.Errorf("transition %s %s -> %s", got.Symbol, got.From, got.To)
	}
	if len(got.Signals.Bearish) != 1 || got.Signals.Bearish[0] != "Close > SMA20" {
		t.Errorf("bearish signals = %v", got.Signals.Bearish)
	}
	if !got.SentAt.Equal(sentAt) || got.Text != alert.Message {
		t.Errorf("sent_at %v text %q", got.SentAt, got.Text)
	}
	signals, _ := raw["signals"].(map[string]interface{})
	if bullish, ok := signals["bullish"].([]interface{}); !ok || len(bullish) != 0 {
		t.Errorf("bullish should encode as [], got %v", signals["bullish"])
	}
}

func TestWebhookNotifierStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream busy", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{ID: "x"})
	if err == nil || !strings.Contains(err.Error(), "502") || !strings.Contains(err.Error(), "upstream busy") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestTelegramNotifier(t *testing.T) {
	var path string
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("tok", "42")
	n.apiBase = srv.URL

	alert := TrendChangeAlert("SOLUSDT", "BEARISH", "BULLISH", []string{"RSI > 50"}, nil)
	if err := n.Send(context.Background(), alert); err != nil {
		t.Fatalf("send: %v", err)
	}
	if path != "/bottok/sendMessage" {
		t.Errorf("path = %q", path)
	}
	if payload["chat_id"] != "42" || payload["parse_mode"] != "MarkdownV2" {
		t.Errorf("unexpected payload %v", payload)
	}
	text, _ := payload["text"].(string)
	if !strings.Contains(text, `RSI \> 50`) {
		t.Errorf("text %q not escaped", text)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"+DI > -DI", `\+DI \> \-DI`},
		{"a.b!", `a\.b\!`},
		{"(x)", `\(x\)`},
	}
	for _, tt := range tests {
		if got := escapeMarkdown(tt.in); got != tt.want {
			t.Errorf("escapeMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaNotifier(t *testing.T) {
	w := &fakeWriter{}
	k := &KafkaNotifier{writer: w}

	alert := TrendChangeAlert("SOLUSDT", "BEARISH", "BULLISH", nil, nil)
	if err := k.Send(context.Background(), alert); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "SOLUSDT" {
		t.Errorf("key = %q", msg.Key)
	}
	var decoded Alert
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ID != alert.ID {
		t.Errorf("id = %q, want %q", decoded.ID, alert.ID)
	}

	w.err = errors.New("broker down")
	if err := k.Send(context.Background(), alert); err == nil {
		t.Error("expected write error")
	}
	if err := k.Close(); err != nil || !w.closed {
		t.Error("expected writer closed")
	}
}

func TestNewKafkaNotifierRequiresBrokers(t *testing.T) {
	if _, err := NewKafkaNotifier(nil, "trend-alerts"); err == nil {
		t.Fatal("expected error without brokers")
	}
}

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) Send(ctx context.Context, alert Alert) error {
	c.calls++
	return c.err
}

func TestMultiAttemptsAll(t *testing.T) {
	failing := &countingNotifier{err: errors.New("boom")}
	ok := &countingNotifier{}
	m := Multi{failing, NewLogNotifier(), ok}

	err := m.Send(context.Background(), Alert{ID: "1"})
	if err == nil {
		t.Fatal("expected joined error")
	}
	if failing.calls != 1 || ok.calls != 1 {
		t.Errorf("calls = %d, %d; want 1, 1", failing.calls, ok.calls)
	}
	if err := (Multi{ok}).Send(context.Background(), Alert{}); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}
