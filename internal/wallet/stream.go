package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"soltrend/internal/logger"
	"soltrend/internal/metrics"
)

const maxStreamBackoff = 2 * time.Minute

// StreamConfig configures a StreamListener.
type StreamConfig struct {
	URL     string // e.g. wss://rpc.helius.xyz
	Address string
	APIKey  string
	Backoff time.Duration // first reconnect delay, doubled up to two minutes
}

type subscribeRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  subscribeParams `json:"params"`
}

type subscribeParams struct {
	Account    string `json:"account"`
	APIKey     string `json:"apiKey"`
	Commitment string `json:"commitment"`
}

// StreamListener subscribes to transactions for the address and appends
// every "transaction" message to the log, reconnecting on failure.
type StreamListener struct {
	cfg     StreamConfig
	log     *Log
	dialer  *websocket.Dialer
	metrics *metrics.Metrics
	lg      zerolog.Logger
}

// NewStreamListener creates a listener writing into l. m may be nil.
func NewStreamListener(cfg StreamConfig, l *Log, m *metrics.Metrics) (*StreamListener, error) {
	if cfg.Address == "" || cfg.APIKey == "" {
		return nil, errors.New("wallet: address and api key are required")
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 15 * time.Second
	}
	return &StreamListener{
		cfg:     cfg,
		log:     l,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		metrics: m,
		lg:      logger.Component("wallet").With().Str("mode", "stream").Logger(),
	}, nil
}

// Run keeps a subscription open until ctx is cancelled.
func (s *StreamListener) Run(ctx context.Context) error {
	backoff := s.cfg.Backoff
	for {
		start := time.Now()
		err := s.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(start) > maxStreamBackoff {
			backoff = s.cfg.Backoff
		}
		s.lg.Warn().Err(err).Dur("retry_in", backoff).Msg("stream disconnected")
		if s.metrics != nil {
			s.metrics.WalletReconnects.Inc()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxStreamBackoff {
			backoff = maxStreamBackoff
		}
	}
}

func (s *StreamListener) endpoint() (string, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	q := u.Query()
	q.Set("api-key", s.cfg.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// listen runs one connection until it fails or ctx is done.
func (s *StreamListener) listen(ctx context.Context) error {
	endpoint, err := s.endpoint()
	if err != nil {
		return err
	}
	conn, _, err := s.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
		}
	}()

	err = conn.WriteJSON(subscribeRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "transactionSubscribe",
		Params: subscribeParams{
			Account:    s.cfg.Address,
			APIKey:     s.cfg.APIKey,
			Commitment: "confirmed",
		},
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.lg.Info().Str("address", s.cfg.Address).Msg("subscribed")

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		s.handle(msg)
	}
}

func (s *StreamListener) handle(msg []byte) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &head); err != nil || head.Type != "transaction" {
		return
	}
	tx, err := parseTransaction(msg)
	if err != nil {
		s.lg.Warn().Err(err).Msg("skipping message")
		return
	}
	if tx.Signature == "" {
		// keep unsigned notifications distinguishable in the log
		tx.Signature = uuid.NewString()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}
	if s.log.Append(tx) {
		s.lg.Info().Str("signature", tx.Signature).Msg("new transaction")
		if s.metrics != nil {
			s.metrics.WalletTransactions.Inc()
			s.metrics.WalletLogSize.Set(float64(s.log.Len()))
		}
	}
}
