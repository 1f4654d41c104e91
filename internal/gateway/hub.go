// Package gateway fans trend snapshots out to websocket clients.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

const sendBuffer = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type latestEntry struct {
	Data json.RawMessage
	TS   time.Time
}

// Hub manages websocket clients and broadcasts enveloped payloads to them.
// Clients whose send buffer is full are disconnected.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seq     int64

	replay *ReplayBuffer
	gauge  prometheus.Gauge
}

// NewHub creates a hub. gauge, when non-nil, tracks the connected client count.
func NewHub(gauge prometheus.Gauge) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		latest:  make(map[string]latestEntry),
		replay:  NewReplayBuffer(sendBuffer),
		gauge:   gauge,
	}
}

// ServeHTTP upgrades the request and registers the connection. A "since" query
// parameter replays buffered envelopes with a greater sequence number,
// otherwise the latest envelope of every channel is sent.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Str("component", "gateway").Err(err).Msg("ws upgrade failed")
		return
	}

	since := int64(-1)
	if s := r.URL.Query().Get("since"); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			since = v
		}
	}
	h.register(conn, since)
}

func (h *Hub) register(conn *websocket.Conn, since int64) *Client {
	c := &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		hub:  h,
	}

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	if since >= 0 {
		for _, env := range h.replay.Since(since) {
			select {
			case c.send <- env:
			default:
			}
		}
	} else {
		for channel, e := range h.latest {
			env, _ := json.Marshal(map[string]interface{}{
				"channel": channel,
				"data":    e.Data,
				"ts":      e.TS.Format(time.RFC3339Nano),
				"initial": true,
			})
			select {
			case c.send <- env:
			default:
			}
		}
	}
	h.mu.Unlock()
	h.setGauge(count)

	log.Debug().Str("component", "gateway").Int("clients", count).Msg("ws client connected")

	go c.writePump()
	go c.readPump()
	return c
}

// unregister removes a client and closes its send channel. Safe to call twice.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()
	h.setGauge(count)
}

// Broadcast wraps data in an envelope and queues it on every client.
func (h *Hub) Broadcast(channel string, data []byte) {
	now := time.Now().UTC()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	env := envelope(channel, data, now, h.seq)
	h.latest[channel] = latestEntry{Data: append(json.RawMessage(nil), data...), TS: now}
	h.replay.Push(h.seq, env)

	var slow []*Client
	for c := range h.clients {
		select {
		case c.send <- env:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(h.clients, c)
		close(c.send)
		log.Warn().Str("component", "gateway").Msg("dropping slow ws client")
	}
	if len(slow) > 0 {
		h.setGauge(len(h.clients))
	}
}

// Relay broadcasts messages from a Redis subscription until ctx is done or
// the subscription closes.
func (h *Hub) Relay(ctx context.Context, pubsub *goredis.PubSub) {
	defer pubsub.Close()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.Broadcast(msg.Channel, []byte(msg.Payload))
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.setGauge(0)
}

func (h *Hub) setGauge(n int) {
	if h.gauge != nil {
		h.gauge.Set(float64(n))
	}
}

// envelope builds {"channel":…,"data":…,"ts":…,"seq":N} without reflection.
// data must already be valid JSON.
func envelope(channel string, data []byte, now time.Time, seq int64) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+96)
	buf = append(buf, `{"channel":`...)
	buf = strconv.AppendQuote(buf, channel)
	buf = append(buf, `,"data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')
	return buf
}
