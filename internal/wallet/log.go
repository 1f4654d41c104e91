// Package wallet watches a Solana address for new transactions through the
// Helius API, either by polling or over a websocket subscription.
package wallet

import (
	"sync"

	"soltrend/internal/model"
)

// Log is a bounded, de-duplicating record of observed transactions. When
// full the oldest entry is overwritten and its signature forgotten, so the
// seen-set never grows past the capacity. Safe for concurrent use.
type Log struct {
	mu   sync.RWMutex
	buf  []model.Transaction
	pos  int // next write position
	n    int
	seen map[string]struct{}
}

// NewLog creates a log holding up to capacity transactions.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = 500
	}
	return &Log{
		buf:  make([]model.Transaction, capacity),
		seen: make(map[string]struct{}, capacity),
	}
}

// Append records tx and reports whether it was new. Transactions without a
// signature are rejected.
func (l *Log) Append(tx model.Transaction) bool {
	if tx.Signature == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, dup := l.seen[tx.Signature]; dup {
		return false
	}
	if l.n == len(l.buf) {
		delete(l.seen, l.buf[l.pos].Signature)
	} else {
		l.n++
	}
	l.buf[l.pos] = tx
	l.seen[tx.Signature] = struct{}{}
	l.pos = (l.pos + 1) % len(l.buf)
	return true
}

// Recent returns up to n transactions, newest first. n <= 0 returns all.
func (l *Log) Recent(n int) []model.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > l.n {
		n = l.n
	}
	out := make([]model.Transaction, 0, n)
	for i := 1; i <= n; i++ {
		idx := (l.pos - i + len(l.buf)) % len(l.buf)
		out = append(out, l.buf[idx])
	}
	return out
}

// Len returns the number of transactions held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.n
}

// Cap returns the capacity.
func (l *Log) Cap() int { return len(l.buf) }
