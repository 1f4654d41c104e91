package model

import (
	"encoding/json"
	"time"
)

// Transaction is one on-chain wallet transaction observed by the wallet monitor.
// Raw keeps the provider payload untouched for display.
type Transaction struct {
	Signature string          `json:"signature"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type,omitempty"`
	Source    string          `json:"source,omitempty"`
	Fee       int64           `json:"fee,omitempty"` // lamports
	Raw       json.RawMessage `json:"raw,omitempty"`
}
