package wallet

import (
	"encoding/json"
	"fmt"
	"time"

	"soltrend/internal/model"
)

// heliusTx is the subset of a Helius enhanced transaction we index on.
type heliusTx struct {
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"` // unix seconds
	Type      string `json:"type"`
	Source    string `json:"source"`
	Fee       int64  `json:"fee"`
}

// parseTransaction decodes one provider payload, keeping it as Raw.
func parseTransaction(raw json.RawMessage) (model.Transaction, error) {
	var h heliusTx
	if err := json.Unmarshal(raw, &h); err != nil {
		return model.Transaction{}, fmt.Errorf("decode transaction: %w", err)
	}
	tx := model.Transaction{
		Signature: h.Signature,
		Type:      h.Type,
		Source:    h.Source,
		Fee:       h.Fee,
		Raw:       append(json.RawMessage(nil), raw...),
	}
	if h.Timestamp > 0 {
		tx.Timestamp = time.Unix(h.Timestamp, 0).UTC()
	}
	return tx, nil
}
