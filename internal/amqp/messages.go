package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"finboard/internal/core"
	"finboard/internal/ledger"
)

// LedgerChangedMessage signals that a user's ledgers changed. The consumer
// reloads the snapshot, so only identifiers travel on the wire.
type LedgerChangedMessage struct {
	UserID    string    `json:"user_id"`
	Kind      core.Kind `json:"kind"`
	Op        ledger.Op `json:"op"`
	EntryID   string    `json:"entry_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerChangedMessage(c ledger.Change) *LedgerChangedMessage {
	ts := c.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &LedgerChangedMessage{
		UserID:    c.UserID,
		Kind:      c.Kind,
		Op:        c.Op,
		EntryID:   c.EntryID,
		Timestamp: ts,
	}
}

func (m *LedgerChangedMessage) Change() ledger.Change {
	return ledger.Change{UserID: m.UserID, Kind: m.Kind, Op: m.Op, EntryID: m.EntryID, At: m.Timestamp}
}

func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON decodes a message. A message without a user
// is rejected since nothing could be recomputed for it.
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, errors.New("message without user_id")
	}
	return &msg, nil
}
