package amqp

import (
	"encoding/json"
	"time"
)

// Message types carried on the sync queue.
const (
	TypePurchaseSync   = "purchase.sync"
	TypePurchaseDelete = "purchase.delete"
)

// Envelope wraps every queued message with its type so one queue can carry
// both sync and delete events.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// PurchaseSyncMessage asks the worker to mirror one purchase to the ledger.
// It carries only the ID and version; the worker fetches the current snapshot
// from the database, so a burst of updates collapses into one ledger write.
type PurchaseSyncMessage struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// PurchaseDeleteMessage asks the worker to drop a purchase's ledger row.
// It carries the row-identifying data because the local record is already
// soft deleted when the worker processes it.
type PurchaseDeleteMessage struct {
	ID             int64     `json:"id"`
	PersonName     string    `json:"person_name"`
	ItemName       string    `json:"item_name"`
	PrincipalCents int64     `json:"principal_cents"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewPurchaseSyncMessage(id, version int64) *PurchaseSyncMessage {
	return &PurchaseSyncMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func NewPurchaseDeleteMessage(id int64, personName, itemName string, principalCents int64) *PurchaseDeleteMessage {
	return &PurchaseDeleteMessage{
		ID:             id,
		PersonName:     personName,
		ItemName:       itemName,
		PrincipalCents: principalCents,
		Timestamp:      time.Now(),
	}
}

func wrap(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

func unwrap(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
