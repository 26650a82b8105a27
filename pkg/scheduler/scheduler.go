package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
)

// Kind names the work a message asks for.
type Kind string

const (
	KindTransaction Kind = "transaction"
	KindPayout      Kind = "payout"
)

// Message is the queue payload. It carries only an id; consumers re-read the
// current state before acting on it.
type Message struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

// Decode parses a queue message body.
func Decode(body string) (Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return Message{}, fmt.Errorf("failed to decode message: %w", err)
	}
	switch m.Kind {
	case KindTransaction, KindPayout:
	default:
		return Message{}, fmt.Errorf("unknown message kind %q", m.Kind)
	}
	if m.ID == "" {
		return Message{}, fmt.Errorf("message id is required")
	}
	return m, nil
}

// Scheduler defines the interface for a component that schedules work for later processing.
type Scheduler interface {
	// EnqueueTransaction schedules a transaction for settlement.
	EnqueueTransaction(ctx context.Context, transactionID string) error
	// EnqueuePayout schedules a payout batch for processing.
	EnqueuePayout(ctx context.Context, batchID string) error
}
