// Package events publishes committed reservation and transfer transitions.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/bsv-blockchain/escrowledger/model"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Type string

const (
	TypeReserved    Type = "reserved"
	TypeExecuted    Type = "executed"
	TypeReclaimed   Type = "reclaimed"
	TypeTransferred Type = "transferred"
	TypeCredited    Type = "credited"
)

type Event struct {
	ID          uuid.UUID          `json:"id"`
	Type        Type               `json:"type"`
	Owner       model.Address      `json:"owner"`
	Nonce       *uint256.Int       `json:"nonce,omitempty"`
	Block       uint64             `json:"block"`
	Submitter   model.Address      `json:"submitter"`
	Reservation *model.Reservation `json:"reservation,omitempty"`
	Transfer    *Transfer          `json:"transfer,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

// Transfer describes a balance movement outside a reservation.
type Transfer struct {
	From   model.Address `json:"from"`
	To     model.Address `json:"to"`
	Amount *uint256.Int  `json:"amount"`
	Fee    *uint256.Int  `json:"fee,omitempty"`
}

// NewReservationEvent builds an event for a reservation transition. The reservation is copied.
func NewReservationEvent(eventType Type, submitter model.Address, block uint64, r *model.Reservation) *Event {
	return &Event{
		ID:          uuid.New(),
		Type:        eventType,
		Owner:       r.Owner,
		Nonce:       r.Nonce.Clone(),
		Block:       block,
		Submitter:   submitter,
		Reservation: r.Clone(),
		Timestamp:   time.Now().UTC(),
	}
}

func NewTransferEvent(eventType Type, submitter model.Address, block uint64, t *Transfer) *Event {
	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Owner:     t.From,
		Block:     block,
		Submitter: submitter,
		Transfer:  t,
		Timestamp: time.Now().UTC(),
	}
}

func (e *Event) Bytes() ([]byte, error) {
	return json.Marshal(e)
}

func Decode(b []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, err
	}

	return &e, nil
}

// Publisher delivers committed events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e *Event) error
	Close() error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *Event) error { return nil }
func (NoopPublisher) Close() error                          { return nil }

// MemoryPublisher records every event in order. Used by tests and single-process deployments.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []*Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (m *MemoryPublisher) Publish(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, e)

	return nil
}

func (m *MemoryPublisher) Close() error {
	return nil
}

func (m *MemoryPublisher) Events() []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Event, len(m.events))
	copy(out, m.events)

	return out
}

func (m *MemoryPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = nil
}
