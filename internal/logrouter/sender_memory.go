package logrouter

import (
	"context"
	"sync"
)

// Delivery pairs a message with the destination it was sent to.
type Delivery struct {
	Destination string
	Message     Message
}

// MemorySender records deliveries in memory. Used in development mode and
// as the test double for the Router.
type MemorySender struct {
	mu         sync.Mutex
	deliveries []Delivery
}

// NewMemorySender creates an empty MemorySender.
func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

// Send records the delivery.
func (s *MemorySender) Send(_ context.Context, destination string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, Delivery{Destination: destination, Message: msg})
	return nil
}

// Deliveries returns a copy of everything sent so far.
func (s *MemorySender) Deliveries() []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Delivery(nil), s.deliveries...)
}
