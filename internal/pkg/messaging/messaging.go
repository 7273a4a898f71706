// Package messaging publishes audit events to a broker. NATS, Kafka and NSQ
// are supported; Noop discards and Memory records for tests.
package messaging

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned when publishing on a closed publisher.
var ErrClosed = errors.New("messaging: publisher closed")

// ErrDestinationRequired is returned when the topic/subject is empty.
var ErrDestinationRequired = errors.New("messaging: destination is required")

// Publisher sends messages to a destination (topic or subject).
type Publisher interface {
	io.Closer
	Publish(ctx context.Context, destination string, msg Message) error
}

// Message is a broker-agnostic outgoing message.
type Message struct {
	// Key is used by Kafka for partitioning; the identity keeps one
	// account's events ordered.
	Key     []byte
	Body    []byte
	Headers map[string]string
}

// Noop discards every message.
type Noop struct{}

func (Noop) Publish(ctx context.Context, destination string, _ Message) error {
	if destination == "" {
		return ErrDestinationRequired
	}
	return ctx.Err()
}

func (Noop) Close() error { return nil }

// Published is a message captured by Memory.
type Published struct {
	Destination string
	Message     Message
}

// Memory records published messages in order.
type Memory struct {
	mu     sync.Mutex
	msgs   []Published
	closed bool
}

// NewMemory returns an empty in-memory publisher.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Publish(_ context.Context, destination string, msg Message) error {
	if destination == "" {
		return ErrDestinationRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.msgs = append(m.msgs, Published{Destination: destination, Message: msg})
	return nil
}

// Messages returns a copy of everything published so far.
func (m *Memory) Messages() []Published {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Published(nil), m.msgs...)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
