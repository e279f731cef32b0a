package bridge

import (
	"context"
	"fmt"
	"sync"
)

// MockAdapter implements Adapter for testing. It records sent messages and
// allows simulating inbound messages via SimulateInbound.
type MockAdapter struct {
	mu        sync.Mutex
	connected bool
	closed    bool
	inbound   chan InboundMessage
	sent      []OutboundMessage
}

// NewMockAdapter creates a MockAdapter with a buffered inbound channel.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{inbound: make(chan InboundMessage, 100)}
}

// Connect marks the adapter as connected.
func (m *MockAdapter) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mock adapter: already closed")
	}
	m.connected = true
	return nil
}

// Listen returns the inbound message channel. Must be called after Connect.
func (m *MockAdapter) Listen(ctx context.Context) (<-chan InboundMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, fmt.Errorf("mock adapter: not connected")
	}
	return m.inbound, nil
}

// Send records the outbound message.
func (m *MockAdapter) Send(ctx context.Context, msg OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return fmt.Errorf("mock adapter: not connected")
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Close shuts down the mock adapter and closes the inbound channel.
func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.connected = false
	close(m.inbound)
	return nil
}

// SimulateInbound delivers a message as if it came from the platform.
func (m *MockAdapter) SimulateInbound(msg InboundMessage) {
	m.inbound <- msg
}

// Sent returns a copy of all recorded outbound messages.
func (m *MockAdapter) Sent() []OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OutboundMessage, len(m.sent))
	copy(out, m.sent)
	return out
}
