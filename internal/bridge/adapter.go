// Package bridge surfaces the chat service on messaging platforms
// (Discord, Slack). Each platform channel maps to its own history session.
package bridge

import (
	"context"
	"time"
)

// Adapter is the interface platform-specific implementations must satisfy.
// Each adapter handles connection management and message send/receive for a
// single chat platform.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages from the platform.
	// The channel is closed when the adapter is closed. Listen must only
	// be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// InboundMessage is a user message received from a chat platform. Adapters
// filter out the bot's own messages before delivery.
type InboundMessage struct {
	Platform  string // e.g. "discord", "slack"
	ChannelID string
	UserID    string
	UserName  string
	Text      string
	Timestamp time.Time
}

// OutboundMessage is a reply to be sent back to the platform.
type OutboundMessage struct {
	ChannelID string
	Text      string
}
