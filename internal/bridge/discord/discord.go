// Package discord implements the bridge Adapter for Discord using the
// Gateway WebSocket.
package discord

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/sofai/sofaid/internal/bridge"
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	Open() error
	Close() error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	AddHandler(handler interface{}) func()
}

// realSession wraps *discordgo.Session to implement the session interface.
type realSession struct {
	s *discordgo.Session
}

func (r *realSession) Open() error  { return r.s.Open() }
func (r *realSession) Close() error { return r.s.Close() }
func (r *realSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageSend(channelID, content, options...)
}
func (r *realSession) AddHandler(handler interface{}) func() {
	return r.s.AddHandler(handler)
}

// Adapter implements bridge.Adapter for Discord.
type Adapter struct {
	sess          session
	botToken      string
	channelID     string // restrict to one channel when set
	botUserID     string
	mu            sync.Mutex
	connected     bool
	closed        bool
	inbound       chan bridge.InboundMessage
	removeHandler func()
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	BotToken  string // Discord bot token
	ChannelID string // if set, only messages from this channel are served
	// For testing: inject a mock session instead of real Discord API.
	Session session
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	return &Adapter{
		sess:      opts.Session,
		botToken:  opts.BotToken,
		channelID: opts.ChannelID,
		inbound:   make(chan bridge.InboundMessage, 100),
	}, nil
}

// Connect establishes the Discord Gateway WebSocket connection.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("discord: adapter already closed")
	}
	if a.connected {
		return nil
	}

	if a.sess == nil {
		dg, err := discordgo.New("Bot " + a.botToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
		a.sess = &realSession{s: dg}
	}

	// Capture the bot user ID on connect so self-messages can be filtered.
	a.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.mu.Lock()
		a.botUserID = r.User.ID
		a.mu.Unlock()
		log.Printf("discord: connected as %s (ID: %s)", r.User.Username, r.User.ID)
	})

	if err := a.sess.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	a.connected = true
	return nil
}

// Listen returns the inbound message channel. Must be called after Connect.
func (a *Adapter) Listen(ctx context.Context) (<-chan bridge.InboundMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, fmt.Errorf("discord: not connected")
	}
	a.removeHandler = a.sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		a.handleMessage(m)
	})
	return a.inbound, nil
}

// Send delivers a reply to a Discord channel.
func (a *Adapter) Send(ctx context.Context, msg bridge.OutboundMessage) error {
	a.mu.Lock()
	connected := a.connected
	a.mu.Unlock()
	if !connected {
		return fmt.Errorf("discord: not connected")
	}

	channelID := msg.ChannelID
	if channelID == "" {
		channelID = a.channelID
	}
	if channelID == "" {
		return fmt.Errorf("discord: no channel specified")
	}
	if _, err := a.sess.ChannelMessageSend(channelID, msg.Text); err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

// Close gracefully shuts down the adapter connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	if a.removeHandler != nil {
		a.removeHandler()
	}
	close(a.inbound)
	if a.sess != nil {
		return a.sess.Close()
	}
	return nil
}

// SetBotUserID sets the bot user ID (used for self-message filtering in tests).
func (a *Adapter) SetBotUserID(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.botUserID = id
}

// handleMessage converts a Discord message event to an InboundMessage.
func (a *Adapter) handleMessage(m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	a.mu.Lock()
	botID := a.botUserID
	restrict := a.channelID
	closed := a.closed
	a.mu.Unlock()

	if closed || m.Author.ID == botID {
		return
	}
	if restrict != "" && m.ChannelID != restrict {
		return
	}

	msg := bridge.InboundMessage{
		Platform:  "discord",
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		UserName:  m.Author.Username,
		Text:      m.Content,
		Timestamp: m.Timestamp,
	}

	// Drop rather than block when the consumer falls behind.
	select {
	case a.inbound <- msg:
	default:
		log.Printf("discord: inbound buffer full, dropping message from %s", m.Author.Username)
	}
}
