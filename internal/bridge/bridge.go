package bridge

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/sofai/sofaid/internal/chat"
	"github.com/sofai/sofaid/internal/history"
)

// Bridge routes platform messages through the chat service. Each channel
// gets its own session ("<platform>:<channel>") so platform conversations
// and API conversations share the same history store without colliding.
type Bridge struct {
	chat     *chat.Service
	store    history.Store
	adapters []Adapter
}

// New creates a Bridge over the given service and store.
func New(svc *chat.Service, store history.Store) *Bridge {
	return &Bridge{chat: svc, store: store}
}

// AddAdapter registers a platform adapter. Call before Run.
func (b *Bridge) AddAdapter(a Adapter) {
	b.adapters = append(b.adapters, a)
}

// SessionID returns the history session key for a platform channel.
func SessionID(platform, channelID string) string {
	return platform + ":" + channelID
}

// Run connects all adapters and serves messages until ctx is cancelled.
// Individual message failures are logged, not fatal.
func (b *Bridge) Run(ctx context.Context) error {
	if len(b.adapters) == 0 {
		return fmt.Errorf("bridge: no adapters configured")
	}

	var wg sync.WaitGroup
	for _, a := range b.adapters {
		a := a
		if err := a.Connect(ctx); err != nil {
			return fmt.Errorf("bridge: connect: %w", err)
		}
		inbound, err := a.Listen(ctx)
		if err != nil {
			return fmt.Errorf("bridge: listen: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			b.serve(ctx, a, inbound)
		}()
	}

	<-ctx.Done()
	for _, a := range b.adapters {
		if err := a.Close(); err != nil {
			log.Printf("bridge: close adapter: %v", err)
		}
	}
	wg.Wait()
	return nil
}

// serve consumes one adapter's inbound channel until it is closed.
func (b *Bridge) serve(ctx context.Context, a Adapter, inbound <-chan InboundMessage) {
	for msg := range inbound {
		if err := b.handle(ctx, a, msg); err != nil {
			log.Printf("bridge: %s message from %s: %v", msg.Platform, msg.UserName, err)
		}
	}
}

// handle runs one message through the standard chat flow: history append,
// generation, history append, reply.
func (b *Bridge) handle(ctx context.Context, a Adapter, msg InboundMessage) error {
	sessionID := SessionID(msg.Platform, msg.ChannelID)

	if err := b.store.Append(sessionID, history.Message{Role: history.RoleUser, Text: msg.Text}); err != nil {
		return fmt.Errorf("append user message: %w", err)
	}

	reply, err := b.chat.Reply(ctx, "", msg.Text, 0)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	if err := b.store.Append(sessionID, history.Message{Role: history.RoleBot, Text: reply}); err != nil {
		return fmt.Errorf("append bot message: %w", err)
	}

	if err := a.Send(ctx, OutboundMessage{ChannelID: msg.ChannelID, Text: reply}); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}
