package discord

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sofai/sofaid/internal/bridge"
)

func outbound(channelID, text string) bridge.OutboundMessage {
	return bridge.OutboundMessage{ChannelID: channelID, Text: text}
}

// mockSession implements the session interface without touching Discord.
type mockSession struct {
	opened   bool
	closed   bool
	sent     []string
	handlers []interface{}
}

func (m *mockSession) Open() error  { m.opened = true; return nil }
func (m *mockSession) Close() error { m.closed = true; return nil }
func (m *mockSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.sent = append(m.sent, channelID+":"+content)
	return &discordgo.Message{}, nil
}
func (m *mockSession) AddHandler(handler interface{}) func() {
	m.handlers = append(m.handlers, handler)
	return func() {}
}

func newConnectedAdapter(t *testing.T) (*Adapter, *mockSession) {
	t.Helper()
	mock := &mockSession{}
	a, err := New(AdapterOpts{Session: mock})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return a, mock
}

func TestNew_RequiresToken(t *testing.T) {
	if _, err := New(AdapterOpts{}); err == nil {
		t.Error("expected error without token or session")
	}
}

func TestConnect(t *testing.T) {
	a, mock := newConnectedAdapter(t)
	if !mock.opened {
		t.Error("session not opened")
	}
	// Connect is idempotent.
	if err := a.Connect(context.Background()); err != nil {
		t.Errorf("second connect: %v", err)
	}
}

func TestListen_RequiresConnect(t *testing.T) {
	mock := &mockSession{}
	a, _ := New(AdapterOpts{Session: mock})
	if _, err := a.Listen(context.Background()); err == nil {
		t.Error("expected error before Connect")
	}
}

func TestInboundFiltering(t *testing.T) {
	a, _ := newConnectedAdapter(t)
	a.SetBotUserID("bot-1")
	inbound, err := a.Listen(context.Background())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	event := func(authorID, username, channel, text string, isBot bool) *discordgo.MessageCreate {
		return &discordgo.MessageCreate{Message: &discordgo.Message{
			Author:    &discordgo.User{ID: authorID, Username: username, Bot: isBot},
			ChannelID: channel,
			Content:   text,
			Timestamp: time.Now(),
		}}
	}

	a.handleMessage(event("bot-1", "sofai", "c1", "self message", false))
	a.handleMessage(event("u2", "otherbot", "c1", "bot message", true))
	a.handleMessage(event("u3", "alice", "c1", "real message", false))

	select {
	case msg := <-inbound:
		if msg.UserName != "alice" || msg.Text != "real message" {
			t.Errorf("msg = %+v", msg)
		}
		if msg.Platform != "discord" {
			t.Errorf("Platform = %q", msg.Platform)
		}
	case <-time.After(time.Second):
		t.Fatal("no inbound message delivered")
	}

	select {
	case msg := <-inbound:
		t.Fatalf("unexpected extra message: %+v", msg)
	default:
	}
}

func TestChannelRestriction(t *testing.T) {
	mock := &mockSession{}
	a, _ := New(AdapterOpts{Session: mock, ChannelID: "allowed"})
	a.Connect(context.Background())
	inbound, _ := a.Listen(context.Background())

	a.handleMessage(&discordgo.MessageCreate{Message: &discordgo.Message{
		Author: &discordgo.User{ID: "u1", Username: "alice"}, ChannelID: "other", Content: "hi",
	}})
	a.handleMessage(&discordgo.MessageCreate{Message: &discordgo.Message{
		Author: &discordgo.User{ID: "u1", Username: "alice"}, ChannelID: "allowed", Content: "hi",
	}})

	select {
	case msg := <-inbound:
		if msg.ChannelID != "allowed" {
			t.Errorf("ChannelID = %q", msg.ChannelID)
		}
	case <-time.After(time.Second):
		t.Fatal("no inbound message delivered")
	}
}

func TestSendAndClose(t *testing.T) {
	a, mock := newConnectedAdapter(t)

	err := a.Send(context.Background(), outbound("c9", "hello"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(mock.sent) != 1 || mock.sent[0] != "c9:hello" {
		t.Errorf("sent = %v", mock.sent)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !mock.closed {
		t.Error("session not closed")
	}
	// Close is idempotent.
	if err := a.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if err := a.Send(context.Background(), outbound("c9", "late")); err == nil {
		t.Error("expected error sending after close")
	}
}
