// Package slack implements the bridge Adapter for Slack using Socket Mode.
package slack

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"github.com/sofai/sofaid/internal/bridge"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	AuthTest() (*slackapi.AuthTestResponse, error)
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// socketClient abstracts the Socket Mode client methods we use.
type socketClient interface {
	Run() error
	EventsChan() chan socketmode.Event
	Ack(req socketmode.Request, payload ...interface{})
}

// realSocketClient wraps *socketmode.Client to implement socketClient.
type realSocketClient struct {
	client *socketmode.Client
}

func (r *realSocketClient) Run() error                        { return r.client.Run() }
func (r *realSocketClient) EventsChan() chan socketmode.Event { return r.client.Events }
func (r *realSocketClient) Ack(req socketmode.Request, payload ...interface{}) {
	r.client.Ack(req, payload...)
}

// Adapter implements bridge.Adapter for Slack Socket Mode.
type Adapter struct {
	client     slackClient
	socket     socketClient
	appToken   string
	botToken   string
	channelID  string // restrict to one channel when set
	botUserID  string
	mu         sync.Mutex
	connected  bool
	closed     bool
	inbound    chan bridge.InboundMessage
	cancelFunc context.CancelFunc
}

// AdapterOpts holds parameters for creating a Slack Adapter.
type AdapterOpts struct {
	AppToken  string // xapp-... Slack app-level token for Socket Mode
	BotToken  string // xoxb-... Slack bot token
	ChannelID string // if set, only messages from this channel are served
	// For testing: inject mocks instead of real Slack clients.
	Client slackClient
	Socket socketClient
}

// New creates a Slack Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Client == nil && (opts.AppToken == "" || opts.BotToken == "") {
		return nil, fmt.Errorf("slack: app token and bot token are required")
	}
	return &Adapter{
		client:    opts.Client,
		socket:    opts.Socket,
		appToken:  opts.AppToken,
		botToken:  opts.BotToken,
		channelID: opts.ChannelID,
		inbound:   make(chan bridge.InboundMessage, 100),
	}, nil
}

// Connect establishes the Socket Mode connection and resolves the bot user
// ID for self-message filtering.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("slack: adapter already closed")
	}
	if a.connected {
		return nil
	}

	if a.client == nil {
		api := slackapi.New(a.botToken, slackapi.OptionAppLevelToken(a.appToken))
		a.client = api
		a.socket = &realSocketClient{client: socketmode.New(api)}
	}

	auth, err := a.client.AuthTest()
	if err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	a.botUserID = auth.UserID
	a.connected = true
	return nil
}

// Listen starts the Socket Mode event pump and returns the inbound channel.
// Must be called after Connect.
func (a *Adapter) Listen(ctx context.Context) (<-chan bridge.InboundMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, fmt.Errorf("slack: not connected")
	}

	listenCtx, cancel := context.WithCancel(ctx)
	a.cancelFunc = cancel

	go func() {
		if err := a.socket.Run(); err != nil {
			log.Printf("slack: socket mode stopped: %v", err)
		}
	}()
	go a.pumpEvents(listenCtx)

	return a.inbound, nil
}

// Send posts a reply to a Slack channel.
func (a *Adapter) Send(ctx context.Context, msg bridge.OutboundMessage) error {
	a.mu.Lock()
	connected := a.connected
	a.mu.Unlock()
	if !connected {
		return fmt.Errorf("slack: not connected")
	}

	channelID := msg.ChannelID
	if channelID == "" {
		channelID = a.channelID
	}
	if channelID == "" {
		return fmt.Errorf("slack: no channel specified")
	}
	if _, _, err := a.client.PostMessage(channelID, slackapi.MsgOptionText(msg.Text, false)); err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// Close shuts down the adapter and closes the inbound channel.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	close(a.inbound)
	return nil
}

// pumpEvents reads Socket Mode events and converts them to InboundMessages.
func (a *Adapter) pumpEvents(ctx context.Context) {
	events := a.socket.EventsChan()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			a.handleSocketEvent(evt)
		}
	}
}

// handleSocketEvent processes a single Socket Mode event.
func (a *Adapter) handleSocketEvent(evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		if evt.Request != nil {
			a.socket.Ack(*evt.Request)
		}
		if apiEvent.Type != slackevents.CallbackEvent {
			return
		}
		if ev, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent); ok {
			a.handleMessage(ev)
		}
	case socketmode.EventTypeConnected:
		log.Printf("slack: connected to Socket Mode")
	case socketmode.EventTypeConnectionError:
		log.Printf("slack: connection error: %v", evt.Data)
	}
}

// handleMessage converts a Slack message event to an InboundMessage.
func (a *Adapter) handleMessage(ev *slackevents.MessageEvent) {
	// Filter self-messages, bot messages and edits.
	a.mu.Lock()
	botID := a.botUserID
	restrict := a.channelID
	closed := a.closed
	a.mu.Unlock()

	if closed || ev.User == "" || ev.User == botID || ev.BotID != "" || ev.SubType != "" {
		return
	}
	if restrict != "" && ev.Channel != restrict {
		return
	}

	msg := bridge.InboundMessage{
		Platform:  "slack",
		ChannelID: ev.Channel,
		UserID:    ev.User,
		UserName:  ev.User,
		Text:      ev.Text,
		Timestamp: parseSlackTimestamp(ev.TimeStamp),
	}

	select {
	case a.inbound <- msg:
	default:
		log.Printf("slack: inbound buffer full, dropping message from %s", ev.User)
	}
}

// parseSlackTimestamp converts a Slack "1712345678.000200" timestamp.
func parseSlackTimestamp(ts string) time.Time {
	secs, _, _ := strings.Cut(ts, ".")
	n, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(n, 0)
}
