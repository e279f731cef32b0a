// Package history stores per-session chat transcripts.
package history

// Message roles.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// Message is one turn of a conversation.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// DefaultSession is used when a client supplies no session identifier.
const DefaultSession = "default"

// Store is the chat history contract. Appends within one session must keep
// insertion order; reads of unknown sessions return an empty history, and
// clearing an unknown session is a no-op.
type Store interface {
	Append(sessionID string, msg Message) error
	History(sessionID string) ([]Message, error)
	Clear(sessionID string) error
	Sessions() ([]string, error)
}
