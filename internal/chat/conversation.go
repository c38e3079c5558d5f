package chat

import (
	"slices"
	"sync"

	"github.com/charmbracelet/relay/internal/proto"
)

// Context is the conversation a [Session] reads from and appends to.
//
// Implementations must be safe for concurrent use: function results are
// appended from several goroutines at once.
type Context interface {
	// Append adds a message to the end of the conversation.
	Append(proto.Message)

	// AppendDelta adds streamed text to the in-progress assistant message,
	// starting one if needed.
	AppendDelta(string)

	// CompleteStreaming marks the in-progress assistant message as done.
	CompleteStreaming()

	// Messages returns a snapshot of the conversation.
	Messages() []proto.Message
}

// Conversation is an in-memory [Context].
type Conversation struct {
	mu        sync.Mutex
	messages  []proto.Message
	streaming bool
}

var _ Context = &Conversation{}

// NewConversation creates a new [Conversation] holding the given messages.
func NewConversation(messages ...proto.Message) *Conversation {
	return &Conversation{
		messages: slices.Clone(messages),
	}
}

// Append implements [Context].
func (c *Conversation) Append(msg proto.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streaming = false
	c.messages = append(c.messages, msg)
}

// AppendDelta implements [Context].
func (c *Conversation) AppendDelta(delta string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.streaming {
		c.streaming = true
		c.messages = append(c.messages, proto.Message{
			Role: proto.RoleAssistant,
		})
	}
	c.messages[len(c.messages)-1].Content += delta
}

// CompleteStreaming implements [Context].
func (c *Conversation) CompleteStreaming() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streaming = false
}

// Messages implements [Context].
func (c *Conversation) Messages() []proto.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.messages)
}
