// Package proto shared protocol.
package proto

import (
	"fmt"
	"strings"
)

// Roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleFunction  = "function"
)

// Fragment is a partial update to a single choice, as received in one tick
// of a streamed completion.
type Fragment struct {
	Index        int64
	Role         string
	Content      string
	FunctionCall *FunctionCallDelta
}

// FunctionCallDelta is a partial function call. Both fields are appended to
// whatever was received before for the same choice.
type FunctionCallDelta struct {
	Name      string
	Arguments string
}

// Chunk holds every fragment received in one tick of the stream.
type Chunk struct {
	Fragments []Fragment
}

// FunctionCallStatus is the outcome of a function call.
type FunctionCallStatus struct {
	Name string
	Err  error
}

func (c FunctionCallStatus) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\n> Ran function: `%s`\n", c.Name))
	if c.Err != nil {
		sb.WriteString(">\n> *Failed*:\n> ```\n")
		for line := range strings.SplitSeq(c.Err.Error(), "\n") {
			sb.WriteString("> " + line)
		}
		sb.WriteString("\n> ```\n")
	}
	sb.WriteByte('\n')
	return sb.String()
}

// Message is a message in the conversation.
type Message struct {
	Role    string
	Content string

	// Name tags function results with the function that produced them.
	Name string

	// FunctionCall is set on assistant messages that requested a call.
	FunctionCall *FunctionCall
}

// FunctionCall is a complete request to invoke a function.
type FunctionCall struct {
	Name      string
	Arguments []byte
}

// FunctionDefinition describes a function the model may call.
type FunctionDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is a chat request.
type Request struct {
	Messages    []Message
	Model       string
	User        string
	Functions   []FunctionDefinition
	Choices     *int64
	Temperature *float64
	TopP        *float64
	Stop        []string
	MaxTokens   *int64
}

// Conversation is a conversation.
type Conversation []Message

func (cc Conversation) String() string {
	var sb strings.Builder
	for _, msg := range cc {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case RoleSystem:
			sb.WriteString("**System**: ")
		case RoleUser:
			sb.WriteString("**User**: ")
		case RoleFunction:
			sb.WriteString(FunctionCallStatus{Name: msg.Name}.String())
			continue
		case RoleAssistant:
			sb.WriteString("**Assistant**: ")
		}
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")
	}
	return sb.String()
}
