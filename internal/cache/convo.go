package cache

import (
	"github.com/charmbracelet/relay/internal/proto"
)

// Conversations is the conversation cache.
type Conversations struct {
	cache *Cache[[]proto.Message]
}

// NewConversations creates a new conversation cache.
func NewConversations(dir string) (*Conversations, error) {
	cache, err := New[[]proto.Message](dir, ConversationCache)
	if err != nil {
		return nil, err
	}
	return &Conversations{
		cache: cache,
	}, nil
}

// Read returns the messages of a conversation.
func (c *Conversations) Read(id string) ([]proto.Message, error) {
	return c.cache.Get(id)
}

// Write saves the messages of a conversation.
func (c *Conversations) Write(id string, messages []proto.Message) error {
	return c.cache.Put(id, messages)
}

// Delete a conversation.
func (c *Conversations) Delete(id string) error {
	return c.cache.Delete(id)
}
