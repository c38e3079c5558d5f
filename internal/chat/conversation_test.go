package chat

import (
	"sync"
	"testing"

	"github.com/charmbracelet/relay/internal/proto"
	"github.com/stretchr/testify/require"
)

func TestConversation(t *testing.T) {
	t.Run("streaming", func(t *testing.T) {
		c := NewConversation(proto.Message{Role: proto.RoleUser, Content: "2+2?"})
		c.AppendDelta("The answer ")
		c.AppendDelta("is 4")
		c.CompleteStreaming()
		c.AppendDelta("again")
		require.Equal(t, []proto.Message{
			{Role: proto.RoleUser, Content: "2+2?"},
			{Role: proto.RoleAssistant, Content: "The answer is 4"},
			{Role: proto.RoleAssistant, Content: "again"},
		}, c.Messages())
	})

	t.Run("append ends streaming", func(t *testing.T) {
		c := NewConversation()
		c.AppendDelta("a")
		c.Append(proto.Message{Role: proto.RoleFunction, Name: "f", Content: "r"})
		c.AppendDelta("b")
		require.Equal(t, []proto.Message{
			{Role: proto.RoleAssistant, Content: "a"},
			{Role: proto.RoleFunction, Name: "f", Content: "r"},
			{Role: proto.RoleAssistant, Content: "b"},
		}, c.Messages())
	})

	t.Run("snapshot", func(t *testing.T) {
		c := NewConversation(proto.Message{Role: proto.RoleUser, Content: "hi"})
		msgs := c.Messages()
		msgs[0].Content = "changed"
		require.Equal(t, "hi", c.Messages()[0].Content)
	})

	t.Run("concurrent appends", func(t *testing.T) {
		c := NewConversation()
		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.Append(proto.Message{Role: proto.RoleFunction, Name: "f"})
			}()
		}
		wg.Wait()
		require.Len(t, c.Messages(), 50)
	})
}
