package stream

import (
	"slices"

	"github.com/charmbracelet/relay/internal/proto"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Choice is what has been received so far for one choice index.
type Choice struct {
	Index        int64
	Role         string
	Content      string
	FunctionCall *proto.FunctionCall
}

// Apply merges a fragment into the given choice and returns the result.
//
// The role is only taken the first time one is seen. Content, function name
// and function arguments are appended in arrival order. The given choice is
// left untouched.
func Apply(c Choice, f proto.Fragment) Choice {
	c.Index = f.Index
	if c.Role == "" {
		c.Role = f.Role
	}
	c.Content += f.Content
	if f.FunctionCall != nil {
		call := &proto.FunctionCall{}
		if c.FunctionCall != nil {
			call.Name = c.FunctionCall.Name
			call.Arguments = slices.Clone(c.FunctionCall.Arguments)
		}
		call.Name += f.FunctionCall.Name
		call.Arguments = append(call.Arguments, f.FunctionCall.Arguments...)
		c.FunctionCall = call
	}
	return c
}

// Accumulator merges the chunks of a single round.
type Accumulator struct {
	choices *orderedmap.OrderedMap[int64, Choice]
}

// NewAccumulator returns an empty [Accumulator].
func NewAccumulator() *Accumulator {
	return &Accumulator{
		choices: orderedmap.New[int64, Choice](),
	}
}

// Add merges every fragment of the chunk and returns the text that should be
// shown for this tick: the content received by the first assistant choice,
// in the order choices were first seen, that received any.
func (a *Accumulator) Add(chunk proto.Chunk) string {
	deltas := map[int64]string{}
	for _, f := range chunk.Fragments {
		c, _ := a.choices.Get(f.Index)
		a.choices.Set(f.Index, Apply(c, f))
		deltas[f.Index] += f.Content
	}
	for pair := a.choices.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Role != proto.RoleAssistant {
			continue
		}
		if delta := deltas[pair.Key]; delta != "" {
			return delta
		}
	}
	return ""
}

// Choices returns the accumulated choices in the order they were first seen.
func (a *Accumulator) Choices() []Choice {
	result := make([]Choice, 0, a.choices.Len())
	for pair := a.choices.Oldest(); pair != nil; pair = pair.Next() {
		result = append(result, pair.Value)
	}
	return result
}

// FunctionCalls returns the function calls requested by any choice.
func (a *Accumulator) FunctionCalls() []proto.FunctionCall {
	var calls []proto.FunctionCall
	for pair := a.choices.Oldest(); pair != nil; pair = pair.Next() {
		call := pair.Value.FunctionCall
		if call == nil || (call.Name == "" && len(call.Arguments) == 0) {
			continue
		}
		calls = append(calls, *call)
	}
	return calls
}
