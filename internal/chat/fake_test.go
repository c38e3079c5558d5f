package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/relay/internal/proto"
	"github.com/charmbracelet/relay/internal/stream"
)

type fakeRound struct {
	chunks []proto.Chunk
	err    error
	block  chan struct{}
}

type fakeClient struct {
	mu       sync.Mutex
	rounds   []fakeRound
	requests []proto.Request
}

func (c *fakeClient) Request(ctx context.Context, req proto.Request) stream.Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.requests)
	c.requests = append(c.requests, req)
	if n >= len(c.rounds) {
		return &fakeStream{ctx: ctx, round: fakeRound{err: errors.New("unexpected request")}}
	}
	return &fakeStream{ctx: ctx, round: c.rounds[n]}
}

func (c *fakeClient) Requests() []proto.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests
}

type fakeStream struct {
	ctx     context.Context
	round   fakeRound
	i       int
	current proto.Chunk
	err     error
}

func (s *fakeStream) Next() bool {
	if s.round.block != nil {
		select {
		case <-s.round.block:
			s.round.block = nil
		case <-s.ctx.Done():
			s.err = s.ctx.Err()
			return false
		}
	}
	if s.i >= len(s.round.chunks) {
		s.err = s.round.err
		return false
	}
	s.current = s.round.chunks[s.i]
	s.i++
	return true
}

func (s *fakeStream) Current() proto.Chunk { return s.current }
func (s *fakeStream) Close() error         { return nil }
func (s *fakeStream) Err() error           { return s.err }

// assistantRound streams text as a single assistant choice.
func assistantRound(text string) fakeRound {
	chunks := []proto.Chunk{
		{Fragments: []proto.Fragment{{Role: proto.RoleAssistant}}},
	}
	for _, word := range strings.SplitAfter(text, " ") {
		chunks = append(chunks, proto.Chunk{
			Fragments: []proto.Fragment{{Content: word}},
		})
	}
	return fakeRound{chunks: chunks}
}

// callRound streams one function call per choice, arguments split in two.
func callRound(calls ...proto.FunctionCall) fakeRound {
	var first, second []proto.Fragment
	for i, call := range calls {
		args := string(call.Arguments)
		half := len(args) / 2
		first = append(first, proto.Fragment{
			Index: int64(i),
			Role:  proto.RoleAssistant,
			FunctionCall: &proto.FunctionCallDelta{
				Name:      call.Name,
				Arguments: args[:half],
			},
		})
		second = append(second, proto.Fragment{
			Index: int64(i),
			FunctionCall: &proto.FunctionCallDelta{
				Arguments: args[half:],
			},
		})
	}
	return fakeRound{chunks: []proto.Chunk{
		{Fragments: first},
		{Fragments: second},
	}}
}

func collect(t *testing.T, out *Output) (string, error) {
	t.Helper()
	var sb strings.Builder
	for out.Next() {
		sb.WriteString(out.Current())
	}
	return sb.String(), out.Err()
}
