package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/relay/internal/proto"
	"github.com/charmbracelet/relay/internal/stream"
)

// round makes one streaming request, sends the visible text to out and
// returns the function calls the model asked for.
func (s *Session) round(ctx context.Context, out *Output) ([]proto.FunctionCall, error) {
	req := s.request()
	s.logger.Debug("request", "model", req.Model, "messages", len(req.Messages), "functions", len(req.Functions))

	st := s.client.Request(ctx, req)
	defer st.Close() //nolint:errcheck

	acc := stream.NewAccumulator()
	var text strings.Builder
	for st.Next() {
		delta := acc.Add(st.Current())
		if delta == "" {
			continue
		}
		if s.opts.InjectContext {
			s.context.AppendDelta(delta)
		} else {
			text.WriteString(delta)
		}
		if err := out.send(ctx, delta); err != nil {
			s.completeStreaming()
			return nil, Classify(err)
		}
	}
	s.completeStreaming()
	if err := st.Err(); err != nil {
		return nil, Classify(err)
	}

	if text.Len() > 0 {
		s.context.Append(proto.Message{
			Role:    proto.RoleAssistant,
			Content: text.String(),
		})
	}

	calls := acc.FunctionCalls()
	for _, call := range calls {
		s.context.Append(proto.Message{
			Role:         proto.RoleAssistant,
			FunctionCall: &call,
		})
	}
	s.logger.Debug("round done", "choices", len(acc.Choices()), "calls", len(calls))
	return calls, nil
}

func (s *Session) completeStreaming() {
	if s.opts.InjectContext {
		s.context.CompleteStreaming()
	}
}
