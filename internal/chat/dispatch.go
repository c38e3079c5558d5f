package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/relay/internal/proto"
	"golang.org/x/sync/errgroup"
)

// dispatch runs all calls concurrently and appends their results to the
// conversation. The first failure cancels the calls still running. Results
// of the calls that already succeeded are kept.
func (s *Session) dispatch(ctx context.Context, calls []proto.FunctionCall) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, call := range calls {
		g.Go(func() error {
			err := s.call(gctx, call)
			if s.opts.OnFunctionCall != nil {
				s.opts.OnFunctionCall(proto.FunctionCallStatus{
					Name: call.Name,
					Err:  err,
				})
			}
			return err
		})
	}
	return g.Wait() //nolint:wrapcheck
}

func (s *Session) call(ctx context.Context, call proto.FunctionCall) error {
	spec, ok := s.registry.Lookup(call.Name)
	if !ok {
		return &Error{Kind: InvalidFunctionCallName, Function: call.Name}
	}
	exec, err := spec.Inject(call.Arguments)
	if err != nil {
		return &Error{Kind: InvalidFunctionCallArguments, Function: call.Name, Err: err}
	}

	start := time.Now()
	result, err := exec.Execute(ctx)
	s.logger.Debug("function called", "name", call.Name, "took", time.Since(start), "err", err)
	if err != nil {
		return &Error{Kind: FunctionCallError, Function: call.Name, Err: err}
	}
	// a sibling failed while this call was running.
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck
	}
	if result == "" {
		result = fmt.Sprintf("Function call to `%s` succeeded, function intentionally didn't respond anything.", call.Name)
	}
	s.context.Append(proto.Message{
		Role:    proto.RoleFunction,
		Name:    call.Name,
		Content: result,
	})
	return nil
}
