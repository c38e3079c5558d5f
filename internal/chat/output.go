package chat

import (
	"context"
)

// Output is the text streamed by a generation.
//
//	out := session.Send(ctx, "2+2?")
//	defer out.Close()
//	for out.Next() {
//		fmt.Print(out.Current())
//	}
//	if err := out.Err(); err != nil { ... }
type Output struct {
	ch      chan string
	cancel  context.CancelFunc
	current string
	err     error
}

func newOutput(cancel context.CancelFunc) *Output {
	return &Output{
		ch:     make(chan string),
		cancel: cancel,
	}
}

// Next waits for the next piece of text. It returns false once the
// generation is over, [Output.Err] tells whether it failed.
func (o *Output) Next() bool {
	s, ok := <-o.ch
	if !ok {
		return false
	}
	o.current = s
	return true
}

// Current returns the text received by the last call to [Output.Next].
func (o *Output) Current() string { return o.current }

// Err returns the error that ended the generation, if any. Only valid once
// [Output.Next] returned false.
//
// Failures of a started generation are *[Error] values carrying a [Kind].
// Starting while another generation is in flight returns [ErrBusy] as is,
// without a Kind and without changing the session state.
func (o *Output) Err() error { return o.err }

// Close stops the generation and waits for it to be over.
func (o *Output) Close() error {
	o.cancel()
	for range o.ch { //nolint:revive
	}
	return nil
}

func (o *Output) send(ctx context.Context, s string) error {
	select {
	case o.ch <- s:
		return nil
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck
	}
}

// finish ends the output. The error is set before the channel is closed, so
// readers observe it as soon as Next returns false.
func (o *Output) finish(err error) {
	o.err = err
	close(o.ch)
	o.cancel()
}
