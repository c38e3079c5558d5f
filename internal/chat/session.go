// Package chat runs generations: it streams completions, calls the functions
// the model asks for and feeds the results back until the model is done.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/relay/internal/function"
	"github.com/charmbracelet/relay/internal/proto"
	"github.com/charmbracelet/relay/internal/stream"
)

// ErrMaxRounds happens when the model keeps asking for function calls past
// [Options.MaxRounds].
var ErrMaxRounds = errors.New("too many rounds")

// Options configure a [Session].
type Options struct {
	Model       string
	User        string
	Choices     *int64
	Temperature *float64
	TopP        *float64
	MaxTokens   *int64
	Stop        []string

	// InjectContext appends streamed text to the conversation as it
	// arrives instead of once the round is over.
	InjectContext bool

	// MaxRounds limits the number of requests made by a single
	// generation. Zero means no limit.
	MaxRounds int

	Logger *log.Logger

	// OnStateChange is called after every state change.
	OnStateChange func(from, to State)

	// OnFunctionCall is called after every function call. It may be called
	// concurrently.
	OnFunctionCall func(proto.FunctionCallStatus)
}

// Session is a conversation with a model.
type Session struct {
	client   stream.Client
	registry function.Registry
	context  Context
	opts     Options
	logger   *log.Logger
	state    *machine
}

// New creates a new [Session]. A nil registry means no functions, and a nil
// context starts an empty conversation.
func New(client stream.Client, registry function.Registry, conversation Context, opts Options) *Session {
	if registry == nil {
		registry, _ = function.NewSet()
	}
	if conversation == nil {
		conversation = NewConversation()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Session{
		client:   client,
		registry: registry,
		context:  conversation,
		opts:     opts,
		logger:   logger,
		state:    &machine{onChange: opts.OnStateChange},
	}
}

// State returns the current state of the session.
func (s *Session) State() State { return s.state.current() }

// Context returns the conversation of the session.
func (s *Session) Context() Context { return s.context }

// Send adds a user message to the conversation and starts a generation.
func (s *Session) Send(ctx context.Context, content string) *Output {
	return s.start(ctx, &proto.Message{
		Role:    proto.RoleUser,
		Content: content,
	})
}

// Generate starts a generation from the current conversation.
func (s *Session) Generate(ctx context.Context) *Output {
	return s.start(ctx, nil)
}

func (s *Session) start(ctx context.Context, msg *proto.Message) *Output {
	ctx, cancel := context.WithCancel(ctx)
	out := newOutput(cancel)
	if err := s.state.begin(); err != nil {
		out.finish(err)
		return out
	}
	if msg != nil {
		s.context.Append(*msg)
	}
	go s.run(ctx, out)
	return out
}

func (s *Session) run(ctx context.Context, out *Output) {
	err := Classify(s.loop(ctx, out))
	if err != nil {
		s.logger.Debug("generation failed", "err", err)
		_ = s.state.transition(StateError)
	} else {
		_ = s.state.transition(StateReady)
	}
	out.finish(err)
}

func (s *Session) loop(ctx context.Context, out *Output) error {
	for n := 1; ; n++ {
		if s.opts.MaxRounds > 0 && n > s.opts.MaxRounds {
			return &Error{
				Kind: GenerationError,
				Err:  fmt.Errorf("%w: %d", ErrMaxRounds, s.opts.MaxRounds),
			}
		}
		s.logger.Debug("starting round", "round", n)
		calls, err := s.round(ctx, out)
		if err != nil {
			return err
		}
		if len(calls) == 0 {
			return nil
		}
		if err := s.dispatch(ctx, calls); err != nil {
			return err
		}
	}
}

func (s *Session) request() proto.Request {
	return proto.Request{
		Messages:    s.context.Messages(),
		Model:       s.opts.Model,
		User:        s.opts.User,
		Functions:   s.registry.Definitions(),
		Choices:     s.opts.Choices,
		Temperature: s.opts.Temperature,
		TopP:        s.opts.TopP,
		Stop:        s.opts.Stop,
		MaxTokens:   s.opts.MaxTokens,
	}
}
