package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/relay/internal/function"
	"github.com/charmbracelet/relay/internal/proto"
	"github.com/charmbracelet/relay/internal/stream"
	"github.com/stretchr/testify/require"
)

type cityParams struct {
	City string `json:"city"`
}

var weatherArgs = []byte(`{"city":"Paris"}`)

func registry(t *testing.T, specs ...function.Spec) *function.Set {
	t.Helper()
	specs = append(specs, function.New("get_weather", "Current weather of a city", func(_ context.Context, p cityParams) (string, error) {
		return "sunny in " + p.City, nil
	}))
	set, err := function.NewSet(specs...)
	require.NoError(t, err)
	return set
}

func TestSessionSimpleAnswer(t *testing.T) {
	for name, inject := range map[string]bool{
		"injected":     true,
		"not injected": false,
	} {
		t.Run(name, func(t *testing.T) {
			client := &fakeClient{rounds: []fakeRound{assistantRound("4")}}

			var mu sync.Mutex
			var changes [][2]State
			sess := New(client, nil, nil, Options{
				Model:         "gpt-4o",
				InjectContext: inject,
				OnStateChange: func(from, to State) {
					mu.Lock()
					defer mu.Unlock()
					changes = append(changes, [2]State{from, to})
				},
			})
			require.Equal(t, StateIdle, sess.State())

			got, err := collect(t, sess.Send(context.Background(), "2+2?"))
			require.NoError(t, err)
			require.Equal(t, "4", got)
			require.Equal(t, StateReady, sess.State())

			require.Equal(t, []proto.Message{
				{Role: proto.RoleUser, Content: "2+2?"},
				{Role: proto.RoleAssistant, Content: "4"},
			}, sess.Context().Messages())

			requests := client.Requests()
			require.Len(t, requests, 1)
			require.Equal(t, "gpt-4o", requests[0].Model)
			require.Equal(t, []proto.Message{
				{Role: proto.RoleUser, Content: "2+2?"},
			}, requests[0].Messages)

			mu.Lock()
			defer mu.Unlock()
			require.Equal(t, [][2]State{
				{StateIdle, StateGenerating},
				{StateGenerating, StateReady},
			}, changes)
		})
	}
}

func TestSessionFunctionCall(t *testing.T) {
	client := &fakeClient{rounds: []fakeRound{
		callRound(proto.FunctionCall{Name: "get_weather", Arguments: weatherArgs}),
		assistantRound("It's sunny in Paris"),
	}}

	var mu sync.Mutex
	var statuses []proto.FunctionCallStatus
	sess := New(client, registry(t), nil, Options{
		OnFunctionCall: func(s proto.FunctionCallStatus) {
			mu.Lock()
			defer mu.Unlock()
			statuses = append(statuses, s)
		},
	})

	got, err := collect(t, sess.Send(context.Background(), "weather in Paris?"))
	require.NoError(t, err)
	require.Equal(t, "It's sunny in Paris", got)
	require.Equal(t, StateReady, sess.State())

	require.Equal(t, []proto.Message{
		{Role: proto.RoleUser, Content: "weather in Paris?"},
		{Role: proto.RoleAssistant, FunctionCall: &proto.FunctionCall{Name: "get_weather", Arguments: weatherArgs}},
		{Role: proto.RoleFunction, Name: "get_weather", Content: "sunny in Paris"},
		{Role: proto.RoleAssistant, Content: "It's sunny in Paris"},
	}, sess.Context().Messages())

	requests := client.Requests()
	require.Len(t, requests, 2)
	require.Len(t, requests[0].Functions, 1)
	require.Equal(t, "get_weather", requests[0].Functions[0].Name)
	require.Len(t, requests[1].Messages, 3)
	require.Equal(t, proto.RoleFunction, requests[1].Messages[2].Role)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []proto.FunctionCallStatus{{Name: "get_weather"}}, statuses)
}

func TestSessionEmptyFunctionResult(t *testing.T) {
	noop := function.New("noop", "does nothing", func(context.Context, struct{}) (string, error) {
		return "", nil
	})
	client := &fakeClient{rounds: []fakeRound{
		callRound(proto.FunctionCall{Name: "noop", Arguments: []byte(`{}`)}),
		assistantRound("done"),
	}}
	sess := New(client, registry(t, noop), nil, Options{})

	_, err := collect(t, sess.Send(context.Background(), "do nothing"))
	require.NoError(t, err)

	msgs := sess.Context().Messages()
	require.Len(t, msgs, 4)
	require.Equal(t, proto.Message{
		Role:    proto.RoleFunction,
		Name:    "noop",
		Content: "Function call to `noop` succeeded, function intentionally didn't respond anything.",
	}, msgs[2])
}

func TestSessionUnknownFunction(t *testing.T) {
	client := &fakeClient{rounds: []fakeRound{
		callRound(
			proto.FunctionCall{Name: "get_weather", Arguments: weatherArgs},
			proto.FunctionCall{Name: "unknown_fn", Arguments: []byte(`{}`)},
		),
	}}
	sess := New(client, registry(t), nil, Options{})

	got, err := collect(t, sess.Send(context.Background(), "weather in Paris?"))
	require.Empty(t, got)
	require.ErrorIs(t, err, InvalidFunctionCallName)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "unknown_fn", cerr.Function)
	require.Equal(t, StateError, sess.State())

	// the other call still completed and its result is kept.
	require.Contains(t, sess.Context().Messages(), proto.Message{
		Role:    proto.RoleFunction,
		Name:    "get_weather",
		Content: "sunny in Paris",
	})
	require.Len(t, client.Requests(), 1)
}

func TestSessionInvalidArguments(t *testing.T) {
	client := &fakeClient{rounds: []fakeRound{
		callRound(proto.FunctionCall{Name: "get_weather", Arguments: []byte(`{"city":`)}),
	}}
	sess := New(client, registry(t), nil, Options{})

	_, err := collect(t, sess.Generate(context.Background()))
	require.ErrorIs(t, err, InvalidFunctionCallArguments)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "get_weather", cerr.Function)
	require.Error(t, cerr.Err)
	require.Equal(t, StateError, sess.State())
}

func TestSessionFunctionFailure(t *testing.T) {
	errBoom := errors.New("boom")
	var cancelled atomic.Bool
	fail := function.New("fail", "always fails", func(context.Context, struct{}) (string, error) {
		return "", errBoom
	})
	wait := function.New("wait", "waits until cancelled", func(ctx context.Context, _ struct{}) (string, error) {
		<-ctx.Done()
		cancelled.Store(true)
		return "", ctx.Err()
	})
	late := function.New("late", "succeeds once cancelled", func(ctx context.Context, _ struct{}) (string, error) {
		<-ctx.Done()
		return "too late", nil
	})

	client := &fakeClient{rounds: []fakeRound{
		callRound(
			proto.FunctionCall{Name: "wait", Arguments: []byte(`{}`)},
			proto.FunctionCall{Name: "late", Arguments: []byte(`{}`)},
			proto.FunctionCall{Name: "fail", Arguments: []byte(`{}`)},
		),
	}}
	sess := New(client, registry(t, fail, wait, late), nil, Options{})

	_, err := collect(t, sess.Generate(context.Background()))
	require.ErrorIs(t, err, FunctionCallError)
	require.ErrorIs(t, err, errBoom)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "fail", cerr.Function)
	require.True(t, cancelled.Load())
	require.Equal(t, StateError, sess.State())

	for _, msg := range sess.Context().Messages() {
		require.NotEqual(t, proto.RoleFunction, msg.Role, msg.Name)
	}
}

func TestSessionTransportError(t *testing.T) {
	client := &fakeClient{rounds: []fakeRound{
		{err: &stream.APIError{StatusCode: 429, Code: "insufficient_quota"}},
		assistantRound("ok"),
	}}
	sess := New(client, nil, nil, Options{})

	_, err := collect(t, sess.Send(context.Background(), "hi"))
	require.ErrorIs(t, err, InsufficientQuota)
	require.Equal(t, StateError, sess.State())

	// a failed session can generate again.
	got, err := collect(t, sess.Generate(context.Background()))
	require.NoError(t, err)
	require.Equal(t, "ok", got)
	require.Equal(t, StateReady, sess.State())
}

func TestSessionPartialStream(t *testing.T) {
	round := assistantRound("partial answer")
	round.err = errors.New("connection reset")
	client := &fakeClient{rounds: []fakeRound{round}}
	sess := New(client, nil, nil, Options{InjectContext: true})

	got, err := collect(t, sess.Send(context.Background(), "hi"))
	require.Equal(t, "partial answer", got)
	require.ErrorIs(t, err, GenerationError)
	require.ErrorContains(t, err, "connection reset")

	// injected text is kept.
	require.Equal(t, []proto.Message{
		{Role: proto.RoleUser, Content: "hi"},
		{Role: proto.RoleAssistant, Content: "partial answer"},
	}, sess.Context().Messages())
}

func TestSessionBusy(t *testing.T) {
	client := &fakeClient{rounds: []fakeRound{
		{block: make(chan struct{})},
	}}
	sess := New(client, nil, nil, Options{})

	first := sess.Send(context.Background(), "hi")
	require.Equal(t, StateGenerating, sess.State())

	got, err := collect(t, sess.Send(context.Background(), "again"))
	require.Empty(t, got)
	require.ErrorIs(t, err, ErrBusy)
	var cerr *Error
	require.False(t, errors.As(err, &cerr))
	require.Equal(t, StateGenerating, sess.State())

	require.NoError(t, first.Close())
	require.ErrorIs(t, first.Err(), context.Canceled)
	require.ErrorIs(t, first.Err(), GenerationError)
	require.Equal(t, StateError, sess.State())
	require.Equal(t, []proto.Message{
		{Role: proto.RoleUser, Content: "hi"},
	}, sess.Context().Messages())
}

func TestSessionMaxRounds(t *testing.T) {
	noop := function.New("noop", "does nothing", func(context.Context, struct{}) (string, error) {
		return "ok", nil
	})
	call := proto.FunctionCall{Name: "noop", Arguments: []byte(`{}`)}
	client := &fakeClient{rounds: []fakeRound{
		callRound(call),
		callRound(call),
		callRound(call),
	}}
	sess := New(client, registry(t, noop), nil, Options{MaxRounds: 2})

	_, err := collect(t, sess.Generate(context.Background()))
	require.ErrorIs(t, err, GenerationError)
	require.ErrorIs(t, err, ErrMaxRounds)
	require.Len(t, client.Requests(), 2)
}
