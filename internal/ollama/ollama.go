// Package ollama implements [stream.Client] for Ollama's native chat API.
package ollama

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/charmbracelet/relay/internal/proto"
	"github.com/charmbracelet/relay/internal/stream"
	"github.com/ollama/ollama/api"
)

var _ stream.Client = &Client{}

// Config represents the configuration for the Ollama API client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// DefaultConfig returns the default configuration for the Ollama API client.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://localhost:11434/",
		HTTPClient: &http.Client{},
	}
}

// Client ollama client.
type Client struct {
	*api.Client
}

// New creates a new [Client] with the given [Config].
func New(config Config) (*Client, error) {
	u, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		Client: api.NewClient(u, httpClient),
	}, nil
}

// Request implements stream.Client.
//
// Ollama calls back once per streamed message, the callbacks are handed to
// the returned stream through a channel.
func (c *Client) Request(ctx context.Context, request proto.Request) stream.Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		responses: make(chan api.ChatResponse),
		cancel:    cancel,
	}
	body := fromProtoRequest(request)
	go func() {
		defer close(s.responses)
		s.err = c.Chat(ctx, body, func(resp api.ChatResponse) error {
			select {
			case s.responses <- resp:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	return s
}

// Stream ollama stream.
type Stream struct {
	responses chan api.ChatResponse
	cancel    context.CancelFunc
	current   proto.Chunk
	calls     int64
	err       error
}

// Next implements stream.Stream.
func (s *Stream) Next() bool {
	resp, ok := <-s.responses
	if !ok {
		return false
	}
	s.current = toProtoChunk(resp, s.calls)
	s.calls += int64(len(resp.Message.ToolCalls))
	return true
}

// Current implements stream.Stream.
func (s *Stream) Current() proto.Chunk { return s.current }

// Close implements stream.Stream.
func (s *Stream) Close() error {
	s.cancel()
	for range s.responses { //nolint:revive
	}
	return nil
}

// Err implements stream.Stream. It is only valid once [Stream.Next]
// returned false.
func (s *Stream) Err() error {
	if s.err == nil || errors.Is(s.err, context.Canceled) {
		return s.err
	}
	var statusErr api.StatusError
	if errors.As(s.err, &statusErr) {
		return &stream.APIError{
			StatusCode: statusErr.StatusCode,
			Message:    statusErr.ErrorMessage,
		}
	}
	return s.err
}
