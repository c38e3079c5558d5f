// Package openai implements [stream.Client] for OpenAI compatible APIs.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/relay/internal/proto"
	"github.com/charmbracelet/relay/internal/stream"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/tidwall/gjson"
)

var _ stream.Client = &Client{}

// Client is the openai client.
type Client struct {
	*openai.Client
}

// Config represents the configuration for the OpenAI API client.
type Config struct {
	AuthToken  string
	BaseURL    string
	HTTPClient interface {
		Do(*http.Request) (*http.Response, error)
	}
	APIType        string
	MaxRetries     *int
	RequestTimeout time.Duration
}

// DefaultConfig returns the default configuration for the OpenAI API client.
func DefaultConfig(authToken string) Config {
	return Config{
		AuthToken: authToken,
	}
}

// New creates a new [Client] with the given [Config].
func New(config Config) *Client {
	opts := []option.RequestOption{}

	if config.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(config.HTTPClient))
	}
	if config.MaxRetries != nil {
		opts = append(opts, option.WithMaxRetries(*config.MaxRetries))
	}
	if config.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.RequestTimeout))
	}

	if config.APIType == "azure-ad" {
		opts = append(opts, azure.WithAPIKey(config.AuthToken))
		if config.BaseURL != "" {
			opts = append(opts, azure.WithEndpoint(config.BaseURL, "v1"))
		}
	} else {
		opts = append(opts, option.WithAPIKey(config.AuthToken))
		if config.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(config.BaseURL))
		}
	}
	client := openai.NewClient(opts...)
	return &Client{
		Client: &client,
	}
}

// Request makes a new request and returns a stream.
func (c *Client) Request(ctx context.Context, request proto.Request) stream.Stream {
	body := openai.ChatCompletionNewParams{
		Model:     request.Model,
		Messages:  fromProtoMessages(request.Messages),
		Functions: fromProtoFunctions(request.Functions),
	}
	if request.User != "" {
		body.User = openai.String(request.User)
	}
	if request.Choices != nil {
		body.N = openai.Int(*request.Choices)
	}
	if request.Temperature != nil {
		body.Temperature = openai.Float(*request.Temperature)
	}
	if request.TopP != nil {
		body.TopP = openai.Float(*request.TopP)
	}
	if len(request.Stop) > 0 {
		body.Stop = openai.ChatCompletionNewParamsStopUnion{
			OfStringArray: request.Stop,
		}
	}
	if request.MaxTokens != nil {
		body.MaxTokens = openai.Int(*request.MaxTokens)
	}

	return &Stream{
		stream: c.Chat.Completions.NewStreaming(ctx, body),
	}
}

// Stream openai stream.
type Stream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
}

// Close implements stream.Stream.
func (s *Stream) Close() error { return s.stream.Close() } //nolint:wrapcheck

// Current implements stream.Stream.
func (s *Stream) Current() proto.Chunk {
	return toProtoChunk(s.stream.Current())
}

// Err implements stream.Stream.
func (s *Stream) Err() error { return toAPIError(s.stream.Err()) }

// Next implements stream.Stream.
func (s *Stream) Next() bool { return s.stream.Next() }

const streamErrPrefix = "received error while streaming: "

// toAPIError turns errors reported by the API, either as an HTTP status or
// as an error event inside the stream, into a [stream.APIError].
func toAPIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &stream.APIError{
			StatusCode: apiErr.StatusCode,
			Code:       apiErr.Code,
			Type:       apiErr.Type,
			Message:    apiErr.Message,
		}
	}

	_, payload, ok := strings.Cut(err.Error(), streamErrPrefix)
	if !ok || !gjson.Valid(payload) {
		return err
	}
	result := gjson.Parse(payload)
	if nested := result.Get("error"); nested.IsObject() {
		result = nested
	}
	return &stream.APIError{
		Code:    result.Get("code").String(),
		Type:    result.Get("type").String(),
		Message: result.Get("message").String(),
	}
}
