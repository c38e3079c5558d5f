// Package stream provides interfaces for streaming completions.
package stream

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charmbracelet/relay/internal/proto"
)

// Client is a streaming client.
type Client interface {
	Request(context.Context, proto.Request) Stream
}

// Stream is an ongoing completion stream.
type Stream interface {
	// returns false once the stream is exhausted or failed, check
	// [Stream.Err] afterwards
	Next() bool

	// fragments received in the current tick
	Current() proto.Chunk

	// closes the underlying stream
	Close() error

	// streaming error
	Err() error
}

// APIError is an error reported by the completion provider.
type APIError struct {
	StatusCode int
	Code       string
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code == "" {
		return fmt.Sprintf("api error: %s", msg)
	}
	return fmt.Sprintf("api error: %s: %s", e.Code, msg)
}
