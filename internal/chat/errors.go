package chat

import (
	"errors"
	"strings"

	"github.com/charmbracelet/relay/internal/stream"
)

// Kind is the class of a generation failure.
//
// Kinds are errors themselves, so they can be matched with [errors.Is]:
//
//	if errors.Is(err, chat.InsufficientQuota) { ... }
type Kind int

// Failure kinds.
const (
	InvalidAPIToken Kind = iota + 1
	InsufficientQuota
	GenerationError
	InvalidFunctionCallName
	InvalidFunctionCallArguments
	FunctionCallError
)

func (k Kind) String() string {
	switch k {
	case InvalidAPIToken:
		return "invalid api token"
	case InsufficientQuota:
		return "insufficient quota"
	case GenerationError:
		return "generation error"
	case InvalidFunctionCallName:
		return "invalid function call name"
	case InvalidFunctionCallArguments:
		return "invalid function call arguments"
	case FunctionCallError:
		return "function call error"
	default:
		return "unknown error"
	}
}

func (k Kind) Error() string { return k.String() }

// Error is a classified failure of a generation.
type Error struct {
	Kind Kind

	// Function is the name of the function involved, if any.
	Function string

	Err error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Function != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Function)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the [Kind] of this error.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// Provider error codes.
const (
	codeInvalidAPIKey     = "invalid_api_key"
	codeInsufficientQuota = "insufficient_quota"
)

// Classify maps a transport failure into an [*Error].
//
// Errors already classified are returned as is.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		return err
	}
	var apiErr *stream.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case codeInvalidAPIKey:
			return &Error{Kind: InvalidAPIToken, Err: err}
		case codeInsufficientQuota:
			return &Error{Kind: InsufficientQuota, Err: err}
		}
	}
	return &Error{Kind: GenerationError, Err: err}
}
