package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/relay/internal/chat"
)

// newUserErrorf is a user-facing error.
// this function is mostly to avoid linters complain about errors starting with a capitalized letter.
func newUserErrorf(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

// relayError is a wrapper around an error that adds additional context.
type relayError struct {
	err    error
	reason string
}

func (m relayError) Error() string {
	return m.err.Error()
}

func (m relayError) Unwrap() error {
	return m.err
}

func (m relayError) Reason() string {
	return m.reason
}

// generationError explains a failed generation to the user.
func generationError(err error, api string) error {
	var reason string
	switch {
	case errors.Is(err, chat.ErrBusy):
		reason = "A response is already being generated."
	case errors.Is(err, chat.InvalidAPIToken):
		reason = fmt.Sprintf("Invalid %s API key.", api)
	case errors.Is(err, chat.InsufficientQuota):
		reason = fmt.Sprintf("You've run out of %s quota.", api)
	case errors.Is(err, chat.InvalidFunctionCallName):
		reason = "The model asked for a function that does not exist."
	case errors.Is(err, chat.InvalidFunctionCallArguments):
		reason = "The model called a function with invalid arguments."
	case errors.Is(err, chat.FunctionCallError):
		reason = "Function call failed."
	case errors.Is(err, chat.ErrMaxRounds):
		reason = "The model kept calling functions past the round limit."
	default:
		reason = fmt.Sprintf("There was a problem with the %s API request.", api)
	}
	return relayError{err: err, reason: reason}
}
