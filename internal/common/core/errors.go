package core

import "fmt"

// InternalError is a type for plumbing-level errors (marshalling, transport,
// decoding) that never reach a client directly. It is a string that can be
// formatted with arguments, avoiding repeating the formatted message at
// every call site. User-visible failures use model.ApiError instead.
type InternalError string

const (
	ErrFailedToUnmarshalResponse InternalError = "failed to unmarshal response %s"
	ErrFailedToMarshalResponse   InternalError = "failed to marshal response %s"
	ErrFailedToReadResponse      InternalError = "failed to read response body %s"

	ErrFailedToUnmarshalParams InternalError = "failed to unmarshal params %s"
	ErrFailedToMarshalParams   InternalError = "failed to marshal params %s"

	ErrFailedToMakeRequest InternalError = "failed to make request %s"

	ErrFailedToParseURL  InternalError = "failed to parse URL %s"
	ErrFailedToDoRequest InternalError = "failed to do request %s"

	ErrUnexpectedResponseType InternalError = "unexpected response type %T"
)

// WithArgs returns a new error with the given arguments.
func (e InternalError) WithArgs(args ...any) error {
	return fmt.Errorf(string(e), args...)
}
