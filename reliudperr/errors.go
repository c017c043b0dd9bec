// Package reliudperr defines the distinct, inspectable error kinds the
// transport raises, mirroring the exception hierarchy of the protocol
// this package reimplements (ArgumentError, ClientError, ServerError,
// BufferError, MessageError, NetworkEndpointError, plus a timeout
// kind). BufferError and NetworkEndpointError can wrap a cause
// (WrapBufferError, WrapNetworkEndpointError) with github.com/pkg/errors
// so callers can still walk the chain with errors.Unwrap/errors.Is; the
// other kinds carry a message only.
package reliudperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// ArgumentError reports an invalid argument to a public API call, such
// as a UDP port outside [1, 65535].
type ArgumentError struct {
	msg   string
	cause error
}

func NewArgumentError(format string, args ...interface{}) *ArgumentError {
	return &ArgumentError{msg: fmt.Sprintf(format, args...)}
}

func (e *ArgumentError) Error() string { return "argument error: " + e.msg }
func (e *ArgumentError) Unwrap() error { return e.cause }

// ClientError reports an operation invalid for the client endpoint's
// current state (connect while active, send while not connected).
type ClientError struct {
	msg   string
	cause error
}

func NewClientError(format string, args ...interface{}) *ClientError {
	return &ClientError{msg: fmt.Sprintf(format, args...)}
}

func (e *ClientError) Error() string { return "client error: " + e.msg }
func (e *ClientError) Unwrap() error { return e.cause }

// ServerError reports an operation invalid for a given peer's state,
// such as sending to a peer that is already disconnecting.
type ServerError struct {
	msg   string
	cause error
}

func NewServerError(format string, args ...interface{}) *ServerError {
	return &ServerError{msg: fmt.Sprintf(format, args...)}
}

func (e *ServerError) Error() string { return "server error: " + e.msg }
func (e *ServerError) Unwrap() error { return e.cause }

// BufferError reports a buffer underflow on read, or an attempt to
// send a message whose wire size exceeds the MTU.
type BufferError struct {
	msg   string
	cause error
}

func NewBufferError(format string, args ...interface{}) *BufferError {
	return &BufferError{msg: fmt.Sprintf(format, args...)}
}

func WrapBufferError(cause error, format string, args ...interface{}) *BufferError {
	return &BufferError{msg: fmt.Sprintf(format, args...), cause: errors.WithStack(cause)}
}

func (e *BufferError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("buffer error: %s: %v", e.msg, e.cause)
	}
	return "buffer error: " + e.msg
}
func (e *BufferError) Unwrap() error { return e.cause }

// MessageError reports an unknown type id, a duplicate registry
// entry, or a field value that violates its wire constraint.
type MessageError struct {
	msg   string
	cause error
}

func NewMessageError(format string, args ...interface{}) *MessageError {
	return &MessageError{msg: fmt.Sprintf(format, args...)}
}

func (e *MessageError) Error() string { return "message error: " + e.msg }
func (e *MessageError) Unwrap() error { return e.cause }

// NetworkEndpointError reports a socket-level failure other than the
// tolerated EWOULDBLOCK/ECONNRESET cases.
type NetworkEndpointError struct {
	msg   string
	cause error
}

func NewNetworkEndpointError(format string, args ...interface{}) *NetworkEndpointError {
	return &NetworkEndpointError{msg: fmt.Sprintf(format, args...)}
}

func WrapNetworkEndpointError(cause error, format string, args ...interface{}) *NetworkEndpointError {
	return &NetworkEndpointError{msg: fmt.Sprintf(format, args...), cause: errors.WithStack(cause)}
}

func (e *NetworkEndpointError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("network endpoint error: %s: %v", e.msg, e.cause)
	}
	return "network endpoint error: " + e.msg
}
func (e *NetworkEndpointError) Unwrap() error { return e.cause }

// TimeoutError reports that no inbound traffic was seen within the
// configured timeout window.
type TimeoutError struct {
	msg string
}

func NewTimeoutError(format string, args ...interface{}) *TimeoutError {
	return &TimeoutError{msg: fmt.Sprintf(format, args...)}
}

func (e *TimeoutError) Error() string { return "connection timed out: " + e.msg }
