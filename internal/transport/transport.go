// SPDX-License-Identifier: MIT

// Package transport carries rendered frames out of the process to painters.
package transport

import "errors"

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport is closed")

// Transport defines a generic interface for sending rendered frames.
// Send is called from the render goroutine once per produced frame and must
// not block it for long. Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Cloner is implemented by values whose backing storage is reused by the
// caller after Send returns. Transports that queue data clone it first.
type Cloner interface {
	Clone() any
}

// detach returns a copy of data that is safe to keep after Send returns.
func detach(data any) any {
	if c, ok := data.(Cloner); ok {
		return c.Clone()
	}
	return data
}
