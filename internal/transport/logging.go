// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"

	applog "spectrum/internal/log"
)

// LoggingTransport writes a one-line summary of every frame at debug level.
type LoggingTransport struct {
	count  atomic.Uint64
	closed atomic.Bool
}

func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs data. Values implementing fmt.Stringer are logged through String.
func (lt *LoggingTransport) Send(data any) error {
	if lt.closed.Load() {
		return ErrClosed
	}
	n := lt.count.Add(1)
	applog.Debugf("Transport: #%d %v", n, data)
	return nil
}

// Count returns how many values were sent.
func (lt *LoggingTransport) Count() uint64 {
	return lt.count.Load()
}

func (lt *LoggingTransport) Close() error {
	if lt.closed.Swap(true) {
		return nil
	}
	applog.Infof("Transport: LoggingTransport closed after %d frames", lt.count.Load())
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
