// SPDX-License-Identifier: MIT

/*
Package fifo assembles the incoming sample stream into fixed-size frames and
hands completed frames to the render goroutine through a single-slot mailbox.

Thread Safety:
  - Exactly one producer (the audio callback) calls Push/Write.
  - Exactly one consumer (the render driver) calls Ready/Acquire/Release.
  - The ready flag is the only shared state. The producer sets it, the
    consumer clears it. No locks.

Overrun policy: while a published frame has not been released, newly
completed frames are dropped, never written over the pending one. Two
buffers are used so that the producer keeps filling one while the consumer
owns the other.
*/
package fifo

import (
	"fmt"
	"sync/atomic"

	"spectrum/pkg/bitint"
)

// Assembler is a lock-free frame FIFO with a drop-on-overrun handoff.
type Assembler struct {
	size int

	// Producer state. Only the audio callback touches these.
	bufs   [2][]float64
	fill   int // index of the buffer being filled
	cursor int // write position in bufs[fill]

	// Shared state.
	ready     atomic.Bool  // a complete frame is waiting in bufs[readyIdx]
	readyIdx  atomic.Int32 // stored before ready is set
	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewAssembler pre-allocates both frame buffers. size must be a power of 2.
func NewAssembler(size int) (*Assembler, error) {
	if !bitint.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("frame size must be a power of 2, got %d", size)
	}
	return &Assembler{
		size: size,
		bufs: [2][]float64{
			make([]float64, size),
			make([]float64, size),
		},
	}, nil
}

// Size returns the frame length in samples.
func (a *Assembler) Size() int {
	return a.size
}

// Push appends one sample. When the frame completes it is published if the
// consumer has released the previous one, otherwise it is discarded.
// Performance Critical: called once per sample from the audio callback.
func (a *Assembler) Push(sample float32) {
	a.bufs[a.fill][a.cursor] = float64(sample)
	a.cursor++
	if a.cursor < a.size {
		return
	}
	a.cursor = 0

	if a.ready.Load() {
		a.dropped.Add(1)
		return
	}

	a.readyIdx.Store(int32(a.fill))
	a.ready.Store(true)
	a.published.Add(1)
	a.fill ^= 1
}

// Write pushes channel 0 of an interleaved block, one sample at a time,
// regardless of block size.
func (a *Assembler) Write(block []float32, channels int) {
	if channels < 1 {
		channels = 1
	}
	for i := 0; i < len(block); i += channels {
		a.Push(block[i])
	}
}

// Ready reports whether a complete frame is waiting.
func (a *Assembler) Ready() bool {
	return a.ready.Load()
}

// Acquire returns the pending frame. The caller owns the slice, and may
// overwrite it, until Release. ok is false when no frame is waiting.
func (a *Assembler) Acquire() (frame []float64, ok bool) {
	if !a.ready.Load() {
		return nil, false
	}
	return a.bufs[a.readyIdx.Load()], true
}

// Release hands the frame buffer back and lets the producer publish again.
func (a *Assembler) Release() {
	a.ready.Store(false)
}

// Published returns the number of frames handed to the consumer.
func (a *Assembler) Published() uint64 {
	return a.published.Load()
}

// Dropped returns the number of completed frames discarded on overrun.
func (a *Assembler) Dropped() uint64 {
	return a.dropped.Load()
}
