// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	applog "spectrum/internal/log"
	"spectrum/internal/render"
	"spectrum/internal/transport"
)

const (
	headerSize   = 4 + 8 + 2
	floatsPerBar = 4
	// MaxBars keeps a packet inside one UDP datagram.
	MaxBars = (65507 - headerSize) / (floatsPerBar * 4)
)

var ErrShortPacket = errors.New("packet too short")

// UDPPublisher packs rendered frames into a binary format and sends them
// through a UDPSender. Frames arriving faster than the configured interval
// are skipped.
type UDPPublisher struct {
	sender   *UDPSender
	interval time.Duration

	mu          sync.Mutex
	lastSent    time.Time
	sequenceNum uint32
	skipped     uint64

	// Reused across packets.
	f32Buffer    []float32
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher returns a publisher that sends at most one packet per
// interval. An interval of zero sends every frame.
func NewUDPPublisher(interval time.Duration, sender *UDPSender) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if interval < 0 {
		applog.Warnf("UDPPublisher: Negative interval %s, sending every frame", interval)
		interval = 0
	}
	applog.Infof("UDPPublisher: Initializing (Interval: %s)", interval)

	return &UDPPublisher{
		sender:       sender,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Bar Count         | uint16         | 2            | Number of bars (N)      |
| Bars              | []float32      | N * 16       | x, y, width, height     |
+-----------------------------------------------------------------------------+

|<---- 4 Bytes ---->|<------ 8 Bytes ------>|<-- 2 Bytes -->|<---- N * 16 Bytes ---->|
+-------------------+-----------------------+---------------+------------------------+
|  Sequence Number  |       Timestamp       |   Bar Count   |   x | y | w | h  ...   |
|      (uint32)     |        (int64)        |    (uint16)   |   (4 x float32 each)   |
+-------------------+-----------------------+---------------+------------------------+
*/

// Send packs and transmits a *render.Frame. Other values are rejected.
func (p *UDPPublisher) Send(data any) error {
	var frame *render.Frame
	switch v := data.(type) {
	case *render.Frame:
		frame = v
	case render.Frame:
		frame = &v
	default:
		return fmt.Errorf("UDPPublisher: unsupported payload %T", data)
	}
	if len(frame.Bars) > MaxBars {
		return fmt.Errorf("UDPPublisher: %d bars exceed the %d that fit in a datagram", len(frame.Bars), MaxBars)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if p.interval > 0 && !p.lastSent.IsZero() && now.Sub(p.lastSent) < p.interval {
		p.skipped++
		return nil
	}

	packet, err := p.pack(frame, now)
	if err != nil {
		applog.Errorf("UDPPublisher: Error packing frame %d: %v", frame.Seq, err)
		return err
	}
	if err := p.sender.Send(packet); err != nil {
		return err
	}
	p.lastSent = now
	applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(packet))
	return nil
}

func (p *UDPPublisher) pack(frame *render.Frame, now time.Time) ([]byte, error) {
	need := len(frame.Bars) * floatsPerBar
	if cap(p.f32Buffer) < need {
		p.f32Buffer = make([]float32, need)
	}
	f32 := p.f32Buffer[:need]
	for i, r := range frame.Bars {
		f32[i*floatsPerBar+0] = float32(r.X)
		f32[i*floatsPerBar+1] = float32(r.Y)
		f32[i*floatsPerBar+2] = float32(r.Width)
		f32[i*floatsPerBar+3] = float32(r.Height)
	}

	p.sequenceNum++
	p.packetBuffer.Reset()

	err := binary.Write(p.packetBuffer, binary.BigEndian, p.sequenceNum)
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, now.UnixNano())
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, uint16(len(frame.Bars)))
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, f32)
	}
	if err != nil {
		return nil, err
	}
	return p.packetBuffer.Bytes(), nil
}

// Skipped returns how many frames arrived inside the send interval.
func (p *UDPPublisher) Skipped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.skipped
}

// Close closes the underlying sender.
func (p *UDPPublisher) Close() error {
	applog.Debugf("UDPPublisher: Close called")
	return p.sender.Close()
}

var _ transport.Transport = (*UDPPublisher)(nil)

// Packet is a decoded publisher datagram.
type Packet struct {
	Seq       uint32
	Timestamp time.Time
	Bars      []render.Rect
}

// DecodePacket parses a datagram produced by UDPPublisher.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < headerSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(b))
	}
	pkt := Packet{
		Seq:       binary.BigEndian.Uint32(b[0:4]),
		Timestamp: time.Unix(0, int64(binary.BigEndian.Uint64(b[4:12]))),
	}
	n := int(binary.BigEndian.Uint16(b[12:14]))
	if want := headerSize + n*floatsPerBar*4; len(b) < want {
		return Packet{}, fmt.Errorf("%w: %d bars need %d bytes, got %d", ErrShortPacket, n, want, len(b))
	}

	vals := make([]float32, n*floatsPerBar)
	if err := binary.Read(bytes.NewReader(b[headerSize:]), binary.BigEndian, vals); err != nil {
		return Packet{}, err
	}
	pkt.Bars = make([]render.Rect, n)
	for i := range pkt.Bars {
		v := vals[i*floatsPerBar:]
		pkt.Bars[i] = render.Rect{
			X:      float64(v[0]),
			Y:      float64(v[1]),
			Width:  float64(v[2]),
			Height: float64(v[3]),
		}
	}
	return pkt, nil
}
