// Package loopback provides an in-memory stand-in for the serial
// transport, wired the same way a gadget device would be but backed by an
// io.Pipe pair instead of a character device, for tests that want a
// transport without opening a real /dev/ttyGS0.
package loopback

import (
	"fmt"
	"io"
)

// Deliverer is the inbound half of the engine contract this transport
// drives, identical to the serial transport's.
type Deliverer interface {
	Deliver(chunk []byte)
}

// Pipe is a bidirectional in-memory link: Send writes what the engine
// would put on the wire, and a caller on the other end reads it with
// ReadOutbound; WriteInbound injects bytes as if they'd arrived from the
// host, and RunInbound copies them into a Deliverer.
type Pipe struct {
	outboundR *io.PipeReader
	outboundW *io.PipeWriter
	inboundR  *io.PipeReader
	inboundW  *io.PipeWriter
}

// New creates a ready-to-use loopback pair.
func New() *Pipe {
	or, ow := io.Pipe()
	ir, iw := io.Pipe()
	return &Pipe{outboundR: or, outboundW: ow, inboundR: ir, inboundW: iw}
}

// Send implements engine.TransportOut: it blocks until something reads
// the frame off ReadOutbound, matching the blocking write semantics the
// real device would give a synchronous USB bulk transfer.
func (p *Pipe) Send(frame []byte) error {
	_, err := p.outboundW.Write(frame)
	if err != nil {
		return fmt.Errorf("loopback: send: %w", err)
	}
	return nil
}

// ReadOutbound reads one chunk of whatever the engine has sent, the
// host-side half of the pair.
func (p *Pipe) ReadOutbound(buf []byte) (int, error) {
	return p.outboundR.Read(buf)
}

// WriteInbound injects bytes as if they had arrived from the host over
// the wire, for driving a Deliverer through RunInbound instead of calling
// Deliver directly.
func (p *Pipe) WriteInbound(chunk []byte) (int, error) {
	return p.inboundW.Write(chunk)
}

// RunInbound copies everything written via WriteInbound into d.Deliver,
// one read at a time, until the pipe is closed. Blocks; call from its own
// goroutine, mirroring the serial transport's Run.
func (p *Pipe) RunInbound(d Deliverer) {
	buf := make([]byte, 1024)
	for {
		n, err := p.inboundR.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			d.Deliver(chunk)
		}
		if err != nil {
			return
		}
	}
}

// Close tears down both directions of the pipe, unblocking any pending
// Send, ReadOutbound, WriteInbound, or RunInbound call with io.EOF or
// io.ErrClosedPipe.
func (p *Pipe) Close() error {
	p.outboundW.Close()
	p.outboundR.Close()
	p.inboundW.Close()
	p.inboundR.Close()
	return nil
}
