// Package serial bridges the emulator engine to the USB CDC-ACM gadget
// character device, the real transport a deployed Paycheck 4 unit speaks
// over (§4.7's Transport Adapter contract, realized against the actual
// serial line rather than a loopback).
package serial

import (
	"fmt"
	"time"

	goserial "github.com/daedaluz/goserial"
)

// Deliverer is the inbound half of the engine contract this transport
// drives: one call per chunk read off the wire, in arrival order.
type Deliverer interface {
	Deliver(chunk []byte)
}

// Transport owns one open gadget device, in raw mode, bridging reads into
// a Deliverer and exposing Send for outbound frames.
type Transport struct {
	port       *goserial.Port
	readBuf    []byte
	stop       chan struct{}
	stopped    chan struct{}
	readErrLog func(error)
}

// Options configures the opened device. ReadTimeout bounds each read so
// the run loop can observe stop requests instead of blocking forever on
// an idle line.
type Options struct {
	Device      string
	ReadTimeout time.Duration
	ReadBufSize int
}

// DefaultOptions targets the conventional CDC-ACM gadget device name with
// a short poll timeout.
func DefaultOptions() Options {
	return Options{
		Device:      "/dev/ttyGS0",
		ReadTimeout: 100 * time.Millisecond,
		ReadBufSize: 1024,
	}
}

// Open opens the device and puts it into raw mode: no line discipline, no
// echo, no signal generation, 8 data bits. A TCL frame is raw bytes
// delimited by '^', and the cooked-mode defaults would mangle it (ICRNL
// alone would rewrite a trailing CR the pre-filter is supposed to strip
// itself).
func Open(opts Options) (*Transport, error) {
	serialOpts := goserial.NewOptions().SetReadTimeout(opts.ReadTimeout)
	port, err := goserial.Open(opts.Device, serialOpts)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", opts.Device, err)
	}
	if err := port.MakeRaw(); err != nil {
		port.Close()
		return nil, fmt.Errorf("serial: set raw mode on %s: %w", opts.Device, err)
	}
	bufSize := opts.ReadBufSize
	if bufSize <= 0 {
		bufSize = 1024
	}
	return &Transport{
		port:    port,
		readBuf: make([]byte, bufSize),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}, nil
}

// Send writes one complete frame to the device. Engine.TransportOut is
// satisfied by *Transport without an adapter.
func (t *Transport) Send(frame []byte) error {
	_, err := t.port.Write(frame)
	if err != nil {
		return fmt.Errorf("serial: write: %w", err)
	}
	return nil
}

// Run reads from the device until Close is called, handing every
// non-empty chunk to d.Deliver. It blocks; call it from its own
// goroutine. A read timeout is not an error — it's the mechanism by
// which the loop periodically rechecks for a stop request.
func (t *Transport) Run(d Deliverer) {
	defer close(t.stopped)
	for {
		select {
		case <-t.stop:
			return
		default:
		}
		n, err := t.port.Read(t.readBuf)
		if err != nil {
			if err == goserial.ErrClosed {
				return
			}
			// Timeout or transient read error: loop back and recheck stop.
			continue
		}
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, t.readBuf[:n])
			d.Deliver(chunk)
		}
	}
}

// Close stops the read loop and closes the underlying device. Safe to
// call once Run has been started; waits for Run to observe the close.
func (t *Transport) Close() error {
	close(t.stop)
	err := t.port.Close()
	<-t.stopped
	return err
}
