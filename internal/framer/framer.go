// Package framer reassembles the raw byte stream off the serial transport
// into whole TCL frames, each delimited by a leading and trailing '^'. A
// frame may arrive split across multiple reads, but only within a strict
// inter-segment timeout — see Reassembler.Feed.
package framer

import "time"

// Reason distinguishes why a frame or partial frame was discarded. The
// engine logs these through its Diagnostics sink; none of them is fatal.
type Reason int

const (
	// ReasonShort means the buffer was shorter than MinMessageSize when a
	// new first segment was evaluated.
	ReasonShort Reason = iota
	// ReasonOpen means the first buffered byte was not '^'.
	ReasonOpen
	// ReasonClose means bytes were found after a closing '^'.
	ReasonClose
	// ReasonReassemblyTimeout means a partial frame aged out before it was
	// completed.
	ReasonReassemblyTimeout
	// ReasonOverflow means the buffer would exceed MaxMessageSize.
	ReasonOverflow
)

func (r Reason) String() string {
	switch r {
	case ReasonShort:
		return "RCV_SHORT_ERROR"
	case ReasonOpen:
		return "RCV_OPEN_ERROR"
	case ReasonClose:
		return "RCV_CLOSE_ERROR"
	case ReasonReassemblyTimeout:
		return "RCV_REASSEMBLY_TIMEOUT_ERROR"
	case ReasonOverflow:
		return "RCV_OVERFLOW_ERROR"
	default:
		return "RCV_UNKNOWN_ERROR"
	}
}

// mode is the two-valued reassembly state from the spec.
type mode int

const (
	waitingFirstSegment mode = iota
	waitingNextSegment
)

const (
	openDelim  = '^'
	closeDelim = '^'
	cr         = 0x0D
	lf         = 0x0A
)

// Options configures the reassembler's size and timing limits.
type Options struct {
	MinMessageSize    int
	MaxMessageSize    int
	ReassemblyTimeout time.Duration
}

// DefaultOptions returns the spec's canonical defaults.
func DefaultOptions() Options {
	return Options{
		MinMessageSize:    4,
		MaxMessageSize:    1024,
		ReassemblyTimeout: 20 * time.Millisecond,
	}
}

// Reassembler turns a stream of inbound byte chunks into whole frames. It
// is not safe for concurrent use; the engine serializes access to it under
// the same mutex that guards the status vector and state machines.
type Reassembler struct {
	opts Options

	buf             []byte
	mode            mode
	reassemblyStart time.Time

	now func() time.Time
}

// New constructs a Reassembler with the given options.
func New(opts Options) *Reassembler {
	return &Reassembler{
		opts: opts,
		mode: waitingFirstSegment,
		now:  time.Now,
	}
}

// Feed appends one inbound chunk (after stripping CR/LF bytes) and returns
// every whole frame the chunk completed, plus the discard reasons
// encountered along the way. A single chunk is evaluated as one atomic
// read: if a waiting partial frame has aged past ReassemblyTimeout it is
// discarded first, and the chunk is then appended and evaluated fresh —
// which can itself complete a frame or trigger its own discard, so one
// Feed call can report up to two reasons (a timeout followed immediately
// by, say, RCV_OPEN_ERROR on the new bytes).
//
// Feed evaluates the reassembly timeout against the instant it is called,
// so callers on a real clock should invoke it promptly on each read; this
// package's tests replace the Reassembler's clock (its now field) with a
// fake one to exercise the timeout path without sleeping.
func (r *Reassembler) Feed(chunk []byte) (frames [][]byte, reasons []Reason) {
	filtered := stripCRLF(chunk)
	if len(filtered) == 0 {
		return nil, nil
	}

	if r.mode == waitingNextSegment && r.now().Sub(r.reassemblyStart) > r.opts.ReassemblyTimeout {
		// The aged-out partial frame is discarded and the incoming bytes
		// are then evaluated as a fresh first segment, exactly as the spec
		// requires ("Then proceed as a fresh append").
		r.resetBuffer()
		reasons = append(reasons, ReasonReassemblyTimeout)
	}

	frame, reason, ok := r.appendAndEvaluate(filtered)
	if frame != nil {
		frames = append(frames, frame)
	}
	if !ok {
		reasons = append(reasons, reason)
	}
	return frames, reasons
}

// appendAndEvaluate appends one chunk to the buffer and applies the state
// machine rules for whichever mode the reassembler is currently in.
func (r *Reassembler) appendAndEvaluate(chunk []byte) (frame []byte, reason Reason, ok bool) {
	if len(r.buf)+len(chunk) > r.opts.MaxMessageSize {
		r.resetBuffer()
		return nil, ReasonOverflow, false
	}
	r.buf = append(r.buf, chunk...)

	if r.mode == waitingFirstSegment {
		if len(r.buf) < r.opts.MinMessageSize {
			r.resetBuffer()
			return nil, ReasonShort, false
		}
		if r.buf[0] != openDelim {
			r.resetBuffer()
			return nil, ReasonOpen, false
		}
	}

	closeAt := indexByte(r.buf[1:], closeDelim)
	if closeAt < 0 {
		r.mode = waitingNextSegment
		r.reassemblyStart = r.now()
		return nil, 0, true
	}
	closeAt++ // translate back into r.buf's indexing
	if closeAt != len(r.buf)-1 {
		r.resetBuffer()
		return nil, ReasonClose, false
	}
	return r.takeFrame(), 0, true
}

func (r *Reassembler) takeFrame() []byte {
	frame := make([]byte, len(r.buf))
	copy(frame, r.buf)
	r.buf = r.buf[:0]
	r.mode = waitingFirstSegment
	return frame
}

func (r *Reassembler) resetBuffer() {
	r.buf = r.buf[:0]
	r.mode = waitingFirstSegment
}

// BufferLen reports the current reassembly buffer length, for tests.
func (r *Reassembler) BufferLen() int { return len(r.buf) }

// Waiting reports whether a partial frame is currently buffered.
func (r *Reassembler) Waiting() bool { return r.mode == waitingNextSegment }

func stripCRLF(in []byte) []byte {
	out := make([]byte, 0, len(in))
	for _, b := range in {
		if b == cr || b == lf {
			continue
		}
		out = append(out, b)
	}
	return out
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
