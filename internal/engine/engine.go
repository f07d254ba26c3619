// Package engine composes the Status Vector, Frame Reassembler, Command
// Dispatcher, Print-Job State Machine, Paper-in-Chute Oscillator, and
// Status Broadcaster behind one mutex, and exposes the small surface a
// transport adapter and the Control Surface both drive: Deliver, Start,
// Stop, and read-only snapshot accessors.
package engine

import (
	"sync"
	"time"

	"github.com/kcondict/paycheck4/internal/broadcast"
	"github.com/kcondict/paycheck4/internal/diag"
	"github.com/kcondict/paycheck4/internal/dispatch"
	"github.com/kcondict/paycheck4/internal/framer"
	"github.com/kcondict/paycheck4/internal/printjob"
	"github.com/kcondict/paycheck4/internal/statusvec"
)

// TransportOut is the outbound half of the Transport Adapter contract
// (§4.7): the engine hands it one complete frame at a time and never
// blocks the mutex on the result.
type TransportOut interface {
	Send(frame []byte) error
}

// Config is the engine's full construction-time option set.
type Config struct {
	StatusReportingInterval time.Duration
	Framer                  framer.Options
	PrintJob                printjob.Config
	Broadcast               broadcast.Config
}

// DefaultConfig returns every option at its spec default.
func DefaultConfig() Config {
	return Config{
		StatusReportingInterval: 2000 * time.Millisecond,
		Framer:                  framer.DefaultOptions(),
		PrintJob:                printjob.DefaultConfig(),
		Broadcast:               broadcast.DefaultConfig(),
	}
}

// Engine is the mutex-guarded instance the spec's concurrency model
// describes: exactly one shared struct holding the Status Vector, the
// reassembly buffer, and the print-job/oscillator state, with a single
// mutex over all of it. The mutex is never held across a call into out.
// Diagnostics raised while Deliver frames and dispatches a chunk (framer
// discards, malformed, unrecognized or dropped commands) are logged with
// the mutex held.
type Engine struct {
	mu sync.Mutex

	cfg  Config
	vec  *statusvec.Vector
	fr   *framer.Reassembler
	job  *printjob.Machine
	out  TransportOut
	diag diag.Diagnostics

	running     bool
	statusTimer *time.Timer

	framesProcessed uint64
	framesEmitted   uint64
	startedAt       time.Time
}

// New constructs an Engine. out must be non-nil; a nil d is replaced with
// diag.NopDiagnostics{}.
func New(cfg Config, out TransportOut, d diag.Diagnostics) *Engine {
	if d == nil {
		d = diag.NopDiagnostics{}
	}
	e := &Engine{
		cfg:  cfg,
		vec:  statusvec.New(),
		fr:   framer.New(cfg.Framer),
		out:  out,
		diag: d,
	}
	e.job = printjob.New(e.vec, (*engineScheduler)(e), cfg.PrintJob)
	return e
}

// engineScheduler adapts Engine to printjob.Scheduler: every callback
// re-acquires the engine's mutex and checks the running flag before it's
// allowed to touch the machine, so the machine itself never has to know
// about locking or about cancellation.
type engineScheduler Engine

func (s *engineScheduler) Schedule(d time.Duration, fn func()) printjob.Timer {
	e := (*Engine)(s)
	t := time.AfterFunc(d, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if !e.running {
			return
		}
		fn()
	})
	return timerAdapter{t}
}

type timerAdapter struct{ t *time.Timer }

func (a timerAdapter) Stop() bool { return a.t.Stop() }

// Start transitions the engine into the running lifecycle state and arms
// the periodic status tick. Safe to call once; calling it again while
// already running is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.startedAt = time.Now()
	e.armStatusTick()
}

func (e *Engine) armStatusTick() {
	e.statusTimer = time.AfterFunc(e.cfg.StatusReportingInterval, e.onStatusTick)
}

func (e *Engine) onStatusTick() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	frame := e.buildStatusFrameLocked()
	e.armStatusTick()
	e.mu.Unlock()

	e.emit(frame)
}

// Stop cooperatively shuts the engine down: it clears the running flag
// under the mutex, cancels every outstanding timer, and returns. A timer
// callback that was already in flight when Stop runs will observe the
// cleared flag and no-op instead of mutating state.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.running = false
	if e.statusTimer != nil {
		e.statusTimer.Stop()
		e.statusTimer = nil
	}
	e.job.Stop()
}

// Deliver is the inbound half of the Transport Adapter contract: the
// adapter calls this with each received chunk, of any size and boundary.
func (e *Engine) Deliver(chunk []byte) {
	e.mu.Lock()
	frames, reasons := e.fr.Feed(chunk)
	for _, reason := range reasons {
		e.diag.Warnf("framer discarded input: %s", reason)
	}

	var toEmit [][]byte
	for _, frame := range frames {
		e.framesProcessed++
		if out := e.handleFrameLocked(frame); out != nil {
			toEmit = append(toEmit, out)
		}
	}
	e.mu.Unlock()

	for _, frame := range toEmit {
		e.emit(frame)
	}
}

// handleFrameLocked implements C3: classify, then either build an
// immediate status reply or route into the print-job acceptance path.
// Must be called with the mutex held.
func (e *Engine) handleFrameLocked(frame []byte) []byte {
	switch dispatch.Classify(frame) {
	case dispatch.KindStatusRequest, dispatch.KindExtendedStatusRequest:
		return e.buildStatusFrameLocked()
	case dispatch.KindClearErrorFlags:
		e.diag.Infof("clear-error-flags request: no-op in this core")
		return nil
	case dispatch.KindPrintTemplate:
		cmd, err := dispatch.ParsePrint(frame)
		if err != nil {
			e.diag.Errorf("malformed print command %q: %v", frame, err)
			return nil
		}
		if !e.job.AcceptPrint(cmd.TemplateID) {
			e.diag.Warnf("print command for template %q dropped: job not idle", cmd.TemplateID)
			return nil
		}
		return nil
	default:
		e.diag.Errorf("unrecognized frame: %q", frame)
		return nil
	}
}

func (e *Engine) buildStatusFrameLocked() []byte {
	return broadcast.Build(e.cfg.Broadcast, e.vec.TakeSnapshot())
}

// RequestStatus forces an immediate status frame, as if "^S|^" had
// arrived. Used by the Control Surface's injection endpoint.
func (e *Engine) RequestStatus() {
	e.mu.Lock()
	frame := e.buildStatusFrameLocked()
	e.mu.Unlock()
	e.emit(frame)
}

// AcceptPrint routes an already-parsed print command through the same
// acceptance path C3 uses. Used by the Control Surface's injection
// endpoint so it never special-cases the state machine.
func (e *Engine) AcceptPrint(templateID byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.AcceptPrint(templateID)
}

func (e *Engine) emit(frame []byte) {
	if err := e.out.Send(frame); err != nil {
		e.diag.Errorf("transport send failed, dropping frame: %v", err)
		return
	}
	e.mu.Lock()
	e.framesEmitted++
	e.mu.Unlock()
}

// StatusSnapshot is a read-only view of the Status Vector plus the
// print-job state, for the Control Surface's /status and /job endpoints.
type StatusSnapshot struct {
	Vector       statusvec.Snapshot
	JobState     printjob.State
	JobPending   bool
	ChutePending bool
}

// Snapshot takes a consistent snapshot of everything the Control Surface
// reports, under one critical section.
func (e *Engine) Snapshot() StatusSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return StatusSnapshot{
		Vector:       e.vec.TakeSnapshot(),
		JobState:     e.job.State(),
		JobPending:   e.job.Busy(),
		ChutePending: e.job.ChutePending(),
	}
}

// Stats reports the counters the Control Surface's /health endpoint
// serves alongside host CPU/memory usage.
type Stats struct {
	Uptime          time.Duration
	FramesProcessed uint64
	FramesEmitted   uint64
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	var uptime time.Duration
	if e.running {
		uptime = time.Since(e.startedAt)
	}
	return Stats{
		Uptime:          uptime,
		FramesProcessed: e.framesProcessed,
		FramesEmitted:   e.framesEmitted,
	}
}
