// Package printjob implements the four-state print-job lifecycle and the
// paper-in-chute oscillator that runs alongside it. Both are pure state
// machines: they edit a statusvec.Vector and arm timers through an
// injected Scheduler, but hold no lock of their own. The caller — normally
// internal/engine — is responsible for invoking every exported method
// while holding its own mutex, including from inside a Scheduler callback.
package printjob

import (
	"time"

	"github.com/kcondict/paycheck4/internal/statusvec"
)

// State is one of the four print-job lifecycle states.
type State int

const (
	// IdleTOF is the initial and terminal state: idle, at top of form.
	IdleTOF State = iota
	BusyNotTOF
	BusyValDone
	IdleNotTOF
)

func (s State) String() string {
	switch s {
	case IdleTOF:
		return "IdleTOF"
	case BusyNotTOF:
		return "BusyNotTOF"
	case BusyValDone:
		return "BusyValDone"
	case IdleNotTOF:
		return "IdleNotTOF"
	default:
		return "Unknown"
	}
}

// Timer is the handle a Scheduler hands back; Stop cancels a pending fire
// and reports whether it did (mirrors time.Timer.Stop).
type Timer interface {
	Stop() bool
}

// Scheduler arms a one-shot callback. internal/engine implements this by
// wrapping time.AfterFunc so that every callback re-acquires the engine's
// mutex and checks its running flag before touching the machine — the
// machine itself never reaches for a lock or for time.AfterFunc directly,
// per the sink-interface pattern used throughout this engine.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) Timer
}

// Config holds the six timed delays that drive C4 and C5.
type Config struct {
	PrintStartDelay        time.Duration
	ValidationDelay        time.Duration
	BusyStateChangeDelay   time.Duration
	TofStateChangeDelay    time.Duration
	PaperInChuteSetDelay   time.Duration
	PaperInChuteClearDelay time.Duration
}

// DefaultConfig returns the spec's canonical interval defaults.
func DefaultConfig() Config {
	return Config{
		PrintStartDelay:        3000 * time.Millisecond,
		ValidationDelay:        18000 * time.Millisecond,
		BusyStateChangeDelay:   20000 * time.Millisecond,
		TofStateChangeDelay:    4000 * time.Millisecond,
		PaperInChuteSetDelay:   2000 * time.Millisecond,
		PaperInChuteClearDelay: 10000 * time.Millisecond,
	}
}

// Machine drives C4 (print-job lifecycle) and C5 (paper-in-chute
// oscillator) against a shared status vector. The zero value is not
// usable; construct with New.
type Machine struct {
	cfg   Config
	vec   *statusvec.Vector
	sched Scheduler

	state State

	mainTimer  Timer // C4: at most one of these ever pending, per invariant 4
	chuteTimer Timer // C5: independent one-shot, runs concurrently with C4
}

// New constructs a Machine in IdleTOF with AtTopOfForm clear, as the spec
// requires at power-up.
func New(vec *statusvec.Vector, sched Scheduler, cfg Config) *Machine {
	return &Machine{
		cfg:   cfg,
		vec:   vec,
		sched: sched,
		state: IdleTOF,
	}
}

// State reports the current C4 state.
func (m *Machine) State() State { return m.state }

// Busy reports whether a main timer is currently armed — the "acceptance
// gap" guard from §4.3: a second accept must be rejected even though the
// state is still nominally IdleTOF until T1 actually fires.
func (m *Machine) Busy() bool { return m.mainTimer != nil }

// ChutePending reports whether the paper-in-chute oscillator (C5) has a
// timer currently armed, independent of the main C4 timer chain.
func (m *Machine) ChutePending() bool { return m.chuteTimer != nil }

// AcceptPrint implements T0. It returns false without side effects if the
// machine isn't in IdleTOF or a main timer is already pending (the
// acceptance-gap race from §4.3); the caller logs the rejection.
func (m *Machine) AcceptPrint(templateID byte) bool {
	if m.state != IdleTOF || m.Busy() {
		return false
	}
	m.vec.SetLastTemplateID(templateID)
	m.mainTimer = m.sched.Schedule(m.cfg.PrintStartDelay, m.fireT1)
	return true
}

// fireT1 implements T1: IdleTOF -> BusyNotTOF.
func (m *Machine) fireT1() {
	m.state = BusyNotTOF
	m.vec.Set1(statusvec.Flags1Busy)
	m.vec.Clear5(statusvec.Flags5ValidationDone)
	m.vec.Clear5(statusvec.Flags5AtTopOfForm)
	m.mainTimer = m.sched.Schedule(m.cfg.ValidationDelay, m.fireT2)
}

// fireT2 implements T2: BusyNotTOF -> BusyValDone. It also starts the
// paper-in-chute oscillator (C5), which runs independently of the rest of
// the main-timer chain from here on.
func (m *Machine) fireT2() {
	m.state = BusyValDone
	m.vec.Set5(statusvec.Flags5ValidationDone)
	m.mainTimer = m.sched.Schedule(m.cfg.BusyStateChangeDelay, m.fireT3)

	if m.chuteTimer != nil {
		// A prior oscillator run that hadn't finished yet (possible only if
		// PaperInChuteSetDelay + PaperInChuteClearDelay exceeds the
		// BusyStateChangeDelay + TofStateChangeDelay + PrintStartDelay +
		// ValidationDelay it takes the main chain to reach T2 again) is
		// destroyed and replaced, per §4.5.
		m.chuteTimer.Stop()
	}
	m.chuteTimer = m.sched.Schedule(m.cfg.PaperInChuteSetDelay, m.fireChuteSet)
}

// fireT3 implements T3: BusyValDone -> IdleNotTOF.
func (m *Machine) fireT3() {
	m.state = IdleNotTOF
	m.vec.Clear1(statusvec.Flags1Busy)
	m.vec.PublishTemplateID()
	m.mainTimer = m.sched.Schedule(m.cfg.TofStateChangeDelay, m.fireT4)
}

// fireT4 implements T4: IdleNotTOF -> IdleTOF. No further timer is armed.
func (m *Machine) fireT4() {
	m.state = IdleTOF
	m.vec.Set5(statusvec.Flags5AtTopOfForm)
	m.mainTimer = nil
}

// fireChuteSet is C5's first transition: set PaperInChute, arm the clear.
func (m *Machine) fireChuteSet() {
	m.vec.Set3(statusvec.Flags3PaperInChute)
	m.chuteTimer = m.sched.Schedule(m.cfg.PaperInChuteClearDelay, m.fireChuteClear)
}

// fireChuteClear is C5's second and final transition.
func (m *Machine) fireChuteClear() {
	m.vec.Clear3(statusvec.Flags3PaperInChute)
	m.chuteTimer = nil
}

// Stop cancels any pending C4 and C5 timers. Callers invoke this while
// holding their mutex, as part of a deterministic shutdown; a timer that
// fires after Stop has already been told by the caller's running flag not
// to re-enter the machine.
func (m *Machine) Stop() {
	if m.mainTimer != nil {
		m.mainTimer.Stop()
		m.mainTimer = nil
	}
	if m.chuteTimer != nil {
		m.chuteTimer.Stop()
		m.chuteTimer = nil
	}
}
