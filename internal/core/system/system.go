package system

import "time"

// Phase defines execution ordering within a single loop iteration.
type Phase int

const (
	PhaseInput     Phase = iota // 0: drain datagrams, dispatch packets
	PhasePreUpdate              // 1: deliver last iteration's events
	PhaseUpdate                 // 2: one world tick
	PhaseOutput                 // 3: flush peer outboxes
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhasePreUpdate:
		return "pre-update"
	case PhaseUpdate:
		return "update"
	case PhaseOutput:
		return "output"
	}
	return "unknown"
}

// System is one loop-level stage. Stages never overlap: each runs to
// completion before the next starts.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}

// Func adapts a function to System.
type Func struct {
	P  Phase
	Fn func(dt time.Duration)
}

func (f Func) Phase() Phase            { return f.P }
func (f Func) Update(dt time.Duration) { f.Fn(dt) }
