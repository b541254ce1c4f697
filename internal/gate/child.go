package gate

import (
	"sync"

	"quiz-classroom/internal/apperr"
)

// ChildGate guards one child profile for the lifetime of a session. A
// profile without a PIN is open from the start.
type ChildGate struct {
	mu      sync.Mutex
	childID string
	pinHash string
	buf     DigitBuffer
	state   State
}

func NewChildGate(childID, pinHash string) *ChildGate {
	g := &ChildGate{childID: childID, pinHash: pinHash, state: AwaitingEntry}
	if pinHash == "" {
		g.state = Passed
	}
	return g
}

func (g *ChildGate) ChildID() string { return g.childID }

func (g *ChildGate) Passed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == Passed
}

func (g *ChildGate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusLocked()
}

func (g *ChildGate) statusLocked() Status {
	return Status{State: g.state, Entered: g.buf.Len(), Masked: g.buf.Masked()}
}

func (g *ChildGate) Backspace() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.buf.Backspace()
	return g.statusLocked()
}

// Enter appends digits and compares the buffer against the stored PIN each
// time it fills. A mismatch clears the buffer and keeps the gate closed.
func (g *ChildGate) Enter(digits string) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := 0; i < len(digits) && g.state != Passed; i++ {
		if !g.buf.Append(digits[i]) || !g.buf.Full() {
			continue
		}
		entry := g.buf.String()
		g.buf.Clear()
		if !MatchPIN(g.pinHash, entry) {
			return g.statusLocked(), apperr.GateMismatch("Incorrect PIN. Please try again.")
		}
		g.state = Passed
	}
	return g.statusLocked(), nil
}
