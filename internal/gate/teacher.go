// Package gate implements the 4-digit PIN checkpoints in front of a
// teacher's account and in front of child profiles.
package gate

import (
	"context"
	"sync"

	"quiz-classroom/internal/apperr"
)

type State string

const (
	AwaitingFirstEntry   State = "awaiting_first_entry"
	AwaitingConfirmation State = "awaiting_confirmation"
	AwaitingEntry        State = "awaiting_entry"
	Passed               State = "passed"
)

// PINStore loads and saves a teacher's PIN credential.
type PINStore interface {
	// PINHash returns the stored hash, or "" when no PIN is set.
	PINHash(ctx context.Context, teacherID string) (string, error)
	SavePINHash(ctx context.Context, teacherID, hash string) error
}

// Status is what a client needs to render a gate.
type Status struct {
	State   State  `json:"state"`
	Setup   bool   `json:"setup"`
	Entered int    `json:"entered"`
	Masked  string `json:"masked"`
}

// TeacherGate guards the teacher's management screens. Without a stored PIN
// the first entry becomes a candidate that a second entry must confirm; with
// one, entries are compared against it. Mismatches never lock the gate.
type TeacherGate struct {
	mu        sync.Mutex
	teacherID string
	store     PINStore
	hasPIN    bool
	buf       DigitBuffer
	candidate string
	state     State
}

func NewTeacherGate(teacherID string, hasPIN bool, store PINStore) *TeacherGate {
	return &TeacherGate{teacherID: teacherID, store: store, hasPIN: hasPIN, state: AwaitingFirstEntry}
}

func (g *TeacherGate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusLocked()
}

func (g *TeacherGate) statusLocked() Status {
	return Status{State: g.state, Setup: !g.hasPIN, Entered: g.buf.Len(), Masked: g.buf.Masked()}
}

func (g *TeacherGate) Passed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == Passed
}

func (g *TeacherGate) Backspace() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.buf.Backspace()
	return g.statusLocked()
}

// Enter appends digits one at a time and evaluates the buffer each time it
// fills. Non-digit characters are ignored.
func (g *TeacherGate) Enter(ctx context.Context, digits string) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Passed {
		return g.statusLocked(), nil
	}
	for i := 0; i < len(digits); i++ {
		if !g.buf.Append(digits[i]) || !g.buf.Full() {
			continue
		}
		if err := g.evaluateLocked(ctx); err != nil {
			return g.statusLocked(), err
		}
		if g.state == Passed {
			break
		}
	}
	return g.statusLocked(), nil
}

func (g *TeacherGate) evaluateLocked(ctx context.Context) error {
	entry := g.buf.String()
	g.buf.Clear()

	if g.state == AwaitingConfirmation {
		if entry != g.candidate {
			g.candidate = ""
			g.state = AwaitingFirstEntry
			return apperr.GateMismatch("PINs do not match. Please try again.")
		}
		hash, err := HashPIN(entry)
		if err != nil {
			g.candidate = ""
			g.state = AwaitingFirstEntry
			return apperr.Write(err, "hash pin")
		}
		if err := g.store.SavePINHash(ctx, g.teacherID, hash); err != nil {
			g.candidate = ""
			g.state = AwaitingFirstEntry
			return apperr.Write(err, "save pin")
		}
		g.candidate = ""
		g.hasPIN = true
		g.state = Passed
		return nil
	}

	hash, err := g.store.PINHash(ctx, g.teacherID)
	if err != nil {
		return apperr.Read(err, "load pin")
	}
	if hash == "" {
		g.hasPIN = false
		g.candidate = entry
		g.state = AwaitingConfirmation
		return nil
	}
	g.hasPIN = true
	if !MatchPIN(hash, entry) {
		return apperr.GateMismatch("Incorrect PIN. Please try again.")
	}
	g.state = Passed
	return nil
}
