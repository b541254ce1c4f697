// Package session holds the per-login state of a teacher: the synced
// roster and activities, the PIN gates and the running quizzes. Nothing in
// a session is global; ending it drops every subscription and unlock.
package session

import (
	"context"
	"io"
	"sync"
	"time"

	"quiz-classroom/internal/activity"
	"quiz-classroom/internal/apperr"
	"quiz-classroom/internal/gate"
	"quiz-classroom/internal/models"
	"quiz-classroom/internal/roster"
)

type Session struct {
	ID         string
	Roster     *roster.Store
	Activities *activity.Store
	Gate       *gate.TeacherGate

	cancel context.CancelFunc

	mu         sync.Mutex
	teacher    models.Teacher
	childGates map[string]*gate.ChildGate
	attached   map[string]io.Closer
	lastSeen   time.Time
	ended      bool
}

func (s *Session) Teacher() models.Teacher {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.teacher
	t.HasPin = t.HasPin || !s.Gate.Status().Setup
	return t
}

// PINVerified reports whether the teacher passed the PIN gate in this
// session.
func (s *Session) PINVerified() bool { return s.Gate.Passed() }

// RequirePIN fails unless the teacher PIN was entered in this session.
func (s *Session) RequirePIN() error {
	if !s.PINVerified() {
		return apperr.Auth("Please enter your PIN first.")
	}
	return nil
}

// ChildGate returns the gate for a child, creating it on first use.
func (s *Session) ChildGate(childID string) (*gate.ChildGate, error) {
	child, err := s.Roster.Child(childID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.childGates[childID]
	if !ok {
		g = gate.NewChildGate(child.ID, child.PinHash)
		s.childGates[childID] = g
	}
	return g, nil
}

// UnlockChild feeds digits into the child's gate.
func (s *Session) UnlockChild(childID, digits string) (gate.Status, error) {
	g, err := s.ChildGate(childID)
	if err != nil {
		return gate.Status{}, err
	}
	return g.Enter(digits)
}

// ChildUnlocked reports whether the child's profile may be used in this
// session.
func (s *Session) ChildUnlocked(childID string) bool {
	g, err := s.ChildGate(childID)
	return err == nil && g.Passed()
}

// SelectChild makes childID the active child once its gate is passed.
func (s *Session) SelectChild(childID string) (models.Child, error) {
	g, err := s.ChildGate(childID)
	if err != nil {
		return models.Child{}, err
	}
	if !g.Passed() {
		return models.Child{}, apperr.Locked("Please enter the child's PIN first.")
	}
	if err := s.Roster.SetActiveChild(childID); err != nil {
		return models.Child{}, err
	}
	child, _ := s.Roster.ActiveChild()
	return child, nil
}

// ActiveChild returns the selected child.
func (s *Session) ActiveChild() (models.Child, error) {
	child, ok := s.Roster.ActiveChild()
	if !ok {
		return models.Child{}, apperr.NotFound("Please choose a child first.")
	}
	return child, nil
}

// Attach stores a resource that lives as long as the session, such as a
// running quiz. A previous resource under key is closed.
func (s *Session) Attach(key string, c io.Closer) {
	s.mu.Lock()
	prev := s.attached[key]
	s.attached[key] = c
	s.mu.Unlock()
	if prev != nil && prev != c {
		prev.Close()
	}
}

func (s *Session) Attached(key string) (io.Closer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.attached[key]
	return c, ok
}

// Detach closes and forgets the resource under key.
func (s *Session) Detach(key string) bool {
	s.mu.Lock()
	c, ok := s.attached[key]
	delete(s.attached, key)
	s.mu.Unlock()
	if ok {
		c.Close()
	}
	return ok
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// end stops the subscriptions and closes attached resources.
func (s *Session) end() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	attached := s.attached
	s.attached = map[string]io.Closer{}
	s.childGates = map[string]*gate.ChildGate{}
	s.mu.Unlock()

	s.cancel()
	for _, c := range attached {
		c.Close()
	}
}
