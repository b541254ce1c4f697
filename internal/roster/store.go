// Package roster keeps a teacher's child profiles in sync with the gateway
// and runs the add-child flow.
package roster

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"quiz-classroom/internal/apperr"
	"quiz-classroom/internal/gate"
	"quiz-classroom/internal/models"
	"quiz-classroom/pkg/gateway"
)

// Store mirrors teachers/{id}/children. Each pushed snapshot replaces the
// whole list.
type Store struct {
	gw        gateway.Gateway
	teacherID string
	now       func() time.Time
	addMu     *sync.Mutex

	mu        sync.RWMutex
	children  []models.Child
	activeID  string
	listeners []func([]models.Child)

	loaded     chan struct{}
	loadedOnce sync.Once
}

// Locks hands out one mutex per teacher. Every roster store of a teacher
// must share it so the sibling PIN check and the insert run as one step.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocks() *Locks {
	return &Locks{locks: make(map[string]*sync.Mutex)}
}

func (l *Locks) For(teacherID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[teacherID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[teacherID] = m
	}
	return m
}

// NewStore returns the roster of teacherID. A nil locks gives the store a
// lock of its own.
func NewStore(gw gateway.Gateway, teacherID string, locks *Locks) *Store {
	if locks == nil {
		locks = NewLocks()
	}
	return &Store{
		gw:        gw,
		teacherID: teacherID,
		now:       time.Now,
		addMu:     locks.For(teacherID),
		loaded:    make(chan struct{}),
	}
}

// OnChange registers fn to receive every new roster. Register before Start.
func (s *Store) OnChange(fn func([]models.Child)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Start subscribes to the roster. Updates stop when ctx is done.
func (s *Store) Start(ctx context.Context) error {
	snaps, err := s.gw.Subscribe(ctx, gateway.ChildrenPath(s.teacherID))
	if err != nil {
		return apperr.Read(err, "subscribe to children")
	}
	go func() {
		for snap := range snaps {
			s.replace(decodeChildren(snap))
		}
	}()
	return nil
}

// Loaded is closed once the first snapshot has been applied.
func (s *Store) Loaded() <-chan struct{} { return s.loaded }

func (s *Store) replace(children []models.Child) {
	s.mu.Lock()
	s.children = children
	listeners := append([]func([]models.Child){}, s.listeners...)
	s.mu.Unlock()
	s.loadedOnce.Do(func() { close(s.loaded) })

	for _, fn := range listeners {
		fn(copyChildren(children))
	}
}

func decodeChildren(snap gateway.Snapshot) []models.Child {
	raw := snap.Children()
	children := make([]models.Child, 0, len(raw))
	for id, v := range raw {
		var c models.Child
		if err := json.Unmarshal(v, &c); err != nil {
			log.Printf("roster: skipping malformed child %s: %v", id, err)
			continue
		}
		if c.ID == "" {
			c.ID = id
		}
		children = append(children, c)
	}
	sortChildren(children)
	return children
}

func sortChildren(children []models.Child) {
	sort.Slice(children, func(i, j int) bool {
		if children[i].CreatedAt != children[j].CreatedAt {
			return children[i].CreatedAt < children[j].CreatedAt
		}
		return children[i].ID < children[j].ID
	})
}

func copyChildren(children []models.Child) []models.Child {
	out := make([]models.Child, len(children))
	copy(out, children)
	return out
}

// Children returns the current roster, oldest first.
func (s *Store) Children() []models.Child {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyChildren(s.children)
}

func (s *Store) Avatars() []models.Avatar { return models.Avatars() }

func (s *Store) Child(id string) (models.Child, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.children {
		if c.ID == id {
			return c, nil
		}
	}
	return models.Child{}, apperr.NotFound("Child not found.")
}

// AddChild validates draft against the catalog and the sibling PINs, then
// stores the new profile. The roster itself changes only when the gateway
// pushes the new list.
func (s *Store) AddChild(ctx context.Context, draft models.ChildDraft) (models.Child, error) {
	if err := draft.Validate(); err != nil {
		return models.Child{}, err
	}

	child := models.Child{
		Name:      strings.TrimSpace(draft.Name),
		AvatarID:  draft.AvatarID,
		CreatedAt: models.Millis(s.now()),
	}

	s.addMu.Lock()
	defer s.addMu.Unlock()

	if draft.Pin != "" {
		siblings, err := s.readChildren(ctx)
		if err != nil {
			return models.Child{}, err
		}
		for _, sib := range siblings {
			if gate.MatchPIN(sib.PinHash, draft.Pin) {
				return models.Child{}, apperr.Validation(
					"This PIN is already used by another child. Please choose a different PIN.",
					apperr.FieldError{Field: "pin", Message: "PIN already in use."},
				)
			}
		}
		hash, err := gate.HashPIN(draft.Pin)
		if err != nil {
			return models.Child{}, apperr.Write(err, "hash child pin")
		}
		child.PinHash = hash
	}

	child.ID = s.gw.NewKey()
	if err := s.gw.Write(ctx, gateway.ChildPath(s.teacherID, child.ID), child); err != nil {
		return models.Child{}, apperr.Write(err, "save child")
	}
	return child, nil
}

// readChildren loads the roster straight from the gateway so the PIN check
// does not depend on how fresh the subscription is.
func (s *Store) readChildren(ctx context.Context) ([]models.Child, error) {
	snap, err := s.gw.Read(ctx, gateway.ChildrenPath(s.teacherID))
	if errors.Is(err, gateway.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Read(err, "load children")
	}
	return decodeChildren(snap), nil
}

func (s *Store) SetActiveChild(id string) error {
	if _, err := s.Child(id); err != nil {
		return err
	}
	s.mu.Lock()
	s.activeID = id
	s.mu.Unlock()
	return nil
}

func (s *Store) ActiveChild() (models.Child, bool) {
	s.mu.RLock()
	id := s.activeID
	s.mu.RUnlock()
	if id == "" {
		return models.Child{}, false
	}
	c, err := s.Child(id)
	return c, err == nil
}

// VerifyChildPin reports whether pin opens the child's profile. A child
// without a PIN accepts anything.
func (s *Store) VerifyChildPin(id, pin string) (bool, error) {
	c, err := s.Child(id)
	if err != nil {
		return false, err
	}
	if !c.HasPin() {
		return true, nil
	}
	return gate.MatchPIN(c.PinHash, pin), nil
}
