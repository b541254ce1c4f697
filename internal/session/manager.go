package session

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiz-classroom/internal/activity"
	"quiz-classroom/internal/apperr"
	"quiz-classroom/internal/gate"
	"quiz-classroom/internal/models"
	"quiz-classroom/internal/roster"
	"quiz-classroom/pkg/gateway"
)

// Broadcaster pushes realtime events to the clients of one session.
type Broadcaster interface {
	BroadcastMessage(room, messageType string, data interface{})
}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastMessage(string, string, interface{}) {}

type Manager struct {
	gw       gateway.Gateway
	cache    activity.Cache
	pins     gate.PINStore
	notifier Broadcaster
	ttl      time.Duration
	now      func() time.Time
	newID    func() string
	rosters  *roster.Locks

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns a manager whose sessions expire after ttl without use.
// cache and notifier may be nil.
func NewManager(gw gateway.Gateway, cache activity.Cache, pins gate.PINStore, notifier Broadcaster, ttl time.Duration) *Manager {
	if notifier == nil {
		notifier = nopBroadcaster{}
	}
	return &Manager{
		gw:       gw,
		cache:    cache,
		pins:     pins,
		notifier: notifier,
		ttl:      ttl,
		now:      time.Now,
		newID:    uuid.NewString,
		rosters:  roster.NewLocks(),
		sessions: make(map[string]*Session),
	}
}

// Begin starts a session for teacher and subscribes to its roster and
// activities.
func (m *Manager) Begin(teacher models.Teacher) (*Session, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:         m.newID(),
		Roster:     roster.NewStore(m.gw, teacher.ID, m.rosters),
		Activities: activity.NewStore(m.gw, m.cache, teacher.ID),
		Gate:       gate.NewTeacherGate(teacher.ID, teacher.HasPin, m.pins),
		cancel:     cancel,
		teacher:    teacher,
		childGates: make(map[string]*gate.ChildGate),
		attached:   make(map[string]io.Closer),
		lastSeen:   m.now(),
	}

	s.Roster.OnChange(func(children []models.Child) {
		dtos := make([]models.ChildDTO, len(children))
		for i, c := range children {
			dtos[i] = c.ToDTO()
		}
		m.notifier.BroadcastMessage(s.ID, "children", dtos)
	})
	s.Activities.OnChange(func(activities []*models.Activity) {
		m.notifier.BroadcastMessage(s.ID, "activities", activities)
	})

	if err := s.Roster.Start(ctx); err != nil {
		cancel()
		return nil, err
	}
	if err := s.Activities.Start(ctx); err != nil {
		cancel()
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	log.Printf("session: began %s for teacher %s", s.ID, teacher.ID)
	return s, nil
}

// Get returns a live session and marks it as used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, apperr.Auth("Your session has ended. Please log in again.")
	}
	now := m.now()
	if m.ttl > 0 && now.Sub(s.idleSince()) > m.ttl {
		m.End(id)
		return nil, apperr.Auth("Your session has ended. Please log in again.")
	}
	s.touch(now)
	return s, nil
}

// End closes the session. Ending an unknown session is a no-op.
func (m *Manager) End(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.end()
		log.Printf("session: ended %s", id)
	}
}

// Notify pushes an event to the session's clients.
func (m *Manager) Notify(sessionID, messageType string, data interface{}) {
	m.notifier.BroadcastMessage(sessionID, messageType, data)
}

// Sweep ends every session idle for longer than the ttl.
func (m *Manager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	now := m.now()
	var expired []string
	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.idleSince()) > m.ttl {
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()
	for _, id := range expired {
		m.End(id)
	}
	return len(expired)
}

// Run sweeps expired sessions every interval until ctx is done, then ends
// all sessions.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Close()
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				log.Printf("session: expired %d sessions", n)
			}
		}
	}
}

// Close ends every live session.
func (m *Manager) Close() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.End(id)
	}
}

type ctxKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok
}
