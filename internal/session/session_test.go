package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-classroom/internal/apperr"
	"quiz-classroom/internal/gate"
	"quiz-classroom/internal/models"
	"quiz-classroom/pkg/gateway/gatewaytest"
)

type memPINs struct {
	mu     sync.Mutex
	hashes map[string]string
}

func (p *memPINs) PINHash(_ context.Context, teacherID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hashes[teacherID], nil
}

func (p *memPINs) SavePINHash(_ context.Context, teacherID, hash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hashes[teacherID] = hash
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) BroadcastMessage(room, messageType string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, room+":"+messageType)
}

func (r *recorder) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

type closer struct{ closed int }

func (c *closer) Close() error {
	c.closed++
	return nil
}

func newManager(t *testing.T) (*Manager, *recorder) {
	t.Helper()
	rec := &recorder{}
	m := NewManager(gatewaytest.New(), nil, &memPINs{hashes: map[string]string{}}, rec, time.Hour)
	t.Cleanup(m.Close)
	return m, rec
}

func TestBeginAndGet(t *testing.T) {
	m, rec := newManager(t)
	s, err := m.Begin(models.Teacher{ID: "t1", Name: "Rahma"})
	require.NoError(t, err)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.False(t, s.PINVerified())
	assert.True(t, apperr.Is(s.RequirePIN(), apperr.KindAuth))

	require.Eventually(t, func() bool {
		return rec.has(s.ID+":children") && rec.has(s.ID+":activities")
	}, 2*time.Second, 5*time.Millisecond)

	m.End(s.ID)
	_, err = m.Get(s.ID)
	assert.True(t, apperr.Is(err, apperr.KindAuth))
}

func TestTeacherPINUnlocksSession(t *testing.T) {
	m, _ := newManager(t)
	s, err := m.Begin(models.Teacher{ID: "t1"})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = s.Gate.Enter(ctx, "1234")
	require.NoError(t, err)
	st, err := s.Gate.Enter(ctx, "1234")
	require.NoError(t, err)
	assert.Equal(t, gate.Passed, st.State)
	assert.NoError(t, s.RequirePIN())
	assert.True(t, s.Teacher().HasPin)

	// A new session must enter the PIN again.
	s2, err := m.Begin(models.Teacher{ID: "t1", HasPin: true})
	require.NoError(t, err)
	assert.False(t, s2.PINVerified())
	_, err = s2.Gate.Enter(ctx, "9999")
	assert.True(t, apperr.Is(err, apperr.KindGateMismatch))
	_, err = s2.Gate.Enter(ctx, "1234")
	require.NoError(t, err)
	assert.True(t, s2.PINVerified())
}

func TestChildUnlockIsSessionScoped(t *testing.T) {
	m, _ := newManager(t)
	s, err := m.Begin(models.Teacher{ID: "t1"})
	require.NoError(t, err)
	ctx := context.Background()

	omar, err := s.Roster.AddChild(ctx, models.ChildDraft{Name: "Omar", AvatarID: "owl_avatar_05", Pin: "5678"})
	require.NoError(t, err)
	lina, err := s.Roster.AddChild(ctx, models.ChildDraft{Name: "Lina", AvatarID: "cat_avatar_01"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(s.Roster.Children()) == 2 }, 2*time.Second, 5*time.Millisecond)

	assert.True(t, s.ChildUnlocked(lina.ID))
	_, err = s.SelectChild(lina.ID)
	require.NoError(t, err)

	_, err = s.SelectChild(omar.ID)
	assert.True(t, apperr.Is(err, apperr.KindLocked))

	for _, attempt := range []string{"5679", "0000", "0000"} {
		_, err := s.UnlockChild(omar.ID, attempt)
		assert.True(t, apperr.Is(err, apperr.KindGateMismatch))
		assert.False(t, s.ChildUnlocked(omar.ID))
	}
	st, err := s.UnlockChild(omar.ID, "5678")
	require.NoError(t, err)
	assert.Equal(t, gate.Passed, st.State)

	child, err := s.SelectChild(omar.ID)
	require.NoError(t, err)
	assert.Equal(t, "Omar", child.Name)
	active, err := s.ActiveChild()
	require.NoError(t, err)
	assert.Equal(t, omar.ID, active.ID)

	// Another session of the same teacher starts locked.
	s2, err := m.Begin(models.Teacher{ID: "t1"})
	require.NoError(t, err)
	<-s2.Roster.Loaded()
	require.Eventually(t, func() bool { return len(s2.Roster.Children()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, s2.ChildUnlocked(omar.ID))

	_, err = s.UnlockChild("ghost", "1234")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestEndClosesAttached(t *testing.T) {
	m, _ := newManager(t)
	s, err := m.Begin(models.Teacher{ID: "t1"})
	require.NoError(t, err)

	first, second := &closer{}, &closer{}
	s.Attach("c1/a1", first)
	s.Attach("c1/a1", second)
	assert.Equal(t, 1, first.closed)

	got, ok := s.Attached("c1/a1")
	require.True(t, ok)
	assert.Same(t, second, got)

	m.End(s.ID)
	assert.Equal(t, 1, second.closed)
	m.End(s.ID)
	assert.Equal(t, 1, second.closed)
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	m, _ := newManager(t)
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	idle, err := m.Begin(models.Teacher{ID: "t1"})
	require.NoError(t, err)
	clock = clock.Add(50 * time.Minute)
	active, err := m.Begin(models.Teacher{ID: "t2"})
	require.NoError(t, err)

	clock = clock.Add(20 * time.Minute)
	assert.Equal(t, 1, m.Sweep())

	_, err = m.Get(idle.ID)
	assert.Error(t, err)
	_, err = m.Get(active.ID)
	assert.NoError(t, err)

	clock = clock.Add(2 * time.Hour)
	_, err = m.Get(active.ID)
	assert.True(t, apperr.Is(err, apperr.KindAuth))
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
	s := &Session{ID: "x"}
	got, ok := FromContext(WithSession(context.Background(), s))
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestSessionsOfOneTeacherShareChildPINs(t *testing.T) {
	m, _ := newManager(t)
	a, err := m.Begin(models.Teacher{ID: "t1", Name: "Rahma"})
	require.NoError(t, err)
	b, err := m.Begin(models.Teacher{ID: "t1", Name: "Rahma"})
	require.NoError(t, err)

	errs := make(chan error, 6)
	var wg sync.WaitGroup
	for _, s := range []*Session{a, b, a, b, a, b} {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			_, err := s.Roster.AddChild(context.Background(), models.ChildDraft{Name: "Kid", AvatarID: "fox_avatar_04", Pin: "2468"})
			errs <- err
		}(s)
	}
	wg.Wait()
	close(errs)

	added := 0
	for err := range errs {
		if err == nil {
			added++
			continue
		}
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	}
	assert.Equal(t, 1, added)
	require.Eventually(t, func() bool { return len(b.Roster.Children()) == 1 }, 2*time.Second, 10*time.Millisecond)
}
