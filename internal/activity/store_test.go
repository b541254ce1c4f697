package activity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-classroom/internal/apperr"
	"quiz-classroom/internal/models"
	"quiz-classroom/pkg/gateway"
	"quiz-classroom/pkg/gateway/gatewaytest"
)

var errMiss = errors.New("miss")

type stubCache struct {
	mu          sync.Mutex
	items       map[string]*models.Activity
	invalidated []string
}

func newStubCache() *stubCache { return &stubCache{items: map[string]*models.Activity{}} }

func (c *stubCache) GetActivity(_ context.Context, teacherID, id string) (*models.Activity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.items[teacherID+"/"+id]
	if !ok {
		return nil, errMiss
	}
	return a, nil
}

func (c *stubCache) SetActivity(_ context.Context, a *models.Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[a.TeacherID+"/"+a.ID] = a
	return nil
}

func (c *stubCache) InvalidateActivity(_ context.Context, teacherID, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, teacherID+"/"+id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

func newTestStore(gw gateway.Gateway, cache Cache) *Store {
	s := NewStore(gw, cache, "t1")
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func mcQuestion(text string, correct int) models.Question {
	q := models.Question{Text: text, Type: models.MultipleChoice}
	for i := 0; i < 4; i++ {
		q.Options = append(q.Options, models.Option{Text: fmt.Sprintf("%s option %d", text, i), IsCorrect: i == correct})
	}
	return q
}

func animalsDraft() models.ActivityDraft {
	return models.ActivityDraft{
		Title: "Animals",
		Goals: "Recognise animal sounds",
		Questions: []models.Question{
			mcQuestion("Which animal barks?", 1),
			mcQuestion("Which animal meows?", 0),
		},
	}
}

func TestCreateAndSync(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gw := gatewaytest.New()
	s := newTestStore(gw, nil)
	require.NoError(t, s.Start(ctx))
	<-s.Loaded()

	first, err := s.CreateActivity(ctx, animalsDraft())
	require.NoError(t, err)
	draft := animalsDraft()
	draft.Title = "Colours"
	second, err := s.CreateActivity(ctx, draft)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(s.Activities()) == 2 }, 2*time.Second, 5*time.Millisecond)
	list := s.Activities()
	assert.Equal(t, second.ID, list[0].ID, "newest first")
	assert.Equal(t, first.ID, list[1].ID)

	got, err := s.Activity(first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Questions, got.Questions)
	assert.Equal(t, "t1", got.TeacherID)
}

func TestCreateRejectsInvalidActivity(t *testing.T) {
	gw := gatewaytest.New()
	s := newTestStore(gw, nil)

	draft := animalsDraft()
	draft.Questions[1].Options[2].IsCorrect = true
	_, err := s.CreateActivity(context.Background(), draft)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, gw.Writes())
}

func TestLoadReadsThroughCache(t *testing.T) {
	ctx := context.Background()
	gw := gatewaytest.New()
	cache := newStubCache()
	s := newTestStore(gw, cache)

	a, err := s.CreateActivity(ctx, animalsDraft())
	require.NoError(t, err)

	got, err := s.Load(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Title, got.Title)
	cached, err := cache.GetActivity(ctx, "t1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, cached.ID)

	_, err = s.Load(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdateActivity(t *testing.T) {
	ctx := context.Background()
	gw := gatewaytest.New()
	cache := newStubCache()
	s := newTestStore(gw, cache)

	a, err := s.CreateActivity(ctx, animalsDraft())
	require.NoError(t, err)

	title := "Farm animals"
	updated, err := s.UpdateActivity(ctx, a.ID, Patch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Farm animals", updated.Title)
	assert.Equal(t, a.CreatedAt, updated.CreatedAt)
	assert.Contains(t, cache.invalidated, a.ID)

	stored, err := s.read(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Farm animals", stored.Title)
	assert.Equal(t, a.Goals, stored.Goals)
	assert.Equal(t, a.Questions, stored.Questions)

	empty := []models.Question{}
	_, err = s.UpdateActivity(ctx, a.ID, Patch{Questions: &empty})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	questions := []models.Question{mcQuestion("Which animal quacks?", 3)}
	updated, err = s.UpdateActivity(ctx, a.ID, Patch{Questions: &questions})
	require.NoError(t, err)
	stored, err = s.read(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Questions, 1)
	assert.Equal(t, updated.Questions, stored.Questions)
}

func TestDeleteActivity(t *testing.T) {
	ctx := context.Background()
	gw := gatewaytest.New()
	s := newTestStore(gw, newStubCache())

	a, err := s.CreateActivity(ctx, animalsDraft())
	require.NoError(t, err)
	require.NoError(t, s.DeleteActivity(ctx, a.ID))

	_, err = s.Load(ctx, a.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.True(t, apperr.Is(s.DeleteActivity(ctx, a.ID), apperr.KindNotFound))
}

func TestSaveAnswerAndProgress(t *testing.T) {
	ctx := context.Background()
	gw := gatewaytest.New()
	s := newTestStore(gw, nil)

	p, err := s.ChildProgress(ctx, "c1", "a1")
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, s.SaveAnswer(ctx, "c1", "a1", "q1", "o2", true))
	require.NoError(t, s.SaveAnswer(ctx, "c1", "a1", "q2", "o5", false))

	p, err = s.ChildProgress(ctx, "c1", "a1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "c1", p.ChildID)
	assert.Equal(t, "a1", p.ActivityID)
	assert.Len(t, p.Answers, 2)
	assert.True(t, p.Answers["q1"].IsCorrect)
	assert.Equal(t, "o5", p.Answers["q2"].SelectedOptionID)
	assert.Equal(t, 1, p.CorrectCount())
	// startedAt is the first answer's time and is not moved by later ones.
	assert.Equal(t, p.Answers["q1"].AnsweredAt, p.StartedAt)
	assert.Nil(t, p.Score)

	require.NoError(t, s.CompleteProgress(ctx, "c1", "a1", 50))
	p, err = s.ChildProgress(ctx, "c1", "a1")
	require.NoError(t, err)
	require.NotNil(t, p.Score)
	assert.Equal(t, 50, *p.Score)
	assert.NotZero(t, p.CompletedAt)

	all, err := s.AllProgress(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Contains(t, all, "a1")
}

func TestProgressWithIndexLikeQuestionIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(gatewaytest.New(), nil)

	require.NoError(t, s.SaveAnswer(ctx, "c1", "a1", "0", "o1", true))
	require.NoError(t, s.SaveAnswer(ctx, "c1", "a1", "1", "o6", false))

	p, err := s.ChildProgress(ctx, "c1", "a1")
	require.NoError(t, err)
	require.Len(t, p.Answers, 2)
	assert.True(t, p.Answers["0"].IsCorrect)
	assert.Equal(t, "o6", p.Answers["1"].SelectedOptionID)
	assert.NotZero(t, p.StartedAt)

	all, err := s.AllProgress(ctx, "c1")
	require.NoError(t, err)
	require.Contains(t, all, "a1")
	assert.Len(t, all["a1"].Answers, 2)
}

func TestSaveAnswerWriteFailure(t *testing.T) {
	gw := gatewaytest.New()
	gw.SetWriteErr(errors.New("offline"))
	s := newTestStore(gw, nil)

	err := s.SaveAnswer(context.Background(), "c1", "a1", "q1", "o1", true)
	assert.True(t, apperr.Is(err, apperr.KindWrite))
}
