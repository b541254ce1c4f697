// Package activity keeps a teacher's activities in sync with the gateway and
// records children's progress on them.
package activity

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
	"quiz-classroom/internal/models"
	"quiz-classroom/pkg/gateway"
)

// Cache is a read-through cache of single activities.
type Cache interface {
	GetActivity(ctx context.Context, teacherID, activityID string) (*models.Activity, error)
	SetActivity(ctx context.Context, activity *models.Activity) error
	InvalidateActivity(ctx context.Context, teacherID, activityID string) error
}

// Patch is a partial activity update. Nil fields are left unchanged.
type Patch struct {
	Title      *string            `json:"title,omitempty"`
	Goals      *string            `json:"goals,omitempty"`
	Questions  *[]models.Question `json:"questions,omitempty"`
	CoverMedia *models.MediaFile  `json:"coverMedia,omitempty"`
}

// Store mirrors teachers/{id}/activities. Each pushed snapshot replaces the
// whole list.
type Store struct {
	gw        gateway.Gateway
	cache     Cache
	teacherID string
	now       func() time.Time

	mu         sync.RWMutex
	activities []*models.Activity
	listeners  []func([]*models.Activity)

	loaded     chan struct{}
	loadedOnce sync.Once
}

// NewStore returns a store for teacherID. cache may be nil.
func NewStore(gw gateway.Gateway, cache Cache, teacherID string) *Store {
	return &Store{
		gw:        gw,
		cache:     cache,
		teacherID: teacherID,
		now:       time.Now,
		loaded:    make(chan struct{}),
	}
}

// OnChange registers fn to receive every new activity list. Register before
// Start.
func (s *Store) OnChange(fn func([]*models.Activity)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) Start(ctx context.Context) error {
	snaps, err := s.gw.Subscribe(ctx, gateway.ActivitiesPath(s.teacherID))
	if err != nil {
		return apperr.Read(err, "subscribe to activities")
	}
	go func() {
		for snap := range snaps {
			s.replace(decodeActivities(snap))
		}
	}()
	return nil
}

// Loaded is closed once the first snapshot has been applied.
func (s *Store) Loaded() <-chan struct{} { return s.loaded }

func (s *Store) replace(activities []*models.Activity) {
	s.mu.Lock()
	s.activities = activities
	listeners := append([]func([]*models.Activity){}, s.listeners...)
	s.mu.Unlock()
	s.loadedOnce.Do(func() { close(s.loaded) })

	for _, fn := range listeners {
		fn(activities)
	}
}

func decodeActivities(snap gateway.Snapshot) []*models.Activity {
	raw := snap.Children()
	out := make([]*models.Activity, 0, len(raw))
	for id, v := range raw {
		a, err := decodeActivity(id, v)
		if err != nil {
			log.Printf("activity: skipping malformed activity %s: %v", id, err)
			continue
		}
		out = append(out, a)
	}
	// Newest first, like the teacher dashboard.
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func decodeActivity(id string, raw json.RawMessage) (*models.Activity, error) {
	var a models.Activity
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	if a.ID == "" {
		a.ID = id
	}
	return &a, nil
}

// Activities returns the current list. Callers must not modify the
// activities.
func (s *Store) Activities() []*models.Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Activity, len(s.activities))
	copy(out, s.activities)
	return out
}

// Activity looks id up in the synced list.
func (s *Store) Activity(id string) (*models.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.activities {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, apperr.NotFound("Activity not found.")
}

// Load returns the activity from the synced list, the cache or the gateway,
// in that order.
func (s *Store) Load(ctx context.Context, id string) (*models.Activity, error) {
	if a, err := s.Activity(id); err == nil {
		return a, nil
	}
	if s.cache != nil {
		if a, err := s.cache.GetActivity(ctx, s.teacherID, id); err == nil {
			return a, nil
		}
	}
	a, err := s.read(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetActivity(ctx, a); err != nil {
			log.Printf("activity: cache %s: %v", id, err)
		}
	}
	return a, nil
}

func (s *Store) read(ctx context.Context, id string) (*models.Activity, error) {
	if !gateway.ValidSegment(id) {
		return nil, apperr.NotFound("Activity not found.")
	}
	snap, err := s.gw.Read(ctx, gateway.ActivityPath(s.teacherID, id))
	if errors.Is(err, gateway.ErrNotFound) {
		return nil, apperr.NotFound("Activity not found.")
	}
	if err != nil {
		return nil, apperr.Read(err, "load activity")
	}
	a, err := decodeActivity(id, snap.Value)
	if err != nil {
		return nil, apperr.Read(err, "decode activity")
	}
	return a, nil
}

func (s *Store) CreateActivity(ctx context.Context, draft models.ActivityDraft) (*models.Activity, error) {
	a, err := models.NewActivity(s.gw.NewKey(), s.teacherID, draft, s.now(), s.gw.NewKey)
	if err != nil {
		return nil, err
	}
	if err := s.gw.Write(ctx, gateway.ActivityPath(s.teacherID, a.ID), a); err != nil {
		return nil, apperr.Write(err, "save activity")
	}
	return a, nil
}

// UpdateActivity applies patch to the stored activity. The result must pass
// the same validation as a new activity.
func (s *Store) UpdateActivity(ctx context.Context, id string, patch Patch) (*models.Activity, error) {
	current, err := s.read(ctx, id)
	if err != nil {
		return nil, err
	}
	draft := models.ActivityDraft{
		Title:      current.Title,
		Goals:      current.Goals,
		Questions:  current.Questions,
		CoverMedia: current.CoverMedia,
	}
	changes := map[string]interface{}{}
	if patch.Title != nil {
		draft.Title = *patch.Title
		changes["title"] = strings.TrimSpace(*patch.Title)
	}
	if patch.Goals != nil {
		draft.Goals = *patch.Goals
		changes["goals"] = strings.TrimSpace(*patch.Goals)
	}
	if patch.Questions != nil {
		draft.Questions = *patch.Questions
	}
	if patch.CoverMedia != nil {
		draft.CoverMedia = patch.CoverMedia
		changes["coverMedia"] = patch.CoverMedia
	}

	updated, err := models.NewActivity(current.ID, current.TeacherID, draft, models.FromMillis(current.CreatedAt), s.gw.NewKey)
	if err != nil {
		return nil, err
	}
	if patch.Questions != nil {
		changes["questions"] = updated.Questions
	}
	if len(changes) == 0 {
		return updated, nil
	}
	if err := s.gw.Merge(ctx, gateway.ActivityPath(s.teacherID, id), changes); err != nil {
		return nil, apperr.Write(err, "update activity")
	}
	s.invalidate(ctx, id)
	return updated, nil
}

func (s *Store) DeleteActivity(ctx context.Context, id string) error {
	if _, err := s.read(ctx, id); err != nil {
		return err
	}
	if err := s.gw.Delete(ctx, gateway.ActivityPath(s.teacherID, id)); err != nil {
		return apperr.Write(err, "delete activity")
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Store) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateActivity(ctx, s.teacherID, id); err != nil {
		log.Printf("activity: invalidate cache %s: %v", id, err)
	}
}
