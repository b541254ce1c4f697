package activity

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"quiz-classroom/internal/apperr"
	"quiz-classroom/internal/models"
	"quiz-classroom/pkg/gateway"
)

// SaveAnswer stores one answer and marks the progress record as started if
// this is its first answer.
func (s *Store) SaveAnswer(ctx context.Context, childID, activityID, questionID, optionID string, correct bool) error {
	now := models.Millis(s.now())
	answer := models.Answer{SelectedOptionID: optionID, IsCorrect: correct, AnsweredAt: now}
	if err := s.gw.Write(ctx, gateway.AnswerPath(s.teacherID, childID, activityID, questionID), answer); err != nil {
		return apperr.Write(err, "save answer")
	}

	progressPath := gateway.ProgressPath(s.teacherID, childID, activityID)
	_, err := s.gw.Read(ctx, gateway.Join(progressPath, "startedAt"))
	if err == nil {
		return nil
	}
	if !errors.Is(err, gateway.ErrNotFound) {
		return apperr.Read(err, "load progress")
	}
	err = s.gw.Merge(ctx, progressPath, map[string]interface{}{
		"activityId": activityID,
		"childId":    childID,
		"startedAt":  now,
	})
	if err != nil {
		return apperr.Write(err, "start progress")
	}
	return nil
}

// CompleteProgress records that the child finished the activity with the
// given percentage score.
func (s *Store) CompleteProgress(ctx context.Context, childID, activityID string, score int) error {
	err := s.gw.Merge(ctx, gateway.ProgressPath(s.teacherID, childID, activityID), map[string]interface{}{
		"completedAt": models.Millis(s.now()),
		"score":       score,
	})
	if err != nil {
		return apperr.Write(err, "complete progress")
	}
	return nil
}

// ChildProgress returns the child's progress on one activity, or nil when
// the child has not answered anything yet.
func (s *Store) ChildProgress(ctx context.Context, childID, activityID string) (*models.ActivityProgress, error) {
	snap, err := s.gw.Read(ctx, gateway.ProgressPath(s.teacherID, childID, activityID))
	if errors.Is(err, gateway.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Read(err, "load progress")
	}
	p, err := decodeProgress(snap, childID, activityID)
	if err != nil {
		return nil, apperr.Read(err, "decode progress")
	}
	return p, nil
}

// AllProgress returns the child's progress keyed by activity id.
func (s *Store) AllProgress(ctx context.Context, childID string) (map[string]*models.ActivityProgress, error) {
	out := map[string]*models.ActivityProgress{}
	snap, err := s.gw.Read(ctx, gateway.ProgressRootPath(s.teacherID, childID))
	if errors.Is(err, gateway.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, apperr.Read(err, "load progress")
	}
	for activityID, raw := range snap.Children() {
		child := gateway.Snapshot{Path: gateway.Join(snap.Path, activityID), Value: raw}
		p, err := decodeProgress(child, childID, activityID)
		if err != nil {
			return nil, apperr.Read(err, "decode progress")
		}
		out[activityID] = p
	}
	return out, nil
}

// storedProgress shadows Answers so that question ids which look like array
// indexes still decode: the tree returns such an answers node as an array.
type storedProgress struct {
	models.ActivityProgress
	Answers json.RawMessage `json:"answers"`
}

func decodeProgress(snap gateway.Snapshot, childID, activityID string) (*models.ActivityProgress, error) {
	var stored storedProgress
	if err := snap.Decode(&stored); err != nil {
		return nil, err
	}
	p := stored.ActivityProgress
	p.ChildID = childID
	p.ActivityID = activityID
	p.Answers = map[string]models.Answer{}

	answers := gateway.Snapshot{Path: gateway.Join(snap.Path, "answers"), Value: stored.Answers}
	for questionID, raw := range answers.Children() {
		if string(raw) == "null" {
			continue
		}
		var a models.Answer
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, errors.Wrapf(err, "decode answer %s", questionID)
		}
		p.Answers[questionID] = a
	}
	return &p, nil
}
