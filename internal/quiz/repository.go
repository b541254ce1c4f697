package quiz

import (
	"context"
	"sort"

	"quiz-classroom/internal/models"
	"quiz-classroom/internal/session"
)

// ProgressSummary is one row of a child's progress overview.
type ProgressSummary struct {
	ActivityID  string `json:"activityId"`
	Title       string `json:"title"`
	StartedAt   int64  `json:"startedAt"`
	CompletedAt int64  `json:"completedAt,omitempty"`
	Score       *int   `json:"score,omitempty"`
	Answered    int    `json:"answered"`
	Correct     int    `json:"correct"`
	Total       int    `json:"total"`
}

// Repository reads stored progress for the results screens of a session.
type Repository struct {
	sess *session.Session
}

func NewRepository(sess *session.Session) *Repository {
	return &Repository{sess: sess}
}

// ChildProgress lists every activity the child has started, most recent
// first. Progress on deleted activities is left out.
func (r *Repository) ChildProgress(ctx context.Context, childID string) ([]ProgressSummary, error) {
	if _, err := r.sess.Roster.Child(childID); err != nil {
		return nil, err
	}
	all, err := r.sess.Activities.AllProgress(ctx, childID)
	if err != nil {
		return nil, err
	}

	out := make([]ProgressSummary, 0, len(all))
	for activityID, p := range all {
		activity, err := r.sess.Activities.Activity(activityID)
		if err != nil {
			continue
		}
		row := ProgressSummary{
			ActivityID:  activityID,
			Title:       activity.Title,
			StartedAt:   p.StartedAt,
			CompletedAt: p.CompletedAt,
			Score:       p.Score,
			Total:       len(activity.Questions),
		}
		for qid, ans := range p.Answers {
			if _, ok := activity.Question(qid); !ok {
				continue
			}
			row.Answered++
			if ans.IsCorrect {
				row.Correct++
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt != out[j].StartedAt {
			return out[i].StartedAt > out[j].StartedAt
		}
		return out[i].ActivityID < out[j].ActivityID
	})
	return out, nil
}

// Results joins one activity with the child's answers to it.
func (r *Repository) Results(ctx context.Context, childID, activityID string) (models.ActivityResults, error) {
	child, err := r.sess.Roster.Child(childID)
	if err != nil {
		return models.ActivityResults{}, err
	}
	activity, err := r.sess.Activities.Load(ctx, activityID)
	if err != nil {
		return models.ActivityResults{}, err
	}
	progress, err := r.sess.Activities.ChildProgress(ctx, childID, activityID)
	if err != nil {
		return models.ActivityResults{}, err
	}
	return models.BuildResults(child, activity, progress), nil
}
