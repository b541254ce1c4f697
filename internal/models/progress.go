package models

// Answer is the record stored at .../progress/{activityId}/answers/{questionId}.
type Answer struct {
	SelectedOptionID string `json:"selectedOptionId"`
	IsCorrect        bool   `json:"isCorrect"`
	AnsweredAt       int64  `json:"answeredAt"`
}

type ActivityProgress struct {
	ActivityID  string            `json:"activityId"`
	ChildID     string            `json:"childId"`
	Answers     map[string]Answer `json:"answers"`
	StartedAt   int64             `json:"startedAt"`
	CompletedAt int64             `json:"completedAt,omitempty"`
	Score       *int              `json:"score,omitempty"`
}

// CorrectCount returns how many stored answers are correct.
func (p *ActivityProgress) CorrectCount() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, a := range p.Answers {
		if a.IsCorrect {
			n++
		}
	}
	return n
}
