// internal/models/dto.go
package models

// QuestionDTO is a question as shown to a child: the correct flag is hidden.
type QuestionDTO struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []OptionDTO  `json:"options"`
	Media   *MediaFile   `json:"media,omitempty"`
}

type OptionDTO struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (q Question) ToDTO() QuestionDTO {
	optionDTOs := make([]OptionDTO, len(q.Options))
	for i, opt := range q.Options {
		optionDTOs[i] = OptionDTO{
			ID:   opt.ID,
			Text: opt.Text,
		}
	}
	return QuestionDTO{
		ID:      q.ID,
		Text:    q.Text,
		Type:    q.Type,
		Options: optionDTOs,
		Media:   q.Media,
	}
}

// ChildDTO is the public view of a child profile; the PIN hash never leaves
// the server.
type ChildDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarID  string `json:"avatarId"`
	Avatar    Avatar `json:"avatar"`
	CreatedAt int64  `json:"createdAt"`
	HasPin    bool   `json:"hasPin"`
}

func (c Child) ToDTO() ChildDTO {
	avatar, _ := AvatarByID(c.AvatarID)
	return ChildDTO{
		ID:        c.ID,
		Name:      c.Name,
		AvatarID:  c.AvatarID,
		Avatar:    avatar,
		CreatedAt: c.CreatedAt,
		HasPin:    c.HasPin(),
	}
}

// QuestionResult is one row of the per-child results review.
type QuestionResult struct {
	QuestionID     string `json:"questionId"`
	Text           string `json:"text"`
	Answered       bool   `json:"answered"`
	IsCorrect      bool   `json:"isCorrect"`
	SelectedOption string `json:"selectedOption,omitempty"`
	CorrectOption  string `json:"correctOption"`
	AnsweredAt     int64  `json:"answeredAt,omitempty"`
}

type ActivityResults struct {
	Child     ChildDTO          `json:"child"`
	Activity  *Activity         `json:"activity"`
	Progress  *ActivityProgress `json:"progress,omitempty"`
	Questions []QuestionResult  `json:"questions"`
	Correct   int               `json:"correct"`
	Total     int               `json:"total"`
	Percent   int               `json:"percent"`
}

// BuildResults joins an activity with a child's progress record.
func BuildResults(child Child, activity *Activity, progress *ActivityProgress) ActivityResults {
	res := ActivityResults{
		Child:     child.ToDTO(),
		Activity:  activity,
		Progress:  progress,
		Questions: make([]QuestionResult, 0, len(activity.Questions)),
		Total:     len(activity.Questions),
	}
	for _, q := range activity.Questions {
		row := QuestionResult{QuestionID: q.ID, Text: q.Text}
		if correct, ok := q.CorrectOption(); ok {
			row.CorrectOption = correct.Text
		}
		if progress != nil {
			if ans, ok := progress.Answers[q.ID]; ok {
				row.Answered = true
				row.IsCorrect = ans.IsCorrect
				row.AnsweredAt = ans.AnsweredAt
				if opt, ok := q.Option(ans.SelectedOptionID); ok {
					row.SelectedOption = opt.Text
				}
				if ans.IsCorrect {
					res.Correct++
				}
			}
		}
		res.Questions = append(res.Questions, row)
	}
	res.Percent = Percent(res.Correct, res.Total)
	return res
}

// Percent is correct/total as a whole percentage; 0 when total is 0.
func Percent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return correct * 100 / total
}
