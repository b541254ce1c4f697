// internal/models/quiz.go
package models

import (
	"fmt"
	"strings"
	"time"

	"quiz-classroom/internal/apperr"
	"quiz-classroom/pkg/gateway"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
)

const (
	multipleChoiceOptions = 4
	trueFalseOptions      = 2
)

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

type MediaFile struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	Type         MediaType `json:"type"`
}

type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

type Question struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []Option     `json:"options"`
	Media   *MediaFile   `json:"media,omitempty"`
}

// Activity is a quiz authored by a teacher. Question order is quiz order.
type Activity struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Goals      string     `json:"goals"`
	Questions  []Question `json:"questions"`
	CreatedAt  int64      `json:"createdAt"`
	TeacherID  string     `json:"teacherId"`
	CoverMedia *MediaFile `json:"coverMedia,omitempty"`
}

// ActivityDraft is what a teacher submits when authoring an activity.
type ActivityDraft struct {
	Title      string     `json:"title"`
	Goals      string     `json:"goals"`
	Questions  []Question `json:"questions"`
	CoverMedia *MediaFile `json:"coverMedia,omitempty"`
}

// NewActivity validates the draft and builds the activity. Questions and
// options without an id get one from newID.
func NewActivity(id, teacherID string, draft ActivityDraft, createdAt time.Time, newID func() string) (*Activity, error) {
	a := &Activity{
		ID:         id,
		Title:      strings.TrimSpace(draft.Title),
		Goals:      strings.TrimSpace(draft.Goals),
		Questions:  make([]Question, len(draft.Questions)),
		CreatedAt:  Millis(createdAt),
		TeacherID:  teacherID,
		CoverMedia: draft.CoverMedia,
	}
	for i, q := range draft.Questions {
		a.Questions[i] = q.normalized(newID)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// NewQuestion builds a question of the given type. True/false questions get
// the fixed True/False options; correct is the index of the right option.
func NewQuestion(id, text string, typ QuestionType, options []string, correct int, newID func() string) (Question, error) {
	q := Question{ID: id, Text: text, Type: typ}
	if typ == TrueFalse && len(options) == 0 {
		options = []string{"True", "False"}
	}
	for i, label := range options {
		q.Options = append(q.Options, Option{Text: label, IsCorrect: i == correct})
	}
	q = q.normalized(newID)
	if fields := q.validate("question"); len(fields) > 0 {
		return Question{}, apperr.Validation("invalid question", fields...)
	}
	return q, nil
}

func (q Question) normalized(newID func() string) Question {
	out := q
	out.Text = strings.TrimSpace(q.Text)
	if out.ID == "" && newID != nil {
		out.ID = newID()
	}
	out.Options = make([]Option, len(q.Options))
	for i, o := range q.Options {
		o.Text = strings.TrimSpace(o.Text)
		if o.ID == "" && newID != nil {
			o.ID = newID()
		}
		if q.Type == TrueFalse && o.Text == "" {
			if i == 0 {
				o.Text = "True"
			} else {
				o.Text = "False"
			}
		}
		out.Options[i] = o
	}
	return out
}

// Validate checks every authoring invariant and reports all violations.
func (a *Activity) Validate() error {
	var fields []apperr.FieldError
	if a.Title == "" {
		fields = append(fields, apperr.FieldError{Field: "title", Message: "Please enter a title for this activity."})
	}
	if a.Goals == "" {
		fields = append(fields, apperr.FieldError{Field: "goals", Message: "Please enter the learning goals for this activity."})
	}
	if len(a.Questions) == 0 {
		fields = append(fields, apperr.FieldError{Field: "questions", Message: "Please add at least one question to the activity."})
	}
	seen := make(map[string]bool, len(a.Questions))
	for i, q := range a.Questions {
		prefix := fmt.Sprintf("questions[%d]", i)
		fields = append(fields, q.validate(prefix)...)
		if q.ID != "" && seen[q.ID] {
			fields = append(fields, apperr.FieldError{Field: prefix + ".id", Message: "Question ids must be unique."})
		}
		seen[q.ID] = true
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid activity", fields...)
	}
	return nil
}

func (q Question) validate(prefix string) []apperr.FieldError {
	var fields []apperr.FieldError
	add := func(field, msg string) {
		fields = append(fields, apperr.FieldError{Field: prefix + field, Message: msg})
	}
	if q.ID == "" {
		add(".id", "Question id is required.")
	} else if !gateway.ValidSegment(q.ID) {
		add(".id", "Question ids cannot contain . # $ [ ] or /.")
	}
	if q.Text == "" {
		add(".text", "Please enter text for all questions.")
	}
	switch q.Type {
	case MultipleChoice:
		if len(q.Options) != multipleChoiceOptions {
			add(".options", fmt.Sprintf("Multiple choice questions need exactly %d options.", multipleChoiceOptions))
		}
		for _, o := range q.Options {
			if o.Text == "" {
				add(".options", "Please enter text for all options in multiple choice questions.")
				break
			}
		}
	case TrueFalse:
		if len(q.Options) != trueFalseOptions {
			add(".options", "True/false questions have exactly 2 options.")
		}
	default:
		add(".type", fmt.Sprintf("Unknown question type %q.", q.Type))
	}
	correct := 0
	ids := make(map[string]bool, len(q.Options))
	for _, o := range q.Options {
		if o.IsCorrect {
			correct++
		}
		if o.ID == "" || ids[o.ID] {
			add(".options", "Option ids must be present and unique.")
		}
		ids[o.ID] = true
	}
	switch {
	case correct == 0:
		add(".options", "Please mark a correct answer for each question.")
	case correct > 1:
		add(".options", "Only one option can be marked correct.")
	}
	return fields
}

// Option returns the option with the given id.
func (q Question) Option(id string) (Option, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// CorrectOption returns the single option marked correct.
func (q Question) CorrectOption() (Option, bool) {
	for _, o := range q.Options {
		if o.IsCorrect {
			return o, true
		}
	}
	return Option{}, false
}

// Question returns the question with the given id.
func (a *Activity) Question(id string) (Question, bool) {
	for _, q := range a.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Millis converts t to the Unix millisecond timestamps stored in the tree.
func Millis(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}

// FromMillis is the inverse of Millis.
func FromMillis(ms int64) time.Time {
	return time.Unix(0, ms*int64(time.Millisecond))
}
