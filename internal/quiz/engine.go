package quiz

import (
	"context"
	"sort"
	"sync"
	"time"

	"quiz-classroom/internal/apperr"
	"quiz-classroom/internal/models"
)

// DefaultFeedbackDelay is how long the answer feedback stays up before the
// next question.
const DefaultFeedbackDelay = 2 * time.Second

var (
	ErrAnswerLocked = apperr.Locked("Please wait for the next question.")
	ErrClosed       = apperr.Locked("This quiz session has ended.")
)

// ProgressWriter persists answers and completions.
type ProgressWriter interface {
	SaveAnswer(ctx context.Context, childID, activityID, questionID, optionID string, correct bool) error
	CompleteProgress(ctx context.Context, childID, activityID string, score int) error
}

type Score struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Percent is the whole-number percentage of correct answers; 0 when there
// are no questions.
func (s Score) Percent() int { return models.Percent(s.Correct, s.Total) }

// State is a snapshot of a running quiz.
type State struct {
	ActivityID           string              `json:"activityId"`
	ChildID              string              `json:"childId"`
	CurrentQuestionIndex int                 `json:"currentQuestionIndex"`
	Question             *models.QuestionDTO `json:"question,omitempty"`
	SelectedOptionID     string              `json:"selectedOptionId,omitempty"`
	IsCorrect            *bool               `json:"isCorrect,omitempty"`
	CorrectOptionID      string              `json:"correctOptionId,omitempty"`
	ShowFeedback         bool                `json:"showFeedback"`
	Completed            bool                `json:"completed"`
	Score                Score               `json:"score"`
	Percent              int                 `json:"percent"`
	AnsweredQuestions    []string            `json:"answeredQuestions"`
}

type Options struct {
	Scheduler     Scheduler
	FeedbackDelay time.Duration
}

// Engine walks one child through one activity. After an answer the feedback
// stays up for the feedback delay, then the engine moves to the next
// question or completes. Answer writes are queued in order and never
// awaited.
type Engine struct {
	activity *models.Activity
	childID  string
	progress ProgressWriter
	sched    Scheduler
	delay    time.Duration
	writes   *writeQueue

	mu           sync.Mutex
	index        int
	selected     string
	isCorrect    *bool
	showFeedback bool
	completed    bool
	correct      int
	answered     map[string]bool
	// persisted holds the latest known stored answer per question.
	persisted map[string]bool
	timer     Timer
	gen       int
	closed    bool
	listeners []func(State)

	// notifyMu keeps listener calls in state order.
	notifyMu sync.Mutex
}

// NewEngine returns an engine positioned on the first question.
func NewEngine(activity *models.Activity, childID string, progress ProgressWriter, opts Options) (*Engine, error) {
	if activity == nil || len(activity.Questions) == 0 {
		return nil, apperr.Validation("This activity has no questions.")
	}
	if opts.Scheduler == nil {
		opts.Scheduler = RealScheduler
	}
	if opts.FeedbackDelay <= 0 {
		opts.FeedbackDelay = DefaultFeedbackDelay
	}
	e := &Engine{
		activity:  activity,
		childID:   childID,
		progress:  progress,
		sched:     opts.Scheduler,
		delay:     opts.FeedbackDelay,
		writes:    newWriteQueue(),
		persisted: map[string]bool{},
	}
	e.resetLocked()
	return e, nil
}

// OnChange registers fn to receive every new state. fn must not call back
// into the engine.
func (e *Engine) OnChange(fn func(State)) {
	e.mu.Lock()
	e.listeners = append(e.listeners, fn)
	e.mu.Unlock()
}

func (e *Engine) ActivityID() string { return e.activity.ID }

func (e *Engine) ChildID() string { return e.childID }

// Resume seeds the answered set and the correct count from stored progress.
// The quiz still starts from the first question. Answers to questions that
// are no longer part of the activity are ignored.
func (e *Engine) Resume(p *models.ActivityProgress) State {
	e.mu.Lock()
	e.persisted = map[string]bool{}
	if p != nil {
		for qid, ans := range p.Answers {
			if _, ok := e.activity.Question(qid); ok {
				e.persisted[qid] = ans.IsCorrect
			}
		}
	}
	e.cancelTimerLocked()
	e.resetLocked()
	return e.commit()
}

// Restart returns to the first question, keeping what has been stored.
func (e *Engine) Restart() (State, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return State{}, ErrClosed
	}
	e.cancelTimerLocked()
	e.resetLocked()
	return e.commit(), nil
}

func (e *Engine) resetLocked() {
	e.index = 0
	e.selected = ""
	e.isCorrect = nil
	e.showFeedback = false
	e.completed = false
	e.answered = make(map[string]bool, len(e.persisted))
	e.correct = 0
	for qid, correct := range e.persisted {
		e.answered[qid] = true
		if correct {
			e.correct++
		}
	}
}

// SelectOption answers the current question. It fails with ErrAnswerLocked
// while feedback is showing or after completion. An option id that is not
// on the current question is ignored.
func (e *Engine) SelectOption(optionID string) (State, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return State{}, ErrClosed
	}
	if e.showFeedback || e.completed {
		st := e.stateLocked()
		e.mu.Unlock()
		return st, ErrAnswerLocked
	}
	q := e.activity.Questions[e.index]
	opt, ok := q.Option(optionID)
	if !ok {
		st := e.stateLocked()
		e.mu.Unlock()
		return st, nil
	}

	correct := opt.IsCorrect
	e.selected = opt.ID
	e.isCorrect = &correct
	e.showFeedback = true
	first := !e.answered[q.ID]
	e.answered[q.ID] = true
	e.persisted[q.ID] = correct
	if first && correct {
		e.correct++
	}

	activityID, childID, questionID := e.activity.ID, e.childID, q.ID
	e.writes.submit("save answer "+questionID, func(ctx context.Context) error {
		return e.progress.SaveAnswer(ctx, childID, activityID, questionID, opt.ID, correct)
	})

	e.gen++
	gen := e.gen
	e.timer = e.sched.AfterFunc(e.delay, func() { e.advance(gen) })
	return e.commit(), nil
}

func (e *Engine) advance(gen int) {
	e.mu.Lock()
	if e.closed || gen != e.gen || !e.showFeedback {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	if e.index == len(e.activity.Questions)-1 {
		e.completed = true
		e.showFeedback = false
		percent := models.Percent(e.correct, len(e.activity.Questions))
		activityID, childID := e.activity.ID, e.childID
		e.writes.submit("complete progress", func(ctx context.Context) error {
			return e.progress.CompleteProgress(ctx, childID, activityID, percent)
		})
	} else {
		e.index++
		e.selected = ""
		e.isCorrect = nil
		e.showFeedback = false
	}
	e.commit()
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// Close cancels a pending transition and stops accepting answers. It returns
// once the writes already queued have run.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.cancelTimerLocked()
	e.mu.Unlock()
	e.writes.close()
	<-e.writes.stopped
	return nil
}

// Flush waits for every queued write to finish.
func (e *Engine) Flush() { e.writes.flush() }

func (e *Engine) cancelTimerLocked() {
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// commit releases e.mu and publishes the current state to listeners in
// order. It must be called with e.mu held.
func (e *Engine) commit() State {
	st := e.stateLocked()
	listeners := e.listeners
	e.notifyMu.Lock()
	e.mu.Unlock()
	defer e.notifyMu.Unlock()
	for _, fn := range listeners {
		fn(st)
	}
	return st
}

func (e *Engine) stateLocked() State {
	st := State{
		ActivityID:           e.activity.ID,
		ChildID:              e.childID,
		CurrentQuestionIndex: e.index,
		SelectedOptionID:     e.selected,
		ShowFeedback:         e.showFeedback,
		Completed:            e.completed,
		Score:                Score{Correct: e.correct, Total: len(e.activity.Questions)},
		AnsweredQuestions:    make([]string, 0, len(e.answered)),
	}
	st.Percent = st.Score.Percent()
	if e.isCorrect != nil {
		v := *e.isCorrect
		st.IsCorrect = &v
	}
	q := e.activity.Questions[e.index]
	dto := q.ToDTO()
	st.Question = &dto
	if e.showFeedback {
		if c, ok := q.CorrectOption(); ok {
			st.CorrectOptionID = c.ID
		}
	}
	for qid := range e.answered {
		st.AnsweredQuestions = append(st.AnsweredQuestions, qid)
	}
	sort.Strings(st.AnsweredQuestions)
	return st
}
