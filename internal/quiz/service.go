package quiz

import (
	"context"
	"log"
	"time"

	"quiz-classroom/internal/apperr"
	"quiz-classroom/internal/session"
)

// Notifier pushes an event to the clients of one session.
type Notifier interface {
	Notify(sessionID, messageType string, data interface{})
}

// Service runs quizzes for the active child of a session. Each running
// quiz is an Engine attached to the session, so ending the session stops
// it.
type Service struct {
	notifier Notifier
	opts     Options
}

func NewService(notifier Notifier, feedbackDelay time.Duration) *Service {
	return &Service{notifier: notifier, opts: Options{FeedbackDelay: feedbackDelay}}
}

func engineKey(childID, activityID string) string {
	return "quiz/" + childID + "/" + activityID
}

// Start begins activityID for the active child, seeded with the child's
// stored answers. A quiz already running for the pair is replaced.
func (s *Service) Start(ctx context.Context, sess *session.Session, activityID string) (State, error) {
	child, err := sess.ActiveChild()
	if err != nil {
		return State{}, err
	}
	if !sess.ChildUnlocked(child.ID) {
		return State{}, apperr.Locked("Please enter the child's PIN first.")
	}

	activity, err := sess.Activities.Load(ctx, activityID)
	if err != nil {
		return State{}, err
	}
	key := engineKey(child.ID, activity.ID)
	if prev, ok := sess.Attached(key); ok {
		if e, ok := prev.(*Engine); ok {
			e.Flush()
		}
	}
	progress, err := sess.Activities.ChildProgress(ctx, child.ID, activity.ID)
	if err != nil {
		// Playing without the stored answers beats not playing at all.
		log.Printf("quiz: load progress of %s on %s: %v", child.ID, activity.ID, err)
		progress = nil
	}

	engine, err := NewEngine(activity, child.ID, sess.Activities, s.opts)
	if err != nil {
		return State{}, err
	}
	if s.notifier != nil {
		sessionID := sess.ID
		engine.OnChange(func(st State) {
			s.notifier.Notify(sessionID, "quiz_state", st)
		})
	}
	sess.Attach(key, engine)
	log.Printf("quiz: child %s started activity %s", child.ID, activity.ID)
	return engine.Resume(progress), nil
}

func (s *Service) engine(sess *session.Session, activityID string) (*Engine, error) {
	child, err := sess.ActiveChild()
	if err != nil {
		return nil, err
	}
	c, ok := sess.Attached(engineKey(child.ID, activityID))
	if !ok {
		return nil, apperr.NotFound("This quiz has not been started.")
	}
	engine, ok := c.(*Engine)
	if !ok {
		return nil, apperr.NotFound("This quiz has not been started.")
	}
	return engine, nil
}

func (s *Service) State(sess *session.Session, activityID string) (State, error) {
	engine, err := s.engine(sess, activityID)
	if err != nil {
		return State{}, err
	}
	return engine.State(), nil
}

func (s *Service) Answer(sess *session.Session, activityID, optionID string) (State, error) {
	engine, err := s.engine(sess, activityID)
	if err != nil {
		return State{}, err
	}
	return engine.SelectOption(optionID)
}

func (s *Service) Restart(sess *session.Session, activityID string) (State, error) {
	engine, err := s.engine(sess, activityID)
	if err != nil {
		return State{}, err
	}
	return engine.Restart()
}

// End stops the quiz. Answers already given are still written.
func (s *Service) End(sess *session.Session, activityID string) error {
	child, err := sess.ActiveChild()
	if err != nil {
		return err
	}
	if !sess.Detach(engineKey(child.ID, activityID)) {
		return apperr.NotFound("This quiz has not been started.")
	}
	return nil
}
