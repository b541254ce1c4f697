package quiz

import (
	"encoding/json"

	"quiz-classroom/internal/apperr"
	"quiz-classroom/internal/session"
)

type clientMessage struct {
	ActivityID string `json:"activityId"`
	OptionID   string `json:"optionId"`
}

// Realtime routes websocket messages of a session to its running quizzes.
// The resulting state reaches the clients as a quiz_state event.
type Realtime struct {
	service  *Service
	sessions *session.Manager
}

func NewRealtime(service *Service, sessions *session.Manager) *Realtime {
	return &Realtime{service: service, sessions: sessions}
}

func (rt *Realtime) HandleClientMessage(sessionID, messageType string, data json.RawMessage) error {
	sess, err := rt.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	var msg clientMessage
	if len(data) > 0 {
		if err := json.Unmarshal(data, &msg); err != nil {
			return apperr.Validation("Invalid message")
		}
	}

	switch messageType {
	case "select_option":
		_, err = rt.service.Answer(sess, msg.ActivityID, msg.OptionID)
	case "restart":
		_, err = rt.service.Restart(sess, msg.ActivityID)
	default:
		err = apperr.Validation("Unknown message type " + messageType)
	}
	return err
}
