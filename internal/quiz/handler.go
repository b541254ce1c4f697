package quiz

import (
	"net/http"

	"github.com/gorilla/mux"

	"quiz-classroom/internal/activity"
	"quiz-classroom/internal/models"
	"quiz-classroom/internal/respond"
	"quiz-classroom/internal/session"
	"quiz-classroom/internal/validate"
)

type Handler struct {
	service  *Service
	validate *validate.Validator
}

func NewHandler(service *Service, v *validate.Validator) *Handler {
	return &Handler{service: service, validate: v}
}

type answerRequest struct {
	OptionID string `json:"optionId" validate:"required"`
}

func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	s, _ := session.FromContext(r.Context())
	respond.JSON(w, http.StatusOK, s.Activities.Activities())
}

func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	s, _ := session.FromContext(r.Context())
	a, err := s.Activities.Load(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, a)
}

func (h *Handler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	s, _ := session.FromContext(r.Context())
	var draft models.ActivityDraft
	if err := respond.Decode(r, &draft); err != nil {
		respond.Error(w, r, err)
		return
	}

	a, err := s.Activities.CreateActivity(r.Context(), draft)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, a)
}

func (h *Handler) UpdateActivity(w http.ResponseWriter, r *http.Request) {
	s, _ := session.FromContext(r.Context())
	var patch activity.Patch
	if err := respond.Decode(r, &patch); err != nil {
		respond.Error(w, r, err)
		return
	}

	a, err := s.Activities.UpdateActivity(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, a)
}

func (h *Handler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	s, _ := session.FromContext(r.Context())
	if err := s.Activities.DeleteActivity(r.Context(), mux.Vars(r)["id"]); err != nil {
		respond.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) StartQuiz(w http.ResponseWriter, r *http.Request) {
	s, _ := session.FromContext(r.Context())
	st, err := h.service.Start(r.Context(), s, mux.Vars(r)["activityId"])
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, st)
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	s, _ := session.FromContext(r.Context())
	st, err := h.service.State(s, mux.Vars(r)["activityId"])
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, st)
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	s, _ := session.FromContext(r.Context())
	var req answerRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respond.Error(w, r, err)
		return
	}

	st, err := h.service.Answer(s, mux.Vars(r)["activityId"], req.OptionID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, st)
}

func (h *Handler) RestartQuiz(w http.ResponseWriter, r *http.Request) {
	s, _ := session.FromContext(r.Context())
	st, err := h.service.Restart(s, mux.Vars(r)["activityId"])
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, st)
}

func (h *Handler) EndQuiz(w http.ResponseWriter, r *http.Request) {
	s, _ := session.FromContext(r.Context())
	if err := h.service.End(s, mux.Vars(r)["activityId"]); err != nil {
		respond.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetChildProgress(w http.ResponseWriter, r *http.Request) {
	s, _ := session.FromContext(r.Context())
	rows, err := NewRepository(s).ChildProgress(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, rows)
}

func (h *Handler) GetResults(w http.ResponseWriter, r *http.Request) {
	s, _ := session.FromContext(r.Context())
	vars := mux.Vars(r)
	res, err := NewRepository(s).Results(r.Context(), vars["childId"], vars["activityId"])
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}
