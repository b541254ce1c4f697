package auth

import (
	"net/http"

	"quiz-classroom/internal/gate"
	"quiz-classroom/internal/models"
	"quiz-classroom/internal/respond"
	"quiz-classroom/internal/session"
	"quiz-classroom/internal/validate"
)

type Handler struct {
	service  *Service
	sessions *session.Manager
	validate *validate.Validator
}

func NewHandler(service *Service, sessions *session.Manager, v *validate.Validator) *Handler {
	return &Handler{service: service, sessions: sessions, validate: v}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type DigitsRequest struct {
	Digits string `json:"digits" validate:"required,numeric,max=4"`
}

type authResponse struct {
	Token   string         `json:"token"`
	Teacher models.Teacher `json:"teacher"`
}

type meResponse struct {
	Teacher     models.Teacher `json:"teacher"`
	PINVerified bool           `json:"pinVerified"`
	Gate        gate.Status    `json:"gate"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respond.Error(w, r, err)
		return
	}

	teacher, err := h.service.Register(r.Context(), req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	h.startSession(w, r, teacher, http.StatusCreated)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respond.Error(w, r, err)
		return
	}

	teacher, err := h.service.Login(r.Context(), req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	h.startSession(w, r, teacher, http.StatusOK)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, teacher *models.Teacher, status int) {
	s, err := h.sessions.Begin(*teacher)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	token, err := h.service.IssueToken(teacher.ID, s.ID)
	if err != nil {
		h.sessions.End(s.ID)
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, status, authResponse{Token: token, Teacher: *teacher})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	s, _ := session.FromContext(r.Context())
	h.sessions.End(s.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	s, _ := session.FromContext(r.Context())
	respond.JSON(w, http.StatusOK, meResponse{
		Teacher:     s.Teacher(),
		PINVerified: s.PINVerified(),
		Gate:        s.Gate.Status(),
	})
}

// EnterPIN feeds digits into the teacher gate. The first PIN entered on an
// account without one must be confirmed by a second entry.
func (h *Handler) EnterPIN(w http.ResponseWriter, r *http.Request) {
	s, _ := session.FromContext(r.Context())
	var req DigitsRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respond.Error(w, r, err)
		return
	}

	status, err := s.Gate.Enter(r.Context(), req.Digits)
	respond.Gate(w, r, status, err)
}

func (h *Handler) BackspacePIN(w http.ResponseWriter, r *http.Request) {
	s, _ := session.FromContext(r.Context())
	respond.JSON(w, http.StatusOK, respond.GateResponse{Gate: s.Gate.Backspace()})
}
