package session

import (
	"net/http"

	"github.com/gorilla/mux"

	"quiz-classroom/internal/models"
	"quiz-classroom/internal/respond"
	"quiz-classroom/internal/validate"
)

// Handler serves the roster routes of a session.
type Handler struct {
	validate *validate.Validator
}

func NewHandler(v *validate.Validator) *Handler {
	return &Handler{validate: v}
}

type addChildRequest struct {
	Name     string `json:"name" validate:"required,max=50"`
	AvatarID string `json:"avatarId" validate:"required"`
	Pin      string `json:"pin" validate:"omitempty,pin"`
}

type digitsRequest struct {
	Digits string `json:"digits" validate:"required,numeric,max=4"`
}

type childResponse struct {
	Child    models.ChildDTO `json:"child"`
	Unlocked bool            `json:"unlocked"`
	Active   bool            `json:"active"`
}

func (h *Handler) Avatars(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, models.Avatars())
}

func (h *Handler) ListChildren(w http.ResponseWriter, r *http.Request) {
	s, _ := FromContext(r.Context())
	active, _ := s.Roster.ActiveChild()
	children := s.Roster.Children()
	out := make([]childResponse, len(children))
	for i, c := range children {
		out[i] = childResponse{Child: c.ToDTO(), Unlocked: s.ChildUnlocked(c.ID), Active: c.ID == active.ID}
	}
	respond.JSON(w, http.StatusOK, out)
}

func (h *Handler) GetChild(w http.ResponseWriter, r *http.Request) {
	s, _ := FromContext(r.Context())
	child, err := s.Roster.Child(mux.Vars(r)["id"])
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	active, _ := s.Roster.ActiveChild()
	respond.JSON(w, http.StatusOK, childResponse{
		Child:    child.ToDTO(),
		Unlocked: s.ChildUnlocked(child.ID),
		Active:   child.ID == active.ID,
	})
}

func (h *Handler) AddChild(w http.ResponseWriter, r *http.Request) {
	s, _ := FromContext(r.Context())
	var req addChildRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respond.Error(w, r, err)
		return
	}

	child, err := s.Roster.AddChild(r.Context(), models.ChildDraft{Name: req.Name, AvatarID: req.AvatarID, Pin: req.Pin})
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, child.ToDTO())
}

// UnlockChild feeds digits into the child's PIN gate.
func (h *Handler) UnlockChild(w http.ResponseWriter, r *http.Request) {
	s, _ := FromContext(r.Context())
	var req digitsRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respond.Error(w, r, err)
		return
	}

	status, err := s.UnlockChild(mux.Vars(r)["id"], req.Digits)
	respond.Gate(w, r, status, err)
}

func (h *Handler) SelectChild(w http.ResponseWriter, r *http.Request) {
	s, _ := FromContext(r.Context())
	child, err := s.SelectChild(mux.Vars(r)["id"])
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, childResponse{Child: child.ToDTO(), Unlocked: true, Active: true})
}
