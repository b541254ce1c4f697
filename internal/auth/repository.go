package auth

import (
	"context"

	"github.com/pkg/errors"

	"quiz-classroom/internal/models"
	"quiz-classroom/pkg/gateway"
)

type profile struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	HasPin bool   `json:"hasPin"`
}

type security struct {
	HasPin    bool   `json:"hasPin"`
	HashedPin string `json:"hashedPin,omitempty"`
}

// Repository reads and writes teacher accounts through the gateway.
type Repository struct {
	gw gateway.Gateway
}

func NewRepository(gw gateway.Gateway) *Repository {
	return &Repository{gw: gw}
}

func (r *Repository) CreateTeacher(ctx context.Context, name, email, password string) (*models.Teacher, error) {
	id, err := r.gw.CreateAccount(ctx, email, password, profile{Name: name, Email: email})
	if err != nil {
		return nil, err
	}
	return &models.Teacher{ID: id.UID, Name: name, Email: id.Email}, nil
}

func (r *Repository) Authenticate(ctx context.Context, email, password string) (gateway.Identity, error) {
	return r.gw.Authenticate(ctx, email, password)
}

// GetTeacher loads the profile of teacherID. A missing profile yields a
// teacher with only the id set.
func (r *Repository) GetTeacher(ctx context.Context, teacherID string) (*models.Teacher, error) {
	t := &models.Teacher{ID: teacherID}
	snap, err := r.gw.Read(ctx, gateway.ProfilePath(teacherID))
	if errors.Is(err, gateway.ErrNotFound) {
		return t, nil
	}
	if err != nil {
		return nil, err
	}
	var p profile
	if err := snap.Decode(&p); err != nil {
		return nil, err
	}
	t.Name, t.Email, t.HasPin = p.Name, p.Email, p.HasPin
	return t, nil
}

// PINHash returns the stored teacher PIN hash, or "" when none is set.
func (r *Repository) PINHash(ctx context.Context, teacherID string) (string, error) {
	snap, err := r.gw.Read(ctx, gateway.SecurityPath(teacherID))
	if errors.Is(err, gateway.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var sec security
	if err := snap.Decode(&sec); err != nil {
		return "", err
	}
	if !sec.HasPin {
		return "", nil
	}
	return sec.HashedPin, nil
}

// SavePINHash stores the hash and flips hasPin on both the security record
// and the profile.
func (r *Repository) SavePINHash(ctx context.Context, teacherID, hash string) error {
	if err := r.gw.Write(ctx, gateway.SecurityPath(teacherID), security{HasPin: true, HashedPin: hash}); err != nil {
		return err
	}
	return r.gw.Merge(ctx, gateway.ProfilePath(teacherID), map[string]interface{}{"hasPin": true})
}
