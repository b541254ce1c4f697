package models

import (
	"strings"

	"quiz-classroom/internal/apperr"
)

// PinLength is the number of digits in a teacher or child PIN.
const PinLength = 4

type Teacher struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	HasPin bool   `json:"hasPin"`
}

// Child is a learner profile as stored under teachers/{id}/children/{childId}.
// The progress subtree lives under the same node and is ignored here.
type Child struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarID  string `json:"avatarId"`
	CreatedAt int64  `json:"createdAt"`
	PinHash   string `json:"pinHash,omitempty"`
}

func (c Child) HasPin() bool { return c.PinHash != "" }

type Avatar struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

var avatars = []Avatar{
	{ID: "cat_avatar_01", URL: "https://api.dicebear.com/7.x/adventurer/svg?seed=Felix", Description: "Cute Cat"},
	{ID: "dog_avatar_02", URL: "https://api.dicebear.com/7.x/adventurer/svg?seed=Buddy", Description: "Friendly Dog"},
	{ID: "rabbit_avatar_03", URL: "https://api.dicebear.com/7.x/adventurer/svg?seed=Hopper", Description: "Happy Rabbit"},
	{ID: "fox_avatar_04", URL: "https://api.dicebear.com/7.x/adventurer/svg?seed=Rusty", Description: "Swift Fox"},
	{ID: "owl_avatar_05", URL: "https://api.dicebear.com/7.x/adventurer/svg?seed=Sage", Description: "Wise Owl"},
	{ID: "panda_avatar_06", URL: "https://api.dicebear.com/7.x/adventurer/svg?seed=Bamboo", Description: "Playful Panda"},
}

// Avatars returns a copy of the fixed avatar catalog.
func Avatars() []Avatar {
	out := make([]Avatar, len(avatars))
	copy(out, avatars)
	return out
}

func AvatarByID(id string) (Avatar, bool) {
	for _, a := range avatars {
		if a.ID == id {
			return a, true
		}
	}
	return Avatar{}, false
}

// ParsePIN checks that pin is exactly PinLength ASCII digits.
func ParsePIN(pin string) (string, error) {
	if len(pin) != PinLength {
		return "", apperr.Validation("Please enter a 4-digit PIN.", apperr.FieldError{Field: "pin", Message: "PIN must be 4 digits."})
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return "", apperr.Validation("Please enter a 4-digit PIN.", apperr.FieldError{Field: "pin", Message: "PIN may only contain digits."})
		}
	}
	return pin, nil
}

// ChildDraft is the input of the add-child flow. Pin is optional.
type ChildDraft struct {
	Name     string `json:"name"`
	AvatarID string `json:"avatarId"`
	Pin      string `json:"pin,omitempty"`
}

// Validate checks the fields that do not depend on sibling profiles.
func (d ChildDraft) Validate() error {
	var fields []apperr.FieldError
	if strings.TrimSpace(d.Name) == "" {
		fields = append(fields, apperr.FieldError{Field: "name", Message: "Please enter a name for the child."})
	}
	if _, ok := AvatarByID(d.AvatarID); !ok {
		fields = append(fields, apperr.FieldError{Field: "avatarId", Message: "Please choose one of the available avatars."})
	}
	if d.Pin != "" {
		if _, err := ParsePIN(d.Pin); err != nil {
			fields = append(fields, apperr.FieldError{Field: "pin", Message: "PIN must be 4 digits."})
		}
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid child profile", fields...)
	}
	return nil
}
