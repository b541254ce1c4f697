package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-classroom/internal/apperr"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Pin      string `json:"pin,omitempty" validate:"omitempty,pin"`
}

func TestStruct(t *testing.T) {
	v := New()

	tests := []struct {
		name       string
		in         signup
		wantFields []string
	}{
		{name: "valid", in: signup{Email: "a@b.org", Password: "secret"}},
		{name: "valid with pin", in: signup{Email: "a@b.org", Password: "secret", Pin: "0420"}},
		{name: "missing", in: signup{}, wantFields: []string{"email", "password"}},
		{name: "bad email and short password", in: signup{Email: "nope", Password: "123"}, wantFields: []string{"email", "password"}},
		{name: "bad pin", in: signup{Email: "a@b.org", Password: "secret", Pin: "12a4"}, wantFields: []string{"pin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.in)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}
			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperr.KindValidation, appErr.Kind)
			var got []string
			for _, f := range appErr.Fields {
				got = append(got, f.Field)
				assert.NotEmpty(t, f.Message)
			}
			assert.ElementsMatch(t, tt.wantFields, got)
		})
	}
}

func TestRequiredMessage(t *testing.T) {
	err := New().Struct(signup{Password: "secret"})
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	require.Len(t, appErr.Fields, 1)
	assert.Equal(t, "this field is required", appErr.Fields[0].Message)
}
