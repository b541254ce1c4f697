package apperr

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "auth", err: Auth("bad credentials"), want: http.StatusUnauthorized},
		{name: "validation", err: Validation("title required"), want: http.StatusUnprocessableEntity},
		{name: "not found", err: NotFound("child not found"), want: http.StatusNotFound},
		{name: "gate", err: GateMismatch("incorrect PIN"), want: http.StatusConflict},
		{name: "locked", err: Locked("wait for the next question"), want: http.StatusConflict},
		{name: "read", err: Read(errors.New("dial tcp"), "load children"), want: http.StatusServiceUnavailable},
		{name: "write", err: Write(errors.New("dial tcp"), "save child"), want: http.StatusInternalServerError},
		{name: "wrapped", err: fmt.Errorf("handler: %w", NotFound("activity not found")), want: http.StatusNotFound},
		{name: "plain", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.err))
		})
	}
}

func TestPublicHidesGatewayCause(t *testing.T) {
	msg, fields := Public(Write(errors.New("pq: permission denied for table tree_nodes"), "save child"))
	assert.NotContains(t, msg, "permission denied")
	assert.Nil(t, fields)

	msg, fields = Public(Validation("invalid activity", FieldError{Field: "title", Message: "title is required"}))
	assert.Equal(t, "invalid activity", msg)
	assert.Len(t, fields, 1)
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", GateMismatch("PINs don't match"))
	assert.True(t, Is(err, KindGateMismatch))
	assert.False(t, Is(err, KindAuth))
	assert.False(t, Is(nil, KindAuth))
}
