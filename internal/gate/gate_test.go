package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-classroom/internal/apperr"
)

type stubPINStore struct {
	hash    string
	saves   int
	loadErr error
	saveErr error
}

func (s *stubPINStore) PINHash(context.Context, string) (string, error) {
	return s.hash, s.loadErr
}

func (s *stubPINStore) SavePINHash(_ context.Context, _ string, hash string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.hash = hash
	s.saves++
	return nil
}

func TestDigitBuffer(t *testing.T) {
	var b DigitBuffer
	assert.False(t, b.Append('x'))
	for _, d := range []byte("123") {
		assert.True(t, b.Append(d))
	}
	assert.Equal(t, "***_", b.Masked())
	assert.False(t, b.Full())

	b.Backspace()
	assert.Equal(t, "12", b.String())
	assert.True(t, b.Append('9'))
	assert.True(t, b.Append('0'))
	assert.True(t, b.Full())
	assert.False(t, b.Append('1'))
	assert.Equal(t, "1290", b.String())

	b.Clear()
	assert.Equal(t, 0, b.Len())
	b.Backspace()
	assert.Equal(t, "", b.String())
}

func TestTeacherGateSetup(t *testing.T) {
	ctx := context.Background()
	store := &stubPINStore{}
	g := NewTeacherGate("t1", false, store)

	st, err := g.Enter(ctx, "12")
	require.NoError(t, err)
	assert.Equal(t, AwaitingFirstEntry, st.State)
	assert.True(t, st.Setup)
	assert.Equal(t, 2, st.Entered)

	st, err = g.Enter(ctx, "34")
	require.NoError(t, err)
	assert.Equal(t, AwaitingConfirmation, st.State)
	assert.Equal(t, 0, st.Entered)

	// A confirmation that does not match starts over.
	st, err = g.Enter(ctx, "1235")
	assert.True(t, apperr.Is(err, apperr.KindGateMismatch))
	assert.Equal(t, AwaitingFirstEntry, st.State)
	assert.Equal(t, 0, store.saves)

	_, err = g.Enter(ctx, "1234")
	require.NoError(t, err)
	st, err = g.Enter(ctx, "1234")
	require.NoError(t, err)
	assert.Equal(t, Passed, st.State)
	assert.False(t, st.Setup)
	assert.Equal(t, 1, store.saves)
	assert.True(t, MatchPIN(store.hash, "1234"))
	assert.True(t, g.Passed())
}

func TestTeacherGateVerify(t *testing.T) {
	ctx := context.Background()
	hash, err := HashPIN("1234")
	require.NoError(t, err)
	store := &stubPINStore{hash: hash}
	g := NewTeacherGate("t1", true, store)

	for i := 0; i < 5; i++ {
		st, err := g.Enter(ctx, "4321")
		assert.True(t, apperr.Is(err, apperr.KindGateMismatch))
		assert.Equal(t, AwaitingFirstEntry, st.State)
		assert.Equal(t, 0, st.Entered)
	}

	st, err := g.Enter(ctx, "1234")
	require.NoError(t, err)
	assert.Equal(t, Passed, st.State)
	assert.Equal(t, 0, store.saves)
}

func TestTeacherGateStoreFailure(t *testing.T) {
	ctx := context.Background()
	g := NewTeacherGate("t1", true, &stubPINStore{loadErr: errors.New("offline")})
	st, err := g.Enter(ctx, "1234")
	assert.True(t, apperr.Is(err, apperr.KindRead))
	assert.Equal(t, AwaitingFirstEntry, st.State)

	g = NewTeacherGate("t1", false, &stubPINStore{saveErr: errors.New("offline")})
	_, err = g.Enter(ctx, "1111")
	require.NoError(t, err)
	st, err = g.Enter(ctx, "1111")
	assert.True(t, apperr.Is(err, apperr.KindWrite))
	assert.Equal(t, AwaitingFirstEntry, st.State)
}

func TestChildGateWithoutPIN(t *testing.T) {
	g := NewChildGate("lina", "")
	assert.True(t, g.Passed())
}

func TestChildGateScenario(t *testing.T) {
	hash, err := HashPIN("5678")
	require.NoError(t, err)
	g := NewChildGate("omar", hash)
	assert.Equal(t, AwaitingEntry, g.Status().State)

	for _, attempt := range []string{"5679", "0000", "0000"} {
		st, err := g.Enter(attempt)
		assert.True(t, apperr.Is(err, apperr.KindGateMismatch), attempt)
		assert.Equal(t, AwaitingEntry, st.State)
		assert.Equal(t, 0, st.Entered)
		assert.False(t, g.Passed())
	}

	_, err = g.Enter("56")
	require.NoError(t, err)
	st := g.Backspace()
	assert.Equal(t, 1, st.Entered)
	st, err = g.Enter("678")
	require.NoError(t, err)
	assert.Equal(t, Passed, st.State)
}
