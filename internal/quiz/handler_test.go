package quiz

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-classroom/internal/models"
	"quiz-classroom/internal/session"
	"quiz-classroom/internal/validate"
)

func newTestRouter(f *playFixture) *mux.Router {
	h := NewHandler(f.service, validate.New())
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(session.WithSession(req.Context(), f.sess)))
		})
	})
	r.HandleFunc("/activities", h.ListActivities).Methods("GET")
	r.HandleFunc("/activities", h.CreateActivity).Methods("POST")
	r.HandleFunc("/activities/{id}", h.GetActivity).Methods("GET")
	r.HandleFunc("/activities/{id}", h.UpdateActivity).Methods("PATCH")
	r.HandleFunc("/activities/{id}", h.DeleteActivity).Methods("DELETE")
	r.HandleFunc("/play/{activityId}/start", h.StartQuiz).Methods("POST")
	r.HandleFunc("/play/{activityId}", h.GetState).Methods("GET")
	r.HandleFunc("/play/{activityId}/answer", h.SubmitAnswer).Methods("POST")
	r.HandleFunc("/play/{activityId}/restart", h.RestartQuiz).Methods("POST")
	r.HandleFunc("/play/{activityId}", h.EndQuiz).Methods("DELETE")
	r.HandleFunc("/children/{id}/progress", h.GetChildProgress).Methods("GET")
	r.HandleFunc("/children/{childId}/activities/{activityId}/results", h.GetResults).Methods("GET")
	return r
}

func serve(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestActivityRoutes(t *testing.T) {
	f := newPlayFixture(t)
	r := newTestRouter(f)

	draft := map[string]interface{}{
		"title": "Colours",
		"goals": "Name the primary colours",
		"questions": []map[string]interface{}{{
			"text": "The sky is blue",
			"type": "true_false",
			"options": []map[string]interface{}{
				{"text": "True", "isCorrect": true},
				{"text": "False"},
			},
		}},
	}
	rec := serve(t, r, "POST", "/activities", draft)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.Activity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "t1", created.TeacherID)
	require.Len(t, created.Questions, 1)
	assert.NotEmpty(t, created.Questions[0].ID)

	rec = serve(t, r, "POST", "/activities", map[string]interface{}{"title": "Empty", "goals": "none"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = serve(t, r, "GET", "/activities/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, r, "PATCH", "/activities/a1", map[string]string{"title": "Farm animals"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated models.Activity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Farm animals", updated.Title)
	assert.Equal(t, "Sounds", updated.Goals)

	rec = serve(t, r, "PATCH", "/activities/a1", map[string]interface{}{"questions": []interface{}{}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = serve(t, r, "DELETE", "/activities/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(t, r, "DELETE", "/activities/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, r, "GET", "/activities", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPlayRoutes(t *testing.T) {
	f := newPlayFixture(t)
	r := newTestRouter(f)

	rec := serve(t, r, "POST", "/play/a1/start", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, err := f.sess.SelectChild("c1")
	require.NoError(t, err)

	rec = serve(t, r, "POST", "/play/a1/start", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(t, r, "POST", "/play/a1/answer", map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = serve(t, r, "POST", "/play/a1/answer", answerRequest{OptionID: right(0)})
	require.Equal(t, http.StatusOK, rec.Code)
	var st State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.ShowFeedback)
	assert.Equal(t, right(0), st.CorrectOptionID)

	rec = serve(t, r, "POST", "/play/a1/answer", answerRequest{OptionID: right(0)})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(t, r, "POST", "/play/a1/restart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.False(t, st.ShowFeedback)
	assert.Equal(t, 1, st.Score.Correct)

	rec = serve(t, r, "GET", "/play/a1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, r, "DELETE", "/play/a1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(t, r, "GET", "/play/a1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Ending the quiz drains its writes, so the answer is visible.
	rec = serve(t, r, "GET", "/children/c1/activities/a1/results", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res models.ActivityResults
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Correct)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, "Ada", res.Child.Name)

	rec = serve(t, r, "GET", "/children/c1/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []ProgressSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].Score)

	rec = serve(t, r, "GET", "/children/ghost/activities/a1/results", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
