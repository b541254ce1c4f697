// Package respond writes JSON responses for the HTTP handlers.
package respond

import (
	"encoding/json"
	"log"
	"net/http"

	"quiz-classroom/internal/apperr"
	"quiz-classroom/internal/gate"
)

type errorBody struct {
	Error  string              `json:"error"`
	Fields []apperr.FieldError `json:"fields,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// Error answers with the status and public message for err. Gateway and
// unexpected failures are logged with their cause.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		log.Printf("Error handling %s %s: %+v", r.Method, r.URL.Path, err)
	}
	msg, fields := apperr.Public(err)
	JSON(w, status, errorBody{Error: msg, Fields: fields})
}

// Decode reads a JSON request body into dst.
func Decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("Invalid request")
	}
	return nil
}

// GateResponse carries the gate state, plus the mismatch message when the
// entry was wrong.
type GateResponse struct {
	Error string      `json:"error,omitempty"`
	Gate  gate.Status `json:"gate"`
}

// Gate answers a PIN entry. A mismatch is reported with the gate state so
// the client can clear its input.
func Gate(w http.ResponseWriter, r *http.Request, status gate.Status, err error) {
	if err != nil && !apperr.Is(err, apperr.KindGateMismatch) {
		Error(w, r, err)
		return
	}
	if err != nil {
		msg, _ := apperr.Public(err)
		JSON(w, http.StatusConflict, GateResponse{Error: msg, Gate: status})
		return
	}
	JSON(w, http.StatusOK, GateResponse{Gate: status})
}
