package auth

import (
	"net/http"
	"strings"

	"quiz-classroom/internal/apperr"
	"quiz-classroom/internal/respond"
	"quiz-classroom/internal/session"
)

// JWTMiddleware resolves the bearer token to a live session and stores it in
// the request context.
func JWTMiddleware(service *Service, sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respond.Error(w, r, apperr.Auth("Authorization header required"))
				return
			}

			bearerToken := strings.Split(authHeader, " ")
			if len(bearerToken) != 2 || bearerToken[0] != "Bearer" {
				respond.Error(w, r, apperr.Auth("Invalid token format"))
				return
			}

			s, err := Resolve(service, sessions, bearerToken[1])
			if err != nil {
				respond.Error(w, r, err)
				return
			}

			ctx := session.WithSession(r.Context(), s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Resolve checks token and returns the session it belongs to.
func Resolve(service *Service, sessions *session.Manager, token string) (*session.Session, error) {
	claims, err := service.ParseToken(token)
	if err != nil {
		return nil, err
	}
	s, err := sessions.Get(claims.SessionID)
	if err != nil {
		return nil, err
	}
	if s.Teacher().ID != claims.TeacherID {
		return nil, apperr.Auth("Invalid token")
	}
	return s, nil
}

// RequirePIN rejects requests from sessions whose teacher has not entered
// the PIN yet.
func RequirePIN(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := session.FromContext(r.Context())
		if !ok {
			respond.Error(w, r, apperr.Auth("Authorization required"))
			return
		}
		if err := s.RequirePIN(); err != nil {
			respond.JSON(w, http.StatusForbidden, map[string]string{"error": "Please enter your PIN first."})
			return
		}
		next.ServeHTTP(w, r)
	})
}
