package auth

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"quiz-classroom/internal/apperr"
	"quiz-classroom/internal/models"
	"quiz-classroom/pkg/gateway"
)

// Mailer sends account emails.
type Mailer interface {
	SendWelcome(ctx context.Context, to, name string) error
}

type Claims struct {
	TeacherID string
	SessionID string
}

type Service struct {
	repo       *Repository
	mailer     Mailer
	jwtSecret  []byte
	expiration time.Duration
}

// NewService returns the account service. mailer may be nil.
func NewService(repo *Repository, mailer Mailer, jwtSecret string, expiration time.Duration) *Service {
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	return &Service{
		repo:       repo,
		mailer:     mailer,
		jwtSecret:  []byte(jwtSecret),
		expiration: expiration,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.Teacher, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	teacher, err := s.repo.CreateTeacher(ctx, name, email, req.Password)
	if errors.Is(err, gateway.ErrEmailTaken) {
		return nil, apperr.Auth("An account with this email already exists.")
	}
	if err != nil {
		return nil, apperr.Write(err, "create account")
	}

	if s.mailer != nil {
		if err := s.mailer.SendWelcome(ctx, teacher.Email, teacher.Name); err != nil {
			log.Printf("Error sending welcome mail to %s: %v", teacher.Email, err)
		}
	}
	return teacher, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*models.Teacher, error) {
	id, err := s.repo.Authenticate(ctx, req.Email, req.Password)
	if errors.Is(err, gateway.ErrInvalidCredentials) {
		return nil, apperr.Auth("Invalid email or password.")
	}
	if err != nil {
		return nil, apperr.Read(err, "authenticate")
	}

	teacher, err := s.repo.GetTeacher(ctx, id.UID)
	if err != nil {
		return nil, apperr.Read(err, "load profile")
	}
	if teacher.Email == "" {
		teacher.Email = id.Email
	}
	return teacher, nil
}

// IssueToken signs a token binding the teacher to one session.
func (s *Service) IssueToken(teacherID, sessionID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"teacher_id": teacherID,
		"session_id": sessionID,
		"exp":        time.Now().Add(s.expiration).Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperr.Auth("Invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperr.Auth("Invalid token claims")
	}
	teacherID, _ := claims["teacher_id"].(string)
	sessionID, _ := claims["session_id"].(string)
	if teacherID == "" || sessionID == "" {
		return nil, apperr.Auth("Invalid token claims")
	}
	return &Claims{TeacherID: teacherID, SessionID: sessionID}, nil
}
