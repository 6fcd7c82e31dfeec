package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesikahq/hospital-ops/internal/audit"
	"github.com/mesikahq/hospital-ops/internal/dualstore"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUsernameTaken      = errors.New("username already taken")
)

type Claims struct {
	jwt.RegisteredClaims
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

type Service interface {
	Register(ctx context.Context, username, email, password string, roles []string) (*User, error)
	Login(ctx context.Context, username, password string) (*LoginResponse, error)
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
	RefreshToken(ctx context.Context, tokenString string) (string, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	Deactivate(ctx context.Context, userID string) error
	GetUserByID(ctx context.Context, userID string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
}

type Config struct {
	JWTSecret    string
	TokenExpiry  time.Duration
	RefreshLimit time.Duration
}

type service struct {
	store        *dualstore.Store[*User]
	audit        audit.Service
	jwtSecret    []byte
	tokenExpiry  time.Duration
	refreshLimit time.Duration
}

func NewService(store *dualstore.Store[*User], auditService audit.Service, cfg Config) Service {
	return &service{
		store:        store,
		audit:        auditService,
		jwtSecret:    []byte(cfg.JWTSecret),
		tokenExpiry:  cfg.TokenExpiry,
		refreshLimit: cfg.RefreshLimit,
	}
}

func (s *service) Register(ctx context.Context, username, email, password string, roles []string) (*User, error) {
	if s.findByUsername(username) != nil {
		return nil, ErrUsernameTaken
	}
	if len(password) < 8 {
		return nil, &dualstore.ValidationError{Fields: []string{"password"}}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Roles:        roles,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.store.Put(user); err != nil {
		return nil, err
	}

	s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:  audit.EventModify,
		Action:     "REGISTER_USER",
		Resource:   "user",
		ResourceID: user.ID,
		Status:     "success",
	})
	return user.Redacted(), nil
}

func (s *service) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	user := s.findByUsername(username)
	if user == nil || user.Status != StatusActive {
		s.auditLogin(ctx, username, "failure")
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.auditLogin(ctx, user.ID, "failure")
		return nil, ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}

	user.LastLogin = time.Now()
	user.UpdatedAt = user.LastLogin
	if _, err := s.store.Put(user); err != nil {
		return nil, err
	}

	s.auditLogin(ctx, user.ID, "success")
	return &LoginResponse{Token: token, User: user.Redacted()}, nil
}

func (s *service) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RefreshToken issues a fresh token for a still-valid one, up to
// refreshLimit past the original issue time.
func (s *service) RefreshToken(ctx context.Context, tokenString string) (string, error) {
	claims, err := s.ValidateToken(ctx, tokenString)
	if err != nil {
		return "", err
	}
	if claims.IssuedAt != nil && time.Since(claims.IssuedAt.Time) > s.refreshLimit {
		return "", ErrTokenExpired
	}

	user, err := s.store.Get(claims.UserID)
	if err != nil {
		return "", ErrInvalidToken
	}
	if user.Status != StatusActive {
		return "", ErrInvalidCredentials
	}
	return s.generateToken(user)
}

func (s *service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.store.Get(userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}
	if len(newPassword) < 8 {
		return &dualstore.ValidationError{Fields: []string{"password"}}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hash)
	user.UpdatedAt = time.Now()
	if _, err := s.store.Put(user); err != nil {
		return err
	}

	s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:  audit.EventModify,
		UserID:     userID,
		Action:     "CHANGE_PASSWORD",
		Resource:   "user",
		ResourceID: userID,
		Status:     "success",
	})
	return nil
}

func (s *service) Deactivate(ctx context.Context, userID string) error {
	user, err := s.store.Get(userID)
	if err != nil {
		return err
	}
	if user.Status == StatusInactive {
		return nil
	}

	user.Status = StatusInactive
	user.UpdatedAt = time.Now()
	if _, err := s.store.Put(user); err != nil {
		return err
	}

	s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:  audit.EventModify,
		Action:     "DEACTIVATE_USER",
		Resource:   "user",
		ResourceID: userID,
		Status:     "success",
	})
	return nil
}

func (s *service) GetUserByID(ctx context.Context, userID string) (*User, error) {
	user, err := s.store.Get(userID)
	if err != nil {
		return nil, err
	}
	return user.Redacted(), nil
}

func (s *service) ListUsers(ctx context.Context) ([]*User, error) {
	users := s.store.List(nil)
	out := make([]*User, len(users))
	for i, u := range users {
		out[i] = u.Redacted()
	}
	return out, nil
}

func (s *service) generateToken(user *User) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExpiry)),
		},
		UserID:   user.ID,
		Username: user.Username,
		Roles:    user.Roles,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *service) findByUsername(username string) *User {
	matches := s.store.List(func(u *User) bool {
		return u.Username == username
	})
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

func (s *service) auditLogin(ctx context.Context, subject, status string) {
	s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:  audit.EventLogin,
		UserID:     subject,
		Action:     "LOGIN",
		Resource:   "user",
		ResourceID: subject,
		Status:     status,
	})
}
