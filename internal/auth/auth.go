package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/domain"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Messages returned to clients. They mirror the wording of hosted auth
// providers so that callers can match on them.
const (
	MsgInvalidCredentials = "Invalid login credentials"
	MsgAlreadyRegistered  = "User already registered"
	MsgInvalidEmail       = "Unable to validate email address: invalid format"
	MsgInvalidToken       = "Invalid or expired session"
	MsgPasswordTooLong    = "Password cannot be longer than 72 bytes"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

var ErrInvalidToken = &Error{Message: MsgInvalidToken, Status: http.StatusUnauthorized}

// Error is a failure reported by the auth service. Message is meant to be
// shown to the user as is.
type Error struct {
	Message string
	Status  int
}

func (e *Error) Error() string {
	return e.Message
}

type EventType string

const (
	EventSignedIn  EventType = "signed_in"
	EventSignedOut EventType = "signed_out"
)

// Event announces an identity change. SignedOut events are global: every
// session of UserID has been revoked.
type Event struct {
	Type      EventType
	UserID    string
	Email     string
	SessionID string
}

// Identity is what a valid token resolves to.
type Identity struct {
	UserID    string
	Email     string
	SessionID string
}

func (i Identity) Session() domain.Session {
	return domain.Session{UserID: i.UserID, Email: i.Email}
}

type Result struct {
	Token     string
	ExpiresAt time.Time
	Identity  Identity
}

type Store interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	CreateAuthSession(ctx context.Context, session *domain.AuthSession) error
	GetAuthSession(ctx context.Context, id string, now time.Time) (*domain.AuthSession, error)
	DeleteAuthSessions(ctx context.Context, userID string) error
}

type Config struct {
	Secret            []byte
	TokenTTL          time.Duration
	MinPasswordLength int
	BcryptCost        int
}

type claims struct {
	Email     string `json:"email"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Service registers and authenticates users and issues signed, revocable
// tokens.
type Service struct {
	store Store
	cfg   Config
	log   *zap.Logger
	now   func() time.Time

	mu        sync.RWMutex
	nextSubID int
	listeners map[int]func(Event)
}

func NewService(store Store, cfg Config, log *zap.Logger) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &Service{
		store:     store,
		cfg:       cfg,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
		listeners: make(map[int]func(Event)),
	}
}

func (s *Service) SignUp(ctx context.Context, email, password string) (*Result, error) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return nil, &Error{Message: MsgInvalidEmail, Status: http.StatusBadRequest}
	}
	if utf8.RuneCountInString(password) < s.cfg.MinPasswordLength {
		return nil, &Error{
			Message: fmt.Sprintf("Password should be at least %d characters", s.cfg.MinPasswordLength),
			Status:  http.StatusUnprocessableEntity,
		}
	}
	if len(password) > maxPasswordBytes {
		return nil, &Error{Message: MsgPasswordTooLong, Status: http.StatusUnprocessableEntity}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, &Error{Message: MsgAlreadyRegistered, Status: http.StatusUnprocessableEntity}
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user registered", zap.String("user_id", user.ID))
	return s.startSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Result, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, &Error{Message: MsgInvalidCredentials, Status: http.StatusBadRequest}
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, &Error{Message: MsgInvalidCredentials, Status: http.StatusBadRequest}
	}

	return s.startSession(ctx, user)
}

// SignOut revokes every session of the token's user, not only the one the
// token belongs to.
func (s *Service) SignOut(ctx context.Context, token string) error {
	c, err := s.parse(token)
	if err != nil {
		return err
	}

	if err := s.store.DeleteAuthSessions(ctx, c.Subject); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	s.log.Info("user signed out", zap.String("user_id", c.Subject))
	s.publish(Event{Type: EventSignedOut, UserID: c.Subject, Email: c.Email, SessionID: c.SessionID})
	return nil
}

// Verify checks the token signature, expiry and that its session has not
// been revoked.
func (s *Service) Verify(ctx context.Context, token string) (*Identity, error) {
	c, err := s.parse(token)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetAuthSession(ctx, c.SessionID, s.now()); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	return &Identity{UserID: c.Subject, Email: c.Email, SessionID: c.SessionID}, nil
}

// Subscribe registers fn for identity-change events. Listeners run
// synchronously on the goroutine that caused the change.
func (s *Service) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Service) publish(ev Event) {
	s.mu.RLock()
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Service) startSession(ctx context.Context, user *domain.User) (*Result, error) {
	now := s.now()
	session := &domain.AuthSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
	}
	if err := s.store.CreateAuthSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email:     user.Email,
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}).SignedString(s.cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	identity := Identity{UserID: user.ID, Email: user.Email, SessionID: session.ID}
	s.publish(Event{Type: EventSignedIn, UserID: user.ID, Email: user.Email, SessionID: session.ID})

	return &Result{Token: token, ExpiresAt: session.ExpiresAt, Identity: identity}, nil
}

func (s *Service) parse(token string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || c.Subject == "" || c.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return &c, nil
}
