package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/auth"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/domain"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/session"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/storefront"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Sessions is the client registry as seen by the HTTP layer.
type Sessions interface {
	SignIn(ctx context.Context, email, password string) (*storefront.Client, *auth.Result, error)
	SignUp(ctx context.Context, email, password string) (*storefront.Client, *auth.Result, error)
	Resolve(ctx context.Context, token string) (*storefront.Client, error)
	SignOut(ctx context.Context, client *storefront.Client)
}

type AuthHandler struct {
	sessions Sessions
	validate *validator.Validate
	log      *zap.Logger
	timeout  time.Duration
}

func NewAuthHandler(sessions Sessions, v *validator.Validate, log *zap.Logger, timeout time.Duration) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		validate: v,
		log:      log,
		timeout:  timeout,
	}
}

// Empty fields are left to the session store so the user sees its message.
type CredentialsRequestDTO struct {
	Email    string `json:"email" validate:"max=254"`
	Password string `json:"password" validate:"max=72"`
}

type AuthResponseDTO struct {
	Token         string                `json:"token"`
	ExpiresAt     time.Time             `json:"expires_at"`
	User          domain.Session        `json:"user"`
	Notifications []domain.Notification `json:"notifications"`
}

type authFunc func(ctx context.Context, email, password string) (*storefront.Client, *auth.Result, error)

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, h.sessions.SignUp, http.StatusCreated)
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, h.sessions.SignIn, http.StatusOK)
}

func (h *AuthHandler) authenticate(w http.ResponseWriter, r *http.Request, call authFunc, status int) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CredentialsRequestDTO
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	client, res, err := call(ctx, req.Email, req.Password)
	if err != nil {
		errStatus, code := authErrorStatus(err)
		if errStatus >= http.StatusInternalServerError {
			h.log.Error("authentication failed", zap.Error(err))
		}
		respondError(w, h.log, errStatus, code, session.UserMessage(err))
		return
	}

	respondJSON(w, h.log, status, AuthResponseDTO{
		Token:         res.Token,
		ExpiresAt:     res.ExpiresAt,
		User:          res.Identity.Session(),
		Notifications: client.Notifications(),
	})
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	client := clientFromContext(r.Context())
	if client == nil {
		respondError(w, h.log, http.StatusUnauthorized, "unauthorized", "not signed in")
		return
	}

	h.sessions.SignOut(ctx, client)
	respondJSON(w, h.log, http.StatusOK, Envelope{
		Data:          map[string]string{"status": "signed_out"},
		Notifications: client.Notifications(),
	})
}

func (h *AuthHandler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	client := clientFromContext(r.Context())
	if client == nil {
		respondError(w, h.log, http.StatusUnauthorized, "unauthorized", "not signed in")
		return
	}

	respondJSON(w, h.log, http.StatusOK, Envelope{
		Data:          client.Session().Current(),
		Notifications: client.Notifications(),
	})
}

// authErrorStatus picks the HTTP status for a sign-in or sign-up failure.
func authErrorStatus(err error) (int, string) {
	var remote *auth.Error
	if errors.As(err, &remote) {
		switch session.UserMessage(err) {
		case session.MsgInvalidCredentials:
			return http.StatusUnauthorized, "invalid_credentials"
		case session.MsgAlreadyRegistered:
			return http.StatusConflict, "already_registered"
		}
		return remote.Status, "auth_rejected"
	}

	var authErr *session.AuthError
	if errors.As(err, &authErr) && authErr.Err == nil {
		return http.StatusBadRequest, "validation_error"
	}
	return http.StatusBadGateway, "auth_unavailable"
}
