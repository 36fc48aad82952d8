package storefront

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/auth"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/domain"
	"go.uber.org/zap"
)

// Registry keeps one Client per auth session. A client leaves the registry
// as soon as its session is cleared, whether by its own sign-out or by a
// sign-out elsewhere.
type Registry struct {
	deps Deps
	log  *zap.Logger

	mu      sync.RWMutex
	clients map[string]*Client
}

func NewRegistry(deps Deps) *Registry {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Registry{
		deps:    deps,
		log:     deps.Log,
		clients: make(map[string]*Client),
	}
}

// SignIn authenticates on a new client and registers it. On failure the
// client is discarded and the error is the session store's *AuthError.
func (r *Registry) SignIn(ctx context.Context, email, password string) (*Client, *auth.Result, error) {
	client := NewClient(r.deps)
	res, err := client.Session().SignIn(ctx, email, password)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return r.add(res.Identity.SessionID, client), res, nil
}

func (r *Registry) SignUp(ctx context.Context, email, password string) (*Client, *auth.Result, error) {
	client := NewClient(r.deps)
	res, err := client.Session().SignUp(ctx, email, password)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return r.add(res.Identity.SessionID, client), res, nil
}

// Resolve returns the client for a bearer token. A valid token without a
// client, as after a restart, gets a new one restored from the token.
func (r *Registry) Resolve(ctx context.Context, token string) (*Client, error) {
	identity, err := r.deps.Auth.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	client, ok := r.clients[identity.SessionID]
	r.mu.RUnlock()
	if ok {
		return client, nil
	}

	client = NewClient(r.deps)
	if err := client.Session().Restore(ctx, token); err != nil {
		client.Close()
		return nil, err
	}
	return r.add(identity.SessionID, client), nil
}

// SignOut signs the client out. The client is removed by its session
// listener.
func (r *Registry) SignOut(ctx context.Context, client *Client) {
	client.Session().SignOut(ctx)
}

// Sweep removes every client whose token no longer verifies, such as after
// it expired. Clients are otherwise only removed when their session clears.
func (r *Registry) Sweep(ctx context.Context) int {
	r.mu.RLock()
	clients := make(map[string]*Client, len(r.clients))
	for sid, c := range r.clients {
		clients[sid] = c
	}
	r.mu.RUnlock()

	removed := 0
	for sid, c := range clients {
		if token := c.Session().Token(); token != "" {
			_, err := r.deps.Auth.Verify(ctx, token)
			if err == nil {
				continue
			}
			if !errors.Is(err, auth.ErrInvalidToken) {
				r.log.Warn("storefront: sweep verify failed", zap.String("session_id", sid), zap.Error(err))
				continue
			}
		}
		r.remove(sid, c)
		removed++
	}

	if removed > 0 {
		r.log.Info("storefront: swept stale clients", zap.Int("removed", removed), zap.Int("remaining", r.Len()))
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Close releases every client.
func (r *Registry) Close() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}

func (r *Registry) add(sessionID string, client *Client) *Client {
	r.mu.Lock()
	if existing, ok := r.clients[sessionID]; ok {
		r.mu.Unlock()
		client.Close()
		return existing
	}
	r.clients[sessionID] = client
	r.mu.Unlock()

	client.Session().Subscribe(func(ctx context.Context, s domain.Session) {
		if !s.IsAuthenticated() {
			r.remove(sessionID, client)
		}
	})
	r.log.Debug("storefront client registered", zap.String("session_id", sessionID))
	return client
}

func (r *Registry) remove(sessionID string, client *Client) {
	r.mu.Lock()
	if r.clients[sessionID] == client {
		delete(r.clients, sessionID)
	}
	r.mu.Unlock()

	client.Close()
	r.log.Debug("storefront client removed", zap.String("session_id", sessionID))
}
