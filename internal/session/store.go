package session

import (
	"context"
	"errors"
	"sync"
	"unicode/utf8"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/auth"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/domain"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/notify"
	"go.uber.org/zap"
)

type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*auth.Result, error)
	SignUp(ctx context.Context, email, password string) (*auth.Result, error)
	SignOut(ctx context.Context, token string) error
	Verify(ctx context.Context, token string) (*auth.Identity, error)
	Subscribe(fn func(auth.Event)) (unsubscribe func())
}

// Listener is called after every identity change, on the goroutine that
// caused it.
type Listener func(ctx context.Context, s domain.Session)

type Options struct {
	MinPasswordLength int
	Notifier          notify.Notifier
	Log               *zap.Logger
}

// Store holds the identity of one storefront client.
type Store struct {
	auth      Authenticator
	notifier  notify.Notifier
	log       *zap.Logger
	minLength int

	// changeMu orders identity transitions together with their listener calls.
	changeMu sync.Mutex

	mu        sync.RWMutex
	current   domain.Session
	token     string
	sessionID string

	lmu       sync.Mutex
	nextID    int
	listeners []listenerEntry

	unsubscribe func()
}

type listenerEntry struct {
	id int
	fn Listener
}

func NewStore(a Authenticator, opts Options) *Store {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = 6
	}
	s := &Store{
		auth:      a,
		notifier:  opts.Notifier,
		log:       opts.Log,
		minLength: opts.MinPasswordLength,
	}
	s.unsubscribe = a.Subscribe(s.handleEvent)
	return s
}

func (s *Store) Current() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Token is the bearer token of the current session, empty when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// Subscribe registers fn in call order and returns a function removing it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) SignIn(ctx context.Context, email, password string) (*auth.Result, error) {
	res, err := s.authenticate(ctx, email, password, s.auth.SignIn)
	if err != nil {
		return nil, err
	}
	s.notify(notify.Success("Welcome back!", "You are now logged in"))
	return res, nil
}

func (s *Store) SignUp(ctx context.Context, email, password string) (*auth.Result, error) {
	res, err := s.authenticate(ctx, email, password, s.auth.SignUp)
	if err != nil {
		return nil, err
	}
	s.notify(notify.Success("Account created!", "You can now shop for coffee"))
	return res, nil
}

func (s *Store) authenticate(
	ctx context.Context,
	email, password string,
	call func(ctx context.Context, email, password string) (*auth.Result, error),
) (*auth.Result, error) {
	if err := s.validate(email, password); err != nil {
		s.notify(notify.Failure(err.Reason))
		return nil, err
	}

	res, err := call(ctx, email, password)
	if err != nil {
		authErr := &AuthError{Reason: err.Error(), Err: err}
		var remote *auth.Error
		if errors.As(err, &remote) {
			authErr.Reason = remote.Message
		} else {
			s.log.Error("auth call failed", zap.Error(err))
		}
		s.notify(notify.Failure(UserMessage(authErr)))
		return nil, authErr
	}

	s.setSession(ctx, res.Identity.Session(), res.Token, res.Identity.SessionID)
	return res, nil
}

// validate runs before any remote call.
func (s *Store) validate(email, password string) *AuthError {
	if email == "" || password == "" {
		return &AuthError{Reason: MsgFillAllFields}
	}
	if utf8.RuneCountInString(password) < s.minLength {
		return passwordTooShort(s.minLength)
	}
	return nil
}

// SignOut always leaves the store signed out. A failure of the auth service
// is only logged.
func (s *Store) SignOut(ctx context.Context) {
	token := s.Token()
	if token != "" {
		if err := s.auth.SignOut(ctx, token); err != nil {
			s.log.Warn("remote sign out failed", zap.Error(err))
		}
	}
	s.setSession(ctx, domain.Session{}, "", "")
}

// Restore re-establishes the session from a token issued earlier.
func (s *Store) Restore(ctx context.Context, token string) error {
	id, err := s.auth.Verify(ctx, token)
	if err != nil {
		return err
	}
	s.setSession(ctx, id.Session(), token, id.SessionID)
	return nil
}

// Close detaches the store from the auth event stream.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *Store) handleEvent(ev auth.Event) {
	cur := s.Current()
	switch ev.Type {
	case auth.EventSignedOut:
		if cur.IsAuthenticated() && ev.UserID == cur.UserID {
			s.setSession(context.Background(), domain.Session{}, "", "")
		}
	case auth.EventSignedIn:
		// only an echo of our own session is accepted
		if ev.SessionID != "" && ev.SessionID == s.SessionID() {
			s.setSession(context.Background(), domain.Session{UserID: ev.UserID, Email: ev.Email}, s.Token(), ev.SessionID)
		}
	}
}

// setSession stores the new identity and fires listeners when it differs
// from the previous one.
func (s *Store) setSession(ctx context.Context, next domain.Session, token, sessionID string) {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()

	s.mu.Lock()
	changed := s.current != next
	s.current = next
	s.token = token
	s.sessionID = sessionID
	s.mu.Unlock()

	if !changed {
		return
	}

	s.lmu.Lock()
	listeners := make([]listenerEntry, len(s.listeners))
	copy(listeners, s.listeners)
	s.lmu.Unlock()

	for _, l := range listeners {
		l.fn(ctx, next)
	}
}

func (s *Store) notify(n domain.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(n)
	}
}
