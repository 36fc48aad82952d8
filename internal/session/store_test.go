package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/DagmTesfu/ntt-business-launchpad/internal/auth"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/domain"
	"github.com/DagmTesfu/ntt-business-launchpad/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockAuth struct {
	mu         sync.Mutex
	calls      int
	signInErr  error
	signUpErr  error
	signOutErr error
	verifyErr  error
	listeners  []func(auth.Event)
}

func (m *mockAuth) result(email string) *auth.Result {
	return &auth.Result{
		Token:    "token-" + email,
		Identity: auth.Identity{UserID: "id-" + email, Email: email, SessionID: "sid-" + email},
	}
}

func (m *mockAuth) SignIn(ctx context.Context, email, password string) (*auth.Result, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.signInErr != nil {
		return nil, m.signInErr
	}
	res := m.result(email)
	m.publish(auth.Event{Type: auth.EventSignedIn, UserID: res.Identity.UserID, Email: email, SessionID: res.Identity.SessionID})
	return res, nil
}

func (m *mockAuth) SignUp(ctx context.Context, email, password string) (*auth.Result, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.signUpErr != nil {
		return nil, m.signUpErr
	}
	return m.result(email), nil
}

func (m *mockAuth) SignOut(ctx context.Context, token string) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.signOutErr
}

func (m *mockAuth) Verify(ctx context.Context, token string) (*auth.Identity, error) {
	if m.verifyErr != nil {
		return nil, m.verifyErr
	}
	return &auth.Identity{UserID: "id-restored", Email: "restored@example.com", SessionID: "sid-restored"}, nil
}

func (m *mockAuth) Subscribe(fn func(auth.Event)) func() {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.listeners = nil
		m.mu.Unlock()
	}
}

func (m *mockAuth) publish(ev auth.Event) {
	m.mu.Lock()
	fns := append([]func(auth.Event){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (m *mockAuth) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestStore(a *mockAuth) (*Store, *notify.Inbox) {
	inbox := notify.NewInbox(zap.NewNop())
	return NewStore(a, Options{MinPasswordLength: 6, Notifier: inbox, Log: zap.NewNop()}), inbox
}

func TestSignIn_SetsSessionBeforeReturning(t *testing.T) {
	a := &mockAuth{}
	s, inbox := newTestStore(a)

	var seen []domain.Session
	s.Subscribe(func(ctx context.Context, sess domain.Session) {
		// listeners already observe the new identity
		assert.Equal(t, sess, s.Current())
		seen = append(seen, sess)
	})

	_, err := s.SignIn(context.Background(), "abebe@example.com", "secret1")
	require.NoError(t, err)

	assert.Equal(t, "id-abebe@example.com", s.Current().UserID)
	assert.Equal(t, "token-abebe@example.com", s.Token())
	assert.Equal(t, "sid-abebe@example.com", s.SessionID())
	// the remote echo of the same identity does not fire a second time
	require.Len(t, seen, 1)

	notes := inbox.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, "Welcome back!", notes[0].Title)
}

func TestSignUp_Success(t *testing.T) {
	s, inbox := newTestStore(&mockAuth{})

	_, err := s.SignUp(context.Background(), "new@example.com", "secret1")
	require.NoError(t, err)
	assert.True(t, s.Current().IsAuthenticated())
	assert.Equal(t, "Account created!", inbox.Drain()[0].Title)
}

func TestLocalValidation_NoRemoteCall(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		reason   string
	}{
		{"empty email", "", "secret1", MsgFillAllFields},
		{"empty password", "abebe@example.com", "", MsgFillAllFields},
		{"short password", "abebe@example.com", "12345", "Password must be at least 6 characters"},
		{"short multibyte password", "abebe@example.com", "ééé", "Password must be at least 6 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &mockAuth{}
			s, inbox := newTestStore(a)

			_, err := s.SignIn(context.Background(), tt.email, tt.password)
			var authErr *AuthError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, tt.reason, authErr.Reason)

			_, err = s.SignUp(context.Background(), tt.email, tt.password)
			require.ErrorAs(t, err, &authErr)

			assert.Zero(t, a.callCount())
			assert.False(t, s.Current().IsAuthenticated())
			assert.Len(t, inbox.Drain(), 2)
		})
	}
}

func TestRemoteErrors_KeepReasonVerbatim(t *testing.T) {
	a := &mockAuth{
		signInErr: &auth.Error{Message: auth.MsgInvalidCredentials, Status: http.StatusBadRequest},
		signUpErr: &auth.Error{Message: auth.MsgAlreadyRegistered, Status: http.StatusUnprocessableEntity},
	}
	s, inbox := newTestStore(a)

	_, err := s.SignIn(context.Background(), "abebe@example.com", "secret1")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Invalid login credentials", authErr.Reason)
	assert.Equal(t, MsgInvalidCredentials, UserMessage(err))

	_, err = s.SignUp(context.Background(), "abebe@example.com", "secret1")
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "User already registered", authErr.Reason)
	assert.Equal(t, MsgAlreadyRegistered, UserMessage(err))

	notes := inbox.Drain()
	require.Len(t, notes, 2)
	assert.Equal(t, MsgInvalidCredentials, notes[0].Description)
	assert.Equal(t, domain.VariantDestructive, notes[1].Variant)
	assert.False(t, s.Current().IsAuthenticated())
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, MsgInvalidCredentials, UserMessage(errors.New("INVALID LOGIN credentials")))
	assert.Equal(t, MsgAlreadyRegistered, UserMessage(&AuthError{Reason: "User already registered"}))
	assert.Equal(t, "Email rate limit exceeded", UserMessage(&AuthError{Reason: "Email rate limit exceeded"}))
}

func TestSignOut_ClearsEvenWhenRemoteFails(t *testing.T) {
	a := &mockAuth{signOutErr: errors.New("network down")}
	s, _ := newTestStore(a)
	ctx := context.Background()

	_, err := s.SignIn(ctx, "abebe@example.com", "secret1")
	require.NoError(t, err)

	var seen []domain.Session
	s.Subscribe(func(ctx context.Context, sess domain.Session) { seen = append(seen, sess) })

	s.SignOut(ctx)
	assert.False(t, s.Current().IsAuthenticated())
	assert.Empty(t, s.Token())
	require.Len(t, seen, 1)
	assert.False(t, seen[0].IsAuthenticated())

	// signing out twice is quiet
	calls := a.callCount()
	s.SignOut(ctx)
	assert.Equal(t, calls, a.callCount())
	assert.Len(t, seen, 1)
}

func TestRemoteSignOutEvent_ClearsMatchingUser(t *testing.T) {
	a := &mockAuth{}
	s, _ := newTestStore(a)

	_, err := s.SignIn(context.Background(), "abebe@example.com", "secret1")
	require.NoError(t, err)

	a.publish(auth.Event{Type: auth.EventSignedOut, UserID: "someone-else"})
	assert.True(t, s.Current().IsAuthenticated())

	a.publish(auth.Event{Type: auth.EventSignedOut, UserID: "id-abebe@example.com"})
	assert.False(t, s.Current().IsAuthenticated())
}

func TestRemoteSignInEvent_IgnoredForOtherSessions(t *testing.T) {
	a := &mockAuth{}
	s, _ := newTestStore(a)

	a.publish(auth.Event{Type: auth.EventSignedIn, UserID: "u2", Email: "u2@example.com", SessionID: "sid-other"})
	assert.False(t, s.Current().IsAuthenticated())
}

func TestRestore(t *testing.T) {
	s, _ := newTestStore(&mockAuth{})

	require.NoError(t, s.Restore(context.Background(), "stored-token"))
	assert.Equal(t, "id-restored", s.Current().UserID)
	assert.Equal(t, "stored-token", s.Token())

	s2, _ := newTestStore(&mockAuth{verifyErr: auth.ErrInvalidToken})
	assert.ErrorIs(t, s2.Restore(context.Background(), "stale"), auth.ErrInvalidToken)
	assert.False(t, s2.Current().IsAuthenticated())
}

func TestUnsubscribeAndClose(t *testing.T) {
	a := &mockAuth{}
	s, _ := newTestStore(a)

	calls := 0
	unsubscribe := s.Subscribe(func(context.Context, domain.Session) { calls++ })
	unsubscribe()

	_, err := s.SignIn(context.Background(), "abebe@example.com", "secret1")
	require.NoError(t, err)
	assert.Zero(t, calls)

	s.Close()
	a.publish(auth.Event{Type: auth.EventSignedOut, UserID: "id-abebe@example.com"})
	assert.True(t, s.Current().IsAuthenticated())
}
