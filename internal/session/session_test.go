package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/labbo/internal/apiclient"
	"github.com/dukerupert/labbo/internal/model"
)

type fakeAuth struct {
	users      map[string]string // email -> password
	tokens     map[string]*model.User
	verifyErr  error
	loginErr   error
	logoutErr  error
	calls      []string
	registered []apiclient.RegisterRequest
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		users:  map[string]string{"student@example.com": "student123"},
		tokens: map[string]*model.User{},
	}
}

func (f *fakeAuth) Login(ctx context.Context, email, password string) (*apiclient.Session, error) {
	f.calls = append(f.calls, "login")
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	if f.users[email] != password {
		return nil, &apiclient.APIError{Status: 401, Message: "Email atau password salah"}
	}
	u := model.User{ID: "u-1", Email: email, Role: model.RoleStudent}
	f.tokens["tok-1"] = &u
	return &apiclient.Session{User: u, Token: "tok-1"}, nil
}

func (f *fakeAuth) Logout(ctx context.Context, token string) error {
	f.calls = append(f.calls, "logout:"+token)
	delete(f.tokens, token)
	return f.logoutErr
}

func (f *fakeAuth) Verify(ctx context.Context, token string) (*model.User, error) {
	f.calls = append(f.calls, "verify")
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	u, ok := f.tokens[token]
	if !ok {
		return nil, &apiclient.APIError{Status: 401, Message: "Invalid session"}
	}
	return u, nil
}

func (f *fakeAuth) Register(ctx context.Context, r apiclient.RegisterRequest) (*apiclient.RegisterResult, error) {
	f.calls = append(f.calls, "register")
	f.registered = append(f.registered, r)
	return &apiclient.RegisterResult{RequiresVerification: true, Message: "check your inbox"}, nil
}

func (f *fakeAuth) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	f.calls = append(f.calls, "forgot")
	return "sent", nil
}

func (f *fakeAuth) ResetPassword(ctx context.Context, token, password string) (string, error) {
	f.calls = append(f.calls, "reset")
	if token != "good" {
		return "", &apiclient.APIError{Status: 400}
	}
	return "updated", nil
}

func (f *fakeAuth) VerifyEmail(ctx context.Context, token string) (string, error) {
	f.calls = append(f.calls, "verify-email")
	return "", fmt.Errorf("%w: dial tcp", apiclient.ErrUnavailable)
}

func TestLogin_ValidStoresUserAndToken(t *testing.T) {
	api := newFakeAuth()
	tokens := &MemoryTokenStore{}
	s := New(api, tokens, nil)
	s.Init(context.Background())

	res := s.Login(context.Background(), "student@example.com", "student123")
	require.True(t, res.Success)
	assert.Empty(t, res.Error)

	require.NotNil(t, s.User())
	assert.Equal(t, "u-1", s.User().ID)
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "tok-1", s.Token())

	stored, _ := tokens.Load()
	assert.Equal(t, "tok-1", stored)
}

func TestLogin_InvalidLeavesUserNil(t *testing.T) {
	s := New(newFakeAuth(), &MemoryTokenStore{}, nil)

	res := s.Login(context.Background(), "student@example.com", "wrong")
	assert.False(t, res.Success)
	assert.Equal(t, "Email atau password salah", res.Error)
	assert.Nil(t, s.User())
	assert.False(t, s.IsAuthenticated())
}

func TestLogin_EmptyRemoteMessageFallsBack(t *testing.T) {
	api := newFakeAuth()
	api.loginErr = &apiclient.APIError{Status: 500}
	s := New(api, &MemoryTokenStore{}, nil)

	res := s.Login(context.Background(), "a@example.com", "pw")
	assert.False(t, res.Success)
	assert.Equal(t, MsgLoginFailed, res.Error)
}

func TestLogin_TransportFailure(t *testing.T) {
	api := newFakeAuth()
	api.loginErr = fmt.Errorf("%w: connection refused", apiclient.ErrUnavailable)
	s := New(api, &MemoryTokenStore{}, nil)

	res := s.Login(context.Background(), "a@example.com", "pw")
	assert.False(t, res.Success)
	assert.Equal(t, MsgConnectionError, res.Error)
}

func TestLogin_SchemaFailureIsConnectionError(t *testing.T) {
	api := newFakeAuth()
	api.loginErr = &apiclient.SchemaError{Endpoint: "/api/auth/login", Reason: "missing user"}
	s := New(api, &MemoryTokenStore{}, nil)

	res := s.Login(context.Background(), "a@example.com", "pw")
	assert.Equal(t, MsgConnectionError, res.Error)
}

func TestInit_RestoresValidToken(t *testing.T) {
	api := newFakeAuth()
	api.tokens["saved"] = &model.User{ID: "u-9", Email: "x@example.com", Role: model.RoleLecturer}
	tokens := &MemoryTokenStore{}
	tokens.Save("saved")

	s := New(api, tokens, nil)
	assert.True(t, s.Loading())
	s.Init(context.Background())

	assert.False(t, s.Loading())
	require.NotNil(t, s.User())
	assert.Equal(t, "u-9", s.User().ID)
	assert.Equal(t, "saved", s.Token())
}

func TestInit_ClearsRejectedToken(t *testing.T) {
	api := newFakeAuth()
	tokens := &MemoryTokenStore{}
	tokens.Save("stale")

	s := New(api, tokens, nil)
	s.Init(context.Background())

	assert.Nil(t, s.User())
	stored, _ := tokens.Load()
	assert.Empty(t, stored)
	assert.Equal(t, []string{"verify"}, api.calls, "verified once, no retry")
}

func TestInit_ClearsTokenOnTransportFailure(t *testing.T) {
	api := newFakeAuth()
	api.verifyErr = apiclient.ErrUnavailable
	tokens := &MemoryTokenStore{}
	tokens.Save("saved")

	s := New(api, tokens, nil)
	s.Init(context.Background())

	assert.Nil(t, s.User())
	stored, _ := tokens.Load()
	assert.Empty(t, stored)
}

func TestInit_NoTokenSkipsNetwork(t *testing.T) {
	api := newFakeAuth()
	s := New(api, &MemoryTokenStore{}, nil)
	s.Init(context.Background())

	assert.Empty(t, api.calls)
	assert.False(t, s.Loading())
}

func TestLogout_AlwaysClears(t *testing.T) {
	api := newFakeAuth()
	api.logoutErr = errors.New("server down")
	tokens := &MemoryTokenStore{}
	s := New(api, tokens, nil)

	require.True(t, s.Login(context.Background(), "student@example.com", "student123").Success)
	s.Logout(context.Background())

	assert.Nil(t, s.User())
	assert.Empty(t, s.Token())
	stored, _ := tokens.Load()
	assert.Empty(t, stored)
	assert.Contains(t, api.calls, "logout:tok-1")
}

func TestRegister_MismatchBeforeNetwork(t *testing.T) {
	api := newFakeAuth()
	s := New(api, &MemoryTokenStore{}, nil)

	res := s.Register(context.Background(), "Ani", "ani@example.com", "pw1", "pw2")
	assert.False(t, res.Success)
	assert.Equal(t, MsgPasswordsMismatch, res.Error)
	assert.Empty(t, api.calls)

	res = s.Register(context.Background(), "Ani", "ani@example.com", "pw1", "pw1")
	assert.True(t, res.Success)
	assert.True(t, res.RequiresVerification)
	require.Len(t, api.registered, 1)
	assert.Equal(t, "Ani", api.registered[0].FullName)
}

func TestResetPassword(t *testing.T) {
	api := newFakeAuth()
	s := New(api, &MemoryTokenStore{}, nil)

	res := s.ResetPassword(context.Background(), "good", "a", "b")
	assert.Equal(t, MsgPasswordsMismatch, res.Error)
	assert.Empty(t, api.calls)

	res = s.ResetPassword(context.Background(), "bad", "a", "a")
	assert.Equal(t, MsgResetFailed, res.Error)

	res = s.ResetPassword(context.Background(), "good", "a", "a")
	assert.True(t, res.Success)
	assert.Equal(t, "updated", res.Message)
}

func TestVerifyEmail_TransportFailure(t *testing.T) {
	s := New(newFakeAuth(), &MemoryTokenStore{}, nil)
	res := s.VerifyEmail(context.Background(), "t")
	assert.Equal(t, MsgConnectionError, res.Error)
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")
	s := NewFileTokenStore(path)

	tok, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, s.Save("abc123"))
	tok, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc123", tok)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())
	tok, _ = s.Load()
	assert.Empty(t, tok)
}
