package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskflow/taskflow-cli/internal/api"
	"github.com/taskflow/taskflow-cli/internal/credentials"
	"github.com/taskflow/taskflow-cli/internal/devserver"
	"github.com/taskflow/taskflow-cli/internal/dto"
	"github.com/taskflow/taskflow-cli/internal/notify"
	"go.uber.org/zap"
)

type sessionTestEnv struct {
	store    *Store
	client   *api.Client
	creds    *credentials.Store
	notifier *notify.Recorder
}

func setupSessionTestEnv(t *testing.T) sessionTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// A file-backed database: sqlite's :memory: mode is per-connection
	// and the pool may open more than one.
	server, err := devserver.New(filepath.Join(t.TempDir(), "dev.db"), "test-secret", zap.NewNop())
	require.NoError(t, err)

	srv := httptest.NewServer(server.Router())
	t.Cleanup(srv.Close)

	creds := credentials.NewStore(filepath.Join(t.TempDir(), "token"))
	notifier := &notify.Recorder{}

	var store *Store
	client := api.NewClient(srv.URL+"/api", creds, api.WithAuthRejectedHook(func() {
		if store != nil {
			store.InvalidateSession()
		}
	}))
	store = NewStore(client, creds, zap.NewNop(), notifier)

	return sessionTestEnv{store: store, client: client, creds: creds, notifier: notifier}
}

func TestRestore_NoCredential(t *testing.T) {
	env := setupSessionTestEnv(t)

	assert.Equal(t, StateUnknown, env.store.State())
	env.store.Restore(context.Background())

	assert.Equal(t, StateAnonymous, env.store.State())
	_, ok := env.store.CurrentUser()
	assert.False(t, ok)
}

func TestRestore_InvalidPersistedToken(t *testing.T) {
	env := setupSessionTestEnv(t)
	require.NoError(t, env.creds.Save("not-a-real-token"))

	env.store.Restore(context.Background())

	assert.Equal(t, StateAnonymous, env.store.State())
	_, ok := env.store.CurrentUser()
	assert.False(t, ok)
	_, ok = env.creds.Token()
	assert.False(t, ok, "invalid token must be removed from storage")
	// Restoration failure is an expected steady state: no notification.
	assert.Empty(t, env.notifier.Errors)
}

func TestRegisterThenRestore(t *testing.T) {
	env := setupSessionTestEnv(t)
	env.store.Restore(context.Background())

	err := env.store.Register(context.Background(), RegisterInput{
		Username: "ann",
		Email:    "a@b.com",
		Password: "secret1",
	})
	require.NoError(t, err)

	require.Equal(t, StateAuthenticated, env.store.State())
	user, ok := env.store.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "ann", user.Username)
	assert.Equal(t, "a@b.com", user.Email)
	assert.NotZero(t, user.ID)

	token, ok := env.creds.Token()
	require.True(t, ok, "token must be persisted")
	assert.NotEmpty(t, token)
	assert.Contains(t, env.notifier.Successes, "Registration successful")

	// A fresh store sharing the credential file restores the session
	// from the persisted token.
	fresh := NewStore(env.client, env.creds, zap.NewNop(), notify.Discard{})
	fresh.Restore(context.Background())
	assert.Equal(t, StateAuthenticated, fresh.State())
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := setupSessionTestEnv(t)
	env.store.Restore(context.Background())

	input := RegisterInput{Username: "ann", Email: "a@b.com", Password: "secret1"}
	require.NoError(t, env.store.Register(context.Background(), input))
	env.store.Logout()

	err := env.store.Register(context.Background(), RegisterInput{
		Username: "ann2",
		Email:    "a@b.com",
		Password: "secret2",
	})
	require.Error(t, err)
	assert.Equal(t, StateAnonymous, env.store.State())
	assert.Contains(t, env.notifier.Errors, "Email already in use",
		"server-supplied message must be surfaced")
}

func TestRegister_MissingTokenIsHardFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/auth/signup", func(c *gin.Context) {
		// Malformed deployment: user but no token.
		c.JSON(http.StatusCreated, dto.AuthResponse{
			User: &dto.UserDTO{ID: 1, Username: "ann", Email: "a@b.com"},
		})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	creds := credentials.NewStore(filepath.Join(t.TempDir(), "token"))
	client := api.NewClient(srv.URL+"/api", creds)
	store := NewStore(client, creds, zap.NewNop(), notify.Discard{})

	err := store.Register(context.Background(), RegisterInput{
		Username: "ann", Email: "a@b.com", Password: "secret1",
	})
	require.ErrorIs(t, err, ErrNoToken)
	_, ok := creds.Token()
	assert.False(t, ok)
}

func TestLogin_InvalidUserPayloadDiscardsToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/auth/login", func(c *gin.Context) {
		// Malformed deployment: token but no usable user identity.
		c.JSON(http.StatusOK, dto.AuthResponse{Token: "tok"})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	creds := credentials.NewStore(filepath.Join(t.TempDir(), "token"))
	client := api.NewClient(srv.URL+"/api", creds)
	store := NewStore(client, creds, zap.NewNop(), notify.Discard{})

	err := store.Login(context.Background(), LoginInput{Email: "a@b.com", Password: "secret1"})
	require.ErrorIs(t, err, ErrInvalidUserData)
	assert.NotEqual(t, StateAuthenticated, store.State())

	// No credential may outlive a login the caller saw fail, or a
	// later Restore would resurrect the session.
	_, ok := creds.Token()
	assert.False(t, ok)
}

func TestLoginLogout(t *testing.T) {
	env := setupSessionTestEnv(t)
	env.store.Restore(context.Background())
	require.NoError(t, env.store.Register(context.Background(), RegisterInput{
		Username: "ann", Email: "a@b.com", Password: "secret1",
	}))
	env.store.Logout()

	assert.Equal(t, StateAnonymous, env.store.State())
	_, ok := env.creds.Token()
	assert.False(t, ok)

	// Bad password leaves the state unchanged.
	err := env.store.Login(context.Background(), LoginInput{Email: "a@b.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, StateAnonymous, env.store.State())

	require.NoError(t, env.store.Login(context.Background(), LoginInput{Email: "a@b.com", Password: "secret1"}))
	assert.Equal(t, StateAuthenticated, env.store.State())
	user, _ := env.store.CurrentUser()
	assert.Equal(t, "ann", user.Username)
}

func TestSubscribe_NotifiedOnTransitions(t *testing.T) {
	env := setupSessionTestEnv(t)

	var states []State
	env.store.Subscribe(func(s State) { states = append(states, s) })

	env.store.Restore(context.Background())
	require.NoError(t, env.store.Register(context.Background(), RegisterInput{
		Username: "ann", Email: "a@b.com", Password: "secret1",
	}))
	env.store.Logout()

	assert.Equal(t, []State{StateAnonymous, StateAuthenticated, StateAnonymous}, states)
}
