package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/taskflow/taskflow-cli/internal/api"
	"github.com/taskflow/taskflow-cli/internal/apierrors"
	"github.com/taskflow/taskflow-cli/internal/credentials"
	"github.com/taskflow/taskflow-cli/internal/dto"
	"github.com/taskflow/taskflow-cli/internal/models"
	"github.com/taskflow/taskflow-cli/internal/notify"
	"go.uber.org/zap"
)

var (
	ErrNoToken         = errors.New("no token received from server")
	ErrInvalidUserData = errors.New("invalid user data in server response")
)

// State is the authentication state of the session.
type State string

const (
	// StateUnknown holds while a persisted credential is being
	// validated at startup.
	StateUnknown State = "unknown"
	// StateAuthenticated means a current user is set and the
	// credential is persisted.
	StateAuthenticated State = "authenticated"
	// StateAnonymous means no valid credential exists.
	StateAnonymous State = "anonymous"
)

// Store tracks authentication state and mediates identity-changing
// operations. State transitions: Unknown moves to Authenticated or
// Anonymous exactly once during Restore; Login and Register move
// Anonymous to Authenticated; Logout moves Authenticated to Anonymous.
type Store struct {
	mu       sync.RWMutex
	client   *api.Client
	creds    *credentials.Store
	logger   *zap.Logger
	notifier notify.Notifier

	state State
	user  *models.User
	subs  []func(State)
}

// NewStore creates a session store in the Unknown state.
func NewStore(client *api.Client, creds *credentials.Store, logger *zap.Logger, notifier notify.Notifier) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Store{
		client:   client,
		creds:    creds,
		logger:   logger,
		notifier: notifier,
		state:    StateUnknown,
	}
}

// Subscribe registers a callback invoked after every state
// transition. Callbacks run outside the store's lock.
func (s *Store) Subscribe(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// State returns the current authentication state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsAuthenticated reports whether a user is logged in.
func (s *Store) IsAuthenticated() bool {
	return s.State() == StateAuthenticated
}

// CurrentUser returns the authenticated identity, if any.
func (s *Store) CurrentUser() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

// Restore validates a persisted credential at process start. It never
// returns an error: every failure path discards the credential and
// ends in the Anonymous state, silently, since a missing prior
// session is the expected steady state.
func (s *Store) Restore(ctx context.Context) {
	if _, ok := s.creds.Token(); !ok {
		s.setAnonymous()
		return
	}

	resp, err := s.client.Me(ctx)
	if err != nil {
		s.logger.Debug("session restore failed", zap.Error(err))
		if err := s.creds.Clear(); err != nil {
			s.logger.Warn("failed to discard credential", zap.Error(err))
		}
		s.setAnonymous()
		return
	}

	user := dto.UserFromAuthResponse(resp)
	if user.ID == 0 {
		s.logger.Debug("session restore returned invalid user data")
		if err := s.creds.Clear(); err != nil {
			s.logger.Warn("failed to discard credential", zap.Error(err))
		}
		s.setAnonymous()
		return
	}

	s.setAuthenticated(user)
	s.logger.Info("session restored", zap.Uint64("user_id", user.ID))
}

// LoginInput holds the credentials for authentication.
type LoginInput struct {
	Email    string
	Password string
}

// Login submits credentials, persists the returned token and sets the
// current user. On failure the state is left unchanged and the error
// is returned for UI display.
func (s *Store) Login(ctx context.Context, input LoginInput) error {
	resp, err := s.client.Login(ctx, dto.LoginRequest{
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		s.logger.Warn("login failed", zap.Error(err))
		s.notifier.Error(apierrors.Message(err, "Login failed"))
		return err
	}

	// Validate before persisting: a credential must never outlive a
	// login the caller saw fail, or Restore would resurrect it.
	user := dto.UserFromAuthResponse(resp)
	if user.ID == 0 {
		return ErrInvalidUserData
	}

	if err := s.creds.Save(resp.Token); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}

	s.setAuthenticated(user)
	s.logger.Info("logged in", zap.Uint64("user_id", user.ID))
	return nil
}

// RegisterInput holds the profile for a new account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register submits a new-account request. A response without a token
// is a hard failure distinct from a transport error. On success the
// store behaves exactly as after Login.
func (s *Store) Register(ctx context.Context, input RegisterInput) error {
	resp, err := s.client.Register(ctx, dto.RegisterRequest{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		s.logger.Warn("registration failed", zap.Error(err))
		s.notifier.Error(apierrors.Message(err, "Registration failed"))
		return err
	}

	if resp.Token == "" {
		s.notifier.Error("Registration failed")
		return ErrNoToken
	}

	user := dto.UserFromAuthResponse(resp)
	if user.ID == 0 {
		return ErrInvalidUserData
	}

	if err := s.creds.Save(resp.Token); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}

	s.setAuthenticated(user)
	s.notifier.Success("Registration successful")
	s.logger.Info("registered", zap.Uint64("user_id", user.ID))
	return nil
}

// Logout clears the persisted credential and the current user. It
// never fails: a credential that cannot be removed from disk is only
// logged.
func (s *Store) Logout() {
	if err := s.creds.Clear(); err != nil {
		s.logger.Warn("failed to clear credential", zap.Error(err))
	}
	s.setAnonymous()
	s.notifier.Success("Logout successful")
}

// InvalidateSession is the logout-equivalent triggered when any HTTP
// call receives an authentication-rejected response. The credential
// is already cleared by the HTTP client.
func (s *Store) InvalidateSession() {
	s.setAnonymous()
}

func (s *Store) setAuthenticated(user models.User) {
	s.mu.Lock()
	s.state = StateAuthenticated
	s.user = &user
	subs := append([]func(State)(nil), s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(StateAuthenticated)
	}
}

func (s *Store) setAnonymous() {
	s.mu.Lock()
	changed := s.state != StateAnonymous || s.user != nil
	s.state = StateAnonymous
	s.user = nil
	subs := append([]func(State)(nil), s.subs...)
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range subs {
		fn(StateAnonymous)
	}
}
