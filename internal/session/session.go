package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/grandprix/internal/client"
	"github.com/wolfeidau/grandprix/internal/credentials"
	"github.com/wolfeidau/grandprix/internal/fanout"
	"github.com/wolfeidau/grandprix/internal/models"
	"github.com/wolfeidau/grandprix/internal/telemetry"
)

// State is the authentication state of the client.
type State struct {
	User    *models.UserProfile
	Loading bool
}

// Authenticated returns true once a user is signed in.
func (s State) Authenticated() bool {
	return s.User != nil
}

// Reader is the read-only view of the session handed to everything except
// the Manager itself.
type Reader interface {
	Snapshot() State
	Subscribe() (<-chan State, func())
}

// Identity is the subset of the identity service the session needs.
type Identity interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResult, error)
	CreateUser(ctx context.Context, req models.RegisterRequest) (*models.UserProfile, error)
}

// Store persists the session between runs.
type Store interface {
	Load() (*credentials.Credentials, error)
	Save(token string, user models.UserProfile) error
	Clear() error
}

var _ Reader = (*Manager)(nil)

// Manager is the only writer of the session state.
type Manager struct {
	identity Identity
	store    Store

	initOnce sync.Once

	mu    sync.Mutex
	state State
	hub   fanout.Hub[State]
}

// NewManager creates a Manager in the loading state. Call Initialize to read
// the stored session.
func NewManager(identity Identity, store Store) *Manager {
	return &Manager{
		identity: identity,
		store:    store,
		state:    State{Loading: true},
	}
}

// Initialize restores the stored session. Only the first call has any effect.
func (m *Manager) Initialize(ctx context.Context) {
	m.initOnce.Do(func() {
		var user *models.UserProfile

		creds, err := m.store.Load()
		switch {
		case err == nil:
			u := creds.User
			user = &u
			log.Debug().Str("username", u.Username).Msg("restored stored session")
		case errors.Is(err, credentials.ErrNoCredentials):
			log.Debug().Msg("no stored session")
		default:
			log.Warn().Err(err).Msg("failed to read stored session")
		}

		m.update(func(s *State) {
			s.User = user
			s.Loading = false
		})
	})
}

// Login signs in with a username or email and password. On failure the
// current state is left as it was.
func (m *Manager) Login(ctx context.Context, identifier, password string) (*models.UserProfile, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, client.NewValidationError("username_or_email", "username or email is required")
	}
	if password == "" {
		return nil, client.NewValidationError("password", "password is required")
	}

	res, err := m.identity.Login(ctx, models.LoginRequest{Identifier: identifier, Password: password})
	if err != nil {
		return nil, err
	}

	if err := m.store.Save(res.Token, res.User); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	user := res.User
	m.update(func(s *State) {
		s.User = &user
		s.Loading = false
	})

	telemetry.GetMetrics().LoginsTotal.Add(ctx, 1)

	log.Info().
		Str("username", user.Username).
		Str("role", string(user.Role)).
		Str("fingerprint", credentials.Fingerprint(res.Token)).
		Msg("signed in")

	return &user, nil
}

// Register creates an account and signs into it. Nothing is persisted unless
// both steps succeed.
func (m *Manager) Register(ctx context.Context, req models.RegisterRequest) (*models.UserProfile, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)

	if err := client.ValidateStruct(req); err != nil {
		return nil, err
	}
	if req.PasswordConfirmation != "" && req.PasswordConfirmation != req.Password {
		return nil, client.NewValidationError("password_confirmation", "passwords do not match")
	}

	if _, err := m.identity.CreateUser(ctx, req); err != nil {
		return nil, err
	}

	log.Debug().Str("username", req.Username).Msg("account created")

	return m.Login(ctx, req.Username, req.Password)
}

// Logout forgets the session locally. The backend is not contacted.
func (m *Manager) Logout() error {
	err := m.store.Clear()

	m.update(func(s *State) {
		s.User = nil
		s.Loading = false
	})

	if err != nil {
		return fmt.Errorf("failed to clear stored session: %w", err)
	}
	return nil
}

// Invalidate drops the in-memory user after a backend rejected the token.
// The HTTP layer has already cleared the stored credentials.
func (m *Manager) Invalidate() {
	var had bool
	m.update(func(s *State) {
		had = s.User != nil
		s.User = nil
		s.Loading = false
	})

	if had {
		telemetry.GetMetrics().InvalidationsTotal.Add(context.Background(), 1)
		log.Warn().Msg("session invalidated, sign in again to continue")
	}
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyState(m.state)
}

// Subscribe returns a channel that receives the current state and then every
// change. Slow readers only see the latest state. Call the returned func to
// unsubscribe.
func (m *Manager) Subscribe() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hub.Subscribe(copyState(m.state))
}

func (m *Manager) update(fn func(s *State)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn(&m.state)
	m.hub.Publish(copyState(m.state))
}

func copyState(s State) State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}
