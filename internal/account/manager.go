// Package account owns the login state of the remote account.
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/pinsync/internal/domain"
	"github.com/MrSnakeDoc/pinsync/internal/engine"
	"github.com/MrSnakeDoc/pinsync/internal/logger"
)

// TokenExchanger trades a password for the account API token.
type TokenExchanger interface {
	ExchangeToken(ctx context.Context, username, password string) (string, error)
}

// SessionStore persists the session.
type SessionStore interface {
	Session(ctx context.Context) (domain.Session, error)
	SaveSession(ctx context.Context, s domain.Session) error
	ClearSession(ctx context.Context) error
}

// Engine is the part of the sync engine login and logout drive.
type Engine interface {
	Sync() *engine.Task
	Clear() *engine.Task
}

// SyncResetter rewinds the full sync gate.
type SyncResetter interface {
	SetLastFullSync(t time.Time) error
}

type Manager struct {
	remote   TokenExchanger
	sessions SessionStore
	engine   Engine
	clock    SyncResetter
	logger   logger.Logger
}

func NewManager(remote TokenExchanger, sessions SessionStore, eng Engine, clock SyncResetter, log logger.Logger) *Manager {
	return &Manager{
		remote:   remote,
		sessions: sessions,
		engine:   eng,
		clock:    clock,
		logger:   log,
	}
}

// LogIn exchanges the password for a token and stores the session. It then
// rewinds the sync gate and starts a full sync; the returned task is that
// sync, whose outcome is only logged here. Callers may wait on it or not.
func (m *Manager) LogIn(ctx context.Context, username, password string) (*engine.Task, error) {
	token, err := m.remote.ExchangeToken(ctx, username, password)
	if err != nil {
		m.logger.Warn("login failed", logger.String("username", username), logger.Error(err))
		if errors.Is(err, domain.ErrUnauthorized) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}

	if err := m.sessions.SaveSession(ctx, domain.Session{Username: username, Token: token}); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	if err := m.clock.SetLastFullSync(time.Unix(0, 0).UTC()); err != nil {
		return nil, fmt.Errorf("reset sync time: %w", err)
	}

	m.logger.Info("logged in", logger.String("username", username))

	task := m.engine.Sync()
	go func() {
		<-task.Done()
		if err := task.Err(); err != nil {
			m.logger.Warn("initial sync failed", logger.String("username", username), logger.Error(err))
		}
	}()
	return task, nil
}

// LogOut clears the local mirror through the engine, then forgets the
// session. If the engine is busy nothing is touched. Once the clear is
// admitted both steps run to the end even if ctx is cancelled.
func (m *Manager) LogOut(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	task := m.engine.Clear()
	if err := task.Wait(ctx); err != nil {
		if errors.Is(err, domain.ErrBusy) {
			return domain.ErrPendingOperations
		}
		return fmt.Errorf("clear local bookmarks: %w", err)
	}

	if err := m.sessions.ClearSession(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	m.logger.Info("logged out")
	return nil
}

func (m *Manager) LoggedIn(ctx context.Context) (bool, error) {
	s, err := m.sessions.Session(ctx)
	if err != nil {
		return false, err
	}
	return s.LoggedIn(), nil
}

// Username is empty when logged out.
func (m *Manager) Username(ctx context.Context) (string, error) {
	s, err := m.sessions.Session(ctx)
	if err != nil {
		return "", err
	}
	if !s.LoggedIn() {
		return "", nil
	}
	return s.Username, nil
}
