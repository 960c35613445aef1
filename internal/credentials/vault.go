package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/pinsync/internal/domain"
)

// Vault reads and writes the session as a unit on top of a Store.
type Vault struct {
	store Store
}

func NewVault(s Store) *Vault {
	return &Vault{store: s}
}

// Session returns the stored session. A partially stored session
// (username without token) is reported as logged out.
func (v *Vault) Session(ctx context.Context) (domain.Session, error) {
	username, okUser, err := v.store.Load(ctx, KeyUsername)
	if err != nil {
		return domain.Session{}, err
	}
	token, okToken, err := v.store.Load(ctx, KeyToken)
	if err != nil {
		return domain.Session{}, err
	}
	if !okUser || !okToken {
		return domain.Session{}, nil
	}
	return domain.Session{Username: username, Token: token}, nil
}

func (v *Vault) SaveSession(ctx context.Context, s domain.Session) error {
	if !s.LoggedIn() {
		return errors.New("credentials: incomplete session")
	}
	if err := v.store.Save(ctx, KeyUsername, s.Username); err != nil {
		return err
	}
	return v.store.Save(ctx, KeyToken, s.Token)
}

// ClearSession erases both fields. The token goes first so a failure
// halfway leaves no usable credential behind.
func (v *Vault) ClearSession(ctx context.Context) error {
	if err := v.store.Delete(ctx, KeyToken); err != nil {
		return err
	}
	return v.store.Delete(ctx, KeyUsername)
}

// AuthToken assembles "username:token" from the stored session.
func (v *Vault) AuthToken(ctx context.Context) (string, error) {
	s, err := v.Session(ctx)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if !s.LoggedIn() {
		return "", fmt.Errorf("%w: not logged in", domain.ErrUnauthorized)
	}
	return s.AuthToken(), nil
}
