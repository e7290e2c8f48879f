package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// LoginFlow runs a login submission against a gate. A payload whose role is
// not OperatorRole is rejected even though the authenticator accepted it.
type LoginFlow struct {
	Authenticator Authenticator
	OperatorRole  string
	Logger        zerolog.Logger
}

func (f *LoginFlow) Submit(ctx context.Context, gate *Gate, creds Credentials) (Navigation, error) {
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return Navigation{}, fmt.Errorf("%w: username and password are required", ErrInvalidCredentials)
	}

	if err := gate.BeginLogin(); err != nil {
		if errors.Is(err, ErrAlreadyAuthenticated) {
			// replaying a login on a live session is not a failure; the
			// password is not re-checked, the gate already belongs to this
			// operator and nothing is granted that it did not have
			if p, ok := gate.Payload(); ok && strings.EqualFold(p.Username, creds.Username) {
				return Navigation{}, nil
			}
		}
		return Navigation{}, err
	}

	payload, err := f.Authenticator.Authenticate(ctx, creds)
	if err != nil {
		gate.OnLoginFailure()
		f.Logger.Info().Err(err).Str("username", creds.Username).Msg("login rejected")
		return Navigation{}, fmt.Errorf("login: %w", err)
	}

	if payload.Role != f.OperatorRole {
		gate.OnLoginFailure()
		f.Logger.Warn().Str("username", creds.Username).Str("role", payload.Role).Msg("login with non-operator role")
		return Navigation{}, ErrWrongRole
	}

	nav, err := gate.OnLoginSuccess(payload)
	if err != nil {
		gate.OnLoginFailure()
		return Navigation{}, err
	}
	f.Logger.Info().Str("username", payload.Username).Str("to", nav.To).Msg("operator logged in")
	return nav, nil
}
