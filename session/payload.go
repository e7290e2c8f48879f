package session

import (
	"context"
	"errors"
)

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrWrongRole            = errors.New("account is not an operator")
	ErrLoginInProgress      = errors.New("login already in progress")
	ErrAlreadyAuthenticated = errors.New("session already authenticated")
)

// Payload is what a successful sign-in hands back: who the operator is and
// the token the seller API expects on later calls.
type Payload struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	AccessToken string `json:"accessToken"`
}

type Credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Authenticator exchanges credentials for a session payload. The remote
// seller API and the local operator store both implement it.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (Payload, error)
}
