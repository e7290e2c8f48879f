package models

import "time"

// Operator is a back-office account kept in Postgres when AUTH_PROVIDER=local.
type Operator struct {
	ID             int       `json:"id"`
	Username       string    `json:"username"`
	Role           string    `json:"role"`
	HashedPassword []byte    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type CreateOperatorRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required"`
}

// LoginRequest is the login form. Empty fields are rejected by the login
// flow so the screen gets the same message as a wrong password.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
