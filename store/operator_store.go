package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"salepage/cms/models"
	"salepage/cms/session"
)

var (
	ErrOperatorExists   = errors.New("operator already exists")
	ErrOperatorNotFound = errors.New("operator not found")
)

const uniqueViolation = "23505"

type OperatorStore struct {
	db *sql.DB
}

func NewOperatorStore(db *sql.DB) *OperatorStore {
	return &OperatorStore{db: db}
}

// CreateOperator inserts an operator with an already hashed password.
func (s *OperatorStore) CreateOperator(ctx context.Context, username string, hashedPassword []byte, role string) (*models.Operator, error) {
	op := &models.Operator{}
	query := `
		INSERT INTO operators (username, hashed_password, role)
		VALUES ($1, $2, $3)
		RETURNING id, username, role, created_at, updated_at;
	`
	err := s.db.QueryRowContext(ctx, query, username, hashedPassword, role).Scan(
		&op.ID,
		&op.Username,
		&op.Role,
		&op.CreatedAt,
		&op.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrOperatorExists, username)
		}
		return nil, fmt.Errorf("failed to create operator: %w", err)
	}
	return op, nil
}

func (s *OperatorStore) GetOperatorByUsername(ctx context.Context, username string) (*models.Operator, error) {
	op := &models.Operator{}
	query := `
		SELECT id, username, role, hashed_password, created_at, updated_at
		FROM operators
		WHERE username = $1;
	`
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&op.ID,
		&op.Username,
		&op.Role,
		&op.HashedPassword,
		&op.CreatedAt,
		&op.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrOperatorNotFound, username)
		}
		return nil, fmt.Errorf("failed to get operator by username: %w", err)
	}
	return op, nil
}

// Authenticate checks credentials against the operators table. Unknown
// usernames and wrong passwords are indistinguishable to the caller.
func (s *OperatorStore) Authenticate(ctx context.Context, creds session.Credentials) (session.Payload, error) {
	op, err := s.GetOperatorByUsername(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, ErrOperatorNotFound) {
			return session.Payload{}, session.ErrInvalidCredentials
		}
		return session.Payload{}, err
	}
	if err := bcrypt.CompareHashAndPassword(op.HashedPassword, []byte(creds.Password)); err != nil {
		return session.Payload{}, session.ErrInvalidCredentials
	}
	return session.Payload{
		UserID:   strconv.Itoa(op.ID),
		Username: op.Username,
		Role:     op.Role,
	}, nil
}

// HashPassword hashes a plain password for CreateOperator.
func HashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}
