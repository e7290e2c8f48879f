package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

type DBClient struct {
	DB     *sql.DB
	logger zerolog.Logger
}

// NewPostgresDB opens and pings the operator database.
func NewPostgresDB(ctx context.Context, dbURL string, logger zerolog.Logger) (*DBClient, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("postgres: database url is empty")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("error opening database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database (ping failed): %w", err)
	}

	logger.Info().Msg("connected to PostgreSQL")
	return &DBClient{DB: db, logger: logger}, nil
}

func (c *DBClient) Close() {
	if c.DB == nil {
		return
	}
	if err := c.DB.Close(); err != nil {
		c.logger.Error().Err(err).Msg("closing PostgreSQL connection")
		return
	}
	c.logger.Info().Msg("PostgreSQL connection closed")
}
