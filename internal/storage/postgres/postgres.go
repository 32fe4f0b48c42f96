package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JosephRemingston/insightAI/internal/storage"
)

// Storage: PostgreSQL implementation of storage.Storage.
// Schema lives in ./migrations.
type Storage struct {
	db *pgxpool.Pool
}

// New opens a pool and pings the database.
func New(ctx context.Context, dbURL string) (*Storage, error) {
	const op = "storage.postgres.New"

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

// Close closes the pool.
func (s *Storage) Close(context.Context) error {
	s.db.Close()
	return nil
}

var _ storage.Storage = (*Storage)(nil)
