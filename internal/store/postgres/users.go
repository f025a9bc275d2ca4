package postgres

import (
	"context"

	"pricedeck/internal/store"

	"github.com/google/uuid"
)

func (s *Store) CreateUser(ctx context.Context, u *store.User, hashedKey string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, api_key_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, u.ID, u.Email, hashedKey, u.CreatedAt)
	return err
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	var u store.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, created_at FROM users WHERE id = $1", id,
	).Scan(&u.ID, &u.Email, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByAPIKeyHash(ctx context.Context, hash string) (*store.User, error) {
	var u store.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, created_at FROM users WHERE api_key_hash = $1", hash,
	).Scan(&u.ID, &u.Email, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
