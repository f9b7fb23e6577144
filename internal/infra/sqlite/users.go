package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Gargee-Buva/Finora/internal/domain"
	"github.com/Gargee-Buva/Finora/internal/store"
)

// CreateUser inserts the user and its report setting together.
func (s *Store) CreateUser(ctx context.Context, user *domain.User, setting *domain.ReportSetting) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?)`,
			user.ID, user.Name, user.Email, formatTime(user.CreatedAt)); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		if setting != nil {
			if err := saveSetting(ctx, tx, setting); err != nil {
				return fmt.Errorf("insert report setting: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("CreateUser: %w", err)
	}
	return nil
}

// GetUser looks a user up by id.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var (
		u         domain.User
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email, created_at FROM users WHERE id = ?`, userID).
		Scan(&u.ID, &u.Name, &u.Email, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("GetUser: %s: %w", userID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetUser: %w", err)
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("GetUser: %w", err)
	}
	return &u, nil
}
