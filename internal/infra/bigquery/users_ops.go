package bigquery

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/Gargee-Buva/Finora/internal/domain"
	"github.com/Gargee-Buva/Finora/internal/store"
)

const emailTaken = "email already registered"

// ErrEmailTaken is returned by CreateUser when another user owns the email.
var ErrEmailTaken = errors.New(emailTaken)

// createUserScript inserts the user and merges its report setting in one
// transaction.
func createUserScript(users, settings string, u *UserRow, setting *ReportSettingRow) (string, []bigquery.QueryParameter) {
	merge, params := mergeSettingSQL(settings, setting)
	sql := fmt.Sprintf(`
		BEGIN TRANSACTION;

		ASSERT NOT EXISTS (SELECT 1 FROM %[1]s WHERE LOWER(email) = LOWER(@email)) AS '%[2]s';

		INSERT INTO %[1]s (user_id, name, email, created_ts)
		VALUES (@user_id, @name, @email, @user_created_ts);
		%[3]s;

		COMMIT TRANSACTION;
	`, users, emailTaken, merge)

	params = append(params,
		bigquery.QueryParameter{Name: "name", Value: u.Name},
		bigquery.QueryParameter{Name: "email", Value: u.Email},
		bigquery.QueryParameter{Name: "user_created_ts", Value: u.CreatedTS},
	)
	return sql, params
}

// CreateUser inserts the user together with its report setting.
func (s *Store) CreateUser(ctx context.Context, user *domain.User, setting *domain.ReportSetting) error {
	if setting == nil {
		return fmt.Errorf("CreateUser: report setting is required")
	}
	if setting.UserID != user.ID {
		return fmt.Errorf("CreateUser: setting belongs to %s, not %s", setting.UserID, user.ID)
	}

	row := &UserRow{UserID: user.ID, Name: user.Name, Email: user.Email, CreatedTS: user.CreatedAt.UTC()}
	sql, params := createUserScript(s.table(usersTable), s.table(reportSettingsTable), row, settingRowFromDomain(setting))
	if err := s.exec(ctx, sql, params); err != nil {
		if assertFailed(err, emailTaken) {
			return fmt.Errorf("CreateUser: %s: %w", user.Email, ErrEmailTaken)
		}
		return fmt.Errorf("CreateUser: %w", err)
	}
	return nil
}

// GetUser looks a user up by id.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	sql := fmt.Sprintf(`SELECT user_id, name, email, created_ts FROM %s WHERE user_id = @user_id LIMIT 1`, s.table(usersTable))

	it, err := s.read(ctx, sql, []bigquery.QueryParameter{{Name: "user_id", Value: userID}})
	if err != nil {
		return nil, fmt.Errorf("GetUser: %w", err)
	}

	var row UserRow
	err = it.Next(&row)
	if errors.Is(err, iterator.Done) {
		return nil, fmt.Errorf("GetUser: %s: %w", userID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetUser: iter next: %w", err)
	}
	return &domain.User{ID: row.UserID, Name: row.Name, Email: row.Email, CreatedAt: row.CreatedTS.UTC()}, nil
}
