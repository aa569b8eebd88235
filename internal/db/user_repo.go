package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"subgate/internal/types"
)

// UserRepository provides data access for the users table.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository backed by the given
// database connection (pool or transaction).
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// userColumns defines the standard set of columns selected for user queries.
// Used consistently across all query methods to avoid column drift.
const userColumns = `u.id, u.username, u.first_name, u.last_name, u.language_code, u.created_at`

// scanUser scans a single user row into a types.User struct.
// The columns must match the order defined in userColumns. Display attributes
// may be NULL in the database and scan through nullable targets.
func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	var (
		username     *string
		firstName    *string
		lastName     *string
		languageCode *string
	)
	err := row.Scan(&u.ID, &username, &firstName, &lastName, &languageCode, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	if username != nil {
		u.Username = *username
	}
	if firstName != nil {
		u.FirstName = *firstName
	}
	if lastName != nil {
		u.LastName = *lastName
	}
	if languageCode != nil {
		u.LanguageCode = *languageCode
	}
	return &u, nil
}

// GetByID retrieves a user by their Telegram ID.
// Returns not_found_user if no user exists.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.id = $1`,
		id,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user", err)
	}
	return u, nil
}

// Upsert creates the user on first contact and refreshes display attributes
// on every subsequent contact. Display attributes are last-write-wins;
// created_at is preserved across updates. Users are never deleted.
func (r *UserRepository) Upsert(ctx context.Context, u *types.User, now time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, username, first_name, last_name, language_code, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE
		 SET username = EXCLUDED.username,
		     first_name = EXCLUDED.first_name,
		     last_name = EXCLUDED.last_name,
		     language_code = EXCLUDED.language_code`,
		u.ID,
		nullable(u.Username),
		nullable(u.FirstName),
		nullable(u.LastName),
		nullable(u.LanguageCode),
		now,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert user", err)
	}
	return nil
}

// nullable maps an empty string to NULL so absent Telegram attributes are
// stored as NULL rather than empty strings.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
