package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/orchidnexus/orchid/internal/db"
	"github.com/orchidnexus/orchid/internal/domain"
)

// SQLiteCredentialRepo stores the single active login.
type SQLiteCredentialRepo struct {
	db  db.DBTX
	now func() time.Time
}

func NewSQLiteCredentialRepo(conn db.DBTX) *SQLiteCredentialRepo {
	return &SQLiteCredentialRepo{db: conn, now: time.Now}
}

// Save replaces any stored credential.
func (r *SQLiteCredentialRepo) Save(ctx context.Context, c *domain.Credential) error {
	if !c.User.Role.Valid() {
		return fmt.Errorf("saving credential: invalid role %q", c.User.Role)
	}
	c.UpdatedAt = r.now().UTC()
	query := `INSERT OR REPLACE INTO credentials
		(id, api_url, token, user_id, email, role, active_project_id, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		c.APIURL,
		c.Token,
		c.User.ID,
		c.User.Email,
		string(c.User.Role),
		nullableIntToValue(c.ActiveProjectID),
		formatTime(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}
	return nil
}

func (r *SQLiteCredentialRepo) Load(ctx context.Context) (*domain.Credential, error) {
	query := `SELECT api_url, token, user_id, email, role, active_project_id, updated_at
		FROM credentials WHERE id = 1`

	var (
		c         domain.Credential
		role      string
		active    sql.NullInt64
		updatedAt string
	)
	err := r.db.QueryRowContext(ctx, query).Scan(
		&c.APIURL,
		&c.Token,
		&c.User.ID,
		&c.User.Email,
		&role,
		&active,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("credential: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scanning credential: %w", err)
	}
	c.User.Role = domain.Role(role)
	c.ActiveProjectID = nullIntPtr(active)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// SetActiveProject records the selected project; nil clears it.
func (r *SQLiteCredentialRepo) SetActiveProject(ctx context.Context, projectID *int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE credentials SET active_project_id = ?, updated_at = ? WHERE id = 1`,
		nullableIntToValue(projectID), formatTime(r.now()))
	if err != nil {
		return fmt.Errorf("setting active project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting active project: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("credential: %w", ErrNotFound)
	}
	return nil
}

// Delete is a no-op when nothing is stored.
func (r *SQLiteCredentialRepo) Delete(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	return nil
}
