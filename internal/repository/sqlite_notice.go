package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/orchidnexus/orchid/internal/db"
	"github.com/orchidnexus/orchid/internal/domain"
)

// SQLiteNoticeRepo is the durable log of push notices. It satisfies
// notify.NoticeSink.
type SQLiteNoticeRepo struct {
	db db.DBTX
}

func NewSQLiteNoticeRepo(conn db.DBTX) *SQLiteNoticeRepo {
	return &SQLiteNoticeRepo{db: conn}
}

func (r *SQLiteNoticeRepo) AppendNotice(ctx context.Context, n domain.Notice) error {
	query := `INSERT INTO notices (id, project_id, message, received_at, seen) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		n.ID.String(),
		n.ProjectID,
		n.Message,
		formatTime(n.ReceivedAt),
		boolToInt(n.Seen),
	)
	if err != nil {
		return fmt.Errorf("appending notice: %w", err)
	}
	return nil
}

// List returns a project's notices newest first. A limit <= 0 returns all.
func (r *SQLiteNoticeRepo) List(ctx context.Context, projectID, limit int) ([]domain.Notice, error) {
	query := `SELECT id, project_id, message, received_at, seen FROM notices
		WHERE project_id = ? ORDER BY received_at DESC, rowid DESC`
	args := []any{projectID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing notices: %w", err)
	}
	defer rows.Close()

	var out []domain.Notice
	for rows.Next() {
		var (
			n          domain.Notice
			id, recvAt string
			seen       int
		)
		if err := rows.Scan(&id, &n.ProjectID, &n.Message, &recvAt, &seen); err != nil {
			return nil, fmt.Errorf("scanning notice: %w", err)
		}
		n.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("notice id %q: %w", id, err)
		}
		n.ReceivedAt = parseTime(recvAt)
		n.Seen = seen != 0
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkSeen flags every unseen notice of the project and returns how many
// changed.
func (r *SQLiteNoticeRepo) MarkSeen(ctx context.Context, projectID int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notices SET seen = 1 WHERE project_id = ? AND seen = 0`, projectID)
	if err != nil {
		return 0, fmt.Errorf("marking notices seen: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteNoticeRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notices`); err != nil {
		return fmt.Errorf("deleting notices: %w", err)
	}
	return nil
}
