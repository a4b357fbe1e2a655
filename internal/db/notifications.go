package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/hiring-workflow/internal/types"
)

// CreateNotification implements notify.Store.
func (db *DB) CreateNotification(ctx context.Context, n *types.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO notifications (id, user_id, type, title, message, application_id, stage_number, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)`,
		n.ID, n.UserID, string(n.Type), n.Title, n.Message, n.ApplicationID, n.StageNumber, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListNotifications implements notify.Store, newest first.
func (db *DB) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]types.Notification, error) {
	query := `SELECT id, user_id, type, title, message, application_id, stage_number, is_read, created_at, read_at
		FROM notifications WHERE user_id = $1`
	args := []any{userID}
	if unreadOnly {
		query += " AND NOT is_read"
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	out := []types.Notification{}
	for rows.Next() {
		var n types.Notification
		var typ string
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &n.ApplicationID,
			&n.StageNumber, &n.IsRead, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Type = types.NotificationType(typ)
		out = append(out, n)
	}
	return out, rows.Err()
}

// CountUnread implements notify.Store.
func (db *DB) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

// MarkNotificationRead implements notify.Store.
func (db *DB) MarkNotificationRead(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, $3)
		 WHERE id = $1 AND user_id = $2`,
		id, userID, at,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkAllNotificationsRead implements notify.Store.
func (db *DB) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID, at time.Time) (int, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE, read_at = $2 WHERE user_id = $1 AND NOT is_read`,
		userID, at,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// LastDeadlineWarning implements notify.Store.
func (db *DB) LastDeadlineWarning(ctx context.Context, appID uuid.UUID, stage int) (*time.Time, error) {
	var last *time.Time
	err := db.pool.QueryRow(ctx,
		`SELECT MAX(created_at) FROM notifications
		 WHERE type = 'deadline_warning' AND application_id = $1 AND stage_number = $2`,
		appID, stage,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("failed to get last deadline warning: %w", err)
	}
	return last, nil
}
