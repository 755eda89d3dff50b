package database

import (
	"context"
	"fmt"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"github.com/google/uuid"
)

const defaultNotificationLimit = 50

func (db *DB) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Severity == "" {
		n.Severity = models.SeverityInfo
	}
	query := `INSERT INTO notifications (id, user_id, title, message, severity, link, is_read, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, n.ID, n.UserID, n.Title, n.Message, n.Severity, n.Link, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListNotifications returns the user's notifications, newest first.
func (db *DB) ListNotifications(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	query := `SELECT id, user_id, title, message, severity, link, is_read, created_at
              FROM notifications WHERE user_id = ?
              ORDER BY created_at DESC, rowid DESC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	list := make([]*models.Notification, 0)
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Severity, &n.Link, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		list = append(list, &n)
	}
	return list, rows.Err()
}

// MarkNotificationRead flags one of the user's notifications as read. A
// notification owned by someone else is reported as not found.
func (db *DB) MarkNotificationRead(ctx context.Context, userID, id string) error {
	result, err := db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("notification %s: %w", id, domain.ErrRecordNotFound)
	}
	return nil
}
