package database

import (
	"context"
	"database/sql"
	"fmt"

	"infrasee/common"
	"infrasee/models"
)

// CreateNotification inserts a notification record and fills in its seq.
func (d *Database) CreateNotification(ctx context.Context, n *models.Notification) error {
	var reportSeq interface{}
	if n.ReportSeq != nil {
		reportSeq = *n.ReportSeq
	}
	result, err := d.db.ExecContext(ctx, `INSERT
		INTO notifications (user_id, report_seq, message, kind)
		VALUES (?, ?, ?, ?)`,
		n.UserID, reportSeq, n.Message, string(n.Kind))
	common.LogResult("createNotification", result, err, true)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get notification seq: %w", err)
	}
	n.Seq = seq
	return nil
}

// ListNotifications returns a user's notifications, newest first.
func (d *Database) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	query := `SELECT seq, user_id, report_seq, message, kind, is_read, created_at
		FROM notifications
		WHERE user_id = ?`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications for %s: %w", userID, err)
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0)
	for rows.Next() {
		var (
			n         models.Notification
			reportSeq sql.NullInt64
			kind      string
		)
		if err := rows.Scan(&n.Seq, &n.UserID, &reportSeq, &n.Message, &kind, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if reportSeq.Valid {
			v := reportSeq.Int64
			n.ReportSeq = &v
		}
		n.Kind = models.NotificationKind(kind)
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationRead flips one notification to read, scoped to its owner.
func (d *Database) MarkNotificationRead(ctx context.Context, seq int64, userID string) (bool, error) {
	result, err := d.db.ExecContext(ctx, `UPDATE notifications
		SET is_read = TRUE
		WHERE seq = ? AND user_id = ?`, seq, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification %d read: %w", seq, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// MarkAllNotificationsRead flips every unread notification of a user.
func (d *Database) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	result, err := d.db.ExecContext(ctx, `UPDATE notifications
		SET is_read = TRUE
		WHERE user_id = ? AND is_read = FALSE`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read for %s: %w", userID, err)
	}
	return result.RowsAffected()
}
