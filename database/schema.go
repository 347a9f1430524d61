package database

import (
	"context"
	"fmt"

	"github.com/apex/log"
)

// EnsureSchema creates the workflow tables if they don't exist.
func (d *Database) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			seq BIGINT NOT NULL AUTO_INCREMENT,
			reporter_name VARCHAR(255) NOT NULL,
			reporter_phone VARCHAR(32) NOT NULL,
			description TEXT NOT NULL,
			image_url VARCHAR(512),
			address VARCHAR(255) NOT NULL,
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL,
			infra_type ENUM('power', 'water', 'transport', 'telecom', 'commercial') NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			status ENUM('unassigned', 'pending', 'in_progress', 'under_review',
				'for_revision', 'resolved', 'dismissed') NOT NULL DEFAULT 'unassigned',
			assigned_moderator VARCHAR(64),
			status_remark TEXT,
			is_new BOOLEAN NOT NULL DEFAULT TRUE,
			submoderator_is_new BOOLEAN NOT NULL DEFAULT FALSE,
			is_approved BOOLEAN NOT NULL DEFAULT FALSE,
			is_requested BOOLEAN NOT NULL DEFAULT FALSE,
			requested_at TIMESTAMP NULL,
			resolved_at TIMESTAMP NULL,
			is_hidden BOOLEAN NOT NULL DEFAULT FALSE,
			hidden_at TIMESTAMP NULL,
			unassigned_since TIMESTAMP NULL,
			PRIMARY KEY (seq),
			INDEX infra_type_index (infra_type),
			INDEX status_index (status),
			INDEX assigned_moderator_index (assigned_moderator),
			INDEX latitude_index (latitude),
			INDEX longitude_index (longitude),
			INDEX unassigned_since_index (unassigned_since)
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) NOT NULL,
			name VARCHAR(255) NOT NULL,
			phone VARCHAR(32),
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			is_moderator BOOLEAN NOT NULL DEFAULT FALSE,
			is_submoderator BOOLEAN NOT NULL DEFAULT FALSE,
			infra_type ENUM('power', 'water', 'transport', 'telecom', 'commercial'),
			assigned_moderator VARCHAR(64),
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			INDEX assigned_moderator_index (assigned_moderator),
			INDEX infra_type_index (infra_type)
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			seq BIGINT NOT NULL AUTO_INCREMENT,
			user_id VARCHAR(64) NOT NULL,
			report_seq BIGINT,
			message TEXT NOT NULL,
			kind ENUM('new_report', 'status_change', 'approval', 'rejection', 'account_update') NOT NULL,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (seq),
			INDEX user_id_index (user_id),
			INDEX report_seq_index (report_seq)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_events (
			seq BIGINT NOT NULL AUTO_INCREMENT,
			actor VARCHAR(64),
			action VARCHAR(64) NOT NULL,
			report_seq BIGINT,
			details TEXT,
			request_id VARCHAR(64),
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (seq),
			INDEX report_seq_index (report_seq)
		)`,
	}

	for _, stmt := range statements {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}

	log.Info("Database schema ensured")
	return nil
}
