package database

import (
	"context"
	"database/sql"
	"fmt"

	"infrasee/models"
)

const userColumns = `id, name, phone, is_admin, is_moderator, is_submoderator, infra_type, assigned_moderator`

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u           models.User
		phone       sql.NullString
		infraType   sql.NullString
		assignedMod sql.NullString
	)
	err := row.Scan(&u.ID, &u.Name, &phone, &u.IsAdmin, &u.IsModerator,
		&u.IsSubModerator, &infraType, &assignedMod)
	if err != nil {
		return nil, err
	}
	u.Phone = phone.String
	u.InfraType = models.InfraType(infraType.String)
	u.AssignedModeratorID = assignedMod.String
	return &u, nil
}

// GetUser fetches one user; returns nil when it does not exist.
func (d *Database) GetUser(ctx context.Context, id string) (*models.User, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return user, nil
}

// SubModeratorsOf returns the sub-moderators serving under a moderator.
// An empty result means the moderator resolves reports without a handshake.
func (d *Database) SubModeratorsOf(ctx context.Context, moderatorID string) ([]models.User, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE is_submoderator = TRUE AND assigned_moderator = ?`,
		moderatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sub-moderators of %s: %w", moderatorID, err)
	}
	return collectUsers(rows)
}

// ModeratorsByInfraType returns the moderators covering one catalog entry.
func (d *Database) ModeratorsByInfraType(ctx context.Context, t models.InfraType) ([]models.User, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE is_moderator = TRUE AND infra_type = ?`,
		string(t))
	if err != nil {
		return nil, fmt.Errorf("failed to query moderators for %s: %w", t, err)
	}
	return collectUsers(rows)
}

func collectUsers(rows *sql.Rows) ([]models.User, error) {
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}
