package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"github.com/google/uuid"
)

const (
	userColumns       = `id, name, email, phone, role, fcm_token, telegram_chat_id, created_at, updated_at`
	technicianColumns = `id, user_id, name, phone, category, status, rating, completed_jobs, created_at, updated_at`
)

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role, &u.FCMToken, &u.TelegramChatID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func scanTechnician(row rowScanner) (*models.Technician, error) {
	var t models.Technician
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Phone, &t.Category, &t.Status, &t.Rating, &t.CompletedJobs, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpsertUser creates the profile or refreshes its contact fields. The role of
// an existing profile is left alone; use UpdateUserRole to change it.
func (db *DB) UpsertUser(ctx context.Context, user *models.User) error {
	if user.Role == "" {
		user.Role = models.RoleCustomer
	}
	now := time.Now().UTC()
	query := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                name = excluded.name,
                email = excluded.email,
                phone = excluded.phone,
                fcm_token = CASE WHEN excluded.fcm_token <> '' THEN excluded.fcm_token ELSE users.fcm_token END,
                telegram_chat_id = CASE WHEN excluded.telegram_chat_id <> 0 THEN excluded.telegram_chat_id ELSE users.telegram_chat_id END,
                updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Phone,
		user.Role,
		user.FCMToken,
		user.TelegramChatID,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	user.UpdatedAt = now
	return nil
}

func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (db *DB) UpdateUserRole(ctx context.Context, id string, role models.Role) error {
	result, err := db.ExecContext(ctx, `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`, role, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("user %s: %w", id, domain.ErrRecordNotFound)
	}
	return nil
}

func (db *DB) ListAdmins(ctx context.Context) ([]*models.User, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY created_at ASC`, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	defer rows.Close()

	var admins []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		admins = append(admins, u)
	}
	return admins, rows.Err()
}

func (db *DB) CreateTechnician(ctx context.Context, tech *models.Technician) error {
	if tech.ID == "" {
		tech.ID = uuid.NewString()
	}
	if tech.Status == "" {
		tech.Status = models.TechnicianPending
	}
	now := time.Now().UTC()
	query := `INSERT INTO technicians (` + technicianColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		tech.ID,
		tech.UserID,
		tech.Name,
		tech.Phone,
		tech.Category,
		tech.Status,
		tech.Rating,
		tech.CompletedJobs,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("technician for user %s: %w", tech.UserID, domain.ErrDuplicate)
		}
		return fmt.Errorf("failed to create technician: %w", err)
	}
	tech.CreatedAt = now
	tech.UpdatedAt = now
	return nil
}

func (db *DB) GetTechnician(ctx context.Context, id string) (*models.Technician, error) {
	t, err := scanTechnician(db.QueryRowContext(ctx, `SELECT `+technicianColumns+` FROM technicians WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("technician %s: %w", id, domain.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get technician: %w", err)
	}
	return t, nil
}

func (db *DB) GetTechnicianByUserID(ctx context.Context, userID string) (*models.Technician, error) {
	t, err := scanTechnician(db.QueryRowContext(ctx, `SELECT `+technicianColumns+` FROM technicians WHERE user_id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("technician for user %s: %w", userID, domain.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get technician: %w", err)
	}
	return t, nil
}

func (db *DB) UpdateTechnicianStatus(ctx context.Context, id string, status models.TechnicianStatus) error {
	result, err := db.ExecContext(ctx, `UPDATE technicians SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update technician status: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("technician %s: %w", id, domain.ErrRecordNotFound)
	}
	return nil
}

func (db *DB) ListTechnicians(ctx context.Context) ([]*models.Technician, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+technicianColumns+` FROM technicians ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list technicians: %w", err)
	}
	defer rows.Close()

	techs := make([]*models.Technician, 0)
	for rows.Next() {
		t, err := scanTechnician(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan technician: %w", err)
		}
		techs = append(techs, t)
	}
	return techs, rows.Err()
}
