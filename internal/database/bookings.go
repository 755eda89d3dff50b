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

const bookingColumns = `id, customer_id, customer_name, customer_phone, service_id, service_name,
	category, package_tier, amount, scheduled_date, scheduled_time, address, notes,
	status, payment_status, payment_method, payment_reference,
	technician_id, technician_name, technician_phone, created_at, updated_at, version`

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(
		&b.ID, &b.CustomerID, &b.CustomerName, &b.CustomerPhone, &b.ServiceID, &b.ServiceName,
		&b.Category, &b.PackageTier, &b.Amount, &b.ScheduledDate, &b.ScheduledTime, &b.Address, &b.Notes,
		&b.Status, &b.PaymentStatus, &b.PaymentMethod, &b.PaymentReference,
		&b.TechnicianID, &b.TechnicianName, &b.TechnicianPhone, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	query := `INSERT INTO bookings (` + bookingColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		booking.ID,
		booking.CustomerID,
		booking.CustomerName,
		booking.CustomerPhone,
		booking.ServiceID,
		booking.ServiceName,
		booking.Category,
		booking.PackageTier,
		booking.Amount,
		booking.ScheduledDate,
		booking.ScheduledTime,
		booking.Address,
		booking.Notes,
		booking.Status,
		booking.PaymentStatus,
		booking.PaymentMethod,
		booking.PaymentReference,
		booking.TechnicianID,
		booking.TechnicianName,
		booking.TechnicianPhone,
		now,
		now,
		1,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("booking %s: %w", booking.ID, domain.ErrDuplicate)
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %s: %w", id, domain.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

func (db *DB) ListByCustomer(ctx context.Context, customerID string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE customer_id = ? ORDER BY created_at DESC, rowid DESC`
	return db.queryBookings(ctx, query, customerID)
}

func (db *DB) ListByTechnician(ctx context.Context, technicianID string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE technician_id = ? ORDER BY created_at DESC, rowid DESC`
	return db.queryBookings(ctx, query, technicianID)
}

// ListOpenJobs returns confirmed bookings nobody has claimed, oldest first.
func (db *DB) ListOpenJobs(ctx context.Context, category string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE status = ? AND technician_id = ''`
	args := []any{models.StatusConfirmed}
	if category != "" {
		query += ` AND category = ? COLLATE NOCASE`
		args = append(args, category)
	}
	query += ` ORDER BY created_at ASC, rowid ASC`
	return db.queryBookings(ctx, query, args...)
}

func (db *DB) ListAll(ctx context.Context) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY created_at DESC, rowid DESC`
	return db.queryBookings(ctx, query)
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]*models.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

// TransactionalUpdate reads the booking, runs check and mutate against it and
// writes the mutable fields back with a version compare-and-swap, all in one
// transaction. Identity, pricing and address columns are never written.
func (db *DB) TransactionalUpdate(
	ctx context.Context,
	id string,
	check domain.CheckFunc,
	mutate domain.MutateFunc,
	opts ...domain.UpdateOption,
) (*models.Booking, error) {
	options := domain.ApplyUpdateOptions(opts...)

	var updated *models.Booking
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		current, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("booking %s: %w", id, domain.ErrRecordNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read booking in tx: %w", err)
		}

		if check != nil {
			if err := check(current.Clone()); err != nil {
				return err
			}
		}

		next := current.Clone()
		if mutate != nil {
			if err := mutate(next); err != nil {
				return err
			}
		}
		if next.UpdatedAt.Equal(current.UpdatedAt) {
			next.UpdatedAt = time.Now().UTC()
		}

		query := `UPDATE bookings SET
                    status = ?, payment_status = ?, payment_method = ?, payment_reference = ?,
                    scheduled_date = ?, scheduled_time = ?,
                    technician_id = ?, technician_name = ?, technician_phone = ?,
                    updated_at = ?, version = version + 1
                  WHERE id = ? AND version = ?`
		result, err := tx.ExecContext(ctx, query,
			next.Status, next.PaymentStatus, next.PaymentMethod, next.PaymentReference,
			next.ScheduledDate, next.ScheduledTime,
			next.TechnicianID, next.TechnicianName, next.TechnicianPhone,
			next.UpdatedAt, id, current.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to update booking: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return domain.ErrConcurrentModification
		}

		if options.CreditTechnicianID != "" {
			if err := creditTechnician(ctx, tx, options.CreditTechnicianID, next.UpdatedAt); err != nil {
				return err
			}
		}

		// immutable fields come from the stored row, whatever mutate did
		immutable := current.Clone()
		immutable.Status = next.Status
		immutable.PaymentStatus = next.PaymentStatus
		immutable.PaymentMethod = next.PaymentMethod
		immutable.PaymentReference = next.PaymentReference
		immutable.ScheduledDate = next.ScheduledDate
		immutable.ScheduledTime = next.ScheduledTime
		immutable.TechnicianID = next.TechnicianID
		immutable.TechnicianName = next.TechnicianName
		immutable.TechnicianPhone = next.TechnicianPhone
		immutable.UpdatedAt = next.UpdatedAt
		immutable.Version = current.Version + 1
		updated = immutable
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func creditTechnician(ctx context.Context, tx *sql.Tx, technicianID string, at time.Time) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE technicians SET completed_jobs = completed_jobs + 1, updated_at = ? WHERE id = ?`,
		at, technicianID)
	if err != nil {
		return fmt.Errorf("failed to credit technician: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("technician %s: %w", technicianID, domain.ErrRecordNotFound)
	}
	return nil
}
