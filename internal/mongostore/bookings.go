package mongostore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	oldestFirst = bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}
)

func (s *Store) CreateBooking(ctx context.Context, booking *models.Booking) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now
	booking.Version = 1

	if _, err := s.bookings.InsertOne(ctx, booking); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("booking %s: %w", booking.ID, domain.ErrDuplicate)
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var b models.Booking
	if err := s.bookings.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		return nil, notFound("booking", id, err)
	}
	return &b, nil
}

func (s *Store) ListByCustomer(ctx context.Context, customerID string) ([]*models.Booking, error) {
	return s.findBookings(ctx, bson.M{"customer_id": customerID}, options.Find().SetSort(newestFirst))
}

func (s *Store) ListByTechnician(ctx context.Context, technicianID string) ([]*models.Booking, error) {
	return s.findBookings(ctx, bson.M{"technician_id": technicianID}, options.Find().SetSort(newestFirst))
}

// ListOpenJobs returns unclaimed confirmed bookings, oldest first. The
// category is matched case-insensitively through a strength-2 collation.
func (s *Store) ListOpenJobs(ctx context.Context, category string) ([]*models.Booking, error) {
	opts := options.Find().
		SetSort(oldestFirst).
		SetCollation(&options.Collation{Locale: "en", Strength: 2})
	return s.findBookings(ctx, openJobsFilter(category), opts)
}

func (s *Store) ListAll(ctx context.Context) ([]*models.Booking, error) {
	return s.findBookings(ctx, bson.M{}, options.Find().SetSort(newestFirst))
}

func openJobsFilter(category string) bson.M {
	filter := bson.M{
		"status":        models.StatusConfirmed,
		"technician_id": "",
	}
	if category = strings.TrimSpace(category); category != "" {
		filter["category"] = category
	}
	return filter
}

func (s *Store) findBookings(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Booking, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	cursor, err := s.bookings.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	return decodeAll[models.Booking](ctx, cursor)
}

// mutableFields is the only part of a booking an update may write.
func mutableFields(b *models.Booking) bson.M {
	return bson.M{
		"status":            b.Status,
		"payment_status":    b.PaymentStatus,
		"payment_method":    b.PaymentMethod,
		"payment_reference": b.PaymentReference,
		"scheduled_date":    b.ScheduledDate,
		"scheduled_time":    b.ScheduledTime,
		"technician_id":     b.TechnicianID,
		"technician_name":   b.TechnicianName,
		"technician_phone":  b.TechnicianPhone,
		"updated_at":        b.UpdatedAt,
	}
}

// mergeMutable returns current with the mutable fields of next applied.
func mergeMutable(current, next *models.Booking) *models.Booking {
	out := current.Clone()
	out.Status = next.Status
	out.PaymentStatus = next.PaymentStatus
	out.PaymentMethod = next.PaymentMethod
	out.PaymentReference = next.PaymentReference
	out.ScheduledDate = next.ScheduledDate
	out.ScheduledTime = next.ScheduledTime
	out.TechnicianID = next.TechnicianID
	out.TechnicianName = next.TechnicianName
	out.TechnicianPhone = next.TechnicianPhone
	out.UpdatedAt = next.UpdatedAt
	out.Version = current.Version + 1
	return out
}

// TransactionalUpdate reads, checks and writes the booking in one session
// transaction. The version filter keeps the write exclusive even on a
// deployment where the transaction degrades to a plain read-then-write.
func (s *Store) TransactionalUpdate(
	ctx context.Context,
	id string,
	check domain.CheckFunc,
	mutate domain.MutateFunc,
	opts ...domain.UpdateOption,
) (*models.Booking, error) {
	updateOpts := domain.ApplyUpdateOptions(opts...)

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var updated *models.Booking
	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		var current models.Booking
		if err := s.bookings.FindOne(sc, bson.M{"_id": id}).Decode(&current); err != nil {
			return notFound("booking", id, err)
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
		next.UpdatedAt = next.UpdatedAt.Truncate(time.Millisecond)

		res, err := s.bookings.UpdateOne(sc,
			bson.M{"_id": id, "version": current.Version},
			bson.M{"$set": mutableFields(next), "$inc": bson.M{"version": 1}},
		)
		if isWriteConflict(err) {
			return domain.ErrConcurrentModification
		}
		if err != nil {
			return fmt.Errorf("failed to update booking: %w", err)
		}
		if res.MatchedCount == 0 {
			return domain.ErrConcurrentModification
		}

		if updateOpts.CreditTechnicianID != "" {
			res, err := s.technicians.UpdateOne(sc,
				bson.M{"_id": updateOpts.CreditTechnicianID},
				bson.M{"$inc": bson.M{"completed_jobs": 1}, "$set": bson.M{"updated_at": next.UpdatedAt}},
			)
			if err != nil {
				return fmt.Errorf("failed to credit technician: %w", err)
			}
			if res.MatchedCount == 0 {
				return fmt.Errorf("technician %s: %w", updateOpts.CreditTechnicianID, domain.ErrRecordNotFound)
			}
		}

		updated = mergeMutable(&current, next)
		return nil
	})
	if isWriteConflict(err) {
		return nil, domain.ErrConcurrentModification
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}
