package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultNotificationLimit = 50

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Severity == "" {
		n.Severity = models.SeverityInfo
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	if _, err := s.notifications.InsertOne(ctx, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	opts := options.Find().SetSort(newestFirst).SetLimit(int64(limit))
	cursor, err := s.notifications.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return decodeAll[models.Notification](ctx, cursor)
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.notifications.UpdateOne(ctx, bson.M{"_id": id, "user_id": userID}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("notification %s: %w", id, domain.ErrRecordNotFound)
	}
	return nil
}
