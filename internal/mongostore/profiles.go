package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// userUpsert builds the update document for UpsertUser. Role and creation
// time are only written when the profile is new; push and chat handles are
// kept when the caller has none.
func userUpsert(user *models.User, now time.Time) bson.M {
	set := bson.M{
		"name":       user.Name,
		"email":      user.Email,
		"phone":      user.Phone,
		"updated_at": now,
	}
	if user.FCMToken != "" {
		set["fcm_token"] = user.FCMToken
	}
	if user.TelegramChatID != 0 {
		set["telegram_chat_id"] = user.TelegramChatID
	}
	return bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"role":       user.Role,
			"created_at": now,
		},
	}
}

func (s *Store) UpsertUser(ctx context.Context, user *models.User) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if user.Role == "" {
		user.Role = models.RoleCustomer
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	_, err := s.users.UpdateOne(ctx, bson.M{"_id": user.ID}, userUpsert(user, now), options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	user.UpdatedAt = now
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, notFound("user", id, err)
	}
	return &u, nil
}

func (s *Store) UpdateUserRole(ctx context.Context, id string, role models.Role) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"role": role, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", id, domain.ErrRecordNotFound)
	}
	return nil
}

func (s *Store) ListAdmins(ctx context.Context) ([]*models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	cursor, err := s.users.Find(ctx, bson.M{"role": models.RoleAdmin}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	return decodeAll[models.User](ctx, cursor)
}

func (s *Store) CreateTechnician(ctx context.Context, tech *models.Technician) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if tech.ID == "" {
		tech.ID = uuid.NewString()
	}
	if tech.Status == "" {
		tech.Status = models.TechnicianPending
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	tech.CreatedAt = now
	tech.UpdatedAt = now

	if _, err := s.technicians.InsertOne(ctx, tech); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("technician for user %s: %w", tech.UserID, domain.ErrDuplicate)
		}
		return fmt.Errorf("failed to create technician: %w", err)
	}
	return nil
}

func (s *Store) GetTechnician(ctx context.Context, id string) (*models.Technician, error) {
	return s.findTechnician(ctx, bson.M{"_id": id}, id)
}

func (s *Store) GetTechnicianByUserID(ctx context.Context, userID string) (*models.Technician, error) {
	return s.findTechnician(ctx, bson.M{"user_id": userID}, userID)
}

func (s *Store) findTechnician(ctx context.Context, filter bson.M, key string) (*models.Technician, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var t models.Technician
	if err := s.technicians.FindOne(ctx, filter).Decode(&t); err != nil {
		return nil, notFound("technician", key, err)
	}
	return &t, nil
}

func (s *Store) UpdateTechnicianStatus(ctx context.Context, id string, status models.TechnicianStatus) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.technicians.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("failed to update technician status: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("technician %s: %w", id, domain.ErrRecordNotFound)
	}
	return nil
}

func (s *Store) ListTechnicians(ctx context.Context) ([]*models.Technician, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	cursor, err := s.technicians.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list technicians: %w", err)
	}
	return decodeAll[models.Technician](ctx, cursor)
}
