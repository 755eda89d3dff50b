package service

import (
	"context"
	"errors"
	"strings"

	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
	"github.com/njrgourav11/service-buddy-sub000/internal/models"

	"github.com/rs/zerolog"
)

type UserService struct {
	profiles      domain.ProfileStore
	notifications domain.NotificationStore
	logger        *zerolog.Logger
}

func NewUserService(profiles domain.ProfileStore, notifications domain.NotificationStore, logger *zerolog.Logger) *UserService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &UserService{profiles: profiles, notifications: notifications, logger: logger}
}

// ProfileUpdate carries the fields a user may change on their own profile.
// Empty fields are left unchanged.
type ProfileUpdate struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	FCMToken string `json:"fcm_token"`
}

func (s *UserService) GetProfile(ctx context.Context, actor models.Actor) (*models.User, error) {
	if err := requireSignedIn(actor); err != nil {
		return nil, err
	}
	user, err := s.profiles.GetUser(ctx, actor.UserID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.NotFound("user", actor.UserID)
	}
	if err != nil {
		return nil, domain.Upstream("get user", err)
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, actor models.Actor, upd ProfileUpdate) (*models.User, error) {
	user, err := s.GetProfile(ctx, actor)
	if err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(upd.Name); v != "" {
		user.Name = v
	}
	if v := strings.TrimSpace(upd.Phone); v != "" {
		user.Phone = v
	}
	if v := strings.TrimSpace(upd.FCMToken); v != "" {
		user.FCMToken = v
	}
	if err := s.profiles.UpsertUser(ctx, user); err != nil {
		return nil, domain.Upstream("update user", err)
	}
	return s.GetProfile(ctx, actor)
}

func (s *UserService) ListNotifications(ctx context.Context, actor models.Actor, limit int) ([]*models.Notification, error) {
	if err := requireSignedIn(actor); err != nil {
		return nil, err
	}
	list, err := s.notifications.ListNotifications(ctx, actor.UserID, limit)
	if err != nil {
		return nil, domain.Upstream("list notifications", err)
	}
	return list, nil
}

func (s *UserService) MarkNotificationRead(ctx context.Context, actor models.Actor, notificationID string) error {
	if err := requireSignedIn(actor); err != nil {
		return err
	}
	err := s.notifications.MarkNotificationRead(ctx, actor.UserID, notificationID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return domain.NotFound("notification", notificationID)
	}
	if err != nil {
		return domain.Upstream("mark notification read", err)
	}
	return nil
}

// EnsureAdmins promotes the configured uids to admin, creating a bare
// profile for any uid that has not signed in yet.
func (s *UserService) EnsureAdmins(ctx context.Context, uids []string) error {
	for _, uid := range uids {
		uid = strings.TrimSpace(uid)
		if uid == "" {
			continue
		}
		_, err := s.profiles.GetUser(ctx, uid)
		if errors.Is(err, domain.ErrRecordNotFound) {
			if err := s.profiles.UpsertUser(ctx, &models.User{ID: uid, Role: models.RoleAdmin}); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		if err := s.profiles.UpdateUserRole(ctx, uid, models.RoleAdmin); err != nil {
			return err
		}
		s.logger.Debug().Str("user_id", uid).Msg("Admin ensured")
	}
	return nil
}
