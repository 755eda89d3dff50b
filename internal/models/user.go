package models

import "time"

// User is the profile document keyed by the identity-provider uid.
type User struct {
	ID             string    `json:"id" bson:"_id"`
	Name           string    `json:"name" bson:"name"`
	Email          string    `json:"email" bson:"email"`
	Phone          string    `json:"phone" bson:"phone"`
	Role           Role      `json:"role" bson:"role"`
	FCMToken       string    `json:"-" bson:"fcm_token"`
	TelegramChatID int64     `json:"-" bson:"telegram_chat_id"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type Technician struct {
	ID            string           `json:"id" bson:"_id"`
	UserID        string           `json:"user_id" bson:"user_id"`
	Name          string           `json:"name" bson:"name"`
	Phone         string           `json:"phone" bson:"phone"`
	Category      string           `json:"category" bson:"category"`
	Status        TechnicianStatus `json:"status" bson:"status"`
	Rating        float64          `json:"rating" bson:"rating"`
	CompletedJobs int64            `json:"completed_jobs" bson:"completed_jobs"`
	CreatedAt     time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" bson:"updated_at"`
}

func (t *Technician) IsApproved() bool {
	return t != nil && t.Status == TechnicianApproved
}

// Actor is the authenticated identity invoking an operation.
type Actor struct {
	UserID     string
	Role       Role
	Name       string
	Phone      string
	Technician *Technician
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// TechnicianID returns the actor's technician profile id, if any.
func (a Actor) TechnicianID() string {
	if a.Technician == nil {
		return ""
	}
	return a.Technician.ID
}
