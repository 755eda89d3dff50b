package models

import "time"

type BookingStatus string

type PaymentStatus string

type Booking struct {
	ID               string        `json:"id" bson:"_id"`
	CustomerID       string        `json:"customer_id" bson:"customer_id"`
	CustomerName     string        `json:"customer_name" bson:"customer_name"`
	CustomerPhone    string        `json:"customer_phone" bson:"customer_phone"`
	ServiceID        string        `json:"service_id" bson:"service_id"`
	ServiceName      string        `json:"service_name" bson:"service_name"`
	Category         string        `json:"category" bson:"category"`
	PackageTier      string        `json:"package_tier" bson:"package_tier"`
	Amount           float64       `json:"amount" bson:"amount"`
	ScheduledDate    string        `json:"scheduled_date" bson:"scheduled_date"` // YYYY-MM-DD
	ScheduledTime    string        `json:"scheduled_time" bson:"scheduled_time"` // HH:MM
	Address          string        `json:"address" bson:"address"`
	Notes            string        `json:"notes,omitempty" bson:"notes,omitempty"`
	Status           BookingStatus `json:"status" bson:"status"`
	PaymentStatus    PaymentStatus `json:"payment_status" bson:"payment_status"`
	PaymentMethod    string        `json:"payment_method,omitempty" bson:"payment_method,omitempty"`
	PaymentReference string        `json:"payment_reference,omitempty" bson:"payment_reference,omitempty"`
	TechnicianID     string        `json:"technician_id" bson:"technician_id"`
	TechnicianName   string        `json:"technician_name" bson:"technician_name"`
	TechnicianPhone  string        `json:"technician_phone" bson:"technician_phone"`
	CreatedAt        time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" bson:"updated_at"`
	Version          int64         `json:"version" bson:"version"`
}

// BookingDraft is the customer's request to create a booking.
type BookingDraft struct {
	ServiceID     string `json:"service_id"`
	PackageTier   string `json:"package_tier"`
	ScheduledDate string `json:"scheduled_date"`
	ScheduledTime string `json:"scheduled_time"`
	Address       string `json:"address"`
	Notes         string `json:"notes,omitempty"`
}

// IsAssigned reports whether a technician holds the job.
func (b *Booking) IsAssigned() bool {
	return b.TechnicianID != ""
}

func (b *Booking) ClearTechnician() {
	b.TechnicianID = ""
	b.TechnicianName = ""
	b.TechnicianPhone = ""
}

// Clone returns a copy safe to mutate.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

// BookingStats aggregates bookings for the admin dashboard.
type BookingStats struct {
	Total                 int                   `json:"total"`
	ByStatus              map[BookingStatus]int `json:"by_status"`
	Revenue               float64               `json:"revenue"`
	PendingVerification   int                   `json:"pending_verification"`
	PendingTechnicians    int                   `json:"pending_technicians"`
	ApprovedTechnicians   int                   `json:"approved_technicians"`
	CompletedJobsRecorded int                   `json:"completed_jobs_recorded"`
}
