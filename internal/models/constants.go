package models

const (
	StatusPendingPayment BookingStatus = "pending_payment"
	StatusConfirmed      BookingStatus = "confirmed"
	StatusAssigned       BookingStatus = "assigned"
	StatusInProgress     BookingStatus = "in_progress"
	StatusCompleted      BookingStatus = "completed"
	StatusCancelled      BookingStatus = "cancelled"
)

const (
	PaymentUnpaid              PaymentStatus = "unpaid"
	PaymentPendingVerification PaymentStatus = "pending_verification"
	PaymentPaid                PaymentStatus = "paid"
)

const (
	PaymentMethodCash     = "cash"
	PaymentMethodPayLater = "pay_later"
	PaymentMethodCard     = "card"
	PaymentMethodUPI      = "upi"
)

type Role string

const (
	RoleCustomer   Role = "customer"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

type TechnicianStatus string

const (
	TechnicianPending  TechnicianStatus = "pending"
	TechnicianApproved TechnicianStatus = "approved"
	TechnicianRejected TechnicianStatus = "rejected"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

const (
	// DateLayout is the wire format of Booking.ScheduledDate.
	DateLayout = "2006-01-02"
	// TimeLayout is the wire format of Booking.ScheduledTime.
	TimeLayout = "15:04"

	// DefaultIdentityCacheTTL bounds how long a verified token is trusted without
	// asking the identity provider again, in seconds.
	DefaultIdentityCacheTTL = 5 * 60

	// ClaimRateLimit caps claim attempts per technician within ClaimRateWindow.
	ClaimRateLimit  = 30
	ClaimRateWindow = 60 // seconds

	// SyncQueueSize is the in-memory fallback queue length of the sheets worker.
	SyncQueueSize = 128
)

// AllStatuses lists booking statuses in lifecycle order.
var AllStatuses = []BookingStatus{
	StatusPendingPayment,
	StatusConfirmed,
	StatusAssigned,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
}
