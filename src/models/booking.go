package models

import (
	"coachbook/src/types"
	"time"

	"github.com/google/uuid"
)

// Booking is the authoritative lifecycle record for one reservation.
// Title, Category, DurationMinutes, TotalAmount and ApplicationFee are
// snapshots taken at creation; later edits to the offering never change
// a historical booking.
type Booking struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	Kind      types.BookingKind `json:"kind,omitempty"`
	ServiceID *uint             `json:"service_id,omitempty"`
	ClassID   *uint             `json:"class_id,omitempty"`
	CoachID   uint              `json:"coach_id,omitempty"`

	// StudentUID is nil for guest bookings.
	StudentUID   *string `json:"student_uid,omitempty"`
	StudentName  string  `json:"student_name,omitempty"`
	StudentEmail string  `json:"student_email,omitempty"`
	StudentPhone string  `json:"student_phone,omitempty"`

	Title           string    `json:"title,omitempty"`
	Category        string    `json:"category,omitempty"`
	DurationMinutes uint      `json:"duration_minutes,omitempty"`
	ScheduledAt     time.Time `json:"scheduled_at,omitempty"`

	Status        types.BookingStatus `gorm:"default:'pending_payment'" json:"status,omitempty"`
	PaymentStatus types.PaymentStatus `gorm:"default:'pending'" json:"payment_status,omitempty"`

	TotalAmount    float64 `json:"total_amount"`
	ApplicationFee float64 `json:"application_fee"`
	Currency       string  `gorm:"default:'usd'" json:"currency,omitempty"`

	PaymentIntentId   *string `json:"payment_intent_id,omitempty"`
	CheckoutSessionId *string `json:"checkout_session_id,omitempty"`

	Notes           *string          `json:"notes,omitempty"`
	CompletionNotes *string          `json:"completion_notes,omitempty"`
	Deliverables    types.JSONBArray `gorm:"type:jsonb" json:"deliverables,omitempty"`
	FailureReason   *string          `json:"failure_reason,omitempty"`
	RefundRequired  bool             `gorm:"default:false" json:"refund_required"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	Coach   Coach    `gorm:"foreignKey:coach_id" json:"-"`
	Service *Service `gorm:"foreignKey:service_id" json:"service,omitempty"`
	Class   *Class   `gorm:"foreignKey:class_id" json:"class,omitempty"`

	types.Timestamps
}

// OfferingID returns the capacity-bearing offering this booking
// consumes, regardless of kind.
func (b *Booking) OfferingID() uint {
	if b.Kind == types.KIND_CLASS && b.ClassID != nil {
		return *b.ClassID
	}
	if b.ServiceID != nil {
		return *b.ServiceID
	}
	return 0
}
