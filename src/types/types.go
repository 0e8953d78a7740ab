package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any
type JSONBArray []any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

func (a JSONBArray) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONBArray) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type BookingStatus string

const (
	BOOKING_PENDING_PAYMENT BookingStatus = "pending_payment"
	BOOKING_CONFIRMED       BookingStatus = "confirmed"
	BOOKING_PAYMENT_FAILED  BookingStatus = "payment_failed"
	BOOKING_COMPLETED       BookingStatus = "completed"
	BOOKING_CANCELLED       BookingStatus = "cancelled"
)

// Terminal reports whether no further transition may leave the status.
func (s BookingStatus) Terminal() bool {
	return s == BOOKING_COMPLETED || s == BOOKING_CANCELLED || s == BOOKING_PAYMENT_FAILED
}

type PaymentStatus string

const (
	PAYMENT_PENDING   PaymentStatus = "pending"
	PAYMENT_SUCCEEDED PaymentStatus = "succeeded"
	PAYMENT_FAILED    PaymentStatus = "failed"
	PAYMENT_NONE      PaymentStatus = "none"
)

type BookingKind string

const (
	KIND_SERVICE BookingKind = "service"
	KIND_CLASS   BookingKind = "class"
)

type ClassStatus string

const (
	CLASS_SCHEDULED ClassStatus = "scheduled"
	CLASS_CANCELLED ClassStatus = "cancelled"
	CLASS_COMPLETED ClassStatus = "completed"
)

type CreateBookingRequestBody struct {
	IDToken       *string `json:"idToken,omitempty"`
	ServiceID     uint    `json:"serviceId" binding:"required"`
	ScheduledDate string  `json:"scheduledDate" binding:"required,futuredate"`
	ScheduledTime string  `json:"scheduledTime" binding:"required"`
	Notes         *string `json:"notes,omitempty"`
	StudentName   string  `json:"studentName" binding:"required"`
	StudentEmail  string  `json:"studentEmail" binding:"required,email"`
	StudentPhone  string  `json:"studentPhone" binding:"required"`
}

type UpdateBookingRequestBody struct {
	IDToken         string   `json:"idToken" binding:"required"`
	BookingID       string   `json:"bookingId" binding:"required,uuid"`
	Status          string   `json:"status" binding:"required,oneof=completed cancelled"`
	CompletionNotes *string  `json:"completionNotes,omitempty"`
	Deliverables    []string `json:"deliverables,omitempty"`
}

type BookClassRequestBody struct {
	IDToken      *string `json:"idToken,omitempty"`
	StudentName  string  `json:"studentName" binding:"required"`
	StudentEmail string  `json:"studentEmail" binding:"required,email"`
	StudentPhone string  `json:"studentPhone" binding:"required"`
}

type BookingQueryFilters struct {
	CoachID    uint   `form:"coachId"`
	StudentUID string `form:"studentId"`
	Status     string `form:"status"`
	Limit      int    `form:"limit"`
}

type CancelClassBookingQuery struct {
	BookingID string  `form:"bookingId" binding:"required,uuid"`
	MeetingID *string `form:"meetingId"`
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}
