package models

import "coachbook/src/types"

// Service is a one-off coaching offering. BookedCount/MaxBookings is
// the capacity counter; MaxBookings nil means unlimited.
type Service struct {
	ID              uint     `gorm:"primarykey" json:"id"`
	CoachID         uint     `json:"coach_id,omitempty"`
	Title           string   `json:"title,omitempty"`
	Description     *string  `json:"description,omitempty"`
	Category        string   `json:"category,omitempty"`
	DurationMinutes uint     `json:"duration_minutes,omitempty"`
	Price           float64  `json:"price"`
	Currency        string   `gorm:"default:'usd'" json:"currency,omitempty"`
	Active          bool     `gorm:"default:true" json:"active"`
	MaxBookings     *uint    `json:"max_bookings,omitempty"`
	BookedCount     uint     `gorm:"default:0" json:"booked_count"`

	Coach Coach `gorm:"foreignKey:coach_id" json:"-"`

	types.Timestamps
}
