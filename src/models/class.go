package models

import (
	"coachbook/src/types"
	"time"
)

// Class is a scheduled group offering with per-session capacity.
type Class struct {
	ID               uint              `gorm:"primarykey" json:"id"`
	CoachID          uint              `json:"coach_id,omitempty"`
	Title            string            `json:"title,omitempty"`
	Description      *string           `json:"description,omitempty"`
	Category         string            `json:"category,omitempty"`
	Schedule         time.Time         `json:"schedule,omitempty"`
	DurationMinutes  uint              `json:"duration_minutes,omitempty"`
	Price            float64           `json:"price"`
	Currency         string            `gorm:"default:'usd'" json:"currency,omitempty"`
	Status           types.ClassStatus `gorm:"default:'scheduled'" json:"status,omitempty"`
	MaxParticipants  *uint             `json:"max_participants,omitempty"`
	ParticipantCount uint              `gorm:"default:0" json:"participant_count"`
	MeetingID        *string           `json:"meeting_id,omitempty"`

	Coach Coach `gorm:"foreignKey:coach_id" json:"-"`

	types.Timestamps
}
