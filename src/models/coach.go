package models

import "coachbook/src/types"

// Coach mirrors the payee's connected payment account. The
// charges/payouts flags are kept in sync by account.updated webhook
// events and gate hold creation.
type Coach struct {
	ID              uint              `gorm:"primarykey" json:"id"`
	UID             string            `gorm:"uniqueIndex" json:"uid,omitempty"`
	Name            string            `json:"name,omitempty"`
	Email           string            `json:"email,omitempty"`
	StripeAccountID *string           `json:"stripe_account_id,omitempty"`
	ChargesEnabled  bool              `gorm:"default:false" json:"charges_enabled"`
	PayoutsEnabled  bool              `gorm:"default:false" json:"payouts_enabled"`
	DetailsSubmitted bool             `gorm:"default:false" json:"details_submitted"`
	Requirements    types.JSONBArray  `gorm:"type:jsonb" json:"requirements,omitempty"`

	Services []Service `gorm:"foreignKey:coach_id" json:"services,omitempty"`
	Classes  []Class   `gorm:"foreignKey:coach_id" json:"classes,omitempty"`

	types.Timestamps
}
