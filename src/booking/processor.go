package booking

import (
	"context"
	"math"

	"coachbook/src/config"
	"coachbook/src/types"
)

// Hold is an external escrow reservation correlated to a booking.
type Hold struct {
	ID           string
	ClientSecret string
}

// CheckoutSession is the hosted-checkout variant of a hold, used by
// class bookings.
type CheckoutSession struct {
	ID  string
	URL string
}

type HoldParams struct {
	Amount      float64
	Currency    string
	Destination string
	FeeAmount   float64
	Metadata    map[string]string
}

type CheckoutParams struct {
	HoldParams
	Description string
}

// PaymentProcessor is the boundary to the external payment provider.
// No money-movement logic lives behind it locally; only hold creation,
// cancellation and correlation metadata.
type PaymentProcessor interface {
	CreateHold(ctx context.Context, params *HoldParams) (*Hold, error)
	CreateCheckout(ctx context.Context, params *CheckoutParams) (*CheckoutSession, error)
	CancelHold(ctx context.Context, holdID string) error
	ExpireCheckout(ctx context.Context, sessionID string) error
}

// ComputeFee returns the platform fee for a gross amount: 5% for
// direct services, 10% for scheduled classes. Computed once at hold
// creation and persisted on the booking, never recomputed.
func ComputeFee(amount float64, kind types.BookingKind) float64 {
	rate := config.ServiceFeeRate
	if kind == types.KIND_CLASS {
		rate = config.ClassFeeRate
	}
	return math.Round(amount*rate*100) / 100
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
