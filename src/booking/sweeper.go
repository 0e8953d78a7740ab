package booking

import (
	"context"
	"log"
	"time"

	"coachbook/src/types"
)

// SweepStalePending expires pending_payment bookings older than the
// window: abandoned checkouts become payment_failed and their external
// holds are cancelled. Capacity is reserved at confirmation, so there
// is nothing to release here. Returns the number of bookings swept.
func (m *Machine) SweepStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := m.now().Add(-olderThan)
	stale, err := m.Store.StalePendingBookings(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, b := range stale {
		applied, err := m.Store.UpdateBookingIf(ctx, b.ID, types.BOOKING_PENDING_PAYMENT, map[string]any{
			"status":         types.BOOKING_PAYMENT_FAILED,
			"payment_status": types.PAYMENT_FAILED,
			"failure_reason": "checkout abandoned",
		})
		if err != nil {
			log.Printf("[sweep] error expiring booking %s: %s\n", b.ID, err.Error())
			continue
		}
		if !applied {
			continue
		}
		if b.PaymentIntentId != nil {
			if cErr := m.Processor.CancelHold(ctx, *b.PaymentIntentId); cErr != nil {
				log.Printf("[sweep] error canceling hold %s: %s\n", *b.PaymentIntentId, cErr.Error())
			}
		}
		if b.CheckoutSessionId != nil {
			if cErr := m.Processor.ExpireCheckout(ctx, *b.CheckoutSessionId); cErr != nil {
				log.Printf("[sweep] error expiring checkout %s: %s\n", *b.CheckoutSessionId, cErr.Error())
			}
		}
		swept++
	}
	if swept > 0 {
		log.Printf("[sweep] expired %d stale pending bookings\n", swept)
	}
	return swept, nil
}
