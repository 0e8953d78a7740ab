package booking

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v82"
)

// EventCache is the dedup store for processed event ids. Satisfied by
// *redis.Client.
type EventCache interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Reconciler consumes verified processor events and drives the state
// machine. Signature verification happens at the HTTP boundary; by the
// time an event reaches HandleEvent it is authentic.
//
// Idempotency is owned by the state-conditioned transitions in the
// machine; the optional cache only short-circuits exact redeliveries.
type Reconciler struct {
	Machine *Machine
	Cache   EventCache
}

func (r *Reconciler) HandleEvent(ctx context.Context, event *stripe.Event) error {
	dedupKey := "stripe:event:" + event.ID
	if r.Cache != nil {
		ok, err := r.Cache.SetNX(ctx, dedupKey, 1, 24*time.Hour).Result()
		if err == nil && !ok {
			log.Printf("[StripeEvent] %s already processed, skipping\n", event.ID)
			return nil
		}
	}
	err := r.handle(ctx, event)
	if err != nil && r.Cache != nil {
		// A failed attempt answers 500 and the processor redelivers;
		// the dedup key must not survive to swallow that redelivery.
		if _, dErr := r.Cache.Del(ctx, dedupKey).Result(); dErr != nil {
			log.Printf("[StripeEvent] error clearing dedup key for %s: %s\n", event.ID, dErr.Error())
		}
	}
	return err
}

func (r *Reconciler) handle(ctx context.Context, event *stripe.Event) error {
	log.Printf("[StripeEvent] %s\n", event.Type)
	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
			return nil
		}
		id, ok := correlate(pi.Metadata)
		if !ok {
			log.Printf("[Stripe] no booking correlation on PaymentIntent %s\n", pi.ID)
			return nil
		}
		return r.ack(r.Machine.Confirm(ctx, id, &pi.ID))
	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
			return nil
		}
		id, ok := correlate(pi.Metadata)
		if !ok {
			log.Printf("[Stripe] no booking correlation on PaymentIntent %s\n", pi.ID)
			return nil
		}
		reason := "payment failed"
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			reason = pi.LastPaymentError.Msg
		}
		return r.ack(r.Machine.Fail(ctx, id, reason))
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			log.Printf("[Stripe] Error parsing CheckoutSession: %s\n", err.Error())
			return nil
		}
		id, ok := correlate(cs.Metadata)
		if !ok {
			log.Printf("[Stripe] no booking correlation on CheckoutSession %s\n", cs.ID)
			return nil
		}
		var piID *string
		if cs.PaymentIntent != nil && cs.PaymentIntent.ID != "" {
			piID = &cs.PaymentIntent.ID
		}
		return r.ack(r.Machine.Confirm(ctx, id, piID))
	case "account.updated":
		var acc stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &acc); err != nil {
			log.Printf("[Stripe] Error parsing Account: %s\n", err.Error())
			return nil
		}
		return r.applyAccountUpdate(ctx, &acc)
	case "transfer.created":
		var tr stripe.Transfer
		if err := json.Unmarshal(event.Data.Raw, &tr); err != nil {
			log.Printf("[Stripe] Error parsing Transfer: %s\n", err.Error())
			return nil
		}
		log.Printf("[Transfer] %s created for %d %s\n", tr.ID, tr.Amount, tr.Currency)
		return nil
	default:
		// Unknown events are acknowledged so the processor stops
		// redelivering them.
		log.Printf("[StripeEvent] ignoring %s\n", event.Type)
		return nil
	}
}

// applyAccountUpdate mirrors the connected account's activation state
// onto the coach record, independent of any booking.
func (r *Reconciler) applyAccountUpdate(ctx context.Context, acc *stripe.Account) error {
	coach, err := r.Machine.Store.GetCoachByAccountID(ctx, acc.ID)
	if err != nil {
		var nfe *NotFoundError
		if errors.As(err, &nfe) {
			log.Printf("[Stripe] no coach for account %s\n", acc.ID)
			return nil
		}
		return err
	}
	updates := map[string]any{
		"charges_enabled":   acc.ChargesEnabled,
		"payouts_enabled":   acc.PayoutsEnabled,
		"details_submitted": acc.DetailsSubmitted,
	}
	if acc.Requirements != nil {
		due := make([]any, 0, len(acc.Requirements.CurrentlyDue))
		for _, req := range acc.Requirements.CurrentlyDue {
			due = append(due, req)
		}
		updates["requirements"] = due
	}
	return r.Machine.Store.UpdateCoach(ctx, coach.ID, updates)
}

// ack swallows correlation misses: a missing local record will not
// self-heal, so retries are pointless and the event is acknowledged.
// Everything else propagates so the processor redelivers.
func (r *Reconciler) ack(err error) error {
	if err == nil {
		return nil
	}
	var nfe *NotFoundError
	if errors.As(err, &nfe) {
		log.Printf("[reconcile] %s\n", err.Error())
		return nil
	}
	return err
}

func correlate(metadata map[string]string) (uuid.UUID, bool) {
	raw, ok := metadata["bookingId"]
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
