package booking

import (
	"context"
	"fmt"
	"log"
	"time"

	"coachbook/src/config"
	"coachbook/src/models"
	"coachbook/src/types"

	"github.com/google/uuid"
)

type Event string

const (
	EventCreate        Event = "create"
	EventHoldSucceeded Event = "hold_succeeded"
	EventHoldFailed    Event = "hold_failed"
	EventComplete      Event = "complete"
	EventCancel        Event = "cancel"
)

var transitions = map[types.BookingStatus]map[Event]types.BookingStatus{
	types.BOOKING_PENDING_PAYMENT: {
		EventHoldSucceeded: types.BOOKING_CONFIRMED,
		EventHoldFailed:    types.BOOKING_PAYMENT_FAILED,
		EventCancel:        types.BOOKING_CANCELLED,
	},
	types.BOOKING_CONFIRMED: {
		EventComplete: types.BOOKING_COMPLETED,
		EventCancel:   types.BOOKING_CANCELLED,
	},
}

// NextStatus resolves the transition table. Anything not in the table,
// including every event against a terminal status, is an
// InvalidTransitionError.
func NextStatus(from types.BookingStatus, ev Event) (types.BookingStatus, error) {
	if next, ok := transitions[from][ev]; ok {
		return next, nil
	}
	return "", &InvalidTransitionError{From: from, Event: ev}
}

// Machine drives the booking lifecycle. All collaborators are injected
// so tests can run against doubles; the HTTP layer wires the real
// store, ledger and Stripe processor.
type Machine struct {
	Store     Store
	Ledger    Ledger
	Processor PaymentProcessor
	Notifier  Notifier
	Now       func() time.Time
}

func (m *Machine) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

type CreateBookingResult struct {
	BookingID       uuid.UUID `json:"bookingId"`
	PaymentIntentID *string   `json:"paymentIntentId,omitempty"`
	ClientSecret    *string   `json:"clientSecret,omitempty"`
	TotalAmount     float64   `json:"totalAmount"`
	ApplicationFee  float64   `json:"applicationFee"`
	Status          types.BookingStatus `json:"status"`
}

type BookClassResult struct {
	BookingID         uuid.UUID `json:"bookingId"`
	CheckoutSessionID *string   `json:"sessionId,omitempty"`
	CheckoutURL       *string   `json:"checkoutUrl,omitempty"`
	TotalAmount       float64   `json:"totalAmount"`
	ApplicationFee    float64   `json:"applicationFee"`
	Status            types.BookingStatus `json:"status"`
}

// CreateServiceBooking runs the create transition for a direct service
// offering. Paid bookings start in pending_payment with a hold created
// first; capacity is consumed at confirmation, not here. Zero-cost
// bookings skip payment entirely and reserve immediately.
func (m *Machine) CreateServiceBooking(ctx context.Context, body *types.CreateBookingRequestBody, studentUID *string) (*CreateBookingResult, error) {
	scheduledAt, err := parseSchedule(body.ScheduledDate, body.ScheduledTime)
	if err != nil {
		return nil, err
	}
	svc, err := m.Store.GetService(ctx, body.ServiceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, &ValidationError{Field: "serviceId", Reason: "service is not active"}
	}
	if svc.Price < 0 {
		return nil, &ValidationError{Field: "amount", Reason: "must not be negative"}
	}
	coach, err := m.Store.GetCoach(ctx, svc.CoachID)
	if err != nil {
		return nil, err
	}
	avail, err := m.Ledger.CheckAvailability(ctx, types.KIND_SERVICE, svc.ID)
	if err != nil {
		return nil, err
	}
	if !avail.Available {
		return nil, &AtCapacityError{Offering: "service", ID: svc.ID}
	}

	fee := ComputeFee(svc.Price, types.KIND_SERVICE)
	serviceID := svc.ID
	b := &models.Booking{
		ID:              uuid.New(),
		Kind:            types.KIND_SERVICE,
		ServiceID:       &serviceID,
		CoachID:         svc.CoachID,
		StudentUID:      studentUID,
		StudentName:     body.StudentName,
		StudentEmail:    body.StudentEmail,
		StudentPhone:    body.StudentPhone,
		Title:           svc.Title,
		Category:        svc.Category,
		DurationMinutes: svc.DurationMinutes,
		ScheduledAt:     scheduledAt,
		TotalAmount:     svc.Price,
		ApplicationFee:  fee,
		Currency:        svc.Currency,
		Notes:           body.Notes,
	}

	if svc.Price == 0 {
		if err := m.createFreeBooking(ctx, b); err != nil {
			return nil, err
		}
		return &CreateBookingResult{
			BookingID:   b.ID,
			TotalAmount: 0,
			Status:      types.BOOKING_CONFIRMED,
		}, nil
	}

	if coach.StripeAccountID == nil || !coach.ChargesEnabled {
		return nil, &PayeeNotReadyError{CoachID: coach.ID}
	}
	hold, err := m.Processor.CreateHold(ctx, &HoldParams{
		Amount:      svc.Price,
		Currency:    svc.Currency,
		Destination: *coach.StripeAccountID,
		FeeAmount:   fee,
		Metadata:    bookingMetadata(b, studentUID),
	})
	if err != nil {
		return nil, err
	}
	b.Status = types.BOOKING_PENDING_PAYMENT
	b.PaymentStatus = types.PAYMENT_PENDING
	b.PaymentIntentId = &hold.ID
	if err := m.Store.CreateBooking(ctx, b); err != nil {
		// No orphaned holds: undo the external reservation before
		// surfacing the failure.
		if cErr := m.Processor.CancelHold(ctx, hold.ID); cErr != nil {
			log.Printf("[reconcile] failed to cancel orphaned hold %s: %s\n", hold.ID, cErr.Error())
		}
		return nil, err
	}
	return &CreateBookingResult{
		BookingID:       b.ID,
		PaymentIntentID: &hold.ID,
		ClientSecret:    &hold.ClientSecret,
		TotalAmount:     svc.Price,
		ApplicationFee:  fee,
		Status:          types.BOOKING_PENDING_PAYMENT,
	}, nil
}

// BookClass runs the create transition for a scheduled class via a
// hosted checkout session.
func (m *Machine) BookClass(ctx context.Context, classID uint, body *types.BookClassRequestBody, studentUID *string) (*BookClassResult, error) {
	cls, err := m.Store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if cls.Status != types.CLASS_SCHEDULED {
		return nil, &ValidationError{Field: "classId", Reason: "class is not open for booking"}
	}
	if m.now().After(cls.Schedule) {
		return nil, &ValidationError{Field: "classId", Reason: "class has already started"}
	}
	coach, err := m.Store.GetCoach(ctx, cls.CoachID)
	if err != nil {
		return nil, err
	}
	avail, err := m.Ledger.CheckAvailability(ctx, types.KIND_CLASS, cls.ID)
	if err != nil {
		return nil, err
	}
	if !avail.Available {
		return nil, &AtCapacityError{Offering: "class", ID: cls.ID}
	}

	fee := ComputeFee(cls.Price, types.KIND_CLASS)
	clsID := cls.ID
	b := &models.Booking{
		ID:              uuid.New(),
		Kind:            types.KIND_CLASS,
		ClassID:         &clsID,
		CoachID:         cls.CoachID,
		StudentUID:      studentUID,
		StudentName:     body.StudentName,
		StudentEmail:    body.StudentEmail,
		StudentPhone:    body.StudentPhone,
		Title:           cls.Title,
		Category:        cls.Category,
		DurationMinutes: cls.DurationMinutes,
		ScheduledAt:     cls.Schedule,
		TotalAmount:     cls.Price,
		ApplicationFee:  fee,
		Currency:        cls.Currency,
	}

	if cls.Price == 0 {
		if err := m.createFreeBooking(ctx, b); err != nil {
			return nil, err
		}
		return &BookClassResult{
			BookingID:   b.ID,
			TotalAmount: 0,
			Status:      types.BOOKING_CONFIRMED,
		}, nil
	}

	if coach.StripeAccountID == nil || !coach.ChargesEnabled {
		return nil, &PayeeNotReadyError{CoachID: coach.ID}
	}
	checkout, err := m.Processor.CreateCheckout(ctx, &CheckoutParams{
		HoldParams: HoldParams{
			Amount:      cls.Price,
			Currency:    cls.Currency,
			Destination: *coach.StripeAccountID,
			FeeAmount:   fee,
			Metadata:    bookingMetadata(b, studentUID),
		},
		Description: cls.Title,
	})
	if err != nil {
		return nil, err
	}
	b.Status = types.BOOKING_PENDING_PAYMENT
	b.PaymentStatus = types.PAYMENT_PENDING
	b.CheckoutSessionId = &checkout.ID
	if err := m.Store.CreateBooking(ctx, b); err != nil {
		if cErr := m.Processor.ExpireCheckout(ctx, checkout.ID); cErr != nil {
			log.Printf("[reconcile] failed to expire orphaned checkout %s: %s\n", checkout.ID, cErr.Error())
		}
		return nil, err
	}
	return &BookClassResult{
		BookingID:         b.ID,
		CheckoutSessionID: &checkout.ID,
		CheckoutURL:       &checkout.URL,
		TotalAmount:       cls.Price,
		ApplicationFee:    fee,
		Status:            types.BOOKING_PENDING_PAYMENT,
	}, nil
}

// createFreeBooking is the zero-cost path: born confirmed, capacity
// reserved up front since no payment confirmation will follow. The
// reservation is taken first and rolled back if the record write
// fails.
func (m *Machine) createFreeBooking(ctx context.Context, b *models.Booking) error {
	b.Status = types.BOOKING_CONFIRMED
	b.PaymentStatus = types.PAYMENT_NONE
	b.TotalAmount = 0
	b.ApplicationFee = 0
	id := b.OfferingID()
	if err := m.Ledger.Reserve(ctx, b.Kind, id, 1); err != nil {
		return err
	}
	if err := m.Store.CreateBooking(ctx, b); err != nil {
		if rErr := m.Ledger.Release(ctx, b.Kind, id, 1); rErr != nil {
			log.Printf("[reconcile] failed to release %s [%d] after create failure: %s\n", b.Kind, id, rErr.Error())
		}
		return err
	}
	m.notifyConfirmed(b)
	return nil
}

// Confirm applies a hold-succeeded event. The transition is a
// conditional update keyed on pending_payment, which makes duplicate
// deliveries no-ops. Capacity is reserved here; a lost capacity race
// flips the booking to cancelled with refund_required set.
func (m *Machine) Confirm(ctx context.Context, id uuid.UUID, paymentIntentID *string) error {
	updates := map[string]any{
		"status":         types.BOOKING_CONFIRMED,
		"payment_status": types.PAYMENT_SUCCEEDED,
	}
	if paymentIntentID != nil {
		updates["payment_intent_id"] = *paymentIntentID
	}
	applied, err := m.Store.UpdateBookingIf(ctx, id, types.BOOKING_PENDING_PAYMENT, updates)
	if err != nil {
		return err
	}
	if !applied {
		// Already confirmed, cancelled or failed; duplicate or
		// out-of-order event.
		log.Printf("[booking] confirm on %s was a no-op\n", id)
		return nil
	}
	b, err := m.Store.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if err := m.Ledger.Reserve(ctx, b.Kind, b.OfferingID(), 1); err != nil {
		if _, ok := err.(*AtCapacityError); !ok {
			return err
		}
		// Paid but oversold: the counter invariant wins. Surface the
		// seatless booking for the external refund process.
		now := m.now()
		if _, uErr := m.Store.UpdateBookingIf(ctx, id, types.BOOKING_CONFIRMED, map[string]any{
			"status":          types.BOOKING_CANCELLED,
			"refund_required": true,
			"cancelled_at":    now,
		}); uErr != nil {
			return uErr
		}
		log.Printf("[reconcile] booking %s confirmed at capacity; cancelled with refund required\n", id)
		return nil
	}
	m.notifyConfirmed(b)
	return nil
}

// Fail applies a hold-failed event. No capacity was held.
func (m *Machine) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	updates := map[string]any{
		"status":         types.BOOKING_PAYMENT_FAILED,
		"payment_status": types.PAYMENT_FAILED,
	}
	if reason != "" {
		updates["failure_reason"] = reason
	}
	applied, err := m.Store.UpdateBookingIf(ctx, id, types.BOOKING_PENDING_PAYMENT, updates)
	if err != nil {
		return err
	}
	if !applied {
		log.Printf("[booking] fail on %s was a no-op\n", id)
	}
	return nil
}

// Complete marks a confirmed booking as delivered. Only the payee may
// do this.
func (m *Machine) Complete(ctx context.Context, id uuid.UUID, callerUID string, notes *string, deliverables []string) error {
	b, err := m.Store.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	coach, err := m.Store.GetCoach(ctx, b.CoachID)
	if err != nil {
		return err
	}
	if coach.UID != callerUID {
		return &AuthorizationError{Action: "complete this booking"}
	}
	if _, err := NextStatus(b.Status, EventComplete); err != nil {
		return err
	}
	updates := map[string]any{
		"status":       types.BOOKING_COMPLETED,
		"completed_at": m.now(),
	}
	if notes != nil {
		updates["completion_notes"] = *notes
	}
	if len(deliverables) > 0 {
		arr := make(types.JSONBArray, 0, len(deliverables))
		for _, d := range deliverables {
			arr = append(arr, d)
		}
		updates["deliverables"] = arr
	}
	applied, err := m.Store.UpdateBookingIf(ctx, id, b.Status, updates)
	if err != nil {
		return err
	}
	if !applied {
		return &InvalidTransitionError{From: b.Status, Event: EventComplete}
	}
	return nil
}

// Cancel moves a pending or confirmed booking to cancelled. Class
// bookings honor the 24h cutoff. Capacity is released only when the
// booking had reached confirmed; pending bookings never held a seat.
func (m *Machine) Cancel(ctx context.Context, id uuid.UUID, callerUID *string) error {
	b, err := m.Store.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if callerUID != nil {
		coach, err := m.Store.GetCoach(ctx, b.CoachID)
		if err != nil {
			return err
		}
		isPayer := b.StudentUID != nil && *b.StudentUID == *callerUID
		if !isPayer && coach.UID != *callerUID {
			return &AuthorizationError{Action: "cancel this booking"}
		}
	}
	if b.Kind == types.KIND_CLASS {
		cutoff := b.ScheduledAt.Add(-config.ClassCancellationCutoffHours * time.Hour)
		if m.now().After(cutoff) {
			return &PolicyViolationError{
				Reason: fmt.Sprintf("class bookings cannot be cancelled within %d hours of the scheduled start", config.ClassCancellationCutoffHours),
			}
		}
	}
	from := b.Status
	if _, err := NextStatus(from, EventCancel); err != nil {
		return err
	}
	updates := map[string]any{
		"status":       types.BOOKING_CANCELLED,
		"cancelled_at": m.now(),
	}
	if b.PaymentStatus == types.PAYMENT_SUCCEEDED {
		updates["refund_required"] = true
	}
	applied, err := m.Store.UpdateBookingIf(ctx, id, from, updates)
	if err != nil {
		return err
	}
	if !applied {
		return &InvalidTransitionError{From: from, Event: EventCancel}
	}
	if from == types.BOOKING_CONFIRMED {
		if rErr := m.Ledger.Release(ctx, b.Kind, b.OfferingID(), 1); rErr != nil {
			log.Printf("[reconcile] failed to release %s [%d] on cancel: %s\n", b.Kind, b.OfferingID(), rErr.Error())
		}
	}
	if from == types.BOOKING_PENDING_PAYMENT && b.PaymentIntentId != nil {
		if cErr := m.Processor.CancelHold(ctx, *b.PaymentIntentId); cErr != nil {
			log.Printf("Error canceling hold for booking %s: %s\n", id, cErr.Error())
		}
	}
	return nil
}

func (m *Machine) notifyConfirmed(b *models.Booking) {
	if m.Notifier == nil {
		return
	}
	go m.Notifier.BookingConfirmed(b)
}

func bookingMetadata(b *models.Booking, studentUID *string) map[string]string {
	md := map[string]string{
		"bookingId":   b.ID.String(),
		"coachId":     fmt.Sprint(b.CoachID),
		"bookingType": string(b.Kind),
	}
	if b.ServiceID != nil {
		md["serviceId"] = fmt.Sprint(*b.ServiceID)
	}
	if b.ClassID != nil {
		md["classId"] = fmt.Sprint(*b.ClassID)
	}
	if studentUID != nil {
		md["studentUid"] = *studentUID
	}
	return md
}

func parseSchedule(date string, clock string) (time.Time, error) {
	if _, err := time.Parse(config.DATE_PARSE_FORMAT, date); err != nil {
		return time.Time{}, &ValidationError{Field: "scheduledDate", Reason: "expected YYYY-MM-DD"}
	}
	t, err := time.Parse(config.DATE_PARSE_FORMAT+" "+config.TIME_PARSE_FORMAT, date+" "+clock)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "scheduledTime", Reason: "expected HH:MM"}
	}
	return t, nil
}
