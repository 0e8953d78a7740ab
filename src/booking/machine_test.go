package booking

import (
	"context"
	"fmt"
	"testing"
	"time"

	"coachbook/src/models"
	"coachbook/src/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type fakeStore struct {
	bookings  map[uuid.UUID]*models.Booking
	services  map[uint]*models.Service
	classes   map[uint]*models.Class
	coaches   map[uint]*models.Coach
	createErr error
	updateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bookings: map[uuid.UUID]*models.Booking{},
		services: map[uint]*models.Service{},
		classes:  map[uint]*models.Class{},
		coaches:  map[uint]*models.Coach{},
	}
}

func (s *fakeStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	if s.createErr != nil {
		return s.createErr
	}
	cp := *b
	s.bookings[b.ID] = &cp
	return nil
}

func (s *fakeStore) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return nil, &NotFoundError{Resource: "booking", ID: id.String()}
	}
	cp := *b
	return &cp, nil
}

func (s *fakeStore) ListBookings(ctx context.Context, f *types.BookingQueryFilters) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range s.bookings {
		if f.Status != "" && string(b.Status) != f.Status {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (s *fakeStore) UpdateBookingIf(ctx context.Context, id uuid.UUID, expect types.BookingStatus, updates map[string]any) (bool, error) {
	if s.updateErr != nil {
		return false, s.updateErr
	}
	b, ok := s.bookings[id]
	if !ok || b.Status != expect {
		return false, nil
	}
	for k, v := range updates {
		switch k {
		case "status":
			b.Status = v.(types.BookingStatus)
		case "payment_status":
			b.PaymentStatus = v.(types.PaymentStatus)
		case "payment_intent_id":
			pi := v.(string)
			b.PaymentIntentId = &pi
		case "failure_reason":
			fr := v.(string)
			b.FailureReason = &fr
		case "refund_required":
			b.RefundRequired = v.(bool)
		case "completion_notes":
			cn := v.(string)
			b.CompletionNotes = &cn
		case "deliverables":
			b.Deliverables = v.(types.JSONBArray)
		case "completed_at":
			t := v.(time.Time)
			b.CompletedAt = &t
		case "cancelled_at":
			t := v.(time.Time)
			b.CancelledAt = &t
		}
	}
	return true, nil
}

func (s *fakeStore) GetService(ctx context.Context, id uint) (*models.Service, error) {
	svc, ok := s.services[id]
	if !ok {
		return nil, &NotFoundError{Resource: "service", ID: fmt.Sprint(id)}
	}
	return svc, nil
}

func (s *fakeStore) GetClass(ctx context.Context, id uint) (*models.Class, error) {
	cls, ok := s.classes[id]
	if !ok {
		return nil, &NotFoundError{Resource: "class", ID: fmt.Sprint(id)}
	}
	return cls, nil
}

func (s *fakeStore) GetCoach(ctx context.Context, id uint) (*models.Coach, error) {
	coach, ok := s.coaches[id]
	if !ok {
		return nil, &NotFoundError{Resource: "coach", ID: fmt.Sprint(id)}
	}
	return coach, nil
}

func (s *fakeStore) GetCoachByAccountID(ctx context.Context, accountID string) (*models.Coach, error) {
	for _, coach := range s.coaches {
		if coach.StripeAccountID != nil && *coach.StripeAccountID == accountID {
			return coach, nil
		}
	}
	return nil, &NotFoundError{Resource: "coach", ID: accountID}
}

func (s *fakeStore) UpdateCoach(ctx context.Context, id uint, updates map[string]any) error {
	coach, ok := s.coaches[id]
	if !ok {
		return &NotFoundError{Resource: "coach", ID: fmt.Sprint(id)}
	}
	if v, ok := updates["charges_enabled"]; ok {
		coach.ChargesEnabled = v.(bool)
	}
	if v, ok := updates["payouts_enabled"]; ok {
		coach.PayoutsEnabled = v.(bool)
	}
	if v, ok := updates["details_submitted"]; ok {
		coach.DetailsSubmitted = v.(bool)
	}
	return nil
}

func (s *fakeStore) StalePendingBookings(ctx context.Context, before time.Time) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range s.bookings {
		if b.Status == types.BOOKING_PENDING_PAYMENT && b.CreatedAt.Before(before) {
			out = append(out, *b)
		}
	}
	return out, nil
}

type fakeLedger struct {
	consumed map[string]uint
	max      map[string]*uint
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{consumed: map[string]uint{}, max: map[string]*uint{}}
}

func (l *fakeLedger) key(kind types.BookingKind, id uint) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

func (l *fakeLedger) setLimit(kind types.BookingKind, id uint, max uint) {
	l.max[l.key(kind, id)] = &max
}

func (l *fakeLedger) CheckAvailability(ctx context.Context, kind types.BookingKind, id uint) (*Availability, error) {
	k := l.key(kind, id)
	max := l.max[k]
	if max == nil {
		return &Availability{Available: true}, nil
	}
	var remaining uint
	if *max > l.consumed[k] {
		remaining = *max - l.consumed[k]
	}
	return &Availability{Available: remaining > 0, Remaining: &remaining}, nil
}

func (l *fakeLedger) Reserve(ctx context.Context, kind types.BookingKind, id uint, delta int) error {
	k := l.key(kind, id)
	if max := l.max[k]; max != nil && l.consumed[k]+uint(delta) > *max {
		return &AtCapacityError{Offering: string(kind), ID: id}
	}
	l.consumed[k] += uint(delta)
	return nil
}

func (l *fakeLedger) Release(ctx context.Context, kind types.BookingKind, id uint, delta int) error {
	k := l.key(kind, id)
	if l.consumed[k] < uint(delta) {
		l.consumed[k] = 0
		return nil
	}
	l.consumed[k] -= uint(delta)
	return nil
}

type fakeProcessor struct {
	holds            []*HoldParams
	checkouts        []*CheckoutParams
	cancelledHolds   []string
	expiredCheckouts []string
	holdErr          error
	nextHoldID       int
}

func (p *fakeProcessor) CreateHold(ctx context.Context, params *HoldParams) (*Hold, error) {
	if p.holdErr != nil {
		return nil, p.holdErr
	}
	p.holds = append(p.holds, params)
	p.nextHoldID++
	id := fmt.Sprintf("pi_test_%d", p.nextHoldID)
	return &Hold{ID: id, ClientSecret: id + "_secret"}, nil
}

func (p *fakeProcessor) CreateCheckout(ctx context.Context, params *CheckoutParams) (*CheckoutSession, error) {
	p.checkouts = append(p.checkouts, params)
	p.nextHoldID++
	id := fmt.Sprintf("cs_test_%d", p.nextHoldID)
	return &CheckoutSession{ID: id, URL: "https://checkout.example.com/" + id}, nil
}

func (p *fakeProcessor) CancelHold(ctx context.Context, holdID string) error {
	p.cancelledHolds = append(p.cancelledHolds, holdID)
	return nil
}

func (p *fakeProcessor) ExpireCheckout(ctx context.Context, sessionID string) error {
	p.expiredCheckouts = append(p.expiredCheckouts, sessionID)
	return nil
}

type MachineSuite struct {
	suite.Suite
	store     *fakeStore
	ledger    *fakeLedger
	processor *fakeProcessor
	machine   *Machine
	now       time.Time
}

func (s *MachineSuite) SetupTest() {
	s.store = newFakeStore()
	s.ledger = newFakeLedger()
	s.processor = &fakeProcessor{}
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.machine = &Machine{
		Store:     s.store,
		Ledger:    s.ledger,
		Processor: s.processor,
		Now:       func() time.Time { return s.now },
	}
}

func (s *MachineSuite) seedService(price float64) *models.Service {
	acct := "acct_test"
	s.store.coaches[1] = &models.Coach{ID: 1, UID: "coach-uid", StripeAccountID: &acct, ChargesEnabled: true}
	svc := &models.Service{
		ID:              10,
		CoachID:         1,
		Title:           "1:1 Session",
		Category:        "tennis",
		DurationMinutes: 60,
		Price:           price,
		Currency:        "usd",
		Active:          true,
	}
	s.store.services[10] = svc
	return svc
}

func (s *MachineSuite) seedClass(price float64, schedule time.Time) *models.Class {
	acct := "acct_test"
	s.store.coaches[1] = &models.Coach{ID: 1, UID: "coach-uid", StripeAccountID: &acct, ChargesEnabled: true}
	cls := &models.Class{
		ID:       20,
		CoachID:  1,
		Title:    "Group Clinic",
		Category: "tennis",
		Schedule: schedule,
		Price:    price,
		Currency: "usd",
		Status:   types.CLASS_SCHEDULED,
	}
	s.store.classes[20] = cls
	return cls
}

func createBody() *types.CreateBookingRequestBody {
	return &types.CreateBookingRequestBody{
		ServiceID:     10,
		ScheduledDate: "2026-04-01",
		ScheduledTime: "10:00",
		StudentName:   "Alex Doe",
		StudentEmail:  "alex@example.com",
		StudentPhone:  "555-0100",
	}
}

func (s *MachineSuite) TestCreateServiceBookingComputesFeeAndHoldsFunds() {
	s.seedService(100)

	res, err := s.machine.CreateServiceBooking(context.Background(), createBody(), nil)
	s.Require().NoError(err)

	s.Equal(types.BOOKING_PENDING_PAYMENT, res.Status)
	s.Equal(100.0, res.TotalAmount)
	s.Equal(5.0, res.ApplicationFee)
	s.Require().NotNil(res.PaymentIntentID)
	s.Require().NotNil(res.ClientSecret)

	s.Require().Len(s.processor.holds, 1)
	hold := s.processor.holds[0]
	s.Equal(100.0, hold.Amount)
	s.Equal(5.0, hold.FeeAmount)
	s.Equal("acct_test", hold.Destination)
	s.Equal(res.BookingID.String(), hold.Metadata["bookingId"])

	b := s.store.bookings[res.BookingID]
	s.Require().NotNil(b)
	s.Equal(types.BOOKING_PENDING_PAYMENT, b.Status)
	s.Equal(types.PAYMENT_PENDING, b.PaymentStatus)
	s.Equal(5.0, b.ApplicationFee)
	// Capacity is consumed at confirmation, not here.
	s.Equal(uint(0), s.ledger.consumed["service:10"])
}

func (s *MachineSuite) TestCreateBookingRejectedAtCapacity() {
	s.seedService(100)
	s.ledger.setLimit(types.KIND_SERVICE, 10, 1)
	s.ledger.consumed["service:10"] = 1

	_, err := s.machine.CreateServiceBooking(context.Background(), createBody(), nil)

	var ace *AtCapacityError
	s.Require().ErrorAs(err, &ace)
	s.Empty(s.processor.holds, "no hold should be created for a full offering")
	s.Empty(s.store.bookings, "no record should be written for a full offering")
}

func (s *MachineSuite) TestCreateBookingRejectedWhenPayeeNotReady() {
	svc := s.seedService(100)
	s.store.coaches[svc.CoachID].ChargesEnabled = false

	_, err := s.machine.CreateServiceBooking(context.Background(), createBody(), nil)

	var pnr *PayeeNotReadyError
	s.Require().ErrorAs(err, &pnr)
	s.Empty(s.processor.holds)
}

func (s *MachineSuite) TestCreateBookingCancelsHoldWhenPersistFails() {
	s.seedService(100)
	s.store.createErr = fmt.Errorf("connection reset")

	_, err := s.machine.CreateServiceBooking(context.Background(), createBody(), nil)

	s.Require().Error(err)
	s.Require().Len(s.processor.holds, 1)
	s.Equal([]string{"pi_test_1"}, s.processor.cancelledHolds)
}

func (s *MachineSuite) TestFreeBookingBornConfirmed() {
	s.seedService(0)

	res, err := s.machine.CreateServiceBooking(context.Background(), createBody(), nil)
	s.Require().NoError(err)

	s.Equal(types.BOOKING_CONFIRMED, res.Status)
	s.Nil(res.PaymentIntentID)
	s.Empty(s.processor.holds)
	s.Equal(uint(1), s.ledger.consumed["service:10"], "free bookings reserve immediately")

	b := s.store.bookings[res.BookingID]
	s.Equal(types.PAYMENT_NONE, b.PaymentStatus)
	s.Equal(0.0, b.TotalAmount)
}

func (s *MachineSuite) TestBookClassUsesCheckoutAndClassFee() {
	s.seedClass(50, s.now.Add(72*time.Hour))

	res, err := s.machine.BookClass(context.Background(), 20, &types.BookClassRequestBody{
		StudentName:  "Alex Doe",
		StudentEmail: "alex@example.com",
		StudentPhone: "555-0100",
	}, nil)
	s.Require().NoError(err)

	s.Equal(types.BOOKING_PENDING_PAYMENT, res.Status)
	s.Equal(5.0, res.ApplicationFee, "classes carry the 10%% fee")
	s.Require().NotNil(res.CheckoutURL)
	s.Require().Len(s.processor.checkouts, 1)
	s.Equal("Group Clinic", s.processor.checkouts[0].Description)
}

func (s *MachineSuite) TestBookClassRejectsStartedClass() {
	s.seedClass(50, s.now.Add(-time.Hour))

	_, err := s.machine.BookClass(context.Background(), 20, &types.BookClassRequestBody{
		StudentName:  "Alex Doe",
		StudentEmail: "alex@example.com",
		StudentPhone: "555-0100",
	}, nil)

	var ve *ValidationError
	s.Require().ErrorAs(err, &ve)
}

func (s *MachineSuite) TestConfirmIsIdempotent() {
	s.seedService(100)
	res, err := s.machine.CreateServiceBooking(context.Background(), createBody(), nil)
	s.Require().NoError(err)

	piID := "pi_final"
	s.Require().NoError(s.machine.Confirm(context.Background(), res.BookingID, &piID))
	s.Require().NoError(s.machine.Confirm(context.Background(), res.BookingID, &piID))

	b := s.store.bookings[res.BookingID]
	s.Equal(types.BOOKING_CONFIRMED, b.Status)
	s.Equal(types.PAYMENT_SUCCEEDED, b.PaymentStatus)
	s.Equal("pi_final", *b.PaymentIntentId)
	s.Equal(uint(1), s.ledger.consumed["service:10"], "duplicate confirm must not reserve twice")
}

func (s *MachineSuite) TestConfirmAfterFailureIsNoOp() {
	s.seedService(100)
	res, err := s.machine.CreateServiceBooking(context.Background(), createBody(), nil)
	s.Require().NoError(err)

	s.Require().NoError(s.machine.Fail(context.Background(), res.BookingID, "card declined"))
	s.Require().NoError(s.machine.Confirm(context.Background(), res.BookingID, nil))

	b := s.store.bookings[res.BookingID]
	s.Equal(types.BOOKING_PAYMENT_FAILED, b.Status)
	s.Equal("card declined", *b.FailureReason)
	s.Equal(uint(0), s.ledger.consumed["service:10"])
}

func (s *MachineSuite) TestConfirmLosingCapacityRaceCancelsWithRefund() {
	s.seedService(100)
	s.ledger.setLimit(types.KIND_SERVICE, 10, 1)

	res, err := s.machine.CreateServiceBooking(context.Background(), createBody(), nil)
	s.Require().NoError(err)

	// Another booking takes the last slot between create and confirm.
	s.ledger.consumed["service:10"] = 1

	s.Require().NoError(s.machine.Confirm(context.Background(), res.BookingID, nil))

	b := s.store.bookings[res.BookingID]
	s.Equal(types.BOOKING_CANCELLED, b.Status)
	s.True(b.RefundRequired)
	s.NotNil(b.CancelledAt)
	s.Equal(uint(1), s.ledger.consumed["service:10"], "lost race must not bump the counter")
}

func (s *MachineSuite) TestCompleteRequiresPayee() {
	s.seedService(100)
	res, err := s.machine.CreateServiceBooking(context.Background(), createBody(), nil)
	s.Require().NoError(err)
	s.Require().NoError(s.machine.Confirm(context.Background(), res.BookingID, nil))

	err = s.machine.Complete(context.Background(), res.BookingID, "someone-else", nil, nil)
	var ae *AuthorizationError
	s.Require().ErrorAs(err, &ae)
	s.Equal(types.BOOKING_CONFIRMED, s.store.bookings[res.BookingID].Status)
}

func (s *MachineSuite) TestCompleteRecordsDeliverables() {
	s.seedService(100)
	res, err := s.machine.CreateServiceBooking(context.Background(), createBody(), nil)
	s.Require().NoError(err)
	s.Require().NoError(s.machine.Confirm(context.Background(), res.BookingID, nil))

	notes := "session recap attached"
	err = s.machine.Complete(context.Background(), res.BookingID, "coach-uid", &notes, []string{"recap.pdf"})
	s.Require().NoError(err)

	b := s.store.bookings[res.BookingID]
	s.Equal(types.BOOKING_COMPLETED, b.Status)
	s.Equal("session recap attached", *b.CompletionNotes)
	s.Require().Len(b.Deliverables, 1)
	s.NotNil(b.CompletedAt)
}

func (s *MachineSuite) TestCancelConfirmedReleasesCapacityAndFlagsRefund() {
	s.seedService(100)
	res, err := s.machine.CreateServiceBooking(context.Background(), createBody(), nil)
	s.Require().NoError(err)
	s.Require().NoError(s.machine.Confirm(context.Background(), res.BookingID, nil))
	s.Equal(uint(1), s.ledger.consumed["service:10"])

	uid := "coach-uid"
	s.Require().NoError(s.machine.Cancel(context.Background(), res.BookingID, &uid))

	b := s.store.bookings[res.BookingID]
	s.Equal(types.BOOKING_CANCELLED, b.Status)
	s.True(b.RefundRequired, "paid bookings need a refund on cancel")
	s.Equal(uint(0), s.ledger.consumed["service:10"])
}

func (s *MachineSuite) TestCancelPendingCancelsHold() {
	s.seedService(100)
	res, err := s.machine.CreateServiceBooking(context.Background(), createBody(), nil)
	s.Require().NoError(err)

	s.Require().NoError(s.machine.Cancel(context.Background(), res.BookingID, nil))

	b := s.store.bookings[res.BookingID]
	s.Equal(types.BOOKING_CANCELLED, b.Status)
	s.False(b.RefundRequired, "nothing was captured yet")
	s.Equal([]string{*b.PaymentIntentId}, s.processor.cancelledHolds)
	s.Equal(uint(0), s.ledger.consumed["service:10"], "pending bookings never held a seat")
}

func (s *MachineSuite) TestCancelRejectsStranger() {
	s.seedService(100)
	student := "student-uid"
	res, err := s.machine.CreateServiceBooking(context.Background(), createBody(), &student)
	s.Require().NoError(err)

	uid := "stranger"
	err = s.machine.Cancel(context.Background(), res.BookingID, &uid)
	var ae *AuthorizationError
	s.Require().ErrorAs(err, &ae)
}

func (s *MachineSuite) TestCancelClassInsideCutoffRejected() {
	s.seedClass(50, s.now.Add(12*time.Hour))
	res, err := s.machine.BookClass(context.Background(), 20, &types.BookClassRequestBody{
		StudentName:  "Alex Doe",
		StudentEmail: "alex@example.com",
		StudentPhone: "555-0100",
	}, nil)
	s.Require().NoError(err)

	err = s.machine.Cancel(context.Background(), res.BookingID, nil)
	var pve *PolicyViolationError
	s.Require().ErrorAs(err, &pve)
	s.Equal(types.BOOKING_PENDING_PAYMENT, s.store.bookings[res.BookingID].Status)
}

func (s *MachineSuite) TestCancelClassOutsideCutoffAllowed() {
	s.seedClass(50, s.now.Add(72*time.Hour))
	res, err := s.machine.BookClass(context.Background(), 20, &types.BookClassRequestBody{
		StudentName:  "Alex Doe",
		StudentEmail: "alex@example.com",
		StudentPhone: "555-0100",
	}, nil)
	s.Require().NoError(err)

	s.Require().NoError(s.machine.Cancel(context.Background(), res.BookingID, nil))
	s.Equal(types.BOOKING_CANCELLED, s.store.bookings[res.BookingID].Status)
}

func (s *MachineSuite) TestFeeSnapshotSurvivesPriceChange() {
	svc := s.seedService(100)
	res, err := s.machine.CreateServiceBooking(context.Background(), createBody(), nil)
	s.Require().NoError(err)

	// Repricing the offering must never touch historical bookings.
	svc.Price = 250

	s.Require().NoError(s.machine.Confirm(context.Background(), res.BookingID, nil))

	b := s.store.bookings[res.BookingID]
	s.Equal(100.0, b.TotalAmount)
	s.Equal(5.0, b.ApplicationFee)
}

func (s *MachineSuite) TestCreateBookingRejectsMalformedSchedule() {
	s.seedService(100)

	body := createBody()
	body.ScheduledDate = "01/04/2026"
	_, err := s.machine.CreateServiceBooking(context.Background(), body, nil)
	var ve *ValidationError
	s.Require().ErrorAs(err, &ve)
	s.Equal("scheduledDate", ve.Field)

	body = createBody()
	body.ScheduledTime = "10am"
	_, err = s.machine.CreateServiceBooking(context.Background(), body, nil)
	s.Require().ErrorAs(err, &ve)
	s.Equal("scheduledTime", ve.Field)
}

func (s *MachineSuite) TestTerminalStatusesAreSticky() {
	for _, from := range []types.BookingStatus{
		types.BOOKING_COMPLETED,
		types.BOOKING_CANCELLED,
		types.BOOKING_PAYMENT_FAILED,
	} {
		for _, ev := range []Event{EventHoldSucceeded, EventHoldFailed, EventComplete, EventCancel} {
			_, err := NextStatus(from, ev)
			var ite *InvalidTransitionError
			s.Require().ErrorAs(err, &ite, "%s must reject %s", from, ev)
		}
	}
}

func (s *MachineSuite) TestSweepExpiresStalePending() {
	s.seedService(100)
	stale, err := s.machine.CreateServiceBooking(context.Background(), createBody(), nil)
	s.Require().NoError(err)
	s.store.bookings[stale.BookingID].CreatedAt = s.now.Add(-time.Hour)

	fresh, err := s.machine.CreateServiceBooking(context.Background(), createBody(), nil)
	s.Require().NoError(err)
	s.store.bookings[fresh.BookingID].CreatedAt = s.now.Add(-time.Minute)

	swept, err := s.machine.SweepStalePending(context.Background(), 30*time.Minute)
	s.Require().NoError(err)
	s.Equal(1, swept)

	s.Equal(types.BOOKING_PAYMENT_FAILED, s.store.bookings[stale.BookingID].Status)
	s.Equal("checkout abandoned", *s.store.bookings[stale.BookingID].FailureReason)
	s.Equal(types.BOOKING_PENDING_PAYMENT, s.store.bookings[fresh.BookingID].Status)
	s.Contains(s.processor.cancelledHolds, *s.store.bookings[stale.BookingID].PaymentIntentId)
}

func TestMachineSuite(t *testing.T) {
	suite.Run(t, new(MachineSuite))
}

func TestComputeFee(t *testing.T) {
	assert.Equal(t, 5.0, ComputeFee(100, types.KIND_SERVICE))
	assert.Equal(t, 10.0, ComputeFee(100, types.KIND_CLASS))
	assert.Equal(t, 0.5, ComputeFee(9.99, types.KIND_SERVICE))
	assert.Equal(t, 0.0, ComputeFee(0, types.KIND_CLASS))
}
