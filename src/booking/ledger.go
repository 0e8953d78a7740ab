package booking

import (
	"context"
	"errors"
	"fmt"
	"log"

	"coachbook/src/models"
	"coachbook/src/types"

	"gorm.io/gorm"
)

// Availability is a point-in-time capacity read. Remaining is nil for
// unlimited offerings.
type Availability struct {
	Available bool  `json:"available"`
	Remaining *uint `json:"remaining,omitempty"`
}

// Ledger tracks consumed capacity on offerings. All mutations are
// single guarded UPDATE statements; the check never happens in
// application code.
type Ledger interface {
	CheckAvailability(ctx context.Context, kind types.BookingKind, id uint) (*Availability, error)
	Reserve(ctx context.Context, kind types.BookingKind, id uint, delta int) error
	Release(ctx context.Context, kind types.BookingKind, id uint, delta int) error
}

type gormLedger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) Ledger {
	return &gormLedger{db: db}
}

func (l *gormLedger) CheckAvailability(ctx context.Context, kind types.BookingKind, id uint) (*Availability, error) {
	consumed, max, err := l.counters(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if max == nil {
		return &Availability{Available: true}, nil
	}
	var remaining uint
	if *max > consumed {
		remaining = *max - consumed
	}
	return &Availability{Available: remaining > 0, Remaining: &remaining}, nil
}

func (l *gormLedger) Reserve(ctx context.Context, kind types.BookingKind, id uint, delta int) error {
	var res *gorm.DB
	switch kind {
	case types.KIND_CLASS:
		res = l.db.WithContext(ctx).
			Model(&models.Class{}).
			Where("id = ? AND (max_participants IS NULL OR participant_count + ? <= max_participants)", id, delta).
			UpdateColumn("participant_count", gorm.Expr("participant_count + ?", delta))
	default:
		res = l.db.WithContext(ctx).
			Model(&models.Service{}).
			Where("id = ? AND (max_bookings IS NULL OR booked_count + ? <= max_bookings)", id, delta).
			UpdateColumn("booked_count", gorm.Expr("booked_count + ?", delta))
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &AtCapacityError{Offering: string(kind), ID: id}
	}
	return nil
}

func (l *gormLedger) Release(ctx context.Context, kind types.BookingKind, id uint, delta int) error {
	var res *gorm.DB
	switch kind {
	case types.KIND_CLASS:
		res = l.db.WithContext(ctx).
			Model(&models.Class{}).
			Where("id = ?", id).
			UpdateColumn("participant_count", gorm.Expr("GREATEST(participant_count - ?, 0)", delta))
	default:
		res = l.db.WithContext(ctx).
			Model(&models.Service{}).
			Where("id = ?", id).
			UpdateColumn("booked_count", gorm.Expr("GREATEST(booked_count - ?, 0)", delta))
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Clamped or missing row; never raised to the caller.
		log.Printf("[ledger] release on %s [%d] affected no rows\n", kind, id)
	}
	return nil
}

func (l *gormLedger) counters(ctx context.Context, kind types.BookingKind, id uint) (uint, *uint, error) {
	if kind == types.KIND_CLASS {
		var cls models.Class
		err := l.db.WithContext(ctx).
			Model(&models.Class{}).
			Select("participant_count", "max_participants").
			Where("id = ?", id).
			First(&cls).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, nil, &NotFoundError{Resource: "class", ID: fmt.Sprint(id)}
			}
			return 0, nil, err
		}
		return cls.ParticipantCount, cls.MaxParticipants, nil
	}
	var svc models.Service
	err := l.db.WithContext(ctx).
		Model(&models.Service{}).
		Select("booked_count", "max_bookings").
		Where("id = ?", id).
		First(&svc).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil, &NotFoundError{Resource: "service", ID: fmt.Sprint(id)}
		}
		return 0, nil, err
	}
	return svc.BookedCount, svc.MaxBookings, nil
}
