package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coachbook/src/models"
	"coachbook/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store is the persistence boundary for bookings, offerings and coach
// account records. Test doubles implement it in-memory.
type Store interface {
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListBookings(ctx context.Context, f *types.BookingQueryFilters) ([]models.Booking, error)
	// UpdateBookingIf applies updates only when the booking currently
	// holds the expected status. Reports whether a row changed; a false
	// return means the event was stale or duplicated.
	UpdateBookingIf(ctx context.Context, id uuid.UUID, expect types.BookingStatus, updates map[string]any) (bool, error)

	GetService(ctx context.Context, id uint) (*models.Service, error)
	GetClass(ctx context.Context, id uint) (*models.Class, error)
	GetCoach(ctx context.Context, id uint) (*models.Coach, error)
	GetCoachByAccountID(ctx context.Context, accountID string) (*models.Coach, error)
	UpdateCoach(ctx context.Context, id uint, updates map[string]any) error

	StalePendingBookings(ctx context.Context, before time.Time) ([]models.Booking, error)
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	return s.db.WithContext(ctx).Create(b).Error
}

func (s *gormStore) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", id).
		First(&booking).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "booking", ID: id.String()}
		}
		return nil, err
	}
	return &booking, nil
}

func (s *gormStore) ListBookings(ctx context.Context, f *types.BookingQueryFilters) ([]models.Booking, error) {
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Model(&models.Booking{})
	if f.CoachID > 0 {
		q = q.Where("coach_id = ?", f.CoachID)
	}
	if f.StudentUID != "" {
		q = q.Where("student_uid = ?", f.StudentUID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var bookings []models.Booking
	err := q.Order("created_at DESC").Limit(limit).Find(&bookings).Error
	return bookings, err
}

func (s *gormStore) UpdateBookingIf(ctx context.Context, id uuid.UUID, expect types.BookingStatus, updates map[string]any) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND status = ?", id, expect).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *gormStore) GetService(ctx context.Context, id uint) (*models.Service, error) {
	var svc models.Service
	err := s.db.WithContext(ctx).
		Model(&models.Service{}).
		Where("id = ?", id).
		First(&svc).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "service", ID: fmt.Sprint(id)}
		}
		return nil, err
	}
	return &svc, nil
}

func (s *gormStore) GetClass(ctx context.Context, id uint) (*models.Class, error) {
	var cls models.Class
	err := s.db.WithContext(ctx).
		Model(&models.Class{}).
		Where("id = ?", id).
		First(&cls).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "class", ID: fmt.Sprint(id)}
		}
		return nil, err
	}
	return &cls, nil
}

func (s *gormStore) GetCoach(ctx context.Context, id uint) (*models.Coach, error) {
	var coach models.Coach
	err := s.db.WithContext(ctx).
		Model(&models.Coach{}).
		Where("id = ?", id).
		First(&coach).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "coach", ID: fmt.Sprint(id)}
		}
		return nil, err
	}
	return &coach, nil
}

func (s *gormStore) GetCoachByAccountID(ctx context.Context, accountID string) (*models.Coach, error) {
	var coach models.Coach
	err := s.db.WithContext(ctx).
		Model(&models.Coach{}).
		Where("stripe_account_id = ?", accountID).
		First(&coach).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "coach", ID: accountID}
		}
		return nil, err
	}
	return &coach, nil
}

func (s *gormStore) UpdateCoach(ctx context.Context, id uint, updates map[string]any) error {
	return s.db.WithContext(ctx).
		Model(&models.Coach{}).
		Where("id = ?", id).
		Updates(updates).
		Error
}

func (s *gormStore) StalePendingBookings(ctx context.Context, before time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("status = ? AND created_at < ?", types.BOOKING_PENDING_PAYMENT, before).
		Limit(200).
		Find(&bookings).
		Error
	return bookings, err
}
