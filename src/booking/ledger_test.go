package booking

import (
	"context"
	"testing"

	"coachbook/src/types"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newLedgerMock(t *testing.T) (Ledger, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewLedger(gormDB), mock
}

func TestLedgerReserveGuardsCapacityInSQL(t *testing.T) {
	l, mock := newLedgerMock(t)

	mock.ExpectExec(`UPDATE "services" SET "booked_count"=booked_count \+ \$1 WHERE id = \$2 AND \(max_bookings IS NULL OR booked_count \+ \$3 <= max_bookings\)`).
		WithArgs(1, 10, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := l.Reserve(context.Background(), types.KIND_SERVICE, 10, 1)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerReserveAtCapacity(t *testing.T) {
	l, mock := newLedgerMock(t)

	mock.ExpectExec(`UPDATE "services" SET "booked_count"=booked_count \+ \$1`).
		WithArgs(1, 10, 1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := l.Reserve(context.Background(), types.KIND_SERVICE, 10, 1)
	var ace *AtCapacityError
	assert.ErrorAs(t, err, &ace)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerReserveClassCounter(t *testing.T) {
	l, mock := newLedgerMock(t)

	mock.ExpectExec(`UPDATE "classes" SET "participant_count"=participant_count \+ \$1 WHERE id = \$2 AND \(max_participants IS NULL OR participant_count \+ \$3 <= max_participants\)`).
		WithArgs(1, 20, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := l.Reserve(context.Background(), types.KIND_CLASS, 20, 1)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerReleaseClampsAtZero(t *testing.T) {
	l, mock := newLedgerMock(t)

	mock.ExpectExec(`UPDATE "services" SET "booked_count"=GREATEST\(booked_count - \$1, 0\) WHERE id = \$2`).
		WithArgs(1, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := l.Release(context.Background(), types.KIND_SERVICE, 10, 1)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerReleaseMissingRowIsSilent(t *testing.T) {
	l, mock := newLedgerMock(t)

	mock.ExpectExec(`UPDATE "services" SET "booked_count"=GREATEST`).
		WithArgs(1, 99).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := l.Release(context.Background(), types.KIND_SERVICE, 99, 1)
	assert.NoError(t, err)
}

func TestLedgerCheckAvailability(t *testing.T) {
	l, mock := newLedgerMock(t)

	mock.ExpectQuery(`SELECT "booked_count","max_bookings" FROM "services" WHERE id = \$1`).
		WithArgs(10, 1).
		WillReturnRows(sqlmock.NewRows([]string{"booked_count", "max_bookings"}).AddRow(2, 5))

	avail, err := l.CheckAvailability(context.Background(), types.KIND_SERVICE, 10)
	require.NoError(t, err)
	assert.True(t, avail.Available)
	require.NotNil(t, avail.Remaining)
	assert.Equal(t, uint(3), *avail.Remaining)
}

func TestLedgerCheckAvailabilityUnlimited(t *testing.T) {
	l, mock := newLedgerMock(t)

	mock.ExpectQuery(`SELECT "booked_count","max_bookings" FROM "services" WHERE id = \$1`).
		WithArgs(10, 1).
		WillReturnRows(sqlmock.NewRows([]string{"booked_count", "max_bookings"}).AddRow(42, nil))

	avail, err := l.CheckAvailability(context.Background(), types.KIND_SERVICE, 10)
	require.NoError(t, err)
	assert.True(t, avail.Available)
	assert.Nil(t, avail.Remaining)
}
