package config

import (
	"fmt"
	"os"
	"strconv"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const (
	DATE_PARSE_FORMAT = "2006-01-02"
	TIME_PARSE_FORMAT = "15:04"
)

// Platform fee rates. Fees are computed once at hold creation and
// persisted on the booking.
const (
	ServiceFeeRate = 0.05
	ClassFeeRate   = 0.10
)

// Class bookings cannot be cancelled inside this window before the
// scheduled start.
const ClassCancellationCutoffHours = 24

// PendingBookingTTLMinutes is the age after which a pending_payment
// booking is treated as an abandoned checkout.
func PendingBookingTTLMinutes() int {
	v := os.Getenv("PENDING_BOOKING_TTL_MIN")
	ttl, err := strconv.Atoi(v)
	if err != nil || ttl <= 0 {
		return 30
	}
	return ttl
}
