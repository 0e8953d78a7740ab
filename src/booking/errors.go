package booking

import (
	"errors"
	"fmt"
	"net/http"

	"coachbook/src/types"
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

type AtCapacityError struct {
	Offering string
	ID       uint
}

func (e *AtCapacityError) Error() string {
	return fmt.Sprintf("%s [%d] is fully booked", e.Offering, e.ID)
}

type PayeeNotReadyError struct {
	CoachID uint
}

func (e *PayeeNotReadyError) Error() string {
	return fmt.Sprintf("coach [%d] has not completed payment account setup", e.CoachID)
}

type AuthorizationError struct {
	Action string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not allowed to %s", e.Action)
}

type InvalidTransitionError struct {
	From  types.BookingStatus
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot apply %s to a booking in status %s", e.Event, e.From)
}

type PolicyViolationError struct {
	Reason string
}

func (e *PolicyViolationError) Error() string {
	return e.Reason
}

type UpstreamPaymentError struct {
	Op  string
	Err error
}

func (e *UpstreamPaymentError) Error() string {
	return fmt.Sprintf("payment processor error on %s: %s", e.Op, e.Err.Error())
}
func (e *UpstreamPaymentError) Unwrap() error { return e.Err }

// HTTPStatus maps a domain error to the response code contract.
// Upstream and unknown failures stay generic 500s.
func HTTPStatus(err error) int {
	var (
		ve  *ValidationError
		nfe *NotFoundError
		ace *AtCapacityError
		pne *PayeeNotReadyError
		aze *AuthorizationError
		ite *InvalidTransitionError
		pve *PolicyViolationError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &ace), errors.As(err, &pne),
		errors.As(err, &ite), errors.As(err, &pve):
		return http.StatusBadRequest
	case errors.As(err, &nfe):
		return http.StatusNotFound
	case errors.As(err, &aze):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is what goes into the "error" response field. Upstream
// messages are logged server-side only.
func PublicMessage(err error) string {
	var upe *UpstreamPaymentError
	if errors.As(err, &upe) {
		return "payment could not be processed"
	}
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "something went wrong"
	}
	return err.Error()
}
