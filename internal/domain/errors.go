package domain

import "errors"

var (
	ErrInvalidRange        = errors.New("end date must be after start date")
	ErrPropertyNotFound    = errors.New("property not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrConflict            = errors.New("the selected dates are not available")
	ErrForbidden           = errors.New("forbidden")
	ErrTooLate             = errors.New("cancellation window has closed")
	ErrInvalidID           = errors.New("invalid id")
)

// IsNotFound reports whether err is one of the missing-entity errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPropertyNotFound) ||
		errors.Is(err, ErrReservationNotFound) ||
		errors.Is(err, ErrUserNotFound)
}
