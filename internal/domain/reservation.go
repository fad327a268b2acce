package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reservation is a booked, half-open [StartDate, EndDate) stay at one property.
// TotalPrice is the price at booking time and is never recomputed.
type Reservation struct {
	ID          int64
	PropertyID  int64
	UserID      int64
	StartDate   Date
	EndDate     Date
	TotalNights int
	TotalPrice  decimal.Decimal
	CreatedAt   time.Time
}

// Property is the subset of a listing the booking engine needs.
type Property struct {
	ID            int64
	Name          string
	OwnerID       int64
	PricePerNight decimal.Decimal
}
