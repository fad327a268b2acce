package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReservationCreated is the snapshot published after a booking commits.
// BookedBy and OwnerEmail are resolved at publish time.
type ReservationCreated struct {
	ReservationID int64
	PropertyID    int64
	PropertyName  string
	BookedBy      string
	OwnerEmail    string
	StartDate     Date
	EndDate       Date
	TotalNights   int
	TotalPrice    decimal.Decimal
	CreatedAt     time.Time
}

// ReservationCanceled is the snapshot of a reservation taken before it was deleted.
type ReservationCanceled struct {
	ReservationID int64
	PropertyID    int64
	PropertyName  string
	BookedBy      string
	OwnerEmail    string
	StartDate     Date
	EndDate       Date
	CanceledAt    time.Time
}
