// Package events encodes reservation events for the broker.
//
// Payloads use the protobuf wire format with fixed field numbers so producers
// and consumers can add fields independently. Unknown fields are skipped on
// decode. Dates travel as days since 1970-01-01 and instants as Unix
// nanoseconds, both zigzag-encoded. Prices travel as decimal strings.
package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/villanet/booking/internal/domain"
)

const (
	TypeCreated  = "reservation.created"
	TypeCanceled = "reservation.canceled"
)

// ErrMalformed wraps every decode failure.
var ErrMalformed = errors.New("malformed event payload")

// Field numbers of ReservationCreated.
const (
	createdReservationID protowire.Number = 1
	createdBookedBy      protowire.Number = 2
	createdStartDate     protowire.Number = 3
	createdEndDate       protowire.Number = 4
	createdTotalNights   protowire.Number = 5
	createdTotalPrice    protowire.Number = 6
	createdCreatedAt     protowire.Number = 7
	createdOwnerEmail    protowire.Number = 8
	createdPropertyName  protowire.Number = 9
	createdPropertyID    protowire.Number = 10
)

// Field numbers of ReservationCanceled.
const (
	canceledReservationID protowire.Number = 1
	canceledPropertyName  protowire.Number = 2
	canceledBookedBy      protowire.Number = 3
	canceledCanceledAt    protowire.Number = 4
	canceledOwnerEmail    protowire.Number = 5
	canceledStartDate     protowire.Number = 6
	canceledEndDate       protowire.Number = 7
	canceledPropertyID    protowire.Number = 8
)

func EncodeCreated(ev domain.ReservationCreated) []byte {
	var b []byte
	b = appendInt64(b, createdReservationID, ev.ReservationID)
	b = appendString(b, createdBookedBy, ev.BookedBy)
	b = appendSint64(b, createdStartDate, ev.StartDate.DayNumber())
	b = appendSint64(b, createdEndDate, ev.EndDate.DayNumber())
	b = appendInt64(b, createdTotalNights, int64(ev.TotalNights))
	b = appendString(b, createdTotalPrice, ev.TotalPrice.String())
	b = appendInstant(b, createdCreatedAt, ev.CreatedAt)
	b = appendString(b, createdOwnerEmail, ev.OwnerEmail)
	b = appendString(b, createdPropertyName, ev.PropertyName)
	b = appendInt64(b, createdPropertyID, ev.PropertyID)
	return b
}

func DecodeCreated(b []byte) (domain.ReservationCreated, error) {
	var ev domain.ReservationCreated
	var seenStart, seenEnd bool
	err := walk(b, func(num protowire.Number, f field) error {
		switch num {
		case createdReservationID:
			return f.readInt64(&ev.ReservationID)
		case createdBookedBy:
			return f.readString(&ev.BookedBy)
		case createdStartDate:
			seenStart = true
			return f.readDate(&ev.StartDate)
		case createdEndDate:
			seenEnd = true
			return f.readDate(&ev.EndDate)
		case createdTotalNights:
			var n int64
			if err := f.readInt64(&n); err != nil {
				return err
			}
			ev.TotalNights = int(n)
			return nil
		case createdTotalPrice:
			return f.readDecimal(&ev.TotalPrice)
		case createdCreatedAt:
			return f.readInstant(&ev.CreatedAt)
		case createdOwnerEmail:
			return f.readString(&ev.OwnerEmail)
		case createdPropertyName:
			return f.readString(&ev.PropertyName)
		case createdPropertyID:
			return f.readInt64(&ev.PropertyID)
		}
		return f.skip()
	})
	if err != nil {
		return domain.ReservationCreated{}, err
	}
	if ev.ReservationID == 0 || !seenStart || !seenEnd {
		return domain.ReservationCreated{}, fmt.Errorf("%w: missing required field", ErrMalformed)
	}
	return ev, nil
}

func EncodeCanceled(ev domain.ReservationCanceled) []byte {
	var b []byte
	b = appendInt64(b, canceledReservationID, ev.ReservationID)
	b = appendString(b, canceledPropertyName, ev.PropertyName)
	b = appendString(b, canceledBookedBy, ev.BookedBy)
	b = appendInstant(b, canceledCanceledAt, ev.CanceledAt)
	b = appendString(b, canceledOwnerEmail, ev.OwnerEmail)
	b = appendSint64(b, canceledStartDate, ev.StartDate.DayNumber())
	b = appendSint64(b, canceledEndDate, ev.EndDate.DayNumber())
	b = appendInt64(b, canceledPropertyID, ev.PropertyID)
	return b
}

func DecodeCanceled(b []byte) (domain.ReservationCanceled, error) {
	var ev domain.ReservationCanceled
	var seenStart, seenEnd bool
	err := walk(b, func(num protowire.Number, f field) error {
		switch num {
		case canceledReservationID:
			return f.readInt64(&ev.ReservationID)
		case canceledPropertyName:
			return f.readString(&ev.PropertyName)
		case canceledBookedBy:
			return f.readString(&ev.BookedBy)
		case canceledCanceledAt:
			return f.readInstant(&ev.CanceledAt)
		case canceledOwnerEmail:
			return f.readString(&ev.OwnerEmail)
		case canceledStartDate:
			seenStart = true
			return f.readDate(&ev.StartDate)
		case canceledEndDate:
			seenEnd = true
			return f.readDate(&ev.EndDate)
		case canceledPropertyID:
			return f.readInt64(&ev.PropertyID)
		}
		return f.skip()
	})
	if err != nil {
		return domain.ReservationCanceled{}, err
	}
	if ev.ReservationID == 0 || !seenStart || !seenEnd {
		return domain.ReservationCanceled{}, fmt.Errorf("%w: missing required field", ErrMalformed)
	}
	return ev, nil
}

func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendSint64(b []byte, num protowire.Number, v int64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v))
}

// appendInstant omits the zero time, which has no UnixNano representation.
func appendInstant(b []byte, num protowire.Number, v time.Time) []byte {
	if v.IsZero() {
		return b
	}
	return appendSint64(b, num, v.UnixNano())
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// field is one undecoded value positioned after its tag.
type field struct {
	typ  protowire.Type
	num  protowire.Number
	data []byte
	n    *int
}

func walk(b []byte, visit func(protowire.Number, field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		consumed := 0
		if err := visit(num, field{typ: typ, num: num, data: b, n: &consumed}); err != nil {
			return err
		}
		b = b[consumed:]
	}
	return nil
}

func (f field) skip() error {
	n := protowire.ConsumeFieldValue(f.num, f.typ, f.data)
	if n < 0 {
		return fmt.Errorf("%w: field %d: %v", ErrMalformed, f.num, protowire.ParseError(n))
	}
	*f.n = n
	return nil
}

func (f field) varint() (uint64, error) {
	if f.typ != protowire.VarintType {
		return 0, fmt.Errorf("%w: field %d: unexpected wire type %d", ErrMalformed, f.num, f.typ)
	}
	v, n := protowire.ConsumeVarint(f.data)
	if n < 0 {
		return 0, fmt.Errorf("%w: field %d: %v", ErrMalformed, f.num, protowire.ParseError(n))
	}
	*f.n = n
	return v, nil
}

func (f field) readInt64(dst *int64) error {
	v, err := f.varint()
	if err != nil {
		return err
	}
	*dst = int64(v)
	return nil
}

func (f field) readDate(dst *domain.Date) error {
	v, err := f.varint()
	if err != nil {
		return err
	}
	*dst = domain.DateFromDayNumber(protowire.DecodeZigZag(v))
	return nil
}

func (f field) readInstant(dst *time.Time) error {
	v, err := f.varint()
	if err != nil {
		return err
	}
	*dst = time.Unix(0, protowire.DecodeZigZag(v)).UTC()
	return nil
}

func (f field) readString(dst *string) error {
	if f.typ != protowire.BytesType {
		return fmt.Errorf("%w: field %d: unexpected wire type %d", ErrMalformed, f.num, f.typ)
	}
	v, n := protowire.ConsumeString(f.data)
	if n < 0 {
		return fmt.Errorf("%w: field %d: %v", ErrMalformed, f.num, protowire.ParseError(n))
	}
	*f.n = n
	*dst = v
	return nil
}

func (f field) readDecimal(dst *decimal.Decimal) error {
	var s string
	if err := f.readString(&s); err != nil {
		return err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("%w: field %d: %v", ErrMalformed, f.num, err)
	}
	*dst = d
	return nil
}
