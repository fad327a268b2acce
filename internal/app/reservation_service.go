package app

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/villanet/booking/internal/clock"
	"github.com/villanet/booking/internal/domain"
)

// ReservationRepository is the reservation store. Calls made with the context
// passed to WithTx's callback run in that transaction.
type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockProperty(ctx context.Context, propertyID int64) error
	HasOverlap(ctx context.Context, propertyID int64, start, end domain.Date) (bool, error)
	InsertReservation(ctx context.Context, r domain.Reservation) (int64, error)
	GetReservationForUpdate(ctx context.Context, id int64) (domain.Reservation, error)
	DeleteReservation(ctx context.Context, id int64) error
	ListByUser(ctx context.Context, userID int64, page domain.Page) ([]domain.Reservation, int, error)
	ListByProperty(ctx context.Context, propertyID int64, page domain.Page) ([]domain.Reservation, int, error)
}

type PropertyLookup interface {
	GetProperty(ctx context.Context, id int64) (domain.Property, error)
}

type UserDirectory interface {
	GetEmail(ctx context.Context, userID int64) (string, error)
}

// EventPublisher hands domain events to the broker. Errors are reported, not retried.
type EventPublisher interface {
	PublishCreated(ctx context.Context, ev domain.ReservationCreated) error
	PublishCanceled(ctx context.Context, ev domain.ReservationCanceled) error
}

const DefaultMinCancelDays = 3

type ReservationService struct {
	repo          ReservationRepository
	properties    PropertyLookup
	users         UserDirectory
	publisher     EventPublisher
	clock         clock.Clock
	log           logrus.FieldLogger
	tracer        trace.Tracer
	minCancelDays int64
}

type ReservationServiceOption func(*ReservationService)

// WithMinCancelDays overrides the cancellation lead time. Negative values are ignored.
func WithMinCancelDays(days int) ReservationServiceOption {
	return func(s *ReservationService) {
		if days >= 0 {
			s.minCancelDays = int64(days)
		}
	}
}

func WithTracer(tracer trace.Tracer) ReservationServiceOption {
	return func(s *ReservationService) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

func NewReservationService(
	repo ReservationRepository,
	properties PropertyLookup,
	users UserDirectory,
	publisher EventPublisher,
	clk clock.Clock,
	logger logrus.FieldLogger,
	opts ...ReservationServiceOption,
) *ReservationService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	svc := &ReservationService{
		repo:          repo,
		properties:    properties,
		users:         users,
		publisher:     publisher,
		clock:         clk,
		log:           logger.WithField("component", "reservation_service"),
		tracer:        otel.Tracer("github.com/villanet/booking/internal/app"),
		minCancelDays: DefaultMinCancelDays,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type CreateReservationInput struct {
	UserID     int64
	PropertyID int64
	StartDate  domain.Date
	EndDate    domain.Date
}

func (s *ReservationService) CreateReservation(ctx context.Context, in CreateReservationInput) (domain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "ReservationService.CreateReservation", trace.WithAttributes(
		attribute.Int64("property.id", in.PropertyID),
		attribute.Int64("user.id", in.UserID),
	))
	defer span.End()

	if !in.EndDate.After(in.StartDate) {
		return domain.Reservation{}, fail(span, domain.ErrInvalidRange)
	}

	property, err := s.properties.GetProperty(ctx, in.PropertyID)
	if err != nil {
		return domain.Reservation{}, fail(span, err)
	}

	now := s.clock.Now()
	var result domain.Reservation

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.LockProperty(txCtx, in.PropertyID); err != nil {
			return err
		}

		overlap, err := s.repo.HasOverlap(txCtx, in.PropertyID, in.StartDate, in.EndDate)
		if err != nil {
			return err
		}
		if overlap {
			return domain.ErrConflict
		}

		nights := in.StartDate.DaysUntil(in.EndDate)
		if nights <= 0 {
			return domain.ErrInvalidRange
		}

		reservation := domain.Reservation{
			PropertyID:  in.PropertyID,
			UserID:      in.UserID,
			StartDate:   in.StartDate,
			EndDate:     in.EndDate,
			TotalNights: int(nights),
			TotalPrice:  property.PricePerNight.Mul(decimal.NewFromInt(nights)),
			CreatedAt:   now,
		}

		id, err := s.repo.InsertReservation(txCtx, reservation)
		if err != nil {
			return err
		}
		reservation.ID = id
		result = reservation
		return nil
	})
	if err != nil {
		return domain.Reservation{}, fail(span, err)
	}
	span.SetAttributes(attribute.Int64("reservation.id", result.ID))

	s.publishCreated(context.WithoutCancel(ctx), result, property)
	return result, nil
}

type CancelReservationInput struct {
	UserID        int64
	ReservationID int64
}

func (s *ReservationService) CancelReservation(ctx context.Context, in CancelReservationInput) error {
	ctx, span := s.tracer.Start(ctx, "ReservationService.CancelReservation", trace.WithAttributes(
		attribute.Int64("reservation.id", in.ReservationID),
		attribute.Int64("user.id", in.UserID),
	))
	defer span.End()

	today := clock.Today(s.clock)
	var snapshot domain.Reservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		reservation, err := s.repo.GetReservationForUpdate(txCtx, in.ReservationID)
		if err != nil {
			return err
		}
		if reservation.UserID != in.UserID {
			return domain.ErrForbidden
		}
		// Exactly minCancelDays ahead is already too late.
		if today.DaysUntil(reservation.StartDate) <= s.minCancelDays {
			return domain.ErrTooLate
		}
		if err := s.repo.DeleteReservation(txCtx, reservation.ID); err != nil {
			return err
		}
		snapshot = reservation
		return nil
	})
	if err != nil {
		return fail(span, err)
	}

	s.publishCanceled(context.WithoutCancel(ctx), snapshot)
	return nil
}

func (s *ReservationService) ListForUser(ctx context.Context, userID int64, page domain.Page) (domain.PagedList[domain.Reservation], error) {
	page = page.Normalize()
	items, total, err := s.repo.ListByUser(ctx, userID, page)
	if err != nil {
		return domain.PagedList[domain.Reservation]{}, err
	}
	return domain.NewPagedList(items, page, total), nil
}

func (s *ReservationService) ListForOwner(ctx context.Context, propertyID, ownerID int64, page domain.Page) (domain.PagedList[domain.Reservation], error) {
	property, err := s.properties.GetProperty(ctx, propertyID)
	if err != nil {
		return domain.PagedList[domain.Reservation]{}, err
	}
	if property.OwnerID != ownerID {
		return domain.PagedList[domain.Reservation]{}, domain.ErrForbidden
	}

	page = page.Normalize()
	items, total, err := s.repo.ListByProperty(ctx, propertyID, page)
	if err != nil {
		return domain.PagedList[domain.Reservation]{}, err
	}
	return domain.NewPagedList(items, page, total), nil
}

func (s *ReservationService) publishCreated(ctx context.Context, r domain.Reservation, property domain.Property) {
	log := s.log.WithFields(logrus.Fields{"reservation_id": r.ID, "event": "created"})

	bookedBy, ownerEmail, err := s.resolveEmails(ctx, r.UserID, property.OwnerID)
	if err != nil {
		log.WithError(err).Error("resolve emails; event not published")
		return
	}

	ev := domain.ReservationCreated{
		ReservationID: r.ID,
		PropertyID:    r.PropertyID,
		PropertyName:  property.Name,
		BookedBy:      bookedBy,
		OwnerEmail:    ownerEmail,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		TotalNights:   r.TotalNights,
		TotalPrice:    r.TotalPrice,
		CreatedAt:     r.CreatedAt,
	}
	if err := s.publisher.PublishCreated(ctx, ev); err != nil {
		log.WithError(err).Error("publish reservation event")
	}
}

func (s *ReservationService) publishCanceled(ctx context.Context, r domain.Reservation) {
	log := s.log.WithFields(logrus.Fields{"reservation_id": r.ID, "event": "canceled"})

	property, err := s.properties.GetProperty(ctx, r.PropertyID)
	if err != nil {
		log.WithError(err).Error("look up property; event not published")
		return
	}
	bookedBy, ownerEmail, err := s.resolveEmails(ctx, r.UserID, property.OwnerID)
	if err != nil {
		log.WithError(err).Error("resolve emails; event not published")
		return
	}

	ev := domain.ReservationCanceled{
		ReservationID: r.ID,
		PropertyID:    r.PropertyID,
		PropertyName:  property.Name,
		BookedBy:      bookedBy,
		OwnerEmail:    ownerEmail,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		CanceledAt:    s.clock.Now(),
	}
	if err := s.publisher.PublishCanceled(ctx, ev); err != nil {
		log.WithError(err).Error("publish reservation event")
	}
}

func (s *ReservationService) resolveEmails(ctx context.Context, userID, ownerID int64) (string, string, error) {
	bookedBy, err := s.users.GetEmail(ctx, userID)
	if err != nil {
		return "", "", err
	}
	ownerEmail, err := s.users.GetEmail(ctx, ownerID)
	if err != nil {
		return "", "", err
	}
	return bookedBy, ownerEmail, nil
}

// fail records err on the span unless it is an expected domain outcome.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	if !isDomainError(err) {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func isDomainError(err error) bool {
	return domain.IsNotFound(err) ||
		errors.Is(err, domain.ErrInvalidRange) ||
		errors.Is(err, domain.ErrConflict) ||
		errors.Is(err, domain.ErrForbidden) ||
		errors.Is(err, domain.ErrTooLate) ||
		errors.Is(err, domain.ErrInvalidID)
}
