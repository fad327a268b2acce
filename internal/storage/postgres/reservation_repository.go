package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/villanet/booking/internal/domain"
)

// userForeignKey is the reservations.user_id constraint in migrations/0002.
const userForeignKey = "reservations_user_fk"

type ReservationRepository struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

func (r *ReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// LockProperty takes a transaction-scoped advisory lock keyed by the property id.
// It must be called inside WithTx; the lock is released on commit or rollback.
func (r *ReservationRepository) LockProperty(ctx context.Context, propertyID int64) error {
	if txFromContext(ctx) == nil {
		return errors.New("lock property: no transaction in context")
	}
	if _, err := conn(ctx, r.pool).Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, propertyID); err != nil {
		return fmt.Errorf("lock property: %w", err)
	}
	return nil
}

func (r *ReservationRepository) HasOverlap(ctx context.Context, propertyID int64, start, end domain.Date) (bool, error) {
	const query = `
SELECT EXISTS (
	SELECT 1 FROM reservations
	WHERE property_id = $1 AND start_date < $3 AND end_date > $2
)`
	var overlap bool
	if err := conn(ctx, r.pool).QueryRow(ctx, query, propertyID, start.Time(), end.Time()).Scan(&overlap); err != nil {
		return false, fmt.Errorf("check overlap: %w", err)
	}
	return overlap, nil
}

func (r *ReservationRepository) InsertReservation(ctx context.Context, res domain.Reservation) (int64, error) {
	const stmt = `
INSERT INTO reservations (property_id, user_id, start_date, end_date, total_nights, total_price, created_at)
VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)
RETURNING id`

	var id int64
	err := conn(ctx, r.pool).QueryRow(ctx, stmt,
		res.PropertyID,
		res.UserID,
		res.StartDate.Time(),
		res.EndDate.Time(),
		res.TotalNights,
		res.TotalPrice.String(),
		res.CreatedAt,
	).Scan(&id)
	if err != nil {
		switch {
		case isExclusionViolation(err):
			return 0, domain.ErrConflict
		case isCheckViolation(err):
			return 0, domain.ErrInvalidRange
		case isForeignKeyViolation(err) && pgConstraint(err) == userForeignKey:
			return 0, domain.ErrUserNotFound
		case isForeignKeyViolation(err):
			return 0, domain.ErrPropertyNotFound
		}
		return 0, fmt.Errorf("insert reservation: %w", err)
	}
	return id, nil
}

func (r *ReservationRepository) GetReservationForUpdate(ctx context.Context, id int64) (domain.Reservation, error) {
	query := selectReservation + ` WHERE id = $1 FOR UPDATE`
	res, err := scanReservation(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

func (r *ReservationRepository) DeleteReservation(ctx context.Context, id int64) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationNotFound
	}
	return nil
}

func (r *ReservationRepository) ListByUser(ctx context.Context, userID int64, page domain.Page) ([]domain.Reservation, int, error) {
	return r.list(ctx, `user_id = $1`, `created_at DESC, id DESC`, userID, page)
}

func (r *ReservationRepository) ListByProperty(ctx context.Context, propertyID int64, page domain.Page) ([]domain.Reservation, int, error) {
	return r.list(ctx, `property_id = $1`, `start_date ASC, id ASC`, propertyID, page)
}

func (r *ReservationRepository) list(ctx context.Context, where, orderBy string, key int64, page domain.Page) ([]domain.Reservation, int, error) {
	q := conn(ctx, r.pool)

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM reservations WHERE `+where, key).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reservations: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	query := selectReservation + ` WHERE ` + where + ` ORDER BY ` + orderBy + ` LIMIT $2 OFFSET $3`
	rows, err := q.Query(ctx, query, key, page.Size, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}
	return out, total, nil
}

const selectReservation = `
SELECT id, property_id, user_id, start_date, end_date, total_nights, total_price::text, created_at
FROM reservations`

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var (
		res        domain.Reservation
		start, end time.Time
		price      string
	)
	if err := row.Scan(&res.ID, &res.PropertyID, &res.UserID, &start, &end, &res.TotalNights, &price, &res.CreatedAt); err != nil {
		return domain.Reservation{}, err
	}
	total, err := decimal.NewFromString(price)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("parse total price %q: %w", price, err)
	}
	res.StartDate = domain.DateOf(start)
	res.EndDate = domain.DateOf(end)
	res.TotalPrice = total
	res.CreatedAt = res.CreatedAt.UTC()
	return res, nil
}
