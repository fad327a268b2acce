package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/villanet/booking/internal/domain"
)

// PropertyRepository reads the property catalog. Listings are managed elsewhere.
type PropertyRepository struct {
	pool *pgxpool.Pool
}

func NewPropertyRepository(pool *pgxpool.Pool) *PropertyRepository {
	return &PropertyRepository{pool: pool}
}

func (r *PropertyRepository) GetProperty(ctx context.Context, id int64) (domain.Property, error) {
	const query = `SELECT id, name, owner_id, price_per_night::text FROM properties WHERE id = $1`

	var (
		p     domain.Property
		price string
	)
	err := conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.OwnerID, &price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Property{}, domain.ErrPropertyNotFound
		}
		return domain.Property{}, fmt.Errorf("get property: %w", err)
	}
	p.PricePerNight, err = decimal.NewFromString(price)
	if err != nil {
		return domain.Property{}, fmt.Errorf("parse price per night %q: %w", price, err)
	}
	return p, nil
}
