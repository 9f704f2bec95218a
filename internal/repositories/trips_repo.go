package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	intconfig "busticket/internal/config"
	"busticket/internal/domain"
	"busticket/internal/domain/models"
)

type TripsRepository struct {
	DB *sql.DB
}

func (r TripsRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

const tripSelect = `
	SELECT t.id, t.departure_at, t.base_price, t.status,
	       r.id, r.origin, r.destination,
	       b.id, b.plate_number, b.name, b.capacity
	FROM trips t
	JOIN routes r ON r.id = t.route_id
	JOIN buses b ON b.id = t.bus_id`

// GetTrip loads a trip with its route and bus.
func (r TripsRepository) GetTrip(ctx context.Context, id int64) (models.Trip, error) {
	if id <= 0 {
		return models.Trip{}, domain.ValidationError{Field: "tripId", Msg: "must be positive"}
	}
	db := r.db()
	if db == nil {
		return models.Trip{}, fmt.Errorf("db not available")
	}

	var t models.Trip
	err := db.QueryRowContext(ctx, tripSelect+` WHERE t.id = ? LIMIT 1`, id).Scan(
		&t.ID, &t.DepartureAt, &t.BasePrice, &t.Status,
		&t.Route.ID, &t.Route.Origin, &t.Route.Destination,
		&t.Bus.ID, &t.Bus.PlateNumber, &t.Bus.Name, &t.Bus.Capacity,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Trip{}, domain.NotFoundError{Resource: "trip", Err: err}
		}
		return models.Trip{}, fmt.Errorf("get trip %d: %w", id, err)
	}
	return t, nil
}
