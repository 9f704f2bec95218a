package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	intconfig "busticket/internal/config"
)

// BookingSeatRepository reads seat claims. Claims exist only for PENDING
// and PAID bookings, so every row is an occupied seat.
type BookingSeatRepository struct {
	DB *sql.DB
}

func (r BookingSeatRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

// OccupiedSeats returns the claimed seat numbers of a trip, ascending.
func (r BookingSeatRepository) OccupiedSeats(ctx context.Context, tripID int64) ([]int, error) {
	db := r.db()
	if db == nil {
		return nil, fmt.Errorf("db not available")
	}
	rows, err := db.QueryContext(ctx, `SELECT seat_number FROM booking_seats WHERE trip_id = ?`, tripID)
	if err != nil {
		return nil, fmt.Errorf("occupied seats of trip %d: %w", tripID, err)
	}
	defer rows.Close()

	out := []int{}
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Ints(out)
	return out, nil
}
