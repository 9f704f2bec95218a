package repositories

import (
	"context"
	"database/sql"
	"fmt"

	intconfig "busticket/internal/config"
)

type LoyaltyRepository struct {
	DB *sql.DB
}

func (r LoyaltyRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

// Credit records points for a booking at most once. credited is false when
// the booking already has a ledger row.
func (r LoyaltyRepository) Credit(ctx context.Context, bookingID int64, phone string, points int64) (bool, error) {
	db := r.db()
	if db == nil {
		return false, fmt.Errorf("db not available")
	}
	res, err := db.ExecContext(ctx, `
		INSERT IGNORE INTO loyalty_ledger (booking_id, phone, points, created_at)
		VALUES (?, ?, ?, UTC_TIMESTAMP())`, bookingID, phone, points)
	if err != nil {
		return false, fmt.Errorf("credit loyalty for booking %d: %w", bookingID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Balance sums the points credited to a phone number.
func (r LoyaltyRepository) Balance(ctx context.Context, phone string) (int64, error) {
	db := r.db()
	if db == nil {
		return 0, fmt.Errorf("db not available")
	}
	var total int64
	if err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM loyalty_ledger WHERE phone = ?`, phone,
	).Scan(&total); err != nil {
		return 0, fmt.Errorf("loyalty balance: %w", err)
	}
	return total, nil
}
