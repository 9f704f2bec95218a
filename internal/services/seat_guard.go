package services

import (
	"context"

	"busticket/internal/domain"
	"busticket/internal/utils"
)

// SeatGuard is the advisory availability check run before any write. The
// unique index on booking_seats stays the binding one.
type SeatGuard struct {
	Seats SeatStore
}

// Check returns a ConflictError naming every requested seat already taken.
func (g SeatGuard) Check(ctx context.Context, tripID int64, seats []int) error {
	if dup := utils.DuplicateInts(seats); len(dup) > 0 {
		return domain.ValidationError{Field: "passengers", Msg: "seat requested twice: " + joinInts(dup)}
	}
	occupied, err := g.Seats.OccupiedSeats(ctx, tripID)
	if err != nil {
		return err
	}
	taken := make(map[int]bool, len(occupied))
	for _, s := range occupied {
		taken[s] = true
	}
	if conflict := utils.IntersectInts(seats, taken); len(conflict) > 0 {
		return domain.ConflictError{Resource: "seat", Seats: conflict}
	}
	return nil
}

func (g SeatGuard) Occupied(ctx context.Context, tripID int64) ([]int, error) {
	if tripID <= 0 {
		return nil, domain.ValidationError{Field: "tripId", Msg: "must be positive"}
	}
	return g.Seats.OccupiedSeats(ctx, tripID)
}
