package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busticket/internal/domain"
)

func TestGetTripJoinsRouteAndBus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	dep := time.Date(2026, 5, 2, 7, 30, 0, 0, time.UTC)
	mock.ExpectQuery("FROM trips t").WithArgs(int64(3)).WillReturnRows(
		sqlmock.NewRows([]string{"id", "departure_at", "base_price", "status", "rid", "origin", "destination", "bid", "plate", "name", "capacity"}).
			AddRow(3, dep, 9000, "SCHEDULED", 1, "Brazzaville", "Pointe-Noire", 2, "BZ-123-AA", "Ocean Express", 50),
	)

	trip, err := TripsRepository{DB: db}.GetTrip(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), trip.BasePrice)
	assert.Equal(t, "Pointe-Noire", trip.Route.Destination)
	assert.Equal(t, 50, trip.Bus.Capacity)
	assert.True(t, trip.DepartureAt.Equal(dep))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTripMissingIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM trips t").WithArgs(int64(9)).WillReturnError(sql.ErrNoRows)

	_, err = TripsRepository{DB: db}.GetTrip(context.Background(), 9)
	assert.True(t, domain.IsNotFound(err))

	_, err = TripsRepository{DB: db}.GetTrip(context.Background(), 0)
	assert.True(t, domain.IsValidation(err))
}
