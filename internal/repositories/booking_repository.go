package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	intconfig "busticket/internal/config"
	intdb "busticket/internal/db"
	"busticket/internal/domain"
	"busticket/internal/domain/models"
)

// BookingWriter is the write side of one booking-creation transaction.
type BookingWriter interface {
	InsertBooking(ctx context.Context, b *models.Booking) (int64, error)
	ClaimSeats(ctx context.Context, bookingID, tripID int64, seats []int) error
	InsertPassengers(ctx context.Context, bookingID int64, passengers []models.PassengerInput) error
	SetPaymentID(ctx context.Context, bookingID int64, paymentID string) error
	Commit() error
	Rollback() error
}

type BookingRepository struct {
	DB *sql.DB
}

func (r BookingRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

const bookingColumns = `b.id, b.reference, b.trip_id, b.base_price, b.fee, b.total_price, b.status,
	b.payment_method, COALESCE(b.payment_id, ''), b.contact_phone, b.contact_email,
	b.boarded_at, b.created_at, b.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (models.Booking, error) {
	var (
		b         models.Booking
		status    string
		method    string
		boardedAt sql.NullTime
	)
	if err := row.Scan(
		&b.ID, &b.Reference, &b.TripID, &b.BasePrice, &b.Fee, &b.TotalPrice, &status,
		&method, &b.PaymentID, &b.ContactPhone, &b.ContactEmail,
		&boardedAt, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return models.Booking{}, err
	}
	b.Status = domain.BookingStatus(status)
	b.PaymentMethod = domain.PaymentMethod(method)
	if boardedAt.Valid {
		t := boardedAt.Time
		b.BoardedAt = &t
	}
	return b, nil
}

func (r BookingRepository) getOne(ctx context.Context, where string, arg any) (models.Booking, error) {
	db := r.db()
	if db == nil {
		return models.Booking{}, fmt.Errorf("db not available")
	}
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE `+where+` LIMIT 1`, arg)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Booking{}, domain.NotFoundError{Resource: "booking", Err: err}
		}
		return models.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

func (r BookingRepository) GetByReference(ctx context.Context, reference string) (models.Booking, error) {
	return r.getOne(ctx, `b.reference = ?`, strings.ToUpper(strings.TrimSpace(reference)))
}

func (r BookingRepository) GetByPaymentID(ctx context.Context, paymentID string) (models.Booking, error) {
	return r.getOne(ctx, `b.payment_id = ?`, strings.TrimSpace(paymentID))
}

// GetManifest loads a booking by reference with trip, route, bus and
// passengers ordered by seat.
func (r BookingRepository) GetManifest(ctx context.Context, reference string) (models.Manifest, error) {
	b, err := r.GetByReference(ctx, reference)
	if err != nil {
		return models.Manifest{}, err
	}
	trip, err := TripsRepository{DB: r.db()}.GetTrip(ctx, b.TripID)
	if err != nil {
		return models.Manifest{}, err
	}

	rows, err := r.db().QueryContext(ctx, `
		SELECT id, booking_id, full_name, type, seat_number
		FROM passengers
		WHERE booking_id = ?
		ORDER BY seat_number ASC, id ASC`, b.ID)
	if err != nil {
		return models.Manifest{}, fmt.Errorf("passengers of booking %d: %w", b.ID, err)
	}
	defer rows.Close()

	passengers := []models.Passenger{}
	for rows.Next() {
		var (
			p   models.Passenger
			typ string
		)
		if err := rows.Scan(&p.ID, &p.BookingID, &p.FullName, &typ, &p.SeatNumber); err != nil {
			return models.Manifest{}, err
		}
		p.Type = domain.PassengerType(typ)
		passengers = append(passengers, p)
	}
	if err := rows.Err(); err != nil {
		return models.Manifest{}, err
	}
	return models.Manifest{Booking: b, Trip: trip, Passengers: passengers}, nil
}

// Begin opens a booking-creation transaction. Seat claims inserted through
// it hold the unique-index lock until Commit or Rollback.
func (r BookingRepository) Begin(ctx context.Context) (BookingWriter, error) {
	db := r.db()
	if db == nil {
		return nil, fmt.Errorf("db not available")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	return &BookingTx{tx: tx}, nil
}

// Transition moves a booking from one status to another only if it is
// currently in from. Leaving the active set releases the seat claims in the
// same transaction. changed is false when another writer got there first.
func (r BookingRepository) Transition(ctx context.Context, bookingID int64, from, to domain.BookingStatus) (bool, error) {
	if !from.CanTransition(to) {
		return false, domain.ValidationError{Field: "status", Msg: fmt.Sprintf("%s -> %s not allowed", from, to)}
	}
	return r.conditionalUpdate(ctx, bookingID, to,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), time.Now().UTC(), bookingID, string(from))
}

// Cancel moves any non-cancelled booking to CANCELLED.
func (r BookingRepository) Cancel(ctx context.Context, bookingID int64) (bool, error) {
	return r.conditionalUpdate(ctx, bookingID, domain.BookingCancelled,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status <> ?`,
		string(domain.BookingCancelled), time.Now().UTC(), bookingID, string(domain.BookingCancelled))
}

func (r BookingRepository) conditionalUpdate(ctx context.Context, bookingID int64, to domain.BookingStatus, stmt string, args ...any) (bool, error) {
	db := r.db()
	if db == nil {
		return false, fmt.Errorf("db not available")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transition tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("update booking %d status: %w", bookingID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if !to.Active() {
		if _, err := tx.ExecContext(ctx, `DELETE FROM booking_seats WHERE booking_id = ?`, bookingID); err != nil {
			return false, fmt.Errorf("release seats of booking %d: %w", bookingID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transition: %w", err)
	}
	return true, nil
}

// ListStalePending returns PENDING bookings created before cutoff, oldest first.
func (r BookingRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	db := r.db()
	if db == nil {
		return nil, fmt.Errorf("db not available")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings b
		WHERE b.status = ? AND b.created_at < ?
		ORDER BY b.created_at ASC
		LIMIT ?`, string(domain.BookingPending), cutoff.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending: %w", err)
	}
	defer rows.Close()

	out := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// MarkBoarded sets boarded_at once for a PAID booking.
func (r BookingRepository) MarkBoarded(ctx context.Context, bookingID int64, at time.Time) (bool, error) {
	db := r.db()
	if db == nil {
		return false, fmt.Errorf("db not available")
	}
	res, err := db.ExecContext(ctx, `UPDATE bookings SET boarded_at = ?
		WHERE id = ? AND status = ? AND boarded_at IS NULL`,
		at.UTC(), bookingID, string(domain.BookingPaid))
	if err != nil {
		return false, fmt.Errorf("mark booking %d boarded: %w", bookingID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// BookingTx implements BookingWriter over *sql.Tx.
type BookingTx struct {
	tx *sql.Tx
}

// InsertBooking returns ErrDuplicateReference when the reference is taken.
// MySQL rolls back only the failed statement, so the caller can retry with a
// new reference inside the same transaction.
func (t *BookingTx) InsertBooking(ctx context.Context, b *models.Booking) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO bookings
		(reference, trip_id, base_price, fee, total_price, status, payment_method, payment_id, contact_phone, contact_email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Reference, b.TripID, b.BasePrice, b.Fee, b.TotalPrice, string(b.Status),
		string(b.PaymentMethod), intdb.NullIfEmpty(b.PaymentID), b.ContactPhone, b.ContactEmail,
		b.CreatedAt, b.CreatedAt,
	)
	if err != nil {
		if duplicateKey(err, intdb.IndexBookingReference) {
			return 0, ErrDuplicateReference
		}
		return 0, fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	b.ID = id
	return id, nil
}

// ClaimSeats inserts one claim per seat, in ascending seat order so two
// overlapping claims always lock index entries in the same order. A duplicate
// on (trip_id, seat_number) is the authoritative conflict signal; a deadlock
// or lock wait timeout against another claim is reported the same way.
func (t *BookingTx) ClaimSeats(ctx context.Context, bookingID, tripID int64, seats []int) error {
	ordered := slices.Clone(seats)
	slices.Sort(ordered)
	for _, seat := range ordered {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO booking_seats (booking_id, trip_id, seat_number)
			VALUES (?, ?, ?)`, bookingID, tripID, seat)
		if err != nil {
			if duplicateKey(err, intdb.IndexTripSeat) || lockContention(err) {
				return domain.ConflictError{Resource: "seat", Seats: []int{seat}, Err: err}
			}
			return fmt.Errorf("claim seat %d: %w", seat, err)
		}
	}
	return nil
}

func (t *BookingTx) InsertPassengers(ctx context.Context, bookingID int64, passengers []models.PassengerInput) error {
	for _, p := range passengers {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO passengers (booking_id, full_name, type, seat_number)
			VALUES (?, ?, ?, ?)`, bookingID, p.FullName, string(p.Type), p.SeatNumber); err != nil {
			return fmt.Errorf("insert passenger seat %d: %w", p.SeatNumber, err)
		}
	}
	return nil
}

func (t *BookingTx) SetPaymentID(ctx context.Context, bookingID int64, paymentID string) error {
	if _, err := t.tx.ExecContext(ctx, `UPDATE bookings SET payment_id = ? WHERE id = ?`, paymentID, bookingID); err != nil {
		return fmt.Errorf("set payment id: %w", err)
	}
	return nil
}

func (t *BookingTx) Commit() error { return t.tx.Commit() }

// Rollback is safe to call after Commit.
func (t *BookingTx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
