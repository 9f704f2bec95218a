package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"busticket/internal/domain"
	"busticket/internal/domain/models"
	"busticket/internal/repositories"
	"busticket/internal/utils"
)

type seatKey struct {
	trip int64
	seat int
}

// memStore mimics the MySQL schema: seat claims are unique per trip and
// become visible to other writers as soon as they are inserted.
type memStore struct {
	mu         sync.Mutex
	nextID     int64
	trips      map[int64]models.Trip
	bookings   map[int64]*models.Booking
	refs       map[string]int64
	payments   map[string]int64
	seats      map[seatKey]int64
	passengers map[int64][]models.Passenger
	taken      map[string]bool
	paidMoves  int
	commitErr  error
}

func newMemStore(trips ...models.Trip) *memStore {
	s := &memStore{
		trips:      map[int64]models.Trip{},
		bookings:   map[int64]*models.Booking{},
		refs:       map[string]int64{},
		payments:   map[string]int64{},
		seats:      map[seatKey]int64{},
		passengers: map[int64][]models.Passenger{},
		taken:      map[string]bool{},
	}
	for _, t := range trips {
		s.trips[t.ID] = t
	}
	return s
}

func testTrip(id, price int64) models.Trip {
	return models.Trip{
		ID:          id,
		DepartureAt: time.Date(2026, 5, 2, 7, 30, 0, 0, time.UTC),
		BasePrice:   price,
		Status:      domain.TripScheduled,
		Route:       models.Route{ID: 1, Origin: "Brazzaville", Destination: "Pointe-Noire"},
		Bus:         models.Bus{ID: 1, PlateNumber: "BZ-123-AA", Name: "Ocean Express", Capacity: 50},
	}
}

func (s *memStore) GetTrip(ctx context.Context, id int64) (models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[id]
	if !ok {
		return models.Trip{}, domain.NotFoundError{Resource: "trip"}
	}
	return t, nil
}

func (s *memStore) OccupiedSeats(ctx context.Context, tripID int64) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []int{}
	for k, id := range s.seats {
		if k.trip != tripID {
			continue
		}
		if b, ok := s.bookings[id]; ok && b.Status.Active() {
			out = append(out, k.seat)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (s *memStore) Begin(ctx context.Context) (repositories.BookingWriter, error) {
	return &memTx{store: s}, nil
}

func (s *memStore) get(id int64) (models.Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return models.Booking{}, domain.NotFoundError{Resource: "booking"}
	}
	return *b, nil
}

func (s *memStore) GetByReference(ctx context.Context, reference string) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(s.refs[reference])
}

func (s *memStore) GetByPaymentID(ctx context.Context, paymentID string) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(s.payments[paymentID])
}

func (s *memStore) GetManifest(ctx context.Context, reference string) (models.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.get(s.refs[reference])
	if err != nil {
		return models.Manifest{}, err
	}
	ps := append([]models.Passenger(nil), s.passengers[b.ID]...)
	sort.Slice(ps, func(i, j int) bool { return ps[i].SeatNumber < ps[j].SeatNumber })
	return models.Manifest{Booking: b, Trip: s.trips[b.TripID], Passengers: ps}, nil
}

func (s *memStore) release(id int64) {
	for k, owner := range s.seats {
		if owner == id {
			delete(s.seats, k)
		}
	}
}

func (s *memStore) Transition(ctx context.Context, id int64, from, to domain.BookingStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	if to == domain.BookingPaid {
		s.paidMoves++
	}
	if !to.Active() {
		s.release(id)
	}
	return true, nil
}

func (s *memStore) Cancel(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.Status == domain.BookingCancelled {
		return false, nil
	}
	b.Status = domain.BookingCancelled
	s.release(id)
	return true, nil
}

func (s *memStore) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Booking{}
	for _, b := range s.bookings {
		if b.Status == domain.BookingPending && b.CreatedAt.Before(cutoff) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) MarkBoarded(ctx context.Context, id int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.Status != domain.BookingPaid || b.BoardedAt != nil {
		return false, nil
	}
	b.BoardedAt = &at
	return true, nil
}

// status reads a booking status under the lock.
func (s *memStore) status(reference string) domain.BookingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bookings[s.refs[reference]]; ok {
		return b.Status
	}
	return ""
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

func (s *memStore) seatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seats)
}

type memTx struct {
	store      *memStore
	booking    *models.Booking
	passengers []models.Passenger
	claimed    []seatKey
	done       bool
}

func (t *memTx) InsertBooking(ctx context.Context, b *models.Booking) (int64, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.refs[b.Reference]; ok || s.taken[b.Reference] {
		return 0, repositories.ErrDuplicateReference
	}
	s.nextID++
	b.ID = s.nextID
	cp := *b
	t.booking = &cp
	return b.ID, nil
}

func (t *memTx) ClaimSeats(ctx context.Context, bookingID, tripID int64, seats []int) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range seats {
		k := seatKey{trip: tripID, seat: n}
		if _, ok := s.seats[k]; ok {
			return domain.ConflictError{Resource: "seat", Seats: []int{n}}
		}
		s.seats[k] = bookingID
		t.claimed = append(t.claimed, k)
	}
	return nil
}

func (t *memTx) InsertPassengers(ctx context.Context, bookingID int64, ps []models.PassengerInput) error {
	for _, p := range ps {
		t.passengers = append(t.passengers, models.Passenger{BookingID: bookingID, FullName: p.FullName, Type: p.Type, SeatNumber: p.SeatNumber})
	}
	return nil
}

func (t *memTx) SetPaymentID(ctx context.Context, bookingID int64, paymentID string) error {
	t.booking.PaymentID = paymentID
	return nil
}

func (t *memTx) Commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return s.commitErr
	}
	t.done = true
	b := t.booking
	s.bookings[b.ID] = b
	s.refs[b.Reference] = b.ID
	if b.PaymentID != "" {
		s.payments[b.PaymentID] = b.ID
	}
	s.passengers[b.ID] = t.passengers
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	t.done = true
	for _, k := range t.claimed {
		delete(s.seats, k)
	}
	return nil
}

type memLoyalty struct {
	mu      sync.Mutex
	credits map[int64]int64
	calls   int
}

func (l *memLoyalty) Credit(ctx context.Context, bookingID int64, phone string, points int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.credits == nil {
		l.credits = map[int64]int64{}
	}
	if _, ok := l.credits[bookingID]; ok {
		return false, nil
	}
	l.credits[bookingID] = points
	return true, nil
}

func (l *memLoyalty) total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.credits)
}

type memDispatcher struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (d *memDispatcher) Dispatch(ctx context.Context, n models.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
	return nil
}

func (d *memDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

// scriptedRefs returns the queued references first, then random ones.
type scriptedRefs struct {
	mu   sync.Mutex
	next []string
	gen  utils.ReferenceGenerator
}

func (r *scriptedRefs) New() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.next) > 0 {
		ref := r.next[0]
		r.next = r.next[1:]
		return ref, nil
	}
	return r.gen.New()
}
