package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busticket/internal/domain"
	"busticket/internal/domain/models"
	"busticket/internal/http/middleware"
	"busticket/internal/payment"
	"busticket/internal/repositories"
	"busticket/internal/services"
	"busticket/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeStore keeps bookings in memory and rejects a second claim on a seat.
type fakeStore struct {
	mu       sync.Mutex
	trip     models.Trip
	bookings map[string]*models.Booking
	byPay    map[string]string
	seats    map[int]string
	pax      map[string][]models.Passenger
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		trip: models.Trip{
			ID:          1,
			DepartureAt: time.Date(2026, 5, 2, 7, 30, 0, 0, time.UTC),
			BasePrice:   9000,
			Status:      domain.TripScheduled,
			Route:       models.Route{ID: 1, Origin: "Brazzaville", Destination: "Pointe-Noire"},
			Bus:         models.Bus{ID: 1, PlateNumber: "BZ-123-AA", Name: "Ocean Express", Capacity: 50},
		},
		bookings: map[string]*models.Booking{},
		byPay:    map[string]string{},
		seats:    map[int]string{},
		pax:      map[string][]models.Passenger{},
	}
}

func (s *fakeStore) GetTrip(ctx context.Context, id int64) (models.Trip, error) {
	if id != s.trip.ID {
		return models.Trip{}, domain.NotFoundError{Resource: "trip"}
	}
	return s.trip, nil
}

func (s *fakeStore) OccupiedSeats(ctx context.Context, tripID int64) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []int{}
	for n := 1; n <= s.trip.Bus.Capacity; n++ {
		if _, ok := s.seats[n]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *fakeStore) Begin(ctx context.Context) (repositories.BookingWriter, error) {
	return &fakeTx{s: s}, nil
}

func (s *fakeStore) GetByReference(ctx context.Context, ref string) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[ref]
	if !ok {
		return models.Booking{}, domain.NotFoundError{Resource: "booking"}
	}
	return *b, nil
}

func (s *fakeStore) GetByPaymentID(ctx context.Context, id string) (models.Booking, error) {
	s.mu.Lock()
	ref := s.byPay[id]
	s.mu.Unlock()
	return s.GetByReference(ctx, ref)
}

func (s *fakeStore) GetManifest(ctx context.Context, ref string) (models.Manifest, error) {
	b, err := s.GetByReference(ctx, ref)
	if err != nil {
		return models.Manifest{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.Manifest{Booking: b, Trip: s.trip, Passengers: s.pax[ref]}, nil
}

func (s *fakeStore) find(id int64) *models.Booking {
	for _, b := range s.bookings {
		if b.ID == id {
			return b
		}
	}
	return nil
}

func (s *fakeStore) Transition(ctx context.Context, id int64, from, to domain.BookingStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.find(id)
	if b == nil || b.Status != from {
		return false, nil
	}
	b.Status = to
	if !to.Active() {
		s.release(b.Reference)
	}
	return true, nil
}

func (s *fakeStore) release(ref string) {
	for n, owner := range s.seats {
		if owner == ref {
			delete(s.seats, n)
		}
	}
}

func (s *fakeStore) Cancel(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.find(id)
	if b == nil || b.Status == domain.BookingCancelled {
		return false, nil
	}
	b.Status = domain.BookingCancelled
	s.release(b.Reference)
	return true, nil
}

func (s *fakeStore) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	return nil, nil
}

func (s *fakeStore) MarkBoarded(ctx context.Context, id int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.find(id)
	if b == nil || b.Status != domain.BookingPaid || b.BoardedAt != nil {
		return false, nil
	}
	b.BoardedAt = &at
	return true, nil
}

type fakeTx struct {
	s       *fakeStore
	booking models.Booking
	pax     []models.Passenger
	claimed []int
	done    bool
}

func (t *fakeTx) InsertBooking(ctx context.Context, b *models.Booking) (int64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.bookings[b.Reference]; ok {
		return 0, repositories.ErrDuplicateReference
	}
	t.s.nextID++
	b.ID = t.s.nextID
	t.booking = *b
	return b.ID, nil
}

func (t *fakeTx) ClaimSeats(ctx context.Context, bookingID, tripID int64, seats []int) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, n := range seats {
		if _, ok := t.s.seats[n]; ok {
			return domain.ConflictError{Resource: "seat", Seats: []int{n}}
		}
		t.s.seats[n] = t.booking.Reference
		t.claimed = append(t.claimed, n)
	}
	return nil
}

func (t *fakeTx) InsertPassengers(ctx context.Context, bookingID int64, ps []models.PassengerInput) error {
	for _, p := range ps {
		t.pax = append(t.pax, models.Passenger{BookingID: bookingID, FullName: p.FullName, Type: p.Type, SeatNumber: p.SeatNumber})
	}
	return nil
}

func (t *fakeTx) SetPaymentID(ctx context.Context, bookingID int64, paymentID string) error {
	t.booking.PaymentID = paymentID
	return nil
}

func (t *fakeTx) Commit() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.done = true
	b := t.booking
	t.s.bookings[b.Reference] = &b
	if b.PaymentID != "" {
		t.s.byPay[b.PaymentID] = b.Reference
	}
	t.s.pax[b.Reference] = t.pax
	return nil
}

func (t *fakeTx) Rollback() error {
	if t.done {
		return nil
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.done = true
	for _, n := range t.claimed {
		delete(t.s.seats, n)
	}
	return nil
}

type fakeAgents struct{ agent models.Agent }

func (a fakeAgents) GetByEmail(ctx context.Context, email string) (models.Agent, error) {
	if email != a.agent.Email {
		return models.Agent{}, domain.NotFoundError{Resource: "agent"}
	}
	return a.agent, nil
}

func (a fakeAgents) Create(ctx context.Context, ag models.Agent) (int64, error) { return 2, nil }

type testServer struct {
	store  *fakeStore
	mtn    *payment.SandboxProvider
	auth   services.AuthService
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := newFakeStore()
	mtn := payment.NewSandboxProvider(domain.PaymentMTN)
	registry := payment.NewRegistry(mtn, payment.NewSandboxProvider(domain.PaymentAirtel))
	payments := &services.PaymentService{
		Bookings:  store,
		Providers: registry,
		Config:    services.PaymentConfig{PollInterval: 5 * time.Millisecond, PollTimeout: 50 * time.Millisecond, LoyaltyPerPoint: 100},
	}
	refs := utils.NewReferenceGenerator("ODN")
	auth := services.AuthService{
		Agents: fakeAgents{agent: models.Agent{ID: 7, Email: "agent@example.com", Role: services.RoleAgent}},
		Secret: []byte("test-secret"),
	}
	h := &Handlers{
		Bookings: services.BookingService{
			Trips:      store,
			Seats:      store,
			Bookings:   store,
			Providers:  registry,
			References: refs,
			Config:     services.BookingConfig{FeeBps: 200, ReferenceMaxAttempts: 5},
		},
		Payments:     payments,
		Verification: services.VerificationService{Bookings: store, References: refs},
		Auth:         auth,
		Seats:        services.SeatGuard{Seats: store},
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.POST("/bookings", h.CreateBooking)
	r.GET("/bookings/:reference", h.GetBooking)
	r.GET("/bookings/:reference/ticket", h.TicketPayload)
	r.GET("/bookings/:reference/ticket.pdf", h.TicketPDF)
	r.GET("/payment/check", h.CheckPayment)
	r.GET("/payment/await", h.AwaitPayment)
	r.POST("/payment/callback/:provider", h.PaymentCallback)
	r.GET("/trips/:id/seats", h.TripSeats)
	admin := r.Group("/admin", middleware.RequireAuth(auth), middleware.RequireRoles(services.RoleAgent, services.RoleAdmin))
	admin.POST("/verify-ticket", h.VerifyTicket)
	admin.POST("/bookings/:reference/cancel", h.CancelBooking)
	admin.GET("/workers/expiry", h.ExpiryWorkerStats)

	return &testServer{store: store, mtn: mtn, auth: auth, engine: r}
}

func (s *testServer) do(t *testing.T, method, path, body string, header ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	out := map[string]any{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func (s *testServer) token(t *testing.T) string {
	t.Helper()
	tok, err := s.auth.Issue(models.Agent{ID: 7, Role: services.RoleAgent})
	require.NoError(t, err)
	return "Bearer " + tok
}

const cashBody = `{"tripId":"1","passengers":[{"fullName":"Mireille Okemba","type":"adult","seatId":5}],"totalPrice":9000,"paymentMethod":"cash","contactInfo":{"phone":"061234567"}}`

func TestCreateBookingAcceptsNumbersOrStrings(t *testing.T) {
	s := newTestServer(t)
	w, body := s.do(t, http.MethodPost, "/bookings", cashBody)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "PAID", body["status"])
	assert.Regexp(t, `^ODN-[A-Z2-9]{4}$`, body["reference"])
	assert.EqualValues(t, 9000, body["totalPrice"])
}

func TestCreateBookingMobileMoneyReturnsPaymentID(t *testing.T) {
	s := newTestServer(t)
	w, body := s.do(t, http.MethodPost, "/bookings",
		`{"tripId":1,"passengers":[{"fullName":"Jean","type":"adult","seatId":"3"}],"totalPrice":9180,"paymentMethod":"mtn","contactInfo":{"phone":"+242061234567"}}`)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "PENDING", body["status"])
	assert.NotEmpty(t, body["paymentId"])
	assert.EqualValues(t, 180, body["fee"])

	s.mtn.Settle(body["paymentId"].(string), domain.ProviderSuccessful)
	w, check := s.do(t, http.MethodGet, "/payment/check?ref="+body["paymentId"].(string), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SUCCESSFUL", check["status"])
	assert.Equal(t, body["reference"], check["reference"])
}

func TestCreateBookingErrorStatuses(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(t, http.MethodPost, "/bookings", cashBody)
	require.Equal(t, http.StatusCreated, w.Code)

	cases := []struct {
		name string
		body string
		code int
	}{
		{"empty body", "", http.StatusBadRequest},
		{"malformed", `{"tripId":`, http.StatusBadRequest},
		{"no passengers", `{"tripId":1,"passengers":[],"totalPrice":9000,"paymentMethod":"cash"}`, http.StatusBadRequest},
		{"unknown trip", `{"tripId":42,"passengers":[{"fullName":"A","seatId":1}],"totalPrice":9000,"paymentMethod":"cash"}`, http.StatusNotFound},
		{"seat taken", cashBody, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := s.do(t, http.MethodPost, "/bookings", tc.body)
			assert.Equal(t, tc.code, w.Code, w.Body.String())
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["request_id"])
		})
	}

	_, body := s.do(t, http.MethodPost, "/bookings", cashBody)
	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{float64(5)}, details["seats"])
}

func TestCreateBookingProviderFailureIs502(t *testing.T) {
	s := newTestServer(t)
	s.mtn.FailInitiate = errors.New("upstream 500")
	w, body := s.do(t, http.MethodPost, "/bookings",
		`{"tripId":1,"passengers":[{"fullName":"Jean","seatId":"3"}],"totalPrice":9180,"paymentMethod":"mtn","contactInfo":{"phone":"061234567"}}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "payment_provider_error", body["code"])

	_, seats := s.do(t, http.MethodGet, "/trips/1/seats", "")
	assert.Empty(t, seats["occupied"])
}

func TestGetBookingAndTicket(t *testing.T) {
	s := newTestServer(t)
	_, created := s.do(t, http.MethodPost, "/bookings", cashBody)
	ref := created["reference"].(string)

	w, body := s.do(t, http.MethodGet, "/bookings/"+strings.ToLower(ref), "")
	require.Equal(t, http.StatusOK, w.Code)
	booking := body["booking"].(map[string]any)
	assert.Equal(t, ref, booking["reference"])
	assert.Equal(t, "Brazzaville", booking["trip"].(map[string]any)["origin"])

	first, _ := s.do(t, http.MethodGet, "/bookings/"+ref+"/ticket", "")
	second, _ := s.do(t, http.MethodGet, "/bookings/"+ref+"/ticket", "")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())

	pdf, _ := s.do(t, http.MethodGet, "/bookings/"+ref+"/ticket.pdf", "")
	require.Equal(t, http.StatusOK, pdf.Code)
	assert.Equal(t, "application/pdf", pdf.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(pdf.Body.String(), "%PDF"))

	w, _ = s.do(t, http.MethodGet, "/bookings/ODN-ZZZZ", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckPaymentRequiresRef(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(t, http.MethodGet, "/payment/check", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodGet, "/payment/check?ref=missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAwaitPaymentExpires(t *testing.T) {
	s := newTestServer(t)
	_, created := s.do(t, http.MethodPost, "/bookings",
		`{"tripId":1,"passengers":[{"fullName":"Jean","seatId":"8"}],"totalPrice":9180,"paymentMethod":"mtn","contactInfo":{"phone":"061234567"}}`)

	w, body := s.do(t, http.MethodGet, "/payment/await?ref="+created["paymentId"].(string), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.PollExpired, body["status"])
}

func TestPaymentCallbackRechecks(t *testing.T) {
	s := newTestServer(t)
	_, created := s.do(t, http.MethodPost, "/bookings",
		`{"tripId":1,"passengers":[{"fullName":"Jean","seatId":"9"}],"totalPrice":9180,"paymentMethod":"mtn","contactInfo":{"phone":"061234567"}}`)
	paymentID := created["paymentId"].(string)
	s.mtn.Settle(paymentID, domain.ProviderFailed)

	w, body := s.do(t, http.MethodPost, "/payment/callback/mtn", `{"referenceId":"`+paymentID+`","status":"SUCCESSFUL"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "FAILED", body["status"], "provider answer wins over the payload")

	w, _ = s.do(t, http.MethodPost, "/payment/callback/mtn", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTripSeatsRejectsBadID(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(t, http.MethodGet, "/trips/abc/seats", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(t, http.MethodPost, "/admin/verify-ticket", `{"reference":"ODN-AAAA"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodPost, "/admin/verify-ticket", `{"reference":"ODN-AAAA"}`, "Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVerifyTicketAndBoard(t *testing.T) {
	s := newTestServer(t)
	_, created := s.do(t, http.MethodPost, "/bookings", cashBody)
	ref := created["reference"].(string)
	auth := s.token(t)

	w, body := s.do(t, http.MethodPost, "/admin/verify-ticket", `{"scanned":"TICKET:`+strings.ToLower(ref)+`"}`, "Authorization", auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, body["boarded"])

	_, body = s.do(t, http.MethodPost, "/admin/verify-ticket", `{"reference":"`+ref+`","board":true}`, "Authorization", auth)
	assert.Equal(t, true, body["boarded"])
	_, body = s.do(t, http.MethodPost, "/admin/verify-ticket", `{"reference":"`+ref+`","board":true}`, "Authorization", auth)
	assert.Equal(t, true, body["alreadyBoarded"])

	w, _ = s.do(t, http.MethodPost, "/admin/verify-ticket", `{"reference":"garbage"}`, "Authorization", auth)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminCancelReleasesSeat(t *testing.T) {
	s := newTestServer(t)
	_, created := s.do(t, http.MethodPost, "/bookings", cashBody)
	ref := created["reference"].(string)

	w, body := s.do(t, http.MethodPost, "/admin/bookings/"+ref+"/cancel", "", "Authorization", s.token(t))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CANCELLED", body["status"])

	w, _ = s.do(t, http.MethodPost, "/bookings", cashBody)
	assert.Equal(t, http.StatusCreated, w.Code)

	w, _ = s.do(t, http.MethodGet, "/admin/workers/expiry", "", "Authorization", s.token(t))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFlexIntRejectsFractions(t *testing.T) {
	var v flexInt
	require.NoError(t, json.Unmarshal([]byte(`"12"`), &v))
	assert.EqualValues(t, 12, v)
	require.NoError(t, json.Unmarshal([]byte(`7.0`), &v))
	assert.EqualValues(t, 7, v)
	assert.Error(t, json.Unmarshal([]byte(`7.5`), &v))
}

type ledger map[string]int64

func (l ledger) Balance(ctx context.Context, phone string) (int64, error) { return l[phone], nil }

func TestLoyaltyBalanceNormalizesPhone(t *testing.T) {
	h := &Handlers{Loyalty: ledger{"061234567": 91}}
	r := gin.New()
	r.GET("/admin/loyalty/:phone", h.LoyaltyBalance)

	req := httptest.NewRequest(http.MethodGet, "/admin/loyalty/+242061234567", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"phone":"061234567","points":91}`, w.Body.String())
}
