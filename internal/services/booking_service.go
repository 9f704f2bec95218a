package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"busticket/internal/domain"
	"busticket/internal/domain/models"
	"busticket/internal/payment"
	"busticket/internal/repositories"
	"busticket/internal/utils"
)

// PassengerDraft is one passenger line as received from the booking form.
type PassengerDraft struct {
	FullName string
	Type     string
	SeatID   string
}

// BookingDraft is the unvalidated booking request.
type BookingDraft struct {
	TripID        int64
	Passengers    []PassengerDraft
	TotalPrice    int64
	PaymentMethod string
	Phone         string
	Email         string
}

type BookingConfig struct {
	FeeBps               int64
	ReferenceMaxAttempts int
}

// ReferenceSource issues candidate booking references.
type ReferenceSource interface {
	New() (string, error)
}

type BookingService struct {
	Trips      TripStore
	Seats      SeatStore
	Bookings   BookingStore
	Providers  ProviderSource
	References ReferenceSource
	Payments   *PaymentService
	Config     BookingConfig
	RequestID  string
	Now        func() time.Time
}

func (s BookingService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return utils.NowUTC()
}

func (s BookingService) maxAttempts() int {
	if s.Config.ReferenceMaxAttempts > 0 {
		return s.Config.ReferenceMaxAttempts
	}
	return 5
}

// NormalizeBooking validates the shape of a draft. It never touches storage.
func NormalizeBooking(d BookingDraft) (models.BookingRequest, error) {
	if d.TripID <= 0 {
		return models.BookingRequest{}, domain.ValidationError{Field: "tripId", Msg: "required"}
	}
	if len(d.Passengers) == 0 {
		return models.BookingRequest{}, domain.ValidationError{Field: "passengers", Msg: "at least one passenger required"}
	}
	if d.TotalPrice <= 0 {
		return models.BookingRequest{}, domain.ValidationError{Field: "totalPrice", Msg: "required"}
	}
	method, ok := domain.ParsePaymentMethod(d.PaymentMethod)
	if !ok {
		return models.BookingRequest{}, domain.ValidationError{Field: "paymentMethod", Msg: fmt.Sprintf("unknown method %q", d.PaymentMethod)}
	}
	phone := utils.NormalizePhone(d.Phone)
	if method.Async() && phone == "" {
		return models.BookingRequest{}, domain.ValidationError{Field: "contactInfo.phone", Msg: "required for mobile money"}
	}

	req := models.BookingRequest{
		TripID:        d.TripID,
		TotalPrice:    d.TotalPrice,
		PaymentMethod: method,
		Phone:         phone,
		Email:         strings.ToLower(utils.TrimOrEmpty(d.Email)),
	}
	for i, p := range d.Passengers {
		name := utils.NormalizeSpace(p.FullName)
		if name == "" {
			return models.BookingRequest{}, domain.ValidationError{Field: fmt.Sprintf("passengers[%d].fullName", i), Msg: "required"}
		}
		seat, err := utils.ParseSeatNumber(p.SeatID)
		if err != nil {
			return models.BookingRequest{}, domain.ValidationError{Field: fmt.Sprintf("passengers[%d].seatId", i), Msg: err.Error(), Err: err}
		}
		req.Passengers = append(req.Passengers, models.PassengerInput{
			FullName:   name,
			Type:       domain.ParsePassengerType(p.Type),
			SeatNumber: seat,
		})
	}
	return req, nil
}

// CreateBooking claims the seats and, for mobile money, initiates the payment
// inside one transaction. Nothing is persisted unless every step succeeds.
func (s BookingService) CreateBooking(ctx context.Context, draft BookingDraft) (models.BookingResult, error) {
	req, err := NormalizeBooking(draft)
	if err != nil {
		return models.BookingResult{}, err
	}

	trip, err := s.Trips.GetTrip(ctx, req.TripID)
	if err != nil {
		return models.BookingResult{}, err
	}
	if trip.Status != domain.TripScheduled {
		return models.BookingResult{}, domain.ValidationError{Field: "tripId", Msg: "trip is not open for booking"}
	}
	seats := req.Seats()
	for _, n := range seats {
		if trip.Bus.Capacity > 0 && n > trip.Bus.Capacity {
			return models.BookingResult{}, domain.ValidationError{Field: "passengers", Msg: fmt.Sprintf("seat %d exceeds bus capacity %d", n, trip.Bus.Capacity)}
		}
	}

	if err := (SeatGuard{Seats: s.Seats}).Check(ctx, trip.ID, seats); err != nil {
		return models.BookingResult{}, err
	}

	base := trip.BasePrice * int64(len(req.Passengers))
	fee, final := utils.ApplySurcharge(base, s.Config.FeeBps, req.PaymentMethod.Async())
	if req.TotalPrice != final {
		utils.Log().Warn("client total differs from computed price",
			zap.String("request_id", s.RequestID),
			zap.Int64("trip_id", trip.ID),
			zap.Int64("client_total", req.TotalPrice),
			zap.Int64("computed_total", final),
		)
	}

	var provider payment.Provider
	if req.PaymentMethod.Async() {
		if provider, err = s.Providers.Get(req.PaymentMethod); err != nil {
			return models.BookingResult{}, err
		}
		if req.Phone, err = provider.ValidatePhone(req.Phone); err != nil {
			return models.BookingResult{}, err
		}
	}

	status := domain.BookingPaid
	if provider != nil {
		status = domain.BookingPending
	}
	booking := models.Booking{
		TripID:        trip.ID,
		BasePrice:     base,
		Fee:           fee,
		TotalPrice:    final,
		Status:        status,
		PaymentMethod: req.PaymentMethod,
		ContactPhone:  req.Phone,
		ContactEmail:  req.Email,
		CreatedAt:     s.now(),
	}

	tx, err := s.Bookings.Begin(ctx)
	if err != nil {
		return models.BookingResult{}, domain.InternalError{Msg: "begin booking", Err: err}
	}
	defer tx.Rollback()

	if err := s.insertWithReference(ctx, tx, &booking); err != nil {
		return models.BookingResult{}, err
	}
	if err := tx.ClaimSeats(ctx, booking.ID, trip.ID, seats); err != nil {
		return models.BookingResult{}, err
	}
	if err := tx.InsertPassengers(ctx, booking.ID, req.Passengers); err != nil {
		return models.BookingResult{}, domain.InternalError{Msg: "insert passengers", Err: err}
	}

	if provider != nil {
		init, err := provider.InitiatePayment(ctx, final, req.Phone, booking.Reference)
		if err != nil {
			utils.Log().Warn("payment initiation failed",
				zap.String("request_id", s.RequestID),
				zap.String("reference", booking.Reference),
				zap.String("method", string(req.PaymentMethod)),
				zap.Error(err),
			)
			if domain.IsValidation(err) {
				return models.BookingResult{}, err
			}
			return models.BookingResult{}, domain.PaymentGatewayError{Provider: string(req.PaymentMethod), Err: err}
		}
		booking.PaymentID = init.TransactionID
		if err := tx.SetPaymentID(ctx, booking.ID, booking.PaymentID); err != nil {
			s.logOrphanedPayment(booking, err)
			return models.BookingResult{}, domain.InternalError{Msg: "store payment id", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		s.logOrphanedPayment(booking, err)
		return models.BookingResult{}, domain.InternalError{Msg: "commit booking", Err: err}
	}

	utils.LogEvent(s.RequestID, "booking", "create",
		"reference="+booking.Reference+" status="+string(booking.Status)+" seats="+joinInts(seats))

	if s.Payments != nil {
		if booking.Status == domain.BookingPaid {
			s.Payments.AfterPaid(ctx, booking)
		} else {
			s.Payments.Watch(booking)
		}
	}

	return models.BookingResult{
		BookingID:  booking.ID,
		Reference:  booking.Reference,
		Status:     booking.Status,
		PaymentID:  booking.PaymentID,
		TotalPrice: booking.TotalPrice,
		Fee:        booking.Fee,
	}, nil
}

// insertWithReference retries reference collisions inside the transaction.
func (s BookingService) insertWithReference(ctx context.Context, tx repositories.BookingWriter, b *models.Booking) error {
	for attempt := 1; attempt <= s.maxAttempts(); attempt++ {
		ref, err := s.References.New()
		if err != nil {
			return domain.InternalError{Msg: "generate reference", Err: err}
		}
		b.Reference = ref
		_, err = tx.InsertBooking(ctx, b)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repositories.ErrDuplicateReference) {
			return domain.InternalError{Msg: "insert booking", Err: err}
		}
		utils.Log().Info("booking reference collision",
			zap.String("request_id", s.RequestID),
			zap.String("reference", ref),
			zap.Int("attempt", attempt),
		)
	}
	utils.Log().Error("booking reference space exhausted",
		zap.String("request_id", s.RequestID),
		zap.Int("attempts", s.maxAttempts()),
	)
	return domain.InternalError{Msg: "reference space exhausted"}
}

func (s BookingService) GetBooking(ctx context.Context, reference string) (models.Manifest, error) {
	ref := strings.ToUpper(utils.TrimOrEmpty(reference))
	if ref == "" {
		return models.Manifest{}, domain.ValidationError{Field: "reference", Msg: "required"}
	}
	return s.Bookings.GetManifest(ctx, ref)
}

// CancelBooking cancels any booking not already cancelled and frees its
// seats. Cancelling twice returns the current state.
func (s BookingService) CancelBooking(ctx context.Context, reference string) (models.Booking, error) {
	b, err := s.Bookings.GetByReference(ctx, reference)
	if err != nil {
		return models.Booking{}, err
	}
	if b.Status == domain.BookingCancelled {
		return b, nil
	}
	changed, err := s.Bookings.Cancel(ctx, b.ID)
	if err != nil {
		return models.Booking{}, err
	}
	if changed {
		utils.LogEvent(s.RequestID, "booking", "cancel", "reference="+b.Reference+" from="+string(b.Status))
	}
	return s.Bookings.GetByReference(ctx, b.Reference)
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// logOrphanedPayment records a request-to-pay the provider accepted for a
// booking that was then rolled back, so it can be reconciled by hand.
func (s BookingService) logOrphanedPayment(b models.Booking, err error) {
	if b.PaymentID == "" {
		return
	}
	utils.Log().Error("payment initiated but booking not stored",
		zap.String("request_id", s.RequestID),
		zap.String("reference", b.Reference),
		zap.String("method", string(b.PaymentMethod)),
		zap.String("transaction_id", b.PaymentID),
		zap.Int64("amount", b.TotalPrice),
		zap.Error(err),
	)
}
