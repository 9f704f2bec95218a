package services

import (
	"context"
	"strings"
	"time"

	"busticket/internal/domain"
	"busticket/internal/domain/models"
	"busticket/internal/utils"
)

// Verification is the outcome of scanning a ticket.
type Verification struct {
	Manifest       models.Manifest
	Boarded        bool
	AlreadyBoarded bool
}

// ReferenceExtractor finds a booking reference inside scanned text.
type ReferenceExtractor interface {
	Extract(scanned string) (string, bool)
}

type VerificationService struct {
	Bookings   BookingStore
	References ReferenceExtractor
	RequestID  string
	Now        func() time.Time
}

// ExtractReference returns the first reference found in scanned, upper-cased,
// or the trimmed input when none matches.
func (s VerificationService) ExtractReference(scanned string) string {
	if s.References != nil {
		if ref, ok := s.References.Extract(scanned); ok {
			return ref
		}
	}
	return strings.TrimSpace(scanned)
}

// Verify looks the ticket up. With board set, a PAID booking is marked as
// boarded once; later scans report AlreadyBoarded.
func (s VerificationService) Verify(ctx context.Context, scanned string, board bool) (Verification, error) {
	ref := s.ExtractReference(scanned)
	if ref == "" {
		return Verification{}, domain.NotFoundError{Resource: "ticket"}
	}
	m, err := s.Bookings.GetManifest(ctx, ref)
	if err != nil {
		return Verification{}, err
	}
	out := Verification{Manifest: m}
	if !board {
		return out, nil
	}

	if m.Booking.Status != domain.BookingPaid {
		return Verification{}, domain.ConflictError{Resource: "booking", Msg: "cannot board a " + strings.ToLower(string(m.Booking.Status)) + " booking"}
	}
	if m.Booking.BoardedAt != nil {
		out.AlreadyBoarded = true
		return out, nil
	}

	now := utils.NowUTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	changed, err := s.Bookings.MarkBoarded(ctx, m.Booking.ID, now)
	if err != nil {
		return Verification{}, domain.InternalError{Msg: "mark boarded", Err: err}
	}
	if !changed {
		out.AlreadyBoarded = true
		return out, nil
	}
	out.Boarded = true
	out.Manifest.Booking.BoardedAt = &now
	utils.LogEvent(s.RequestID, "verify", "board", "reference="+m.Booking.Reference)
	return out, nil
}
