package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busticket/internal/domain"
	"busticket/internal/utils"
)

func newVerifier(f *bookingFixture) VerificationService {
	return VerificationService{
		Bookings:   f.store,
		References: utils.NewReferenceGenerator("ODN"),
		Now:        func() time.Time { return time.Date(2026, 5, 2, 7, 0, 0, 0, time.UTC) },
	}
}

func TestExtractReference(t *testing.T) {
	v := VerificationService{References: utils.NewReferenceGenerator("ODN")}
	cases := map[string]string{
		"ODN-K7QX":                              "ODN-K7QX",
		"  odn-k7qx ":                           "ODN-K7QX",
		`{"reference":"ODN-AB23","seats":[5]}`:  "ODN-AB23",
		"https://tickets.example/v?c=ODN-HJ45x": "https://tickets.example/v?c=ODN-HJ45x",
		"  hello world  ":                       "hello world",
		"":                                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, v.ExtractReference(in), "input %q", in)
	}
}

func TestVerifyUnknownInputIsNotFound(t *testing.T) {
	f := newBookingFixture(t)
	v := newVerifier(f)

	for _, scanned := range []string{"", "   ", "random garbage \x00\xff", "ODN-ZZZZ"} {
		_, err := v.Verify(context.Background(), scanned, false)
		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err), "input %q", scanned)
	}
}

func TestVerifyReadOnlyByDefault(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), draft(1, "cash", "", "4", "2"))
	require.NoError(t, err)

	out, err := newVerifier(f).Verify(context.Background(), "QR:"+res.Reference+";", false)
	require.NoError(t, err)
	assert.Equal(t, res.Reference, out.Manifest.Booking.Reference)
	assert.False(t, out.Boarded)
	assert.Nil(t, out.Manifest.Booking.BoardedAt)
	require.Len(t, out.Manifest.Passengers, 2)
	assert.Equal(t, 2, out.Manifest.Passengers[0].SeatNumber)
}

func TestVerifyBoardsOnce(t *testing.T) {
	f := newBookingFixture(t)
	res, err := f.svc.CreateBooking(context.Background(), draft(1, "cash", "", "4"))
	require.NoError(t, err)
	v := newVerifier(f)

	first, err := v.Verify(context.Background(), res.Reference, true)
	require.NoError(t, err)
	assert.True(t, first.Boarded)
	assert.False(t, first.AlreadyBoarded)
	require.NotNil(t, first.Manifest.Booking.BoardedAt)

	second, err := v.Verify(context.Background(), res.Reference, true)
	require.NoError(t, err)
	assert.False(t, second.Boarded)
	assert.True(t, second.AlreadyBoarded)
}

func TestVerifyBoardingUnpaidIsConflict(t *testing.T) {
	f := newBookingFixture(t)
	res := pendingBooking(t, f, "30")

	_, err := newVerifier(f).Verify(context.Background(), res.Reference, true)
	assert.True(t, domain.IsConflict(err))
}
