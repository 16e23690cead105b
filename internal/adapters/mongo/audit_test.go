package mongo

import (
	"testing"

	"github.com/altavia/airbook/internal/domain"
)

func TestBookingActionMatchesRoutingKeys(t *testing.T) {
	cases := map[domain.BookingStatus]string{
		domain.BookingStatusPendingPayment: "booking.pending_payment",
		domain.BookingStatusPaid:           "booking.paid",
		domain.BookingStatusFailed:         "booking.failed",
		domain.BookingStatusCancelled:      "booking.cancelled",
	}
	for status, want := range cases {
		if got := bookingAction(status); got != want {
			t.Errorf("bookingAction(%s) = %q, want %q", status, got, want)
		}
	}
}
