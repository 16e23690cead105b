package domain

import (
	"fmt"
	"regexp"
	"time"

	"github.com/cockroachdb/errors"
)

type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "CASH"
	PaymentMethodCard PaymentMethod = "CARD"
)

// CardDetails carries raw card input for a single validation call. The raw
// number and CVV are never retained past ProcessPayment; only the masked
// form survives in Payment and in failure reasons.
type CardDetails struct {
	Number string
	Expiry string
	CVV    string
}

// PaymentRequest is the tagged payment variant: Method selects the payload,
// Card is set only for CARD requests.
type PaymentRequest struct {
	Method PaymentMethod
	Amount float64
	Card   *CardDetails
}

// PaymentOutcome reports the terminal pay status. Reason is set only on
// FAILED and never includes a full card number or raw CVV.
type PaymentOutcome struct {
	Status BookingStatus
	Reason string
}

// Payment is the transient record of a processed payment, safe to hand to a
// store adapter: the card number is reduced to its last four digits and the
// CVV to a presence flag.
type Payment struct {
	ID         int64
	BookingID  int64
	Amount     float64
	Method     PaymentMethod
	PaidAt     time.Time
	CardLast4  string
	Expiry     string
	CVVPresent bool
}

var (
	cardNumberRe = regexp.MustCompile(`^[0-9]{16}$`)
	cardExpiryRe = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)
	cardCVVRe    = regexp.MustCompile(`^[0-9]{3,4}$`)
)

// ProcessPayment validates req against the booking and flips the booking
// status to PAID or FAILED. A booking that is not awaiting payment is a
// caller defect and returns ErrPaymentPrecondition without touching status.
func ProcessPayment(b *Booking, req PaymentRequest) (PaymentOutcome, error) {
	if got := b.Status(); got != BookingStatusPendingPayment {
		return PaymentOutcome{}, errors.Wrapf(ErrPaymentPrecondition, "booking %d is %s", b.ID, got)
	}
	outcome := validatePayment(b, req)
	if err := b.SetStatus(outcome.Status); err != nil {
		return PaymentOutcome{}, err
	}
	return outcome, nil
}

func validatePayment(b *Booking, req PaymentRequest) PaymentOutcome {
	if req.Amount <= 0 {
		return failed("amount must be positive")
	}
	if req.Amount != b.Price {
		return failed(fmt.Sprintf("amount %.2f does not match booking price %.2f", req.Amount, b.Price))
	}
	switch req.Method {
	case PaymentMethodCash:
		return PaymentOutcome{Status: BookingStatusPaid}
	case PaymentMethodCard:
		if req.Card == nil {
			return failed("card details missing")
		}
		if !cardNumberRe.MatchString(req.Card.Number) ||
			!cardExpiryRe.MatchString(req.Card.Expiry) ||
			!cardCVVRe.MatchString(req.Card.CVV) {
			return failed("card validation failed for card " + MaskCardNumber(req.Card.Number))
		}
		return PaymentOutcome{Status: BookingStatusPaid}
	default:
		return failed(fmt.Sprintf("unsupported payment method %q", req.Method))
	}
}

func failed(reason string) PaymentOutcome {
	return PaymentOutcome{Status: BookingStatusFailed, Reason: reason}
}

// MaskCardNumber keeps only the last four digits of a full card number.
// Anything shorter or non-numeric masks completely.
func MaskCardNumber(number string) string {
	if !cardNumberRe.MatchString(number) {
		return "***"
	}
	return "****" + number[len(number)-4:]
}

// NewPayment derives the storable record for a processed request. Call only
// after ProcessPayment succeeded with a PAID outcome.
func NewPayment(id int64, b *Booking, req PaymentRequest, at time.Time) Payment {
	p := Payment{
		ID:        id,
		BookingID: b.ID,
		Amount:    req.Amount,
		Method:    req.Method,
		PaidAt:    at,
	}
	if req.Card != nil {
		p.CardLast4 = MaskCardNumber(req.Card.Number)
		p.Expiry = req.Card.Expiry
		p.CVVPresent = req.Card.CVV != ""
	}
	return p
}
