package domain

import "errors"

var (
	ErrInvalidSeat         = errors.New("invalid seat")
	ErrSeatAlreadyBooked   = errors.New("seat already booked")
	ErrSeatNotBooked       = errors.New("seat not booked")
	ErrIllegalTransition   = errors.New("illegal status transition")
	ErrPaymentPrecondition = errors.New("payment precondition failed")
	ErrPaymentValidation   = errors.New("payment validation failed")
	ErrFlightNotFound      = errors.New("flight not found")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrFlightAlreadyExists = errors.New("flight already exists")
)
