package order

import "strings"

// Order statuses.
const (
	StatusOpen     = "OPEN"
	StatusServed   = "SERVED"
	StatusClosed   = "CLOSED"
	StatusCanceled = "CANCELED"
)

// Payment statuses.
const (
	PaymentUnpaid = "UNPAID"
	PaymentPaid   = "PAID"
)

func statusRank(status string) int {
	switch status {
	case StatusOpen:
		return 0
	case StatusServed:
		return 1
	case StatusClosed:
		return 2
	case StatusCanceled:
		return -1
	default:
		return -2
	}
}

// canTransition allows moving forward only, and cancelling anything not closed.
func canTransition(from, to string) bool {
	to = strings.ToUpper(to)
	if statusRank(to) < -1 {
		return false
	}
	switch from {
	case StatusClosed, StatusCanceled:
		return false
	}
	if to == StatusCanceled {
		return true
	}
	return statusRank(to) > statusRank(from)
}

// editable reports whether line items of an order in status may still change.
func editable(status string) bool {
	return status == "" || status == StatusOpen || status == StatusServed
}

func validPayment(status string) bool {
	return status == PaymentUnpaid || status == PaymentPaid
}
