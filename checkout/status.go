package checkout

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusSlipUploaded   Status = "SLIP_UPLOADED"
	StatusPaid           Status = "PAID"
	StatusRejected       Status = "REJECTED"
	StatusExpired        Status = "EXPIRED"
	StatusCanceled       Status = "CANCELED"
)

// IsTerminal reports whether no further client action can advance the
// order. SLIP_UPLOADED is non-terminal only for the admin side; from
// the client's perspective the order is out of its hands.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPaid, StatusRejected, StatusExpired, StatusCanceled:
		return true
	default:
		return false
	}
}

// CanRestore reports whether the order's items may be moved back into
// the cart. Only dead-end orders qualify.
func (s Status) CanRestore() bool {
	return s == StatusExpired || s == StatusRejected
}

// String representation (for logging)
func (s Status) String() string {
	return string(s)
}
