package client

// CanCancel reports whether the cancel control is offered.
func CanCancel(a Appointment) bool {
	return a.Status == StatusPending || a.Status == StatusConfirmed
}

// CanConfirm reports whether a doctor may confirm a.
func CanConfirm(a Appointment) bool {
	return a.Status == StatusPending
}

type PaymentAffordance int

const (
	PaymentNone PaymentAffordance = iota
	PaymentOffered
	PaymentPaid
)

// Payment picks what the payment column shows. A paid appointment shows
// the paid indicator whatever its status.
func Payment(a Appointment) PaymentAffordance {
	switch {
	case a.IsPaid:
		return PaymentPaid
	case a.Status == StatusPending && a.TotalAmount != nil && *a.TotalAmount > 0:
		return PaymentOffered
	}
	return PaymentNone
}
