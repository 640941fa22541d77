package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func amount(v float64) *float64 { return &v }

func TestCancelAffordance(t *testing.T) {
	assert.True(t, CanCancel(Appointment{Status: StatusPending}))
	assert.True(t, CanCancel(Appointment{Status: StatusConfirmed}))
	assert.False(t, CanCancel(Appointment{Status: StatusCancelled}))

	assert.True(t, CanConfirm(Appointment{Status: StatusPending}))
	assert.False(t, CanConfirm(Appointment{Status: StatusConfirmed}))
}

func TestPaymentAffordance(t *testing.T) {
	tests := []struct {
		name string
		appt Appointment
		want PaymentAffordance
	}{
		{"pending unpaid with amount", Appointment{Status: StatusPending, TotalAmount: amount(2000)}, PaymentOffered},
		{"paid pending", Appointment{Status: StatusPending, TotalAmount: amount(2000), IsPaid: true}, PaymentPaid},
		{"paid cancelled", Appointment{Status: StatusCancelled, TotalAmount: amount(2000), IsPaid: true}, PaymentPaid},
		{"paid confirmed", Appointment{Status: StatusConfirmed, IsPaid: true}, PaymentPaid},
		{"confirmed unpaid", Appointment{Status: StatusConfirmed, TotalAmount: amount(2000)}, PaymentNone},
		{"no amount", Appointment{Status: StatusPending}, PaymentNone},
		{"zero amount", Appointment{Status: StatusPending, TotalAmount: amount(0)}, PaymentNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Payment(tt.appt))
		})
	}
}
