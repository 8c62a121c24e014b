package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppointmentDecodesReferences(t *testing.T) {
	raw := `{
		"_id": "A1",
		"doctor": {"_id": "D1", "name": "House"},
		"patient": "P1",
		"date": "2024-05-10T00:00:00Z",
		"time": "14:00",
		"duration": 45,
		"status": "pending"
	}`

	var apt Appointment
	require.NoError(t, json.Unmarshal([]byte(raw), &apt))

	assert.Equal(t, "D1", apt.Doctor.ID)
	assert.Equal(t, "House", apt.Doctor.Name)
	assert.Equal(t, "P1", apt.Patient.ID)
	assert.Equal(t, "2024-05-10", apt.CalendarDay())
	assert.Equal(t, AppointmentStatusPending, apt.Status)
}

func TestAppointmentNullReference(t *testing.T) {
	var apt Appointment
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"A1","doctor":null}`), &apt))
	assert.Empty(t, apt.Doctor.ID)
	assert.Empty(t, apt.CalendarDay())
}

func TestEnumerations(t *testing.T) {
	assert.True(t, IsSlot("09:30"))
	assert.False(t, IsSlot("9:30"))
	assert.False(t, IsSlot("21:00"))
	assert.Equal(t, 45, DurationMinutes("45"))
	assert.Equal(t, 0, DurationMinutes("15"))
	assert.True(t, IsPaymentMode("netbanking"))
	assert.Equal(t, "Upi", PaymentModeLabel("upi"))
}
