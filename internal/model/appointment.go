package model

import (
	"strconv"
	"strings"
)

type AppointmentStatus string

const (
	AppointmentStatusPending     AppointmentStatus = "pending"
	AppointmentStatusConfirmed   AppointmentStatus = "confirmed"
	AppointmentStatusOngoing     AppointmentStatus = "ongoing"
	AppointmentStatusCompleted   AppointmentStatus = "completed"
	AppointmentStatusCancelled   AppointmentStatus = "cancelled"
	AppointmentStatusRescheduled AppointmentStatus = "rescheduled"
	AppointmentStatusMissed      AppointmentStatus = "missed"
)

// Terminal reports whether no further transitions are offered from s.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCancelled
}

// Appointment mirrors the upstream appointment document. Date is kept as the
// raw ISO string the API returns.
type Appointment struct {
	ID            string            `json:"_id"`
	Doctor        Ref               `json:"doctor"`
	Patient       Ref               `json:"patient"`
	Date          string            `json:"date"`
	Time          string            `json:"time"`
	Duration      int               `json:"duration"`
	ModeOfPayment string            `json:"mode_of_payment"`
	Reason        string            `json:"reason"`
	Status        AppointmentStatus `json:"status"`
}

// CalendarDay returns the YYYY-MM-DD portion of Date, or "" when Date is unset.
func (a *Appointment) CalendarDay() string {
	day, _, _ := strings.Cut(a.Date, "T")
	return strings.TrimSpace(day)
}

// Slots are the bookable half-hour start times, in display order.
var Slots = []string{
	"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
	"12:00", "12:30", "13:00", "13:30", "14:00", "14:30",
	"15:00", "15:30", "16:00", "16:30", "17:00", "17:30",
	"18:00", "18:30", "19:00", "19:30", "20:00", "23:00", "23:30",
}

// Durations are the selectable appointment lengths in minutes.
var Durations = []string{"30", "45", "60"}

// PaymentModes are the accepted modes of payment.
var PaymentModes = []string{"cash", "card", "upi", "netbanking"}

func IsSlot(s string) bool {
	return contains(Slots, s)
}

func IsDuration(s string) bool {
	return contains(Durations, s)
}

func IsPaymentMode(s string) bool {
	return contains(PaymentModes, s)
}

// PaymentModeLabel capitalizes the first letter of a payment mode for display.
func PaymentModeLabel(mode string) string {
	if mode == "" {
		return ""
	}
	return strings.ToUpper(mode[:1]) + mode[1:]
}

// DurationMinutes parses one of Durations; it returns 0 for anything else.
func DurationMinutes(s string) int {
	if !IsDuration(s) {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

// BookingRequest is the creation payload sent to POST /appointment/book.
type BookingRequest struct {
	DoctorID      string `json:"doctorId" form:"doctorId" validate:"required"`
	Date          string `json:"date" form:"date" validate:"required,datetime=2006-01-02,notpast"`
	Time          string `json:"time" form:"time" validate:"required,slot"`
	Duration      string `json:"duration" form:"duration" validate:"required,oneof=30 45 60"`
	ModeOfPayment string `json:"mode_of_payment" form:"mode_of_payment" validate:"required,oneof=cash card upi netbanking"`
	Reason        string `json:"reason" form:"reason" validate:"required,min=10"`
}

// StatusUpdateRequest is the body of PATCH /appointment/doctor/status/:id.
type StatusUpdateRequest struct {
	Status AppointmentStatus `json:"status"`
}

// RescheduleRequest is the body of PATCH /appointment/reschedule/:id.
type RescheduleRequest struct {
	StartTime string `json:"startTime"`
	Date      string `json:"date"`
}
