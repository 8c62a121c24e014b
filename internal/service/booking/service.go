package booking

import (
	"context"
	"errors"

	"github.com/jwalitptl/appointment-web/internal/model"
	apperrors "github.com/jwalitptl/appointment-web/pkg/errors"
	"github.com/jwalitptl/appointment-web/pkg/logger"
	"github.com/jwalitptl/appointment-web/pkg/metrics"
	"github.com/jwalitptl/appointment-web/pkg/validator"
)

const (
	MsgBooked        = "Appointment booked successfully!"
	MsgBookingFailed = "Failed to book appointment. Please try again."
	MsgUnknownDoctor = "Select one of the listed doctors"
)

// ErrBusy is returned when a submission is attempted while another one from
// the same form is still in flight.
var ErrBusy = errors.New("booking already in progress")

// Creator sends the booking to the appointment API.
type Creator interface {
	BookAppointment(ctx context.Context, req model.BookingRequest) (*model.Appointment, error)
}

// Notifier receives the toasts produced by a submission.
type Notifier interface {
	Notify(n model.Notification)
}

// Form is the state of the booking form between renders.
type Form struct {
	Doctors []model.Doctor        `json:"-"`
	Values  model.BookingRequest  `json:"values"`
	Errors  validator.FieldErrors `json:"errors,omitempty"`
	Busy    bool                  `json:"-"`

	// OnBusy observes every change of Busy so the owner can publish it.
	OnBusy func(busy bool) `json:"-"`
}

func (f *Form) setBusy(busy bool) {
	f.Busy = busy
	if f.OnBusy != nil {
		f.OnBusy(busy)
	}
}

// Reset clears entered values and errors after a successful booking.
func (f *Form) Reset() {
	f.Values = model.BookingRequest{}
	f.Errors = nil
}

type Service struct {
	creator   Creator
	validator validator.Validator
	metrics   *metrics.Metrics
	log       *logger.Logger
}

func NewService(creator Creator, v validator.Validator, m *metrics.Metrics, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		creator:   creator,
		validator: v,
		metrics:   m,
		log:       log,
	}
}

// Validate checks the entered values against the booking schema and the
// offered doctors. It returns nil when the form may be submitted.
func (s *Service) Validate(f *Form) validator.FieldErrors {
	fields := validator.FieldErrors{}

	if err := s.validator.Validate(f.Values); err != nil {
		var fe validator.FieldErrors
		if !errors.As(err, &fe) {
			fields["form"] = err.Error()
			return fields
		}
		for k, v := range fe {
			fields[k] = v
		}
	}

	if _, ok := fields["doctorId"]; !ok && f.Doctors != nil && !offered(f.Doctors, f.Values.DoctorID) {
		fields["doctorId"] = MsgUnknownDoctor
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Submit validates the form and books the appointment. Invalid input is
// reported through f.Errors and no request is sent. onSuccess, when set, runs
// exactly once after a successful booking.
func (s *Service) Submit(ctx context.Context, f *Form, n Notifier, onSuccess func(*model.Appointment)) error {
	if f.Busy {
		return ErrBusy
	}

	if fields := s.Validate(f); fields != nil {
		f.Errors = fields
		s.count(metrics.OutcomeRejected)
		return fields
	}
	f.Errors = nil

	f.setBusy(true)
	defer f.setBusy(false)

	apt, err := s.creator.BookAppointment(ctx, f.Values)
	if err != nil {
		s.log.WithContext(ctx).Warn(err, "booking failed", "doctor_id", f.Values.DoctorID, "date", f.Values.Date)
		s.count(metrics.OutcomeFailure)
		n.Notify(model.Notification{
			Level:   model.NotificationError,
			Message: apperrors.MessageOr(err, MsgBookingFailed),
		})
		return err
	}

	s.count(metrics.OutcomeSuccess)
	n.Notify(model.Notification{Level: model.NotificationSuccess, Message: MsgBooked})
	f.Reset()
	if onSuccess != nil {
		onSuccess(apt)
	}
	return nil
}

func (s *Service) count(outcome string) {
	if s.metrics != nil {
		s.metrics.Bookings.WithLabelValues(outcome).Inc()
	}
}

func offered(doctors []model.Doctor, id string) bool {
	for _, d := range doctors {
		if d.ID == id {
			return true
		}
	}
	return false
}
