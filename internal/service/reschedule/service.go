package reschedule

import (
	"context"
	"errors"

	"github.com/jwalitptl/appointment-web/internal/model"
	apperrors "github.com/jwalitptl/appointment-web/pkg/errors"
	"github.com/jwalitptl/appointment-web/pkg/logger"
	"github.com/jwalitptl/appointment-web/pkg/metrics"
)

const (
	MsgRescheduled = "Appointment rescheduled successfully!"
	MsgMissingDate = "Error: Appointment date is missing."
	MsgUnexpected  = "An unexpected error occurred"
	MsgInvalidSlot = "Select a valid time slot"
	MsgNotFound    = "Appointment not found. Please try again later."
	MsgLoading     = "Loading appointment details..."
	DashboardPath  = "/patient/dashboard"
)

var (
	ErrNotReady    = errors.New("appointment not loaded")
	ErrCannotSend  = errors.New("a time slot and a positive duration are required")
	ErrMissingDate = errors.New("appointment date is missing")
	ErrBusy        = errors.New("reschedule already in progress")
)

type Phase string

const (
	PhaseLoading  Phase = "loading"
	PhaseNotFound Phase = "not_found"
	PhaseReady    Phase = "ready"
)

// Gateway is the part of the appointment API the view talks to.
type Gateway interface {
	GetAppointment(ctx context.Context, id string) (*model.Appointment, error)
	Reschedule(ctx context.Context, id string, req model.RescheduleRequest) (*model.Appointment, error)
}

type Notifier interface {
	Notify(n model.Notification)
}

// View is the reschedule page for one appointment.
type View struct {
	ID          string
	Phase       Phase
	Appointment *model.Appointment
	NewTime     string
	NewDuration int
	Busy        bool

	// OnBusy observes every change of Busy so the owner can publish it.
	OnBusy func(busy bool)
}

func (v *View) setBusy(busy bool) {
	v.Busy = busy
	if v.OnBusy != nil {
		v.OnBusy(busy)
	}
}

// CanSubmit reports whether the submit control is enabled.
func (v *View) CanSubmit() bool {
	return v.Phase == PhaseReady && !v.Busy && v.NewTime != "" && v.NewDuration > 0
}

type Service struct {
	gateway Gateway
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewService(gateway Gateway, m *metrics.Metrics, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{gateway: gateway, metrics: m, log: log}
}

// Load fetches the appointment. A failed or empty answer leaves the view in
// PhaseNotFound for good.
func (s *Service) Load(ctx context.Context, id string) *View {
	v := &View{ID: id, Phase: PhaseLoading}

	apt, err := s.gateway.GetAppointment(ctx, id)
	if err != nil || apt == nil {
		if err != nil && !apperrors.Is(err, apperrors.ErrUpstream) {
			s.log.WithContext(ctx).Error(err, "failed to load appointment", "appointment_id", id)
		}
		v.Phase = PhaseNotFound
		return v
	}

	v.Appointment = apt
	v.NewDuration = apt.Duration
	v.Phase = PhaseReady
	return v
}

// Submit moves the appointment to v.NewTime on its original calendar day.
// On success it returns the page to redirect to.
func (s *Service) Submit(ctx context.Context, v *View, n Notifier) (string, error) {
	if v.Phase != PhaseReady || v.Appointment == nil {
		return "", ErrNotReady
	}
	if v.Busy {
		return "", ErrBusy
	}
	if !v.CanSubmit() {
		return "", ErrCannotSend
	}
	if !model.IsSlot(v.NewTime) {
		s.count(metrics.OutcomeRejected)
		n.Notify(model.Notification{Level: model.NotificationError, Message: MsgInvalidSlot})
		return "", ErrCannotSend
	}

	day := v.Appointment.CalendarDay()
	if day == "" {
		s.count(metrics.OutcomeRejected)
		n.Notify(model.Notification{Level: model.NotificationError, Message: MsgMissingDate})
		return "", ErrMissingDate
	}

	v.setBusy(true)
	defer v.setBusy(false)

	req := model.RescheduleRequest{StartTime: v.NewTime, Date: day}
	if _, err := s.gateway.Reschedule(ctx, v.ID, req); err != nil {
		s.log.WithContext(ctx).Warn(err, "reschedule failed", "appointment_id", v.ID, "start_time", v.NewTime)
		s.count(metrics.OutcomeFailure)
		n.Notify(model.Notification{
			Level:   model.NotificationError,
			Message: apperrors.MessageOr(err, MsgUnexpected),
		})
		return "", err
	}

	s.count(metrics.OutcomeSuccess)
	n.Notify(model.Notification{Level: model.NotificationSuccess, Message: MsgRescheduled})
	return DashboardPath, nil
}

func (s *Service) count(outcome string) {
	if s.metrics != nil {
		s.metrics.Reschedules.WithLabelValues(outcome).Inc()
	}
}
