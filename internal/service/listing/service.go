package listing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwalitptl/appointment-web/internal/model"
	apperrors "github.com/jwalitptl/appointment-web/pkg/errors"
	"github.com/jwalitptl/appointment-web/pkg/logger"
	"github.com/jwalitptl/appointment-web/pkg/metrics"
)

const (
	MsgStatusFailed  = "Failed to update appointment status"
	MsgNoDetail      = "N/A"
	msgStatusChanged = "Appointment %s successfully"
)

var (
	ErrBusy                 = errors.New("status change already in progress")
	ErrUnknownAppointment   = errors.New("appointment is not in the list")
	ErrTransitionNotAllowed = errors.New("transition not offered for this appointment")
	ErrConfirmationRequired = errors.New("cancellation must be confirmed first")
	ErrNoPendingCancel      = errors.New("no cancellation awaiting confirmation")
	ErrDetailUnavailable    = errors.New("details are not offered to this viewer")
)

// Updater patches appointment statuses upstream.
type Updater interface {
	UpdateStatus(ctx context.Context, id string, status model.AppointmentStatus) (*model.Appointment, error)
}

// Notifier receives the toasts produced by list actions.
type Notifier interface {
	Notify(n model.Notification)
}

// State is the appointment list of one viewer. Appointments and Names are
// rebuilt on every load and Busy is set by the owner; the modal targets
// survive between requests.
type State struct {
	Role         model.Role          `json:"role"`
	Appointments []model.Appointment `json:"-"`
	Names        Names               `json:"-"`

	Busy            bool   `json:"-"`
	ConfirmCancelID string `json:"confirm_cancel_id,omitempty"`
	DetailID        string `json:"detail_id,omitempty"`

	// OnBusy observes every change of Busy so the owner can publish it.
	OnBusy func(busy bool) `json:"-"`
}

func (st *State) setBusy(busy bool) {
	st.Busy = busy
	if st.OnBusy != nil {
		st.OnBusy(busy)
	}
}

func (st *State) find(id string) (*model.Appointment, bool) {
	for i := range st.Appointments {
		if st.Appointments[i].ID == id {
			return &st.Appointments[i], true
		}
	}
	return nil, false
}

// Card is an appointment prepared for rendering.
type Card struct {
	Appointment model.Appointment
	// With is the name of the other party for the viewer.
	With        string
	StatusClass string
	Actions     []model.Action
	CanDetail   bool
}

type Service struct {
	updater  Updater
	resolver *resolver
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// NewService builds the list service. concurrency bounds the parallel name
// lookups; zero or less means unbounded.
func NewService(dir Directory, updater Updater, concurrency int, m *metrics.Metrics, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		updater: updater,
		resolver: &resolver{
			dir:         dir,
			concurrency: concurrency,
			metrics:     m,
			log:         log,
		},
		metrics: m,
		log:     log,
	}
}

// Load replaces the collection and rebuilds the name cache for it.
func (s *Service) Load(ctx context.Context, st *State, apts []model.Appointment) {
	s.Replace(st, apts)
	st.Names = s.resolver.resolve(ctx, apts)
}

// Replace swaps in a collection without resolving names, for requests that
// act on the list without rendering it. Modal targets that no longer exist
// are dropped.
func (s *Service) Replace(st *State, apts []model.Appointment) {
	st.Appointments = apts
	st.Names = Names{}

	if _, ok := st.find(st.ConfirmCancelID); !ok {
		st.ConfirmCancelID = ""
	}
	if _, ok := st.find(st.DetailID); !ok {
		st.DetailID = ""
	}
}

// Cards lays out the loaded appointments for st.Role.
func (s *Service) Cards(st *State) []Card {
	cards := make([]Card, 0, len(st.Appointments))
	for _, a := range st.Appointments {
		with := DisplayName(st.Names.Patients, a.Patient.ID)
		if st.Role == model.RolePatient {
			with = DisplayName(st.Names.Doctors, a.Doctor.ID)
		}
		cards = append(cards, Card{
			Appointment: a,
			With:        with,
			StatusClass: StatusClass(a.Status),
			Actions:     model.Actions(st.Role, a.Status),
			CanDetail:   st.Role == model.RoleDoctor,
		})
	}
	return cards
}

// ChangeStatus applies a non-cancelling transition offered by the table.
// onRefresh, when set, runs after a successful change.
func (s *Service) ChangeStatus(ctx context.Context, st *State, n Notifier, id string, to model.AppointmentStatus, onRefresh func()) error {
	if model.RequiresConfirmation(to) {
		return ErrConfirmationRequired
	}
	return s.changeStatus(ctx, st, n, id, to, onRefresh)
}

// RequestCancel opens the confirmation prompt for id. No request is sent.
func (s *Service) RequestCancel(st *State, id string) error {
	apt, ok := st.find(id)
	if !ok {
		return ErrUnknownAppointment
	}
	if !model.CanTransition(st.Role, apt.Status, model.AppointmentStatusCancelled) {
		return ErrTransitionNotAllowed
	}
	st.ConfirmCancelID = id
	return nil
}

// DismissCancel closes the prompt without sending anything.
func (s *Service) DismissCancel(st *State) {
	st.ConfirmCancelID = ""
}

// ConfirmCancel closes the prompt and cancels its target.
func (s *Service) ConfirmCancel(ctx context.Context, st *State, n Notifier, onRefresh func()) error {
	id := st.ConfirmCancelID
	if id == "" {
		return ErrNoPendingCancel
	}
	if st.Busy {
		return ErrBusy
	}
	st.ConfirmCancelID = ""
	return s.changeStatus(ctx, st, n, id, model.AppointmentStatusCancelled, onRefresh)
}

func (s *Service) changeStatus(ctx context.Context, st *State, n Notifier, id string, to model.AppointmentStatus, onRefresh func()) error {
	if st.Busy {
		return ErrBusy
	}

	apt, ok := st.find(id)
	if !ok {
		s.count(to, metrics.OutcomeRejected)
		return ErrUnknownAppointment
	}
	if !model.CanTransition(st.Role, apt.Status, to) {
		s.count(to, metrics.OutcomeRejected)
		return ErrTransitionNotAllowed
	}

	st.setBusy(true)
	defer st.setBusy(false)

	if _, err := s.updater.UpdateStatus(ctx, id, to); err != nil {
		s.log.WithContext(ctx).Warn(err, "status change failed", "appointment_id", id, "status", to)
		s.count(to, metrics.OutcomeFailure)
		n.Notify(model.Notification{Level: model.NotificationError, Message: MsgStatusFailed})
		return err
	}

	s.count(to, metrics.OutcomeSuccess)
	n.Notify(model.Notification{
		Level:   model.NotificationSuccess,
		Message: fmt.Sprintf(msgStatusChanged, to),
	})
	if onRefresh != nil {
		onRefresh()
	}
	return nil
}

// OpenDetail selects id for the read-only detail modal.
func (s *Service) OpenDetail(st *State, id string) error {
	if st.Role != model.RoleDoctor {
		return ErrDetailUnavailable
	}
	if _, ok := st.find(id); !ok {
		return apperrors.NotFound("appointment", ErrUnknownAppointment)
	}
	st.DetailID = id
	return nil
}

func (s *Service) CloseDetail(st *State) {
	st.DetailID = ""
}

// Detail returns the appointment shown in the detail modal, if any.
func (s *Service) Detail(st *State) *model.Appointment {
	if st.DetailID == "" {
		return nil
	}
	apt, ok := st.find(st.DetailID)
	if !ok {
		return nil
	}
	return apt
}

// DetailReason is the reason text shown in the detail modal.
func DetailReason(apt *model.Appointment) string {
	if apt == nil || apt.Reason == "" {
		return MsgNoDetail
	}
	return apt.Reason
}

func (s *Service) count(to model.AppointmentStatus, outcome string) {
	if s.metrics != nil {
		s.metrics.StatusChanges.WithLabelValues(string(to), outcome).Inc()
	}
}

// StatusClass is the badge colour for status.
func StatusClass(status model.AppointmentStatus) string {
	switch status {
	case model.AppointmentStatusConfirmed:
		return "bg-green-400"
	case model.AppointmentStatusCompleted:
		return "bg-green-700"
	case model.AppointmentStatusPending, model.AppointmentStatusOngoing:
		return "bg-yellow-500"
	case model.AppointmentStatusCancelled:
		return "bg-red-500"
	case model.AppointmentStatusRescheduled:
		return "bg-blue-400"
	default:
		return "bg-gray-500"
	}
}
