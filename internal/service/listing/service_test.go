package listing

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/appointment-web/internal/model"
	apperrors "github.com/jwalitptl/appointment-web/pkg/errors"
	"github.com/jwalitptl/appointment-web/pkg/metrics"
)

type fakeDirectory struct {
	mu       sync.Mutex
	doctors  map[string]int
	patients map[string]int

	failDoctor  map[string]bool
	failPatient map[string]bool
	noUsername  map[string]bool
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		doctors:     map[string]int{},
		patients:    map[string]int{},
		failDoctor:  map[string]bool{},
		failPatient: map[string]bool{},
		noUsername:  map[string]bool{},
	}
}

func (f *fakeDirectory) GetDoctor(_ context.Context, id string) (*model.Doctor, error) {
	f.mu.Lock()
	f.doctors[id]++
	f.mu.Unlock()
	if f.failDoctor[id] {
		return nil, apperrors.NewUpstream(404, "doctor not found")
	}
	return &model.Doctor{ID: id, Name: "Dr " + id}, nil
}

func (f *fakeDirectory) GetPatient(_ context.Context, id string) (*model.Patient, error) {
	f.mu.Lock()
	f.patients[id]++
	f.mu.Unlock()
	if f.failPatient[id] {
		return nil, apperrors.NewTransport(assert.AnError)
	}
	if f.noUsername[id] {
		return &model.Patient{ID: id}, nil
	}
	return &model.Patient{ID: id, Username: "user-" + id}, nil
}

type MockUpdater struct {
	mock.Mock
}

func (m *MockUpdater) UpdateStatus(ctx context.Context, id string, status model.AppointmentStatus) (*model.Appointment, error) {
	args := m.Called(ctx, id, status)
	if apt, ok := args.Get(0).(*model.Appointment); ok {
		return apt, args.Error(1)
	}
	return nil, args.Error(1)
}

type recorder struct {
	got []model.Notification
}

func (r *recorder) Notify(n model.Notification) {
	r.got = append(r.got, n)
}

func apt(id, doctor, patient string, status model.AppointmentStatus) model.Appointment {
	return model.Appointment{
		ID:      id,
		Doctor:  model.Ref{ID: doctor},
		Patient: model.Ref{ID: patient},
		Date:    "2024-05-10T00:00:00Z",
		Time:    "10:00",
		Status:  status,
	}
}

func newService(dir Directory, upd Updater) *Service {
	return NewService(dir, upd, 2, metrics.New("test", nil), nil)
}

func TestLoad_OneLookupPerDistinctID(t *testing.T) {
	dir := newFakeDirectory()
	svc := newService(dir, new(MockUpdater))

	apts := []model.Appointment{
		apt("a1", "d1", "p1", model.AppointmentStatusPending),
		apt("a2", "d1", "p2", model.AppointmentStatusPending),
		apt("a3", "d2", "p1", model.AppointmentStatusConfirmed),
		apt("a4", "d2", "p3", model.AppointmentStatusMissed),
		apt("a5", "d1", "p3", model.AppointmentStatusCompleted),
	}

	st := &State{Role: model.RoleDoctor}
	svc.Load(context.Background(), st, apts)

	assert.Equal(t, map[string]int{"d1": 1, "d2": 1}, dir.doctors)
	assert.Equal(t, map[string]int{"p1": 1, "p2": 1, "p3": 1}, dir.patients)
	assert.Equal(t, "Dr d2", st.Names.Doctors["d2"])
	assert.Equal(t, "user-p3", st.Names.Patients["p3"])
}

func TestLoad_FailedLookupsAreIsolated(t *testing.T) {
	dir := newFakeDirectory()
	dir.failDoctor["d1"] = true
	dir.failPatient["p1"] = true
	dir.noUsername["p2"] = true
	svc := newService(dir, new(MockUpdater))

	st := &State{Role: model.RolePatient}
	svc.Load(context.Background(), st, []model.Appointment{
		apt("a1", "d1", "p1", model.AppointmentStatusPending),
		apt("a2", "d2", "p2", model.AppointmentStatusPending),
		apt("a3", "d3", "p3", model.AppointmentStatusPending),
	})

	assert.Equal(t, NameUnknownDoctor, st.Names.Doctors["d1"])
	assert.Equal(t, "Dr d2", st.Names.Doctors["d2"])
	assert.Equal(t, "Dr d3", st.Names.Doctors["d3"])
	assert.Equal(t, NameUnknownPatient, st.Names.Patients["p1"])
	assert.Equal(t, NameNotFound, st.Names.Patients["p2"])
	assert.Equal(t, "user-p3", st.Names.Patients["p3"])
}

func TestDisplayName(t *testing.T) {
	names := map[string]string{"d1": "Dr d1"}

	assert.Equal(t, "Dr d1", DisplayName(names, "d1"))
	assert.Equal(t, NameLoading, DisplayName(names, "d9"))
	assert.Equal(t, NameInvalidID, DisplayName(names, ""))
}

func TestCards(t *testing.T) {
	svc := newService(newFakeDirectory(), new(MockUpdater))

	st := &State{Role: model.RolePatient}
	svc.Load(context.Background(), st, []model.Appointment{
		apt("a1", "d1", "p1", model.AppointmentStatusMissed),
		apt("a2", "", "p1", model.AppointmentStatusCancelled),
	})

	cards := svc.Cards(st)
	require.Len(t, cards, 2)
	assert.Equal(t, "Dr d1", cards[0].With)
	assert.Equal(t, []model.Action{{Kind: model.ActionReschedule, Label: "Reschedule"}}, cards[0].Actions)
	assert.False(t, cards[0].CanDetail)
	assert.Equal(t, NameInvalidID, cards[1].With)
	assert.Empty(t, cards[1].Actions)
	assert.Equal(t, "bg-red-500", cards[1].StatusClass)
}

func TestChangeStatus_DoctorConfirmsPending(t *testing.T) {
	upd := new(MockUpdater)
	svc := newService(newFakeDirectory(), upd)
	n := &recorder{}

	st := &State{Role: model.RoleDoctor}
	svc.Load(context.Background(), st, []model.Appointment{apt("a1", "d1", "p1", model.AppointmentStatusPending)})

	labels := []string{}
	for _, a := range svc.Cards(st)[0].Actions {
		labels = append(labels, a.Label)
	}
	assert.Equal(t, []string{"Confirm", "Cancel"}, labels)

	upd.On("UpdateStatus", mock.Anything, "a1", model.AppointmentStatusConfirmed).
		Return(&model.Appointment{ID: "a1", Status: model.AppointmentStatusConfirmed}, nil).Once()

	var busyTrail []bool
	st.OnBusy = func(b bool) { busyTrail = append(busyTrail, b) }
	refreshed := 0
	err := svc.ChangeStatus(context.Background(), st, n, "a1", model.AppointmentStatusConfirmed, func() { refreshed++ })

	require.NoError(t, err)
	assert.Equal(t, 1, refreshed)
	assert.False(t, st.Busy)
	assert.Equal(t, []bool{true, false}, busyTrail)
	assert.Equal(t, []model.Notification{{Level: model.NotificationSuccess, Message: "Appointment confirmed successfully"}}, n.got)
	upd.AssertExpectations(t)
}

func TestChangeStatus_Failure(t *testing.T) {
	upd := new(MockUpdater)
	svc := newService(newFakeDirectory(), upd)
	n := &recorder{}

	st := &State{Role: model.RoleDoctor}
	svc.Load(context.Background(), st, []model.Appointment{apt("a1", "d1", "p1", model.AppointmentStatusConfirmed)})

	upd.On("UpdateStatus", mock.Anything, "a1", model.AppointmentStatusOngoing).
		Return(nil, apperrors.NewUpstream(500, "boom")).Once()

	refreshed := 0
	err := svc.ChangeStatus(context.Background(), st, n, "a1", model.AppointmentStatusOngoing, func() { refreshed++ })

	require.Error(t, err)
	assert.Zero(t, refreshed)
	assert.False(t, st.Busy)
	assert.Equal(t, []model.Notification{{Level: model.NotificationError, Message: MsgStatusFailed}}, n.got)
}

func TestChangeStatus_RejectedWithoutRequest(t *testing.T) {
	upd := new(MockUpdater)
	svc := newService(newFakeDirectory(), upd)

	st := &State{Role: model.RolePatient}
	svc.Load(context.Background(), st, []model.Appointment{
		apt("a1", "d1", "p1", model.AppointmentStatusPending),
		apt("a2", "d1", "p1", model.AppointmentStatusCompleted),
	})

	ctx := context.Background()
	assert.ErrorIs(t, svc.ChangeStatus(ctx, st, &recorder{}, "a1", model.AppointmentStatusCancelled, nil), ErrConfirmationRequired)
	assert.ErrorIs(t, svc.ChangeStatus(ctx, st, &recorder{}, "a1", model.AppointmentStatusConfirmed, nil), ErrTransitionNotAllowed)
	assert.ErrorIs(t, svc.ChangeStatus(ctx, st, &recorder{}, "a2", model.AppointmentStatusOngoing, nil), ErrTransitionNotAllowed)
	assert.ErrorIs(t, svc.ChangeStatus(ctx, st, &recorder{}, "zz", model.AppointmentStatusConfirmed, nil), ErrUnknownAppointment)

	st.Busy = true
	st.Role = model.RoleDoctor
	assert.ErrorIs(t, svc.ChangeStatus(ctx, st, &recorder{}, "a1", model.AppointmentStatusConfirmed, nil), ErrBusy)

	upd.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancel_PatientConfirms(t *testing.T) {
	upd := new(MockUpdater)
	svc := newService(newFakeDirectory(), upd)
	n := &recorder{}

	st := &State{Role: model.RolePatient}
	svc.Load(context.Background(), st, []model.Appointment{apt("a1", "d1", "p1", model.AppointmentStatusPending)})

	require.NoError(t, svc.RequestCancel(st, "a1"))
	assert.Equal(t, "a1", st.ConfirmCancelID)
	upd.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)

	upd.On("UpdateStatus", mock.Anything, "a1", model.AppointmentStatusCancelled).
		Return(&model.Appointment{ID: "a1", Status: model.AppointmentStatusCancelled}, nil).Once()

	require.NoError(t, svc.ConfirmCancel(context.Background(), st, n, nil))
	assert.Empty(t, st.ConfirmCancelID)
	assert.Equal(t, "Appointment cancelled successfully", n.got[0].Message)
	upd.AssertExpectations(t)
}

func TestCancel_DismissSendsNothing(t *testing.T) {
	upd := new(MockUpdater)
	svc := newService(newFakeDirectory(), upd)

	st := &State{Role: model.RoleDoctor}
	svc.Load(context.Background(), st, []model.Appointment{apt("a1", "d1", "p1", model.AppointmentStatusConfirmed)})

	require.NoError(t, svc.RequestCancel(st, "a1"))
	svc.DismissCancel(st)

	assert.Empty(t, st.ConfirmCancelID)
	assert.ErrorIs(t, svc.ConfirmCancel(context.Background(), st, &recorder{}, nil), ErrNoPendingCancel)
	upd.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestCancel_NotOffered(t *testing.T) {
	svc := newService(newFakeDirectory(), new(MockUpdater))

	st := &State{Role: model.RoleDoctor}
	svc.Load(context.Background(), st, []model.Appointment{apt("a1", "d1", "p1", model.AppointmentStatusOngoing)})

	assert.ErrorIs(t, svc.RequestCancel(st, "a1"), ErrTransitionNotAllowed)
	assert.ErrorIs(t, svc.RequestCancel(st, "nope"), ErrUnknownAppointment)
	assert.Empty(t, st.ConfirmCancelID)
}

func TestDetail(t *testing.T) {
	svc := newService(newFakeDirectory(), new(MockUpdater))

	withReason := apt("a1", "d1", "p1", model.AppointmentStatusPending)
	withReason.Reason = "Chest pain after exercise"
	st := &State{Role: model.RoleDoctor}
	svc.Load(context.Background(), st, []model.Appointment{withReason, apt("a2", "d1", "p2", model.AppointmentStatusPending)})

	require.NoError(t, svc.OpenDetail(st, "a1"))
	assert.Equal(t, "Chest pain after exercise", DetailReason(svc.Detail(st)))

	require.NoError(t, svc.OpenDetail(st, "a2"))
	assert.Equal(t, MsgNoDetail, DetailReason(svc.Detail(st)))

	svc.CloseDetail(st)
	assert.Nil(t, svc.Detail(st))

	patient := &State{Role: model.RolePatient, Appointments: st.Appointments}
	assert.ErrorIs(t, svc.OpenDetail(patient, "a1"), ErrDetailUnavailable)
}

func TestLoad_DropsStaleTargets(t *testing.T) {
	svc := newService(newFakeDirectory(), new(MockUpdater))

	st := &State{Role: model.RoleDoctor, ConfirmCancelID: "gone", DetailID: "a1"}
	svc.Load(context.Background(), st, []model.Appointment{apt("a1", "d1", "p1", model.AppointmentStatusPending)})

	assert.Empty(t, st.ConfirmCancelID)
	assert.Equal(t, "a1", st.DetailID)
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "bg-green-400", StatusClass(model.AppointmentStatusConfirmed))
	assert.Equal(t, "bg-green-700", StatusClass(model.AppointmentStatusCompleted))
	assert.Equal(t, "bg-yellow-500", StatusClass(model.AppointmentStatusPending))
	assert.Equal(t, "bg-yellow-500", StatusClass(model.AppointmentStatusOngoing))
	assert.Equal(t, "bg-blue-400", StatusClass(model.AppointmentStatusRescheduled))
	assert.Equal(t, "bg-gray-500", StatusClass(model.AppointmentStatusMissed))
}
