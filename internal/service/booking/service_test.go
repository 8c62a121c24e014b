package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/appointment-web/internal/model"
	apperrors "github.com/jwalitptl/appointment-web/pkg/errors"
	"github.com/jwalitptl/appointment-web/pkg/metrics"
	"github.com/jwalitptl/appointment-web/pkg/validator"
)

type MockCreator struct {
	mock.Mock
}

func (m *MockCreator) BookAppointment(ctx context.Context, req model.BookingRequest) (*model.Appointment, error) {
	args := m.Called(ctx, req)
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

var fixedNow = time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC)

func newService(creator Creator) *Service {
	v := validator.New(
		validator.WithClock(func() time.Time { return fixedNow }),
		validator.WithLocation(time.UTC),
		validator.WithSlots(model.Slots),
	)
	return NewService(creator, v, metrics.New("test", nil), nil)
}

func validForm() *Form {
	return &Form{
		Doctors: []model.Doctor{{ID: "d1", Name: "Grey", Specialization: "Surgery"}},
		Values: model.BookingRequest{
			DoctorID:      "d1",
			Date:          "2024-05-10",
			Time:          "14:00",
			Duration:      "45",
			ModeOfPayment: "upi",
			Reason:        "Recurring headaches",
		},
	}
}

func TestSubmit_ShortReasonBlocksRequest(t *testing.T) {
	creator := new(MockCreator)
	svc := newService(creator)
	n := &recorder{}

	f := validForm()
	f.Values.Reason = "headache"

	calls := 0
	err := svc.Submit(context.Background(), f, n, func(*model.Appointment) { calls++ })

	require.Error(t, err)
	assert.Equal(t, "Must contain at least 10 characters", f.Errors["reason"])
	assert.False(t, f.Busy)
	assert.Zero(t, calls)
	assert.Empty(t, n.got)
	creator.AssertNotCalled(t, "BookAppointment", mock.Anything, mock.Anything)
}

func TestSubmit_PastDateAndUnknownDoctor(t *testing.T) {
	creator := new(MockCreator)
	svc := newService(creator)

	f := validForm()
	f.Values.Date = "2024-05-09"
	f.Values.DoctorID = "someone-else"

	err := svc.Submit(context.Background(), f, &recorder{}, nil)

	require.Error(t, err)
	assert.Equal(t, "Date cannot be in the past", f.Errors["date"])
	assert.Equal(t, MsgUnknownDoctor, f.Errors["doctorId"])
	creator.AssertNotCalled(t, "BookAppointment", mock.Anything, mock.Anything)
}

func TestSubmit_Success(t *testing.T) {
	creator := new(MockCreator)
	svc := newService(creator)
	n := &recorder{}

	f := validForm()
	want := f.Values
	var busyTrail []bool
	f.OnBusy = func(b bool) { busyTrail = append(busyTrail, b) }

	apt := &model.Appointment{ID: "A1", Status: model.AppointmentStatusPending}
	creator.On("BookAppointment", mock.Anything, want).Return(apt, nil).Once()

	var got []*model.Appointment
	err := svc.Submit(context.Background(), f, n, func(a *model.Appointment) { got = append(got, a) })

	require.NoError(t, err)
	assert.Equal(t, []*model.Appointment{apt}, got)
	assert.False(t, f.Busy)
	assert.Equal(t, []bool{true, false}, busyTrail)
	assert.Equal(t, []model.Notification{{Level: model.NotificationSuccess, Message: MsgBooked}}, n.got)
	assert.Equal(t, model.BookingRequest{}, f.Values)
	creator.AssertExpectations(t)
}

func TestSubmit_FailureUsesServerMessage(t *testing.T) {
	creator := new(MockCreator)
	svc := newService(creator)
	n := &recorder{}

	f := validForm()
	creator.On("BookAppointment", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewUpstream(409, "Slot already taken")).Once()

	calls := 0
	err := svc.Submit(context.Background(), f, n, func(*model.Appointment) { calls++ })

	require.Error(t, err)
	assert.Zero(t, calls)
	assert.False(t, f.Busy)
	assert.Equal(t, "14:00", f.Values.Time, "values survive a failed booking")
	assert.Equal(t, []model.Notification{{Level: model.NotificationError, Message: "Slot already taken"}}, n.got)
}

func TestSubmit_FailureFallbackMessage(t *testing.T) {
	creator := new(MockCreator)
	svc := newService(creator)
	n := &recorder{}

	creator.On("BookAppointment", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewTransport(assert.AnError)).Once()

	err := svc.Submit(context.Background(), validForm(), n, nil)

	require.Error(t, err)
	require.Len(t, n.got, 1)
	assert.Equal(t, MsgBookingFailed, n.got[0].Message)
}

func TestSubmit_IgnoredWhileBusy(t *testing.T) {
	creator := new(MockCreator)
	svc := newService(creator)

	f := validForm()
	f.Busy = true

	err := svc.Submit(context.Background(), f, &recorder{}, nil)

	assert.ErrorIs(t, err, ErrBusy)
	assert.True(t, f.Busy)
	creator.AssertNotCalled(t, "BookAppointment", mock.Anything, mock.Anything)
}
