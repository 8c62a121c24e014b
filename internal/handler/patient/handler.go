package patient

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/appointment-web/internal/handler"
	"github.com/jwalitptl/appointment-web/internal/middleware"
	"github.com/jwalitptl/appointment-web/internal/model"
	"github.com/jwalitptl/appointment-web/internal/service/booking"
	"github.com/jwalitptl/appointment-web/internal/service/listing"
	"github.com/jwalitptl/appointment-web/internal/service/reschedule"
	"github.com/jwalitptl/appointment-web/internal/session"
	"github.com/jwalitptl/appointment-web/internal/view"
)

const (
	msgDoctorsUnavailable = "Could not load the list of doctors."
	msgBookingInProgress  = "Your booking is still being submitted."
	msgRescheduleBusy     = "This appointment is already being rescheduled."
	msgChooseSlot         = "Choose a new time slot and a duration."
)

// Gateway is the part of the appointment API the patient pages read.
type Gateway interface {
	handler.AppointmentLister
	ListDoctors(ctx context.Context) ([]model.Doctor, error)
}

type Handler struct {
	*handler.Base
	api        Gateway
	booking    *booking.Service
	listing    *listing.Service
	reschedule *reschedule.Service
	picker     booking.Picker
}

func NewHandler(base *handler.Base, api Gateway, bookingSvc *booking.Service, listingSvc *listing.Service, rescheduleSvc *reschedule.Service, picker booking.Picker) *Handler {
	return &Handler{
		Base:       base,
		api:        api,
		booking:    bookingSvc,
		listing:    listingSvc,
		reschedule: rescheduleSvc,
		picker:     picker,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patient := r.Group("/patient")
	{
		patient.GET("/dashboard", h.Dashboard)
		patient.POST("/appointments", h.Book)
		patient.GET("/reschedule-appointment/:id", h.RescheduleForm)
		patient.POST("/reschedule-appointment/:id", h.Reschedule)
	}
}

// Dashboard renders the booking form next to the patient's appointments.
func (h *Handler) Dashboard(c *gin.Context) {
	sess := middleware.CurrentSession(c)

	form := sess.Form
	form.Busy = h.Busy(c, sess, session.FormKey)
	doctors, err := h.api.ListDoctors(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("request_id", c.GetString(middleware.ContextRequestID)).Msg("Failed to list doctors")
		sess.Notify(model.Notification{Level: model.NotificationError, Message: msgDoctorsUnavailable})
	}
	form.Doctors = doctors
	// Field errors show once; entered values stay until the booking succeeds.
	sess.Form.Errors = nil

	st, listErr := h.List(c, sess, h.api, h.listing, model.RolePatient)

	fv := view.NewFormView(&form, h.picker.Month(c.Query("month"), form.Values.Date))
	page := view.DashboardPage{
		Page: h.Page(c, sess, "Patient Dashboard", model.RolePatient),
		Form: &fv,
		List: handler.ListView(h.listing, st, listErr),
	}
	h.Render(c, sess, http.StatusOK, view.PatientDashboard, page)
}

// Book submits the booking form. The calendar's month buttons post the same
// form; they keep the draft and only move the calendar.
func (h *Handler) Book(c *gin.Context) {
	sess := middleware.CurrentSession(c)
	dashboard := handler.DashboardPath(model.RolePatient)

	var values model.BookingRequest
	if err := c.ShouldBind(&values); err != nil {
		_ = c.Error(err)
		h.Redirect(c, sess, dashboard)
		return
	}
	sess.Form.Values = values

	if month := c.PostForm("month"); month != "" {
		h.Redirect(c, sess, dashboard+"?month="+url.QueryEscape(month))
		return
	}

	form := &sess.Form
	form.Busy = h.Busy(c, sess, session.FormKey)
	form.OnBusy = h.BusyHook(c, sess, session.FormKey)
	doctors, err := h.api.ListDoctors(c.Request.Context())
	if err != nil {
		// Without the roster the doctor choice cannot be checked.
		log.Error().Err(err).Str("request_id", c.GetString(middleware.ContextRequestID)).Msg("Failed to list doctors")
		sess.Notify(model.Notification{Level: model.NotificationError, Message: msgDoctorsUnavailable})
		h.Redirect(c, sess, dashboard)
		return
	}
	form.Doctors = doctors

	err = h.booking.Submit(c.Request.Context(), form, sess, func(apt *model.Appointment) {
		log.Info().
			Str("request_id", c.GetString(middleware.ContextRequestID)).
			Str("appointment_id", apt.ID).
			Msg("Appointment booked")
	})
	if errors.Is(err, booking.ErrBusy) {
		sess.Notify(model.Notification{Level: model.NotificationInfo, Message: msgBookingInProgress})
	}
	h.Redirect(c, sess, dashboard)
}

// RescheduleForm renders the reschedule view for one appointment.
func (h *Handler) RescheduleForm(c *gin.Context) {
	sess := middleware.CurrentSession(c)
	id := c.Param("id")

	v := h.reschedule.Load(c.Request.Context(), id)
	v.Busy = h.Busy(c, sess, session.RescheduleKey(id))
	h.renderReschedule(c, sess, v)
}

// Reschedule moves the appointment to the posted slot on its original day.
func (h *Handler) Reschedule(c *gin.Context) {
	sess := middleware.CurrentSession(c)
	id := c.Param("id")
	back := "/patient/reschedule-appointment/" + url.PathEscape(id)

	v := h.reschedule.Load(c.Request.Context(), id)
	if v.Phase != reschedule.PhaseReady {
		h.renderReschedule(c, sess, v)
		return
	}

	v.NewTime = strings.TrimSpace(c.PostForm("time"))
	v.NewDuration, _ = strconv.Atoi(strings.TrimSpace(c.PostForm("duration")))
	v.Busy = h.Busy(c, sess, session.RescheduleKey(id))
	v.OnBusy = h.BusyHook(c, sess, session.RescheduleKey(id))

	next, err := h.reschedule.Submit(c.Request.Context(), v, sess)
	switch {
	case err == nil:
		h.Redirect(c, sess, next)
	case errors.Is(err, reschedule.ErrBusy):
		sess.Notify(model.Notification{Level: model.NotificationInfo, Message: msgRescheduleBusy})
		h.Redirect(c, sess, back)
	case errors.Is(err, reschedule.ErrCannotSend) && (v.NewTime == "" || v.NewDuration <= 0):
		sess.Notify(model.Notification{Level: model.NotificationInfo, Message: msgChooseSlot})
		h.Redirect(c, sess, back)
	default:
		h.Redirect(c, sess, back)
	}
}

func (h *Handler) renderReschedule(c *gin.Context, sess *session.Session, v *reschedule.View) {
	status := http.StatusOK
	if v.Phase == reschedule.PhaseNotFound {
		status = http.StatusNotFound
	}
	h.Render(c, sess, status, view.Reschedule, view.ReschedulePage{
		Page:  h.Page(c, sess, "Reschedule Appointment", model.RolePatient),
		View:  v,
		Slots: model.Slots,
	})
}
