package appointment

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/appointment-web/internal/handler"
	"github.com/jwalitptl/appointment-web/internal/middleware"
	"github.com/jwalitptl/appointment-web/internal/model"
	"github.com/jwalitptl/appointment-web/internal/service/listing"
	"github.com/jwalitptl/appointment-web/internal/session"
)

const (
	msgUpdateInProgress  = "Another update is still in progress."
	msgActionUnavailable = "This action is not available for this appointment."
)

// Handler serves the list actions shared by the patient and doctor pages.
// Every action redirects back to the viewer's dashboard.
type Handler struct {
	*handler.Base
	api     handler.AppointmentLister
	listing *listing.Service
}

func NewHandler(base *handler.Base, api handler.AppointmentLister, listingSvc *listing.Service) *Handler {
	return &Handler{Base: base, api: api, listing: listingSvc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	for _, role := range []model.Role{model.RolePatient, model.RoleDoctor} {
		appointments := r.Group("/" + string(role) + "/appointments")
		{
			appointments.POST("/:id/status", h.ChangeStatus(role))
			appointments.POST("/:id/cancel", h.RequestCancel(role))
			appointments.POST("/cancel/confirm", h.ConfirmCancel(role))
			appointments.POST("/cancel/dismiss", h.DismissCancel(role))
			appointments.POST("/:id/details", h.OpenDetail(role))
			appointments.POST("/details/close", h.CloseDetail(role))
		}
	}
}

// ChangeStatus applies a non-cancelling status action.
func (h *Handler) ChangeStatus(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := middleware.CurrentSession(c)
		st, err := h.ActionList(c, sess, h.api, h.listing, role)
		if err != nil {
			h.fail(c, sess, role, listing.MsgStatusFailed)
			return
		}

		to := model.AppointmentStatus(c.PostForm("status"))
		err = h.listing.ChangeStatus(c.Request.Context(), st, sess, c.Param("id"), to, nil)
		h.finish(c, sess, role, err)
	}
}

// RequestCancel opens the cancel confirmation prompt.
func (h *Handler) RequestCancel(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := middleware.CurrentSession(c)
		st, err := h.ActionList(c, sess, h.api, h.listing, role)
		if err != nil {
			h.fail(c, sess, role, listing.MsgStatusFailed)
			return
		}
		h.finish(c, sess, role, h.listing.RequestCancel(st, c.Param("id")))
	}
}

// ConfirmCancel cancels the appointment awaiting confirmation.
func (h *Handler) ConfirmCancel(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := middleware.CurrentSession(c)
		st, err := h.ActionList(c, sess, h.api, h.listing, role)
		if err != nil {
			h.fail(c, sess, role, listing.MsgStatusFailed)
			return
		}
		err = h.listing.ConfirmCancel(c.Request.Context(), st, sess, nil)
		h.finish(c, sess, role, err)
	}
}

// DismissCancel closes the prompt. Nothing is sent upstream.
func (h *Handler) DismissCancel(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := middleware.CurrentSession(c)
		h.listing.DismissCancel(sess.List(role))
		h.Redirect(c, sess, handler.DashboardPath(role))
	}
}

func (h *Handler) OpenDetail(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := middleware.CurrentSession(c)
		st, err := h.ActionList(c, sess, h.api, h.listing, role)
		if err != nil {
			h.fail(c, sess, role, handler.MsgListUnavailable)
			return
		}
		h.finish(c, sess, role, h.listing.OpenDetail(st, c.Param("id")))
	}
}

func (h *Handler) CloseDetail(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := middleware.CurrentSession(c)
		h.listing.CloseDetail(sess.List(role))
		h.Redirect(c, sess, handler.DashboardPath(role))
	}
}

// finish reports errors the list service did not already turn into a
// notification and redirects to the dashboard.
func (h *Handler) finish(c *gin.Context, sess *session.Session, role model.Role, err error) {
	switch {
	case err == nil:
	case errors.Is(err, listing.ErrBusy):
		sess.Notify(model.Notification{Level: model.NotificationInfo, Message: msgUpdateInProgress})
	case errors.Is(err, listing.ErrUnknownAppointment),
		errors.Is(err, listing.ErrTransitionNotAllowed),
		errors.Is(err, listing.ErrConfirmationRequired),
		errors.Is(err, listing.ErrNoPendingCancel),
		errors.Is(err, listing.ErrDetailUnavailable):
		log.Warn().
			Err(err).
			Str("request_id", c.GetString(middleware.ContextRequestID)).
			Str("role", string(role)).
			Str("appointment_id", c.Param("id")).
			Msg("Rejected appointment action")
		sess.Notify(model.Notification{Level: model.NotificationError, Message: msgActionUnavailable})
	}
	h.Redirect(c, sess, handler.DashboardPath(role))
}

func (h *Handler) fail(c *gin.Context, sess *session.Session, role model.Role, msg string) {
	sess.Notify(model.Notification{Level: model.NotificationError, Message: msg})
	h.Redirect(c, sess, handler.DashboardPath(role))
}
