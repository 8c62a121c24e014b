package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/appointment-web/internal/middleware"
	"github.com/jwalitptl/appointment-web/internal/model"
	"github.com/jwalitptl/appointment-web/internal/service/listing"
	"github.com/jwalitptl/appointment-web/internal/session"
	"github.com/jwalitptl/appointment-web/internal/view"
	"github.com/jwalitptl/appointment-web/pkg/metrics"
)

const MsgListUnavailable = "Could not load appointments. Please try again later."

// AppointmentLister fetches the appointments shown to a viewer.
type AppointmentLister interface {
	ListAppointments(ctx context.Context, role model.Role) ([]model.Appointment, error)
}

// Base holds what every page handler needs.
type Base struct {
	Store   session.Store
	Metrics *metrics.Metrics
}

func NewBase(store session.Store, m *metrics.Metrics) *Base {
	return &Base{Store: store, Metrics: m}
}

// Page builds the layout data. It drains the notifications queued by earlier
// requests of the session and those raised by this one.
func (b *Base) Page(c *gin.Context, sess *session.Session, title string, role model.Role) view.Page {
	notes, err := b.Store.Drain(c.Request.Context(), sess.ID)
	if err != nil {
		log.Error().
			Err(err).
			Str("request_id", c.GetString(middleware.ContextRequestID)).
			Str("session_id", sess.ID).
			Msg("Failed to drain notifications")
	}
	notes = append(notes, sess.Flash()...)
	if b.Metrics != nil {
		for _, n := range notes {
			b.Metrics.Notifications.WithLabelValues(string(n.Level)).Inc()
		}
	}
	return view.Page{
		Title:         title,
		Role:          role,
		Notifications: notes,
		RequestID:     c.GetString(middleware.ContextRequestID),
	}
}

// Save persists sess. Failures are logged; the page still renders.
func (b *Base) Save(c *gin.Context, sess *session.Session) {
	if err := b.Store.Save(c.Request.Context(), sess); err != nil {
		log.Error().
			Err(err).
			Str("request_id", c.GetString(middleware.ContextRequestID)).
			Str("session_id", sess.ID).
			Msg("Failed to save session")
	}
}

// Redirect saves sess and sends the browser to location with 303 See Other.
func (b *Base) Redirect(c *gin.Context, sess *session.Session, location string) {
	b.Save(c, sess)
	c.Redirect(http.StatusSeeOther, location)
}

// Render saves sess and renders the named page.
func (b *Base) Render(c *gin.Context, sess *session.Session, status int, name string, data interface{}) {
	b.Save(c, sess)
	c.HTML(status, name, data)
}

// Busy reports whether a submission for key is still in flight for sess.
// A store failure is logged and reads as idle.
func (b *Base) Busy(c *gin.Context, sess *session.Session, key string) bool {
	busy, err := b.Store.Marked(c.Request.Context(), sess.ID, key)
	if err != nil {
		log.Error().
			Err(err).
			Str("request_id", c.GetString(middleware.ContextRequestID)).
			Str("session_id", sess.ID).
			Str("key", key).
			Msg("Failed to read in-flight marker")
		return false
	}
	return busy
}

// BusyHook publishes busy changes for key as store markers so concurrent
// requests of the same session see them.
func (b *Base) BusyHook(c *gin.Context, sess *session.Session, key string) func(bool) {
	return func(busy bool) {
		ctx := c.Request.Context()
		var err error
		if busy {
			err = b.Store.Mark(ctx, sess.ID, key)
		} else {
			err = b.Store.Unmark(ctx, sess.ID, key)
		}
		if err != nil {
			log.Error().
				Err(err).
				Str("request_id", c.GetString(middleware.ContextRequestID)).
				Str("session_id", sess.ID).
				Str("key", key).
				Bool("busy", busy).
				Msg("Failed to publish in-flight marker")
		}
	}
}

// List returns role's list state with the current appointments loaded and
// their names resolved. A failed fetch leaves the list empty and is returned.
func (b *Base) List(c *gin.Context, sess *session.Session, lister AppointmentLister, svc *listing.Service, role model.Role) (*listing.State, error) {
	st, apts, err := b.fetch(c, sess, lister, role)
	svc.Load(c.Request.Context(), st, apts)
	return st, err
}

// ActionList is List without name resolution, for requests that change the
// list and redirect.
func (b *Base) ActionList(c *gin.Context, sess *session.Session, lister AppointmentLister, svc *listing.Service, role model.Role) (*listing.State, error) {
	st, apts, err := b.fetch(c, sess, lister, role)
	svc.Replace(st, apts)
	return st, err
}

func (b *Base) fetch(c *gin.Context, sess *session.Session, lister AppointmentLister, role model.Role) (*listing.State, []model.Appointment, error) {
	st := sess.List(role)
	st.Busy = b.Busy(c, sess, session.ListKey(role))
	st.OnBusy = b.BusyHook(c, sess, session.ListKey(role))

	apts, err := lister.ListAppointments(c.Request.Context(), role)
	if err != nil {
		log.Error().
			Err(err).
			Str("request_id", c.GetString(middleware.ContextRequestID)).
			Str("role", string(role)).
			Msg("Failed to list appointments")
		return st, nil, err
	}
	return st, apts, nil
}

// ListView lays out st for rendering.
func ListView(svc *listing.Service, st *listing.State, fetchErr error) view.ListView {
	lv := view.ListView{
		Role:   st.Role,
		Cards:  svc.Cards(st),
		Busy:   st.Busy,
		Detail: svc.Detail(st),
	}
	if fetchErr != nil {
		lv.Error = MsgListUnavailable
	}
	for i := range lv.Cards {
		if lv.Cards[i].Appointment.ID == st.ConfirmCancelID {
			lv.ConfirmCancel = &lv.Cards[i]
		}
	}
	return lv
}

// DashboardPath is the page a role lands on.
func DashboardPath(role model.Role) string {
	return "/" + string(role) + "/dashboard"
}
