package doctor

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/appointment-web/internal/handler"
	"github.com/jwalitptl/appointment-web/internal/middleware"
	"github.com/jwalitptl/appointment-web/internal/model"
	"github.com/jwalitptl/appointment-web/internal/service/listing"
	"github.com/jwalitptl/appointment-web/internal/view"
)

type Handler struct {
	*handler.Base
	api     handler.AppointmentLister
	listing *listing.Service
}

func NewHandler(base *handler.Base, api handler.AppointmentLister, listingSvc *listing.Service) *Handler {
	return &Handler{Base: base, api: api, listing: listingSvc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/doctor/dashboard", h.Dashboard)
}

// Dashboard renders the doctor's appointments with their status actions.
func (h *Handler) Dashboard(c *gin.Context) {
	sess := middleware.CurrentSession(c)

	st, err := h.List(c, sess, h.api, h.listing, model.RoleDoctor)
	page := view.DashboardPage{
		Page: h.Page(c, sess, "Doctor Dashboard", model.RoleDoctor),
		List: handler.ListView(h.listing, st, err),
	}
	h.Render(c, sess, http.StatusOK, view.DoctorDashboard, page)
}
