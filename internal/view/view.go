// Package view renders the appointment pages. Templates are embedded and
// installed on the gin engine with SetHTMLTemplate.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jwalitptl/appointment-web/internal/model"
	"github.com/jwalitptl/appointment-web/internal/service/booking"
	"github.com/jwalitptl/appointment-web/internal/service/listing"
	"github.com/jwalitptl/appointment-web/internal/service/reschedule"
)

// Template names.
const (
	PatientDashboard = "patient_dashboard.html"
	DoctorDashboard  = "doctor_dashboard.html"
	Reschedule       = "reschedule.html"
	NotFound         = "not_found.html"
	Error            = "error.html"
)

//go:embed templates/*.html
var files embed.FS

//go:embed static
var static embed.FS

// Templates parses every page together with the shared layout.
func Templates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(Funcs()).ParseFS(files, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

// Static serves the stylesheet under /static.
func Static() http.FileSystem {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

func Funcs() template.FuncMap {
	return template.FuncMap{
		"statusClass":  func(s model.AppointmentStatus) string { return listing.StatusClass(s) },
		"statusLabel":  StatusLabel,
		"paymentLabel": model.PaymentModeLabel,
		"formatDate":   FormatDate,
		"detailReason": listing.DetailReason,
		"actionURL":    ActionURL,
		"isStatus":     func(a model.Action) bool { return a.Kind == model.ActionStatus },
		"isCancel":     func(a model.Action) bool { return a.Kind == model.ActionCancel },
		"isReschedule": func(a model.Action) bool { return a.Kind == model.ActionReschedule },
	}
}

// StatusLabel capitalizes a status for badges.
func StatusLabel(s model.AppointmentStatus) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// FormatDate renders the calendar day of an ISO date as "May 10, 2024". Values
// that do not parse are shown as given.
func FormatDate(iso string) string {
	day, _, _ := strings.Cut(iso, "T")
	t, err := time.Parse("2006-01-02", strings.TrimSpace(day))
	if err != nil {
		return iso
	}
	return t.Format("January 2, 2006")
}

// ActionURL is where the button for a on appointment id submits to.
func ActionURL(role model.Role, id string, a model.Action) string {
	escaped := url.PathEscape(id)
	switch a.Kind {
	case model.ActionCancel:
		return "/" + string(role) + "/appointments/" + escaped + "/cancel"
	case model.ActionReschedule:
		return "/patient/reschedule-appointment/" + escaped
	default:
		return "/" + string(role) + "/appointments/" + escaped + "/status"
	}
}

// Page carries what the shared layout needs.
type Page struct {
	Title         string
	Role          model.Role
	Notifications []model.Notification
	RequestID     string
}

// FormView is the booking form with its option lists.
type FormView struct {
	*booking.Form
	Month        booking.Month
	Slots        []string
	Durations    []string
	PaymentModes []string
}

func NewFormView(f *booking.Form, month booking.Month) FormView {
	return FormView{
		Form:         f,
		Month:        month,
		Slots:        model.Slots,
		Durations:    model.Durations,
		PaymentModes: model.PaymentModes,
	}
}

// ListView is one viewer's appointment list with its modals.
type ListView struct {
	Role          model.Role
	Cards         []listing.Card
	Busy          bool
	ConfirmCancel *listing.Card
	Detail        *model.Appointment
	// Error replaces the list when the collection could not be fetched.
	Error string
}

type DashboardPage struct {
	Page
	Form *FormView
	List ListView
}

type ReschedulePage struct {
	Page
	View  *reschedule.View
	Slots []string
}

type MessagePage struct {
	Page
	Message string
}
