package listing

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jwalitptl/appointment-web/internal/model"
	"github.com/jwalitptl/appointment-web/pkg/logger"
	"github.com/jwalitptl/appointment-web/pkg/metrics"
)

// Display placeholders for names that could not be resolved.
const (
	NameUnknownDoctor  = "Unknown Doctor"
	NameUnknownPatient = "Unknown Patient"
	NameNotFound       = "Name Not Found"
	NameLoading        = "Loading..."
	NameInvalidID      = "Invalid ID"
)

// Directory looks up the people referenced by appointments.
type Directory interface {
	GetDoctor(ctx context.Context, id string) (*model.Doctor, error)
	GetPatient(ctx context.Context, id string) (*model.Patient, error)
}

// Names maps ids to display names for one appointment collection.
type Names struct {
	Doctors  map[string]string
	Patients map[string]string
}

type resolver struct {
	dir         Directory
	concurrency int
	metrics     *metrics.Metrics
	log         *logger.Logger
}

// resolve issues one lookup per distinct doctor id and one per distinct
// patient id. Failed lookups become placeholders and never fail the join.
func (r *resolver) resolve(ctx context.Context, apts []model.Appointment) Names {
	var doctorIDs, patientIDs []string
	seenDoctor := map[string]bool{}
	seenPatient := map[string]bool{}
	for _, a := range apts {
		if id := a.Doctor.ID; id != "" && !seenDoctor[id] {
			seenDoctor[id] = true
			doctorIDs = append(doctorIDs, id)
		}
		if id := a.Patient.ID; id != "" && !seenPatient[id] {
			seenPatient[id] = true
			patientIDs = append(patientIDs, id)
		}
	}

	doctorNames := make([]string, len(doctorIDs))
	patientNames := make([]string, len(patientIDs))

	var g errgroup.Group
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for i, id := range doctorIDs {
		i, id := i, id
		g.Go(func() error {
			doctorNames[i] = r.doctorName(ctx, id)
			return nil
		})
	}
	for i, id := range patientIDs {
		i, id := i, id
		g.Go(func() error {
			patientNames[i] = r.patientName(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	names := Names{
		Doctors:  make(map[string]string, len(doctorIDs)),
		Patients: make(map[string]string, len(patientIDs)),
	}
	for i, id := range doctorIDs {
		names.Doctors[id] = doctorNames[i]
	}
	for i, id := range patientIDs {
		names.Patients[id] = patientNames[i]
	}
	return names
}

func (r *resolver) doctorName(ctx context.Context, id string) string {
	doc, err := r.dir.GetDoctor(ctx, id)
	if err != nil || doc == nil {
		r.log.WithContext(ctx).Warn(err, "doctor lookup failed", "doctor_id", id)
		r.count("doctor", metrics.OutcomeFailure)
		return NameUnknownDoctor
	}
	r.count("doctor", metrics.OutcomeSuccess)
	if strings.TrimSpace(doc.Name) == "" {
		return NameNotFound
	}
	return doc.Name
}

func (r *resolver) patientName(ctx context.Context, id string) string {
	p, err := r.dir.GetPatient(ctx, id)
	if err != nil || p == nil {
		r.log.WithContext(ctx).Warn(err, "patient lookup failed", "patient_id", id)
		r.count("patient", metrics.OutcomeFailure)
		return NameUnknownPatient
	}
	r.count("patient", metrics.OutcomeSuccess)
	if strings.TrimSpace(p.Username) == "" {
		return NameNotFound
	}
	return p.Username
}

func (r *resolver) count(kind, outcome string) {
	if r.metrics != nil {
		r.metrics.NameLookups.WithLabelValues(kind, outcome).Inc()
	}
}

// DisplayName returns the resolved name for id, or the placeholder matching
// its state.
func DisplayName(names map[string]string, id string) string {
	if id == "" {
		return NameInvalidID
	}
	if name, ok := names[id]; ok {
		return name
	}
	return NameLoading
}
