package validator

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Validator provides validation functionality
type Validator interface {
	Validate(interface{}) error
}

// FieldErrors maps a json field name to the first message reported for it.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+f[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type Option func(*validate)

// WithClock sets the time source used by the notpast rule.
func WithClock(now func() time.Time) Option {
	return func(v *validate) { v.now = now }
}

// WithLocation sets the zone in which calendar days are compared.
func WithLocation(loc *time.Location) Option {
	return func(v *validate) { v.loc = loc }
}

// WithSlots sets the start times accepted by the slot rule. Without it every
// value fails the rule.
func WithSlots(slots []string) Option {
	return func(v *validate) {
		v.slots = make(map[string]struct{}, len(slots))
		for _, s := range slots {
			v.slots[s] = struct{}{}
		}
	}
}

type validate struct {
	engine *validator.Validate
	now    func() time.Time
	loc    *time.Location
	slots  map[string]struct{}
}

var messages = map[string]string{
	"required": "This field is required",
	"datetime": "Invalid date format",
	"notpast":  "Date cannot be in the past",
	"slot":     "Select a valid time slot",
}

func New(opts ...Option) Validator {
	v := &validate{
		engine: validator.New(validator.WithRequiredStructEnabled()),
		now:    time.Now,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(v)
	}

	v.engine.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// Registration only fails for empty tags or nil funcs.
	_ = v.engine.RegisterValidation("slot", func(fl validator.FieldLevel) bool {
		_, ok := v.slots[fl.Field().String()]
		return ok
	})
	_ = v.engine.RegisterValidation("notpast", v.notPast)

	return v
}

func (v *validate) Validate(obj interface{}) error {
	err := v.engine.Struct(obj)
	if err == nil {
		return nil
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	fields := make(FieldErrors, len(errs))
	for _, e := range errs {
		if _, seen := fields[e.Field()]; seen {
			continue
		}
		fields[e.Field()] = message(e)
	}
	return fields
}

func (v *validate) notPast(fl validator.FieldLevel) bool {
	day, err := time.ParseInLocation("2006-01-02", fl.Field().String(), v.loc)
	if err != nil {
		// datetime reports the format problem.
		return true
	}
	return !day.Before(StartOfDay(v.now(), v.loc))
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func message(e validator.FieldError) string {
	if msg, ok := messages[e.Tag()]; ok {
		return msg
	}
	switch e.Tag() {
	case "min":
		return fmt.Sprintf("Must contain at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("Must contain at most %s characters", e.Param())
	case "oneof":
		return "Select one of: " + strings.ReplaceAll(e.Param(), " ", ", ")
	default:
		return e.Error()
	}
}
