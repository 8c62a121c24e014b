package booking

import (
	"time"

	"github.com/jwalitptl/appointment-web/pkg/validator"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// Day is one cell of the date picker grid.
type Day struct {
	Date     time.Time
	Value    string
	Disabled bool
	Selected bool
	Today    bool
	InMonth  bool
}

// Month is a calendar page starting on Sunday.
type Month struct {
	Title        string
	Value        string
	Prev         string
	Next         string
	PrevDisabled bool
	Weeks        [][]Day
}

// Picker lays out the booking calendar. Days strictly before today are
// disabled, compared at day granularity in Loc.
type Picker struct {
	Now func() time.Time
	Loc *time.Location
}

func NewPicker(now func() time.Time, loc *time.Location) Picker {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return Picker{Now: now, Loc: loc}
}

// Disabled reports whether day may not be picked.
func (p Picker) Disabled(day time.Time) bool {
	return validator.StartOfDay(day, p.Loc).Before(validator.StartOfDay(p.Now(), p.Loc))
}

// Month renders the page named by month ("YYYY-MM"), falling back to the
// current month. selected is the currently chosen "YYYY-MM-DD" value.
func (p Picker) Month(month, selected string) Month {
	today := validator.StartOfDay(p.Now(), p.Loc)

	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, p.Loc)
	if t, err := time.ParseInLocation(monthLayout, month, p.Loc); err == nil {
		first = t
	} else if t, err := time.ParseInLocation(dayLayout, selected, p.Loc); err == nil {
		first = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, p.Loc)
	}

	m := Month{
		Title: first.Format("January 2006"),
		Value: first.Format(monthLayout),
		Prev:  first.AddDate(0, -1, 0).Format(monthLayout),
		Next:  first.AddDate(0, 1, 0).Format(monthLayout),
		// Every day of an earlier month is already past.
		PrevDisabled: !first.After(time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, p.Loc)),
	}

	start := first.AddDate(0, 0, -int(first.Weekday()))
	for cursor := start; ; {
		week := make([]Day, 0, 7)
		for i := 0; i < 7; i++ {
			value := NormalizeDate(cursor)
			week = append(week, Day{
				Date:     cursor,
				Value:    value,
				Disabled: p.Disabled(cursor),
				Selected: value == selected,
				Today:    cursor.Equal(today),
				InMonth:  cursor.Month() == first.Month(),
			})
			cursor = cursor.AddDate(0, 0, 1)
		}
		m.Weeks = append(m.Weeks, week)
		if cursor.Month() != first.Month() {
			break
		}
	}
	return m
}

// NormalizeDate formats the picked day's calendar date in its own zone. The
// instant is never converted, so no zone offset can move the date.
func NormalizeDate(day time.Time) string {
	return day.Format(dayLayout)
}
