package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPicker_DisablesPastDays(t *testing.T) {
	p := NewPicker(func() time.Time { return fixedNow }, time.UTC)

	m := p.Month("2024-05", "")
	require.NotEmpty(t, m.Weeks)
	assert.Equal(t, "May 2024", m.Title)
	assert.True(t, m.PrevDisabled)

	for _, week := range m.Weeks {
		require.Len(t, week, 7)
		for _, d := range week {
			assert.Equal(t, d.Value < "2024-05-10", d.Disabled, d.Value)
		}
	}
}

func TestPicker_Disabled(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 02:00 UTC on May 10 is still May 9 in New York.
	now := time.Date(2024, 5, 10, 2, 0, 0, 0, time.UTC)
	p := NewPicker(func() time.Time { return now }, ny)

	assert.False(t, p.Disabled(time.Date(2024, 5, 9, 0, 0, 0, 0, ny)))
	assert.True(t, p.Disabled(time.Date(2024, 5, 8, 23, 59, 0, 0, ny)))
	assert.False(t, p.Disabled(time.Date(2024, 6, 1, 0, 0, 0, 0, ny)))
}

func TestPicker_MonthLayout(t *testing.T) {
	p := NewPicker(func() time.Time { return fixedNow }, time.UTC)

	m := p.Month("2024-06", "2024-06-15")
	assert.Equal(t, "2024-05", m.Prev)
	assert.Equal(t, "2024-07", m.Next)
	assert.False(t, m.PrevDisabled)

	// June 2024 starts on a Saturday and spans six weeks.
	require.Len(t, m.Weeks, 6)
	assert.Equal(t, "2024-05-26", m.Weeks[0][0].Value)
	assert.False(t, m.Weeks[0][0].InMonth)
	assert.True(t, m.Weeks[0][6].InMonth)

	var selected []string
	for _, week := range m.Weeks {
		for _, d := range week {
			if d.Selected {
				selected = append(selected, d.Value)
			}
		}
	}
	assert.Equal(t, []string{"2024-06-15"}, selected)
}

func TestPicker_MonthFallsBackToSelectionThenToday(t *testing.T) {
	p := NewPicker(func() time.Time { return fixedNow }, time.UTC)

	assert.Equal(t, "2024-08", p.Month("", "2024-08-02").Value)
	assert.Equal(t, "2024-05", p.Month("garbage", "").Value)
}

func TestNormalizeDate(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	kiritimati, err := time.LoadLocation("Pacific/Kiritimati")
	require.NoError(t, err)
	bakerIsland := time.FixedZone("UTC-12", -12*60*60)

	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"utc", time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), "2024-05-10"},
		{"ahead of utc at midnight", time.Date(2024, 5, 10, 0, 0, 0, 0, kolkata), "2024-05-10"},
		{"behind utc late evening", time.Date(2024, 5, 10, 23, 30, 0, 0, la), "2024-05-10"},
		{"fourteen hours ahead", time.Date(2024, 5, 10, 0, 0, 0, 0, kiritimati), "2024-05-10"},
		{"fourteen hours ahead late evening", time.Date(2024, 5, 10, 23, 59, 0, 0, kiritimati), "2024-05-10"},
		{"twelve hours behind", time.Date(2024, 5, 10, 23, 59, 0, 0, bakerIsland), "2024-05-10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDate(tt.in))
		})
	}
}
