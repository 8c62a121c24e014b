package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/appointment-web/internal/model"
)

func TestFlash(t *testing.T) {
	s := New()
	s.Notify(model.Notification{Level: model.NotificationSuccess, Message: "one"})
	s.Notify(model.Notification{Level: model.NotificationError, Message: "two"})

	got := s.Flash()
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Message)
	assert.Empty(t, s.Flash())
}

func TestList(t *testing.T) {
	s := New()
	st := s.List(model.RoleDoctor)
	st.DetailID = "a1"

	assert.Same(t, st, s.List(model.RoleDoctor))
	assert.Equal(t, model.RoleDoctor, st.Role)
	assert.Empty(t, s.List(model.RolePatient).DetailID)
}

func storeRoundTrip(t *testing.T, store Store) {
	ctx := context.Background()

	s := New()
	s.Notify(model.Notification{Level: model.NotificationInfo, Message: "hello"})
	s.Form.Values.Reason = "Recurring headaches"
	s.Form.Errors = map[string]string{"time": "Select a valid time slot"}
	s.List(model.RolePatient).ConfirmCancelID = "a1"
	require.NoError(t, store.Save(ctx, s))
	assert.Empty(t, s.Notifications, "saving queues pending notifications")

	got, err := store.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Empty(t, got.Notifications)
	assert.Equal(t, "Recurring headaches", got.Form.Values.Reason)
	assert.Equal(t, "Select a valid time slot", got.Form.Errors["time"])
	assert.Equal(t, "a1", got.List(model.RolePatient).ConfirmCancelID)
	assert.False(t, got.UpdatedAt.IsZero())

	notes, err := store.Drain(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "hello", notes[0].Message)

	notes, err = store.Drain(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, notes, "notifications are shown once")

	marked, err := store.Marked(ctx, s.ID, RescheduleKey("a2"))
	require.NoError(t, err)
	assert.False(t, marked)

	require.NoError(t, store.Mark(ctx, s.ID, RescheduleKey("a2")))
	marked, err = store.Marked(ctx, s.ID, RescheduleKey("a2"))
	require.NoError(t, err)
	assert.True(t, marked)
	marked, err = store.Marked(ctx, s.ID, FormKey)
	require.NoError(t, err)
	assert.False(t, marked, "markers are per key")

	require.NoError(t, store.Unmark(ctx, s.ID, RescheduleKey("a2")))
	marked, err = store.Marked(ctx, s.ID, RescheduleKey("a2"))
	require.NoError(t, err)
	assert.False(t, marked)

	require.NoError(t, store.Delete(ctx, s.ID))
	_, err = store.Load(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

// overlappingRequests runs two requests of one browser whose loads overlap.
// The slower one saves its stale copy after the faster one finished.
func overlappingRequests(t *testing.T, store Store) {
	ctx := context.Background()

	s := New()
	require.NoError(t, store.Save(ctx, s))

	first, err := store.Load(ctx, s.ID)
	require.NoError(t, err)
	second, err := store.Load(ctx, s.ID)
	require.NoError(t, err)

	require.NoError(t, store.Mark(ctx, first.ID, FormKey))

	marked, err := store.Marked(ctx, second.ID, FormKey)
	require.NoError(t, err)
	assert.True(t, marked, "the second request sees the submission in flight")

	notes, err := store.Drain(ctx, second.ID)
	require.NoError(t, err)
	assert.Empty(t, notes)

	first.Notify(model.Notification{Level: model.NotificationSuccess, Message: "Appointment booked successfully"})
	require.NoError(t, store.Unmark(ctx, first.ID, FormKey))
	require.NoError(t, store.Save(ctx, first))

	second.Notify(model.Notification{Level: model.NotificationInfo, Message: "Please wait"})
	require.NoError(t, store.Save(ctx, second))

	marked, err = store.Marked(ctx, s.ID, FormKey)
	require.NoError(t, err)
	assert.False(t, marked, "a stale save does not lock the form again")

	notes, err = store.Drain(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "Appointment booked successfully", notes[0].Message)
	assert.Equal(t, "Please wait", notes[1].Message)
}

func TestMemoryStore(t *testing.T) {
	storeRoundTrip(t, NewMemoryStore(time.Minute, time.Minute))
}

func TestMemoryStore_OverlappingRequests(t *testing.T) {
	overlappingRequests(t, NewMemoryStore(time.Minute, time.Minute))
}

func TestMemoryStore_StaleMarker(t *testing.T) {
	store := NewMemoryStore(time.Minute, time.Minute)
	store.inFlightTTL = 20 * time.Millisecond
	ctx := context.Background()

	require.NoError(t, store.Mark(ctx, "s1", FormKey))
	time.Sleep(40 * time.Millisecond)

	marked, err := store.Marked(ctx, "s1", FormKey)
	require.NoError(t, err)
	assert.False(t, marked, "a marker left by a dead request expires")
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(20*time.Millisecond, time.Minute)
	s := New()
	require.NoError(t, store.Save(context.Background(), s))

	time.Sleep(40 * time.Millisecond)

	_, err := store.Load(context.Background(), s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("APPTUI_TEST_REDIS_URL")
	if url == "" {
		t.Skip("APPTUI_TEST_REDIS_URL not set")
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStoreWithClient(client, "apptui:test:", time.Minute)
	storeRoundTrip(t, store)
	overlappingRequests(t, store)
}
