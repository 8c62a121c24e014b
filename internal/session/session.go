// Package session keeps per-browser UI state between requests. The saved
// session holds the booking form draft and each list's modal targets.
// Queued notifications and in-flight markers live beside it in the store.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/appointment-web/internal/model"
	"github.com/jwalitptl/appointment-web/internal/service/booking"
	"github.com/jwalitptl/appointment-web/internal/service/listing"
)

var ErrNotFound = errors.New("session not found")

// StaleAfter bounds how long an unfinished submission keeps its form
// disabled, so a request that died mid-flight cannot lock it forever.
const StaleAfter = 2 * time.Minute

// Store persists sessions for ttl after their last save.
//
// Notifications and in-flight markers are kept beside the session under
// their own keys, never inside the saved session, so a request that saves a
// stale copy cannot drop another request's toast or revive its busy flag.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	// Save writes the session and queues its pending notifications.
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error

	// Drain returns and removes the notifications queued for id.
	Drain(ctx context.Context, id string) ([]model.Notification, error)

	// Mark records key as in flight for id until Unmark or StaleAfter.
	Mark(ctx context.Context, id, key string) error
	Unmark(ctx context.Context, id, key string) error
	Marked(ctx context.Context, id, key string) (bool, error)
}

type Session struct {
	ID    string                        `json:"id"`
	Form  booking.Form                  `json:"form"`
	Lists map[model.Role]*listing.State `json:"lists,omitempty"`
	// Notifications raised by this request, queued on the next Save.
	Notifications []model.Notification `json:"-"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func New() *Session {
	return &Session{ID: uuid.NewString()}
}

// Notify adds n to the notifications raised by this request.
func (s *Session) Notify(n model.Notification) {
	s.Notifications = append(s.Notifications, n)
}

// Flash returns and clears the notifications raised by this request.
func (s *Session) Flash() []model.Notification {
	out := s.Notifications
	s.Notifications = nil
	return out
}

// List returns the list state for role, creating it on first use.
func (s *Session) List(role model.Role) *listing.State {
	if s.Lists == nil {
		s.Lists = map[model.Role]*listing.State{}
	}
	st, ok := s.Lists[role]
	if !ok {
		st = &listing.State{Role: role}
		s.Lists[role] = st
	}
	return st
}

// Keys for in-flight submissions.
const FormKey = "booking"

func ListKey(role model.Role) string { return "list:" + string(role) }

func RescheduleKey(id string) string { return "reschedule:" + id }
