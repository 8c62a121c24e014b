package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageOr(t *testing.T) {
	upstream := NewUpstream(http.StatusConflict, "Slot already taken")
	wrapped := fmt.Errorf("book appointment: %w", upstream)

	assert.Equal(t, "Slot already taken", MessageOr(wrapped, "fallback"))
	assert.Equal(t, "fallback", MessageOr(NewUpstream(http.StatusInternalServerError, ""), "fallback"))
	assert.Equal(t, "fallback", MessageOr(NewTransport(stderrors.New("dial tcp")), "fallback"))
	assert.Equal(t, "fallback", MessageOr(stderrors.New("boom"), "fallback"))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, NotFound("appointment", nil).StatusCode())
	assert.Equal(t, http.StatusBadRequest, Validation("bad").StatusCode())
	assert.Equal(t, http.StatusConflict, NewUpstream(http.StatusConflict, "").StatusCode())
	assert.Equal(t, http.StatusBadGateway, NewTransport(nil).StatusCode())
	assert.Equal(t, http.StatusInternalServerError, Internal(nil).StatusCode())
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("load: %w", NotFound("appointment", nil))
	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrUpstream))
}
