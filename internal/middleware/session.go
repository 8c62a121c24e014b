package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/appointment-web/internal/session"
)

const ContextSession = "session"

type SessionConfig struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Session loads the browser's UI session, starting a new one when the cookie
// is missing or the session expired. Handlers save it before responding.
func Session(store session.Store, cfg SessionConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sess *session.Session
		if id, err := c.Cookie(cfg.CookieName); err == nil && id != "" {
			loaded, err := store.Load(c.Request.Context(), id)
			switch {
			case err == nil:
				sess = loaded
			case errors.Is(err, session.ErrNotFound):
			default:
				log.Warn().
					Err(err).
					Str("request_id", c.GetString(ContextRequestID)).
					Msg("Failed to load session, starting a new one")
			}
		}
		if sess == nil {
			sess = session.New()
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.CookieName, sess.ID, int(cfg.TTL.Seconds()), "/", "", cfg.Secure, true)
		c.Set(ContextSession, sess)
		c.Next()
	}
}

// CurrentSession returns the session loaded by Session.
func CurrentSession(c *gin.Context) *session.Session {
	if v, ok := c.Get(ContextSession); ok {
		if sess, ok := v.(*session.Session); ok {
			return sess
		}
	}
	return session.New()
}
