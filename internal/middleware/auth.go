package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/appointment-web/internal/apiclient"
)

const TokenCookie = "token"

// ForwardToken passes the browser's bearer token on to the appointment API.
// The token is taken from the Authorization header, then from the token
// cookie. It is not verified here; the API decides.
func ForwardToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c.GetHeader("Authorization"))
		if token == "" {
			if cookie, err := c.Cookie(TokenCookie); err == nil {
				token = strings.TrimSpace(cookie)
			}
		}
		if token != "" {
			c.Request = c.Request.WithContext(apiclient.WithToken(c.Request.Context(), token))
		}
		c.Next()
	}
}

func bearer(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
