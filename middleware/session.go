package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"salepage/cms/session"
	"salepage/cms/utils"
)

const (
	CookieName = "cms_session"

	gateKey      = "session_gate"
	sessionIDKey = "session_id"
)

type SessionConfig struct {
	Secret []byte
	TTL    time.Duration
	Secure bool
}

// SessionLoader attaches the browser's gate to the request. A missing,
// invalid or expired cookie gets a fresh anonymous session.
func SessionLoader(reg *session.Registry, cfg SessionConfig, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, err := c.Cookie(CookieName); err == nil && token != "" {
			claims, err := utils.ValidateSessionToken(cfg.Secret, token)
			if err != nil {
				logger.Debug().Err(err).Msg("discarding session cookie")
			} else if gate, ok := reg.Lookup(claims.SessionID); ok {
				c.Set(gateKey, gate)
				c.Set(sessionIDKey, claims.SessionID)
				c.Next()
				return
			}
		}

		id, gate := reg.Create()
		token, err := utils.GenerateSessionToken(cfg.Secret, id, cfg.TTL)
		if err != nil {
			reg.Remove(id)
			logger.Error().Err(err).Msg("issuing session token")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
			return
		}
		setSessionCookie(c, token, int(cfg.TTL/time.Second), cfg.Secure)
		c.Set(gateKey, gate)
		c.Set(sessionIDKey, id)
		c.Next()
	}
}

// GateFrom returns the gate SessionLoader attached.
func GateFrom(c *gin.Context) (*session.Gate, bool) {
	v, ok := c.Get(gateKey)
	if !ok {
		return nil, false
	}
	gate, ok := v.(*session.Gate)
	return gate, ok
}

func SessionIDFrom(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}

// EndSession forgets the browser's session and expires its cookie.
func EndSession(c *gin.Context, reg *session.Registry, secure bool) {
	if id := SessionIDFrom(c); id != "" {
		reg.Remove(id)
	}
	setSessionCookie(c, "", -1, secure)
}

func setSessionCookie(c *gin.Context, value string, maxAge int, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, value, maxAge, "/", "", secure, true)
}
