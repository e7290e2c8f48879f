package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"salepage/cms/middleware"
	"salepage/cms/models"
	"salepage/cms/session"
)

// currentGate returns the request's gate or answers 500 when the session
// middleware did not run.
func currentGate(c *gin.Context) (*session.Gate, bool) {
	gate, ok := middleware.GateFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Session not loaded"})
		return nil, false
	}
	return gate, true
}

func accessToken(gate *session.Gate) string {
	p, _ := gate.Payload()
	return p.AccessToken
}

// sessionExpired resets the gate after the backend rejected its token and
// sends the browser back to the login screen.
func sessionExpired(c *gin.Context, gate *session.Gate) {
	nav := gate.OnUnauthorizedResponse()
	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":    "Session expired, please log in again",
			"redirect": nav.To,
		})
		return
	}
	c.Redirect(http.StatusSeeOther, nav.To)
	c.Abort()
}

// stillAuthenticated re-checks the gate once a slow upstream call returns.
// A logout or 401 seen meanwhile wins over the late result. The gate is
// not touched, the session that ended must not hand a destination to the
// next login.
func stillAuthenticated(c *gin.Context, gate *session.Gate) bool {
	d := gate.Check()
	if d.Allow {
		return true
	}
	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":    "Unauthorized: login required",
			"redirect": d.To,
		})
		return false
	}
	c.Redirect(http.StatusSeeOther, d.To)
	c.Abort()
	return false
}

func degraded(message string) gin.H {
	return gin.H{"data": nil, "notification": models.ErrorNotification(message)}
}
