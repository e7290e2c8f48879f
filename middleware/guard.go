package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"salepage/cms/routes"
)

// Guard applies the route table to every navigation. It must run after
// SessionLoader.
func Guard(table *routes.Table) gin.HandlerFunc {
	return func(c *gin.Context) {
		gate, ok := GateFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Session not loaded"})
			return
		}

		// only screen navigations are replayed after login
		var outcome routes.Outcome
		if isNavigation(c) {
			outcome = routes.Decide(table, gate, c.Request.URL.Path)
		} else {
			outcome = routes.Peek(table, gate, c.Request.URL.Path)
		}
		switch outcome.Kind {
		case routes.NotFound:
			NotFound(c)
		case routes.Redirect:
			// an authenticated session may still submit the login form,
			// the login flow treats a replay as a no-op
			if outcome.Route.Group == routes.AuthOnly && c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
				c.Next()
				return
			}
			if wantsJSON(c) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":    "Unauthorized: login required",
					"redirect": outcome.To,
				})
				return
			}
			c.Redirect(http.StatusSeeOther, outcome.To)
			c.Abort()
		default:
			c.Next()
		}
	}
}

// NotFound answers a path outside the route table.
func NotFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Page not found", "path": c.Request.URL.Path})
}

func isNavigation(c *gin.Context) bool {
	m := c.Request.Method
	return (m == http.MethodGet || m == http.MethodHead) && !wantsJSON(c)
}

func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}
