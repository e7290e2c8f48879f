package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"salepage/cms/middleware"
	"salepage/cms/models"
	"salepage/cms/session"
)

type AuthHandlers struct {
	Flow     *session.LoginFlow
	Registry *session.Registry
	Secure   bool
	// OnLogout runs with the session id before the session is forgotten.
	OnLogout func(sessionID string)
	Logger   zerolog.Logger
}

func NewAuthHandlers(flow *session.LoginFlow, reg *session.Registry, secure bool, logger zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{Flow: flow, Registry: reg, Secure: secure, Logger: logger}
}

// LoginPage reports the login screen state. Authenticated sessions never
// get here, the guard sends them to the landing page.
func (h *AuthHandlers) LoginPage(c *gin.Context) {
	gate, ok := currentGate(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":      gate.State().String(),
		"remembered": gate.Remembered(),
	})
}

func (h *AuthHandlers) Login(c *gin.Context) {
	gate, ok := currentGate(c)
	if !ok {
		return
	}

	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	nav, err := h.Flow.Submit(c.Request.Context(), gate, session.Credentials{Username: req.Username, Password: req.Password})
	if err != nil {
		status, message := loginFailure(err)
		if status >= http.StatusInternalServerError {
			h.Logger.Error().Err(err).Str("request_id", middleware.RequestIDFrom(c)).Msg("login failed")
		}
		c.JSON(status, gin.H{"error": message})
		return
	}

	if nav.IsZero() {
		c.JSON(http.StatusOK, gin.H{"authenticated": true})
		return
	}
	c.Redirect(http.StatusSeeOther, nav.To)
}

func loginFailure(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid username or password"
	case errors.Is(err, session.ErrWrongRole):
		return http.StatusUnauthorized, "This account is not allowed to use the back-office"
	case errors.Is(err, session.ErrLoginInProgress):
		return http.StatusConflict, "A login is already in progress"
	case errors.Is(err, session.ErrAlreadyAuthenticated):
		return http.StatusConflict, "Already logged in as another operator"
	}
	return http.StatusBadGateway, "Login service unavailable, please try again"
}

func (h *AuthHandlers) Logout(c *gin.Context) {
	gate, ok := currentGate(c)
	if !ok {
		return
	}
	nav := gate.OnLogout()
	if h.OnLogout != nil {
		h.OnLogout(middleware.SessionIDFrom(c))
	}
	middleware.EndSession(c, h.Registry, h.Secure)

	h.Logger.Info().Str("request_id", middleware.RequestIDFrom(c)).Msg("operator logged out")
	c.Redirect(http.StatusSeeOther, nav.To)
}
