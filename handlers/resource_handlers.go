package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"salepage/cms/backend"
	"salepage/cms/middleware"
	"salepage/cms/models"
	"salepage/cms/session"
)

// ResourceBackend is the seller API surface the list and detail screens use.
type ResourceBackend interface {
	List(ctx context.Context, token, resource string, params url.Values) (json.RawMessage, error)
	Get(ctx context.Context, token, resource, id string) (json.RawMessage, error)
	Create(ctx context.Context, token, resource string, body json.RawMessage) (json.RawMessage, error)
	Update(ctx context.Context, token, resource, id string, body json.RawMessage) (json.RawMessage, error)
	Delete(ctx context.Context, token, resource, id string) error
}

// ResourceHandlers proxy the back-office screens to the seller API with the
// operator's access token.
type ResourceHandlers struct {
	Backend ResourceBackend
	Logger  zerolog.Logger
}

func NewResourceHandlers(b ResourceBackend, logger zerolog.Logger) *ResourceHandlers {
	return &ResourceHandlers{Backend: b, Logger: logger}
}

// failed answers a backend error. Reads degrade to empty data with a
// notification; writes surface the failure status.
func (h *ResourceHandlers) failed(c *gin.Context, gate *session.Gate, resource string, write bool, err error) {
	if errors.Is(err, backend.ErrUnauthorized) {
		sessionExpired(c, gate)
		return
	}
	h.Logger.Warn().Err(err).
		Str("request_id", middleware.RequestIDFrom(c)).
		Str("resource", resource).
		Str("method", c.Request.Method).
		Msg("backend request failed")

	if !write {
		c.JSON(http.StatusOK, degraded("Could not load "+resource))
		return
	}
	status := http.StatusBadGateway
	var se *backend.StatusError
	if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
		status = se.Code
	}
	c.JSON(status, gin.H{"error": "Could not save " + resource, "notification": models.ErrorNotification(err.Error())})
}

func (h *ResourceHandlers) List(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		gate, ok := currentGate(c)
		if !ok {
			return
		}
		data, err := h.Backend.List(c.Request.Context(), accessToken(gate), resource, c.Request.URL.Query())
		if err != nil {
			h.failed(c, gate, resource, false, err)
			return
		}
		if !stillAuthenticated(c, gate) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": data})
	}
}

func (h *ResourceHandlers) Get(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		gate, ok := currentGate(c)
		if !ok {
			return
		}
		data, err := h.Backend.Get(c.Request.Context(), accessToken(gate), resource, c.Param("id"))
		if err != nil {
			h.failed(c, gate, resource, false, err)
			return
		}
		if !stillAuthenticated(c, gate) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": data})
	}
}

func readJSONBody(c *gin.Context) (json.RawMessage, bool) {
	body, err := c.GetRawData()
	if err != nil || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return nil, false
	}
	return body, true
}

func (h *ResourceHandlers) Create(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		gate, ok := currentGate(c)
		if !ok {
			return
		}
		body, ok := readJSONBody(c)
		if !ok {
			return
		}
		data, err := h.Backend.Create(c.Request.Context(), accessToken(gate), resource, body)
		if err != nil {
			h.failed(c, gate, resource, true, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": data})
	}
}

func (h *ResourceHandlers) Update(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		gate, ok := currentGate(c)
		if !ok {
			return
		}
		body, ok := readJSONBody(c)
		if !ok {
			return
		}
		data, err := h.Backend.Update(c.Request.Context(), accessToken(gate), resource, c.Param("id"), body)
		if err != nil {
			h.failed(c, gate, resource, true, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": data})
	}
}

func (h *ResourceHandlers) Delete(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		gate, ok := currentGate(c)
		if !ok {
			return
		}
		if err := h.Backend.Delete(c.Request.Context(), accessToken(gate), resource, c.Param("id")); err != nil {
			h.failed(c, gate, resource, true, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
