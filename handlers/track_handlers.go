package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"salepage/cms/middleware"
	"salepage/cms/models"
)

type EventSink interface {
	InsertProductEvents(ctx context.Context, events []models.ProductEvent) error
}

type TrackHandlers struct {
	Sink   EventSink
	Logger zerolog.Logger
}

func NewTrackHandlers(sink EventSink, logger zerolog.Logger) *TrackHandlers {
	return &TrackHandlers{Sink: sink, Logger: logger}
}

// TrackEvent ingests a batch of storefront product events.
func (h *TrackHandlers) TrackEvent(c *gin.Context) {
	if h.Sink == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Event ingestion is not configured"})
		return
	}

	var incoming []models.ProductEvent
	if err := c.ShouldBindJSON(&incoming); err != nil {
		h.Logger.Debug().Err(err).Msg("binding product events")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if len(incoming) == 0 {
		c.Status(http.StatusOK)
		return
	}

	events := make([]models.ProductEvent, 0, len(incoming))
	for _, event := range incoming {
		event.EventID = uuid.New().String()
		event.IPAddress = c.ClientIP()
		if event.UserAgent == "" {
			event.UserAgent = c.Request.UserAgent()
		}
		events = append(events, event)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	if err := h.Sink.InsertProductEvents(ctx, events); err != nil {
		h.Logger.Error().Err(err).Str("request_id", middleware.RequestIDFrom(c)).Int("count", len(events)).Msg("inserting product events")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record product events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": len(events)})
}
