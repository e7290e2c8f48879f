package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"salepage/cms/backend"
	"salepage/cms/charts"
	"salepage/cms/middleware"
	"salepage/cms/models"
	"salepage/cms/session"
	"salepage/cms/stats"
	"salepage/cms/utils"
)

const (
	screenSummary = "summary"
	screenSeries  = "series"
	screenChart   = "chart"
)

// defaultCounter is the first counter of the dashboard's counter tabs.
var defaultCounter = stats.Fields[0]

// loaderPool keeps one fenced loader per session and screen, so a newer
// request from the same screen supersedes the older one.
type loaderPool struct {
	source  stats.Source
	timeout time.Duration

	mu      sync.Mutex
	loaders map[string]map[string]*stats.Loader
}

func (p *loaderPool) get(sessionID, screen string) *stats.Loader {
	p.mu.Lock()
	defer p.mu.Unlock()
	screens, ok := p.loaders[sessionID]
	if !ok {
		screens = make(map[string]*stats.Loader)
		p.loaders[sessionID] = screens
	}
	l, ok := screens[screen]
	if !ok {
		l = stats.NewLoader(p.source, p.timeout)
		screens[screen] = l
	}
	return l
}

func (p *loaderPool) forget(sessionID string) {
	p.mu.Lock()
	screens := p.loaders[sessionID]
	delete(p.loaders, sessionID)
	p.mu.Unlock()
	for _, l := range screens {
		l.Cancel()
	}
}

type DashboardHandlers struct {
	loaders *loaderPool
	now     func() time.Time
	Logger  zerolog.Logger
}

func NewDashboardHandlers(source stats.Source, timeout time.Duration, logger zerolog.Logger) *DashboardHandlers {
	return &DashboardHandlers{
		loaders: &loaderPool{source: source, timeout: timeout, loaders: make(map[string]map[string]*stats.Loader)},
		now:     time.Now,
		Logger:  logger,
	}
}

// Forget cancels and drops the loaders of a session.
func (h *DashboardHandlers) Forget(sessionID string) {
	h.loaders.forget(sessionID)
}

// Prune forgets every session alive reports as gone and returns how many
// were dropped.
func (h *DashboardHandlers) Prune(alive func(sessionID string) bool) int {
	h.loaders.mu.Lock()
	var gone []string
	for id := range h.loaders.loaders {
		if !alive(id) {
			gone = append(gone, id)
		}
	}
	h.loaders.mu.Unlock()
	for _, id := range gone {
		h.loaders.forget(id)
	}
	return len(gone)
}

type dashboardQuery struct {
	Range   stats.Range
	Counter stats.Field
	Product string
}

func (h *DashboardHandlers) parseQuery(c *gin.Context) (dashboardQuery, error) {
	q := dashboardQuery{Range: stats.DefaultRange(h.now()), Counter: defaultCounter, Product: c.Query("product")}
	if v := c.Query("start"); v != "" {
		t, err := utils.ParseTimestamp(v)
		if err != nil {
			return q, err
		}
		q.Range.Start = t
	}
	if v := c.Query("end"); v != "" {
		t, err := utils.ParseTimestamp(v)
		if err != nil {
			return q, err
		}
		q.Range.End = t
	}
	if err := q.Range.Validate(); err != nil {
		return q, err
	}
	if v := c.Query("counter"); v != "" {
		f, err := stats.ParseField(v)
		if err != nil {
			return q, err
		}
		q.Counter = f
	}
	return q, nil
}

// load runs a fenced statistics load for the screen. It returns false when
// it already answered the request.
func (h *DashboardHandlers) load(c *gin.Context, gate *session.Gate, screen string, q dashboardQuery) ([]stats.Record, bool, error) {
	loader := h.loaders.get(middleware.SessionIDFrom(c), screen)
	records, err := loader.Load(c.Request.Context(), stats.Query{Range: q.Range, Token: accessToken(gate)})
	if errors.Is(err, backend.ErrUnauthorized) {
		sessionExpired(c, gate)
		h.Forget(middleware.SessionIDFrom(c))
		return nil, false, err
	}
	if !stillAuthenticated(c, gate) {
		return nil, false, err
	}
	if errors.Is(err, stats.ErrSuperseded) {
		c.JSON(http.StatusConflict, gin.H{"error": "Superseded by a newer request"})
		return nil, false, err
	}
	if err == nil {
		return records, true, nil
	}

	event := h.Logger.Warn()
	if errors.Is(err, context.DeadlineExceeded) {
		event = h.Logger.Error()
	}
	event.Err(err).Str("request_id", middleware.RequestIDFrom(c)).Str("screen", screen).Msg("loading statistics")
	return nil, true, err
}

func (h *DashboardHandlers) Summary(c *gin.Context) {
	gate, ok := currentGate(c)
	if !ok {
		return
	}
	q, err := h.parseQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query", "details": err.Error()})
		return
	}

	records, cont, err := h.load(c, gate, screenSummary, q)
	if !cont {
		return
	}
	resp := gin.H{
		"range":   gin.H{"start": q.Range.Start, "end": q.Range.End},
		"summary": stats.BuildSummary(records, q.Counter),
	}
	if err != nil {
		resp["notification"] = models.ErrorNotification("Could not load statistics, showing empty figures")
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DashboardHandlers) productSeries(c *gin.Context, screen string) (dashboardQuery, stats.Record, bool) {
	gate, ok := currentGate(c)
	if !ok {
		return dashboardQuery{}, stats.Record{}, false
	}
	q, err := h.parseQuery(c)
	if err == nil && q.Product == "" {
		err = errors.New("product is required")
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query", "details": err.Error()})
		return q, stats.Record{}, false
	}

	records, cont, err := h.load(c, gate, screen, q)
	if !cont {
		return q, stats.Record{}, false
	}
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"series":       stats.Series{Labels: []time.Time{}, Values: []float64{}},
			"notification": models.ErrorNotification("Could not load statistics"),
		})
		return q, stats.Record{}, false
	}
	record, found := stats.ProductByID(records, q.Product)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product has no statistics in this range"})
		return q, stats.Record{}, false
	}
	return q, record, true
}

func (h *DashboardHandlers) Series(c *gin.Context) {
	q, record, ok := h.productSeries(c, screenSeries)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product": gin.H{"id": record.ProductID, "name": record.ProductName},
		"counter": q.Counter,
		"series":  stats.ReshapeForSeries(record, q.Counter),
	})
}

func (h *DashboardHandlers) Chart(c *gin.Context) {
	q, record, ok := h.productSeries(c, screenChart)
	if !ok {
		return
	}
	page, err := charts.RenderLine(record.ProductName, string(q.Counter), stats.ReshapeForSeries(record, q.Counter))
	if err != nil {
		h.Logger.Error().Err(err).Str("product", record.ProductID).Msg("rendering chart")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render chart"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}
