package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salepage/cms/backend"
	"salepage/cms/middleware"
	"salepage/cms/models"
	"salepage/cms/routes"
	"salepage/cms/session"
	"salepage/cms/stats"
	"salepage/cms/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type sourceFunc func(ctx context.Context, q stats.Query) ([]stats.Record, error)

func (f sourceFunc) ProductStatistics(ctx context.Context, q stats.Query) ([]stats.Record, error) {
	return f(ctx, q)
}

type recordingSink struct {
	mu     sync.Mutex
	events []models.ProductEvent
	err    error
}

func (s *recordingSink) InsertProductEvents(ctx context.Context, events []models.ProductEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return s.err
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func sampleRecords() []stats.Record {
	return []stats.Record{{
		ProductID:   "p1",
		ProductName: "Ao thun co tron basic",
		Totals:      stats.Counters{Purchase: 300, View: 10, Product: 2},
		Buckets: []stats.Bucket{
			{Label: day(1), Counters: stats.Counters{Purchase: 100, View: 4, Product: 1}},
			{Label: day(2), Counters: stats.Counters{Purchase: 200, View: 6, Product: 1}},
		},
	}}
}

// upstream fakes the seller API. role is what sign-in returns.
func upstream(t *testing.T, role string) *backend.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/account/sign-in", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Username, Password string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"data":{"userId":"u1","username":"`+req.Username+`","role":"`+role+`","accessToken":"tok-1"}}`)
	})
	mux.HandleFunc("/seller/product-transaction", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"data":{"content":[{"id":"o1"}],"page":`+r.URL.Query().Get("page")+`}}`)
	})
	mux.HandleFunc("/seller/product", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/seller/voucher", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, "code taken")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := backend.New(backend.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	return c
}

type fixture struct {
	router    *gin.Engine
	registry  *session.Registry
	dashboard *DashboardHandlers
}

func newFixture(t *testing.T, role string, source stats.Source, sink EventSink) *fixture {
	t.Helper()
	client := upstream(t, role)
	if source == nil {
		source = client
	}
	reg := session.NewRegistry(session.GateConfig{LoginPath: routes.LoginPath, LandingPath: routes.LandingPath}, time.Hour, utils.GenerateSessionID)
	router, dashboard := NewRouter(RouterConfig{
		Logger:       zerolog.Nop(),
		Registry:     reg,
		Session:      middleware.SessionConfig{Secret: []byte("handler-test-secret"), TTL: time.Hour},
		Login:        &session.LoginFlow{Authenticator: client, OperatorRole: "USER", Logger: zerolog.Nop()},
		Stats:        source,
		StatsTimeout: time.Second,
		Backend:      client,
		Events:       sink,
		IngestAPIKey: "ingest-key",
		Version:      "test",
	})
	return &fixture{router: router, registry: reg, dashboard: dashboard}
}

// browser replays the session cookie the way a browser would.
type browser struct {
	t      *testing.T
	f      *fixture
	cookie *http.Cookie
	accept string
}

func (f *fixture) browser(t *testing.T) *browser {
	return &browser{t: t, f: f}
}

func (b *browser) do(method, path, body string) *httptest.ResponseRecorder {
	b.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.accept != "" {
		req.Header.Set("Accept", b.accept)
	}
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	rec := httptest.NewRecorder()
	b.f.router.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name != middleware.CookieName {
			continue
		}
		if c.MaxAge < 0 {
			b.cookie = nil
		} else {
			b.cookie = c
		}
	}
	return rec
}

func (b *browser) login(password string) *httptest.ResponseRecorder {
	return b.do(http.MethodPost, routes.LoginPath, `{"username":"lambro","password":"`+password+`"}`)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestLoginReturnsToRememberedDestination(t *testing.T) {
	f := newFixture(t, "USER", nil, nil)
	b := f.browser(t)

	rec := b.do(http.MethodGet, "/orders?page=2", "")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, routes.LoginPath, rec.Header().Get("Location"))

	rec = b.login("pw")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/orders", rec.Header().Get("Location"))

	rec = b.do(http.MethodGet, "/orders?page=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"content":[{"id":"o1"}],"page":2}}`, rec.Body.String())
}

func TestLoginWithoutRememberedGoesToLanding(t *testing.T) {
	f := newFixture(t, "USER", nil, nil)
	rec := f.browser(t).login("pw")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, routes.LandingPath, rec.Header().Get("Location"))
}

func TestLoginWithNonOperatorRoleStaysAnonymous(t *testing.T) {
	f := newFixture(t, "ADMIN", nil, nil)
	b := f.browser(t)

	rec := b.login("pw")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["error"])

	rec = b.do(http.MethodGet, routes.LoginPath, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", decode(t, rec)["state"])

	rec = b.do(http.MethodGet, routes.LandingPath, "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t, "USER", nil, nil)
	b := f.browser(t)

	rec := b.login("nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid username or password", decode(t, rec)["error"])

	rec = b.do(http.MethodPost, routes.LoginPath, `{"username":"","password":""}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginReplayIsNoOp(t *testing.T) {
	f := newFixture(t, "USER", nil, nil)
	b := f.browser(t)

	require.Equal(t, http.StatusSeeOther, b.login("pw").Code)
	rec := b.login("pw")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":true}`, rec.Body.String())

	rec = b.do(http.MethodGet, routes.LoginPath, "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, routes.LandingPath, rec.Header().Get("Location"))
}

func TestLogoutClearsSession(t *testing.T) {
	f := newFixture(t, "USER", sourceFunc(func(ctx context.Context, q stats.Query) ([]stats.Record, error) {
		return sampleRecords(), nil
	}), nil)
	b := f.browser(t)
	require.Equal(t, http.StatusSeeOther, b.login("pw").Code)
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, routes.LandingPath, "").Code)
	require.Equal(t, 1, f.registry.Len())

	rec := b.do(http.MethodPost, routes.LogoutPath, "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, routes.LoginPath, rec.Header().Get("Location"))
	assert.Nil(t, b.cookie)
	assert.Equal(t, 0, f.registry.Len())
	assert.Equal(t, 0, f.dashboard.Prune(func(string) bool { return false }))

	rec = b.do(http.MethodGet, routes.LandingPath, "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestDashboardSummary(t *testing.T) {
	var got stats.Query
	f := newFixture(t, "USER", sourceFunc(func(ctx context.Context, q stats.Query) ([]stats.Record, error) {
		got = q
		return sampleRecords(), nil
	}), nil)
	b := f.browser(t)
	require.Equal(t, http.StatusSeeOther, b.login("pw").Code)

	rec := b.do(http.MethodGet, "/dashboard?start=2024-03-01T00:00:00Z&end=1709337600000&counter=totalView", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-1", got.Token)
	assert.Equal(t, day(1), got.Range.Start)
	assert.True(t, day(2).Equal(got.Range.End))

	body := decode(t, rec)
	assert.NotContains(t, body, "notification")
	summary := body["summary"].(map[string]any)
	assert.Equal(t, "totalView", summary["field"])
	assert.Equal(t, 300.0, summary["totalPurchase"])
	assert.Equal(t, 10.0, summary["fieldTotal"])
	assert.Equal(t, 20.0, summary["conversion"].(map[string]any)["percent"])
	assert.Equal(t, map[string]any{"currentValue": 6.0, "previousValue": 4.0}, summary["comparison"])
}

func TestDashboardFetchErrorDegrades(t *testing.T) {
	f := newFixture(t, "USER", sourceFunc(func(ctx context.Context, q stats.Query) ([]stats.Record, error) {
		return nil, errors.New("connection refused")
	}), nil)
	b := f.browser(t)
	require.Equal(t, http.StatusSeeOther, b.login("pw").Code)

	rec := b.do(http.MethodGet, routes.LandingPath, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "error", body["notification"].(map[string]any)["type"])
	summary := body["summary"].(map[string]any)
	assert.Equal(t, 0.0, summary["totalPurchase"])
	assert.Equal(t, 100.0, summary["conversion"].(map[string]any)["percent"])
	assert.Empty(t, summary["products"])
}

func TestDashboardUnauthorizedResetsSession(t *testing.T) {
	f := newFixture(t, "USER", sourceFunc(func(ctx context.Context, q stats.Query) ([]stats.Record, error) {
		return nil, backend.ErrUnauthorized
	}), nil)
	b := f.browser(t)
	require.Equal(t, http.StatusSeeOther, b.login("pw").Code)

	rec := b.do(http.MethodGet, "/dashboard", "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, routes.LoginPath, rec.Header().Get("Location"))

	rec = b.do(http.MethodGet, routes.LoginPath, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"state": "anonymous", "remembered": ""}, decode(t, rec))
}

func TestDashboardRejectsBadQuery(t *testing.T) {
	f := newFixture(t, "USER", sourceFunc(func(ctx context.Context, q stats.Query) ([]stats.Record, error) {
		return sampleRecords(), nil
	}), nil)
	b := f.browser(t)
	require.Equal(t, http.StatusSeeOther, b.login("pw").Code)

	for _, path := range []string{
		"/dashboard?counter=totalRefund",
		"/dashboard?start=yesterday",
		"/dashboard?start=2024-03-05T00:00:00Z&end=2024-03-01T00:00:00Z",
		"/dashboard/series?counter=totalView",
	} {
		assert.Equal(t, http.StatusBadRequest, b.do(http.MethodGet, path, "").Code, path)
	}
}

func TestDashboardSeriesAndChart(t *testing.T) {
	f := newFixture(t, "USER", sourceFunc(func(ctx context.Context, q stats.Query) ([]stats.Record, error) {
		return sampleRecords(), nil
	}), nil)
	b := f.browser(t)
	require.Equal(t, http.StatusSeeOther, b.login("pw").Code)

	rec := b.do(http.MethodGet, "/dashboard/series?product=p1&counter=totalView", "")
	require.Equal(t, http.StatusOK, rec.Code)
	series := decode(t, rec)["series"].(map[string]any)
	assert.Equal(t, []any{4.0, 6.0}, series["values"])
	assert.Len(t, series["labels"], 2)

	rec = b.do(http.MethodGet, "/dashboard/series?product=p9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = b.do(http.MethodGet, "/dashboard/chart?product=p1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "echarts")
}

func TestResourceFailures(t *testing.T) {
	f := newFixture(t, "USER", nil, nil)
	b := f.browser(t)
	require.Equal(t, http.StatusSeeOther, b.login("pw").Code)

	rec := b.do(http.MethodGet, "/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Nil(t, body["data"])
	assert.Equal(t, "Could not load products", body["notification"].(map[string]any)["message"])

	rec = b.do(http.MethodPost, "/vouchers", `{"code":"SALE"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = b.do(http.MethodPost, "/vouchers", `{"code":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResourceUnauthorizedAnswersJSONClients(t *testing.T) {
	f := newFixture(t, "USER", nil, nil)
	b := f.browser(t)
	require.Equal(t, http.StatusSeeOther, b.login("pw").Code)

	gate, ok := f.registry.Lookup(sessionIDOf(t, b))
	require.True(t, ok)
	gate.OnUnauthorizedResponse()
	require.NoError(t, gate.BeginLogin())
	_, err := gate.OnLoginSuccess(session.Payload{Username: "lambro", Role: "USER", AccessToken: "stale"})
	require.NoError(t, err)

	b.accept = "application/json"
	rec := b.do(http.MethodGet, "/orders", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, routes.LoginPath, decode(t, rec)["redirect"])
	assert.False(t, gate.IsAuthenticated())
}

func sessionIDOf(t *testing.T, b *browser) string {
	t.Helper()
	require.NotNil(t, b.cookie)
	claims, err := utils.ValidateSessionToken([]byte("handler-test-secret"), b.cookie.Value)
	require.NoError(t, err)
	return claims.SessionID
}

func TestTrackEvent(t *testing.T) {
	sink := &recordingSink{}
	f := newFixture(t, "USER", nil, sink)

	body := `[{"eventType":"purchase","productId":"p1","productName":"Ao thun","timestamp":"2024-03-01T10:00:00Z","amount":150,"quantity":1}]`
	req := httptest.NewRequest(http.MethodPost, "/api/track", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", "ingest-key")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sink.events, 1)
	assert.NotEmpty(t, sink.events[0].EventID)
	assert.NotEmpty(t, sink.events[0].IPAddress)
	assert.Equal(t, 150.0, sink.events[0].Amount)
}

func TestTrackEventRejects(t *testing.T) {
	tests := []struct {
		name   string
		sink   EventSink
		key    string
		body   string
		status int
	}{
		{"missing key", &recordingSink{}, "", `[]`, http.StatusUnauthorized},
		{"unknown event type", &recordingSink{}, "ingest-key", `[{"eventType":"click","productId":"p1","timestamp":"2024-03-01T10:00:00Z"}]`, http.StatusBadRequest},
		{"no sink", nil, "ingest-key", `[]`, http.StatusServiceUnavailable},
		{"sink error", &recordingSink{err: errors.New("down")}, "ingest-key", `[{"eventType":"product_view","productId":"p1","timestamp":"2024-03-01T10:00:00Z"}]`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "USER", nil, tt.sink)
			req := httptest.NewRequest(http.MethodPost, "/api/track", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.key != "" {
				req.Header.Set("X-API-KEY", tt.key)
			}
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestPublicPagesAndNotFound(t *testing.T) {
	f := newFixture(t, "USER", nil, nil)
	b := f.browser(t)

	assert.Equal(t, http.StatusOK, b.do(http.MethodGet, "/healthz", "").Code)
	rec := b.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["authenticated"])
	assert.Equal(t, http.StatusOK, b.do(http.MethodGet, "/about", "").Code)
	assert.Equal(t, http.StatusNotFound, b.do(http.MethodGet, "/admin/users", "").Code)

	require.Equal(t, http.StatusSeeOther, b.login("pw").Code)
	assert.Equal(t, http.StatusNotFound, b.do(http.MethodGet, "/admin/users", "").Code)
}

// blockFirst blocks the first statistics call until its context ends.
func blockFirst(started chan struct{}) sourceFunc {
	var calls int32
	return func(ctx context.Context, q stats.Query) ([]stats.Record, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return sampleRecords(), nil
	}
}

func (b *browser) serveAsync(method, path string) <-chan *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.AddCookie(b.cookie)
	out := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		rec := httptest.NewRecorder()
		b.f.router.ServeHTTP(rec, req)
		out <- rec
	}()
	return out
}

func TestDashboardNewerRequestSupersedesOlder(t *testing.T) {
	started := make(chan struct{})
	f := newFixture(t, "USER", blockFirst(started), nil)
	b := f.browser(t)
	require.Equal(t, http.StatusSeeOther, b.login("pw").Code)

	older := b.serveAsync(http.MethodGet, "/dashboard?counter=totalView")
	<-started
	rec := b.do(http.MethodGet, "/dashboard?counter=totalBuy", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusConflict, (<-older).Code)
}

func TestLogoutWinsOverInFlightDashboard(t *testing.T) {
	started := make(chan struct{})
	f := newFixture(t, "USER", blockFirst(started), nil)
	b := f.browser(t)
	require.Equal(t, http.StatusSeeOther, b.login("pw").Code)

	pending := b.serveAsync(http.MethodGet, routes.LandingPath)
	<-started
	require.Equal(t, http.StatusSeeOther, b.do(http.MethodPost, routes.LogoutPath, "").Code)

	rec := <-pending
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, routes.LoginPath, rec.Header().Get("Location"))
}

func TestLoginAfterAnonymousLogoutLandsOnDashboard(t *testing.T) {
	f := newFixture(t, "USER", nil, nil)
	b := f.browser(t)

	rec := b.do(http.MethodGet, routes.LogoutPath, "")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, routes.LoginPath, rec.Header().Get("Location"))

	rec = b.login("pw")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, routes.LandingPath, rec.Header().Get("Location"))

	rec = b.do(http.MethodGet, routes.LoginPath, "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, routes.LandingPath, rec.Header().Get("Location"))
}

func TestOnlyScreenNavigationsAreRemembered(t *testing.T) {
	f := newFixture(t, "USER", nil, nil)
	b := f.browser(t)

	b.accept = "application/json"
	rec := b.do(http.MethodGet, "/dashboard/chart?product=p1", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	b.accept = ""

	rec = b.do(http.MethodDelete, "/orders/o1", "")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = b.login("pw")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, routes.LandingPath, rec.Header().Get("Location"))
}

func TestLateResultDoesNotRestoreRememberedDestination(t *testing.T) {
	var calls int32
	started := make(chan struct{})
	f := newFixture(t, "USER", sourceFunc(func(ctx context.Context, q stats.Query) ([]stats.Record, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return nil, backend.ErrUnauthorized
	}), nil)
	b := f.browser(t)
	require.Equal(t, http.StatusSeeOther, b.login("pw").Code)
	gate, ok := f.registry.Lookup(sessionIDOf(t, b))
	require.True(t, ok)

	pending := b.serveAsync(http.MethodGet, routes.LandingPath)
	<-started
	rec := b.do(http.MethodGet, "/dashboard/series?product=p1", "")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = <-pending
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, routes.LoginPath, rec.Header().Get("Location"))
	assert.Equal(t, session.Anonymous, gate.State())
	assert.Equal(t, "", gate.Remembered())

	rec = b.do(http.MethodGet, routes.LoginPath, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"state": "anonymous", "remembered": ""}, decode(t, rec))
}

func TestDashboardDefaultsToFirstCounter(t *testing.T) {
	f := newFixture(t, "USER", sourceFunc(func(ctx context.Context, q stats.Query) ([]stats.Record, error) {
		return sampleRecords(), nil
	}), nil)
	b := f.browser(t)
	require.Equal(t, http.StatusSeeOther, b.login("pw").Code)

	rec := b.do(http.MethodGet, routes.LandingPath, "")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode(t, rec)["summary"].(map[string]any)
	assert.Equal(t, "totalBuy", summary["field"])
}
