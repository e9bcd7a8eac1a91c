package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	models "MorningBrief/internal/domain/models"
	"MorningBrief/internal/service/ratelimit"
	"MorningBrief/internal/services/providers"
	"MorningBrief/internal/services/report"
	"MorningBrief/internal/services/signals"
	"MorningBrief/internal/usecase"
	"MorningBrief/pkg/cache"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type countingDeliverer struct{ calls int }

func (d *countingDeliverer) Deliver(_ context.Context, _ *models.Brief) []models.DeliveryResult {
	d.calls++
	return []models.DeliveryResult{{Channel: "stub", Sent: true}}
}

type downProvider struct{ *providers.MockProvider }

func (downProvider) IsAvailable() bool { return false }

func newTestServer(t *testing.T, opts ...HandlerOption) (*echo.Echo, *countingDeliverer) {
	t.Helper()
	d := &countingDeliverer{}
	uc := usecase.NewBriefUseCase(
		providers.NewMockProvider(providers.WithMockSeed(3)),
		signals.New(),
		report.NewWriter(),
		d,
	)
	e := echo.New()
	NewBriefEchoHandler(nil, uc, opts...).RegisterRoutes(e)
	return e, d
}

func do(e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestHealth(t *testing.T) {
	e, _ := newTestServer(t, WithChannels([]string{"telegram"}))
	rec, env := do(e, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var health struct {
		Status   string   `json:"status"`
		Provider string   `json:"provider"`
		Channels []string `json:"channels"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "mock", health.Provider)
	assert.Equal(t, []string{"telegram"}, health.Channels)
}

func TestDailyReportDeliversAndArchives(t *testing.T) {
	archive := usecase.NewArchive(cache.NewMemoryCache())
	e, d := newTestServer(t, WithArchive(archive))

	rec, env := do(e, http.MethodPost, "/api/v1/report/daily", `{"symbols":["btc"],"tz":"UTC"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, d.calls)

	var brief models.Brief
	require.NoError(t, json.Unmarshal(env.Data, &brief))
	assert.Equal(t, "UTC", brief.Timezone)
	assert.Contains(t, brief.Spot, "BTC")
	require.Len(t, brief.Deliveries, 1)

	rec, env = do(e, http.MethodGet, "/api/v1/report/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var latest models.Brief
	require.NoError(t, json.Unmarshal(env.Data, &latest))
	assert.Equal(t, brief.Date, latest.Date)
}

func TestDailyReportRejectsBadTimezone(t *testing.T) {
	e, d := newTestServer(t)
	rec, _ := do(e, http.MethodPost, "/api/v1/report/daily", `{"tz":"Mars/Olympus"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, d.calls)
}

func TestDailyReportRateLimited(t *testing.T) {
	now := time.Unix(0, 0)
	lim := ratelimit.New(1, 0.1, ratelimit.WithClock(func() time.Time { return now }))
	e, _ := newTestServer(t, WithRateLimiter(lim))

	rec, _ := do(e, http.MethodPost, "/api/v1/report/daily", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(e, http.MethodPost, "/api/v1/report/daily", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("Retry-After"))
}

func TestMorningBriefDoesNotDeliver(t *testing.T) {
	e, d := newTestServer(t)
	rec, env := do(e, http.MethodGet, "/api/v1/report/morning-brief?date=2024-05-01&symbols=BTC,SOL", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, d.calls)

	var brief models.Brief
	require.NoError(t, json.Unmarshal(env.Data, &brief))
	assert.Equal(t, "2024-05-01", brief.Date)
	assert.Equal(t, "Asia/Seoul", brief.Timezone)
	assert.Contains(t, brief.Markdown, "2024-05-01")
	assert.Contains(t, brief.Spot, "SOL")
}

func TestMorningBriefBadDate(t *testing.T) {
	e, _ := newTestServer(t)
	rec, _ := do(e, http.MethodGet, "/api/v1/report/morning-brief?date=01-05-2024", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLatestWithoutArchive(t *testing.T) {
	e, _ := newTestServer(t)
	rec, _ := do(e, http.MethodGet, "/api/v1/report/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	e, _ = newTestServer(t, WithArchive(usecase.NewArchive(cache.NewMemoryCache())))
	rec, _ = do(e, http.MethodGet, "/api/v1/report/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = do(e, http.MethodGet, "/api/v1/report/latest?date=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarketEndpoints(t *testing.T) {
	e, _ := newTestServer(t)

	rec, env := do(e, http.MethodGet, "/api/v1/market/spot?symbols=eth", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var spot models.SpotSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &spot))
	assert.Contains(t, spot, "ETH")

	rec, env = do(e, http.MethodGet, "/api/v1/market/derivatives", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var deriv models.DerivativesSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &deriv))
	assert.Contains(t, deriv, "BTC")
	assert.Contains(t, deriv, "ETH")

	rec, env = do(e, http.MethodGet, "/api/v1/market/news?keywords=bitcoin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var news []models.NewsItem
	require.NoError(t, json.Unmarshal(env.Data, &news))
	assert.NotEmpty(t, news)
}

func TestAnalyze(t *testing.T) {
	e, _ := newTestServer(t)
	rec, env := do(e, http.MethodGet, "/api/v1/signals/analyze?symbols=BTC,ETH", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var analysis models.Analysis
	require.NoError(t, json.Unmarshal(env.Data, &analysis))
	assert.NotEmpty(t, analysis.Regime.Label)
}

func TestProviderUnavailableMapsTo503(t *testing.T) {
	uc := usecase.NewBriefUseCase(downProvider{providers.NewMockProvider()}, signals.New(), report.NewWriter(), nil)
	e := echo.New()
	NewBriefEchoHandler(nil, uc).RegisterRoutes(e)

	rec, _ := do(e, http.MethodGet, "/api/v1/report/morning-brief", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec, _ = do(e, http.MethodGet, "/api/v1/signals/analyze", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebSocketRouteMounted(t *testing.T) {
	ws := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	e, _ := newTestServer(t, WithWebSocket("/ws/briefs", ws))
	rec, _ := do(e, http.MethodGet, "/ws/briefs", "")
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
