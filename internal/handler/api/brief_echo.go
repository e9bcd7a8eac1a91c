package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	models "MorningBrief/internal/domain/models"
	"MorningBrief/internal/service/metrics"
	"MorningBrief/internal/service/ratelimit"
	"MorningBrief/internal/usecase"
	xhttp "MorningBrief/pkg/http"
	xlogger "MorningBrief/pkg/logger"
	xutil "MorningBrief/pkg/util"

	"github.com/labstack/echo/v4"
)

// BriefService is the part of the brief use case the HTTP layer drives.
type BriefService interface {
	ProviderName() string
	Generate(ctx context.Context, p usecase.BriefParams) (*models.Brief, error)
	Analyze(ctx context.Context, symbols []string) (*models.Analysis, error)
	Spot(ctx context.Context, symbols []string) models.SpotSnapshot
	Derivatives(ctx context.Context, symbols []string) models.DerivativesSnapshot
	News(ctx context.Context, keywords []string) []models.NewsItem
}

type HandlerOption func(*BriefEchoHandler)

// WithRateLimiter guards POST /report/daily per client IP.
func WithRateLimiter(l *ratelimit.Limiter) HandlerOption {
	return func(h *BriefEchoHandler) { h.limiter = l }
}

// WithArchive stores generated briefs and serves /report/latest.
func WithArchive(a *usecase.Archive) HandlerOption {
	return func(h *BriefEchoHandler) { h.archive = a }
}

// WithWebSocket mounts ws at path.
func WithWebSocket(path string, ws http.Handler) HandlerOption {
	return func(h *BriefEchoHandler) {
		h.wsPath = path
		h.ws = ws
	}
}

// WithChannels lists the delivery channels reported by /health.
func WithChannels(channels []string) HandlerOption {
	return func(h *BriefEchoHandler) { h.channels = channels }
}

// BriefEchoHandler serves the brief REST surface under /api/v1.
type BriefEchoHandler struct {
	logger   *xlogger.Logger
	briefs   BriefService
	limiter  *ratelimit.Limiter
	archive  *usecase.Archive
	channels []string
	wsPath   string
	ws       http.Handler
}

func NewBriefEchoHandler(logger *xlogger.Logger, briefs BriefService, opts ...HandlerOption) *BriefEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &BriefEchoHandler{
		logger: logger.With(xlogger.String("component", "api.brief")),
		briefs: briefs,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *BriefEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/health", h.Health)
	g.POST("/report/daily", h.DailyReport)
	g.GET("/report/morning-brief", h.MorningBrief)
	g.GET("/report/latest", h.Latest)
	g.GET("/market/spot", h.Spot)
	g.GET("/market/derivatives", h.Derivatives)
	g.GET("/market/news", h.News)
	g.GET("/signals/analyze", h.Analyze)

	if h.ws != nil && h.wsPath != "" {
		e.GET(h.wsPath, echo.WrapHandler(h.ws))
	}
}

func (h *BriefEchoHandler) Health(c echo.Context) error {
	channels := h.channels
	if channels == nil {
		channels = []string{}
	}
	checks := map[string]string{"provider": "ok"}
	if h.archive != nil {
		checks["archive"] = "ok"
		if _, err := h.archive.Sent(c.Request().Context(), "health"); err != nil {
			checks["archive"] = err.Error()
		}
	}
	return xhttp.SuccessResponse(c, xhttp.HealthStatus{
		Status:   "ok",
		Provider: h.briefs.ProviderName(),
		Channels: channels,
		Checks:   checks,
	})
}

// DailyReport generates today's brief and delivers it to every enabled channel.
func (h *BriefEchoHandler) DailyReport(c echo.Context) error {
	if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
		if wait := h.limiter.RetryAfter(c.RealIP()); wait > 0 {
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		}
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("daily report rate limit exceeded"))
	}

	req := &models.DailyReportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	start := time.Now()
	brief, err := h.briefs.Generate(c.Request().Context(), usecase.BriefParams{
		Symbols:  req.Symbols,
		Keywords: req.Keywords,
		Timezone: req.TZ,
		Deliver:  true,
	})
	h.observe(start, err)
	if err != nil {
		return h.fail(c, "daily report", err)
	}
	h.store(c.Request().Context(), brief)
	return xhttp.SuccessResponse(c, brief)
}

// MorningBrief renders a brief without delivering it.
func (h *BriefEchoHandler) MorningBrief(c echo.Context) error {
	req := &models.MorningBriefRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	start := time.Now()
	brief, err := h.briefs.Generate(c.Request().Context(), usecase.BriefParams{
		Symbols:  xutil.SplitCSV(req.Symbols),
		Keywords: xutil.SplitCSV(req.Keywords),
		Timezone: req.TZ,
		Date:     req.Date,
	})
	h.observe(start, err)
	if err != nil {
		return h.fail(c, "morning brief", err)
	}
	return xhttp.SuccessResponse(c, brief)
}

func (h *BriefEchoHandler) Latest(c echo.Context) error {
	if h.archive == nil {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_NOT_FOUND", "", "no brief archive configured", http.StatusNotFound))
	}
	var (
		brief *models.Brief
		err   error
	)
	if date := c.QueryParam("date"); date != "" {
		if _, ok := xutil.ParseDate(date); !ok {
			return xhttp.AppErrorResponse(c, xhttp.FieldError("date", "date must be YYYY-MM-DD"))
		}
		brief, err = h.archive.Get(c.Request().Context(), date)
	} else {
		brief, err = h.archive.Latest(c.Request().Context())
	}
	if errors.Is(err, usecase.ErrBriefNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_NOT_FOUND", "", "no brief archived yet", http.StatusNotFound))
	}
	if err != nil {
		return h.fail(c, "latest brief", err)
	}
	return xhttp.SuccessResponse(c, brief)
}

func (h *BriefEchoHandler) Spot(c echo.Context) error {
	req := &models.SymbolsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.briefs.Spot(c.Request().Context(), xutil.SplitCSV(req.Symbols)))
}

func (h *BriefEchoHandler) Derivatives(c echo.Context) error {
	req := &models.SymbolsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.briefs.Derivatives(c.Request().Context(), xutil.SplitCSV(req.Symbols)))
}

func (h *BriefEchoHandler) News(c echo.Context) error {
	req := &models.KeywordsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	news := h.briefs.News(c.Request().Context(), xutil.SplitCSV(req.Keywords))
	if news == nil {
		news = []models.NewsItem{}
	}
	return xhttp.SuccessResponse(c, news)
}

func (h *BriefEchoHandler) Analyze(c echo.Context) error {
	req := &models.SymbolsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.briefs.Analyze(c.Request().Context(), xutil.SplitCSV(req.Symbols))
	if err != nil {
		return h.fail(c, "analyze", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BriefEchoHandler) store(ctx context.Context, brief *models.Brief) {
	if h.archive == nil {
		return
	}
	if err := h.archive.Save(ctx, brief); err != nil {
		h.logger.Warn("archive brief failed", xlogger.String("date", brief.Date), xlogger.Error(err))
	}
}

func (h *BriefEchoHandler) observe(start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.ObserveRun(metrics.TriggerAPI, result, time.Since(start).Seconds())
}

func (h *BriefEchoHandler) fail(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, usecase.ErrProviderUnavailable), errors.Is(err, usecase.ErrNoMarketData):
		h.logger.Warn(op+" unavailable", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError(err.Error()).WithError(err))
	case errors.Is(err, usecase.ErrInvalidDate):
		return xhttp.AppErrorResponse(c, xhttp.FieldError("date", err.Error()).WithError(err))
	}
	h.logger.Error(op+" failed", xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("%s failed", op).WithError(err))
}
