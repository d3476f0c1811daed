package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"LoadCast/internal/domain/models"
	icache "LoadCast/internal/service/cache"
	"LoadCast/internal/service/metrics"
	"LoadCast/internal/service/ratelimit"
	"LoadCast/internal/usecase"
	xhttp "LoadCast/pkg/http"
	xlogger "LoadCast/pkg/logger"
	"LoadCast/pkg/queue"
)

// ForecastEchoHandler exposes the diagnostic endpoints: forecast on
// demand, completeness reports, key status and manual retrain.
type ForecastEchoHandler struct {
	logger       *xlogger.Logger
	fc           *usecase.Forecaster
	completeness *usecase.CompletenessAnalyzer
	status       *usecase.KeyStatusUseCase
	tracker      *usecase.LatestTracker
	q            *queue.RedisQueue
	rl           *ratelimit.Limiter
	cache        icache.BytesCache
	cacheTTL     time.Duration
}

func NewForecastEchoHandler(
	logger *xlogger.Logger,
	fc *usecase.Forecaster,
	completeness *usecase.CompletenessAnalyzer,
	status *usecase.KeyStatusUseCase,
	tracker *usecase.LatestTracker,
	q *queue.RedisQueue,
) *ForecastEchoHandler {
	metrics.Register()
	return &ForecastEchoHandler{
		logger:       logger,
		fc:           fc,
		completeness: completeness,
		status:       status,
		tracker:      tracker,
		q:            q,
		rl:           ratelimit.New(),
		cache:        icache.NewTTLCache(),
		cacheTTL:     30 * time.Second,
	}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/forecast", h.Forecast)
	g.GET("/completeness", h.Completeness)
	g.GET("/status", h.Status)
	g.POST("/retrain", h.Retrain)
}

func (h *ForecastEchoHandler) Forecast(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues("forecast").Observe(time.Since(start).Seconds()) }()

	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":forecast", 5, 2) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	key := models.Key{Entity: req.Entity, Metric: req.Metric}
	frequency, _ := time.ParseDuration(req.Frequency)

	// Recent identical forecasts are served from cache; the model does
	// not change between retrains, so a short TTL is safe.
	cacheKey := fmt.Sprintf("forecast:%s:%d:%s", key, req.Horizon, req.Frequency)
	if b, ok, _ := h.cache.GetBytes(cacheKey); ok {
		return xhttp.SuccessResponse(c, json.RawMessage(b))
	}

	ctx := c.Request().Context()
	latest := h.tracker.Latest(key)
	var model *models.TrainedModel
	var err error
	if req.NoWait {
		model, err = h.fc.TryTrainOrLoad(ctx, key, latest)
	} else {
		model, err = h.fc.TrainOrLoad(ctx, key, latest)
	}
	if err != nil {
		if errors.Is(err, models.ErrTrainingInProgress) {
			return xhttp.DataResponse(c, http.StatusAccepted, "training in progress")
		}
		metrics.APIErrors.WithLabelValues("forecast").Inc()
		h.logger.Error("forecast trainorload error", xlogger.Error(err))
		return h.domainError(c, err)
	}

	result, err := h.fc.Predict(ctx, model, req.Horizon, frequency)
	if err != nil {
		metrics.APIErrors.WithLabelValues("forecast").Inc()
		h.logger.Error("forecast predict error", xlogger.Error(err))
		return h.domainError(c, err)
	}
	if b, merr := json.Marshal(result); merr == nil {
		_ = h.cache.SetBytes(cacheKey, b, h.cacheTTL)
	}
	return xhttp.SuccessResponse(c, result)
}

func (h *ForecastEchoHandler) Completeness(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues("completeness").Observe(time.Since(start).Seconds()) }()

	req := &models.CompletenessRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rangeStart, ok := xhttp.ParseTime(req.Start)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("start is not a valid timestamp"))
	}
	rangeEnd, ok := xhttp.ParseTime(req.End)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("end is not a valid timestamp"))
	}
	interval, _ := time.ParseDuration(req.Interval)

	key := models.Key{Entity: req.Entity, Metric: req.Metric}
	report, err := h.completeness.Report(c.Request().Context(), key, rangeStart, rangeEnd, interval)
	if err != nil {
		metrics.APIErrors.WithLabelValues("completeness").Inc()
		h.logger.Error("completeness error", xlogger.Error(err))
		return h.domainError(c, err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *ForecastEchoHandler) Status(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues("status").Observe(time.Since(start).Seconds()) }()

	req := &models.StatusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	status, err := h.status.GetStatus(c.Request().Context(), models.Key{Entity: req.Entity, Metric: req.Metric})
	if err != nil {
		metrics.APIErrors.WithLabelValues("status").Inc()
		h.logger.Error("status error", xlogger.Error(err))
		return h.domainError(c, err)
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *ForecastEchoHandler) Retrain(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues("retrain").Observe(time.Since(start).Seconds()) }()

	req := &models.RetrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":retrain", 2, 0.5) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}
	if h.q == nil {
		return xhttp.AppErrorResponse(c, xhttp.InternalError("retrain queue not configured"))
	}

	payload := usecase.RetrainPayload{Entity: req.Entity, Metric: req.Metric}
	if err := h.q.Enqueue(c.Request().Context(), usecase.RetrainJobType, payload); err != nil {
		metrics.APIErrors.WithLabelValues("retrain").Inc()
		h.logger.Error("retrain enqueue error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("enqueue failed"))
	}
	return xhttp.DataResponse(c, http.StatusAccepted, "retrain queued")
}

// domainError maps the domain error taxonomy onto HTTP statuses.
func (h *ForecastEchoHandler) domainError(c echo.Context, err error) error {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(verr.Reason))
	}
	var ierr *models.DataInsufficientError
	if errors.As(err, &ierr) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_DATA_INSUFFICIENT", "", ierr.Error(), http.StatusUnprocessableEntity))
	}
	var terr *models.TrainingFailedError
	if errors.As(err, &terr) {
		status := http.StatusInternalServerError
		if terr.Timeout {
			status = http.StatusGatewayTimeout
		}
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_TRAINING_FAILED", "", terr.Error(), status))
	}
	if models.IsStorageUnavailable(err) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_STORAGE_UNAVAILABLE", "", err.Error(), http.StatusServiceUnavailable))
	}
	return xhttp.AppErrorResponse(c, err)
}
