package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"muscat-water/internal/api/models"
	"muscat-water/internal/data"
	"muscat-water/internal/model"
	"muscat-water/internal/period"
	"muscat-water/internal/service"
)

// WaterService is the part of service.WaterService the handlers use.
type WaterService interface {
	Aggregate(ctx context.Context, period string) (*model.PeriodAggregate, error)
	Latest(ctx context.Context) (*model.PeriodAggregate, error)
	Trends(ctx context.Context, from, to string) (*service.Trend, error)
	Periods(ctx context.Context) (*service.PeriodList, error)
	Refresh(ctx context.Context) (int, error)
}

// WaterHandler serves the water loss endpoints.
type WaterHandler struct {
	svc WaterService
}

// NewWaterHandler creates a new water handler
func NewWaterHandler(svc WaterService) *WaterHandler {
	return &WaterHandler{svc: svc}
}

// Register mounts the routes on g.
func (h *WaterHandler) Register(g *gin.RouterGroup) {
	g.GET("/periods", h.ListPeriods)
	g.GET("/aggregate", h.GetAggregate)
	g.GET("/zones", h.GetZones)
	g.GET("/types", h.GetTypes)
	g.GET("/trends", h.GetTrends)
	g.GET("/diagnostics", h.GetDiagnostics)
	g.POST("/refresh", h.Refresh)
}

// ListPeriods handles GET /api/v1/water/periods
func (h *WaterHandler) ListPeriods(c *gin.Context) {
	pl, err := h.svc.Periods(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pl)
}

// GetAggregate handles GET /api/v1/water/aggregate
func (h *WaterHandler) GetAggregate(c *gin.Context) {
	agg, ok := h.aggregate(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, models.NewAggregateResponse(agg))
}

// GetZones handles GET /api/v1/water/zones
func (h *WaterHandler) GetZones(c *gin.Context) {
	var q models.ZonesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return
	}
	agg, ok := h.aggregate(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, models.ZonesResponse{
		Period: agg.Period,
		Zones:  models.NewZoneRows(agg, q.Limit),
	})
}

// GetTypes handles GET /api/v1/water/types
func (h *WaterHandler) GetTypes(c *gin.Context) {
	agg, ok := h.aggregate(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, models.TypesResponse{
		Period: agg.Period,
		Types:  models.NewTypeRows(agg),
	})
}

// GetDiagnostics handles GET /api/v1/water/diagnostics
func (h *WaterHandler) GetDiagnostics(c *gin.Context) {
	agg, ok := h.aggregate(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, models.DiagnosticsResponse{
		Period:      agg.Period,
		Diagnostics: agg.Diagnostics,
	})
}

// GetTrends handles GET /api/v1/water/trends
func (h *WaterHandler) GetTrends(c *gin.Context) {
	var q models.TrendQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "INVALID_REQUEST", "from and to are required (e.g. from=Jan-25&to=Mar-25)")
		return
	}
	tr, err := h.svc.Trends(c.Request.Context(), q.From, q.To)
	if err != nil {
		writeError(c, err)
		return
	}
	points := make([]models.TrendPoint, 0, len(tr.Periods))
	for _, p := range tr.Periods {
		points = append(points, models.TrendPoint{Period: p.Period, AggregateSummary: models.NewSummary(p)})
	}
	c.JSON(http.StatusOK, models.TrendResponse{
		From:       tr.From,
		To:         tr.To,
		Periods:    points,
		Cumulative: models.NewAggregateResponse(tr.Cumulative),
	})
}

// Refresh handles POST /api/v1/water/refresh
func (h *WaterHandler) Refresh(c *gin.Context) {
	n, err := h.svc.Refresh(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	log.Printf("[API] Registry refreshed on request: %d meters", n)
	c.JSON(http.StatusOK, models.RefreshResponse{Status: "ok", Meters: n})
}

// aggregate resolves the period from the query (latest month when none is
// given) and fetches its aggregate, writing the error response on failure.
func (h *WaterHandler) aggregate(c *gin.Context) (*model.PeriodAggregate, bool) {
	var q models.PeriodQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return nil, false
	}

	key := strings.TrimSpace(q.Period)
	if key == "" && (q.Year != "" || q.Month != "") {
		k, err := period.KeyFromStrings(q.Year, q.Month)
		if err != nil {
			badRequest(c, "INVALID_PERIOD", err.Error())
			return nil, false
		}
		key = k
	}

	var (
		agg *model.PeriodAggregate
		err error
	)
	if key == "" {
		agg, err = h.svc.Latest(c.Request.Context())
	} else {
		agg, err = h.svc.Aggregate(c.Request.Context(), key)
	}
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return agg, true
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeError maps service and source errors onto HTTP responses.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	var atErr *data.AirtableError
	switch {
	case errors.Is(err, period.ErrInvalidPeriod):
		badRequest(c, "INVALID_PERIOD", err.Error())
	case errors.Is(err, service.ErrNoReadings):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "NO_READINGS",
				Message: err.Error(),
			},
		})
	case errors.As(err, &atErr):
		statusCode := http.StatusBadGateway
		if atErr.StatusCode == http.StatusTooManyRequests {
			statusCode = http.StatusTooManyRequests
		}
		c.JSON(statusCode, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    atErr.Code,
				Message: atErr.Message,
				Details: map[string]interface{}{
					"status_code": atErr.StatusCode,
					"retry_after": atErr.RetryAfter,
				},
			},
		})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "TIMEOUT",
				Message: "Timed out loading the meter registry",
			},
		})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INTERNAL_ERROR",
				Message: err.Error(),
			},
		})
	}
}
