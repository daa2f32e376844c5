package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spinwheel/internal/catalog"
	"spinwheel/internal/config"
	"spinwheel/internal/models"
	"spinwheel/internal/services"
)

// SpinLister is the read side of the spin store.
type SpinLister interface {
	List(ctx context.Context) ([]models.SpinRecord, error)
	Ping(ctx context.Context) error
}

type SpinHandler struct {
	svc   *services.SpinService
	spins SpinLister
	cfg   *config.Config
}

func RegisterRoutes(e *echo.Echo, api *echo.Group, svc *services.SpinService, spins SpinLister, cfg *config.Config) {
	h := &SpinHandler{svc: svc, spins: spins, cfg: cfg}

	api.POST("/spin", h.Spin)
	api.GET("/spins", h.ListSpins)
	api.GET("/segments", h.ListSegments)
	api.GET("/health", h.Health)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if e.Renderer != nil {
		e.GET("/", h.Index)
	}
}

type spinRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Domain     string `json:"domain"`
	Discount   int    `json:"discount"`
	CouponCode string `json:"couponCode"`
}

// rewardFields are the JSON keys of spinRequest that describe the reward.
var rewardFields = map[string]bool{"domain": true, "discount": true, "couponCode": true}

// bindMessage picks the 400 message for a body that does not decode. A
// reward field of the wrong type (a fractional discount, say) is not a
// catalog reward; anything else is treated as missing name or email.
func bindMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field, _, _ := strings.Cut(typeErr.Field, ".")
		if rewardFields[field] {
			return services.MsgUnknownReward
		}
	}
	return services.MsgRequired
}

type spinResponse struct {
	Allowed bool   `json:"allowed"`
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
}

func (h *SpinHandler) Spin(c echo.Context) error {
	var req spinRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, spinResponse{Message: bindMessage(err)})
	}

	d := h.svc.SubmitSpin(c.Request().Context(), services.SpinRequest{
		Name:       req.Name,
		Email:      req.Email,
		Domain:     req.Domain,
		Discount:   req.Discount,
		CouponCode: req.CouponCode,
	})

	switch {
	case d.Allowed:
		return c.JSON(http.StatusOK, spinResponse{Allowed: true, Success: true})
	case d.Reason == services.ReasonInvalidInput:
		return c.JSON(http.StatusBadRequest, spinResponse{Message: d.Message})
	case d.Reason == services.ReasonStorageError:
		return c.JSON(http.StatusInternalServerError, spinResponse{Message: d.Message})
	default:
		return c.JSON(http.StatusOK, spinResponse{Message: d.Message})
	}
}

func (h *SpinHandler) ListSpins(c echo.Context) error {
	spins, err := h.spins.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"count": len(spins),
		"spins": spins,
	})
}

func (h *SpinHandler) ListSegments(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"segments": catalog.Segments()})
}

var driverNames = map[string]string{
	"sqlite":   "Local SQLite",
	"mysql":    "MySQL",
	"postgres": "PostgreSQL",
}

func (h *SpinHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	dbStatus := "reachable"
	if err := h.spins.Ping(ctx); err != nil {
		dbStatus = "unreachable: " + err.Error()
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"environment": map[string]any{
			"port":          h.cfg.Port,
			"mailUser":      configured(h.cfg.SMTPUser),
			"mailPassword":  configured(h.cfg.SMTPPassword),
			"mailTransport": h.cfg.MailConfigured(),
			"database":      driverNames[h.cfg.DatabaseDriver],
			"databaseState": dbStatus,
			"catalogStrict": h.cfg.CatalogStrict,
		},
	})
}

func (h *SpinHandler) Index(c echo.Context) error {
	segs := catalog.Segments()
	return c.Render(http.StatusOK, "index.html", map[string]any{
		"Segments":     segs,
		"SegmentAngle": 360.0 / float64(len(segs)),
	})
}

func configured(v string) string {
	if v == "" {
		return "NOT SET"
	}
	return "configured"
}
