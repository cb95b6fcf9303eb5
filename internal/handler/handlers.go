package handler

import (
	"net/http"

	"dnswatch/internal/model"
	"dnswatch/internal/service"
	"dnswatch/internal/storage"
	"dnswatch/internal/utils"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	Storage *storage.Storage
	Monitor *service.MonitorService
}

func NewHandler(s *storage.Storage, monitor *service.MonitorService) *Handler {
	return &Handler{
		Storage: s,
		Monitor: monitor,
	}
}

func recordTypeParam(c echo.Context) model.RecordType {
	t := model.RecordType(c.QueryParam("type"))
	if t == "" {
		t = model.RecordTypeA
	}
	return t
}

func (h *Handler) ListDomains(c echo.Context) error {
	specs, err := h.Storage.GetWatchedDomains(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if specs == nil {
		specs = []model.DomainSpec{}
	}
	return c.JSON(http.StatusOK, specs)
}

func (h *Handler) AddDomain(c echo.Context) error {
	var spec model.DomainSpec
	if err := c.Bind(&spec); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if spec.RecordType == "" {
		spec.RecordType = model.RecordTypeA
	}
	if !utils.IsValidDomain(spec.Domain) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid domain"})
	}
	if !spec.RecordType.Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid record type"})
	}

	if err := h.Storage.AddWatchedDomain(c.Request().Context(), spec); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, spec)
}

func (h *Handler) RemoveDomain(c echo.Context) error {
	domain := c.Param("domain")
	recordType := recordTypeParam(c)
	if err := h.Storage.RemoveWatchedDomain(c.Request().Context(), domain, recordType); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

// RunCheck triggers checks outside the cron schedule. With a body it checks
// one domain synchronously; without one it runs a full cycle over the watch
// list.
func (h *Handler) RunCheck(c echo.Context) error {
	ctx := c.Request().Context()

	var spec model.DomainSpec
	if err := c.Bind(&spec); err == nil && spec.Domain != "" {
		if spec.RecordType == "" {
			spec.RecordType = model.RecordTypeA
		}
		if !utils.IsValidDomain(spec.Domain) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid domain"})
		}
		res := h.Monitor.CheckDomain(ctx, spec)
		return c.JSON(http.StatusOK, res)
	}

	specs, err := h.Storage.GetWatchedDomains(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	results := h.Monitor.RunCycle(ctx, specs)
	return c.JSON(http.StatusOK, results)
}

func (h *Handler) GetLastResult(c echo.Context) error {
	domain := c.Param("domain")
	res, err := h.Storage.GetLastCheckResult(c.Request().Context(), domain, recordTypeParam(c))
	if err == storage.ErrNotFound {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no check result for domain"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) GetHistory(c echo.Context) error {
	domain := c.Param("domain")
	entries, diffs, err := h.Storage.GetHistoryWithDiffs(c.Request().Context(), domain, recordTypeParam(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"entries": entries,
		"diffs":   diffs,
	})
}
