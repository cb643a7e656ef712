package api

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/fallback"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/notify"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/orchestrator"
	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/repository"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
	defaultSeverity  = "high"
)

// Runs is the orchestrator surface the HTTP API drives.
type Runs interface {
	Create(kind string, loc models.Location, severity string, metadata map[string]any) (string, error)
	Status(id string) (models.RunView, error)
	Runs() []models.RunView
	Submit(id string) error
	Cancel(id string) error
	GeoJSON(id string) (models.FeatureCollection, error)
}

// Catalog lists fallback scenarios and whether their plans are cached.
type Catalog interface {
	Scenarios() []fallback.Scenario
	Cached(s fallback.Scenario) bool
}

// Info describes how the service was configured, reported by /api/config.
type Info struct {
	LLMConfigured  bool     `json:"llm_configured"`
	LiveProviders  []string `json:"live_providers"`
	SampleLayers   bool     `json:"sample_layers"`
	ArchiveEnabled bool     `json:"archive_enabled"`
	Sinks          []string `json:"sinks"`
}

type Handler struct {
	runs    Runs
	history repository.RunRepository
	rooms   *notify.RoomHandler
	catalog Catalog
	info    Info
}

// NewHandler wires the API. history, rooms and catalog may be nil.
func NewHandler(runs Runs, history repository.RunRepository, rooms *notify.RoomHandler, catalog Catalog, info Info) *Handler {
	return &Handler{
		runs:    runs,
		history: history,
		rooms:   rooms,
		catalog: catalog,
		info:    info,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine, middleware ...gin.HandlerFunc) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws/disasters/:id", h.joinRoom)

	g := r.Group("/api", middleware...)
	g.GET("/health", h.health)
	g.GET("/config", h.config)
	g.GET("/disasters", h.listRuns)
	g.POST("/disasters", h.createRun)
	g.GET("/disasters/:id", h.getRun)
	g.GET("/disasters/:id/plan", h.getPlan)
	g.GET("/disasters/:id/geojson", h.getGeoJSON)
	g.POST("/disasters/:id/process", h.processRun)
	g.POST("/disasters/:id/cancel", h.cancelRun)
}

type createRequest struct {
	Type     string           `json:"type"`
	Location *models.Location `json:"location"`
	Severity string           `json:"severity"`
	Metadata map[string]any   `json:"metadata"`
	Process  bool             `json:"process"`
}

func (h *Handler) createRun(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "kind": models.ErrInvalidInput})
		return
	}
	if req.Location == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "location is required", "kind": models.ErrInvalidInput})
		return
	}
	if req.Severity == "" {
		req.Severity = defaultSeverity
	}

	id, err := h.runs.Create(req.Type, *req.Location, req.Severity, req.Metadata)
	if err != nil {
		respondError(c, err)
		return
	}

	if req.Process {
		if err := h.runs.Submit(id); err != nil {
			slog.Warn("created run could not be queued", "run_id", id, "error", err)
			code, body := errorBody(err)
			body["id"] = id
			c.JSON(code, body)
			return
		}
	}

	view, err := h.runs.Status(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) processRun(c *gin.Context) {
	id := c.Param("id")
	if err := h.runs.Submit(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": "accepted"})
}

func (h *Handler) cancelRun(c *gin.Context) {
	id := c.Param("id")
	if err := h.runs.Cancel(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": "cancelling"})
}

// view looks a run up in the registry, then in the archive for runs that
// have been evicted.
func (h *Handler) view(c *gin.Context, id string) (models.RunView, error) {
	v, err := h.runs.Status(id)
	if err == nil || h.history == nil || !models.IsKind(err, models.ErrNotFound) {
		return v, err
	}
	archived, herr := h.history.GetRun(c.Request.Context(), id)
	if herr != nil {
		slog.Error("archive lookup failed", "run_id", id, "error", herr)
		return v, err
	}
	if archived == nil {
		return v, err
	}
	return *archived, nil
}

func (h *Handler) getRun(c *gin.Context) {
	v, err := h.view(c, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) getPlan(c *gin.Context) {
	v, err := h.view(c, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if v.Plan == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "plan not available", "status": v.Status})
		return
	}
	c.JSON(http.StatusOK, v.Plan)
}

func (h *Handler) getGeoJSON(c *gin.Context) {
	fc, err := h.runs.GeoJSON(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, fc)
}

func (h *Handler) listRuns(c *gin.Context) {
	filter := repository.Filter{Limit: defaultListLimit}

	if t := c.Query("type"); t != "" {
		kind, err := models.ParseDisasterKind(t)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": models.ErrInvalidInput})
			return
		}
		filter.Kind = &kind
	}
	if s := c.Query("status"); s != "" {
		status := models.RunStatus(s)
		filter.Status = &status
	}
	if s := c.Query("since"); s != "" {
		if t, ok := parseSince(s); ok {
			filter.Since = &t
		}
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= maxListLimit {
			filter.Limit = lim
		}
	}
	if o := c.Query("offset"); o != "" {
		if off, err := strconv.Atoi(o); err == nil && off >= 0 {
			filter.Offset = off
		}
	}

	var (
		runs []models.RunView
		err  error
	)
	if h.history != nil && c.Query("live") != "true" {
		runs, err = h.history.ListRuns(c.Request.Context(), filter)
		if err != nil {
			slog.Error("failed to list archived runs", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch disasters"})
			return
		}
	} else {
		runs = filterLive(h.runs.Runs(), filter)
	}

	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, toGeoJSON(runs))
}

func parseSince(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// filterLive applies filter to registry runs, which arrive newest first.
func filterLive(runs []models.RunView, f repository.Filter) []models.RunView {
	out := make([]models.RunView, 0, len(runs))
	for _, r := range runs {
		if f.Kind != nil && r.Disaster.Kind != *f.Kind {
			continue
		}
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		if f.Since != nil && r.Disaster.CreatedAt.Before(*f.Since) {
			continue
		}
		out = append(out, r)
	}
	if f.Offset >= len(out) {
		return nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

type scenarioInfo struct {
	ID          string              `json:"id"`
	Kind        models.DisasterKind `json:"kind"`
	Description string              `json:"description"`
	Cached      bool                `json:"cached"`
}

func (h *Handler) config(c *gin.Context) {
	scenarios := []scenarioInfo{}
	cachedAvailable := false
	if h.catalog != nil {
		for _, s := range h.catalog.Scenarios() {
			cached := h.catalog.Cached(s)
			cachedAvailable = cachedAvailable || cached
			scenarios = append(scenarios, scenarioInfo{ID: s.ID, Kind: s.Kind, Description: s.Description, Cached: cached})
		}
		sort.Slice(scenarios, func(i, j int) bool { return scenarios[i].ID < scenarios[j].ID })
	}
	c.JSON(http.StatusOK, gin.H{
		"service":          h.info,
		"cached_available": cachedAvailable,
		"scenarios":        scenarios,
	})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) joinRoom(c *gin.Context) {
	if h.rooms == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "live updates are disabled"})
		return
	}
	h.rooms.Serve(c.Writer, c.Request, c.Param("id"))
}

func respondError(c *gin.Context, err error) {
	code, body := errorBody(err)
	c.JSON(code, body)
}

func errorBody(err error) (int, gin.H) {
	kind := models.KindOf(err)
	body := gin.H{"error": err.Error()}
	if kind != "" {
		body["kind"] = kind
	}

	switch {
	case kind == models.ErrInvalidInput:
		return http.StatusBadRequest, body
	case kind == models.ErrNotFound:
		return http.StatusNotFound, body
	case kind == models.ErrConflictingOperation:
		return http.StatusConflict, body
	case errors.Is(err, orchestrator.ErrBusy), errors.Is(err, orchestrator.ErrNotStarted):
		return http.StatusServiceUnavailable, body
	}
	slog.Error("request failed", "error", err)
	return http.StatusInternalServerError, gin.H{"error": "internal error"}
}
