package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/festival-comb/app/database"
	"github.com/lysyi3m/festival-comb/app/festival"
	"github.com/lysyi3m/festival-comb/app/session"
)

// NewHandler builds the HTTP handlers. details may be nil when no detail store
// is configured.
func NewHandler(registry *session.Registry, details database.DetailRepository,
	regions festival.RegionTable, baseURL, version string) *Handler {
	return &Handler{
		registry:  registry,
		details:   details,
		generator: festival.NewGenerator(),
		regions:   regions,
		baseURL:   strings.TrimRight(baseURL, "/"),
		version:   version,
		now:       time.Now,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": h.now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
		"sessions":  h.registry.Count(),
		"regions":   h.regions.Len(),
	}

	if h.details != nil {
		if count, err := h.details.GetDetailCount(); err == nil {
			health["stored_details"] = count
		} else {
			slog.Error("Database error", "operation", "get_detail_count", "error", err)
		}
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) ListRegions(c *gin.Context) {
	codes := h.regions.Codes()
	regions := make([]gin.H, 0, len(codes))
	for _, code := range codes {
		label, _ := h.regions.Label(code)
		regions = append(regions, gin.H{"code": code, "label": label})
	}

	c.JSON(http.StatusOK, gin.H{
		"regions": regions,
		"total":   len(regions),
	})
}

func (h *Handler) CreateSession(c *gin.Context) {
	s := h.registry.Create()
	s.Start()

	slog.Info("Session started", "session", s.ID(), "mode", s.Mode().String())

	c.Header("Location", "/api/sessions/"+s.ID())
	c.JSON(http.StatusCreated, h.render(s))
}

func (h *Handler) GetSession(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.render(s))
}

func (h *Handler) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if !h.registry.Delete(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	slog.Debug("Session deleted", "session", id)
	c.Status(http.StatusNoContent)
}

func (h *Handler) FetchNext(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	started := s.FetchNext()
	c.JSON(http.StatusOK, gin.H{
		"started": started,
		"session": h.render(s),
	})
}

func (h *Handler) Retry(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	s.Retry()
	c.JSON(http.StatusOK, h.render(s))
}

func (h *Handler) SetFilter(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	var req filterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	filter, err := req.toFilter()
	if err != nil {
		h.badRequest(c, err)
		return
	}

	if err := s.SetFilter(filter); err != nil {
		h.badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, h.render(s))
}

func (h *Handler) SetQuery(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	if err := s.SetQuery(req.Query); err != nil {
		h.badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, h.render(s))
}

func (h *Handler) ApplyKeywords(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	var req keywordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if !hasKeyword(req.Keywords) {
		h.badRequest(c, errBlankKeywords)
		return
	}

	if err := s.ApplyKeywords(req.Keywords, festival.KeywordMode(req.Mode)); err != nil {
		h.badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, h.render(s))
}

func (h *Handler) ResetFilters(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	if err := s.ResetFilters(); err != nil {
		slog.Error("Failed to reset filters", "session", s.ID(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset filters"})
		return
	}
	c.JSON(http.StatusOK, h.render(s))
}

func (h *Handler) RequestDetails(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	var req detailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	issued := s.RequestDetails(req.IDs)
	c.JSON(http.StatusAccepted, gin.H{
		"issued":  issued,
		"session": h.render(s),
	})
}

func (h *Handler) ReportDetail(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	var req detailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	detail := festival.DetailRecord{
		ID:          c.Param("itemID"),
		Period:      req.Period,
		Venue:       req.Venue,
		Description: req.Description,
	}
	if err := s.ReportDetail(detail); err != nil {
		h.badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, h.render(s))
}

func (h *Handler) GetFeed(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	snapshot := s.Snapshot()
	channel := festival.Channel{
		Title:       h.feedTitle(snapshot),
		Link:        h.baseURL,
		Description: fmt.Sprintf("Festival catalog (%s)", snapshot.Mode),
		Version:     h.version,
	}
	if h.baseURL != "" {
		channel.SelfLink = h.baseURL + "/api/sessions/" + s.ID() + "/feed.xml"
	}

	rss, err := h.generator.Run(channel, snapshot.Items, h.now())
	if err != nil {
		slog.Error("RSS generation error", "session", s.ID(), "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(snapshot.Items)))
	c.Header("X-Session-ID", s.ID())
	c.Header("X-Last-Updated", snapshot.UpdatedAt.Format(time.RFC3339))

	c.String(http.StatusOK, rss)
}

func (h *Handler) lookup(c *gin.Context) (*session.Session, bool) {
	s, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}
	return s, true
}

func (h *Handler) render(s *session.Session) snapshotResponse {
	return newSnapshotResponse(s.Snapshot(), festival.DateOf(h.now()))
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request",
		"details": err.Error(),
	})
}

func (h *Handler) feedTitle(snapshot *session.Snapshot) string {
	if snapshot.Searching {
		return "Festival Comb: " + snapshot.SearchKeyword
	}
	return "Festival Comb"
}
