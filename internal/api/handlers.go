package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kithua/acw/internal/blacklist"
	"github.com/kithua/acw/internal/credibility"
	"github.com/kithua/acw/internal/pipeline"
	"github.com/kithua/acw/internal/source"
)

// NewHandler wires the API handlers. history may be nil, in which case
// credibility lookups only see results scored by this process.
func NewHandler(curator *pipeline.Curator, validator ValidatorInterface, history HistoryStore,
	bl *blacklist.Blacklist, gatherer prometheus.Gatherer, version string) *Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		curator:   curator,
		validator: validator,
		history:   history,
		blacklist: bl,
		gatherer:  gatherer,
		version:   version,
		startedAt: time.Now(),
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"version":          h.version,
		"timestamp":        time.Now().In(time.Local).Format(time.RFC3339),
		"uptime":           time.Since(h.startedAt).Round(time.Second).String(),
		"cached_domains":   h.curator.Scorer().Cache().Len(),
		"blacklist_loaded": h.blacklist.Loaded(),
	})
}

func (h *Handler) GetCredibility(c *gin.Context) {
	domain := source.NormalizeHost(c.Param("domain"))
	if domain == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing domain parameter"})
		return
	}

	result, err := h.curator.Scorer().Cache().Lookup(domain)
	if errors.Is(err, credibility.ErrNotCached) && h.history != nil {
		rec, herr := h.history.Get(c.Request.Context(), domain)
		if herr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": herr.Error()})
			return
		}
		if rec != nil {
			result, err = rec.Result(), nil
		}
	}
	if errors.Is(err, credibility.ErrNotCached) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Domain has not been scored", "domain": domain})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) PostScore(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "message": err.Error()})
		return
	}

	subj := credibility.Subject{
		URL:    strings.TrimSpace(req.URL),
		Domain: source.NormalizeHost(req.Domain),
		Sample: req.Sample,
	}
	if subj.Domain == "" {
		subj.Domain = source.Host(subj.URL)
	}
	if subj.Domain == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Either url or domain is required"})
		return
	}

	if rule, hit := h.blacklist.Match(subj.Domain); hit {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "Domain is blacklisted",
			"domain": subj.Domain,
			"rule":   rule,
		})
		return
	}

	result := h.curator.Scorer().Score(c.Request.Context(), subj)
	if result == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scoring interrupted", "domain": subj.Domain})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) PostClassify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "message": err.Error()})
		return
	}

	text := req.Text
	if text == "" {
		text = strings.TrimSpace(req.Title + " " + req.Summary)
	}

	c.JSON(http.StatusOK, h.curator.Classifier().Classify(text))
}

func (h *Handler) PostCurate(c *gin.Context) {
	var items []source.Item
	if err := c.ShouldBindJSON(&items); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "message": err.Error()})
		return
	}

	corpus, err := h.curator.Run(c.Request.Context(), items)
	switch {
	case errors.Is(err, pipeline.ErrNoUsableItems):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "corpus": corpus})
	case err != nil:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "corpus": corpus})
	default:
		c.JSON(http.StatusOK, corpus)
	}
}

func (h *Handler) PostValidate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "message": err.Error()})
		return
	}

	if rule, hit := h.blacklist.MatchURL(req.URL); hit {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Source is blacklisted", "url": req.URL, "rule": rule})
		return
	}

	src := source.NewDescriptor(req.URL, req.SourceType, "api")
	c.JSON(http.StatusOK, h.validator.Validate(c.Request.Context(), src))
}
