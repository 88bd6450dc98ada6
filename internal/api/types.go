package api

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kithua/acw/internal/blacklist"
	"github.com/kithua/acw/internal/credibility"
	"github.com/kithua/acw/internal/discovery"
	"github.com/kithua/acw/internal/pipeline"
	"github.com/kithua/acw/internal/source"
)

type ValidatorInterface interface {
	Validate(ctx context.Context, src source.Descriptor) discovery.ValidationResult
}

var _ ValidatorInterface = (*discovery.Validator)(nil)

// HistoryStore reads credibility records persisted by earlier runs.
type HistoryStore interface {
	Get(ctx context.Context, domain string) (*credibility.Record, error)
}

type Handler struct {
	curator   *pipeline.Curator
	validator ValidatorInterface
	history   HistoryStore
	blacklist *blacklist.Blacklist
	gatherer  prometheus.Gatherer
	version   string
	startedAt time.Time
}

type scoreRequest struct {
	URL    string         `json:"url"`
	Domain string         `json:"domain"`
	Sample *source.Sample `json:"sample"`
}

type classifyRequest struct {
	Text    string `json:"text"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

type validateRequest struct {
	URL        string `json:"url" binding:"required"`
	SourceType string `json:"source_type"`
}
