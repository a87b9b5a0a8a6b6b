// Package ingest orchestrates the three-phase context analysis:
// ingest raw text, enrich with entities and relationships fetched
// concurrently, then derive the presentation view. A result is only
// produced when all three phases succeed; partial data is never surfaced.
package ingest

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"lotus-board/domain"
)

// Client is the context-analysis backend contract. The backend retries
// low-quality extraction internally; the pipeline never re-runs a phase on
// its own, re-analysis is a user action.
type Client interface {
	IngestContext(ctx context.Context, text string, source domain.SourceType) (domain.ContextAnalysisResult, error)
	GetEntities(ctx context.Context, contextItemID string) ([]domain.Entity, error)
	GetRelationships(ctx context.Context, contextItemID string) ([]domain.Relationship, error)
}

// Result is the fully-assembled analysis view: the backend header, the raw
// derived data, and the presentation projections.
type Result struct {
	Analysis           domain.ContextAnalysisResult `json:"analysis"`
	Entities           []domain.Entity              `json:"entities"`
	Relationships      []domain.Relationship        `json:"relationships"`
	EntityCounts       map[domain.EntityType]int    `json:"entity_counts"`
	EntityTypes        []domain.EntityType          `json:"entity_types"`
	RelationshipLabels []string                     `json:"relationship_labels"`
}

// Pipeline runs context analyses against the backend.
type Pipeline struct {
	client Client
	logger *log.Logger
	tracer trace.Tracer
}

// NewPipeline creates a Pipeline over the given backend client.
func NewPipeline(client Client, logger *log.Logger) *Pipeline {
	if client == nil {
		panic("ingest.NewPipeline: client is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Pipeline{
		client: client,
		logger: logger,
		tracer: otel.Tracer("lotus-board/ingest"),
	}
}

// Run executes all three phases. Any failure aborts the run and returns a
// *domain.PipelineError tagged with the failing phase; the caller keeps the
// input text for retry.
func (p *Pipeline) Run(ctx context.Context, text string, source domain.SourceType) (result *Result, err error) {
	if strings.TrimSpace(text) == "" {
		return nil, &domain.ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if !source.Valid() {
		return nil, &domain.ValidationError{Field: "source_type", Reason: "unknown source " + string(source)}
	}

	ctx, span := p.tracer.Start(ctx, "context.analyze")
	defer span.End()
	metrics := newRunMetrics(p.logger, source)
	defer func() { metrics.Log(result, err) }()

	analysis, err := p.ingestPhase(ctx, metrics, text, source)
	if err != nil {
		return nil, err
	}

	entities, relationships, err := p.enrichPhase(ctx, metrics, analysis.ContextItemID)
	if err != nil {
		return nil, err
	}

	// Present: pure projection of already-fetched data, no network.
	counts := domain.CountEntitiesByType(entities)
	result = &Result{
		Analysis:           analysis,
		Entities:           entities,
		Relationships:      relationships,
		EntityCounts:       counts,
		EntityTypes:        domain.SortedEntityTypes(counts),
		RelationshipLabels: domain.RelationshipLabels(relationships),
	}
	return result, nil
}

func (p *Pipeline) ingestPhase(ctx context.Context, metrics *runMetrics, text string, source domain.SourceType) (domain.ContextAnalysisResult, error) {
	ctx, span := p.tracer.Start(ctx, "context.ingest")
	defer span.End()

	done := metrics.Phase(domain.PhaseIngest)
	analysis, err := p.client.IngestContext(ctx, text, source)
	done()
	if err != nil {
		return domain.ContextAnalysisResult{}, &domain.PipelineError{Phase: domain.PhaseIngest, Err: err}
	}
	return analysis, nil
}

// enrichPhase fetches entities and relationships concurrently and joins
// both. Either failing fails the phase: half an analysis is not worth
// showing, and the error is tagged enrich so it is never mistaken for an
// ingest failure.
func (p *Pipeline) enrichPhase(ctx context.Context, metrics *runMetrics, contextItemID string) ([]domain.Entity, []domain.Relationship, error) {
	ctx, span := p.tracer.Start(ctx, "context.enrich")
	defer span.End()

	done := metrics.Phase(domain.PhaseEnrich)
	defer done()

	var (
		entities []domain.Entity
		rels     []domain.Relationship
		entErr   error
		relErr   error
	)
	joined := make(chan struct{})
	go func() {
		rels, relErr = p.client.GetRelationships(ctx, contextItemID)
		joined <- struct{}{}
	}()
	entities, entErr = p.client.GetEntities(ctx, contextItemID)
	<-joined

	if entErr != nil {
		return nil, nil, &domain.PipelineError{Phase: domain.PhaseEnrich, Err: entErr}
	}
	if relErr != nil {
		return nil, nil, &domain.PipelineError{Phase: domain.PhaseEnrich, Err: relErr}
	}
	return entities, rels, nil
}
