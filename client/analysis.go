package client

import (
	"context"
	"net/http"

	"lotus-board/domain"
)

// AnalysisClient speaks the context-analysis backend's HTTP contract. The
// backend internally retries extraction when a quality score drops below its
// threshold; this client only reports what comes back.
type AnalysisClient struct {
	base
}

// NewAnalysisClient creates a client for the context-analysis backend.
func NewAnalysisClient(baseURL, bearer string, doer Doer) *AnalysisClient {
	return &AnalysisClient{base: newBase(baseURL, bearer, doer)}
}

type ingestRequest struct {
	Text       string            `json:"text"`
	SourceType domain.SourceType `json:"source_type"`
}

// IngestContext submits raw text and returns the analysis header.
func (c *AnalysisClient) IngestContext(ctx context.Context, text string, source domain.SourceType) (domain.ContextAnalysisResult, error) {
	var result domain.ContextAnalysisResult
	if err := c.do(ctx, http.MethodPost, "/context/ingest", ingestRequest{Text: text, SourceType: source}, &result); err != nil {
		return domain.ContextAnalysisResult{}, err
	}
	return result, nil
}

type entitiesResponse struct {
	Entities []domain.Entity `json:"entities"`
}

// GetEntities fetches the entities derived from a context item.
func (c *AnalysisClient) GetEntities(ctx context.Context, contextItemID string) ([]domain.Entity, error) {
	var resp entitiesResponse
	if err := c.do(ctx, http.MethodGet, "/context/"+contextItemID+"/entities", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entities, nil
}

type relationshipsResponse struct {
	Relationships []domain.Relationship `json:"relationships"`
}

// GetRelationships fetches the relationships inferred from a context item.
func (c *AnalysisClient) GetRelationships(ctx context.Context, contextItemID string) ([]domain.Relationship, error) {
	var resp relationshipsResponse
	if err := c.do(ctx, http.MethodGet, "/context/"+contextItemID+"/relationships", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Relationships, nil
}
