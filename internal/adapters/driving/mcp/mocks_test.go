package mcp

import (
	"context"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driving"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	bundle   *domain.ContextBundle
	err      error
	question string
	opts     domain.QueryOptions
}

func (m *mockQueryService) AnswerContext(
	_ context.Context,
	question string,
	opts domain.QueryOptions,
) (*domain.ContextBundle, error) {
	m.question = question
	m.opts = opts
	if m.err != nil {
		return nil, m.err
	}
	if m.bundle == nil {
		return &domain.ContextBundle{Question: question}, nil
	}
	return m.bundle, nil
}

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	result *domain.IngestionResult
	err    error
	doc    domain.Document
}

func (m *mockIngestionService) Ingest(_ context.Context, doc domain.Document) (*domain.IngestionResult, error) {
	m.doc = doc
	return m.result, m.err
}

func (m *mockIngestionService) IngestRaw(_ context.Context, _ domain.RawDocument) (*domain.IngestionResult, error) {
	return m.result, m.err
}

func (m *mockIngestionService) Remove(_ context.Context, _ string) (int, error) {
	return 0, m.err
}

// mockHealthService is a mock implementation of driving.HealthService.
type mockHealthService struct {
	statuses []driving.ComponentStatus
	stats    domain.CollectionStats
	err      error
}

func (m *mockHealthService) Check(_ context.Context) []driving.ComponentStatus {
	return m.statuses
}

func (m *mockHealthService) Stats(_ context.Context) (domain.CollectionStats, error) {
	return m.stats, m.err
}
