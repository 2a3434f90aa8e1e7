package services

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
)

// fastRetry keeps backoff delays negligible in tests.
var fastRetry = RetryPolicy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

// mockBackend implements driven.EmbeddingBackend for testing.
// Vectors encode the text length in their first component.
type mockBackend struct {
	name      string
	dims      int
	batchSize int
	outDims   int

	mu      sync.Mutex
	calls   int
	batches [][]string
	fail    func(call int, texts []string) error
	onCall  func()
	pingErr error
	hang    bool
}

var _ driven.EmbeddingBackend = (*mockBackend)(nil)

func newMockBackend(name string, dims int) *mockBackend {
	return &mockBackend{name: name, dims: dims}
}

func (m *mockBackend) Name() string      { return m.name }
func (m *mockBackend) ModelName() string { return m.name + "-model" }
func (m *mockBackend) Dimensions() int   { return m.dims }
func (m *mockBackend) BatchSize() int    { return m.batchSize }
func (m *mockBackend) Close() error      { return nil }

func (m *mockBackend) Ping(ctx context.Context) error {
	if m.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return m.pingErr
}

func (m *mockBackend) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.batches = append(m.batches, slices.Clone(texts))
	fail, onCall := m.fail, m.onCall
	m.mu.Unlock()

	if onCall != nil {
		onCall()
	}
	if fail != nil {
		if err := fail(call, texts); err != nil {
			return nil, err
		}
	}

	dims := m.dims
	if m.outDims > 0 {
		dims = m.outDims
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, dims)
		v[0] = float32(len(t))
		out[i] = v
	}
	return out, nil
}

func (m *mockBackend) setFail(fail func(call int, texts []string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func (m *mockBackend) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func alwaysFail(err error) func(int, []string) error {
	return func(int, []string) error { return err }
}

// fakeEmbedder implements Embedder without a backend chain.
type fakeEmbedder struct {
	dims  int
	fail  func(texts []string) error
	block bool

	mu    sync.Mutex
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([]domain.EmbeddingVector, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, domain.TimeoutError(domain.StageEmbed, ctx.Err())
	}
	if f.fail != nil {
		if err := f.fail(texts); err != nil {
			return nil, err
		}
	}
	out := make([]domain.EmbeddingVector, len(texts))
	for i, t := range texts {
		v := make([]float32, f.dims)
		v[0] = float32(len(t))
		out[i] = domain.EmbeddingVector{Values: v, Model: "fake", Dimensions: f.dims}
	}
	return out, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// mockStore implements driven.VectorStore for testing.
type mockStore struct {
	mu       sync.Mutex
	dims     int
	records  map[string]domain.IndexRecord
	ops      []string
	attempts map[string]int

	upsertErr func(r domain.IndexRecord, attempt int) error
	deleteErr error

	hits     []domain.RetrievalHit
	queryErr error
	lastOpts domain.QueryOptions
	queries  int
}

var _ driven.VectorStore = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{
		records:  make(map[string]domain.IndexRecord),
		attempts: make(map[string]int),
	}
}

func (m *mockStore) Upsert(_ context.Context, r domain.IndexRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[r.ID]++
	if m.upsertErr != nil {
		if err := m.upsertErr(r, m.attempts[r.ID]); err != nil {
			return domain.NewStoreError("upsert", r.ID, err)
		}
	}
	m.ops = append(m.ops, "upsert:"+r.ID)
	m.records[r.ID] = r
	return nil
}

func (m *mockStore) UpsertBatch(ctx context.Context, records []domain.IndexRecord) []domain.UpsertOutcome {
	out := make([]domain.UpsertOutcome, len(records))
	for i, r := range records {
		out[i] = domain.UpsertOutcome{RecordID: r.ID, Err: m.Upsert(ctx, r)}
	}
	return out
}

func (m *mockStore) Query(_ context.Context, _ []float32, opts domain.QueryOptions) ([]domain.RetrievalHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	m.lastOpts = opts
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return slices.Clone(m.hits), nil
}

func (m *mockStore) DeleteByDocument(_ context.Context, documentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	m.ops = append(m.ops, "delete:"+documentID)
	n := 0
	for id, r := range m.records {
		if r.DocumentID == documentID {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func (m *mockStore) Dimensions() int { return m.dims }

func (m *mockStore) Stats(_ context.Context) (domain.CollectionStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.CollectionStats{Name: "mock", Records: len(m.records), Dimensions: m.dims}, nil
}

func (m *mockStore) Ping(_ context.Context) error { return nil }
func (m *mockStore) Close() error                 { return nil }

func (m *mockStore) recordsFor(documentID string) []domain.IndexRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.IndexRecord
	for _, r := range m.records {
		if r.DocumentID == documentID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b domain.IndexRecord) int { return a.ChunkIndex - b.ChunkIndex })
	return out
}

func (m *mockStore) opsSnapshot() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.ops)
}

// recordingSink implements driven.MetricsSink for testing.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *recordingSink) Record(_ context.Context, e domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) stage(stage string) []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Event
	for _, e := range s.events {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}

// failingSink always fails.
type failingSink struct{}

func (failingSink) Record(context.Context, domain.Event) error { return errors.New("sink down") }

// panickingSink always panics.
type panickingSink struct{}

func (panickingSink) Record(context.Context, domain.Event) error { panic("sink exploded") }

// mockRegistry implements driven.NormaliserRegistry for testing.
type mockRegistry struct {
	err error
}

func (m *mockRegistry) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Document{URI: raw.URI, Content: string(raw.Content), ContentType: raw.MIMEType}, nil
}

func (m *mockRegistry) Register(driven.Normaliser) {}

func (m *mockRegistry) SupportedMIMETypes() []string { return []string{"text/plain"} }
