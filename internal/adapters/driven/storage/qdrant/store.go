// Package qdrant provides a vector store backed by a Qdrant collection.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jbrcoleman/bedrock-vector-search/internal/adapters/driven/storage"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Payload keys.
const (
	keyRecordID   = "record_id"
	keyDocumentID = "document_id"
	keyChunkIndex = "chunk_index"
	keyText       = "text"
	keyStart      = "start"
	keyEnd        = "end"
)

// pointNamespace derives stable point UUIDs from record IDs.
var pointNamespace = uuid.MustParse("6f0c3c55-8a43-4b8e-9d36-5d1f3f0f6a8e")

// Client is the subset of *qdrant.Client the store uses.
type Client interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	Close() error
}

// Config holds Qdrant connection configuration.
type Config struct {
	// URL is the Qdrant gRPC address (e.g., "http://localhost:6334").
	URL string

	// Collection is the collection name.
	Collection string

	// APIKey is optional API key for authentication.
	APIKey string

	// Dimensions fixes the collection size. Zero defers creation to the
	// first upsert.
	Dimensions int
}

// Store is a Qdrant-backed vector store.
type Store struct {
	client     Client
	collection string
	dims       *storage.DimensionGuard
}

// New connects to Qdrant and opens the collection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, &domain.ConfigurationError{Field: "vector_store.url", Reason: "qdrant url is required"}
	}
	qcfg, err := clientConfig(cfg.URL, cfg.APIKey)
	if err != nil {
		return nil, err
	}
	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	s, err := NewWithClient(ctx, client, cfg.Collection, cfg.Dimensions)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// NewWithClient opens the collection through an existing client.
func NewWithClient(ctx context.Context, client Client, collection string, dims int) (*Store, error) {
	if collection == "" {
		collection = "documents"
	}
	s := &Store{client: client, collection: collection}

	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, domain.NewStoreError("open", "", classify(err))
	}

	if exists {
		info, err := client.GetCollectionInfo(ctx, collection)
		if err != nil {
			return nil, domain.NewStoreError("open", "", classify(err))
		}
		stored := collectionSize(info)
		if dims != 0 && stored != 0 && stored != dims {
			return nil, &domain.ConfigurationError{
				Field:  "vector_store.dimensions",
				Reason: fmt.Sprintf("collection %q already has %d dimensions, configured %d", collection, stored, dims),
			}
		}
		s.dims = storage.NewDimensionGuard(stored)
		return s, nil
	}

	s.dims = storage.NewDimensionGuard(dims)
	if dims > 0 {
		if err := s.create(ctx, dims); err != nil {
			return nil, domain.NewStoreError("open", "", err)
		}
	}
	return s, nil
}

// clientConfig parses a Qdrant URL into client settings.
func clientConfig(raw, apiKey string) (*qdrant.Config, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &domain.ConfigurationError{Field: "vector_store.url", Reason: err.Error()}
	}

	port := 6334 // default gRPC port
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, &domain.ConfigurationError{Field: "vector_store.url", Reason: "invalid port " + u.Port()}
		}
		port = p
	}

	return &qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: apiKey,
		UseTLS: u.Scheme == "https",
	}, nil
}

func (s *Store) create(ctx context.Context, dims int) error {
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return classify(err)
	}
	return nil
}

// collectionSize reads the vector size of a single-vector collection.
func collectionSize(info *qdrant.CollectionInfo) int {
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return 0
	}
	return int(params.GetSize())
}

// PointID maps a record ID to its Qdrant point UUID.
func PointID(recordID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(recordID)).String()
}

// Upsert stores or replaces a record.
func (s *Store) Upsert(ctx context.Context, r domain.IndexRecord) error {
	outcomes := s.UpsertBatch(ctx, []domain.IndexRecord{r})
	return outcomes[0].Err
}

// UpsertBatch validates each record and writes the valid ones in one call.
func (s *Store) UpsertBatch(ctx context.Context, records []domain.IndexRecord) []domain.UpsertOutcome {
	out := make([]domain.UpsertOutcome, len(records))
	points := make([]*qdrant.PointStruct, 0, len(records))
	slots := make([]int, 0, len(records))

	for i, r := range records {
		out[i].RecordID = r.ID
		if err := storage.ValidateRecord(r); err != nil {
			out[i].Err = domain.NewStoreError("upsert", r.ID, err)
			continue
		}
		fixed, err := s.dims.Check(len(r.Vector))
		if err != nil {
			out[i].Err = domain.NewStoreError("upsert", r.ID, err)
			continue
		}
		if fixed {
			if err := s.create(ctx, len(r.Vector)); err != nil {
				s.dims.Reset(true)
				out[i].Err = domain.NewStoreError("upsert", r.ID, err)
				continue
			}
		}
		points = append(points, toPoint(r))
		slots = append(slots, i)
	}
	if len(points) == 0 {
		return out
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		err = classify(err)
		for _, i := range slots {
			out[i].Err = domain.NewStoreError("upsert", records[i].ID, err)
		}
	}
	return out
}

func toPoint(r domain.IndexRecord) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewID(PointID(r.ID)),
		Vectors: qdrant.NewVectors(r.Vector...),
		Payload: qdrant.NewValueMap(map[string]any{
			keyRecordID:   r.ID,
			keyDocumentID: r.DocumentID,
			keyChunkIndex: int64(r.ChunkIndex),
			keyText:       r.Text,
			keyStart:      int64(r.Start),
			keyEnd:        int64(r.End),
		}),
	}
}

func fromPayload(payload map[string]*qdrant.Value) domain.IndexRecord {
	return domain.IndexRecord{
		ID:         payload[keyRecordID].GetStringValue(),
		DocumentID: payload[keyDocumentID].GetStringValue(),
		ChunkIndex: int(payload[keyChunkIndex].GetIntegerValue()),
		Text:       payload[keyText].GetStringValue(),
		Start:      int(payload[keyStart].GetIntegerValue()),
		End:        int(payload[keyEnd].GetIntegerValue()),
	}
}

// Query searches the collection by cosine similarity.
func (s *Store) Query(ctx context.Context, vector []float32, opts domain.QueryOptions) ([]domain.RetrievalHit, error) {
	dims := s.dims.Dimensions()
	if dims == 0 {
		return nil, nil
	}
	if len(vector) != dims {
		return nil, domain.NewStoreError("query", "", storage.DimensionError(len(vector), dims))
	}

	limit := uint64(opts.Limit())
	req := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.MinScore != nil {
		threshold := float32(*opts.MinScore)
		req.ScoreThreshold = &threshold
	}

	points, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, domain.NewStoreError("query", "", classify(err))
	}

	hits := make([]domain.RetrievalHit, 0, len(points))
	for _, p := range points {
		hits = append(hits, domain.RetrievalHit{
			Record: fromPayload(p.GetPayload()),
			Score:  float64(p.GetScore()),
		})
	}
	return storage.Rank(hits, opts), nil
}

func documentFilter(documentID string) *qdrant.Filter {
	return &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch(keyDocumentID, documentID)}}
}

// DeleteByDocument removes every point of a document.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	if s.dims.Dimensions() == 0 {
		return 0, nil
	}
	exact := true
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter:         documentFilter(documentID),
		Exact:          &exact,
	})
	if err != nil {
		return 0, domain.NewStoreError("delete", "", classify(err))
	}
	if n == 0 {
		return 0, nil
	}

	wait := true
	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelectorFilter(documentFilter(documentID)),
	})
	if err != nil {
		return 0, domain.NewStoreError("delete", "", classify(err))
	}
	return int(n), nil
}

// Dimensions returns the collection dimensionality, 0 while unfixed.
func (s *Store) Dimensions() int {
	return s.dims.Dimensions()
}

// Stats reports the collection's point count. Documents is not tracked.
func (s *Store) Stats(ctx context.Context) (domain.CollectionStats, error) {
	stats := domain.CollectionStats{Name: s.collection, Dimensions: s.dims.Dimensions()}
	if stats.Dimensions == 0 {
		return stats, nil
	}
	exact := true
	n, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: s.collection, Exact: &exact})
	if err != nil {
		return stats, domain.NewStoreError("stats", "", classify(err))
	}
	stats.Records = int(n)
	return stats, nil
}

// Ping checks the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return domain.NewStoreError("ping", "", classify(err))
	}
	return nil
}

// Close closes the gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// classify maps gRPC status codes onto domain errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.Aborted, codes.Internal:
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	case codes.InvalidArgument, codes.FailedPrecondition:
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	case codes.NotFound:
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %v", domain.ErrAuthInvalid, err)
	}
	return err
}
