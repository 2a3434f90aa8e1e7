// Package pgvector provides a vector store backed by PostgreSQL with the
// pgvector extension.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/jbrcoleman/bedrock-vector-search/internal/adapters/driven/storage"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Config holds PostgreSQL connection configuration.
type Config struct {
	// DSN is a libpq connection string or postgres:// URL.
	DSN string

	// Table holds the records of one collection.
	Table string

	// Dimensions fixes the embedding column size. Zero defers table
	// creation to the first upsert.
	Dimensions int

	// MaxConns bounds the connection pool. Zero keeps the pgx default.
	MaxConns int32
}

// Store is a PostgreSQL vector store.
type Store struct {
	pool  *pgxpool.Pool
	table string
	ident string
	dims  *storage.DimensionGuard
}

// New connects to PostgreSQL and opens the table.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, &domain.ConfigurationError{Field: "vector_store.dsn", Reason: "postgres dsn is required"}
	}
	if cfg.Table == "" {
		cfg.Table = "documents"
	}
	if !tableName.MatchString(cfg.Table) {
		return nil, &domain.ConfigurationError{Field: "vector_store.collection", Reason: fmt.Sprintf("invalid table name %q", cfg.Table)}
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, &domain.ConfigurationError{Field: "vector_store.dsn", Reason: err.Error()}
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, domain.NewStoreError("open", "", classify(err))
	}

	s := &Store{pool: pool, table: cfg.Table, ident: pgx.Identifier{cfg.Table}.Sanitize()}
	stored, err := s.open(ctx, cfg.Dimensions)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.dims = storage.NewDimensionGuard(stored)
	return s, nil
}

// open returns the stored dimensionality, creating the table when dims is known.
func (s *Store) open(ctx context.Context, dims int) (int, error) {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return 0, domain.NewStoreError("open", "", classify(err))
	}

	var stored int
	err := s.pool.QueryRow(ctx, `
		SELECT a.atttypmod FROM pg_attribute a
		WHERE a.attrelid = to_regclass($1) AND a.attname = 'embedding'
	`, s.table).Scan(&stored)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if dims == 0 {
			return 0, nil
		}
		if err := s.create(ctx, dims); err != nil {
			return 0, domain.NewStoreError("open", "", err)
		}
		return dims, nil
	case err != nil:
		return 0, domain.NewStoreError("open", "", classify(err))
	}

	if stored < 0 {
		stored = 0
	}
	if dims != 0 && stored != 0 && dims != stored {
		return 0, &domain.ConfigurationError{
			Field:  "vector_store.dimensions",
			Reason: fmt.Sprintf("table %q already has %d dimensions, configured %d", s.table, stored, dims),
		}
	}
	return stored, nil
}

func (s *Store) create(ctx context.Context, dims int) error {
	if _, err := s.pool.Exec(ctx, createTableSQL(s.ident, s.table, dims)); err != nil {
		return classify(err)
	}
	return nil
}

func createTableSQL(ident, table string, dims int) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id           TEXT PRIMARY KEY,
			document_id  TEXT NOT NULL,
			chunk_index  INTEGER NOT NULL,
			text         TEXT NOT NULL,
			start_offset INTEGER NOT NULL,
			end_offset   INTEGER NOT NULL,
			embedding    vector(%[3]d) NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (document_id);
	`, ident, pgx.Identifier{table + "_document_idx"}.Sanitize(), dims)
}

func upsertSQL(ident string) string {
	return `INSERT INTO ` + ident + ` (id, document_id, chunk_index, text, start_offset, end_offset, embedding, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			chunk_index = EXCLUDED.chunk_index,
			text = EXCLUDED.text,
			start_offset = EXCLUDED.start_offset,
			end_offset = EXCLUDED.end_offset,
			embedding = EXCLUDED.embedding,
			updated_at = EXCLUDED.updated_at`
}

// querySQL ranks by cosine distance; similarity is 1 - distance.
func querySQL(ident string, withFloor bool) string {
	var b strings.Builder
	b.WriteString(`SELECT id, document_id, chunk_index, text, start_offset, end_offset, 1 - (embedding <=> $1) AS score FROM `)
	b.WriteString(ident)
	if withFloor {
		b.WriteString(` WHERE 1 - (embedding <=> $1) >= $3`)
	}
	b.WriteString(` ORDER BY embedding <=> $1, id LIMIT $2`)
	return b.String()
}

// Upsert stores or replaces a record.
func (s *Store) Upsert(ctx context.Context, r domain.IndexRecord) error {
	return domain.NewStoreError("upsert", r.ID, s.upsert(ctx, r))
}

func (s *Store) upsert(ctx context.Context, r domain.IndexRecord) error {
	if err := storage.ValidateRecord(r); err != nil {
		return err
	}
	established, err := s.dims.Check(len(r.Vector))
	if err != nil {
		return err
	}
	if established {
		if err := s.create(ctx, len(r.Vector)); err != nil {
			s.dims.Reset(true)
			return err
		}
	}

	_, err = s.pool.Exec(ctx, upsertSQL(s.ident),
		r.ID, r.DocumentID, r.ChunkIndex, r.Text, r.Start, r.End,
		pgvector.NewVector(r.Vector), time.Now().UTC())
	return classify(err)
}

// UpsertBatch stores each record independently.
func (s *Store) UpsertBatch(ctx context.Context, records []domain.IndexRecord) []domain.UpsertOutcome {
	out := make([]domain.UpsertOutcome, len(records))
	for i, r := range records {
		out[i] = domain.UpsertOutcome{RecordID: r.ID, Err: s.Upsert(ctx, r)}
	}
	return out
}

// Query returns the nearest records by cosine similarity.
func (s *Store) Query(ctx context.Context, vector []float32, opts domain.QueryOptions) ([]domain.RetrievalHit, error) {
	dims := s.dims.Dimensions()
	if dims == 0 {
		return nil, nil
	}
	if len(vector) != dims {
		return nil, domain.NewStoreError("query", "", storage.DimensionError(len(vector), dims))
	}

	args := []any{pgvector.NewVector(vector), opts.Limit()}
	if opts.MinScore != nil {
		args = append(args, *opts.MinScore)
	}

	rows, err := s.pool.Query(ctx, querySQL(s.ident, opts.MinScore != nil), args...)
	if err != nil {
		return nil, domain.NewStoreError("query", "", classify(err))
	}
	defer rows.Close()

	var hits []domain.RetrievalHit
	for rows.Next() {
		var h domain.RetrievalHit
		r := &h.Record
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.ChunkIndex, &r.Text, &r.Start, &r.End, &h.Score); err != nil {
			return nil, domain.NewStoreError("query", "", classify(err))
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("query", "", classify(err))
	}
	return storage.Rank(hits, opts), nil
}

// DeleteByDocument removes every record of a document.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	if s.dims.Dimensions() == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, "DELETE FROM "+s.ident+" WHERE document_id = $1", documentID)
	if err != nil {
		return 0, domain.NewStoreError("delete", "", classify(err))
	}
	return int(tag.RowsAffected()), nil
}

// Dimensions returns the table dimensionality, 0 while unfixed.
func (s *Store) Dimensions() int {
	return s.dims.Dimensions()
}

// Stats counts records and documents in the table.
func (s *Store) Stats(ctx context.Context) (domain.CollectionStats, error) {
	stats := domain.CollectionStats{Name: s.table, Dimensions: s.dims.Dimensions()}
	if stats.Dimensions == 0 {
		return stats, nil
	}
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT document_id) FROM "+s.ident).Scan(&stats.Records, &stats.Documents)
	if err != nil {
		return stats, domain.NewStoreError("stats", "", classify(err))
	}
	return stats, nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return domain.NewStoreError("ping", "", classify(err))
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// classify maps PostgreSQL and connection errors onto domain errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"), // connection exception
			strings.HasPrefix(pgErr.Code, "53"),  // insufficient resources
			strings.HasPrefix(pgErr.Code, "40"),  // transaction rollback
			strings.HasPrefix(pgErr.Code, "57P"): // operator intervention
			return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
		case strings.HasPrefix(pgErr.Code, "22"), // data exception
			strings.HasPrefix(pgErr.Code, "23"): // integrity constraint
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		case strings.HasPrefix(pgErr.Code, "28"): // invalid authorization
			return fmt.Errorf("%w: %v", domain.ErrAuthInvalid, err)
		}
		return err
	}

	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	return err
}
