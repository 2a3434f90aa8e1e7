package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/jbrcoleman/bedrock-vector-search/internal/adapters/driven/storage"
	"github.com/jbrcoleman/bedrock-vector-search/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// DefaultFileName is the database file name inside the data directory.
const DefaultFileName = "vectors.db"

// Store is a SQLite-backed vector store for one collection.
type Store struct {
	db         *sql.DB
	path       string
	collection string
	dims       *storage.DimensionGuard
}

// NewStore opens (or creates) the database at path and the named
// collection. If path is empty, defaults to ~/.kb/data/vectors.db.
// A non-zero dims must agree with the collection's stored dimensionality.
func NewStore(ctx context.Context, path, collection string, dims int) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".kb", "data", DefaultFileName)
	}
	if collection == "" {
		collection = "documents"
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path, collection: collection}
	if err := s.migrate(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	stored, err := s.openCollection(ctx, dims)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.dims = storage.NewDimensionGuard(stored)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(ctx context.Context, fsys embed.FS) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_vectors.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// openCollection registers the collection and returns its dimensionality.
func (s *Store) openCollection(ctx context.Context, dims int) (int, error) {
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO collections (name, dimensions) VALUES (?, ?) ON CONFLICT(name) DO NOTHING",
		s.collection, dims); err != nil {
		return 0, fmt.Errorf("creating collection: %w", err)
	}

	var stored int
	if err := s.db.QueryRowContext(ctx,
		"SELECT dimensions FROM collections WHERE name = ?", s.collection).Scan(&stored); err != nil {
		return 0, fmt.Errorf("reading collection: %w", err)
	}

	switch {
	case stored == 0 && dims != 0:
		if _, err := s.db.ExecContext(ctx,
			"UPDATE collections SET dimensions = ? WHERE name = ?", dims, s.collection); err != nil {
			return 0, fmt.Errorf("fixing collection dimensions: %w", err)
		}
		return dims, nil
	case stored != 0 && dims != 0 && stored != dims:
		return 0, &domain.ConfigurationError{
			Field:  "vector_store.dimensions",
			Reason: fmt.Sprintf("collection %q already has %d dimensions, configured %d", s.collection, stored, dims),
		}
	}
	return stored, nil
}

// Upsert stores or replaces a record.
func (s *Store) Upsert(ctx context.Context, r domain.IndexRecord) error {
	return domain.NewStoreError("upsert", r.ID, s.upsert(ctx, r))
}

func (s *Store) upsert(ctx context.Context, r domain.IndexRecord) (err error) {
	if err := storage.ValidateRecord(r); err != nil {
		return err
	}
	established, err := s.dims.Check(len(r.Vector))
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			s.dims.Reset(established)
		}
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if established {
		if _, err := tx.ExecContext(ctx,
			"UPDATE collections SET dimensions = ? WHERE name = ? AND dimensions = 0",
			len(r.Vector), s.collection); err != nil {
			return fmt.Errorf("fixing collection dimensions: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (collection, id, document_id, chunk_index, text, start_offset, end_offset, embedding, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			document_id = excluded.document_id,
			chunk_index = excluded.chunk_index,
			text = excluded.text,
			start_offset = excluded.start_offset,
			end_offset = excluded.end_offset,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at
	`, s.collection, r.ID, r.DocumentID, r.ChunkIndex, r.Text, r.Start, r.End,
		float32SliceToBytes(r.Vector), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving record: %w", err)
	}
	return tx.Commit()
}

// UpsertBatch stores each record independently.
func (s *Store) UpsertBatch(ctx context.Context, records []domain.IndexRecord) []domain.UpsertOutcome {
	out := make([]domain.UpsertOutcome, len(records))
	for i, r := range records {
		out[i] = domain.UpsertOutcome{RecordID: r.ID, Err: s.Upsert(ctx, r)}
	}
	return out
}

// Query scores every record in the collection against vector.
func (s *Store) Query(ctx context.Context, vector []float32, opts domain.QueryOptions) ([]domain.RetrievalHit, error) {
	if dims := s.dims.Dimensions(); dims != 0 && len(vector) != dims {
		return nil, domain.NewStoreError("query", "", storage.DimensionError(len(vector), dims))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, text, start_offset, end_offset, embedding
		FROM records WHERE collection = ?
	`, s.collection)
	if err != nil {
		return nil, domain.NewStoreError("query", "", err)
	}
	defer rows.Close()

	var hits []domain.RetrievalHit
	for rows.Next() {
		var r domain.IndexRecord
		var blob []byte
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.ChunkIndex, &r.Text, &r.Start, &r.End, &blob); err != nil {
			return nil, domain.NewStoreError("query", "", err)
		}
		r.Vector = bytesToFloat32Slice(blob)
		hits = append(hits, domain.RetrievalHit{Record: r, Score: storage.Cosine(vector, r.Vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("query", "", err)
	}
	return storage.Rank(hits, opts), nil
}

// DeleteByDocument removes every record of a document.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM records WHERE collection = ? AND document_id = ?", s.collection, documentID)
	if err != nil {
		return 0, domain.NewStoreError("delete", "", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, domain.NewStoreError("delete", "", err)
	}
	return int(n), nil
}

// Dimensions returns the collection dimensionality, 0 while unfixed.
func (s *Store) Dimensions() int {
	return s.dims.Dimensions()
}

// Stats counts records and documents in the collection.
func (s *Store) Stats(ctx context.Context) (domain.CollectionStats, error) {
	stats := domain.CollectionStats{Name: s.collection, Dimensions: s.dims.Dimensions()}
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT document_id) FROM records WHERE collection = ?",
		s.collection).Scan(&stats.Records, &stats.Documents)
	if err != nil {
		return stats, domain.NewStoreError("stats", "", err)
	}
	return stats, nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return domain.NewStoreError("ping", "", err)
	}
	return nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
