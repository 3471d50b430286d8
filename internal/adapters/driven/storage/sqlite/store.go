package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/archipel-labs/docvec/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/archipel-labs/docvec/internal/core/domain"
	"github.com/archipel-labs/docvec/internal/core/ports/driven"
)

var _ driven.PassageStore = (*Store)(nil)

// Store is a SQLite-backed passage store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store in the specified data directory.
// If dataDir is empty, defaults to ~/.docvec/data/passages.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".docvec", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "passages.db")

	// WAL mode for better concurrency between the ingest and search paths
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

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
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_passages.up.sql" -> 1)
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

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version,
		); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// Insert stores the given passages one record at a time so that a
// single bad record does not discard the rest of the batch. A passage
// occupying the same (locator, sequence_index, version) slot replaces
// the stored one, so a run resumed after a crash mid-file can rewrite
// passages it already committed without duplicating them.
func (s *Store) Insert(ctx context.Context, passages []domain.Passage) (driven.OpResult, error) {
	result := driven.OpResult{Attempted: len(passages)}
	if len(passages) == 0 {
		return result, nil
	}

	stmt, err := s.db.PrepareContext(ctx, `
		INSERT INTO passages (
			id, locator, version, sequence_index, heading_path,
			content, title, summary, embedding,
			filename, version_str, metadata, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(locator, sequence_index, version) DO UPDATE SET
			id = excluded.id,
			heading_path = excluded.heading_path,
			content = excluded.content,
			title = excluded.title,
			summary = excluded.summary,
			embedding = excluded.embedding,
			filename = excluded.filename,
			version_str = excluded.version_str,
			metadata = excluded.metadata,
			processed_at = excluded.processed_at
	`)
	if err != nil {
		return result, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	var errs []error
	for _, p := range passages {
		metadataJSON, err := json.Marshal(p.Metadata)
		if err != nil {
			errs = append(errs, fmt.Errorf("marshalling metadata for %s: %w", p.ID, err))
			continue
		}

		processedAt := p.Metadata.ProcessedAt
		if processedAt.IsZero() {
			processedAt = time.Now().UTC()
		}

		_, err = stmt.ExecContext(ctx,
			p.ID, p.Locator, p.Version, p.SequenceIndex, p.HeadingPath,
			p.Content, p.Title, p.Summary, float32SliceToBytes(p.Embedding),
			p.Metadata.Filename, p.Metadata.VersionString, string(metadataJSON), processedAt)
		if err != nil {
			errs = append(errs, fmt.Errorf("inserting passage %s: %w", p.ID, err))
			continue
		}
		result.Succeeded++
	}

	return result, errors.Join(errs...)
}

// FindByFile returns references to all passages whose metadata matches
// the source filename and version string.
func (s *Store) FindByFile(ctx context.Context, filename, versionStr string) ([]domain.PassageRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, locator, sequence_index
		FROM passages
		WHERE filename = ? AND version_str = ?
		ORDER BY sequence_index
	`, filename, versionStr)
	if err != nil {
		return nil, fmt.Errorf("querying passages: %w", err)
	}
	defer rows.Close()

	var refs []domain.PassageRef
	for rows.Next() {
		var ref domain.PassageRef
		if err := rows.Scan(&ref.ID, &ref.Locator, &ref.SequenceIndex); err != nil {
			return nil, fmt.Errorf("scanning passage ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating passage refs: %w", err)
	}

	return refs, nil
}

// DeleteByIDs removes the identified passages. Records are deleted
// individually so the result reports partial success counts.
func (s *Store) DeleteByIDs(ctx context.Context, ids []string) (driven.OpResult, error) {
	result := driven.OpResult{Attempted: len(ids)}
	if len(ids) == 0 {
		return result, nil
	}

	stmt, err := s.db.PrepareContext(ctx, "DELETE FROM passages WHERE id = ?")
	if err != nil {
		return result, fmt.Errorf("preparing delete: %w", err)
	}
	defer stmt.Close()

	var errs []error
	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("deleting passage %s: %w", id, err))
			continue
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			result.Succeeded++
		}
	}

	return result, errors.Join(errs...)
}

// Search scans the stored passages for the given version and returns
// up to limit of them ordered by cosine similarity to the query
// vector, descending. The scan is brute force; passage counts per
// release stay small enough that an index structure is not worth it.
func (s *Store) Search(ctx context.Context, query []float32, version, limit int) ([]domain.ScoredPassage, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, locator, version, sequence_index, heading_path,
		       content, title, summary, embedding, metadata
		FROM passages
		WHERE version = ?
	`, version)
	if err != nil {
		return nil, fmt.Errorf("querying passages: %w", err)
	}
	defer rows.Close()

	var scored []domain.ScoredPassage
	for rows.Next() {
		var (
			p            domain.Passage
			embedding    []byte
			metadataJSON string
		)
		if err := rows.Scan(&p.ID, &p.Locator, &p.Version, &p.SequenceIndex,
			&p.HeadingPath, &p.Content, &p.Title, &p.Summary,
			&embedding, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scanning passage: %w", err)
		}
		if err := json.Unmarshal([]byte(metadataJSON), &p.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata for %s: %w", p.ID, err)
		}
		p.Embedding = bytesToFloat32Slice(embedding)

		scored = append(scored, domain.ScoredPassage{
			Passage: p,
			Score:   cosineSimilarity(query, p.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating passages: %w", err)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	return scored, nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// cosineSimilarity computes the cosine of the angle between two
// vectors. Mismatched lengths or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
