package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/open-assistants-lab/executive-assistant-sub000/internal/observability"
	"github.com/open-assistants-lab/executive-assistant-sub000/internal/tracing"
)

const (
	// MaxBatchGet caps how many full records one BatchFetch call returns.
	// Requests above the cap are truncated to the first MaxBatchGet ids.
	MaxBatchGet = 20

	relationalFile = "memories.db"
	vectorDir      = "vectors"
)

// Store is the per-user durable memory store. It owns one SQLite file
// (memories table plus FTS5 index) and one vector collection, both under
// a single per-user directory.
//
// Every operation is a synchronous, blocking call. The store performs no
// background work and no internal write coordination beyond SQLite's own
// single-writer semantics; concurrent writes for the same user must be
// serialized by the caller.
type Store struct {
	db      *sql.DB
	vectors *VectorIndex
	logger  zerolog.Logger
	userID  string
	dir     string
}

// Config holds per-user store configuration.
type Config struct {
	// Dir is the per-user data directory. Created on first use.
	Dir    string
	UserID string
	Logger zerolog.Logger
	// Embedder is optional; when nil, semantic search is disabled and
	// the store degrades to keyword-only retrieval.
	Embedder EmbeddingProvider
}

// NewStore opens or creates the store for one user.
func NewStore(cfg Config) (*Store, error) {
	observability.EnsureRegistered()

	if cfg.Dir == "" {
		return nil, errors.New("store directory is required")
	}
	if cfg.UserID == "" {
		return nil, errors.New("user id is required")
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, relationalFile)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better read concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{
		db:     db,
		logger: cfg.Logger.With().Str("user_id", cfg.UserID).Logger(),
		userID: cfg.UserID,
		dir:    cfg.Dir,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "no such module: fts5") {
			return nil, fmt.Errorf("sqlite driver built without FTS5, rebuild with -tags sqlite_fts5: %w", err)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if cfg.Embedder != nil {
		vectors, err := NewVectorIndex(filepath.Join(cfg.Dir, vectorDir), cfg.UserID, cfg.Embedder, s.logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to open vector index: %w", err)
		}
		s.vectors = vectors
	}

	s.logger.Info().Str("dir", cfg.Dir).Msg("Memory store opened")
	return s, nil
}

// initSchema creates the memories table and its FTS5 companion.
//
// There are no SQL triggers: the FTS index is maintained by the same
// transactions that write the main table, so the two cannot diverge
// through any code path.
func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS memories (
			id            TEXT PRIMARY KEY,
			title         TEXT NOT NULL,
			subtitle      TEXT NOT NULL DEFAULT '',
			narrative     TEXT NOT NULL DEFAULT '',
			type          TEXT NOT NULL,
			confidence    REAL NOT NULL DEFAULT 0.7,
			source        TEXT NOT NULL DEFAULT 'learned',
			facts         TEXT NOT NULL DEFAULT '[]',
			concepts      TEXT NOT NULL DEFAULT '[]',
			entities      TEXT NOT NULL DEFAULT '[]',
			project       TEXT NOT NULL DEFAULT '',
			occurred_at   INTEGER,
			created_at    INTEGER NOT NULL,
			last_accessed INTEGER,
			access_count  INTEGER NOT NULL DEFAULT 0,
			archived      INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(type);
		CREATE INDEX IF NOT EXISTS idx_memories_project ON memories(project);
		CREATE INDEX IF NOT EXISTS idx_memories_archived ON memories(archived);
		CREATE INDEX IF NOT EXISTS idx_memories_event_time ON memories(COALESCE(occurred_at, created_at));

		CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
			id UNINDEXED,
			title,
			subtitle,
			narrative,
			facts,
			concepts,
			tokenize='porter unicode61'
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Save validates the input, assigns an id and created_at, and writes the
// record to the relational table, the text index, and the vector index.
func (s *Store) Save(ctx context.Context, data NewRecordData) (*Record, error) {
	ctx, span := tracing.StartSpan(ctx, "assistant.memory", "memory.save",
		attribute.String("memory.type", string(data.Type)))
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, s.logger)
	start := time.Now()
	defer func() { observability.RecordMemoryWrite(time.Since(start)) }()

	if err := data.Validate(); err != nil {
		return nil, err
	}

	id, err := newRecordID()
	if err != nil {
		return nil, err
	}

	confidence := DefaultConfidence
	if data.Confidence != nil {
		confidence = *data.Confidence
	}
	source := data.Source
	if source == "" {
		source = SourceLearned
	}

	rec := &Record{
		ID:         id,
		Title:      data.Title,
		Subtitle:   data.Subtitle,
		Narrative:  data.Narrative,
		Type:       data.Type,
		Confidence: confidence,
		Source:     source,
		Facts:      data.Facts,
		Concepts:   data.Concepts,
		Entities:   data.Entities,
		Project:    data.Project,
		OccurredAt: data.OccurredAt,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var occurredAt *int64
	if rec.OccurredAt != nil {
		ts := rec.OccurredAt.Unix()
		occurredAt = &ts
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memories (id, title, subtitle, narrative, type, confidence, source,
		                      facts, concepts, entities, project, occurred_at, created_at,
		                      last_accessed, access_count, archived)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, 0, 0)`,
		rec.ID, rec.Title, rec.Subtitle, rec.Narrative, string(rec.Type), rec.Confidence,
		string(rec.Source), marshalList(rec.Facts), marshalList(rec.Concepts),
		marshalList(rec.Entities), rec.Project, occurredAt, rec.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to insert record: %w", err)
	}

	if err := insertFTS(ctx, tx, rec); err != nil {
		return nil, fmt.Errorf("failed to index record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	// A failed vector write degrades semantic recall for this record but
	// must not lose the record itself.
	if s.vectors != nil {
		if err := s.vectors.Upsert(ctx, rec.ID, rec.embeddingText(), vectorMetadata(rec)); err != nil {
			logger.Warn().Err(err).Str("id", rec.ID).Msg("Failed to store embedding")
		}
	}

	observability.RecordMemoryAudit(ctx, "memory_saved", s.userID, rec.ID, "success")
	logger.Debug().Str("id", rec.ID).Str("type", string(rec.Type)).Msg("Record saved")
	return rec, nil
}

// Fetch returns one record and, as a read-through side effect, bumps its
// access count and last-accessed time. Archived and absent ids both
// return ErrNotFound.
func (s *Store) Fetch(ctx context.Context, id string) (*Record, error) {
	rec, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	_, err = s.db.ExecContext(ctx,
		`UPDATE memories SET access_count = access_count + 1, last_accessed = ? WHERE id = ?`,
		now.Unix(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update access tracking: %w", err)
	}

	rec.AccessCount++
	rec.LastAccessed = &now
	return rec, nil
}

// Patch applies a field-level partial update. An empty patch returns the
// current record unchanged.
func (s *Store) Patch(ctx context.Context, id string, data UpdateRecordData) (*Record, error) {
	start := time.Now()
	defer func() { observability.RecordMemoryWrite(time.Since(start)) }()

	rec, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if data.empty() {
		return rec, nil
	}
	if err := data.validate(); err != nil {
		return nil, err
	}

	if data.Title != nil {
		rec.Title = *data.Title
	}
	if data.Subtitle != nil {
		rec.Subtitle = *data.Subtitle
	}
	if data.Narrative != nil {
		rec.Narrative = *data.Narrative
	}
	if data.Type != nil {
		rec.Type = *data.Type
	}
	if data.Confidence != nil {
		rec.Confidence = *data.Confidence
	}
	if data.Source != nil {
		rec.Source = *data.Source
	}
	if data.Facts != nil {
		rec.Facts = data.Facts
	}
	if data.Concepts != nil {
		rec.Concepts = data.Concepts
	}
	if data.Entities != nil {
		rec.Entities = data.Entities
	}
	if data.Project != nil {
		rec.Project = *data.Project
	}
	if data.OccurredAt != nil {
		rec.OccurredAt = data.OccurredAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var occurredAt *int64
	if rec.OccurredAt != nil {
		ts := rec.OccurredAt.Unix()
		occurredAt = &ts
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE memories SET title = ?, subtitle = ?, narrative = ?, type = ?,
		       confidence = ?, source = ?, facts = ?, concepts = ?, entities = ?,
		       project = ?, occurred_at = ?
		WHERE id = ?`,
		rec.Title, rec.Subtitle, rec.Narrative, string(rec.Type), rec.Confidence,
		string(rec.Source), marshalList(rec.Facts), marshalList(rec.Concepts),
		marshalList(rec.Entities), rec.Project, occurredAt, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	if err := deleteFTS(ctx, tx, id); err != nil {
		return nil, fmt.Errorf("failed to reindex record: %w", err)
	}
	if err := insertFTS(ctx, tx, rec); err != nil {
		return nil, fmt.Errorf("failed to reindex record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if s.vectors != nil {
		if err := s.vectors.Upsert(ctx, rec.ID, rec.embeddingText(), vectorMetadata(rec)); err != nil {
			s.logger.Warn().Err(err).Str("id", rec.ID).Msg("Failed to update embedding")
		}
	}

	return rec, nil
}

// Archive soft-deletes a record in both indexes. It is idempotent and
// reports whether a row with that id exists at all; the row itself is
// never physically removed.
func (s *Store) Archive(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	defer func() { observability.RecordMemoryWrite(time.Since(start)) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM memories WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE memories SET archived = 1 WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("failed to archive record: %w", err)
	}
	if err := deleteFTS(ctx, tx, id); err != nil {
		return false, fmt.Errorf("failed to deindex record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}

	if s.vectors != nil {
		if err := s.vectors.MarkArchived(ctx, id); err != nil {
			s.logger.Warn().Err(err).Str("id", id).Msg("Failed to archive embedding")
		}
	}

	observability.RecordMemoryAudit(ctx, "memory_archived", s.userID, id, "success")
	s.logger.Debug().Str("id", id).Msg("Record archived")
	return true, nil
}

// BatchFetch returns full records for the given ids, preserving input
// order. Missing and archived ids are silently omitted. Requests above
// MaxBatchGet are truncated to the first MaxBatchGet ids. Access
// tracking is not touched; only Fetch mutates it.
func (s *Store) BatchFetch(ctx context.Context, ids []string) ([]Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxBatchGet {
		ids = ids[:MaxBatchGet]
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM memories WHERE id IN (%s) AND archived = 0`, recordColumns, placeholders),
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]Record, len(ids))
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		byID[rec.ID] = *rec
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(byID))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Stats reports aggregate counts for the store.
type Stats struct {
	TotalRecords    int            `json:"total_records"`
	ArchivedRecords int            `json:"archived_records"`
	ByType          map[string]int `json:"by_type"`
	VectorEntries   int            `json:"vector_entries"`
}

// Stats returns aggregate counts over the store.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{ByType: make(map[string]int)}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&st.TotalRecords); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE archived = 1`).Scan(&st.ArchivedRecords); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM memories WHERE archived = 0 GROUP BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		st.ByType[typ] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if s.vectors != nil {
		st.VectorEntries = s.vectors.Count()
	}

	observability.SetMemoryRecords(st.TotalRecords - st.ArchivedRecords)
	return st, nil
}

// UserID returns the owner of this store.
func (s *Store) UserID() string {
	return s.userID
}

// Close releases the database handle and the vector index.
func (s *Store) Close() error {
	s.logger.Debug().Msg("Closing memory store")
	if s.vectors != nil {
		s.vectors.Close()
	}
	return s.db.Close()
}

// recordColumns is the column list matched by scanRecord.
const recordColumns = `id, title, subtitle, narrative, type, confidence, source,
	facts, concepts, entities, project, occurred_at, created_at, last_accessed,
	access_count, archived`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var rec Record
	var typ, source string
	var facts, concepts, entities string
	var occurredAt, lastAccessed sql.NullInt64
	var createdAt int64
	var archived int

	err := row.Scan(&rec.ID, &rec.Title, &rec.Subtitle, &rec.Narrative, &typ,
		&rec.Confidence, &source, &facts, &concepts, &entities, &rec.Project,
		&occurredAt, &createdAt, &lastAccessed, &rec.AccessCount, &archived)
	if err != nil {
		return nil, err
	}

	rec.Type = MemoryType(typ)
	rec.Source = MemorySource(source)
	rec.Facts = unmarshalList(facts)
	rec.Concepts = unmarshalList(concepts)
	rec.Entities = unmarshalList(entities)
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	if occurredAt.Valid {
		t := time.Unix(occurredAt.Int64, 0).UTC()
		rec.OccurredAt = &t
	}
	if lastAccessed.Valid {
		t := time.Unix(lastAccessed.Int64, 0).UTC()
		rec.LastAccessed = &t
	}
	rec.Archived = archived != 0
	return &rec, nil
}

// getRecord loads a non-archived record without touching access tracking.
func (s *Store) getRecord(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT %s FROM memories WHERE id = ? AND archived = 0`, recordColumns), id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func insertFTS(ctx context.Context, tx *sql.Tx, rec *Record) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO memories_fts (id, title, subtitle, narrative, facts, concepts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Title, rec.Subtitle, rec.Narrative,
		strings.Join(rec.Facts, "\n"), strings.Join(rec.Concepts, "\n"))
	return err
}

func deleteFTS(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM memories_fts WHERE id = ?`, id)
	return err
}

func marshalList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func unmarshalList(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}

func vectorMetadata(rec *Record) map[string]string {
	return map[string]string{
		"type":       string(rec.Type),
		"project":    rec.Project,
		"confidence": fmt.Sprintf("%.2f", rec.Confidence),
	}
}
