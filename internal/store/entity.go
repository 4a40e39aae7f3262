package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	aerrors "github.com/Aman-CERP/archivist/internal/errors"
)

// EntityStore persists documents and their entity links in SQLite and
// answers the temporal analytics queries. Upserts are idempotent by doc id.
type EntityStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

const entitySchema = `
CREATE TABLE IF NOT EXISTS documents (
	doc_id TEXT PRIMARY KEY,
	date TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	content_for_service TEXT,
	persons TEXT,
	organizations TEXT,
	concepts TEXT,
	events TEXT,
	locations TEXT,
	total_entities INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS entities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_name TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	doc_id TEXT NOT NULL REFERENCES documents(doc_id) ON DELETE CASCADE,
	date TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_date ON documents(date);
CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(entity_name);
CREATE INDEX IF NOT EXISTS idx_entities_type_date ON entities(entity_type, date);
CREATE INDEX IF NOT EXISTS idx_entities_name_date ON entities(entity_name, date);
CREATE INDEX IF NOT EXISTS idx_entities_doc ON entities(doc_id);
`

// OpenEntityStore opens (or creates) the store at path.
// An empty path opens an in-memory database, used by tests.
func OpenEntityStore(path string) (*EntityStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, aerrors.StorageError("open entity store", err)
	}

	// A single connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, aerrors.StorageError("set pragma", err)
		}
	}

	if _, err := db.Exec(entitySchema); err != nil {
		_ = db.Close()
		return nil, aerrors.StorageError("initialize entity schema", err)
	}

	return &EntityStore{db: db, path: path}, nil
}

// Close releases the database.
func (s *EntityStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *EntityStore) checkOpen() error {
	if s.closed {
		return aerrors.StorageError("entity store is closed", nil)
	}
	return nil
}

// UpsertDocument stores d and replaces its entity links.
func (s *EntityStore) UpsertDocument(ctx context.Context, d *Document) error {
	_, err := s.UpsertDocuments(ctx, []*Document{d})
	return err
}

// UpsertDocuments stores docs in one transaction and returns the number of
// entity links written. Re-upserting a document replaces its previous links.
func (s *EntityStore) UpsertDocuments(ctx context.Context, docs []*Document) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, aerrors.StorageError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	delLinks, err := tx.PrepareContext(ctx, `DELETE FROM entities WHERE doc_id = ?`)
	if err != nil {
		return 0, aerrors.StorageError("prepare link delete", err)
	}
	defer delLinks.Close()

	putDoc, err := tx.PrepareContext(ctx, `
		INSERT INTO documents
			(doc_id, date, title, content, content_for_service,
			 persons, organizations, concepts, events, locations, total_entities)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			date = excluded.date,
			title = excluded.title,
			content = excluded.content,
			content_for_service = excluded.content_for_service,
			persons = excluded.persons,
			organizations = excluded.organizations,
			concepts = excluded.concepts,
			events = excluded.events,
			locations = excluded.locations,
			total_entities = excluded.total_entities`)
	if err != nil {
		return 0, aerrors.StorageError("prepare document upsert", err)
	}
	defer putDoc.Close()

	putLink, err := tx.PrepareContext(ctx,
		`INSERT INTO entities (entity_name, entity_type, doc_id, date) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, aerrors.StorageError("prepare link insert", err)
	}
	defer putLink.Close()

	links := 0
	for _, d := range docs {
		total := d.TotalEntities
		if total == 0 {
			total = d.EntityCount()
		}
		if _, err := delLinks.ExecContext(ctx, d.ID); err != nil {
			return 0, aerrors.StorageError("delete links for "+d.ID, err)
		}
		if _, err := putDoc.ExecContext(ctx,
			d.ID, d.Date, d.Title, d.Content, d.ServiceContent,
			JoinEntities(d.Persons), JoinEntities(d.Organizations), JoinEntities(d.Concepts),
			JoinEntities(d.Events), JoinEntities(d.Locations), total,
		); err != nil {
			return 0, aerrors.StorageError("upsert document "+d.ID, err)
		}
		for _, l := range d.Links() {
			if _, err := putLink.ExecContext(ctx, l.Name, string(l.Type), l.DocID, l.Date); err != nil {
				return 0, aerrors.StorageError("insert link for "+d.ID, err)
			}
			links++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, aerrors.StorageError("commit documents", err)
	}

	slog.Debug("entity_store_upserted", slog.Int("docs", len(docs)), slog.Int("links", links))
	return links, nil
}

// DeleteDocument removes a document and its links.
func (s *EntityStore) DeleteDocument(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE doc_id = ?`, docID); err != nil {
		return aerrors.StorageError("delete document "+docID, err)
	}
	return nil
}

const documentColumns = `doc_id, date, title, content, content_for_service,
	persons, organizations, concepts, events, locations, total_entities`

// GetDocuments returns the stored documents for ids, in the order given.
// Unknown ids are skipped.
func (s *EntityStore) GetDocuments(ctx context.Context, ids []string) ([]*Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE doc_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, aerrors.StorageError("query documents", err)
	}
	defer rows.Close()

	byID := make(map[string]*Document, len(ids))
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		byID[d.ID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, aerrors.StorageError("iterate documents", err)
	}

	out := make([]*Document, 0, len(byID))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// AllDocuments returns every document ordered by date then id, the order
// the lexical index is built in.
func (s *EntityStore) AllDocuments(ctx context.Context) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY date, doc_id`)
	if err != nil {
		return nil, aerrors.StorageError("query documents", err)
	}
	defer rows.Close()

	var out []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, aerrors.StorageError("iterate documents", err)
	}
	return out, nil
}

// DocumentIDs returns every stored document id.
func (s *EntityStore) DocumentIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT doc_id FROM documents ORDER BY doc_id`)
	if err != nil {
		return nil, aerrors.StorageError("query document ids", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, aerrors.StorageError("scan document id", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, aerrors.StorageError("iterate document ids", err)
	}
	return out, nil
}

// Stats returns store totals.
func (s *EntityStore) Stats(ctx context.Context) (StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return StoreStats{}, err
	}

	var (
		st          StoreStats
		first, last sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM documents),
			(SELECT COUNT(*) FROM entities),
			(SELECT COUNT(*) FROM (SELECT DISTINCT entity_name FROM entities)),
			(SELECT COUNT(*) FROM (SELECT DISTINCT date FROM documents)),
			(SELECT MIN(date) FROM documents),
			(SELECT MAX(date) FROM documents)`).
		Scan(&st.Documents, &st.EntityLinks, &st.UniqueEntities, &st.UniqueDates, &first, &last)
	if err != nil {
		return StoreStats{}, aerrors.StorageError("query stats", err)
	}
	st.FirstDate = first.String
	st.LastDate = last.String
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(r rowScanner) (*Document, error) {
	var (
		d                                               Document
		svc, persons, orgs, concepts, events, locations sql.NullString
	)
	if err := r.Scan(&d.ID, &d.Date, &d.Title, &d.Content, &svc,
		&persons, &orgs, &concepts, &events, &locations, &d.TotalEntities); err != nil {
		return nil, aerrors.StorageError("scan document", err)
	}
	d.ServiceContent = svc.String
	d.Persons = SplitEntities(persons.String)
	d.Organizations = SplitEntities(orgs.String)
	d.Concepts = SplitEntities(concepts.String)
	d.Events = SplitEntities(events.String)
	d.Locations = SplitEntities(locations.String)
	return &d, nil
}
