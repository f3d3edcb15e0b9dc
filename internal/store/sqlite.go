package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// columnNameRegex restricts schema properties to names that are safe to
// splice into DDL.
var columnNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// SQLiteEngine implements Engine on an in-memory SQLite FTS5 table.
//
// Searchable properties are stored pre-tokenized with TokenizeCode so both
// engines agree on camelCase and snake_case handling. Filterable properties
// are UNINDEXED columns compared with IN. The full record travels in a JSON
// payload column.
type SQLiteEngine struct {
	mu        sync.RWMutex
	db        *sql.DB
	schema    Schema
	stopWords map[string]struct{}
	closed    bool
}

// NewSQLiteEngine creates an engine. The database is opened by Create.
func NewSQLiteEngine() *SQLiteEngine {
	return &SQLiteEngine{stopWords: BuildStopWordMap(DefaultStopWords)}
}

// Create opens the in-memory database and creates the FTS5 table.
func (s *SQLiteEngine) Create(ctx context.Context, schema Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.db != nil {
		return fmt.Errorf("schema already created")
	}

	ddl, err := recordsTableDDL(schema)
	if err != nil {
		return err
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.db = db
	s.schema = schema
	return nil
}

func recordsTableDDL(schema Schema) (string, error) {
	columns := []string{"id UNINDEXED"}
	for _, name := range schema.Filterable {
		if !columnNameRegex.MatchString(name) {
			return "", fmt.Errorf("invalid property name %q", name)
		}
		columns = append(columns, name+" UNINDEXED")
	}
	for _, name := range schema.Searchable {
		if !columnNameRegex.MatchString(name) {
			return "", fmt.Errorf("invalid property name %q", name)
		}
		columns = append(columns, name)
	}
	columns = append(columns, "payload UNINDEXED", "tokenize='unicode61'")

	return fmt.Sprintf("CREATE VIRTUAL TABLE records USING fts5(%s)", strings.Join(columns, ", ")), nil
}

// InsertMany adds records in one transaction.
func (s *SQLiteEngine) InsertMany(ctx context.Context, records []Record) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []string{}, nil
	}

	columns := []string{"id"}
	columns = append(columns, s.schema.Filterable...)
	columns = append(columns, s.schema.Searchable...)
	columns = append(columns, "payload")
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO records(%s) VALUES (%s)", strings.Join(columns, ", "), placeholders))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, len(records))
	for i, r := range records {
		payload, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("failed to encode record %s: %w", r.URI, err)
		}

		ids[i] = uuid.New().String()
		args := []any{ids[i]}
		for _, name := range s.schema.Filterable {
			args = append(args, r.Field(name))
		}
		for _, name := range s.schema.Searchable {
			tokens := FilterStopWords(TokenizeCode(r.Field(name)), s.stopWords)
			args = append(args, strings.Join(tokens, " "))
		}
		args = append(args, string(payload))

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return nil, fmt.Errorf("failed to index record %s: %w", r.URI, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return ids, nil
}

// RemoveMany deletes records by id and returns how many existed.
func (s *SQLiteEngine) RemoveMany(ctx context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	inClause, args := inPlaceholders(ids)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	if err := tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM records WHERE id IN (%s)", inClause), args...).Scan(&existing); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM records WHERE id IN (%s)", inClause), args...); err != nil {
		return 0, fmt.Errorf("failed to delete records: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return existing, nil
}

// Count returns the number of records.
func (s *SQLiteEngine) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.usable(); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// Search matches the pre-tokenized query against the requested columns.
// Tokens are OR-ed and ranked by bm25(); a blank term lists records in
// insertion order with a zero score.
func (s *SQLiteEngine) Search(ctx context.Context, req SearchRequest) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.usable(); err != nil {
		return nil, err
	}

	var (
		clauses   []string
		args      []any
		scoreExpr = "0.0"
	)

	if strings.TrimSpace(req.Term) != "" {
		tokens := uniqueTokens(FilterStopWords(TokenizeCode(req.Term), s.stopWords))
		if len(tokens) == 0 {
			return []Hit{}, nil
		}

		props := req.Properties
		if len(props) == 0 {
			props = s.schema.Searchable
		}
		for _, p := range props {
			if !s.schema.IsSearchable(p) {
				return nil, fmt.Errorf("property %q is not searchable", p)
			}
		}

		quoted := make([]string, len(tokens))
		for i, t := range tokens {
			quoted[i] = `"` + t + `"`
		}
		clauses = append(clauses, "records MATCH ?")
		args = append(args, fmt.Sprintf("{%s} : (%s)", strings.Join(props, " "), strings.Join(quoted, " OR ")))
		scoreExpr = "bm25(records)"
	}

	fields := make([]string, 0, len(req.Where))
	for field := range req.Where {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		values := req.Where[field]
		if len(values) == 0 {
			continue
		}
		if !s.schema.IsFilterable(field) {
			return nil, fmt.Errorf("property %q is not filterable", field)
		}
		inClause, inArgs := inPlaceholders(values)
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", field, inClause))
		args = append(args, inArgs...)
	}

	q := "SELECT id, payload, " + scoreExpr + " AS score FROM records"
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	// bm25() is lower-is-better
	q += " ORDER BY score, rowid LIMIT ?"
	args = append(args, req.EffectiveLimit())

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		// FTS5 rejects some match expressions, treat as no results
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []Hit{}, nil
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	hits := make([]Hit, 0)
	for rows.Next() {
		var (
			id      string
			payload string
			score   float64
		)
		if err := rows.Scan(&id, &payload, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}

		var r Record
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
		}
		if score != 0 {
			score = -score
		}
		hits = append(hits, Hit{ID: id, Score: score, Record: r})
	}

	return hits, rows.Err()
}

// Close closes the database.
func (s *SQLiteEngine) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteEngine) usable() error {
	if s.closed {
		return ErrClosed
	}
	if s.db == nil {
		return ErrNotCreated
	}
	return nil
}

func inPlaceholders(values []string) (string, []any) {
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		args[i] = v
	}
	return strings.Join(placeholders, ","), args
}

var _ Engine = (*SQLiteEngine)(nil)
