package toolstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/haasonsaas/toolmind/pkg/models"
)

// PoolConfig configures the connection pool backing a SQLStore.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPoolConfig returns conservative pool defaults suitable for a single
// toolmind server process.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// SQLStore is a database/sql-backed Store. It has been exercised against
// Postgres (driver "postgres", via lib/pq) and against modernc.org/sqlite's
// pure-Go "sqlite" driver for local/dev deployments; both use the same
// column layout and differ only in placeholder syntax, handled by dialect.
type SQLStore struct {
	db      *sql.DB
	dialect dialect

	// searchMu guards weights/synonyms, which SetSearchWeights/SetSynonyms
	// may update at runtime (config hot-reload) independent of the
	// connection pool.
	searchMu sync.RWMutex
	weights  Weights
	synonyms map[string][]string

	threshold    float64
	bugThreshold int
}

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

func (d dialect) placeholder(n int) string {
	if d == dialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// SQLStoreOption configures a SQLStore.
type SQLStoreOption func(*SQLStore)

// WithSQLSearchWeights overrides the default scoring weights.
func WithSQLSearchWeights(w Weights) SQLStoreOption {
	return func(s *SQLStore) { s.weights = w }
}

// WithSQLSynonyms overrides the default synonym table.
func WithSQLSynonyms(syn map[string][]string) SQLStoreOption {
	return func(s *SQLStore) { s.synonyms = syn }
}

// WithSQLDefaultThreshold overrides the default search score cutoff.
func WithSQLDefaultThreshold(threshold float64) SQLStoreOption {
	return func(s *SQLStore) { s.threshold = threshold }
}

// WithSQLBugThreshold overrides the bug_count at which is_bugged flips true.
func WithSQLBugThreshold(n int) SQLStoreOption {
	return func(s *SQLStore) { s.bugThreshold = n }
}

// NewPostgresStore opens a Postgres-backed Store using the given DSN.
func NewPostgresStore(dsn string, cfg *PoolConfig, opts ...SQLStoreOption) (*SQLStore, error) {
	return newSQLStore("postgres", dsn, dialectPostgres, cfg, opts)
}

// NewSQLiteStore opens a modernc.org/sqlite-backed Store using the given
// file path or DSN (":memory:" for an ephemeral database).
func NewSQLiteStore(dsn string, cfg *PoolConfig, opts ...SQLStoreOption) (*SQLStore, error) {
	return newSQLStore("sqlite", dsn, dialectSQLite, cfg, opts)
}

func newSQLStore(driver, dsn string, d dialect, cfg *PoolConfig, opts []SQLStoreOption) (*SQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("toolstore: dsn is required")
	}
	if cfg == nil {
		cfg = DefaultPoolConfig()
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("toolstore: open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("toolstore: ping database: %w", err)
	}

	s := &SQLStore{
		db:           db,
		dialect:      d,
		weights:      DefaultWeights(),
		synonyms:     DefaultSynonyms(),
		threshold:    0.3,
		bugThreshold: models.DefaultBugThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) tagsOut(tags []string) any {
	if s.dialect == dialectPostgres {
		return pq.Array(tags)
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func (s *SQLStore) tagsIn(dest *[]string) any {
	if s.dialect == dialectPostgres {
		return pq.Array(dest)
	}
	return &sqliteStringSlice{dest: dest}
}

// sqliteStringSlice adapts a JSON-encoded TEXT column to a []string via
// sql.Scanner, since SQLite has no native array type.
type sqliteStringSlice struct {
	dest *[]string
}

func (s *sqliteStringSlice) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s.dest = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("toolstore: unsupported tags column type %T", src)
	}
	if len(raw) == 0 {
		*s.dest = nil
		return nil
	}
	return json.Unmarshal(raw, s.dest)
}

func (s *SQLStore) scanTool(row interface {
	Scan(dest ...any) error
}) (*models.Tool, error) {
	var tool models.Tool
	var tags []string
	var paramsBytes, bugLogBytes []byte
	var lastExecuted, lastError sql.NullTime

	if err := row.Scan(
		&tool.ID,
		&tool.Name,
		&tool.Description,
		&tool.Category,
		s.tagsIn(&tags),
		&paramsBytes,
		&tool.Code,
		&tool.IsActive,
		&tool.IsBugged,
		&tool.BugCount,
		&bugLogBytes,
		&tool.ExecutionCount,
		&lastExecuted,
		&lastError,
		&tool.CreatedAt,
		&tool.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("toolstore: scan tool: %w", err)
	}
	tool.Tags = tags
	if len(paramsBytes) > 0 {
		if err := json.Unmarshal(paramsBytes, &tool.Parameters); err != nil {
			return nil, fmt.Errorf("toolstore: unmarshal parameters: %w", err)
		}
	}
	if len(bugLogBytes) > 0 {
		if err := json.Unmarshal(bugLogBytes, &tool.BugLog); err != nil {
			return nil, fmt.Errorf("toolstore: unmarshal bug log: %w", err)
		}
	}
	if lastExecuted.Valid {
		tool.LastExecutedAt = &lastExecuted.Time
	}
	if lastError.Valid {
		tool.LastErrorAt = &lastError.Time
	}
	return &tool, nil
}

const toolColumns = `id, name, description, category, tags, parameters, code, is_active, is_bugged, bug_count, bug_log, execution_count, last_executed_at, last_error_at, created_at, updated_at`

func (s *SQLStore) List(ctx context.Context, opts ListOptions) ([]*models.Tool, error) {
	var where []string
	var args []any
	if opts.ActiveOnly {
		where = append(where, "is_active = "+s.dialect.placeholder(len(args)+1))
		args = append(args, true)
	}
	if opts.ExcludeBugged {
		where = append(where, "is_bugged = "+s.dialect.placeholder(len(args)+1))
		args = append(args, false)
	}
	if opts.Category != "" {
		where = append(where, "category = "+s.dialect.placeholder(len(args)+1))
		args = append(args, opts.Category)
	}

	query := "SELECT " + toolColumns + " FROM tools"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC, name ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("toolstore: list tools: %w", err)
	}
	defer rows.Close()

	tools := []*models.Tool{}
	for rows.Next() {
		tool, err := s.scanTool(rows)
		if err != nil {
			return nil, err
		}
		tools = append(tools, tool)
	}
	return tools, rows.Err()
}

func (s *SQLStore) GetByID(ctx context.Context, id string) (*models.Tool, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+toolColumns+" FROM tools WHERE id = "+s.dialect.placeholder(1), id)
	return s.scanTool(row)
}

func (s *SQLStore) GetByName(ctx context.Context, name string) (*models.Tool, error) {
	if name == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+toolColumns+" FROM tools WHERE name = "+s.dialect.placeholder(1), name)
	return s.scanTool(row)
}

func (s *SQLStore) Create(ctx context.Context, spec models.ToolSpec) (*models.Tool, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}
	paramsBytes, err := json.Marshal(spec.Parameters)
	if err != nil {
		return nil, fmt.Errorf("toolstore: marshal parameters: %w", err)
	}
	isActive := true
	if spec.IsActive != nil {
		isActive = *spec.IsActive
	}
	now := time.Now()
	tool := &models.Tool{
		ID:          uuid.NewString(),
		Name:        spec.Name,
		Description: spec.Description,
		Category:    spec.Category,
		Tags:        spec.Tags,
		Parameters:  spec.Parameters,
		Code:        spec.Code,
		IsActive:    isActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO tools (id, name, description, category, tags, parameters, code, is_active, is_bugged, bug_count, bug_log, execution_count, created_at, updated_at)
		 VALUES (%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s)`,
			s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3), s.dialect.placeholder(4),
			s.dialect.placeholder(5), s.dialect.placeholder(6), s.dialect.placeholder(7), s.dialect.placeholder(8),
			s.dialect.placeholder(9), s.dialect.placeholder(10), s.dialect.placeholder(11), s.dialect.placeholder(12),
			s.dialect.placeholder(13), s.dialect.placeholder(14)),
		tool.ID, tool.Name, tool.Description, tool.Category, s.tagsOut(tool.Tags), paramsBytes, tool.Code,
		tool.IsActive, false, 0, []byte("[]"), 0, tool.CreatedAt, tool.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrNameConflict
		}
		return nil, fmt.Errorf("toolstore: create tool: %w", err)
	}
	return tool, nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "23505")
}

func (s *SQLStore) Update(ctx context.Context, id string, patch models.ToolPatch) (*models.Tool, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		existing.Name = *patch.Name
	}
	if patch.Description != nil {
		existing.Description = *patch.Description
	}
	if patch.Category != nil {
		existing.Category = *patch.Category
	}
	if patch.Tags != nil {
		existing.Tags = *patch.Tags
	}
	if patch.Parameters != nil {
		existing.Parameters = *patch.Parameters
	}
	if patch.Code != nil {
		existing.Code = *patch.Code
	}
	if patch.IsActive != nil {
		existing.IsActive = *patch.IsActive
	}
	existing.UpdatedAt = time.Now()

	paramsBytes, err := json.Marshal(existing.Parameters)
	if err != nil {
		return nil, fmt.Errorf("toolstore: marshal parameters: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE tools SET name=%s, description=%s, category=%s, tags=%s, parameters=%s, code=%s, is_active=%s, updated_at=%s WHERE id=%s`,
			s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3), s.dialect.placeholder(4),
			s.dialect.placeholder(5), s.dialect.placeholder(6), s.dialect.placeholder(7), s.dialect.placeholder(8),
			s.dialect.placeholder(9)),
		existing.Name, existing.Description, existing.Category, s.tagsOut(existing.Tags), paramsBytes, existing.Code,
		existing.IsActive, existing.UpdatedAt, existing.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrNameConflict
		}
		return nil, fmt.Errorf("toolstore: update tool: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, ErrNotFound
	}
	return existing, nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM tools WHERE id = "+s.dialect.placeholder(1), id)
	if err != nil {
		return fmt.Errorf("toolstore: delete tool: %w", err)
	}
	return nil
}

func (s *SQLStore) ReportBug(ctx context.Context, id string, errorKind, message, stack string) (*models.Tool, error) {
	tool, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	entry := models.BugEntry{Timestamp: time.Now(), ErrorKind: errorKind, Message: message, Stack: stack}
	tool.BugLog = append(tool.BugLog, entry)
	if len(tool.BugLog) > models.BugLogCap {
		tool.BugLog = tool.BugLog[len(tool.BugLog)-models.BugLogCap:]
	}
	tool.BugCount++
	now := time.Now()
	tool.LastErrorAt = &now
	if tool.BugCount >= s.bugThreshold {
		tool.IsBugged = true
	}
	tool.UpdatedAt = now

	bugLogBytes, err := json.Marshal(tool.BugLog)
	if err != nil {
		return nil, fmt.Errorf("toolstore: marshal bug log: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE tools SET bug_count=%s, bug_log=%s, is_bugged=%s, last_error_at=%s, updated_at=%s WHERE id=%s`,
			s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3), s.dialect.placeholder(4),
			s.dialect.placeholder(5), s.dialect.placeholder(6)),
		tool.BugCount, bugLogBytes, tool.IsBugged, tool.LastErrorAt, tool.UpdatedAt, tool.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("toolstore: report bug: %w", err)
	}
	return tool, nil
}

func (s *SQLStore) ClearBugs(ctx context.Context, id string) (*models.Tool, error) {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE tools SET bug_count=0, bug_log=%s, is_bugged=false, updated_at=%s WHERE id=%s`,
			s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3)),
		[]byte("[]"), now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("toolstore: clear bugs: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *SQLStore) Deactivate(ctx context.Context, id string) (*models.Tool, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE tools SET is_active=false, updated_at=%s WHERE id=%s`, s.dialect.placeholder(1), s.dialect.placeholder(2)),
		now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("toolstore: deactivate tool: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *SQLStore) CompactBugLog(ctx context.Context, id string, olderThan time.Time) (*models.Tool, error) {
	tool, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tool.IsBugged || len(tool.BugLog) == 0 {
		return tool, nil
	}
	kept := make([]models.BugEntry, 0, len(tool.BugLog))
	for _, e := range tool.BugLog {
		if e.Timestamp.After(olderThan) {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(tool.BugLog) {
		return tool, nil
	}
	now := time.Now()
	bugLogBytes, err := json.Marshal(kept)
	if err != nil {
		return nil, fmt.Errorf("toolstore: marshal bug log: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE tools SET bug_log=%s, updated_at=%s WHERE id=%s`,
			s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3)),
		bugLogBytes, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("toolstore: compact bug log: %w", err)
	}
	tool.BugLog = kept
	tool.UpdatedAt = now
	return tool, nil
}

func (s *SQLStore) RecordExecution(ctx context.Context, id string) error {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE tools SET execution_count = execution_count + 1, last_executed_at=%s WHERE id=%s`,
			s.dialect.placeholder(1), s.dialect.placeholder(2)),
		now, id,
	)
	if err != nil {
		return fmt.Errorf("toolstore: record execution: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) Search(ctx context.Context, query string, opts SearchOptions) ([]models.SearchHit, error) {
	// The scoring signals combine string-similarity measures (LCS, token
	// Jaccard) that don't map onto portable SQL; candidates are loaded and
	// scored in Go the same way MemStore does, trading a full table scan for
	// identical ranking semantics across backends. Tool catalogs are small
	// (hundreds to low thousands of rows), so this stays well within budget.
	tools, err := s.List(ctx, ListOptions{})
	if err != nil {
		return nil, err
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.Threshold <= 0 {
		opts.Threshold = s.threshold
	}
	s.searchMu.RLock()
	weights, synonyms := s.weights, s.synonyms
	s.searchMu.RUnlock()
	hits := rankCandidates(query, tools, opts, weights, synonyms)
	out := make([]models.SearchHit, len(hits))
	copy(out, hits)
	return out, nil
}

// SetSearchWeights replaces the scoring weights used by future Search
// calls. Used by the config hot-reload watcher to apply a changed
// SEARCH_WEIGHTS without restarting the process.
func (s *SQLStore) SetSearchWeights(w Weights) {
	s.searchMu.Lock()
	s.weights = w
	s.searchMu.Unlock()
}

// SetSynonyms replaces the synonym table used by future Search calls. Used
// by the config hot-reload watcher to apply a changed SYNONYMS table.
func (s *SQLStore) SetSynonyms(syn map[string][]string) {
	s.searchMu.Lock()
	s.synonyms = syn
	s.searchMu.Unlock()
}

var _ Store = (*SQLStore)(nil)
var _ Closer = (*SQLStore)(nil)
