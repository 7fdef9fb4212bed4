package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"stash/internal/core"
)

// SQLite is the SQLite-backed Store.
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (creating if necessary) the database under dataDir.
func NewSQLite(dataDir string) (*SQLite, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "stash.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLite{db: db, path: dbPath}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return s, nil
}

// initialize creates the necessary tables.
func (s *SQLite) initialize() error {
	itemsTable := `
	CREATE TABLE IF NOT EXISTS items (
		owner_id TEXT NOT NULL,
		id TEXT NOT NULL,
		source_url TEXT,
		source_kind TEXT,
		raw_title TEXT,
		raw_body TEXT,
		raw_description TEXT,
		category TEXT,
		status TEXT,
		processing_state TEXT,
		title TEXT,
		summary TEXT,
		key_points TEXT,
		question TEXT,
		summarized_at DATETIME,
		digest_fallback INTEGER,
		priority_score REAL,
		created_at DATETIME,
		last_reviewed_at DATETIME,
		times_reviewed INTEGER,
		is_grouped INTEGER,
		source_item_ids TEXT,
		source_urls TEXT,
		individual_summaries TEXT,
		PRIMARY KEY (owner_id, id)
	);`

	groupsTable := `
	CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		owner_id TEXT,
		category TEXT,
		member_ids TEXT,
		created_at DATETIME,
		done INTEGER
	);`

	dedupTable := `
	CREATE TABLE IF NOT EXISTS dedup_records (
		owner_id TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		source_feed_id TEXT,
		url TEXT,
		resulting_item_id TEXT,
		first_seen_at DATETIME,
		PRIMARY KEY (owner_id, fingerprint)
	);`

	synthesisTable := `
	CREATE TABLE IF NOT EXISTS synthesis_cache (
		group_id TEXT PRIMARY KEY,
		title TEXT,
		summary TEXT,
		key_points TEXT,
		question TEXT,
		generated_at DATETIME
	);`

	tables := []string{itemsTable, groupsTable, dedupTable, synthesisTable}
	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Put upserts a content item.
func (s *SQLite) Put(ctx context.Context, item *core.ContentItem) error {
	keyPoints, _ := json.Marshal(item.KeyPoints)
	sourceItemIDs, _ := json.Marshal(item.SourceItemIDs)
	sourceURLs, _ := json.Marshal(item.SourceURLs)
	individualSummaries, _ := json.Marshal(item.IndividualSummaries)

	query := `
	INSERT OR REPLACE INTO items
	(owner_id, id, source_url, source_kind, raw_title, raw_body, raw_description,
	 category, status, processing_state, title, summary, key_points, question,
	 summarized_at, digest_fallback, priority_score, created_at, last_reviewed_at,
	 times_reviewed, is_grouped, source_item_ids, source_urls, individual_summaries)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		item.OwnerID,
		item.ID,
		item.SourceURL,
		string(item.SourceKind),
		item.RawTitle,
		item.RawBody,
		item.RawDescription,
		item.Category,
		string(item.Status),
		string(item.ProcessingState),
		item.Title,
		item.Summary,
		string(keyPoints),
		item.Question,
		item.SummarizedAt,
		boolToInt(item.DigestFallback),
		item.PriorityScore,
		item.CreatedAt,
		item.LastReviewedAt,
		item.TimesReviewed,
		boolToInt(item.IsGrouped),
		string(sourceItemIDs),
		string(sourceURLs),
		string(individualSummaries),
	)

	return err
}

// Get retrieves one item; a missing row is a (nil, nil) miss.
func (s *SQLite) Get(ctx context.Context, owner, id string) (*core.ContentItem, error) {
	row := s.db.QueryRowContext(ctx, itemSelect+` WHERE owner_id = ? AND id = ?`, owner, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}
	return item, nil
}

// UpdateFields applies a single-row patch. Unknown field names are rejected.
func (s *SQLite) UpdateFields(ctx context.Context, owner, id string, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}

	var setClauses []string
	var args []any
	for field, value := range patch {
		column, converted, err := patchColumn(field, value)
		if err != nil {
			return err
		}
		setClauses = append(setClauses, column+" = ?")
		args = append(args, converted)
	}
	args = append(args, owner, id)

	query := "UPDATE items SET " + joinClauses(setClauses) + " WHERE owner_id = ? AND id = ?"
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// QueryByOwnerAndStatus lists an owner's items in one user-facing status.
func (s *SQLite) QueryByOwnerAndStatus(ctx context.Context, owner string, status core.Status) ([]*core.ContentItem, error) {
	return s.queryItems(ctx, ` WHERE owner_id = ? AND status = ? ORDER BY created_at`, owner, string(status))
}

// QueryByOwnerAndState lists an owner's items in one processing state.
func (s *SQLite) QueryByOwnerAndState(ctx context.Context, owner string, state core.ProcessingState) ([]*core.ContentItem, error) {
	return s.queryItems(ctx, ` WHERE owner_id = ? AND processing_state = ? ORDER BY created_at`, owner, string(state))
}

func (s *SQLite) queryItems(ctx context.Context, where string, args ...any) ([]*core.ContentItem, error) {
	rows, err := s.db.QueryContext(ctx, itemSelect+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*core.ContentItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// PutGroup upserts a processing-group record.
func (s *SQLite) PutGroup(ctx context.Context, group *core.Group) error {
	memberIDs, _ := json.Marshal(group.MemberIDs)

	query := `
	INSERT OR REPLACE INTO groups (id, owner_id, category, member_ids, created_at, done)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		group.ID, group.OwnerID, group.Category, string(memberIDs), group.CreatedAt, boolToInt(group.Done))
	return err
}

// GetGroup retrieves a group record; missing rows are a (nil, nil) miss.
func (s *SQLite) GetGroup(ctx context.Context, id string) (*core.Group, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, category, member_ids, created_at, done FROM groups WHERE id = ?`, id)

	var group core.Group
	var memberIDs string
	var done int
	err := row.Scan(&group.ID, &group.OwnerID, &group.Category, &memberIDs, &group.CreatedAt, &done)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan group: %w", err)
	}

	json.Unmarshal([]byte(memberIDs), &group.MemberIDs)
	group.Done = done != 0
	return &group, nil
}

// QueryOpenGroups lists an owner's not-yet-done groups.
func (s *SQLite) QueryOpenGroups(ctx context.Context, owner string) ([]*core.Group, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, owner_id, category, member_ids, created_at, done
	FROM groups WHERE owner_id = ? AND done = 0
	ORDER BY created_at, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query open groups: %w", err)
	}
	defer rows.Close()

	var groups []*core.Group
	for rows.Next() {
		var group core.Group
		var memberIDs string
		var done int
		if err := rows.Scan(&group.ID, &group.OwnerID, &group.Category, &memberIDs, &group.CreatedAt, &done); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		json.Unmarshal([]byte(memberIDs), &group.MemberIDs)
		group.Done = done != 0
		groups = append(groups, &group)
	}
	return groups, rows.Err()
}

// MarkGroupDone flags a group as completed.
func (s *SQLite) MarkGroupDone(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE groups SET done = 1 WHERE id = ?`, id)
	return err
}

// GetDedup retrieves a dedup record; missing rows are a (nil, nil) miss.
func (s *SQLite) GetDedup(ctx context.Context, owner, fingerprint string) (*core.DedupRecord, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT owner_id, fingerprint, source_feed_id, url, resulting_item_id, first_seen_at
	FROM dedup_records WHERE owner_id = ? AND fingerprint = ?`, owner, fingerprint)

	var rec core.DedupRecord
	err := row.Scan(&rec.OwnerID, &rec.Fingerprint, &rec.SourceFeedID, &rec.URL, &rec.ResultingItemID, &rec.FirstSeenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan dedup record: %w", err)
	}
	return &rec, nil
}

// PutDedupIfAbsent records a fingerprint; a repeat write is a silent no-op.
func (s *SQLite) PutDedupIfAbsent(ctx context.Context, record *core.DedupRecord) error {
	query := `
	INSERT OR IGNORE INTO dedup_records
	(owner_id, fingerprint, source_feed_id, url, resulting_item_id, first_seen_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		record.OwnerID, record.Fingerprint, record.SourceFeedID, record.URL,
		record.ResultingItemID, record.FirstSeenAt)
	return err
}

// DeleteDedupBefore sweeps ledger rows older than the retention cutoff.
func (s *SQLite) DeleteDedupBefore(ctx context.Context, cutoff time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dedup_records WHERE first_seen_at < ?`, cutoff)
	return err
}

// GetSynthesis retrieves a cached synthesis; missing rows are a (nil, nil) miss.
func (s *SQLite) GetSynthesis(ctx context.Context, groupID string) (*core.SynthesisResult, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT title, summary, key_points, question, generated_at
	FROM synthesis_cache WHERE group_id = ?`, groupID)

	var res core.SynthesisResult
	var keyPoints string
	err := row.Scan(&res.Title, &res.Summary, &keyPoints, &res.Question, &res.GeneratedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan synthesis: %w", err)
	}

	json.Unmarshal([]byte(keyPoints), &res.KeyPoints)
	return &res, nil
}

// PutSynthesisIfAbsent caches a synthesis result write-once: a racing second
// write never overwrites the first.
func (s *SQLite) PutSynthesisIfAbsent(ctx context.Context, groupID string, result *core.SynthesisResult) error {
	keyPoints, _ := json.Marshal(result.KeyPoints)

	query := `
	INSERT OR IGNORE INTO synthesis_cache (group_id, title, summary, key_points, question, generated_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		groupID, result.Title, result.Summary, string(keyPoints), result.Question, result.GeneratedAt)
	return err
}

const itemSelect = `
	SELECT owner_id, id, source_url, source_kind, raw_title, raw_body, raw_description,
	       category, status, processing_state, title, summary, key_points, question,
	       summarized_at, digest_fallback, priority_score, created_at, last_reviewed_at,
	       times_reviewed, is_grouped, source_item_ids, source_urls, individual_summaries
	FROM items`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*core.ContentItem, error) {
	var item core.ContentItem
	var sourceKind, status, state string
	var keyPoints, sourceItemIDs, sourceURLs, individualSummaries string
	var isGrouped, digestFallback int

	err := row.Scan(
		&item.OwnerID,
		&item.ID,
		&item.SourceURL,
		&sourceKind,
		&item.RawTitle,
		&item.RawBody,
		&item.RawDescription,
		&item.Category,
		&status,
		&state,
		&item.Title,
		&item.Summary,
		&keyPoints,
		&item.Question,
		&item.SummarizedAt,
		&digestFallback,
		&item.PriorityScore,
		&item.CreatedAt,
		&item.LastReviewedAt,
		&item.TimesReviewed,
		&isGrouped,
		&sourceItemIDs,
		&sourceURLs,
		&individualSummaries,
	)
	if err != nil {
		return nil, err
	}

	item.SourceKind = core.SourceKind(sourceKind)
	item.Status = core.Status(status)
	item.ProcessingState = core.ProcessingState(state)
	item.IsGrouped = isGrouped != 0
	item.DigestFallback = digestFallback != 0
	json.Unmarshal([]byte(keyPoints), &item.KeyPoints)
	json.Unmarshal([]byte(sourceItemIDs), &item.SourceItemIDs)
	json.Unmarshal([]byte(sourceURLs), &item.SourceURLs)
	json.Unmarshal([]byte(individualSummaries), &item.IndividualSummaries)

	return &item, nil
}

// patchColumn maps a patch field to its column and storage representation.
func patchColumn(field string, value any) (string, any, error) {
	switch field {
	case FieldStatus, FieldProcessingState, FieldCategory, FieldTitle,
		FieldSummary, FieldQuestion, FieldSummarizedAt, FieldPriorityScore,
		FieldLastReviewedAt, FieldTimesReviewed, FieldDigestFallback:
		return field, flatten(value), nil
	case FieldKeyPoints:
		encoded, _ := json.Marshal(value)
		return field, string(encoded), nil
	default:
		return "", nil, fmt.Errorf("unknown patch field %q", field)
	}
}

// flatten converts typed enum values to their string form for storage.
func flatten(value any) any {
	switch v := value.(type) {
	case core.Status:
		return string(v)
	case core.ProcessingState:
		return string(v)
	case core.SourceKind:
		return string(v)
	default:
		return value
	}
}

func joinClauses(clauses []string) string {
	out := ""
	for i, c := range clauses {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
