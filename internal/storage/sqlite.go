package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finanzas/internal/core"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ DocumentStore = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection keeps transactions serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const documentColumns = "id, collection, data, sync_state, sync_error, created_at, updated_at, synced_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(r rowScanner) (Document, error) {
	var (
		d                Document
		collection, data string
		state, syncErr   string
		created, updated string
		synced           sql.NullString
	)
	if err := r.Scan(&d.ID, &collection, &data, &state, &syncErr, &created, &updated, &synced); err != nil {
		return Document{}, err
	}
	d.Collection = Collection(collection)
	d.Data = []byte(data)
	d.SyncState = core.SyncState(state)
	d.SyncError = syncErr
	d.CreatedAt = parseTime(created)
	d.UpdatedAt = parseTime(updated)
	if synced.Valid {
		t := parseTime(synced.String)
		d.SyncedAt = &t
	}
	return d, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *SQLiteStore) All(ctx context.Context, c Collection) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE collection = ? ORDER BY id", string(c))
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func collectDocuments(rows *sql.Rows) ([]Document, error) {
	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, c Collection, id int64) (Document, error) {
	return getDocument(ctx, s.db, c, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDocument(ctx context.Context, q querier, c Collection, id int64) (Document, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE collection = ? AND id = ?", string(c), id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, core.ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, c Collection, data []byte) (Document, error) {
	now := formatTime(s.now())
	var doc Document
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO documents (collection, data, sync_state, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			string(c), string(data), string(core.SyncLocal), now, now)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read inserted id: %w", err)
		}
		if err := appendHistory(ctx, tx, now, c, id, ActionCreate, nil, data); err != nil {
			return err
		}
		doc, err = getDocument(ctx, tx, c, id)
		return err
	})
	if err != nil {
		return Document{}, err
	}
	slog.DebugContext(ctx, "Document inserted", "collection", c, "id", doc.ID)
	return doc, nil
}

func (s *SQLiteStore) Replace(ctx context.Context, c Collection, id int64, data []byte) (Document, error) {
	now := formatTime(s.now())
	var doc Document
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		old, err := getDocument(ctx, tx, c, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE documents SET data = ?, sync_state = ?, sync_error = '', updated_at = ?
			 WHERE collection = ? AND id = ?`,
			string(data), string(core.SyncPending), now, string(c), id); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if err := appendHistory(ctx, tx, now, c, id, ActionUpdate, old.Data, data); err != nil {
			return err
		}
		doc, err = getDocument(ctx, tx, c, id)
		return err
	})
	return doc, err
}

func (s *SQLiteStore) Remove(ctx context.Context, c Collection, id int64) error {
	now := formatTime(s.now())
	return s.withTx(ctx, func(tx *sql.Tx) error {
		old, err := getDocument(ctx, tx, c, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM documents WHERE collection = ? AND id = ?", string(c), id); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		return appendHistory(ctx, tx, now, c, id, ActionDelete, old.Data, nil)
	})
}

func (s *SQLiteStore) Pending(ctx context.Context, c Collection, limit int) ([]Document, error) {
	q := "SELECT " + documentColumns + ` FROM documents
		WHERE collection = ? AND sync_state IN ('local', 'pending', 'error')
		ORDER BY updated_at`
	args := []any{string(c)}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending documents: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func (s *SQLiteStore) MarkSynced(ctx context.Context, c Collection, id int64, version time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET sync_state = ?, sync_error = '', synced_at = ?
		 WHERE collection = ? AND id = ? AND updated_at = ?`,
		string(core.SyncSynced), formatTime(s.now()), string(c), id, formatTime(version))
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

func (s *SQLiteStore) MarkSyncError(ctx context.Context, c Collection, id int64, msg string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET sync_state = ?, sync_error = ? WHERE collection = ? AND id = ?",
		string(core.SyncError), msg, string(c), id)
	if err != nil {
		return fmt.Errorf("mark sync error: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) History(ctx context.Context, f HistoryFilter) ([]HistoryEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.Collection != "" {
		where = append(where, "collection = ?")
		args = append(args, string(f.Collection))
	}
	if f.EntityID != 0 {
		where = append(where, "entity_id = ?")
		args = append(args, f.EntityID)
	}
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, string(f.Action))
	}
	if !f.From.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, formatTime(f.To))
	}

	q := "SELECT id, timestamp, collection, entity_id, action, old_value, new_value FROM history"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY timestamp DESC, id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			e                  HistoryEntry
			ts, coll, action   string
			oldValue, newValue sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &coll, &e.EntityID, &action, &oldValue, &newValue); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Timestamp = parseTime(ts)
		e.Collection = Collection(coll)
		e.Action = Action(action)
		if oldValue.Valid {
			e.OldValue = []byte(oldValue.String)
		}
		if newValue.Valid {
			e.NewValue = []byte(newValue.String)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PruneHistory(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM history WHERE timestamp < ?", formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count pruned history: %w", err)
	}
	return n, nil
}

func appendHistory(ctx context.Context, tx *sql.Tx, ts string, c Collection, id int64, a Action, oldValue, newValue []byte) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO history (timestamp, collection, entity_id, action, old_value, new_value)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ts, string(c), id, string(a), nullableJSON(oldValue), nullableJSON(newValue)); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func nullableJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
