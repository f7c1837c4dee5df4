// Package store keeps a local sqlite log of what the dashboard did to the page.
// Posts themselves live on the Graph API and are never persisted here.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Actions recorded by the dashboard and CLI.
const (
	ActionLogin  = "login"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionExport = "export"
	ActionEmail  = "email"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var errNotInitialized = errors.New("store is not initialized")

type Store struct {
	db *sql.DB
}

// Activity is one logged dashboard action.
type Activity struct {
	ID     int64
	Action string
	PageID string
	PostID string
	Status string
	Detail string
	At     time.Time
}

type ActivityInput struct {
	Action string
	PageID string
	PostID string
	Status string
	Detail string
	At     time.Time
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY under the web server.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errNotInitialized
	}
	return s.db.PingContext(ctx)
}

// Record appends an activity entry. At defaults to now.
func (s *Store) Record(ctx context.Context, in ActivityInput) (Activity, error) {
	if s == nil || s.db == nil {
		return Activity{}, errNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}

	action := strings.TrimSpace(in.Action)
	if action == "" {
		return Activity{}, errors.New("action is required")
	}
	at := in.At
	if at.IsZero() {
		at = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO activity (action, page_id, post_id, status, detail, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		action,
		nullString(in.PageID),
		nullString(in.PostID),
		nullString(in.Status),
		nullString(in.Detail),
		formatTime(at),
	)
	if err != nil {
		return Activity{}, fmt.Errorf("insert activity: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Activity{}, fmt.Errorf("activity id: %w", err)
	}

	return Activity{
		ID:     id,
		Action: action,
		PageID: strings.TrimSpace(in.PageID),
		PostID: strings.TrimSpace(in.PostID),
		Status: strings.TrimSpace(in.Status),
		Detail: strings.TrimSpace(in.Detail),
		At:     at.UTC().Round(0),
	}, nil
}

// Recent returns up to limit entries, newest first. limit <= 0 means all.
func (s *Store) Recent(ctx context.Context, limit int) ([]Activity, error) {
	if s == nil || s.db == nil {
		return nil, errNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}

	query := `
		SELECT id, action, page_id, post_id, status, detail, at
		FROM activity
		ORDER BY at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get recent activity: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}

	return out, nil
}

// Counts returns the number of entries per action since the given time.
func (s *Store) Counts(ctx context.Context, since time.Time) (map[string]int, error) {
	if s == nil || s.db == nil {
		return nil, errNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT action, COUNT(*)
		FROM activity
		WHERE at >= ?
		GROUP BY action
	`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("count activity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			action string
			n      int
		)
		if err := rows.Scan(&action, &n); err != nil {
			return nil, fmt.Errorf("scan activity count: %w", err)
		}
		counts[action] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity counts: %w", err)
	}

	return counts, nil
}

// Prune deletes entries older than before and returns how many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM activity WHERE at < ?", formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("prune activity: %w", err)
	}

	n, _ := res.RowsAffected()
	return n, nil
}

// PruneOld deletes entries older than retainDays. retainDays <= 0 keeps everything.
func (s *Store) PruneOld(ctx context.Context, retainDays int) (int64, error) {
	if retainDays <= 0 {
		return 0, nil
	}
	return s.Prune(ctx, time.Now().AddDate(0, 0, -retainDays))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(scanner rowScanner) (Activity, error) {
	var (
		a                              Activity
		pageID, postID, status, detail sql.NullString
		at                             string
	)

	if err := scanner.Scan(&a.ID, &a.Action, &pageID, &postID, &status, &detail, &at); err != nil {
		return Activity{}, fmt.Errorf("scan activity: %w", err)
	}

	a.PageID = pageID.String
	a.PostID = postID.String
	a.Status = status.String
	a.Detail = detail.String

	var err error
	a.At, err = parseTime(at)
	if err != nil {
		return Activity{}, fmt.Errorf("parse at: %w", err)
	}

	return a, nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(timeLayout, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
