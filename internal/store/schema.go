package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

const schemaVersionKey = "schema_version"

// migrate applies the embedded schema and stamps the version in metadata.
// A database written by a newer pagedeck is refused.
func migrate(ctx context.Context, db *sql.DB) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	current, found, err := readSchemaVersion(ctx, tx)
	if err != nil {
		return err
	}
	switch {
	case !found:
		_, err = tx.ExecContext(ctx, "INSERT INTO metadata(key, value) VALUES(?, ?)", schemaVersionKey, strconv.Itoa(schemaVersion))
	case current > schemaVersion:
		err = fmt.Errorf("activity log schema v%d is newer than this build (v%d)", current, schemaVersion)
		return err
	case current < schemaVersion:
		_, err = tx.ExecContext(ctx, "UPDATE metadata SET value = ? WHERE key = ?", strconv.Itoa(schemaVersion), schemaVersionKey)
	}
	if err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}

	return tx.Commit()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readSchemaVersion(ctx context.Context, q queryRower) (int, bool, error) {
	var raw string
	err := q.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", schemaVersionKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("parse schema version %q: %w", raw, err)
	}
	return v, true, nil
}

// SchemaVersion reports the schema version stamped in the database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	v, found, err := readSchemaVersion(ctx, s.db)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errors.New("schema version missing")
	}
	return v, nil
}
