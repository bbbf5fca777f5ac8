/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"patchup/internal/annotation"
	applog "patchup/internal/log"
	"patchup/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// JournalDirName stores the per-workspace journal next to polygons.json.
	JournalDirName  = ".patchup"
	JournalFileName = "journal.sqlite"

	// schemaVersion tracks the local SQLite schema of the journal.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// language=SQL
// dialect=SQLite
const insertCommitSQL = `INSERT INTO commits(session, ts, polygons, state) VALUES (?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestCommitSQL = `SELECT ts, state FROM commits WHERE session = ? ORDER BY id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listCommitsSQL = `SELECT id, ts, polygons, state FROM commits WHERE session = ? ORDER BY id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneCommitsSQL = `DELETE FROM commits WHERE session = ? AND id NOT IN (
	SELECT id FROM commits WHERE session = ? ORDER BY id DESC LIMIT ?
)`

// JournalEntry is one committed state.
type JournalEntry struct {
	ID       int64
	TS       time.Time
	Polygons int
	State    annotation.State
}

// Journal appends committed annotation states to an embedded SQLite database.
type Journal struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// JournalPath returns the journal location for a workspace directory.
func JournalPath(dir string) string {
	return filepath.Join(dir, JournalDirName, JournalFileName)
}

// OpenJournal opens (or creates) the journal at path, enables WAL mode and
// brings the schema up to date. A file that fails the integrity check is
// backed up and recreated.
func OpenJournal(ctx context.Context, path string) (*Journal, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "journal_open").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal path is required")
	}
	db, err := openJournalDB(ctx, path)
	if err == nil && !healthy(ctx, db) {
		_ = db.Close()
		err = errors.New("integrity check failed")
	}
	if err != nil {
		l.Warn("journal unusable, recreating", slog.Any("err", err))
		backupJournalFile(path)
		for _, suffix := range []string{"", "-wal", "-shm"} {
			_ = os.Remove(path + suffix)
		}
		if db, err = openJournalDB(ctx, path); err != nil {
			l.Error("journal recreate failed", slog.Any("err", err))
			return nil, err
		}
	}
	l.Debug("journal ready")
	return &Journal{db: db, path: path, log: applog.WithComponent("storage")}, nil
}

func openJournalDB(ctx context.Context, path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	// Use a URI with shared cache and set busy timeout. Convert to forward slashes for SQLite URI.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Set reasonable connection pool limits for embedded usage.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureJournalSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func healthy(ctx context.Context, db *sql.DB) bool {
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		return false
	}
	_, err := db.ExecContext(ctx, `SELECT 1 FROM commits LIMIT 1;`)
	return err == nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	// Seed or update single-row version info
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// Update app and timestamp only; keep existing schema for migrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureJournalSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS commits (
			id       INTEGER PRIMARY KEY,
			session  TEXT    NOT NULL,
			ts       TEXT    NOT NULL,
			polygons INTEGER NOT NULL DEFAULT 0,
			state    BLOB    NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure journal schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// Do not downgrade
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			// Latest/list/prune all filter by session and order by id.
			stmts = []string{`CREATE INDEX IF NOT EXISTS idx_commits_session ON commits(session, id);`}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	// A fresh database is created at schemaVersion directly; make sure the
	// indexes of every step exist regardless.
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_commits_session ON commits(session, id);`); err != nil {
		return fmt.Errorf("ensure journal index: %w", err)
	}
	return nil
}

// backupJournalFile copies the journal into a timestamped backup next to it.
func backupJournalFile(path string) {
	bdir := filepath.Join(filepath.Dir(path), BackupsDirName)
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
	if data, err := os.ReadFile(path); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

// Path returns the database file location.
func (j *Journal) Path() string { return j.path }

func (j *Journal) Close() error { return j.db.Close() }

// Append records a committed state for session. Previews are stripped.
func (j *Journal) Append(ctx context.Context, session string, st annotation.State) error {
	blob, err := json.Marshal(st.WithoutPreview())
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if _, err := j.db.ExecContext(ctx, insertCommitSQL, session, time.Now().UTC().Format(time.RFC3339Nano), len(st.Polygons), blob); err != nil {
		j.log.ErrorContext(ctx, "journal append failed", slog.Any("err", err))
		return fmt.Errorf("append commit: %w", err)
	}
	return nil
}

// Latest returns the most recent state of session; ok is false when the
// session has no entries.
func (j *Journal) Latest(ctx context.Context, session string) (st annotation.State, ts time.Time, ok bool, err error) {
	var tsStr string
	var blob []byte
	err = j.db.QueryRowContext(ctx, selectLatestCommitSQL, session).Scan(&tsStr, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return annotation.State{}, time.Time{}, false, nil
	}
	if err != nil {
		return annotation.State{}, time.Time{}, false, fmt.Errorf("read latest commit: %w", err)
	}
	if err := json.Unmarshal(blob, &st); err != nil {
		return annotation.State{}, time.Time{}, false, fmt.Errorf("decode commit: %w", err)
	}
	ts, _ = time.Parse(time.RFC3339Nano, tsStr)
	return st, ts, true, nil
}

// List returns up to limit most recent entries of session, newest first.
func (j *Journal) List(ctx context.Context, session string, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, listCommitsSQL, session, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var tsStr string
		var blob []byte
		if err := rows.Scan(&e.ID, &tsStr, &e.Polygons, &blob); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(blob, &e.State); err != nil {
			return nil, fmt.Errorf("decode commit %d: %w", e.ID, err)
		}
		e.TS, _ = time.Parse(time.RFC3339Nano, tsStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune keeps at most keepLast entries for session and deletes older ones.
func (j *Journal) Prune(ctx context.Context, session string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := j.db.ExecContext(ctx, pruneCommitsSQL, session, session, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Recorder returns a commit hook that appends every state for session and
// prunes the session to keepLast entries every keepLast commits. Errors are
// logged; the editing session never fails because of the journal.
func (j *Journal) Recorder(session string, keepLast int) func(annotation.State) {
	n := 0
	return func(st annotation.State) {
		ctx, cancel := context.WithTimeout(applog.ContextWithSession(context.Background(), session), 2*time.Second)
		defer cancel()
		if err := j.Append(ctx, session, st); err != nil {
			return
		}
		n++
		if keepLast > 0 && n%keepLast == 0 {
			if _, err := j.Prune(ctx, session, keepLast); err != nil {
				j.log.WarnContext(ctx, "journal prune failed", slog.Any("err", err))
			}
		}
	}
}
