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
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"patchup/internal/annotation"
	"patchup/internal/geometry"

	_ "modernc.org/sqlite"
)

func TestJournalCRUD(t *testing.T) {
	ctx := context.Background()
	j, err := OpenJournal(ctx, JournalPath(t.TempDir()))
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}
	defer j.Close()

	if _, _, ok, err := j.Latest(ctx, "s1"); err != nil || ok {
		t.Fatalf("empty journal should have no latest entry: ok=%v err=%v", ok, err)
	}

	st := annotation.Empty(false)
	for i := 0; i < 6; i++ {
		st.Polygons[0].Points = append(st.Polygons[0].Points, geometry.Pt(float64(i), 0))
		if err := j.Append(ctx, "s1", st); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	if err := j.Append(ctx, "other", annotation.Empty(true)); err != nil {
		t.Fatalf("Append other: %v", err)
	}

	latest, _, ok, err := j.Latest(ctx, "s1")
	if err != nil || !ok || len(latest.Polygons[0].Points) != 6 {
		t.Fatalf("Latest got %+v ok=%v err=%v", latest, ok, err)
	}
	list, err := j.List(ctx, "s1", 10)
	if err != nil || len(list) != 6 {
		t.Fatalf("List got %d err %v", len(list), err)
	}
	n, err := j.Prune(ctx, "s1", 3)
	if err != nil || n != 3 {
		t.Fatalf("Prune got %d err %v", n, err)
	}
	list, err = j.List(ctx, "s1", 10)
	if err != nil || len(list) != 3 {
		t.Fatalf("List after prune got %d err %v", len(list), err)
	}
	if other, err := j.List(ctx, "other", 10); err != nil || len(other) != 1 {
		t.Fatalf("prune must not touch other sessions: %d %v", len(other), err)
	}
}

func TestJournalRecorder(t *testing.T) {
	ctx := context.Background()
	j, err := OpenJournal(ctx, JournalPath(t.TempDir()))
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}
	defer j.Close()

	rec := j.Recorder("s", 2)
	st := annotation.Empty(false)
	for i := 0; i < 5; i++ {
		rec(st)
	}
	list, err := j.List(ctx, "s", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected pruning every second commit to leave 3 entries, got %d", len(list))
	}
}

func TestJournalRecreatedOnCorruption(t *testing.T) {
	dir := t.TempDir()
	path := JournalPath(dir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("THIS IS NOT SQLITE"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	j, err := OpenJournal(ctx, path)
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}
	defer j.Close()
	if err := j.Append(ctx, "s", annotation.Empty(false)); err != nil {
		t.Fatalf("append after recreate: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(filepath.Dir(path), BackupsDirName))
	if len(entries) == 0 {
		t.Fatalf("expected backup of the corrupt journal")
	}
}

// TestMigrations_UpgradeV1ToV2 ensures that an older DB (schema=1) is migrated and the session index exists.
func TestMigrations_UpgradeV1ToV2(t *testing.T) {
	path := JournalPath(t.TempDir())
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mk dir: %v", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(2000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);`,
		`CREATE TABLE IF NOT EXISTS version (id INTEGER PRIMARY KEY CHECK(id=1), schema INTEGER NOT NULL, app TEXT, created_at TEXT NOT NULL, updated_at TEXT NOT NULL);`,
		`INSERT INTO version(id, schema, app, created_at, updated_at) VALUES(1, 1, 'test', '2020-01-01T00:00:00Z', '2020-01-01T00:00:00Z');`,
		`CREATE TABLE IF NOT EXISTS commits (id INTEGER PRIMARY KEY, session TEXT NOT NULL, ts TEXT NOT NULL, polygons INTEGER NOT NULL DEFAULT 0, state BLOB NOT NULL);`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			t.Fatalf("seed v1 schema: %v (q=%s)", err, q)
		}
	}
	_ = db.Close()

	j, err := OpenJournal(ctx, path)
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}
	defer j.Close()
	var schema int
	if err := j.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&schema); err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if schema != schemaVersion {
		t.Fatalf("expected schema %d after migration, got %d", schemaVersion, schema)
	}
	var cnt int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name='idx_commits_session'`).Scan(&cnt); err != nil {
		t.Fatalf("query indexes: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected session index after migration, got %d", cnt)
	}
}
