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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"patchup/internal/annotation"
	"patchup/internal/geometry"
)

func sampleState() annotation.State {
	st := annotation.Seed([]annotation.SeedPolygon{
		{Points: []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}, Label: "Sleeve"},
		{Points: []geometry.Point{{X: 20, Y: 20}, {X: 40, Y: 20}, {X: 40, Y: 40}, {X: 20, Y: 40}}, Size: `5" x 5"`},
	}, true)
	open := annotation.NewPolygon(2, true, &geometry.Point{X: 100, Y: 100})
	st.Polygons = append(st.Polygons, open)
	st.ActiveIndex = 2
	return st
}

func TestDocumentRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DocumentFileName)
	st := sampleState()
	doc := NewDocument(st, true, "scrap.png", Surface{Width: 800, Height: 600})
	if err := SaveDocument(path, doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	got, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if got.Version != DocumentVersion || got.Image != "scrap.png" || got.Surface.Width != 800 || len(got.Polygons) != 3 {
		t.Fatalf("document mismatch: %+v", got)
	}
	if got.Polygons[1].Size != `5" x 5"` {
		t.Fatalf("size lost: %+v", got.Polygons[1])
	}

	back, err := got.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if back.ActiveIndex != 2 || back.Polygons[0].ID != st.Polygons[0].ID || back.Polygons[2].IsFinished {
		t.Fatalf("state mismatch: %+v", back)
	}
}

func TestSaveDocumentCreatesBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DocumentFileName)
	doc := NewDocument(sampleState(), true, "", Surface{})
	if err := SaveDocument(path, doc); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := SaveDocument(path, doc); err != nil {
		t.Fatalf("second save: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, BackupsDirName))
	if err != nil || len(entries) == 0 {
		t.Fatalf("expected a backup after the second save: %v", err)
	}
	// No temp files left behind
	all, _ := os.ReadDir(dir)
	for _, e := range all {
		if filepath.Ext(e.Name()) != ".json" && e.Name() != BackupsDirName {
			t.Fatalf("unexpected leftover %s", e.Name())
		}
	}
}

func TestLoadDocumentFallsBackToBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DocumentFileName)
	doc := NewDocument(sampleState(), true, "a.png", Surface{})
	if err := SaveDocument(path, doc); err != nil {
		t.Fatal(err)
	}
	if err := SaveDocument(path, doc); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("expected backup recovery, got %v", err)
	}
	if got.Image != "a.png" {
		t.Fatalf("unexpected recovered document: %+v", got)
	}
}

func TestLoadDocumentRejectsSchemaViolations(t *testing.T) {
	path := filepath.Join(t.TempDir(), DocumentFileName)
	bad := `{"version": 1, "polygons": [{"label": "x", "points": ["a"]}]}`
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDocument(path); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestDocumentStateDropsShortFinishedPolygons(t *testing.T) {
	path := filepath.Join(t.TempDir(), DocumentFileName)
	raw := `{"version": 1, "polygons": [
		{"id": "a", "label": "A", "isFinished": true, "points": [0, 0, 10, 0, 10, 10]},
		{"id": "b", "label": "B", "isFinished": true, "points": [0, 0, 1, 1]},
		{"id": "c", "label": "C", "points": [5, 5]}
	]}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	st, err := d.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if len(st.Polygons) != 2 || st.Polygons[0].ID != "a" || st.Polygons[1].ID != "c" {
		t.Fatalf("expected A and the open C to survive: %+v", st.Polygons)
	}
	if st.Polygons[1].Index != 1 || st.ActiveIndex != 1 {
		t.Fatalf("indexes not compacted: %+v", st)
	}
}

func TestDocumentStateRejectsDuplicateIDs(t *testing.T) {
	d := Document{Version: 1, Polygons: []DocPolygon{
		{ID: "x", Label: "A", IsFinished: true, Points: []float64{0, 0, 10, 0, 10, 10}},
		{ID: "x", Label: "B", IsFinished: true, Points: []float64{20, 0, 30, 0, 30, 10}},
	}}
	if _, err := d.State(); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestValidateDocumentAcceptsSaved(t *testing.T) {
	path := filepath.Join(t.TempDir(), DocumentFileName)
	if err := SaveDocument(path, Document{}); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := ValidateDocument(b); err != nil {
		t.Fatalf("saved empty document should validate: %v", err)
	}
}

func TestAutosaveCrashSnapshotWritesFile(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, DocumentFileName)
	path, err := AutosaveCrashSnapshot(docPath, NewDocument(sampleState(), true, "", Surface{}))
	if err != nil {
		t.Fatalf("AutosaveCrashSnapshot error: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(dir, BackupsDirName) {
		t.Fatalf("snapshot not under backups: %s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if err := ValidateDocument(b); err != nil {
		t.Fatalf("snapshot does not validate: %v", err)
	}
	if _, err := os.Stat(docPath); !os.IsNotExist(err) {
		t.Fatalf("crash autosave must not create the document itself")
	}
}
