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
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"patchup/internal/annotation"
	"patchup/internal/geometry"
	applog "patchup/internal/log"
)

const (
	DocumentFileName = "polygons.json"
	BackupsDirName   = "backups"
	// DocumentVersion is written into every saved document.
	DocumentVersion = 1
)

//go:embed polygons.schema.json
var documentSchema []byte

// ErrInvalidDocument wraps schema and invariant violations found on load.
var ErrInvalidDocument = errors.New("invalid polygons document")

// Surface is the drawing area the polygons were traced on.
type Surface struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DocPolygon is the on-disk form of a polygon. Points are flattened as
// [x0, y0, x1, y1, ...], the same payload segmentation services take.
type DocPolygon struct {
	ID         string    `json:"id,omitempty"`
	Label      string    `json:"label"`
	Size       string    `json:"size,omitempty"`
	IsFabric   bool      `json:"isFabric,omitempty"`
	IsFinished bool      `json:"isFinished"`
	Points     []float64 `json:"points"`
}

// Document is the polygons.json file: the hand-off format between the
// annotator and downstream services, and the initial-state source.
type Document struct {
	Version  int          `json:"version"`
	Image    string       `json:"image,omitempty"`
	IsFabric bool         `json:"isFabric"`
	Surface  Surface      `json:"surface"`
	Polygons []DocPolygon `json:"polygons"`
}

// NewDocument captures st. Volatile preview data is not persisted.
func NewDocument(st annotation.State, isFabric bool, image string, surface Surface) Document {
	d := Document{Version: DocumentVersion, Image: image, IsFabric: isFabric, Surface: surface, Polygons: []DocPolygon{}}
	for _, p := range st.Polygons {
		d.Polygons = append(d.Polygons, DocPolygon{
			ID:         p.ID,
			Label:      p.Label,
			Size:       p.Size,
			IsFabric:   p.IsFabric,
			IsFinished: p.IsFinished,
			Points:     geometry.Flatten(p.Points),
		})
	}
	return d
}

// State rebuilds the full store state, open polygons included. Finished
// polygons with fewer than 3 vertices are dropped. Missing ids are assigned;
// the last polygon becomes active. Duplicate ids make the document invalid.
func (d Document) State() (annotation.State, error) {
	st := annotation.State{Polygons: make([]annotation.Polygon, 0, len(d.Polygons))}
	for i, dp := range d.Polygons {
		if dp.IsFinished && len(dp.Points) < 2*annotation.MinClosedVertices {
			applog.WithComponent("storage").Debug("dropping short polygon",
				slog.Int("polygon", i), slog.String("label", dp.Label), slog.Int("points", len(dp.Points)/2))
			continue
		}
		p := annotation.NewPolygon(len(st.Polygons), dp.IsFabric || d.IsFabric, nil)
		if dp.ID != "" {
			p.ID = dp.ID
		}
		p.Label = dp.Label
		p.Size = dp.Size
		p.IsFinished = dp.IsFinished
		p.Points = geometry.Unflatten(dp.Points)
		st.Polygons = append(st.Polygons, p)
	}
	st.ActiveIndex = len(st.Polygons) - 1
	if err := st.Validate(); err != nil {
		return annotation.State{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return st, nil
}

// ValidateDocument checks raw JSON against the embedded schema.
func ValidateDocument(data []byte) error {
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(documentSchema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
	}
	return nil
}

// LoadDocument reads and validates path. If the file is missing or cannot be
// parsed the latest backup is tried instead; schema violations are reported
// as they are.
func LoadDocument(path string) (Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		d, berr := openFromLatestBackup(path)
		if berr != nil {
			return Document{}, fmt.Errorf("open document: %w; backup attempt: %v", err, berr)
		}
		return d, nil
	}
	if !json.Valid(b) {
		d, berr := openFromLatestBackup(path)
		if berr != nil {
			return Document{}, fmt.Errorf("parse document %s: %w; backup attempt: %v", path, ErrInvalidDocument, berr)
		}
		return d, nil
	}
	return decodeDocument(b)
}

func decodeDocument(b []byte) (Document, error) {
	if err := ValidateDocument(b); err != nil {
		return Document{}, err
	}
	var d Document
	if err := json.Unmarshal(b, &d); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return d, nil
}

// SaveDocument writes d to path with transactional semantics and a
// timestamped backup of the previous file (if present).
func SaveDocument(path string, d Document) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("document path is required")
	}
	if d.Version == 0 {
		d.Version = DocumentVersion
	}
	if d.Polygons == nil {
		d.Polygons = []DocPolygon{}
	}
	// Marshal in human-readable form
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create document dir: %w", err)
	}

	// If a current document exists, copy it to a timestamped backup before replacing
	if _, statErr := os.Stat(path); statErr == nil {
		bdir := filepath.Join(dir, BackupsDirName)
		stamp := time.Now().Format("20060102-150405.000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
		if cerr := copyFile(path, bpath); cerr != nil {
			return fmt.Errorf("backup current document: %w", cerr)
		}
	}

	// Transactional write: to temp file in same directory, then rename over target
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp document: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace document: %w", rerr)
	}
	return nil
}

// openFromLatestBackup tries the newest timestamped backup of path.
func openFromLatestBackup(path string) (Document, error) {
	bdir := filepath.Join(filepath.Dir(path), BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return Document{}, fmt.Errorf("read backups dir: %w", err)
	}
	base := filepath.Base(path)
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, base+".") && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return Document{}, errors.New("no backups found")
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	b, err := os.ReadFile(candidates[len(candidates)-1])
	if err != nil {
		return Document{}, fmt.Errorf("read latest backup: %w", err)
	}
	return decodeDocument(b)
}

// AutosaveCrashSnapshot writes d next to the document at docPath as
// backups/<name>.crash-<stamp>.json and returns the written path. The
// regular document and its backup rotation are left untouched.
func AutosaveCrashSnapshot(docPath string, d Document) (string, error) {
	if d.Version == 0 {
		d.Version = DocumentVersion
	}
	if d.Polygons == nil {
		d.Polygons = []DocPolygon{}
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash snapshot: %w", err)
	}
	bdir := filepath.Join(filepath.Dir(docPath), BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("create backups dir: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))
	path := filepath.Join(bdir, fmt.Sprintf("%s.crash-%s.json", name, time.Now().Format("20060102-150405.000")))
	if err := writeFileSync(path, append(data, '\n')); err != nil {
		return "", fmt.Errorf("write crash snapshot: %w", err)
	}
	return path, nil
}
