/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package annotation

// This file defines the annotation data model: user-traced polygons and the
// store root that owns them. Fabric scraps and pattern pieces share the same
// types and are told apart by IsFabric only.

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"patchup/internal/geometry"
)

// MinClosedVertices is the smallest vertex count a finished polygon may have.
const MinClosedVertices = 3

// NoActive marks a State without a polygon under construction.
const NoActive = -1

const labelPrefix = "Polygon-"

// newID is swapped in tests that need stable identifiers.
var newID = uuid.NewString

// Polygon is one user-drawn shape.
type Polygon struct {
	ID         string           `json:"id"`
	Index      int              `json:"index"`
	Points     []geometry.Point `json:"points"`
	IsFinished bool             `json:"isFinished"`
	IsFabric   bool             `json:"isFabric"`
	Label      string           `json:"label"`
	Size       string           `json:"size,omitempty"`
	// Preview is the rubber-band vertex list (Points plus the live pointer)
	// shown while drawing. It is volatile and never part of a committed state.
	Preview []geometry.Point `json:"-"`
}

// State is the store root.
type State struct {
	Polygons    []Polygon `json:"polygons"`
	ActiveIndex int       `json:"activePolygonIndex"`
}

// SizePreset is a named stock fabric cut offered for fabric polygons.
type SizePreset struct {
	Name  string
	Value string
}

// SizePresets lists the stock quilting cuts offered as fabric sizes (inches).
var SizePresets = []SizePreset{
	{Name: "Fat Eighth", Value: `9" x 21"`},
	{Name: "Fat Quarter", Value: `18" x 22"`},
	{Name: "Cake Layers", Value: `10" x 10"`},
	{Name: "Jelly Roll", Value: `2.5"`},
	{Name: "Coins", Value: `6.5" x 6.5"`},
	{Name: "Charm Pack", Value: `5" x 5"`},
}

var (
	// ErrOpenClosed reports a finished polygon with fewer than three vertices.
	ErrOpenClosed = errors.New("finished polygon has fewer than 3 points")
	// ErrDuplicateID reports two polygons sharing an id.
	ErrDuplicateID = errors.New("duplicate polygon id")
)

// DefaultLabel returns the auto-generated label for the n-th polygon (1-based).
func DefaultLabel(n int) string { return labelPrefix + strconv.Itoa(n) }

// defaultLabelNumber parses labels of the exact form Polygon-<n>.
func defaultLabelNumber(label string) (int, bool) {
	rest, ok := strings.CutPrefix(label, labelPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || strconv.Itoa(n) != rest {
		return 0, false
	}
	return n, true
}

// NewPolygon builds an unfinished polygon at creation position index with the
// default label. When first is non-nil it becomes the initial vertex.
func NewPolygon(index int, isFabric bool, first *geometry.Point) Polygon {
	p := Polygon{
		ID:       newID(),
		Index:    index,
		Points:   []geometry.Point{},
		IsFabric: isFabric,
		Label:    DefaultLabel(index + 1),
	}
	if first != nil {
		p.Points = append(p.Points, *first)
	}
	return p
}

// CanClose reports whether the polygon may be finished by the close gesture.
func (p Polygon) CanClose() bool {
	return !p.IsFinished && len(p.Points) >= MinClosedVertices
}

// Bounds returns the polygon envelope; ok is false for an empty polygon.
func (p Polygon) Bounds() (geometry.Box, bool) { return geometry.BoundsOf(p.Points) }

// LabelAnchor is where renderers place the label: left-most x, centroid y.
func (p Polygon) LabelAnchor() (geometry.Point, bool) {
	b, ok := p.Bounds()
	if !ok {
		return geometry.Point{}, false
	}
	c, _ := geometry.Centroid(p.Points)
	return geometry.Point{X: b.MinX, Y: c.Y}, true
}

// Clone returns a deep copy of s; snapshots handed to observers never alias.
func (s State) Clone() State {
	var out State
	if err := copier.CopyWithOption(&out, &s, copier.Option{DeepCopy: true}); err != nil {
		// copier only fails on mismatched kinds, which cannot happen for State.
		panic(fmt.Sprintf("annotation: clone state: %v", err))
	}
	if s.Polygons == nil {
		out.Polygons = nil
	}
	return out
}

// Active returns the active polygon when ActiveIndex points at one.
func (s State) Active() (Polygon, bool) {
	if s.ActiveIndex < 0 || s.ActiveIndex >= len(s.Polygons) {
		return Polygon{}, false
	}
	return s.Polygons[s.ActiveIndex], true
}

// Count returns how many polygons carry the given tag.
func (s State) Count(isFabric bool) int {
	n := 0
	for _, p := range s.Polygons {
		if p.IsFabric == isFabric {
			n++
		}
	}
	return n
}

// FinishedRings returns the vertex lists of finished polygons with the tag.
func (s State) FinishedRings(isFabric bool) [][]geometry.Point {
	var out [][]geometry.Point
	for _, p := range s.Polygons {
		if p.IsFinished && p.IsFabric == isFabric {
			out = append(out, p.Points)
		}
	}
	return out
}

// Validate checks the closure invariant and id uniqueness.
func (s State) Validate() error {
	seen := make(map[string]struct{}, len(s.Polygons))
	for i, p := range s.Polygons {
		if p.IsFinished && len(p.Points) < MinClosedVertices {
			return fmt.Errorf("polygon %d (%s): %w", i, p.Label, ErrOpenClosed)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("polygon %d: %w: %s", i, ErrDuplicateID, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}
