/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package annotation

import "patchup/internal/geometry"

// Transitions below are pure: they return a fresh State and never mutate the
// input. Unknown ids and out-of-range indexes yield an unchanged copy.

// ReplacePolygons swaps the whole polygon list.
func ReplacePolygons(s State, polys []Polygon) State {
	out := s.Clone()
	out.Polygons = State{Polygons: polys}.Clone().Polygons
	return out
}

// SetActiveIndex points the store at the polygon under construction.
func SetActiveIndex(s State, i int) State {
	out := s.Clone()
	out.ActiveIndex = i
	return out
}

// RenameLabel sets the label of the polygon with the given id.
func RenameLabel(s State, id, label string) State {
	out := s.Clone()
	if i := out.IndexOf(id); i >= 0 {
		out.Polygons[i].Label = label
	}
	return out
}

// SetSize records the fabric size of a fabric polygon; pattern pieces have no size.
func SetSize(s State, id, size string) State {
	out := s.Clone()
	if i := out.IndexOf(id); i >= 0 && out.Polygons[i].IsFabric {
		out.Polygons[i].Size = size
	}
	return out
}

// DeleteOne removes the polygon at position index. When that empties the
// isFabric population a fresh unfinished polygon is seeded in its place, and
// trailing default labels are renumbered to stay contiguous.
func DeleteOne(s State, index int, isFabric bool) State {
	out := s.Clone()
	if index < 0 || index >= len(out.Polygons) {
		return out
	}
	out.Polygons = append(out.Polygons[:index], out.Polygons[index+1:]...)
	for i := index; i < len(out.Polygons); i++ {
		if n, ok := defaultLabelNumber(out.Polygons[i].Label); ok && n == i+2 {
			out.Polygons[i].Label = DefaultLabel(i + 1)
		}
	}
	if out.Count(isFabric) == 0 {
		fresh := NewPolygon(0, isFabric, nil)
		fresh.Index = len(out.Polygons)
		out.Polygons = append(out.Polygons, fresh)
	}
	out.ActiveIndex = len(out.Polygons) - 1
	return out
}

// DeleteAll resets to the single-fresh-polygon state for the tag.
func DeleteAll(isFabric bool) State { return Empty(isFabric) }

// Empty is the state of a fresh canvas: one unfinished, empty polygon that is
// already active, labelled Polygon-1.
func Empty(isFabric bool) State {
	return State{
		Polygons:    []Polygon{NewPolygon(0, isFabric, nil)},
		ActiveIndex: 0,
	}
}

// SeedPolygon is an externally supplied shape, e.g. from polygons.json or a
// segmentation service.
type SeedPolygon struct {
	Points []geometry.Point
	Label  string
	Size   string
}

// Seed builds the initial state from external shapes. Shapes with fewer than
// three vertices are dropped; the rest become finished polygons.
func Seed(inputs []SeedPolygon, isFabric bool) State {
	s := State{Polygons: []Polygon{}, ActiveIndex: NoActive}
	for _, in := range inputs {
		if len(in.Points) < MinClosedVertices {
			continue
		}
		i := len(s.Polygons)
		p := NewPolygon(i, isFabric, nil)
		p.Points = append([]geometry.Point(nil), in.Points...)
		p.IsFinished = true
		if in.Label != "" {
			p.Label = in.Label
		}
		if isFabric {
			p.Size = in.Size
		}
		s.Polygons = append(s.Polygons, p)
	}
	s.ActiveIndex = len(s.Polygons) - 1
	return s
}

// WithoutPreview clears the volatile rubber-band data of every polygon.
func (s State) WithoutPreview() State {
	out := s.Clone()
	for i := range out.Polygons {
		out.Polygons[i].Preview = nil
	}
	return out
}

// IndexOf returns the position of the polygon with the given id, or -1.
func (s State) IndexOf(id string) int {
	for i, p := range s.Polygons {
		if p.ID == id {
			return i
		}
	}
	return -1
}
