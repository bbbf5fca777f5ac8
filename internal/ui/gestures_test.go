/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"patchup/internal/annotation"
	"patchup/internal/annotator"
	"patchup/internal/drawing"
	"patchup/internal/geometry"
)

func newGestureSession(t *testing.T) (*annotator.Session, *Gestures) {
	t.Helper()
	s := annotator.New(annotator.Options{
		Surface:     drawing.Surface{Width: 400, Height: 400},
		MaxPolygons: 5,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return s, NewGestures(s)
}

// closeTriangle draws (10,10) (100,10) (10,100) and closes it on the start vertex.
func closeTriangle(t *testing.T, s *annotator.Session, g *Gestures) {
	t.Helper()
	for _, p := range []geometry.Point{{X: 10, Y: 10}, {X: 100, Y: 10}, {X: 10, Y: 100}} {
		require.True(t, g.Tap(p).Committed)
	}
	g.Move(geometry.Pt(11, 11))
	require.True(t, s.HoveringStartVertex())
	require.True(t, g.Tap(geometry.Pt(11, 11)).Committed)
	require.True(t, s.State().Polygons[0].IsFinished)
	require.Len(t, s.State().Polygons[0].Points, 3)
}

func TestGesturesDrawAndClose(t *testing.T) {
	s, g := newGestureSession(t)
	closeTriangle(t, s, g)
	require.False(t, s.HoveringStartVertex())
}

func TestGesturesHoverLeave(t *testing.T) {
	s, g := newGestureSession(t)
	for _, p := range []geometry.Point{{X: 10, Y: 10}, {X: 100, Y: 10}, {X: 10, Y: 100}} {
		g.Tap(p)
	}
	g.Move(geometry.Pt(12, 10))
	require.True(t, s.HoveringStartVertex())
	g.Move(geometry.Pt(50, 50))
	require.False(t, s.HoveringStartVertex())

	g.Move(geometry.Pt(10, 12))
	require.True(t, s.HoveringStartVertex())
	g.Out()
	require.False(t, s.HoveringStartVertex())
}

func TestGesturesNoHoverBeforeThreeVertices(t *testing.T) {
	s, g := newGestureSession(t)
	g.Tap(geometry.Pt(10, 10))
	g.Tap(geometry.Pt(100, 10))
	g.Move(geometry.Pt(10, 11))
	require.False(t, s.HoveringStartVertex())
}

func TestGesturesVertexDrag(t *testing.T) {
	s, g := newGestureSession(t)
	closeTriangle(t, s, g)

	r := g.Drag(geometry.Pt(110, 20), geometry.Pt(10, 10))
	require.True(t, r.Changed)
	require.Equal(t, drawing.VertexEditing, s.Mode())
	require.Equal(t, geometry.Pt(110, 20), s.State().Polygons[0].Points[1])

	r = g.DragEnd()
	require.True(t, r.Committed)
	require.Equal(t, geometry.Pt(110, 20), s.State().Polygons[0].Points[1])
	require.True(t, s.Undo())
	require.Equal(t, geometry.Pt(100, 10), s.State().Polygons[0].Points[1])
}

func TestGesturesGroupDrag(t *testing.T) {
	s, g := newGestureSession(t)
	closeTriangle(t, s, g)

	g.Drag(geometry.Pt(40, 40), geometry.Pt(10, 10))
	require.Equal(t, drawing.GroupEditing, s.Mode())
	g.Drag(geometry.Pt(50, 45), geometry.Pt(10, 5))
	require.Equal(t, geometry.Pt(20, 15), s.GroupOffset())
	require.Equal(t, geometry.Pt(10, 10), s.State().Polygons[0].Points[0], "points move only on release")

	r := g.DragEnd()
	require.True(t, r.Committed)
	require.Equal(t, geometry.Pt(30, 25), s.State().Polygons[0].Points[0])
	require.Equal(t, geometry.Point{}, s.GroupOffset())
}

func TestGesturesDragOnEmptySurfaceIsIgnored(t *testing.T) {
	s, g := newGestureSession(t)
	closeTriangle(t, s, g)
	past, _ := s.HistoryStats()

	require.Equal(t, drawing.Result{}, g.Drag(geometry.Pt(300, 300), geometry.Pt(5, 5)))
	require.Equal(t, drawing.Result{}, g.DragEnd())
	after, _ := s.HistoryStats()
	require.Equal(t, past, after)
}

func TestHitTests(t *testing.T) {
	s, g := newGestureSession(t)
	closeTriangle(t, s, g)
	st := s.State()

	pi, vi, ok := HitVertex(st, false, geometry.Pt(98, 11), 4)
	require.True(t, ok)
	require.Equal(t, 0, pi)
	require.Equal(t, 1, vi)
	_, _, ok = HitVertex(st, false, geometry.Pt(50, 50), 4)
	require.False(t, ok)

	require.Equal(t, 0, HitPolygon(st, false, geometry.Pt(20, 20)))
	require.Equal(t, -1, HitPolygon(st, false, geometry.Pt(90, 90)))

	_, _, ok = HitVertex(st, true, geometry.Pt(98, 11), 4)
	require.False(t, ok)
	require.Equal(t, -1, HitPolygon(st, true, geometry.Pt(20, 20)))
}

func TestGesturesLeaveOtherPopulationAlone(t *testing.T) {
	fabric := annotation.Seed([]annotation.SeedPolygon{{
		Points: []geometry.Point{{X: 10, Y: 10}, {X: 100, Y: 10}, {X: 10, Y: 100}},
	}}, true)
	s := annotator.New(annotator.Options{
		Initial:     &fabric,
		Surface:     drawing.Surface{Width: 400, Height: 400},
		MaxPolygons: 5,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	g := NewGestures(s)

	require.Equal(t, drawing.Result{}, g.Drag(geometry.Pt(30, 30), geometry.Pt(5, 5)))
	require.Equal(t, drawing.Result{}, g.Drag(geometry.Pt(12, 12), geometry.Pt(2, 2)))
	require.Equal(t, drawing.Result{}, g.DragEnd())
	require.Equal(t, geometry.Pt(10, 10), s.State().Polygons[0].Points[0])
	require.False(t, s.CanUndo())
}
