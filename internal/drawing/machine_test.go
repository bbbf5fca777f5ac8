/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package drawing

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"patchup/internal/annotation"
	"patchup/internal/geometry"
	"patchup/internal/undo"
)

type historyStore struct {
	*undo.History[annotation.State]
}

func (h historyStore) State() annotation.State { return h.Present() }

func newMachine(t *testing.T, initial annotation.State, w, h float64, max int) (*Machine, historyStore) {
	t.Helper()
	st := historyStore{undo.New(initial, undo.Config{})}
	m := New(st, Config{
		Surface:     Surface{Width: w, Height: h},
		MaxPolygons: max,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return m, st
}

func click(m *Machine, x, y float64) Result { return m.Handle(Click{Pos: geometry.Pt(x, y)}) }

// drawTriangle clicks three vertices then closes on the start vertex.
func drawTriangle(t *testing.T, m *Machine, pts ...geometry.Point) {
	t.Helper()
	for _, p := range pts {
		require.True(t, m.Handle(Click{Pos: p}).Committed)
	}
	idx := m.store.State().ActiveIndex
	require.True(t, m.Handle(HoverStart{Polygon: idx}).Changed)
	require.True(t, m.HoveringStartVertex())
	res := m.Handle(Click{Pos: pts[0], OnVertex: true})
	require.True(t, res.Committed)
	require.False(t, m.HoveringStartVertex())
}

func TestDrawAndCloseFromEmptyCanvas(t *testing.T) {
	for name, initial := range map[string]annotation.State{
		"seeded-empty": annotation.Seed(nil, false),
		"fresh":        annotation.Empty(false),
	} {
		t.Run(name, func(t *testing.T) {
			m, st := newMachine(t, initial, 400, 400, 5)
			drawTriangle(t, m, geometry.Pt(10, 10), geometry.Pt(50, 10), geometry.Pt(50, 50))

			s := st.Present()
			require.Len(t, s.Polygons, 1)
			p := s.Polygons[0]
			require.True(t, p.IsFinished)
			require.Equal(t, []geometry.Point{{X: 10, Y: 10}, {X: 50, Y: 10}, {X: 50, Y: 50}}, p.Points)
			require.Equal(t, 0, s.ActiveIndex)
			past, _ := st.Stats()
			require.Equal(t, 4, past)
		})
	}
}

func TestClickInsideFinishedPolygonIgnored(t *testing.T) {
	m, st := newMachine(t, annotation.Seed(nil, false), 400, 400, 5)
	drawTriangle(t, m, geometry.Pt(10, 10), geometry.Pt(50, 10), geometry.Pt(50, 50))

	res := click(m, 30, 30)
	require.False(t, res.Changed)
	require.Len(t, st.Present().Polygons, 1)
	past, _ := st.Stats()
	require.Equal(t, 4, past)
}

func TestClickOutsideStartsNewPolygon(t *testing.T) {
	m, st := newMachine(t, annotation.Seed(nil, false), 400, 400, 5)
	drawTriangle(t, m, geometry.Pt(10, 10), geometry.Pt(50, 10), geometry.Pt(50, 50))

	res := click(m, 200, 200)
	require.True(t, res.Committed)
	s := st.Present()
	require.Len(t, s.Polygons, 2)
	require.Equal(t, 1, s.ActiveIndex)
	require.Equal(t, "Polygon-2", s.Polygons[1].Label)
	require.Equal(t, []geometry.Point{{X: 200, Y: 200}}, s.Polygons[1].Points)
	require.False(t, s.Polygons[1].IsFinished)
}

func TestPolygonLimit(t *testing.T) {
	m, st := newMachine(t, annotation.Seed(nil, false), 400, 400, 1)
	require.True(t, click(m, 10, 10).Committed)
	// The single allowed polygon now exists; further clicks are ignored.
	require.False(t, click(m, 20, 20).Changed)
	require.Len(t, st.Present().Polygons[0].Points, 1)

	m.SetMaxPolygons(2)
	require.True(t, click(m, 20, 20).Committed)
	m.SetMaxPolygons(0)
	require.Equal(t, 2, m.MaxPolygons())
}

func TestCloseNeedsThreeVertices(t *testing.T) {
	m, st := newMachine(t, annotation.Seed(nil, false), 400, 400, 5)
	click(m, 10, 10)
	click(m, 50, 10)
	require.False(t, m.Handle(HoverStart{Polygon: 0}).Changed)
	require.False(t, m.HoveringStartVertex())

	// Clicking the start handle without the hover flag is not a close.
	require.False(t, m.Handle(Click{Pos: geometry.Pt(10, 10), OnVertex: true}).Changed)
	require.False(t, st.Present().Polygons[0].IsFinished)
}

func TestLeaveStartClearsHover(t *testing.T) {
	m, st := newMachine(t, annotation.Seed(nil, false), 400, 400, 5)
	for _, p := range []geometry.Point{{X: 10, Y: 10}, {X: 50, Y: 10}, {X: 50, Y: 50}} {
		m.Handle(Click{Pos: p})
	}
	m.Handle(HoverStart{Polygon: 0})
	m.Handle(LeaveStart{Polygon: 0})
	require.False(t, m.HoveringStartVertex())

	click(m, 10, 60)
	p := st.Present().Polygons[0]
	require.False(t, p.IsFinished)
	require.Len(t, p.Points, 4)
}

func TestRubberBandIsPreviewOnly(t *testing.T) {
	m, st := newMachine(t, annotation.Seed(nil, false), 400, 400, 5)
	click(m, 10, 10)
	click(m, 50, 10)
	before, _ := st.Stats()

	for i := 0; i < 5; i++ {
		res := m.Handle(Move{Pos: geometry.Pt(60, float64(20+i))})
		require.True(t, res.Changed)
		require.False(t, res.Committed)
	}
	after, _ := st.Stats()
	require.Equal(t, before, after)
	require.Equal(t, []geometry.Point{{X: 10, Y: 10}, {X: 50, Y: 10}, {X: 60, Y: 24}}, m.Preview())

	// The next commit carries no preview data and undo lands on committed vertices.
	click(m, 50, 50)
	require.Nil(t, st.Present().Polygons[0].Preview)
	st.Undo()
	s := st.Present()
	require.Len(t, s.Polygons[0].Points, 2)
	require.Nil(t, s.Polygons[0].Preview)
}

func TestVertexDragClampsAndCommitsOnce(t *testing.T) {
	m, st := newMachine(t, annotation.Seed(nil, false), 400, 400, 5)
	drawTriangle(t, m, geometry.Pt(10, 10), geometry.Pt(50, 10), geometry.Pt(50, 50))
	committed := st.Present()

	require.True(t, m.Handle(VertexDragStart{Polygon: 0, Vertex: 2}).Changed)
	require.Equal(t, VertexEditing, m.Mode())
	m.Handle(VertexDragMove{Polygon: 0, Vertex: 2, Pos: geometry.Pt(300, 300)})
	m.Handle(VertexDragMove{Polygon: 0, Vertex: 2, Pos: geometry.Pt(450, 480)})
	require.Equal(t, geometry.Pt(400, 400), st.Present().Polygons[0].Points[2])
	res := m.Handle(VertexDragEnd{Polygon: 0, Vertex: 2, Pos: geometry.Pt(500, 500)})
	require.True(t, res.Committed)
	require.Equal(t, Drawing, res.Mode)

	require.Equal(t, geometry.Pt(400, 400), st.Present().Polygons[0].Points[2])
	past, _ := st.Stats()
	require.Equal(t, 5, past)

	st.Undo()
	require.Equal(t, committed.Polygons[0].Points, st.Present().Polygons[0].Points)
}

func TestVertexDragOfUnfinishedPolygonCancelled(t *testing.T) {
	m, st := newMachine(t, annotation.Seed(nil, false), 400, 400, 5)
	click(m, 10, 10)
	click(m, 50, 10)

	res := m.Handle(VertexDragStart{Polygon: 0, Vertex: 1})
	require.True(t, res.Cancelled)
	require.Equal(t, Drawing, m.Mode())

	res = m.Handle(VertexDragEnd{Polygon: 0, Vertex: 1, Pos: geometry.Pt(90, 90)})
	require.True(t, res.Cancelled)
	require.Equal(t, geometry.Pt(50, 10), st.Present().Polygons[0].Points[1])
}

func TestGroupDragBakesClampedOffset(t *testing.T) {
	m, st := newMachine(t, annotation.Seed(nil, false), 400, 400, 5)
	drawTriangle(t, m, geometry.Pt(10, 10), geometry.Pt(50, 10), geometry.Pt(50, 50))
	before, _ := st.Stats()

	require.True(t, m.Handle(GroupDragStart{Polygon: 0}).Changed)
	require.Equal(t, GroupEditing, m.Mode())
	m.Handle(GroupDragMove{Polygon: 0, Offset: geometry.Pt(-40, 20)})
	require.Equal(t, geometry.Pt(-10, 20), m.GroupOffset())
	mid, _ := st.Stats()
	require.Equal(t, before, mid)

	res := m.Handle(GroupDragEnd{Polygon: 0, Offset: geometry.Pt(1000, 5)})
	require.True(t, res.Committed)
	require.Equal(t, geometry.Point{}, m.GroupOffset())
	require.Equal(t, []geometry.Point{{X: 360, Y: 15}, {X: 400, Y: 15}, {X: 400, Y: 55}}, st.Present().Polygons[0].Points)
}

func TestGroupDragWithoutMovementDoesNotCommit(t *testing.T) {
	m, st := newMachine(t, annotation.Seed(nil, false), 400, 400, 5)
	drawTriangle(t, m, geometry.Pt(10, 10), geometry.Pt(50, 10), geometry.Pt(50, 50))
	before, _ := st.Stats()

	res := m.Handle(GroupDragEnd{Polygon: 0})
	require.False(t, res.Committed)
	after, _ := st.Stats()
	require.Equal(t, before, after)
}

func TestGroupDragOfUnfinishedPolygonCancelled(t *testing.T) {
	m, _ := newMachine(t, annotation.Seed(nil, false), 400, 400, 5)
	click(m, 10, 10)
	require.True(t, m.Handle(GroupDragStart{Polygon: 0}).Cancelled)
	require.Equal(t, Drawing, m.Mode())
}

func TestFinishedPolygonsKeepThreeVertices(t *testing.T) {
	m, st := newMachine(t, annotation.Seed(nil, false), 400, 400, 30)
	events := []Event{
		Click{Pos: geometry.Pt(10, 10)}, HoverStart{Polygon: 0}, Click{Pos: geometry.Pt(10, 10), OnVertex: true},
		Click{Pos: geometry.Pt(40, 10)}, Move{Pos: geometry.Pt(41, 41)}, Click{Pos: geometry.Pt(40, 40)},
		HoverStart{Polygon: 0}, Click{Pos: geometry.Pt(10, 10), OnVertex: true},
		Click{Pos: geometry.Pt(10, 40)}, HoverStart{Polygon: 0}, Click{Pos: geometry.Pt(10, 10), OnVertex: true},
		Click{Pos: geometry.Pt(200, 200)}, Click{Pos: geometry.Pt(210, 200)},
		VertexDragStart{Polygon: 1, Vertex: 0}, GroupDragStart{Polygon: 1},
	}
	for _, ev := range events {
		m.Handle(ev)
		require.NoError(t, st.Present().Validate())
	}
	s := st.Present()
	require.Len(t, s.Polygons, 2)
	require.True(t, s.Polygons[0].IsFinished)
	require.Len(t, s.Polygons[0].Points, 3)
	require.False(t, s.Polygons[1].IsFinished)
	require.Len(t, s.Polygons[1].Points, 3)
}

func TestFabricPopulationsDoNotMix(t *testing.T) {
	pattern := annotation.Seed([]annotation.SeedPolygon{{Points: []geometry.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}}}}, false)
	st := historyStore{undo.New(pattern, undo.Config{})}
	m := New(st, Config{
		Surface:     Surface{Width: 400, Height: 400},
		MaxPolygons: 1,
		IsFabric:    true,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	// The pattern piece neither counts toward the fabric limit nor blocks the click.
	res := click(m, 50, 50)
	require.True(t, res.Committed)
	s := st.Present()
	require.Len(t, s.Polygons, 2)
	require.True(t, s.Polygons[1].IsFabric)

	// Nor can the fabric machine hover or drag it.
	require.Equal(t, Result{Mode: m.Mode()}, m.Handle(HoverStart{Polygon: 0}))
	require.False(t, m.HoveringStartVertex())
	require.False(t, m.Handle(VertexDragEnd{Polygon: 0, Vertex: 0, Pos: geometry.Pt(20, 20)}).Committed)
	require.False(t, m.Handle(GroupDragEnd{Polygon: 0, Offset: geometry.Pt(10, 10)}).Committed)
	require.Equal(t, geometry.Pt(0, 0), st.Present().Polygons[0].Points[0])
	past, _ := st.Stats()
	require.Equal(t, 1, past)
}

func TestIdleMode(t *testing.T) {
	m, _ := newMachine(t, annotation.Seed(nil, false), 400, 400, 5)
	require.Equal(t, Idle, m.Mode())
	require.Nil(t, m.Preview())
	require.Equal(t, Drawing, click(m, 5, 5).Mode)
}

func TestBoundBox(t *testing.T) {
	m, _ := newMachine(t, annotation.Seed(nil, false), 400, 400, 5)
	_, ok := m.BoundBox(10, 10, 100, 50, 0)
	require.True(t, ok)
	b, ok := m.BoundBox(10, 10, 100, 50, 90)
	require.False(t, ok)
	require.InDelta(t, -40, b.MinX, 1e-9)
}
