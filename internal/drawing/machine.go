/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package drawing turns pointer events into polygon store updates.
//
// The Machine owns the interaction state that is not part of the store: the
// start-vertex hover flag, the vertex being dragged and the on-screen offset of
// a dragged polygon. Every store update it issues is tagged as commit (a new
// undo entry) or preview (transient feedback that never reaches history).
// A Machine is not safe for concurrent use; callers serialize events.
package drawing

import (
	"context"
	"log/slog"

	"patchup/internal/annotation"
	"patchup/internal/geometry"
	applog "patchup/internal/log"
)

// Mode is the interaction mode derived from store and drag state.
type Mode int

const (
	// Idle means no polygon is active; the next click starts one.
	Idle Mode = iota
	// Drawing means clicks extend or close the active polygon.
	Drawing
	VertexEditing
	GroupEditing
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Drawing:
		return "drawing"
	case VertexEditing:
		return "vertex-editing"
	case GroupEditing:
		return "group-editing"
	default:
		return "unknown"
	}
}

// DefaultMaxPolygons is the polygon limit used when Config leaves it unset.
const DefaultMaxPolygons = 30

// Store is the slice of the polygon store the machine reads and writes.
type Store interface {
	State() annotation.State
	Apply(next annotation.State, commit bool)
}

// Surface is the drawable area in surface coordinates.
type Surface struct {
	Width, Height float64
}

// Config configures a Machine.
type Config struct {
	Surface     Surface
	MaxPolygons int
	// IsFabric selects the population the machine draws and hit-tests.
	IsFabric bool
	Logger   *slog.Logger
	// Context carries the session tag into log records; see log.ContextWithSession.
	Context context.Context
}

// Result describes the effect of one event.
type Result struct {
	// Changed is set when the store or the machine's own state moved.
	Changed bool
	// Committed is set when a history entry was recorded.
	Committed bool
	// Cancelled tells the renderer to stop a drag it started.
	Cancelled bool
	Mode      Mode
}

type vertexDrag struct{ polygon, vertex int }

type groupDrag struct {
	polygon int
	bounds  geometry.Box
}

// Machine is the drawing state machine.
type Machine struct {
	store    Store
	surface  Surface
	max      int
	isFabric bool
	log      *slog.Logger
	logCtx   context.Context

	hovering   bool
	hoverIndex int
	vertex     *vertexDrag
	group      *groupDrag
	offset     geometry.Point
}

// New creates a machine bound to store.
func New(store Store, cfg Config) *Machine {
	l := cfg.Logger
	if l == nil {
		l = applog.WithComponent("drawing")
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	m := &Machine{store: store, surface: cfg.Surface, isFabric: cfg.IsFabric, log: l, logCtx: ctx, max: DefaultMaxPolygons}
	if cfg.MaxPolygons != 0 {
		m.SetMaxPolygons(cfg.MaxPolygons)
	}
	return m
}

// SetSurface updates the drawable area used by drag bounds.
func (m *Machine) SetSurface(s Surface) { m.surface = s }

// SetMaxPolygons changes the polygon limit. Non-positive values are ignored.
func (m *Machine) SetMaxPolygons(n int) {
	if n <= 0 {
		m.log.WarnContext(m.logCtx, "ignoring non-positive polygon limit", slog.Int("max", n))
		return
	}
	m.max = n
}

func (m *Machine) MaxPolygons() int { return m.max }

// Mode reports the current interaction mode.
func (m *Machine) Mode() Mode {
	switch {
	case m.vertex != nil:
		return VertexEditing
	case m.group != nil:
		return GroupEditing
	}
	if _, ok := m.store.State().Active(); !ok {
		return Idle
	}
	return Drawing
}

// HoveringStartVertex reports whether a click would close the active polygon.
func (m *Machine) HoveringStartVertex() bool { return m.hovering }

// GroupOffset is the on-screen offset of the polygon being dragged. It is
// zero outside a group drag.
func (m *Machine) GroupOffset() geometry.Point { return m.offset }

// Preview returns the rubber-band vertex list of the active polygon: its
// committed vertices plus the last pointer position. Nil when not drawing.
func (m *Machine) Preview() []geometry.Point {
	p, ok := m.store.State().Active()
	if !ok || p.IsFinished || len(p.Preview) == 0 {
		return nil
	}
	return append([]geometry.Point(nil), p.Preview...)
}

// BoundBox reports the envelope of a rectangle rotated by degrees about
// (x, y) and whether it stays on the surface. Renderers reject a transform
// of a rotated shape when ok is false.
func (m *Machine) BoundBox(x, y, w, h, degrees float64) (geometry.Box, bool) {
	b := geometry.RotatedBoundingBox(x, y, w, h, degrees)
	return b, geometry.FitsInside(b, m.surface.Width, m.surface.Height)
}

// Cancel abandons hover and drag state, e.g. after the store was rewound by
// undo. Nothing is written to the store.
func (m *Machine) Cancel() {
	m.hovering = false
	m.vertex = nil
	m.group = nil
	m.offset = geometry.Point{}
}

// Handle applies one event.
func (m *Machine) Handle(ev Event) Result {
	var res Result
	switch e := ev.(type) {
	case Click:
		res = m.click(e)
	case Move:
		res = m.move(e)
	case HoverStart:
		res = m.hoverStart(e)
	case LeaveStart:
		res = m.leaveStart(e)
	case VertexDragStart:
		res = m.vertexStart(e.Polygon, e.Vertex)
	case VertexDragMove:
		res = m.vertexMove(e)
	case VertexDragEnd:
		res = m.vertexEnd(e)
	case GroupDragStart:
		res = m.groupStart(e.Polygon)
	case GroupDragMove:
		res = m.groupMove(e)
	case GroupDragEnd:
		res = m.groupEnd(e)
	default:
		m.ignore("event", "unknown event type")
	}
	res.Mode = m.Mode()
	return res
}

func (m *Machine) click(e Click) Result {
	s := m.store.State()
	if s.Count(m.isFabric) >= m.max {
		return m.ignore("click", "polygon limit reached")
	}
	if e.OnVertex && !m.hovering {
		return m.ignore("click", "on vertex handle")
	}

	active, ok := s.Active()
	if m.hovering && ok && m.hoverIndex == s.ActiveIndex && active.CanClose() {
		next := s.WithoutPreview()
		next.Polygons[s.ActiveIndex].IsFinished = true
		m.hovering = false
		m.commit("close", next)
		return Result{Changed: true, Committed: true}
	}

	if geometry.PointInAnyPolygon(e.Pos, s.FinishedRings(m.isFabric)) {
		return m.ignore("click", "inside finished polygon")
	}

	next := s.WithoutPreview()
	pos := e.Pos
	if !ok || active.IsFinished {
		p := annotation.NewPolygon(len(next.Polygons), m.isFabric, &pos)
		next.Polygons = append(next.Polygons, p)
		next.ActiveIndex = len(next.Polygons) - 1
		m.hovering = false
		m.commit("start", next)
		return Result{Changed: true, Committed: true}
	}
	ap := &next.Polygons[s.ActiveIndex]
	ap.Points = append(ap.Points, pos)
	m.commit("vertex", next)
	return Result{Changed: true, Committed: true}
}

func (m *Machine) move(e Move) Result {
	if m.vertex != nil || m.group != nil {
		return Result{}
	}
	s := m.store.State()
	active, ok := s.Active()
	if !ok || active.IsFinished {
		return Result{}
	}
	next := s.Clone()
	preview := make([]geometry.Point, 0, len(active.Points)+1)
	preview = append(preview, active.Points...)
	next.Polygons[s.ActiveIndex].Preview = append(preview, e.Pos)
	m.store.Apply(next, false)
	return Result{Changed: true}
}

func (m *Machine) hoverStart(e HoverStart) Result {
	s := m.store.State()
	if e.Polygon < 0 || e.Polygon >= len(s.Polygons) || s.Polygons[e.Polygon].IsFabric != m.isFabric || !s.Polygons[e.Polygon].CanClose() {
		return Result{}
	}
	m.hovering = true
	m.hoverIndex = e.Polygon
	return Result{Changed: true}
}

func (m *Machine) leaveStart(LeaveStart) Result {
	if !m.hovering {
		return Result{}
	}
	m.hovering = false
	return Result{Changed: true}
}

func (m *Machine) vertexStart(polygon, vertex int) Result {
	s := m.store.State()
	if polygon < 0 || polygon >= len(s.Polygons) {
		return m.ignore("vertex-drag", "unknown polygon")
	}
	p := s.Polygons[polygon]
	if p.IsFabric != m.isFabric {
		return m.ignore("vertex-drag", "other population")
	}
	if vertex < 0 || vertex >= len(p.Points) {
		return m.ignore("vertex-drag", "unknown vertex")
	}
	if !p.IsFinished {
		m.vertex = nil
		m.log.DebugContext(m.logCtx, "vertex drag cancelled", slog.Int("polygon", polygon), slog.String("reason", "polygon not finished"))
		return Result{Cancelled: true}
	}
	m.vertex = &vertexDrag{polygon: polygon, vertex: vertex}
	return Result{Changed: true}
}

func (m *Machine) vertexMove(e VertexDragMove) Result {
	if r, ok := m.ensureVertexDrag(e.Polygon, e.Vertex); !ok {
		return r
	}
	s := m.store.State()
	next := s.Clone()
	next.Polygons[e.Polygon].Points[e.Vertex] = geometry.ClampPoint(e.Pos, m.surface.Width, m.surface.Height)
	m.store.Apply(next, false)
	return Result{Changed: true}
}

func (m *Machine) vertexEnd(e VertexDragEnd) Result {
	if r, ok := m.ensureVertexDrag(e.Polygon, e.Vertex); !ok {
		return r
	}
	m.vertex = nil
	next := m.store.State().WithoutPreview()
	next.Polygons[e.Polygon].Points[e.Vertex] = geometry.ClampPoint(e.Pos, m.surface.Width, m.surface.Height)
	m.commit("move-vertex", next)
	return Result{Changed: true, Committed: true}
}

// ensureVertexDrag starts a drag implicitly when the renderer skipped the
// start event, and rejects events for a different vertex.
func (m *Machine) ensureVertexDrag(polygon, vertex int) (Result, bool) {
	if m.vertex != nil && m.vertex.polygon == polygon && m.vertex.vertex == vertex {
		return Result{}, true
	}
	r := m.vertexStart(polygon, vertex)
	return r, m.vertex != nil
}

func (m *Machine) groupStart(polygon int) Result {
	s := m.store.State()
	if polygon < 0 || polygon >= len(s.Polygons) {
		return m.ignore("group-drag", "unknown polygon")
	}
	p := s.Polygons[polygon]
	if p.IsFabric != m.isFabric {
		return m.ignore("group-drag", "other population")
	}
	if !p.IsFinished {
		m.group = nil
		m.log.DebugContext(m.logCtx, "group drag cancelled", slog.Int("polygon", polygon), slog.String("reason", "polygon not finished"))
		return Result{Cancelled: true}
	}
	b, _ := p.Bounds()
	m.group = &groupDrag{polygon: polygon, bounds: b}
	m.offset = geometry.Point{}
	return Result{Changed: true}
}

func (m *Machine) ensureGroupDrag(polygon int) (Result, bool) {
	if m.group != nil && m.group.polygon == polygon {
		return Result{}, true
	}
	r := m.groupStart(polygon)
	return r, m.group != nil
}

func (m *Machine) groupMove(e GroupDragMove) Result {
	if r, ok := m.ensureGroupDrag(e.Polygon); !ok {
		return r
	}
	dx, dy := geometry.ClampOffset(m.group.bounds, e.Offset.X, e.Offset.Y, m.surface.Width, m.surface.Height)
	m.offset = geometry.Point{X: dx, Y: dy}
	return Result{Changed: true}
}

func (m *Machine) groupEnd(e GroupDragEnd) Result {
	if r, ok := m.ensureGroupDrag(e.Polygon); !ok {
		return r
	}
	dx, dy := geometry.ClampOffset(m.group.bounds, e.Offset.X, e.Offset.Y, m.surface.Width, m.surface.Height)
	m.group = nil
	m.offset = geometry.Point{}
	if dx == 0 && dy == 0 {
		return Result{Changed: true}
	}
	next := m.store.State().WithoutPreview()
	p := &next.Polygons[e.Polygon]
	p.Points = geometry.Translate(p.Points, dx, dy)
	m.commit("move-polygon", next)
	return Result{Changed: true, Committed: true}
}

func (m *Machine) commit(op string, next annotation.State) {
	m.store.Apply(next, true)
	m.log.DebugContext(m.logCtx, "commit", slog.String("op", op), slog.Int("polygons", len(next.Polygons)), slog.Int("active", next.ActiveIndex))
}

func (m *Machine) ignore(event, reason string) Result {
	m.log.DebugContext(m.logCtx, "input ignored", slog.String("event", event), slog.String("reason", reason))
	return Result{}
}
