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
	"math"

	"patchup/internal/annotation"
	"patchup/internal/drawing"
	"patchup/internal/geometry"
	"patchup/internal/style"
)

// Dispatcher is the part of an annotator session the canvas talks to.
type Dispatcher interface {
	State() annotation.State
	Dispatch(ev drawing.Event) drawing.Result
	Style() style.Style
	IsFabric() bool
}

type dragKind int

const (
	dragNone dragKind = iota
	dragVertex
	dragGroup
	// dragIgnored swallows a drag that started on empty surface.
	dragIgnored
)

// Gestures turns raw pointer input in surface coordinates into drawing
// events. It owns hit testing so widgets only forward positions.
type Gestures struct {
	d Dispatcher

	hovering bool

	drag       dragKind
	polygon    int
	vertex     int
	dragOrigin geometry.Point
	last       geometry.Point
}

func NewGestures(d Dispatcher) *Gestures { return &Gestures{d: d} }

// Tap forwards a primary click.
func (g *Gestures) Tap(p geometry.Point) drawing.Result {
	_, _, onVertex := HitVertex(g.d.State(), g.d.IsFabric(), p, vertexTolerance(g.d.Style()))
	return g.d.Dispatch(drawing.Click{Pos: p, OnVertex: onVertex})
}

// Move forwards pointer motion and synthesizes hover enter/leave for the
// start vertex of the active polygon.
func (g *Gestures) Move(p geometry.Point) drawing.Result {
	st := g.d.State()
	near := nearStartVertex(st, p, g.d.Style().HoverRadius())
	switch {
	case near && !g.hovering:
		g.hovering = true
		g.d.Dispatch(drawing.HoverStart{Polygon: st.ActiveIndex})
	case !near && g.hovering:
		g.hovering = false
		g.d.Dispatch(drawing.LeaveStart{Polygon: st.ActiveIndex})
	}
	return g.d.Dispatch(drawing.Move{Pos: p})
}

// Out is called when the pointer leaves the surface.
func (g *Gestures) Out() {
	if g.hovering {
		g.hovering = false
		g.d.Dispatch(drawing.LeaveStart{Polygon: g.d.State().ActiveIndex})
	}
}

// Drag forwards a drag step. p is the current position and delta the motion
// since the previous step; the first step decides between vertex and group
// drags by hit testing where the drag began.
func (g *Gestures) Drag(p, delta geometry.Point) drawing.Result {
	if g.drag == dragNone {
		start := geometry.Point{X: p.X - delta.X, Y: p.Y - delta.Y}
		st := g.d.State()
		if pi, vi, ok := HitVertex(st, g.d.IsFabric(), start, vertexTolerance(g.d.Style())); ok {
			g.drag, g.polygon, g.vertex = dragVertex, pi, vi
			g.d.Dispatch(drawing.VertexDragStart{Polygon: pi, Vertex: vi})
		} else if pi := HitPolygon(st, g.d.IsFabric(), start); pi >= 0 {
			g.drag, g.polygon, g.dragOrigin = dragGroup, pi, start
			g.d.Dispatch(drawing.GroupDragStart{Polygon: pi})
		} else {
			g.drag = dragIgnored
		}
	}
	g.last = p
	switch g.drag {
	case dragVertex:
		return g.d.Dispatch(drawing.VertexDragMove{Polygon: g.polygon, Vertex: g.vertex, Pos: p})
	case dragGroup:
		return g.d.Dispatch(drawing.GroupDragMove{Polygon: g.polygon, Offset: g.offset()})
	}
	return drawing.Result{}
}

// DragEnd finishes the current drag, if any.
func (g *Gestures) DragEnd() drawing.Result {
	kind := g.drag
	g.drag = dragNone
	switch kind {
	case dragVertex:
		return g.d.Dispatch(drawing.VertexDragEnd{Polygon: g.polygon, Vertex: g.vertex, Pos: g.last})
	case dragGroup:
		return g.d.Dispatch(drawing.GroupDragEnd{Polygon: g.polygon, Offset: g.offset()})
	}
	return drawing.Result{}
}

func (g *Gestures) offset() geometry.Point {
	return geometry.Point{X: g.last.X - g.dragOrigin.X, Y: g.last.Y - g.dragOrigin.Y}
}

func vertexTolerance(s style.Style) float64 { return s.VertexRadius + s.VertexStrokeWidth }

// HitVertex returns the top-most vertex of the isFabric population within
// tol of p.
func HitVertex(st annotation.State, isFabric bool, p geometry.Point, tol float64) (polygon, vertex int, ok bool) {
	for i := len(st.Polygons) - 1; i >= 0; i-- {
		if st.Polygons[i].IsFabric != isFabric {
			continue
		}
		for j, v := range st.Polygons[i].Points {
			if math.Hypot(v.X-p.X, v.Y-p.Y) <= tol {
				return i, j, true
			}
		}
	}
	return -1, -1, false
}

// HitPolygon returns the top-most finished polygon of the isFabric
// population containing p, or -1.
func HitPolygon(st annotation.State, isFabric bool, p geometry.Point) int {
	for i := len(st.Polygons) - 1; i >= 0; i-- {
		poly := st.Polygons[i]
		if poly.IsFabric == isFabric && poly.IsFinished && geometry.PointInPolygon(p, poly.Points) {
			return i
		}
	}
	return -1
}

func nearStartVertex(st annotation.State, p geometry.Point, radius float64) bool {
	active, ok := st.Active()
	if !ok || !active.CanClose() {
		return false
	}
	first := active.Points[0]
	return math.Hypot(first.X-p.X, first.Y-p.Y) <= radius
}
