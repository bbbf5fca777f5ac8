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

import "patchup/internal/geometry"

// Event is one pointer interaction forwarded by a renderer. Positions are in
// surface coordinates; Polygon and Vertex are positions in State.Polygons and
// in the polygon's vertex list.
type Event interface{ isEvent() }

// Click is a primary-button click on the surface. OnVertex is set when the
// renderer's hit test landed on a vertex handle.
type Click struct {
	Pos      geometry.Point
	OnVertex bool
}

// Move is a pointer move over the surface.
type Move struct{ Pos geometry.Point }

// HoverStart reports the pointer entering the start vertex of a polygon.
type HoverStart struct{ Polygon int }

// LeaveStart reports the pointer leaving the start vertex of a polygon.
type LeaveStart struct{ Polygon int }

type VertexDragStart struct {
	Polygon, Vertex int
}

type VertexDragMove struct {
	Polygon, Vertex int
	Pos             geometry.Point
}

type VertexDragEnd struct {
	Polygon, Vertex int
	Pos             geometry.Point
}

type GroupDragStart struct{ Polygon int }

// GroupDragMove carries the cumulative on-screen offset since the drag began.
type GroupDragMove struct {
	Polygon int
	Offset  geometry.Point
}

type GroupDragEnd struct {
	Polygon int
	Offset  geometry.Point
}

func (Click) isEvent()           {}
func (Move) isEvent()            {}
func (HoverStart) isEvent()      {}
func (LeaveStart) isEvent()      {}
func (VertexDragStart) isEvent() {}
func (VertexDragMove) isEvent()  {}
func (VertexDragEnd) isEvent()   {}
func (GroupDragStart) isEvent()  {}
func (GroupDragMove) isEvent()   {}
func (GroupDragEnd) isEvent()    {}
