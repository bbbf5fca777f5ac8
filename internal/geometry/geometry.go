/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package geometry holds the 2D primitives used by the annotation engine:
// envelopes, centroids, hit-testing and the bound clamps applied while dragging.
// Values are float64 canvas-local coordinates with the origin at the top-left.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Point is a 2D canvas coordinate.
type Point struct{ X, Y float64 }

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Add returns p translated by (dx, dy).
func (p Point) Add(dx, dy float64) Point { return Point{X: p.X + dx, Y: p.Y + dy} }

// Box is an axis-aligned envelope given by its min and max corners.
type Box struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

func (b Box) Width() float64  { return b.MaxX - b.MinX }
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// Contains reports whether p lies in the closed box.
func (b Box) Contains(p Point) bool {
	return p.X >= b.MinX && p.Y >= b.MinY && p.X <= b.MaxX && p.Y <= b.MaxY
}

// MinMax returns the smallest and largest value in a single pass.
// An empty input yields (+Inf, -Inf); callers must guard against that.
func MinMax(values []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Centroid returns the arithmetic mean of all vertices.
// ok is false for an empty list.
func Centroid(points []Point) (c Point, ok bool) {
	if len(points) == 0 {
		return Point{}, false
	}
	for _, p := range points {
		c.X += p.X
		c.Y += p.Y
	}
	n := float64(len(points))
	return Point{X: c.X / n, Y: c.Y / n}, true
}

// BoundsOf returns the envelope of points; ok is false when points is empty.
func BoundsOf(points []Point) (Box, bool) {
	if len(points) == 0 {
		return Box{}, false
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}
	minX, maxX := MinMax(xs)
	minY, maxY := MinMax(ys)
	return Box{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}, true
}

// PointInPolygon tests p against one ring using even-odd ray casting.
// The strict comparisons on y keep a horizontal edge from being counted twice;
// a point exactly on an edge has no guaranteed answer.
func PointInPolygon(p Point, poly []Point) bool {
	if len(poly) < 3 {
		return false
	}
	inside := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		xi, yi := poly[i].X, poly[i].Y
		xj, yj := poly[j].X, poly[j].Y
		if (yi > p.Y) != (yj > p.Y) && p.X < (xj-xi)*(p.Y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// PointInAnyPolygon reports whether p is inside at least one of polys.
// Each ring is tested independently; overlapping rings do not cancel out.
func PointInAnyPolygon(p Point, polys [][]Point) bool {
	for _, poly := range polys {
		if PointInPolygon(p, poly) {
			return true
		}
	}
	return false
}

// RotatedBoundingBox rotates the rectangle anchored at (x, y) about that anchor
// by degrees and returns the axis-aligned envelope of the four corners.
func RotatedBoundingBox(x, y, width, height, degrees float64) Box {
	anchor := r2.Vec{X: x, Y: y}
	rot := r2.NewRotation(degrees*math.Pi/180, anchor)
	corners := []r2.Vec{
		anchor,
		{X: x + width, Y: y},
		{X: x + width, Y: y + height},
		{X: x, Y: y + height},
	}
	xs := make([]float64, len(corners))
	ys := make([]float64, len(corners))
	for i, c := range corners {
		v := rot.Rotate(c)
		xs[i], ys[i] = v.X, v.Y
	}
	minX, maxX := MinMax(xs)
	minY, maxY := MinMax(ys)
	return Box{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

// FitsInside reports whether b lies entirely within [0,w]x[0,h].
func FitsInside(b Box, w, h float64) bool {
	return b.MinX >= 0 && b.MinY >= 0 && b.MaxX <= w && b.MaxY <= h
}

// ClampPoint constrains p to [0,w]x[0,h].
func ClampPoint(p Point, w, h float64) Point {
	return Point{X: clamp(p.X, 0, w), Y: clamp(p.Y, 0, h)}
}

// ClampOffset constrains a drag offset so that bounds shifted by (dx, dy)
// stays inside [0,w]x[0,h]. The max edge wins when the shape is larger than
// the surface, matching the order the checks are applied while dragging.
func ClampOffset(bounds Box, dx, dy, w, h float64) (float64, float64) {
	if bounds.MinY+dy < 0 {
		dy = -bounds.MinY
	}
	if bounds.MinX+dx < 0 {
		dx = -bounds.MinX
	}
	if bounds.MaxY+dy > h {
		dy = h - bounds.MaxY
	}
	if bounds.MaxX+dx > w {
		dx = w - bounds.MaxX
	}
	return dx, dy
}

// Translate returns a copy of points shifted by (dx, dy).
func Translate(points []Point, dx, dy float64) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = p.Add(dx, dy)
	}
	return out
}

// Flatten projects points into [x0, y0, x1, y1, ...] for renderers and services.
func Flatten(points []Point) []float64 {
	out := make([]float64, 0, 2*len(points))
	for _, p := range points {
		out = append(out, p.X, p.Y)
	}
	return out
}

// Unflatten is the inverse of Flatten; a trailing odd value is dropped.
func Unflatten(values []float64) []Point {
	out := make([]Point, 0, len(values)/2)
	for i := 0; i+1 < len(values); i += 2 {
		out = append(out, Point{X: values[i], Y: values[i+1]})
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
