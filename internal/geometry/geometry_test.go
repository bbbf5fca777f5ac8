/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geometry

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestMinMaxEmptyAndValues(t *testing.T) {
	lo, hi := MinMax(nil)
	if !math.IsInf(lo, 1) || !math.IsInf(hi, -1) {
		t.Fatalf("empty MinMax = (%v, %v), want (+Inf, -Inf)", lo, hi)
	}
	lo, hi = MinMax([]float64{3, -2, 7, 0})
	if lo != -2 || hi != 7 {
		t.Fatalf("MinMax = (%v, %v), want (-2, 7)", lo, hi)
	}
}

func TestCentroid(t *testing.T) {
	if _, ok := Centroid(nil); ok {
		t.Fatalf("centroid of empty list should not be ok")
	}
	c, ok := Centroid([]Point{{0, 0}, {4, 0}, {4, 4}, {0, 4}})
	if !ok || c.X != 2 || c.Y != 2 {
		t.Fatalf("unexpected centroid: %+v ok=%v", c, ok)
	}
}

func TestPointInAnyPolygon(t *testing.T) {
	square := []Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	tri := []Point{{20, 20}, {40, 20}, {30, 40}}
	polys := [][]Point{square, tri}
	for _, poly := range polys {
		c, _ := Centroid(poly)
		if !PointInAnyPolygon(c, polys) {
			t.Fatalf("centroid %+v should be inside", c)
		}
	}
	if PointInAnyPolygon(Pt(500, 500), polys) {
		t.Fatalf("far point should be outside")
	}
	if PointInAnyPolygon(Pt(15, 15), polys) {
		t.Fatalf("point between shapes should be outside")
	}
	// Degenerate rings never contain anything.
	if PointInAnyPolygon(Pt(1, 1), [][]Point{{{0, 0}, {2, 2}}}) {
		t.Fatalf("two-vertex ring should not contain points")
	}
}

func TestPointInPolygonConcave(t *testing.T) {
	// U shape: the notch at x in (4,6), y in (0,6) is outside.
	u := []Point{{0, 0}, {4, 0}, {4, 6}, {6, 6}, {6, 0}, {10, 0}, {10, 10}, {0, 10}}
	if PointInPolygon(Pt(5, 3), u) {
		t.Fatalf("notch should be outside")
	}
	if !PointInPolygon(Pt(2, 3), u) || !PointInPolygon(Pt(5, 8), u) {
		t.Fatalf("arms and base should be inside")
	}
}

func TestPointInPolygonHorizontalEdgeConsistent(t *testing.T) {
	square := []Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	// Ray through the vertex row y=0 and y=10 must not flip twice.
	a := PointInPolygon(Pt(5, 0), square)
	b := PointInPolygon(Pt(5, 0), []Point{{0, 10}, {10, 10}, {10, 0}, {0, 0}})
	if a != b {
		t.Fatalf("boundary result depends on winding: %v vs %v", a, b)
	}
}

func TestRotatedBoundingBox(t *testing.T) {
	b := RotatedBoundingBox(10, 20, 30, 40, 0)
	if !near(b.MinX, 10) || !near(b.MinY, 20) || !near(b.MaxX, 40) || !near(b.MaxY, 60) {
		t.Fatalf("unrotated box mismatch: %+v", b)
	}
	b = RotatedBoundingBox(10, 20, 30, 40, 90)
	// corners: (10,20) (10,50) (-30,50) (-30,20)
	if !near(b.MinX, -30) || !near(b.MaxX, 10) || !near(b.MinY, 20) || !near(b.MaxY, 50) {
		t.Fatalf("90deg box mismatch: %+v", b)
	}
	b = RotatedBoundingBox(0, 0, 10, 10, 45)
	d := 10 * math.Sqrt2
	if !near(b.Width(), d) || !near(b.Height(), d) {
		t.Fatalf("45deg envelope should be the diagonal, got %+v", b)
	}
}

func TestClampPointIdempotent(t *testing.T) {
	for _, p := range []Point{{500, 500}, {-3, 7}, {12, -1}, {50, 50}} {
		once := ClampPoint(p, 400, 400)
		twice := ClampPoint(once, 400, 400)
		if once != twice {
			t.Fatalf("clamp not idempotent for %+v: %+v vs %+v", p, once, twice)
		}
	}
	if got := ClampPoint(Pt(500, 500), 400, 400); got != Pt(400, 400) {
		t.Fatalf("expected (400,400), got %+v", got)
	}
}

func TestClampOffset(t *testing.T) {
	bounds := Box{MinX: 10, MinY: 10, MaxX: 50, MaxY: 50}
	dx, dy := ClampOffset(bounds, -100, 500, 400, 400)
	if dx != -10 || dy != 350 {
		t.Fatalf("unexpected clamp: (%v, %v)", dx, dy)
	}
	dx2, dy2 := ClampOffset(bounds, dx, dy, 400, 400)
	if dx2 != dx || dy2 != dy {
		t.Fatalf("offset clamp not idempotent: (%v,%v) vs (%v,%v)", dx, dy, dx2, dy2)
	}
	// Larger than the surface: the max edge wins, and stays stable.
	big := Box{MinX: 0, MinY: 0, MaxX: 500, MaxY: 500}
	dx, dy = ClampOffset(big, 5, 5, 400, 400)
	dx2, dy2 = ClampOffset(big, dx, dy, 400, 400)
	if dx != -100 || dy != -100 || dx2 != dx || dy2 != dy {
		t.Fatalf("oversized clamp unstable: (%v,%v) then (%v,%v)", dx, dy, dx2, dy2)
	}
}

func TestFlattenRoundTrip(t *testing.T) {
	pts := []Point{{1, 2}, {3, 4}}
	flat := Flatten(pts)
	if len(flat) != 4 || flat[2] != 3 {
		t.Fatalf("unexpected flatten: %v", flat)
	}
	back := Unflatten(append(flat, 9))
	if len(back) != 2 || back[1] != pts[1] {
		t.Fatalf("unexpected unflatten: %v", back)
	}
}

func TestBoundsAndFitsInside(t *testing.T) {
	if _, ok := BoundsOf(nil); ok {
		t.Fatalf("bounds of nothing should not be ok")
	}
	b, _ := BoundsOf([]Point{{5, 6}, {1, 9}, {3, 2}})
	if b != (Box{MinX: 1, MinY: 2, MaxX: 5, MaxY: 9}) {
		t.Fatalf("unexpected bounds %+v", b)
	}
	if !FitsInside(b, 10, 10) || FitsInside(b, 4, 10) {
		t.Fatalf("FitsInside mismatch for %+v", b)
	}
}
