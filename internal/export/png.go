/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"patchup/internal/geometry"
	"patchup/internal/storage"
)

// circleSegments approximates vertex handles.
const circleSegments = 16

// Render rasterizes doc. The result is transparent where nothing is drawn
// unless bg is given, in which case bg is stretched underneath.
func Render(doc storage.Document, bg image.Image, opt Options) (*image.NRGBA, error) {
	sc, err := buildScene(doc, opt)
	if err != nil {
		return nil, err
	}
	st := opt.style()
	k := opt.scale()
	w := int(math.Round(sc.width * k))
	h := int(math.Round(sc.height * k))
	if w <= 0 || h <= 0 {
		return nil, ErrEmptySurface
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	if bg != nil {
		draw.Draw(img, img.Bounds(), imaging.Resize(bg, w, h, imaging.Lanczos), image.Point{}, draw.Src)
	}

	for _, s := range sc.shapes {
		pts := scalePoints(s.points, k)
		if s.closed {
			fillPath(img, pts, st.Fill())
			for i := range pts {
				strokeSegment(img, pts[i], pts[(i+1)%len(pts)], st.LineStrokeWidth*k, st.Line())
			}
		} else {
			for i := 1; i < len(pts); i++ {
				strokeSegment(img, pts[i-1], pts[i], st.LineStrokeWidth*k, st.Line())
			}
		}
		for _, p := range pts {
			fillPath(img, circle(p, st.VertexRadius*k), st.Vertex())
		}
		if !opt.HideLabels && s.closed && s.label != "" {
			d := font.Drawer{
				Dst:  img,
				Src:  image.NewUniform(color.Black),
				Face: basicfont.Face7x13,
				Dot:  fixed.P(int(math.Round(s.anchor.X*k)), int(math.Round(s.anchor.Y*k))),
			}
			d.DrawString(s.label)
		}
	}
	return img, nil
}

// WritePNG renders doc and encodes it to w.
func WritePNG(w io.Writer, doc storage.Document, bg image.Image, opt Options) error {
	img, err := Render(doc, bg, opt)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// ExportPNG writes doc to outPath. Without a background the file is a
// transparent overlay suitable as a <name>_overlay.png companion.
func ExportPNG(doc storage.Document, outPath string, bg image.Image, opt Options) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := WritePNG(f, doc, bg, opt); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}

func scalePoints(pts []geometry.Point, k float64) []geometry.Point {
	out := make([]geometry.Point, len(pts))
	for i, p := range pts {
		out[i] = geometry.Point{X: p.X * k, Y: p.Y * k}
	}
	return out
}

// fillPath fills the closed path through pts with col using non-zero winding.
func fillPath(img *image.NRGBA, pts []geometry.Point, col color.NRGBA) {
	if len(pts) < 3 {
		return
	}
	b := img.Bounds()
	r := vector.NewRasterizer(b.Dx(), b.Dy())
	r.DrawOp = draw.Over
	r.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, p := range pts[1:] {
		r.LineTo(float32(p.X), float32(p.Y))
	}
	r.ClosePath()
	r.Draw(img, b, image.NewUniform(col), image.Point{})
}

// strokeSegment draws a line of the given width as a filled quad.
func strokeSegment(img *image.NRGBA, a, b geometry.Point, width float64, col color.NRGBA) {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 || width <= 0 {
		return
	}
	nx, ny := -dy/l*width/2, dx/l*width/2
	fillPath(img, []geometry.Point{
		{X: a.X + nx, Y: a.Y + ny},
		{X: b.X + nx, Y: b.Y + ny},
		{X: b.X - nx, Y: b.Y - ny},
		{X: a.X - nx, Y: a.Y - ny},
	}, col)
}

func circle(c geometry.Point, radius float64) []geometry.Point {
	out := make([]geometry.Point, circleSegments)
	for i := range out {
		a := 2 * math.Pi * float64(i) / circleSegments
		out[i] = geometry.Point{X: c.X + radius*math.Cos(a), Y: c.Y + radius*math.Sin(a)}
	}
	return out
}
