//go:build fyne && cgo

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
	"image/color"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"patchup/internal/annotation"
	"patchup/internal/annotator"
	"patchup/internal/background"
	"patchup/internal/export"
	"patchup/internal/geometry"
	"patchup/internal/storage"
)

// AnnotationCanvas shows the background image with the session's polygons on
// top and forwards pointer input to the session.
type AnnotationCanvas struct {
	widget.BaseWidget

	session *annotator.Session
	bg      *background.Background
	g       *Gestures
	log     *slog.Logger

	stageW, stageH float32
}

var (
	_ fyne.Tappable     = (*AnnotationCanvas)(nil)
	_ fyne.Draggable    = (*AnnotationCanvas)(nil)
	_ desktop.Hoverable = (*AnnotationCanvas)(nil)
)

func NewAnnotationCanvas(s *annotator.Session, bg *background.Background, l *slog.Logger) *AnnotationCanvas {
	c := &AnnotationCanvas{session: s, bg: bg, g: NewGestures(s), log: l, stageW: 800, stageH: 600}
	if bg != nil {
		c.stageW, c.stageH = float32(bg.StageWidth), float32(bg.StageHeight)
	}
	c.ExtendBaseWidget(c)
	return c
}

// origin is the top-left corner of the stage inside the widget; the stage is
// centred when the widget is larger.
func (c *AnnotationCanvas) origin() fyne.Position {
	size := c.Size()
	x, y := (size.Width-c.stageW)/2, (size.Height-c.stageH)/2
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return fyne.NewPos(x, y)
}

func (c *AnnotationCanvas) toStage(pos fyne.Position) geometry.Point {
	o := c.origin()
	return geometry.Point{X: float64(pos.X - o.X), Y: float64(pos.Y - o.Y)}
}

func (c *AnnotationCanvas) toScreen(p geometry.Point) fyne.Position {
	o := c.origin()
	return fyne.NewPos(o.X+float32(p.X), o.Y+float32(p.Y))
}

func (c *AnnotationCanvas) Tapped(e *fyne.PointEvent) {
	c.g.Tap(c.toStage(e.Position))
}

func (c *AnnotationCanvas) Dragged(e *fyne.DragEvent) {
	c.g.Drag(c.toStage(e.Position), geometry.Point{X: float64(e.Dragged.DX), Y: float64(e.Dragged.DY)})
}

func (c *AnnotationCanvas) DragEnd() { c.g.DragEnd() }

func (c *AnnotationCanvas) MouseIn(*desktop.MouseEvent) {}

func (c *AnnotationCanvas) MouseMoved(e *desktop.MouseEvent) {
	c.g.Move(c.toStage(e.Position))
}

func (c *AnnotationCanvas) MouseOut() { c.g.Out() }

func (c *AnnotationCanvas) MinSize() fyne.Size { return fyne.NewSize(c.stageW, c.stageH) }

func (c *AnnotationCanvas) CreateRenderer() fyne.WidgetRenderer {
	r := &annotationRenderer{
		c:     c,
		frame: canvas.NewRectangle(color.RGBA{R: 30, G: 30, B: 34, A: 255}),
	}
	if c.bg != nil && c.bg.Image != nil {
		r.bg = canvas.NewImageFromImage(c.bg.Image)
		r.bg.FillMode = canvas.ImageFillStretch
		r.bg.ScaleMode = canvas.ImageScaleSmooth
	}
	r.rebuild()
	return r
}

// annotationRenderer redraws the polygon overlay on every refresh. Finished
// and open polygons are rasterized by the export package; the rubber band,
// hover ring and labels are native canvas objects.
type annotationRenderer struct {
	c       *AnnotationCanvas
	frame   *canvas.Rectangle
	bg      *canvas.Image
	overlay *canvas.Image
	extras  []fyne.CanvasObject
	objects []fyne.CanvasObject
}

func (r *annotationRenderer) Destroy()                     {}
func (r *annotationRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *annotationRenderer) MinSize() fyne.Size           { return r.c.MinSize() }

func (r *annotationRenderer) Refresh() {
	r.rebuild()
	r.Layout(r.c.Size())
	canvas.Refresh(r.c)
}

func (r *annotationRenderer) Layout(size fyne.Size) {
	r.frame.Resize(size)
	r.frame.Move(fyne.NewPos(0, 0))
	stage := fyne.NewSize(r.c.stageW, r.c.stageH)
	o := r.c.origin()
	if r.bg != nil {
		r.bg.Resize(stage)
		r.bg.Move(o)
	}
	if r.overlay != nil {
		r.overlay.Resize(stage)
		r.overlay.Move(o)
	}
}

func (r *annotationRenderer) rebuild() {
	s := r.c.session
	st := s.State()
	sty := s.Style()

	// The dragged polygon is shown at its live offset.
	shown := st.Clone()
	if off := s.GroupOffset(); off != (geometry.Point{}) {
		if i := r.draggedPolygon(shown); i >= 0 {
			shown.Polygons[i].Points = geometry.Translate(shown.Polygons[i].Points, off.X, off.Y)
		}
	}

	doc := storage.NewDocument(shown, s.IsFabric(), "", storage.Surface{Width: float64(r.c.stageW), Height: float64(r.c.stageH)})
	img, err := export.Render(doc, nil, export.Options{Style: sty, IncludeOpen: true, HideLabels: true})
	if err != nil {
		r.c.log.Debug("overlay render skipped", slog.Any("err", err))
		r.overlay = nil
	} else {
		r.overlay = canvas.NewImageFromImage(img)
		r.overlay.FillMode = canvas.ImageFillStretch
	}

	r.extras = r.extras[:0]
	line := sty.Line()
	if pv := s.Preview(); len(pv) >= 2 {
		a, b := pv[len(pv)-2], pv[len(pv)-1]
		l := canvas.NewLine(line)
		l.StrokeWidth = float32(sty.LineStrokeWidth)
		l.Position1, l.Position2 = r.c.toScreen(a), r.c.toScreen(b)
		r.extras = append(r.extras, l)
	}
	if s.HoveringStartVertex() {
		if active, ok := st.Active(); ok && len(active.Points) > 0 {
			rad := float32(sty.HoverRadius())
			ring := canvas.NewCircle(sty.HoverVertex())
			ring.StrokeColor = sty.Vertex()
			ring.StrokeWidth = float32(sty.VertexStrokeWidth)
			p := r.c.toScreen(active.Points[0])
			ring.Move(fyne.NewPos(p.X-rad, p.Y-rad))
			ring.Resize(fyne.NewSize(2*rad, 2*rad))
			r.extras = append(r.extras, ring)
		}
	}
	for _, p := range shown.Polygons {
		if !p.IsFinished {
			continue
		}
		anchor, ok := p.LabelAnchor()
		if !ok {
			continue
		}
		t := canvas.NewText(labelFor(p, s.IsFabric()), color.Black)
		t.TextSize = 12
		t.Move(r.c.toScreen(anchor))
		r.extras = append(r.extras, t)
	}

	r.objects = []fyne.CanvasObject{r.frame}
	if r.bg != nil {
		r.objects = append(r.objects, r.bg)
	}
	if r.overlay != nil {
		r.objects = append(r.objects, r.overlay)
	}
	r.objects = append(r.objects, r.extras...)
}

// draggedPolygon is the polygon under an active group drag. The gesture
// tracker knows it; fall back to the active polygon.
func (r *annotationRenderer) draggedPolygon(st annotation.State) int {
	if r.c.g.drag == dragGroup {
		return r.c.g.polygon
	}
	return st.ActiveIndex
}

func labelFor(p annotation.Polygon, fabric bool) string {
	if (p.IsFabric || fabric) && p.Size != "" {
		return p.Label + " (" + p.Size + ")"
	}
	return p.Label
}
