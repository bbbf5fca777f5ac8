/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package export renders annotation documents to SVG, PDF and PNG.
package export

import (
	"errors"
	"fmt"
	"math"

	"patchup/internal/annotation"
	"patchup/internal/geometry"
	"patchup/internal/storage"
	"patchup/internal/style"
)

// ErrEmptySurface is returned when neither the document nor its polygons
// define a drawable area.
var ErrEmptySurface = errors.New("export: empty surface")

// Options controls all exporters. Zero values fall back to style.Default()
// and the document surface.
type Options struct {
	Style style.Style
	// IncludeOpen also draws polygons that were never closed, as polylines.
	IncludeOpen bool
	// HideLabels suppresses label text.
	HideLabels bool
	// Scale multiplies the output size of raster exports; <=0 means 1.
	Scale float64
}

func (o Options) style() style.Style { return style.Default().Merge(o.Style) }

func (o Options) scale() float64 {
	if o.Scale <= 0 {
		return 1
	}
	return o.Scale
}

// shape is one polygon prepared for drawing.
type shape struct {
	points []geometry.Point
	closed bool
	label  string
	anchor geometry.Point
}

// scene is the exporter-neutral view of a document.
type scene struct {
	width, height float64
	shapes        []shape
}

// buildScene converts doc to drawable shapes. When the document has no
// surface the envelope of all points plus a margin is used.
func buildScene(doc storage.Document, opt Options) (scene, error) {
	sc := scene{width: doc.Surface.Width, height: doc.Surface.Height}
	var all []geometry.Point
	for _, dp := range doc.Polygons {
		if !dp.IsFinished && !opt.IncludeOpen {
			continue
		}
		pts := geometry.Unflatten(dp.Points)
		if len(pts) == 0 {
			continue
		}
		p := annotation.Polygon{Points: pts}
		anchor, _ := p.LabelAnchor()
		sc.shapes = append(sc.shapes, shape{
			points: pts,
			closed: dp.IsFinished,
			label:  labelText(dp, doc.IsFabric),
			anchor: anchor,
		})
		all = append(all, pts...)
	}
	if sc.width <= 0 || sc.height <= 0 {
		b, ok := geometry.BoundsOf(all)
		if !ok {
			return scene{}, ErrEmptySurface
		}
		margin := opt.style().HoverRadius() + opt.style().LineStrokeWidth
		sc.width = math.Ceil(b.MaxX + margin)
		sc.height = math.Ceil(b.MaxY + margin)
	}
	return sc, nil
}

// labelText is the label plus, for fabric pieces with a size, the size in
// parentheses.
func labelText(dp storage.DocPolygon, fabricDoc bool) string {
	if (dp.IsFabric || fabricDoc) && dp.Size != "" {
		return fmt.Sprintf("%s (%s)", dp.Label, dp.Size)
	}
	return dp.Label
}
