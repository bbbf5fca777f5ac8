/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package style holds the visual settings renderers use for polygons. Style
// never touches the polygon store.
package style

import (
	"errors"
	"fmt"
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Style describes how polygons, their outlines and vertex handles are drawn.
type Style struct {
	LineColor         string  `yaml:"line_color" json:"lineColor"`
	FillColor         string  `yaml:"fill_color" json:"fillColor"`
	VertexColor       string  `yaml:"vertex_color" json:"vertexColor"`
	VertexRadius      float64 `yaml:"vertex_radius" json:"vertexRadius"`
	VertexStrokeWidth float64 `yaml:"vertex_stroke_width" json:"vertexStrokeWidth"`
	LineStrokeWidth   float64 `yaml:"stroke_width" json:"strokeWidth"`
	Opacity           float64 `yaml:"opacity" json:"opacity"`
}

var ErrInvalidStyle = errors.New("invalid style")

// Default returns the stock look: cyan outlines, grey fill, magenta handles.
func Default() Style {
	return Style{
		LineColor:         "#73fdff",
		FillColor:         "#c0c0c0",
		VertexColor:       "#FF019A",
		VertexRadius:      3,
		VertexStrokeWidth: 1,
		LineStrokeWidth:   2,
		Opacity:           0.7,
	}
}

// Merge returns s with every non-zero field of o applied on top.
func (s Style) Merge(o Style) Style {
	if o.LineColor != "" {
		s.LineColor = o.LineColor
	}
	if o.FillColor != "" {
		s.FillColor = o.FillColor
	}
	if o.VertexColor != "" {
		s.VertexColor = o.VertexColor
	}
	if o.VertexRadius > 0 {
		s.VertexRadius = o.VertexRadius
	}
	if o.VertexStrokeWidth > 0 {
		s.VertexStrokeWidth = o.VertexStrokeWidth
	}
	if o.LineStrokeWidth > 0 {
		s.LineStrokeWidth = o.LineStrokeWidth
	}
	if o.Opacity > 0 {
		s.Opacity = o.Opacity
	}
	return s
}

// Validate reports malformed colours and out-of-range sizes.
func (s Style) Validate() error {
	var errs []error
	for name, hex := range map[string]string{"line_color": s.LineColor, "fill_color": s.FillColor, "vertex_color": s.VertexColor} {
		if _, err := colorful.Hex(hex); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s %q", ErrInvalidStyle, name, hex))
		}
	}
	if s.VertexRadius <= 0 {
		errs = append(errs, fmt.Errorf("%w: vertex_radius must be positive", ErrInvalidStyle))
	}
	if s.Opacity < 0 || s.Opacity > 1 {
		errs = append(errs, fmt.Errorf("%w: opacity %.2f outside [0,1]", ErrInvalidStyle, s.Opacity))
	}
	return errors.Join(errs...)
}

// HoverRadius is the radius of the start vertex while the pointer is over it;
// the larger target makes closing a polygon easier.
func (s Style) HoverRadius() float64 { return 2 * s.VertexRadius }

// Line is the opaque outline colour.
func (s Style) Line() color.NRGBA { return toNRGBA(s.LineColor, Default().LineColor, 1) }

// Fill is the polygon fill colour with Opacity applied.
func (s Style) Fill() color.NRGBA { return toNRGBA(s.FillColor, Default().FillColor, s.Opacity) }

func (s Style) Vertex() color.NRGBA { return toNRGBA(s.VertexColor, Default().VertexColor, 1) }

// HoverVertex is the vertex colour blended a third of the way towards white
// in Lab space, used for the highlighted start vertex.
func (s Style) HoverVertex() color.NRGBA {
	c := parse(s.VertexColor, Default().VertexColor)
	r, g, b := c.BlendLab(colorful.Color{R: 1, G: 1, B: 1}, 1.0/3).Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}
}

// Hex normalizes a colour to lower-case #rrggbb.
func Hex(s string) (string, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return "", fmt.Errorf("%w: colour %q", ErrInvalidStyle, s)
	}
	return c.Hex(), nil
}

func parse(hex, fallback string) colorful.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		c, _ = colorful.Hex(fallback)
	}
	return c
}

func toNRGBA(hex, fallback string, opacity float64) color.NRGBA {
	r, g, b := parse(hex, fallback).RGB255()
	if opacity < 0 {
		opacity = 0
	}
	if opacity > 1 {
		opacity = 1
	}
	return color.NRGBA{R: r, G: g, B: b, A: uint8(opacity*255 + 0.5)}
}
