/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"patchup/internal/geometry"
	"patchup/internal/storage"
)

// WriteSVG renders doc as a standalone SVG document in stage coordinates.
func WriteSVG(w io.Writer, doc storage.Document, opt Options) error {
	sc, err := buildScene(doc, opt)
	if err != nil {
		return err
	}
	st := opt.style()

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%gpx\" height=\"%gpx\" viewBox=\"0 0 %g %g\">\n", sc.width, sc.height, sc.width, sc.height)
	if doc.Image != "" {
		wf("  <image href=\"%s\" x=\"0\" y=\"0\" width=\"%g\" height=\"%g\" preserveAspectRatio=\"none\"/>\n", escAttr(doc.Image), sc.width, sc.height)
	}

	line := svgColor(st.Line())
	fill := svgColor(st.Fill())
	vertex := svgColor(st.Vertex())
	for _, s := range sc.shapes {
		wf("  <g>\n")
		if s.closed {
			wf("    <polygon points=\"%s\" fill=\"%s\" fill-opacity=\"%g\" stroke=\"%s\" stroke-width=\"%g\"/>\n", svgPoints(s.points), fill, st.Opacity, line, st.LineStrokeWidth)
		} else {
			wf("    <polyline points=\"%s\" fill=\"none\" stroke=\"%s\" stroke-width=\"%g\"/>\n", svgPoints(s.points), line, st.LineStrokeWidth)
		}
		for _, p := range s.points {
			wf("    <circle cx=\"%g\" cy=\"%g\" r=\"%g\" fill=\"%s\" stroke=\"%s\" stroke-width=\"%g\"/>\n", p.X, p.Y, st.VertexRadius, vertex, vertex, st.VertexStrokeWidth)
		}
		if !opt.HideLabels && s.closed && s.label != "" {
			wf("    <text x=\"%g\" y=\"%g\" font-family=\"Helvetica, Arial, sans-serif\" font-size=\"12\" fill=\"#000\">%s</text>\n", s.anchor.X, s.anchor.Y, escText(s.label))
		}
		wf("  </g>\n")
	}
	wf("</svg>\n")

	if werr != nil {
		return fmt.Errorf("build svg: %w", werr)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

// ExportSVG writes doc to outPath, creating parent directories.
func ExportSVG(doc storage.Document, outPath string, opt Options) error {
	var buf bytes.Buffer
	if err := WriteSVG(&buf, doc, opt); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

func svgPoints(pts []geometry.Point) string {
	parts := make([]string, len(pts))
	for i, p := range pts {
		parts[i] = fmt.Sprintf("%g,%g", p.X, p.Y)
	}
	return strings.Join(parts, " ")
}

func svgColor(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func escAttr(s string) string {
	r := strings.NewReplacer("&", "&amp;", "\"", "&quot;", "<", "&lt;", "\n", " ", "\r", "")
	return r.Replace(s)
}

func escText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
