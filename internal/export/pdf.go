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
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"

	"patchup/internal/geometry"
	"patchup/internal/storage"
)

// newPDF lays the scene out on a single page whose size equals the stage.
// One stage pixel maps to one point; the origin is top-left.
func newPDF(doc storage.Document, opt Options) (*gofpdf.Fpdf, error) {
	sc, err := buildScene(doc, opt)
	if err != nil {
		return nil, err
	}
	st := opt.style()

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: sc.width, Ht: sc.height},
	})
	pdf.SetTitle("Polygon annotation", true)
	pdf.SetAuthor("patchup", true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Helvetica", "", 10)
	pdf.AddPage()

	for _, s := range sc.shapes {
		pts := pdfPoints(s.points)
		pdf.SetLineWidth(st.LineStrokeWidth)
		setDrawColor(pdf, st.Line())
		if s.closed {
			setFillColor(pdf, st.Fill())
			pdf.SetAlpha(st.Opacity, "Normal")
			pdf.Polygon(pts, "F")
			pdf.SetAlpha(1, "Normal")
			pdf.Polygon(pts, "D")
		} else {
			for i := 1; i < len(pts); i++ {
				pdf.Line(pts[i-1].X, pts[i-1].Y, pts[i].X, pts[i].Y)
			}
		}

		pdf.SetLineWidth(st.VertexStrokeWidth)
		setDrawColor(pdf, st.Vertex())
		setFillColor(pdf, st.Vertex())
		for _, p := range s.points {
			pdf.Circle(p.X, p.Y, st.VertexRadius, "DF")
		}

		if !opt.HideLabels && s.closed && s.label != "" {
			pdf.SetTextColor(0, 0, 0)
			pdf.Text(s.anchor.X, s.anchor.Y, s.label)
		}
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("build pdf: %w", err)
	}
	return pdf, nil
}

// WritePDF renders doc as a one-page PDF to w.
func WritePDF(w io.Writer, doc storage.Document, opt Options) error {
	pdf, err := newPDF(doc, opt)
	if err != nil {
		return err
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// ExportPDF writes doc to outPath, creating parent directories.
func ExportPDF(doc storage.Document, outPath string, opt Options) error {
	pdf, err := newPDF(doc, opt)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func pdfPoints(pts []geometry.Point) []gofpdf.PointType {
	out := make([]gofpdf.PointType, len(pts))
	for i, p := range pts {
		out[i] = gofpdf.PointType{X: p.X, Y: p.Y}
	}
	return out
}

func setDrawColor(pdf *gofpdf.Fpdf, c color.NRGBA) {
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}

func setFillColor(pdf *gofpdf.Fpdf, c color.NRGBA) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
}
