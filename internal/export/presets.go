/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"patchup/internal/background"
	"patchup/internal/storage"
)

// ErrUnknownFormat is returned for output extensions no exporter handles.
var ErrUnknownFormat = errors.New("export: unknown format")

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
	// PresetOverlay writes only the transparent PNG companion.
	PresetOverlay PresetName = "overlay"
)

// BatchOptions controls exporting one document to several formats.
//
// Files are written as <OutDir>/<Base>.<format>. Base defaults to
// "annotation"; PresetOverlay names the PNG <Base>_overlay.png instead.
type BatchOptions struct {
	Preset     PresetName
	Formats    []string // allowed: pdf, png, svg; empty means preset defaults
	OutDir     string
	Base       string
	Background image.Image // PNG only
	Options    Options
}

// Export picks the exporter from the extension of outPath.
func Export(doc storage.Document, outPath string, opt Options) error {
	switch f := formatOf(outPath); f {
	case "svg":
		return ExportSVG(doc, outPath, opt)
	case "pdf":
		return ExportPDF(doc, outPath, opt)
	case "png":
		return ExportPNG(doc, outPath, nil, opt)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(outPath))
	}
}

// BatchExport runs exports according to the given preset and returns the
// written paths in format order.
func BatchExport(doc storage.Document, opt BatchOptions) ([]string, error) {
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	base := opt.Base
	if base == "" {
		base = "annotation"
	}
	eo := opt.Options
	if opt.Preset == PresetOverlay {
		eo.HideLabels = true
	}

	var written []string
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		var out string
		var err error
		switch f {
		case "pdf":
			out = filepath.Join(opt.OutDir, base+".pdf")
			err = ExportPDF(doc, out, eo)
		case "svg":
			out = filepath.Join(opt.OutDir, base+".svg")
			err = ExportSVG(doc, out, eo)
		case "png":
			out = filepath.Join(opt.OutDir, base+".png")
			bg := opt.Background
			if opt.Preset == PresetOverlay {
				out = background.OverlayPath(out)
				bg = nil
			}
			err = ExportPNG(doc, out, bg, eo)
		default:
			return written, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
		}
		if err != nil {
			return written, fmt.Errorf("%s: %w", f, err)
		}
		written = append(written, out)
	}
	return written, nil
}

func formatOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"png", "svg"}
	case PresetPrint:
		return []string{"pdf"}
	case PresetOverlay:
		return []string{"png"}
	default:
		return []string{"svg"}
	}
}
