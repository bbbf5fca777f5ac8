/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package background loads the image polygons are traced over and fits it to
// the annotation surface.
package background

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder

	"patchup/internal/geometry"
)

// OverlaySuffix names the companion image drawn on top of the background,
// e.g. scrap.jpg -> scrap_overlay.png.
const OverlaySuffix = "_overlay.png"

// sniffLen is how many header bytes filetype needs to match any kind.
const sniffLen = 262

var ErrNotImage = errors.New("not an image")

// Background is a decoded background image fitted to the annotate width.
type Background struct {
	Path string
	// MIME and Ext come from content sniffing, not the file name.
	MIME string
	Ext  string
	// Width and Height are the source pixel dimensions.
	Width, Height int
	// Stage is the surface size the image is shown at.
	StageWidth, StageHeight float64
	// ScaleRatio maps stage coordinates back to source pixels (stage = source * ratio).
	ScaleRatio float64
	Image      image.Image
	// Overlay is the companion overlay image, nil when there is none.
	Overlay image.Image
}

// Fit returns the stage size and scale ratio for an image of the given size.
// Images wider than annotateWidth are scaled down to exactly that width;
// narrower ones are shown at their own size with ratio 1.
func Fit(width, height, annotateWidth int) (stageW, stageH, ratio float64) {
	if annotateWidth > 0 && width > annotateWidth {
		ratio = float64(annotateWidth) / float64(width)
		return float64(annotateWidth), float64(height) * ratio, ratio
	}
	return float64(width), float64(height), 1
}

// OverlayPath returns the companion overlay path for an image path.
func OverlayPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + OverlaySuffix
}

// Load reads, sniffs and decodes the image at path and fits it to
// annotateWidth. The overlay companion is loaded when present.
func Load(path string, annotateWidth int) (*Background, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read background: %w", err)
	}
	bg, err := Decode(bytes.NewReader(data), annotateWidth)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	bg.Path = path
	if ov, err := os.ReadFile(OverlayPath(path)); err == nil {
		img, err := imaging.Decode(bytes.NewReader(ov))
		if err != nil {
			return nil, fmt.Errorf("decode overlay: %w", err)
		}
		bg.Overlay = imaging.Resize(img, int(bg.StageWidth+0.5), int(bg.StageHeight+0.5), imaging.Lanczos)
	}
	return bg, nil
}

// Decode sniffs and decodes an image stream and fits it to annotateWidth.
func Decode(r io.Reader, annotateWidth int) (*Background, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if !filetype.IsImage(head) {
		return nil, ErrNotImage
	}
	kind, err := filetype.Match(head)
	if err != nil {
		return nil, fmt.Errorf("sniff: %w", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind.Extension, err)
	}
	b := img.Bounds()
	bg := &Background{MIME: kind.MIME.Value, Ext: kind.Extension, Width: b.Dx(), Height: b.Dy()}
	bg.StageWidth, bg.StageHeight, bg.ScaleRatio = Fit(bg.Width, bg.Height, annotateWidth)
	bg.Image = img
	if bg.ScaleRatio != 1 {
		bg.Image = imaging.Resize(img, annotateWidth, 0, imaging.Lanczos)
	}
	return bg, nil
}

// ToSource maps stage coordinates back to source pixel coordinates.
func (b *Background) ToSource(points []geometry.Point) []geometry.Point {
	out := make([]geometry.Point, len(points))
	for i, p := range points {
		out[i] = geometry.Point{X: p.X / b.ScaleRatio, Y: p.Y / b.ScaleRatio}
	}
	return out
}
