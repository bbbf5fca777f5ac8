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
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"patchup/internal/annotation"
	"patchup/internal/annotator"
	applog "patchup/internal/log"
	"patchup/internal/version"
)

// Run opens the annotation window and blocks until it is closed.
func Run(opts RunOptions) error {
	if opts.Session == nil {
		return fmt.Errorf("ui: session is required")
	}
	s := opts.Session
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("version", version.String()))

	fyneApp := app.NewWithID("patchup")
	title := "patchup"
	if opts.Title != "" {
		title = "patchup - " + opts.Title
	}
	w := fyneApp.NewWindow(title)
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1200)
	winH := prefs.IntWithFallback("window.height", 800)
	if winW < 800 {
		winW = 800
	}
	if winH < 600 {
		winH = 600
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Ready")
	canvasWidget := NewAnnotationCanvas(s, opts.Background, l)

	// Polygon list (right)
	var views []annotator.PolygonView
	selected := -1
	polyList := widget.NewList(
		func() int { return len(views) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			if i < 0 || int(i) >= len(views) {
				o.(*widget.Label).SetText("")
				return
			}
			v := views[i]
			text := v.Label
			if !v.IsFinished {
				text += " (open)"
			}
			if v.Size != "" {
				text += " - " + v.Size
			}
			o.(*widget.Label).SetText(text)
		},
	)

	labelEntry := widget.NewEntry()
	labelEntry.SetPlaceHolder("Label")
	labelEntry.OnSubmitted = func(text string) {
		if selected < 0 || selected >= len(views) || strings.TrimSpace(text) == "" {
			return
		}
		s.UpdateLabel(views[selected].ID, strings.TrimSpace(text))
	}

	sizeNames := make([]string, 0, len(annotation.SizePresets))
	for _, p := range annotation.SizePresets {
		sizeNames = append(sizeNames, p.Name)
	}
	sizeSelect := widget.NewSelect(sizeNames, func(name string) {
		if selected < 0 || selected >= len(views) {
			return
		}
		for _, p := range annotation.SizePresets {
			if p.Name == name && views[selected].Size != p.Value {
				s.UpdateSize(views[selected].ID, p.Value)
			}
		}
	})
	sizeSelect.PlaceHolder = "Fabric size"
	if !s.IsFabric() {
		sizeSelect.Disable()
	}

	deleteBtn := widget.NewButtonWithIcon("Delete", theme.DeleteIcon(), func() {
		if selected < 0 || selected >= len(views) {
			return
		}
		s.DeleteOne(views[selected].Index)
		selected = -1
		polyList.UnselectAll()
	})

	polyList.OnSelected = func(id widget.ListItemID) {
		selected = int(id)
		if selected >= 0 && selected < len(views) {
			labelEntry.SetText(views[selected].Label)
			for _, p := range annotation.SizePresets {
				if p.Value == views[selected].Size {
					sizeSelect.SetSelected(p.Name)
				}
			}
		}
	}

	maxEntry := widget.NewEntry()
	maxEntry.SetText(strconv.Itoa(s.MaxPolygons()))
	maxEntry.OnSubmitted = func(text string) {
		n, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil || n <= 0 {
			status.SetText("Max polygons must be a positive number.")
			maxEntry.SetText(strconv.Itoa(s.MaxPolygons()))
			return
		}
		s.SetMaxPolygons(n)
		status.SetText(fmt.Sprintf("Max polygons: %d", n))
	}

	undoAction := widget.NewToolbarAction(theme.ContentUndoIcon(), func() { s.Undo() })
	redoAction := widget.NewToolbarAction(theme.ContentRedoIcon(), func() { s.Redo() })
	resetAction := widget.NewToolbarAction(theme.ViewRefreshIcon(), func() {
		dialog.ShowConfirm("Reset", "Delete all polygons?", func(ok bool) {
			if ok {
				s.DeleteAll()
			}
		}, w)
	})
	saveAction := widget.NewToolbarAction(theme.DocumentSaveIcon(), func() {
		if opts.Save == nil {
			status.SetText("Nothing to save to.")
			return
		}
		if err := opts.Save(); err != nil {
			l.Error("save failed", slog.Any("err", err))
			dialog.ShowError(err, w)
			return
		}
		status.SetText("Saved.")
	})
	toolbar := widget.NewToolbar(undoAction, redoAction, widget.NewToolbarSeparator(), resetAction, saveAction)

	refresh := func() {
		views = s.ListPolygons(nil)
		if selected >= len(views) {
			selected = -1
		}
		polyList.Refresh()
		canvasWidget.Refresh()
		past, future := s.HistoryStats()
		status.SetText(fmt.Sprintf("%s | polygons %d/%d | undo %d redo %d", s.Mode(), len(views), s.MaxPolygons(), past, future))
	}
	cancel := s.Subscribe(func(annotation.State) { fyne.Do(refresh) })
	defer cancel()

	right := container.NewBorder(
		container.NewVBox(widget.NewLabel("Polygons")),
		container.NewVBox(labelEntry, sizeSelect, deleteBtn, widget.NewSeparator(), widget.NewLabel("Max polygons"), maxEntry),
		nil, nil, polyList,
	)
	split := container.NewHSplit(container.NewScroll(canvasWidget), right)
	split.Offset = 0.8
	w.SetContent(container.NewBorder(toolbar, status, nil, nil, split))

	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		w.Close()
	})

	refresh()
	w.ShowAndRun()
	return nil
}
