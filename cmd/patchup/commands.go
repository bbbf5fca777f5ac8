/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"patchup/internal/annotator"
	"patchup/internal/background"
	"patchup/internal/config"
	"patchup/internal/crash"
	"patchup/internal/drawing"
	"patchup/internal/export"
	"patchup/internal/geometry"
	applog "patchup/internal/log"
	"patchup/internal/script"
	"patchup/internal/storage"
	"patchup/internal/ui"
	"patchup/internal/undo"
)

// usageError marks bad invocations; main exits with 2 for these.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

// sessionOptions maps the config onto annotator options.
func sessionOptions(cfg config.AppConfig) annotator.Options {
	return annotator.Options{
		IsFabric:    cfg.Canvas.Fabric,
		MaxPolygons: cfg.Canvas.MaxPolygons,
		History:     undo.Config{MaxDepth: cfg.History.MaxDepth},
		Style:       cfg.Style,
	}
}

// attachJournal records every commit of sess under key. An empty path
// leaves the session unjournaled; the returned close func is never nil.
func attachJournal(ctx context.Context, sess *annotator.Session, path, key string, keep int) (*storage.Journal, func(), error) {
	if strings.TrimSpace(path) == "" {
		return nil, func() {}, nil
	}
	j, err := storage.OpenJournal(ctx, path)
	if err != nil {
		return nil, func() {}, err
	}
	sess.OnCommit(j.Recorder(key, keep))
	return j, func() { _ = j.Close() }, nil
}

// runCheck validates a polygons document and prints a summary.
func runCheck(args []string, out io.Writer) error {
	if len(args) < 1 {
		return usageError{"check requires <polygons.json>"}
	}
	doc, err := storage.LoadDocument(args[0])
	if err != nil {
		return err
	}
	st, err := doc.State()
	if err != nil {
		return err
	}
	finished := 0
	for _, p := range st.Polygons {
		if p.IsFinished {
			finished++
		}
	}
	_, _ = fmt.Fprintf(out, "Document: %s\n", args[0])
	_, _ = fmt.Fprintf(out, "Fabric: %t\n", doc.IsFabric)
	_, _ = fmt.Fprintf(out, "Surface: %gx%g\n", doc.Surface.Width, doc.Surface.Height)
	_, _ = fmt.Fprintf(out, "Polygons: %d (%d finished)\n", len(st.Polygons), finished)
	return nil
}

// runReplay plays a YAML interaction script headlessly and writes the
// resulting document, or the label payload with -labeled.
func runReplay(ctx context.Context, cfg config.AppConfig, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	outPath := fs.String("o", "", "write the resulting polygons.json here instead of stdout")
	labeled := fs.Bool("labeled", false, "print label -> flattened points of finished polygons")
	if err := fs.Parse(reorder(args)); err != nil {
		return usageError{err.Error()}
	}
	if fs.NArg() < 1 {
		return usageError{"replay requires <events.yaml>"}
	}
	src, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	sc, errs := script.Parse(string(src))
	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("%s: %s", fs.Arg(0), strings.Join(msgs, "; "))
	}

	opts := sc.Options(sessionOptions(cfg))
	if opts.Surface == (drawing.Surface{}) {
		return usageError{"script needs a surface: {width, height}"}
	}
	opts.Name = fs.Arg(0)
	sess := annotator.New(opts)
	_, closeJournal, err := attachJournal(ctx, sess, cfg.History.Journal, fs.Arg(0), cfg.History.JournalKeep)
	if err != nil {
		return err
	}
	defer closeJournal()

	if _, err := script.Play(applog.ContextWithSession(ctx, fs.Arg(0)), sess, sc.Steps); err != nil {
		return err
	}

	if *labeled {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sess.Labeled())
	}
	doc := storage.NewDocument(sess.State(), sess.IsFabric(), "", storage.Surface{Width: opts.Surface.Width, Height: opts.Surface.Height})
	if *outPath != "" {
		if err := storage.SaveDocument(*outPath, doc); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Wrote %s (%d polygons)\n", *outPath, len(doc.Polygons))
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// runExport renders a polygons document; the format follows the extension.
func runExport(cfg config.AppConfig, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	includeOpen := fs.Bool("open", false, "also draw polygons that were never closed")
	noLabels := fs.Bool("no-labels", false, "omit labels")
	scale := fs.Float64("scale", 1, "raster scale factor for png")
	if err := fs.Parse(reorder(args)); err != nil {
		return usageError{err.Error()}
	}
	if fs.NArg() < 2 {
		return usageError{"export requires <polygons.json> <out.svg|out.pdf|out.png>"}
	}
	doc, err := storage.LoadDocument(fs.Arg(0))
	if err != nil {
		return err
	}
	opt := export.Options{Style: cfg.Style, IncludeOpen: *includeOpen, HideLabels: *noLabels, Scale: *scale}
	if err := export.Export(doc, fs.Arg(1), opt); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Exported %s\n", fs.Arg(1))
	return nil
}

// runPayload prints the segmentation payload of a document. With an image
// the points are scaled back to source image pixels.
func runPayload(cfg config.AppConfig, args []string, out io.Writer) error {
	if len(args) < 1 {
		return usageError{"payload requires <polygons.json> [image]"}
	}
	doc, err := storage.LoadDocument(args[0])
	if err != nil {
		return err
	}
	st, err := doc.State()
	if err != nil {
		return err
	}
	sess := annotator.New(annotator.Options{IsFabric: doc.IsFabric, Initial: &st})
	payload := sess.Labeled()
	if len(args) > 1 {
		bg, err := background.Load(args[1], cfg.Canvas.AnnotateWidth)
		if err != nil {
			return err
		}
		for label, flat := range payload {
			payload[label] = geometry.Flatten(bg.ToSource(geometry.Unflatten(flat)))
		}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// runHistory lists the journaled commits recorded for a document.
func runHistory(ctx context.Context, cfg config.AppConfig, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	limit := fs.Int("n", 10, "number of entries to show")
	if err := fs.Parse(reorder(args)); err != nil {
		return usageError{err.Error()}
	}
	if fs.NArg() < 1 {
		return usageError{"history requires <polygons.json>"}
	}
	docPath, _ := filepath.Abs(fs.Arg(0))
	jpath := cfg.History.Journal
	if jpath == "" {
		jpath = storage.JournalPath(filepath.Dir(docPath))
	}
	if _, err := os.Stat(jpath); err != nil {
		return fmt.Errorf("no journal at %s: %w", jpath, err)
	}
	j, err := storage.OpenJournal(ctx, jpath)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()
	entries, err := j.List(ctx, docPath, *limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintf(out, "No commits journaled for %s\n", docPath)
		return nil
	}
	for _, e := range entries {
		_, _ = fmt.Fprintf(out, "%6d  %s  %d polygons\n", e.ID, e.TS.Local().Format("2006-01-02 15:04:05"), e.Polygons)
	}
	return nil
}

// runUI opens the desktop editor on an image. Polygons are read from and
// saved to polygons.json next to the image unless a path is given.
func runUI(ctx context.Context, cfg config.AppConfig, cfgPath string, target *crash.Target, args []string) error {
	fs := flag.NewFlagSet("ui", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	restore := fs.Bool("restore", false, "start from the last journaled state instead of the document")
	if err := fs.Parse(reorder(args)); err != nil {
		return usageError{err.Error()}
	}
	if fs.NArg() < 1 {
		return usageError{"ui requires <image> [polygons.json]"}
	}
	l := applog.WithComponent("cli")
	imgPath := fs.Arg(0)
	docPath := filepath.Join(filepath.Dir(imgPath), storage.DocumentFileName)
	if fs.NArg() > 1 {
		docPath = fs.Arg(1)
	}
	docPath, _ = filepath.Abs(docPath)

	bg, err := background.Load(imgPath, cfg.Canvas.AnnotateWidth)
	if err != nil {
		return err
	}
	opts := sessionOptions(cfg)
	opts.Surface = drawing.Surface{Width: bg.StageWidth, Height: bg.StageHeight}
	if _, statErr := os.Stat(docPath); statErr == nil {
		doc, err := storage.LoadDocument(docPath)
		if err != nil {
			return err
		}
		st, err := doc.State()
		if err != nil {
			return err
		}
		opts.IsFabric = opts.IsFabric || doc.IsFabric
		opts.Initial = &st
	}
	opts.Name = docPath
	sess := annotator.New(opts)

	jpath := cfg.History.Journal
	if jpath == "" {
		jpath = storage.JournalPath(filepath.Dir(docPath))
	}
	j, closeJournal, err := attachJournal(ctx, sess, jpath, docPath, cfg.History.JournalKeep)
	if err != nil {
		l.Warn("journal unavailable", slog.String("path", jpath), slog.Any("err", err))
	}
	defer closeJournal()
	if *restore && j != nil {
		if st, ts, ok, err := j.Latest(ctx, docPath); err != nil {
			l.Warn("journal restore failed", slog.Any("err", err))
		} else if ok {
			sess.Restore(st)
			l.Info("restored from journal", slog.Time("at", ts))
		}
	}

	snapshot := func() storage.Document {
		return storage.NewDocument(sess.State(), sess.IsFabric(), filepath.Base(imgPath), storage.Surface{Width: bg.StageWidth, Height: bg.StageHeight})
	}
	target.DocumentPath = docPath
	target.Snapshot = snapshot

	if cfgPath != "" {
		wctx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := config.Watch(wctx, cfgPath, func(c config.AppConfig) {
			sess.SetMaxPolygons(c.Canvas.MaxPolygons)
			sess.SetStyle(c.Style)
			applog.SetLevel(c.Logging.Level)
		}); err != nil {
			l.Debug("config watch disabled", slog.Any("err", err))
		}
	}

	return ui.Run(ui.RunOptions{
		Session:    sess,
		Background: bg,
		Title:      filepath.Base(imgPath),
		Save:       func() error { return storage.SaveDocument(docPath, snapshot()) },
	})
}

// reorder moves flags in front of positional arguments so both
// "replay -o out.json in.yaml" and "replay in.yaml -o out.json" work.
func reorder(args []string) []string {
	var flags, pos []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "-") && len(a) > 1 {
			flags = append(flags, a)
			if !strings.Contains(a, "=") && i+1 < len(args) && takesValue(a) {
				flags = append(flags, args[i+1])
				i++
			}
			continue
		}
		pos = append(pos, a)
	}
	return append(flags, pos...)
}

func takesValue(flagName string) bool {
	switch strings.TrimLeft(flagName, "-") {
	case "o", "scale", "n":
		return true
	}
	return false
}
