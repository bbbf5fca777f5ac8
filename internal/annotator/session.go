/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package annotator is the entry point renderers and toolbars talk to. A
// Session owns one polygon store with its undo history and one drawing
// machine; there are no process-wide instances.
package annotator

import (
	"context"
	"log/slog"
	"sync"

	"patchup/internal/annotation"
	"patchup/internal/drawing"
	"patchup/internal/geometry"
	applog "patchup/internal/log"
	"patchup/internal/style"
	"patchup/internal/undo"
)

// Options configures a Session.
type Options struct {
	IsFabric bool
	// Seeds, when non-nil, replaces the fresh single-polygon start state with
	// finished polygons built from external shapes. An empty non-nil slice
	// starts with no polygons at all.
	Seeds []annotation.SeedPolygon
	// Initial overrides both, e.g. with a state restored from the journal.
	Initial     *annotation.State
	Surface     drawing.Surface
	MaxPolygons int
	History     undo.Config
	Style       style.Style
	Logger      *slog.Logger
	// Name tags every log record of the session, e.g. with the document path.
	Name string
}

// PolygonView is the read model handed to renderers and downstream services.
type PolygonView struct {
	ID         string
	Index      int
	Label      string
	Points     []geometry.Point
	Flattened  []float64
	IsFabric   bool
	Size       string
	IsFinished bool
}

// Session serializes access to the store, its history and the machine.
type Session struct {
	mu       sync.Mutex
	isFabric bool
	history  *undo.History[annotation.State]
	machine  *drawing.Machine
	style    style.Style
	log      *slog.Logger
	ctx      context.Context

	subMu  sync.Mutex
	subs   map[int]func(annotation.State)
	nextID int
}

type historyStore struct {
	h *undo.History[annotation.State]
}

func (s historyStore) State() annotation.State { return s.h.Present() }

func (s historyStore) Apply(next annotation.State, commit bool) { s.h.Apply(next, commit) }

// New creates a Session.
func New(opts Options) *Session {
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("annotator")
	}
	initial := annotation.Empty(opts.IsFabric)
	switch {
	case opts.Initial != nil:
		initial = opts.Initial.WithoutPreview()
	case opts.Seeds != nil:
		initial = annotation.Seed(opts.Seeds, opts.IsFabric)
	}
	st := opts.Style
	if st == (style.Style{}) {
		st = style.Default()
	}
	ctx := context.Background()
	if opts.Name != "" {
		ctx = applog.ContextWithSession(ctx, opts.Name)
	}
	h := undo.New(initial, opts.History)
	s := &Session{
		isFabric: opts.IsFabric,
		history:  h,
		style:    st,
		log:      l,
		ctx:      ctx,
		subs:     make(map[int]func(annotation.State)),
	}
	s.machine = drawing.New(historyStore{h: h}, drawing.Config{
		Surface:     opts.Surface,
		MaxPolygons: opts.MaxPolygons,
		IsFabric:    opts.IsFabric,
		Logger:      l.With(slog.String("component", "drawing")),
		Context:     ctx,
	})
	l.DebugContext(ctx, "session created", slog.Bool("fabric", opts.IsFabric), slog.Int("polygons", len(initial.Polygons)))
	return s
}

// IsFabric reports which population this session edits.
func (s *Session) IsFabric() bool { return s.isFabric }

// State returns a deep copy of the present state, previews included.
func (s *Session) State() annotation.State {
	return s.history.Present().Clone()
}

func (s *Session) ActiveIndex() int { return s.history.Present().ActiveIndex }

// ListPolygons returns the polygons in order. A non-nil filter keeps only
// polygons whose IsFabric equals *filter.
func (s *Session) ListPolygons(filter *bool) []PolygonView {
	st := s.history.Present()
	out := make([]PolygonView, 0, len(st.Polygons))
	for i, p := range st.Polygons {
		if filter != nil && p.IsFabric != *filter {
			continue
		}
		pts := append([]geometry.Point(nil), p.Points...)
		out = append(out, PolygonView{
			ID:         p.ID,
			Index:      i,
			Label:      p.Label,
			Points:     pts,
			Flattened:  geometry.Flatten(pts),
			IsFabric:   p.IsFabric,
			Size:       p.Size,
			IsFinished: p.IsFinished,
		})
	}
	return out
}

// Labeled maps each finished polygon's label to its flattened vertices, the
// payload segmentation services consume. Later duplicates win.
func (s *Session) Labeled() map[string][]float64 {
	st := s.history.Present()
	out := make(map[string][]float64, len(st.Polygons))
	for _, p := range st.Polygons {
		if !p.IsFinished {
			continue
		}
		out[p.Label] = geometry.Flatten(p.Points)
	}
	return out
}

func (s *Session) CanUndo() bool { return s.history.CanUndo() }
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// HistoryStats returns the undo and redo depths.
func (s *Session) HistoryStats() (past, future int) { return s.history.Stats() }

// UpdateLabel renames a polygon. Unknown ids are ignored.
func (s *Session) UpdateLabel(id, label string) {
	s.write("update-label", func(st annotation.State) (annotation.State, bool) {
		i := st.IndexOf(id)
		if i < 0 || st.Polygons[i].Label == label {
			return st, false
		}
		return annotation.RenameLabel(st, id, label), true
	})
}

// UpdateSize records the fabric size of a fabric polygon.
func (s *Session) UpdateSize(id, size string) {
	s.write("update-size", func(st annotation.State) (annotation.State, bool) {
		i := st.IndexOf(id)
		if i < 0 || !st.Polygons[i].IsFabric || st.Polygons[i].Size == size {
			return st, false
		}
		return annotation.SetSize(st, id, size), true
	})
}

// DeleteOne removes the polygon at position index. Out-of-range indexes are
// ignored.
func (s *Session) DeleteOne(index int) {
	s.write("delete-one", func(st annotation.State) (annotation.State, bool) {
		if index < 0 || index >= len(st.Polygons) {
			return st, false
		}
		return annotation.DeleteOne(st, index, s.isFabric), true
	})
}

// DeleteAll resets the session to a single fresh polygon.
func (s *Session) DeleteAll() {
	s.write("delete-all", func(annotation.State) (annotation.State, bool) {
		return annotation.DeleteAll(s.isFabric), true
	})
}

// Undo steps back one committed change. Pending previews are dropped.
func (s *Session) Undo() bool { return s.step(s.history.Undo, "undo") }

// Redo re-applies the last undone change.
func (s *Session) Redo() bool { return s.step(s.history.Redo, "redo") }

// Restore replaces the state and clears history, e.g. after loading a file.
func (s *Session) Restore(st annotation.State) {
	s.mu.Lock()
	s.machine.Cancel()
	s.history.Reset(st.WithoutPreview())
	s.mu.Unlock()
	s.notify()
}

// Dispatch feeds one pointer event into the drawing machine.
func (s *Session) Dispatch(ev drawing.Event) drawing.Result {
	s.mu.Lock()
	res := s.machine.Handle(ev)
	s.mu.Unlock()
	if res.Changed {
		s.notify()
	}
	return res
}

// Mode reports the drawing machine's interaction mode.
func (s *Session) Mode() drawing.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Mode()
}

func (s *Session) Preview() []geometry.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Preview()
}

func (s *Session) HoveringStartVertex() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.HoveringStartVertex()
}

func (s *Session) GroupOffset() geometry.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.GroupOffset()
}

// BoundBox checks a rotated rectangle against the surface.
func (s *Session) BoundBox(x, y, w, h, degrees float64) (geometry.Box, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.BoundBox(x, y, w, h, degrees)
}

// SetMaxPolygons changes the polygon limit; it applies to the next click.
func (s *Session) SetMaxPolygons(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.SetMaxPolygons(n)
}

func (s *Session) MaxPolygons() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.MaxPolygons()
}

func (s *Session) SetSurface(sf drawing.Surface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.SetSurface(sf)
}

func (s *Session) Style() style.Style {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.style
}

// SetStyle replaces the style. Observers are notified so they redraw; the
// store and its history are untouched.
func (s *Session) SetStyle(st style.Style) {
	s.mu.Lock()
	s.style = st
	s.mu.Unlock()
	s.notify()
}

// Subscribe registers fn to receive the present state after every update,
// committed or not. The returned func cancels the subscription.
func (s *Session) Subscribe(fn func(annotation.State)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// OnCommit registers fn to run with every committed state. fn runs while the
// session is locked and must not call back into it.
func (s *Session) OnCommit(fn func(annotation.State)) { s.history.OnCommit(fn) }

// write commits the state fn derives from the present one. When fn reports
// no change, nothing is committed and the redo stack survives.
func (s *Session) write(op string, fn func(annotation.State) (annotation.State, bool)) {
	s.mu.Lock()
	next, changed := fn(s.history.Present().WithoutPreview())
	if !changed {
		s.mu.Unlock()
		s.log.DebugContext(s.ctx, "ignored", slog.String("op", op))
		return
	}
	s.machine.Cancel()
	s.history.Apply(next, true)
	s.mu.Unlock()
	s.log.DebugContext(s.ctx, "commit", slog.String("op", op), slog.Int("polygons", len(next.Polygons)))
	s.notify()
}

func (s *Session) step(fn func() bool, op string) bool {
	s.mu.Lock()
	s.machine.Cancel()
	ok := fn()
	s.mu.Unlock()
	if !ok {
		s.log.DebugContext(s.ctx, "nothing to "+op, slog.String("op", op))
		return false
	}
	s.notify()
	return true
}

func (s *Session) notify() {
	st := s.history.Present().Clone()
	s.subMu.Lock()
	fns := make([]func(annotation.State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}
