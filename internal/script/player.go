/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"patchup/internal/annotator"
	"patchup/internal/drawing"
	"patchup/internal/geometry"
	applog "patchup/internal/log"
)

// ErrPolygonIndex is returned when a command names a polygon that does not
// exist when the step runs.
var ErrPolygonIndex = errors.New("polygon index out of range")

// Outcome reports what one step did.
type Outcome struct {
	Step   Step
	Result drawing.Result
	// Ok is the return value of undo/redo; true for all other ops.
	Ok bool
}

// Options builds annotator options from the script header on top of base.
// Header values win when set.
func (s Script) Options(base annotator.Options) annotator.Options {
	o := base
	if s.Fabric {
		o.IsFabric = true
	}
	if s.Width > 0 && s.Height > 0 {
		o.Surface = drawing.Surface{Width: s.Width, Height: s.Height}
	}
	if s.MaxPolygons > 0 {
		o.MaxPolygons = s.MaxPolygons
	}
	if s.Seeds != nil {
		o.Seeds = s.Seeds
	}
	return o
}

// Play runs steps against sess in order. It stops at the first step that
// cannot be applied or when ctx is done; outcomes so far are returned.
func Play(ctx context.Context, sess *annotator.Session, steps []Step) ([]Outcome, error) {
	l := applog.WithComponent("script")
	out := make([]Outcome, 0, len(steps))
	for i, st := range steps {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		o, err := apply(sess, st)
		if err != nil {
			l.ErrorContext(ctx, "step failed", slog.Int("step", i), slog.Int("line", st.LineNo), slog.Any("err", err))
			return out, fmt.Errorf("step %d (line %d): %w", i, st.LineNo, err)
		}
		l.DebugContext(ctx, "step", slog.String("op", string(st.Op)), slog.Bool("committed", o.Result.Committed))
		out = append(out, o)
	}
	return out, nil
}

func apply(sess *annotator.Session, st Step) (Outcome, error) {
	o := Outcome{Step: st, Ok: true}
	var at, off geometry.Point
	if len(st.At) == 2 {
		at = geometry.Pt(st.At[0], st.At[1])
	}
	if len(st.Offset) == 2 {
		off = geometry.Pt(st.Offset[0], st.Offset[1])
	}
	poly, vert := deref(st.Polygon), deref(st.Vertex)

	switch st.Op {
	case OpClick:
		o.Result = sess.Dispatch(drawing.Click{Pos: at, OnVertex: st.OnVertex})
	case OpMove:
		o.Result = sess.Dispatch(drawing.Move{Pos: at})
	case OpHover:
		o.Result = sess.Dispatch(drawing.HoverStart{Polygon: poly})
	case OpLeave:
		o.Result = sess.Dispatch(drawing.LeaveStart{Polygon: poly})
	case OpVertexStart:
		o.Result = sess.Dispatch(drawing.VertexDragStart{Polygon: poly, Vertex: vert})
	case OpVertexMove:
		o.Result = sess.Dispatch(drawing.VertexDragMove{Polygon: poly, Vertex: vert, Pos: at})
	case OpVertexEnd:
		o.Result = sess.Dispatch(drawing.VertexDragEnd{Polygon: poly, Vertex: vert, Pos: at})
	case OpGroupStart:
		o.Result = sess.Dispatch(drawing.GroupDragStart{Polygon: poly})
	case OpGroupMove:
		o.Result = sess.Dispatch(drawing.GroupDragMove{Polygon: poly, Offset: off})
	case OpGroupEnd:
		o.Result = sess.Dispatch(drawing.GroupDragEnd{Polygon: poly, Offset: off})
	case OpUndo:
		o.Ok = sess.Undo()
	case OpRedo:
		o.Ok = sess.Redo()
	case OpDelete:
		sess.DeleteOne(poly)
	case OpDeleteAll:
		sess.DeleteAll()
	case OpLabel, OpSize:
		polys := sess.State().Polygons
		if poly < 0 || poly >= len(polys) {
			return o, fmt.Errorf("%w: %d", ErrPolygonIndex, poly)
		}
		if st.Op == OpLabel {
			sess.UpdateLabel(polys[poly].ID, st.Text)
		} else {
			sess.UpdateSize(polys[poly].ID, st.Text)
		}
	case OpMax:
		sess.SetMaxPolygons(st.N)
	default:
		return o, fmt.Errorf("unknown op %q", st.Op)
	}
	return o, nil
}

func deref(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}
