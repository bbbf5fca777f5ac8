/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package script reads and replays YAML interaction scripts: a header that
// configures a session followed by pointer events and editor commands.
package script

import (
	"fmt"

	"patchup/internal/annotation"
)

// Script is a parsed interaction script.
type Script struct {
	Fabric      bool
	Width       float64
	Height      float64
	MaxPolygons int
	Seeds       []annotation.SeedPolygon
	Steps       []Step
}

// Op names one step kind.
type Op string

const (
	OpClick       Op = "click"
	OpMove        Op = "move"
	OpHover       Op = "hover"
	OpLeave       Op = "leave"
	OpVertexStart Op = "vertex-start"
	OpVertexMove  Op = "vertex-move"
	OpVertexEnd   Op = "vertex-end"
	OpGroupStart  Op = "group-start"
	OpGroupMove   Op = "group-move"
	OpGroupEnd    Op = "group-end"
	OpUndo        Op = "undo"
	OpRedo        Op = "redo"
	OpDelete      Op = "delete"
	OpDeleteAll   Op = "delete-all"
	OpLabel       Op = "label"
	OpSize        Op = "size"
	OpMax         Op = "max"
)

// needs lists the fields each op requires.
type needs struct{ at, offset, polygon, vertex, text, n bool }

var opNeeds = map[Op]needs{
	OpClick:       {at: true},
	OpMove:        {at: true},
	OpHover:       {polygon: true},
	OpLeave:       {polygon: true},
	OpVertexStart: {polygon: true, vertex: true},
	OpVertexMove:  {polygon: true, vertex: true, at: true},
	OpVertexEnd:   {polygon: true, vertex: true, at: true},
	OpGroupStart:  {polygon: true},
	OpGroupMove:   {polygon: true, offset: true},
	OpGroupEnd:    {polygon: true, offset: true},
	OpUndo:        {},
	OpRedo:        {},
	OpDelete:      {polygon: true},
	OpDeleteAll:   {},
	OpLabel:       {polygon: true, text: true},
	OpSize:        {polygon: true, text: true},
	OpMax:         {n: true},
}

// Step is one line of the script. Polygon and Vertex are indexes into the
// state at the time the step runs.
type Step struct {
	Op       Op        `yaml:"op"`
	At       []float64 `yaml:"at,omitempty"`
	Offset   []float64 `yaml:"offset,omitempty"`
	OnVertex bool      `yaml:"on_vertex,omitempty"`
	Polygon  *int      `yaml:"polygon,omitempty"`
	Vertex   *int      `yaml:"vertex,omitempty"`
	Text     string    `yaml:"text,omitempty"`
	N        int       `yaml:"n,omitempty"`

	LineNo int `yaml:"-"` // 1-based line in the source
}

// Error represents a parse error with position context.
type Error struct {
	Line    int
	Column  int
	Message string
}

func (e Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}
