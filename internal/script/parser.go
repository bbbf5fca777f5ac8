/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"patchup/internal/annotation"
	"patchup/internal/geometry"
)

type rawSeed struct {
	Points []float64 `yaml:"points"`
	Label  string    `yaml:"label"`
	Size   string    `yaml:"size"`
}

type rawScript struct {
	Fabric  bool `yaml:"fabric"`
	Surface struct {
		Width  float64 `yaml:"width"`
		Height float64 `yaml:"height"`
	} `yaml:"surface"`
	MaxPolygons int         `yaml:"max_polygons"`
	Seeds       []rawSeed   `yaml:"seeds"`
	Steps       []yaml.Node `yaml:"steps"`
}

// Parse parses a YAML script. Every step is checked; all problems are
// returned together with the line they were found on.
//
//	fabric: true
//	surface: {width: 400, height: 300}
//	max_polygons: 5
//	seeds:
//	  - {points: [0, 0, 10, 0, 10, 10], label: Sleeve}
//	steps:
//	  - {op: click, at: [20, 20]}
//	  - {op: hover, polygon: 1}
//	  - {op: group-move, polygon: 0, offset: [5, 0]}
//	  - {op: undo}
func Parse(input string) (Script, []Error) {
	var raw rawScript
	if err := yaml.Unmarshal([]byte(input), &raw); err != nil {
		return Script{}, []Error{{Message: strings.TrimPrefix(err.Error(), "yaml: ")}}
	}

	s := Script{
		Fabric:      raw.Fabric,
		Width:       raw.Surface.Width,
		Height:      raw.Surface.Height,
		MaxPolygons: raw.MaxPolygons,
	}
	var errs []Error
	if s.Width < 0 || s.Height < 0 {
		errs = append(errs, Error{Message: "surface must not be negative"})
	}
	for i, rs := range raw.Seeds {
		if len(rs.Points)%2 != 0 {
			errs = append(errs, Error{Message: fmt.Sprintf("seed %d: odd number of coordinates", i)})
			continue
		}
		s.Seeds = append(s.Seeds, annotation.SeedPolygon{Points: geometry.Unflatten(rs.Points), Label: rs.Label, Size: rs.Size})
	}

	for i := range raw.Steps {
		node := &raw.Steps[i]
		var st Step
		if err := node.Decode(&st); err != nil {
			errs = append(errs, Error{Line: node.Line, Column: node.Column, Message: err.Error()})
			continue
		}
		st.LineNo = node.Line
		st.Op = Op(strings.ToLower(strings.TrimSpace(string(st.Op))))
		if msg := check(st); msg != "" {
			errs = append(errs, Error{Line: node.Line, Column: node.Column, Message: msg})
			continue
		}
		s.Steps = append(s.Steps, st)
	}
	return s, errs
}

func check(st Step) string {
	n, ok := opNeeds[st.Op]
	if !ok {
		return fmt.Sprintf("unknown op %q", st.Op)
	}
	switch {
	case n.at && len(st.At) != 2:
		return fmt.Sprintf("%s needs at: [x, y]", st.Op)
	case n.offset && len(st.Offset) != 2:
		return fmt.Sprintf("%s needs offset: [dx, dy]", st.Op)
	case n.polygon && st.Polygon == nil:
		return fmt.Sprintf("%s needs polygon", st.Op)
	case n.vertex && st.Vertex == nil:
		return fmt.Sprintf("%s needs vertex", st.Op)
	case n.text && strings.TrimSpace(st.Text) == "":
		return fmt.Sprintf("%s needs text", st.Op)
	case n.n && st.N == 0:
		return fmt.Sprintf("%s needs n", st.Op)
	}
	return ""
}
