// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package filter parses query parameters into predicate trees, decides
// which parts the active driver can evaluate natively, and evaluates the
// remainder against returned features in-process.
package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Predicate is a node of a filter tree. A nil Predicate matches all
// features.
type Predicate interface {
	// String renders a canonical form. Two trees with equal canonical
	// forms are the same filter; pagination tokens fingerprint it.
	String() string
	isPredicate()
}

type Op string

const (
	OpEq   Op = "="
	OpNe   Op = "<>"
	OpLt   Op = "<"
	OpLe   Op = "<="
	OpGt   Op = ">"
	OpGe   Op = ">="
	OpLike Op = "LIKE"
)

// And matches when every child matches. An empty And matches all.
type And struct {
	Preds []Predicate
}

// Or matches when at least one child matches.
type Or struct {
	Preds []Predicate
}

type Not struct {
	Pred Predicate
}

// BBox matches features whose geometry envelope intersects the box.
// Coordinates are always in lon/lat order and never cross the
// antimeridian; crossing boxes are split at parse time.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// TimeRange matches features whose datetime property falls inside the
// interval. A nil end is open and matches unboundedly in that direction.
type TimeRange struct {
	Start, End *time.Time
}

// Compare matches features by a single property comparison. Value is a
// string, float64, or bool.
type Compare struct {
	Op       Op
	Property string
	Value    interface{}
}

func (p *And) isPredicate()       {}
func (p *Or) isPredicate()        {}
func (p *Not) isPredicate()       {}
func (p *BBox) isPredicate()      {}
func (p *TimeRange) isPredicate() {}
func (p *Compare) isPredicate()   {}

func (p *And) String() string { return combinatorString("AND", p.Preds) }
func (p *Or) String() string  { return combinatorString("OR", p.Preds) }

func (p *Not) String() string {
	return fmt.Sprintf("NOT %s", p.Pred.String())
}

func (p *BBox) String() string {
	return fmt.Sprintf("BBOX(%s,%s,%s,%s)",
		formatFloat(p.MinX), formatFloat(p.MinY), formatFloat(p.MaxX), formatFloat(p.MaxY))
}

func (p *TimeRange) String() string {
	start, end := "..", ".."
	if p.Start != nil {
		start = p.Start.UTC().Format(time.RFC3339)
	}
	if p.End != nil {
		end = p.End.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("INTERVAL(%s/%s)", start, end)
}

func (p *Compare) String() string {
	switch v := p.Value.(type) {
	case string:
		return fmt.Sprintf("%s %s '%s'", p.Property, p.Op, strings.ReplaceAll(v, "'", "''"))
	case float64:
		return fmt.Sprintf("%s %s %s", p.Property, p.Op, formatFloat(v))
	case bool:
		return fmt.Sprintf("%s %s %t", p.Property, p.Op, v)
	default:
		return fmt.Sprintf("%s %s %v", p.Property, p.Op, v)
	}
}

func combinatorString(op string, preds []Predicate) string {
	parts := make([]string, 0, len(preds))
	for _, p := range preds {
		parts = append(parts, p.String())
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Conjoin combines predicates with AND, dropping nils. It returns nil when
// nothing remains and the sole predicate when only one remains, so trees
// stay flat.
func Conjoin(preds ...Predicate) Predicate {
	kept := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p == nil {
			continue
		}
		if and, ok := p.(*And); ok {
			kept = append(kept, and.Preds...)
			continue
		}
		kept = append(kept, p)
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return &And{Preds: kept}
	}
}

// Canonical renders the canonical form of p, where nil is the empty
// filter.
func Canonical(p Predicate) string {
	if p == nil {
		return ""
	}
	return p.String()
}
