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

package filter

import (
	"regexp"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/go-geospatial/featureserv/apierr"
	"github.com/go-geospatial/featureserv/core"
)

// Eval tests a feature against a predicate tree entirely in-process. It is
// the fallback for predicates the active driver cannot push down, and the
// reference semantics pushdown must agree with. A nil predicate matches.
func Eval(p Predicate, f *core.Feature) (bool, error) {
	switch pred := p.(type) {
	case nil:
		return true, nil
	case *And:
		for _, child := range pred.Preds {
			ok, err := Eval(child, f)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case *Or:
		for _, child := range pred.Preds {
			ok, err := Eval(child, f)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case *Not:
		ok, err := Eval(pred.Pred, f)
		return !ok, err
	case *BBox:
		return evalBBox(pred, f), nil
	case *TimeRange:
		return evalTimeRange(pred, f), nil
	case *Compare:
		return evalCompare(pred, f)
	default:
		return false, apierr.Newf(apierr.KindInvalidArgument, "unsupported predicate %T", p)
	}
}

func evalBBox(p *BBox, f *core.Feature) bool {
	if f.Geometry == nil {
		return false
	}
	geom := f.Geometry.Geometry()
	if geom == nil {
		return false
	}
	box := orb.Bound{
		Min: orb.Point{p.MinX, p.MinY},
		Max: orb.Point{p.MaxX, p.MaxY},
	}
	return box.Intersects(geom.Bound())
}

func evalTimeRange(p *TimeRange, f *core.Feature) bool {
	raw, ok := f.Properties["datetime"]
	if !ok {
		return false
	}
	str, ok := raw.(string)
	if !ok {
		return false
	}
	instant, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return false
	}
	if p.Start != nil && instant.Before(*p.Start) {
		return false
	}
	if p.End != nil && instant.After(*p.End) {
		return false
	}
	return true
}

func evalCompare(p *Compare, f *core.Feature) (bool, error) {
	actual, ok := f.Property(p.Property)
	if !ok || actual == nil {
		return false, nil
	}

	if p.Op == OpLike {
		str, ok := actual.(string)
		if !ok {
			return false, nil
		}
		pattern, ok := p.Value.(string)
		if !ok {
			return false, apierr.New(apierr.KindInvalidArgument, "LIKE pattern must be a string")
		}
		return matchLike(pattern, str)
	}

	switch want := p.Value.(type) {
	case float64:
		got, ok := toFloat(actual)
		if !ok {
			return false, nil
		}
		return compareOrdered(p.Op, floatCmp(got, want)), nil
	case string:
		got, ok := actual.(string)
		if !ok {
			return false, nil
		}
		return compareOrdered(p.Op, strings.Compare(got, want)), nil
	case bool:
		got, ok := actual.(bool)
		if !ok {
			return false, nil
		}
		switch p.Op {
		case OpEq:
			return got == want, nil
		case OpNe:
			return got != want, nil
		default:
			return false, apierr.Newf(apierr.KindInvalidArgument,
				"operator %s is not defined for booleans", p.Op)
		}
	default:
		return false, apierr.Newf(apierr.KindInvalidArgument,
			"unsupported comparison value type %T", p.Value)
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch num := v.(type) {
	case float64:
		return num, true
	case float32:
		return float64(num), true
	case int:
		return float64(num), true
	case int64:
		return float64(num), true
	default:
		return 0, false
	}
}

func floatCmp(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareOrdered(op Op, cmp int) bool {
	switch op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	default:
		return false
	}
}

// matchLike compiles a SQL-style pattern where % matches any run and _
// matches one character. Everything else is literal.
func matchLike(pattern, value string) (bool, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return false, apierr.Wrap(apierr.KindInvalidArgument, err, "invalid LIKE pattern")
	}
	return re.MatchString(value), nil
}
