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

import "github.com/go-geospatial/featureserv/core"

// Capabilities is the pushdown surface a driver declares. It is queried
// per predicate leaf, never hard-coded in the engine.
type Capabilities struct {
	// Spatial covers bbox intersection.
	Spatial bool
	// Temporal covers datetime interval overlap.
	Temporal bool
	// Comparison covers equality and range operators on queryables the
	// collection declares as natively evaluable.
	Comparison bool
	// Pattern covers LIKE. Only consulted when Comparison is set.
	Pattern bool
}

// Split partitions a predicate into a part the driver evaluates natively
// and a residual evaluated in-process after retrieval. The invariant is
// push AND residual == p: only whole top-level conjuncts move to the
// pushdown side, so re-testing the residual against returned features
// yields exactly the full result set.
func Split(p Predicate, caps Capabilities, collection *core.Collection) (push, residual Predicate) {
	if p == nil {
		return nil, nil
	}
	if pushable(p, caps, collection) {
		return p, nil
	}
	and, ok := p.(*And)
	if !ok {
		return nil, p
	}

	var pushed, kept []Predicate
	for _, conjunct := range and.Preds {
		if pushable(conjunct, caps, collection) {
			pushed = append(pushed, conjunct)
		} else {
			kept = append(kept, conjunct)
		}
	}
	return Conjoin(pushed...), Conjoin(kept...)
}

func pushable(p Predicate, caps Capabilities, collection *core.Collection) bool {
	switch pred := p.(type) {
	case *And:
		for _, child := range pred.Preds {
			if !pushable(child, caps, collection) {
				return false
			}
		}
		return true
	case *Or:
		for _, child := range pred.Preds {
			if !pushable(child, caps, collection) {
				return false
			}
		}
		return true
	case *Not:
		return pushable(pred.Pred, caps, collection)
	case *BBox:
		return caps.Spatial
	case *TimeRange:
		return caps.Temporal
	case *Compare:
		if !caps.Comparison {
			return false
		}
		if pred.Op == OpLike && !caps.Pattern {
			return false
		}
		return nativeQueryable(pred.Property, collection)
	default:
		return false
	}
}

func nativeQueryable(name string, collection *core.Collection) bool {
	if name == "id" {
		return true
	}
	for _, q := range collection.Queryables {
		if q.Name == name {
			return q.Native
		}
	}
	return false
}
