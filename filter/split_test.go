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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-geospatial/featureserv/core"
)

func splitCollection() *core.Collection {
	return &core.Collection{
		ID: "parks",
		Queryables: []core.Queryable{
			{Name: "name", Type: "string", Native: true},
			{Name: "area", Type: "number", Native: true},
			{Name: "note", Type: "string", Native: false},
		},
	}
}

func TestSplitNilPredicate(t *testing.T) {
	push, residual := Split(nil, Capabilities{}, splitCollection())
	assert.Nil(t, push)
	assert.Nil(t, residual)
}

func TestSplitFullPushdown(t *testing.T) {
	pred := &And{Preds: []Predicate{
		&BBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1},
		&Compare{Op: OpEq, Property: "name", Value: "x"},
	}}
	caps := Capabilities{Spatial: true, Temporal: true, Comparison: true}

	push, residual := Split(pred, caps, splitCollection())
	assert.Equal(t, Canonical(pred), Canonical(push))
	assert.Nil(t, residual)
}

func TestSplitNothingPushable(t *testing.T) {
	pred := &Compare{Op: OpEq, Property: "name", Value: "x"}

	push, residual := Split(pred, Capabilities{}, splitCollection())
	assert.Nil(t, push)
	assert.Equal(t, Canonical(pred), Canonical(residual))
}

func TestSplitPartitionsConjuncts(t *testing.T) {
	spatial := &BBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}
	compare := &Compare{Op: OpGt, Property: "area", Value: 2.0}
	pred := &And{Preds: []Predicate{spatial, compare}}

	push, residual := Split(pred, Capabilities{Spatial: true}, splitCollection())
	assert.Equal(t, Canonical(spatial), Canonical(push))
	assert.Equal(t, Canonical(compare), Canonical(residual))
}

func TestSplitNonNativeQueryableStaysResidual(t *testing.T) {
	pred := &Compare{Op: OpEq, Property: "note", Value: "x"}
	caps := Capabilities{Comparison: true}

	push, residual := Split(pred, caps, splitCollection())
	assert.Nil(t, push)
	assert.NotNil(t, residual)
}

func TestSplitLikeNeedsPatternCapability(t *testing.T) {
	pred := &Compare{Op: OpLike, Property: "name", Value: "x%"}

	push, residual := Split(pred, Capabilities{Comparison: true}, splitCollection())
	assert.Nil(t, push)
	assert.NotNil(t, residual)

	push, residual = Split(pred, Capabilities{Comparison: true, Pattern: true}, splitCollection())
	assert.NotNil(t, push)
	assert.Nil(t, residual)
}

func TestSplitOrMovesWhole(t *testing.T) {
	// an OR mixing pushable and non-pushable parts may not be split
	pred := &Or{Preds: []Predicate{
		&BBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1},
		&Compare{Op: OpEq, Property: "name", Value: "x"},
	}}

	push, residual := Split(pred, Capabilities{Spatial: true}, splitCollection())
	assert.Nil(t, push)
	assert.Equal(t, Canonical(pred), Canonical(residual))
}

// Splitting must never change semantics: evaluating push AND residual has
// to agree with evaluating the original predicate, for every capability
// combination.
func TestSplitEquivalence(t *testing.T) {
	collection := splitCollection()
	features := []*core.Feature{
		pointFeature("p1", 0.5, 0.5, map[string]interface{}{"name": "central", "area": 3.4, "datetime": "2024-06-01T00:00:00Z"}),
		pointFeature("p2", 5, 5, map[string]interface{}{"name": "riverside", "area": 1.2, "datetime": "2020-01-01T00:00:00Z"}),
		pointFeature("p3", 0.2, 0.9, map[string]interface{}{"name": "hilltop", "area": 12.0}),
	}

	within, err := ParseDatetime("2024-01-01T00:00:00Z/..")
	require.NoError(t, err)

	predicates := []Predicate{
		&BBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1},
		&And{Preds: []Predicate{
			&BBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1},
			&Compare{Op: OpGt, Property: "area", Value: 2.0},
		}},
		&And{Preds: []Predicate{
			within,
			&Compare{Op: OpLike, Property: "name", Value: "c%"},
		}},
		&Or{Preds: []Predicate{
			&Compare{Op: OpEq, Property: "name", Value: "hilltop"},
			&BBox{MinX: 4, MinY: 4, MaxX: 6, MaxY: 6},
		}},
		&Not{Pred: &BBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}},
	}

	capsGrid := []Capabilities{
		{},
		{Spatial: true},
		{Spatial: true, Temporal: true},
		{Spatial: true, Temporal: true, Comparison: true},
		{Spatial: true, Temporal: true, Comparison: true, Pattern: true},
	}

	for pi, pred := range predicates {
		for ci, caps := range capsGrid {
			push, residual := Split(pred, caps, collection)
			for _, feature := range features {
				want, err := Eval(pred, feature)
				require.NoError(t, err)

				pushOK, err := Eval(push, feature)
				require.NoError(t, err)
				residualOK, err := Eval(residual, feature)
				require.NoError(t, err)

				got := pushOK && residualOK
				assert.Equal(t, want, got,
					fmt.Sprintf("predicate %d caps %d feature %s", pi, ci, feature.ID))
			}
		}
	}
}
