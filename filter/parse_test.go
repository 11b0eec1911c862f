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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-geospatial/featureserv/apierr"
	"github.com/go-geospatial/featureserv/core"
)

func TestParseBBoxFourCoordinates(t *testing.T) {
	pred, err := ParseBBox("-10.5,-20,30,40")
	require.NoError(t, err)

	box, ok := pred.(*BBox)
	require.True(t, ok)
	assert.Equal(t, -10.5, box.MinX)
	assert.Equal(t, -20.0, box.MinY)
	assert.Equal(t, 30.0, box.MaxX)
	assert.Equal(t, 40.0, box.MaxY)
}

func TestParseBBoxSixCoordinatesDropsElevation(t *testing.T) {
	pred, err := ParseBBox("1,2,100,3,4,200")
	require.NoError(t, err)

	box, ok := pred.(*BBox)
	require.True(t, ok)
	assert.Equal(t, &BBox{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4}, box)
}

func TestParseBBoxAntimeridianSplits(t *testing.T) {
	pred, err := ParseBBox("170,-10,-170,10")
	require.NoError(t, err)

	or, ok := pred.(*Or)
	require.True(t, ok)
	require.Len(t, or.Preds, 2)

	east, ok := or.Preds[0].(*BBox)
	require.True(t, ok)
	assert.Equal(t, 170.0, east.MinX)
	assert.Equal(t, 180.0, east.MaxX)

	west, ok := or.Preds[1].(*BBox)
	require.True(t, ok)
	assert.Equal(t, -180.0, west.MinX)
	assert.Equal(t, -170.0, west.MaxX)
}

func TestParseBBoxErrors(t *testing.T) {
	cases := map[string]string{
		"wrong count":  "1,2,3",
		"not a number": "a,2,3,4",
		"lat inverted": "0,50,10,40",
		"empty":        "",
		"five numbers": "1,2,3,4,5",
	}
	for name, bbox := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseBBox(bbox)
			require.Error(t, err)
			assert.Equal(t, apierr.KindInvalidArgument, apierr.KindOf(err))
		})
	}
}

func TestParseDatetimeInstant(t *testing.T) {
	pred, err := ParseDatetime("2024-06-01T12:00:00Z")
	require.NoError(t, err)

	tr, ok := pred.(*TimeRange)
	require.True(t, ok)
	require.NotNil(t, tr.Start)
	require.NotNil(t, tr.End)
	assert.True(t, tr.Start.Equal(*tr.End))
}

func TestParseDatetimeInterval(t *testing.T) {
	pred, err := ParseDatetime("2024-01-01T00:00:00Z/2024-12-31T23:59:59Z")
	require.NoError(t, err)

	tr, ok := pred.(*TimeRange)
	require.True(t, ok)
	assert.Equal(t, 2024, tr.Start.Year())
	assert.Equal(t, time.December, tr.End.Month())
}

func TestParseDatetimeOpenEnds(t *testing.T) {
	pred, err := ParseDatetime("../2024-12-31T23:59:59Z")
	require.NoError(t, err)
	tr := pred.(*TimeRange)
	assert.Nil(t, tr.Start)
	assert.NotNil(t, tr.End)

	pred, err = ParseDatetime("2024-01-01T00:00:00Z/..")
	require.NoError(t, err)
	tr = pred.(*TimeRange)
	assert.NotNil(t, tr.Start)
	assert.Nil(t, tr.End)
}

func TestParseDatetimeRejectsBothOpen(t *testing.T) {
	_, err := ParseDatetime("../..")
	require.Error(t, err)
	assert.Equal(t, apierr.KindInvalidArgument, apierr.KindOf(err))
}

func TestParseDatetimeRejectsReversedInterval(t *testing.T) {
	_, err := ParseDatetime("2024-12-31T00:00:00Z/2024-01-01T00:00:00Z")
	require.Error(t, err)
	assert.Equal(t, apierr.KindInvalidArgument, apierr.KindOf(err))
}

func TestParseDatetimeRejectsGarbage(t *testing.T) {
	_, err := ParseDatetime("june 1st")
	require.Error(t, err)
	assert.Equal(t, apierr.KindInvalidArgument, apierr.KindOf(err))
}

func TestValidateUnknownQueryable(t *testing.T) {
	collection := &core.Collection{
		ID:         "parks",
		Queryables: []core.Queryable{{Name: "name", Type: "string"}},
	}

	err := Validate(&Compare{Op: OpEq, Property: "name", Value: "central"}, collection)
	assert.NoError(t, err)

	err = Validate(&Compare{Op: OpEq, Property: "nope", Value: "x"}, collection)
	require.Error(t, err)
	assert.Equal(t, apierr.KindInvalidArgument, apierr.KindOf(err))

	// id is always queryable
	err = Validate(&Compare{Op: OpEq, Property: "id", Value: "p1"}, collection)
	assert.NoError(t, err)

	// nested trees are walked
	err = Validate(&And{Preds: []Predicate{
		&BBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1},
		&Not{Pred: &Compare{Op: OpEq, Property: "secret", Value: 1.0}},
	}}, collection)
	require.Error(t, err)
}
