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

package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-geospatial/featureserv/apierr"
	"github.com/go-geospatial/featureserv/core"
	"github.com/go-geospatial/featureserv/driver"
	"github.com/go-geospatial/featureserv/filter"
)

func newParks(t *testing.T) *Driver {
	t.Helper()
	d := New()
	err := d.CreateCollection(context.Background(), &core.Collection{
		ID:    "parks",
		Title: "City parks",
		Queryables: []core.Queryable{
			{Name: "name", Type: "string"},
			{Name: "area", Type: "number"},
		},
	})
	require.NoError(t, err)
	return d
}

func park(id string, lon, lat float64, name string) *core.Feature {
	return &core.Feature{
		ID:         id,
		Geometry:   geojson.NewGeometry(orb.Point{lon, lat}),
		Properties: map[string]interface{}{"name": name},
	}
}

func TestCollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	d := newParks(t)

	collections, err := d.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, collections, 1)
	assert.Equal(t, "parks", collections[0].ID)
	assert.Equal(t, "Collection", collections[0].Type)
	assert.Equal(t, "feature", collections[0].ItemType)

	err = d.CreateCollection(ctx, &core.Collection{ID: "parks"})
	assert.Equal(t, apierr.KindAlreadyExists, apierr.KindOf(err))

	got, err := d.GetCollection(ctx, "parks")
	require.NoError(t, err)
	assert.Equal(t, "City parks", got.Title)

	got.Title = "Municipal parks"
	require.NoError(t, d.UpdateCollection(ctx, got))
	got, err = d.GetCollection(ctx, "parks")
	require.NoError(t, err)
	assert.Equal(t, "Municipal parks", got.Title)

	require.NoError(t, d.DeleteCollection(ctx, "parks"))
	err = d.DeleteCollection(ctx, "parks")
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))

	_, err = d.GetCollection(ctx, "parks")
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))
}

// The scenario: an empty collection answers an empty page, an inserted
// point appears in a bbox query, an attribute filter excludes it, and a
// stale version token conflicts.
func TestParksScenario(t *testing.T) {
	ctx := context.Background()
	d := newParks(t)

	bbox := &filter.BBox{MinX: -10, MinY: -10, MaxX: 10, MaxY: 10}
	query := driver.Query{Collection: "parks", Predicate: bbox, Limit: 10}

	page, err := d.QueryItems(ctx, query)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Empty(t, page.NextToken)

	p1 := park("p1", 0, 0, "Central")
	require.NoError(t, d.CreateItem(ctx, "parks", p1))

	page, err = d.QueryItems(ctx, query)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "p1", page.Items[0].ID)

	// attribute comparison is not pushable here; it comes back residual
	named := driver.Query{
		Collection: "parks",
		Predicate:  &filter.Compare{Op: filter.OpEq, Property: "name", Value: "Other"},
		Limit:      10,
	}
	page, err = d.QueryItems(ctx, named)
	require.NoError(t, err)
	require.NotNil(t, page.Residual)
	for i := range page.Items {
		match, err := filter.Eval(page.Residual, &page.Items[i])
		require.NoError(t, err)
		assert.False(t, match)
	}

	stale := park("p1", 0, 0, "Renamed")
	stale.Version = "not-the-current-version"
	err = d.UpdateItem(ctx, "parks", stale)
	assert.Equal(t, apierr.KindConflict, apierr.KindOf(err))
}

func TestItemCRUD(t *testing.T) {
	ctx := context.Background()
	d := newParks(t)

	p1 := park("p1", 1, 1, "Central")
	require.NoError(t, d.CreateItem(ctx, "parks", p1))
	assert.NotEmpty(t, p1.Version)

	err := d.CreateItem(ctx, "parks", park("p1", 1, 1, "Central"))
	assert.Equal(t, apierr.KindAlreadyExists, apierr.KindOf(err))

	got, err := d.GetItem(ctx, "parks", "p1")
	require.NoError(t, err)
	assert.Equal(t, "Central", got.Properties["name"])
	assert.Equal(t, "Feature", got.Type)
	assert.Equal(t, "parks", got.Collection)
	assert.Equal(t, p1.Version, got.Version)

	updated := park("p1", 1, 1, "Central Park")
	updated.Version = p1.Version
	require.NoError(t, d.UpdateItem(ctx, "parks", updated))
	assert.NotEqual(t, p1.Version, updated.Version)

	require.NoError(t, d.DeleteItem(ctx, "parks", "p1"))
	_, err = d.GetItem(ctx, "parks", "p1")
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))

	err = d.DeleteItem(ctx, "parks", "p1")
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))
}

func TestUpdateUnchangedContentKeepsVersion(t *testing.T) {
	ctx := context.Background()
	d := newParks(t)

	p1 := park("p1", 1, 1, "Central")
	require.NoError(t, d.CreateItem(ctx, "parks", p1))
	created := p1.Version

	same := park("p1", 1, 1, "Central")
	same.Version = created
	require.NoError(t, d.UpdateItem(ctx, "parks", same))
	assert.Equal(t, created, same.Version)

	// the same request again still succeeds with the same token
	again := park("p1", 1, 1, "Central")
	again.Version = created
	require.NoError(t, d.UpdateItem(ctx, "parks", again))
	assert.Equal(t, created, again.Version)
}

func TestQueryPaginationExactlyOnce(t *testing.T) {
	ctx := context.Background()
	d := newParks(t)

	const total = 25
	for i := 0; i < total; i++ {
		id := fmt.Sprintf("p%02d", i)
		require.NoError(t, d.CreateItem(ctx, "parks", park(id, float64(i%10), float64(i%5), "park")))
	}

	seen := make(map[string]int)
	query := driver.Query{Collection: "parks", Limit: 7}
	pages := 0
	for {
		page, err := d.QueryItems(ctx, query)
		require.NoError(t, err)
		require.LessOrEqual(t, len(page.Items), 7)
		for _, item := range page.Items {
			seen[item.ID]++
		}
		pages++
		require.Less(t, pages, 20, "pagination does not terminate")
		if page.NextToken == "" {
			break
		}
		query.Token = page.NextToken
	}

	assert.Len(t, seen, total)
	for id, count := range seen {
		assert.Equal(t, 1, count, id)
	}
}

func TestQueryTokenRejectedWhenFilterChanges(t *testing.T) {
	ctx := context.Background()
	d := newParks(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, d.CreateItem(ctx, "parks", park(fmt.Sprintf("p%d", i), 1, 1, "park")))
	}

	query := driver.Query{
		Collection: "parks",
		Predicate:  &filter.BBox{MinX: 0, MinY: 0, MaxX: 2, MaxY: 2},
		Limit:      2,
	}
	page, err := d.QueryItems(ctx, query)
	require.NoError(t, err)
	require.NotEmpty(t, page.NextToken)

	changed := driver.Query{
		Collection: "parks",
		Predicate:  &filter.BBox{MinX: 0, MinY: 0, MaxX: 5, MaxY: 5},
		Limit:      2,
		Token:      page.NextToken,
	}
	_, err = d.QueryItems(ctx, changed)
	assert.Equal(t, apierr.KindInvalidArgument, apierr.KindOf(err))
}

func TestQuerySpatialPushdown(t *testing.T) {
	ctx := context.Background()
	d := newParks(t)

	require.NoError(t, d.CreateItem(ctx, "parks", park("inside", 1, 1, "a")))
	require.NoError(t, d.CreateItem(ctx, "parks", park("outside", 50, 50, "b")))
	noGeom := &core.Feature{ID: "nowhere", Properties: map[string]interface{}{"name": "c"}}
	require.NoError(t, d.CreateItem(ctx, "parks", noGeom))

	page, err := d.QueryItems(ctx, driver.Query{
		Collection: "parks",
		Predicate:  &filter.BBox{MinX: 0, MinY: 0, MaxX: 2, MaxY: 2},
		Limit:      10,
	})
	require.NoError(t, err)
	assert.Nil(t, page.Residual)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "inside", page.Items[0].ID)
}

// Points sitting exactly on a bbox edge intersect the bbox and must not
// be lost to the spatial index prefilter.
func TestQueryBBoxEdgeTouchingPoints(t *testing.T) {
	ctx := context.Background()
	d := newParks(t)

	require.NoError(t, d.CreateItem(ctx, "parks", park("max-corner", 10, 10, "a")))
	require.NoError(t, d.CreateItem(ctx, "parks", park("min-corner", -10, -10, "b")))
	require.NoError(t, d.CreateItem(ctx, "parks", park("max-edge", 10, 0, "c")))
	require.NoError(t, d.CreateItem(ctx, "parks", park("beyond", 11, 0, "d")))

	bbox := &filter.BBox{MinX: -10, MinY: -10, MaxX: 10, MaxY: 10}
	for _, id := range []string{"max-corner", "min-corner", "max-edge"} {
		item, err := d.GetItem(ctx, "parks", id)
		require.NoError(t, err)
		matched, err := filter.Eval(bbox, item)
		require.NoError(t, err)
		require.True(t, matched, "evaluator should match %s", id)
	}

	page, err := d.QueryItems(ctx, driver.Query{Collection: "parks", Predicate: bbox, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "max-corner", page.Items[0].ID)
	assert.Equal(t, "max-edge", page.Items[1].ID)
	assert.Equal(t, "min-corner", page.Items[2].ID)
}

func TestQueryRejectsNonPositiveLimit(t *testing.T) {
	ctx := context.Background()
	d := newParks(t)
	require.NoError(t, d.CreateItem(ctx, "parks", park("p1", 0, 0, "Central")))

	for _, limit := range []int{0, -1} {
		_, err := d.QueryItems(ctx, driver.Query{Collection: "parks", Limit: limit})
		assert.Equal(t, apierr.KindInvalidArgument, apierr.KindOf(err))
	}
}

func TestQueryAntimeridianBBox(t *testing.T) {
	ctx := context.Background()
	d := newParks(t)

	require.NoError(t, d.CreateItem(ctx, "parks", park("east", 175, 0, "a")))
	require.NoError(t, d.CreateItem(ctx, "parks", park("west", -175, 0, "b")))
	require.NoError(t, d.CreateItem(ctx, "parks", park("far", 0, 0, "c")))

	pred, err := filter.ParseBBox("170,-10,-170,10")
	require.NoError(t, err)

	page, err := d.QueryItems(ctx, driver.Query{Collection: "parks", Predicate: pred, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "east", page.Items[0].ID)
	assert.Equal(t, "west", page.Items[1].ID)
}

func TestQueryUnknownCollection(t *testing.T) {
	_, err := New().QueryItems(context.Background(), driver.Query{Collection: "ghost", Limit: 1})
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))
}

func TestTransactionCommitAtomic(t *testing.T) {
	ctx := context.Background()
	d := newParks(t)

	tx, err := d.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateItem(ctx, "parks", park("p1", 1, 1, "a")))
	require.NoError(t, tx.CreateItem(ctx, "parks", park("p2", 2, 2, "b")))

	// nothing visible before commit
	_, err = d.GetItem(ctx, "parks", "p1")
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))

	require.NoError(t, tx.Commit(ctx))

	for _, id := range []string{"p1", "p2"} {
		_, err = d.GetItem(ctx, "parks", id)
		assert.NoError(t, err, id)
	}
}

func TestTransactionRollback(t *testing.T) {
	ctx := context.Background()
	d := newParks(t)

	tx, err := d.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateItem(ctx, "parks", park("p1", 1, 1, "a")))
	require.NoError(t, tx.Rollback(ctx))

	_, err = d.GetItem(ctx, "parks", "p1")
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))
}

func TestTransactionCommitFailsOnConflict(t *testing.T) {
	ctx := context.Background()
	d := newParks(t)
	require.NoError(t, d.CreateItem(ctx, "parks", park("p1", 1, 1, "a")))

	tx, err := d.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateItem(ctx, "parks", park("p2", 2, 2, "b")))
	require.NoError(t, tx.CreateItem(ctx, "parks", park("p1", 1, 1, "dup")))

	err = tx.Commit(ctx)
	require.Error(t, err)
	assert.Equal(t, apierr.KindAlreadyExists, apierr.KindOf(err))

	// the whole batch rolled back, including the valid create
	_, err = d.GetItem(ctx, "parks", "p2")
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))
}

func TestTransactionUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	d := newParks(t)
	require.NoError(t, d.CreateItem(ctx, "parks", park("keep", 1, 1, "a")))
	require.NoError(t, d.CreateItem(ctx, "parks", park("drop", 2, 2, "b")))

	tx, err := d.Begin(ctx)
	require.NoError(t, err)
	renamed := park("keep", 1, 1, "renamed")
	require.NoError(t, tx.UpdateItem(ctx, "parks", renamed))
	require.NoError(t, tx.DeleteItem(ctx, "parks", "drop"))
	require.NoError(t, tx.Commit(ctx))

	got, err := d.GetItem(ctx, "parks", "keep")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Properties["name"])

	_, err = d.GetItem(ctx, "parks", "drop")
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))
}
