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

// Package memory implements the driver contract against process memory
// with an R-tree spatial index. It pushes down spatial predicates only,
// which also makes it the backend that exercises the residual evaluation
// path end to end. Pagination is forward-only keyed on feature id:
// unmodified records are never skipped or duplicated across pages, but
// iteration is eventually consistent under concurrent writes, not a
// snapshot.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/go-geospatial/featureserv/apierr"
	"github.com/go-geospatial/featureserv/core"
	"github.com/go-geospatial/featureserv/driver"
	"github.com/go-geospatial/featureserv/filter"
)

type Driver struct {
	mu          sync.RWMutex
	collections map[string]*collectionState
}

type collectionState struct {
	meta  core.Collection
	items map[string]*core.Feature
	index *spatialIndex
}

func New() *Driver {
	return &Driver{collections: make(map[string]*collectionState)}
}

func (d *Driver) Capabilities() filter.Capabilities {
	return filter.Capabilities{Spatial: true}
}

func (d *Driver) Ping(context.Context) error { return nil }

func (d *Driver) Close() {}

func (d *Driver) ListCollections(ctx context.Context) ([]core.Collection, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.collections))
	for id := range d.collections {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	collections := make([]core.Collection, 0, len(ids))
	for _, id := range ids {
		collections = append(collections, d.collections[id].meta)
	}
	return collections, nil
}

func (d *Driver) GetCollection(ctx context.Context, id string) (*core.Collection, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	state, ok := d.collections[id]
	if !ok {
		return nil, apierr.Newf(apierr.KindNotFound, "collection '%s' not found", id)
	}
	meta := state.meta
	return &meta, nil
}

func (d *Driver) CreateCollection(ctx context.Context, collection *core.Collection) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.collections[collection.ID]; ok {
		return apierr.Newf(apierr.KindAlreadyExists, "collection '%s' already exists", collection.ID)
	}
	meta := *collection
	if meta.Type == "" {
		meta.Type = "Collection"
	}
	if meta.ItemType == "" {
		meta.ItemType = "feature"
	}
	d.collections[collection.ID] = &collectionState{
		meta:  meta,
		items: make(map[string]*core.Feature),
		index: newSpatialIndex(),
	}
	return nil
}

func (d *Driver) UpdateCollection(ctx context.Context, collection *core.Collection) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	state, ok := d.collections[collection.ID]
	if !ok {
		return apierr.Newf(apierr.KindNotFound, "collection '%s' not found", collection.ID)
	}
	meta := *collection
	if meta.Type == "" {
		meta.Type = state.meta.Type
	}
	if meta.ItemType == "" {
		meta.ItemType = state.meta.ItemType
	}
	state.meta = meta
	return nil
}

func (d *Driver) DeleteCollection(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.collections[id]; !ok {
		return apierr.Newf(apierr.KindNotFound, "collection '%s' not found", id)
	}
	delete(d.collections, id)
	return nil
}

func (d *Driver) QueryItems(ctx context.Context, query driver.Query) (*driver.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, apierr.Wrap(apierr.KindBackendUnavailable, err, "query canceled")
	}
	if query.Limit < 1 {
		return nil, apierr.Newf(apierr.KindInvalidArgument, "limit must be positive, got %d", query.Limit)
	}
	for _, s := range query.Sort {
		if s.Field != "id" {
			return nil, apierr.Newf(apierr.KindInvalidArgument,
				"memory backend sorts by id only, got '%s'", s.Field)
		}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	state, ok := d.collections[query.Collection]
	if !ok {
		return nil, apierr.Newf(apierr.KindNotFound, "collection '%s' not found", query.Collection)
	}

	push, residual := filter.Split(query.Predicate, d.Capabilities(), &state.meta)

	lastID, err := driver.DecodeToken(query)
	if err != nil {
		return nil, err
	}

	ids := state.candidateIDs(push)
	sort.Strings(ids)

	page := &driver.Page{Residual: residual}
	for _, id := range ids {
		if lastID != "" && id <= lastID {
			continue
		}
		item := state.items[id]
		// exact re-test; the index is only a prefilter
		matched, err := filter.Eval(push, item)
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}
		if len(page.Items) == query.Limit {
			page.NextToken = driver.EncodeToken(query, page.Items[len(page.Items)-1].ID)
			return page, nil
		}
		page.Items = append(page.Items, *cloneFeature(item))
	}
	return page, nil
}

// candidateIDs narrows the scan through the R-tree when the pushed
// predicate pins a bbox, otherwise returns every id.
func (s *collectionState) candidateIDs(push filter.Predicate) []string {
	if boxes := prefilterBoxes(push); len(boxes) > 0 {
		seen := make(map[string]bool)
		ids := make([]string, 0, 64)
		for _, box := range boxes {
			for _, id := range s.index.searchIntersect(box) {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
		return ids
	}
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	return ids
}

// prefilterBoxes pulls a required bbox constraint out of the pushed
// predicate: a bare bbox, an OR of bboxes (the antimeridian split), or
// either of those as a conjunct of a top-level AND. Negated spatial
// predicates never narrow the scan.
func prefilterBoxes(p filter.Predicate) []*filter.BBox {
	switch pred := p.(type) {
	case *filter.BBox:
		return []*filter.BBox{pred}
	case *filter.Or:
		boxes := make([]*filter.BBox, 0, len(pred.Preds))
		for _, child := range pred.Preds {
			box, ok := child.(*filter.BBox)
			if !ok {
				return nil
			}
			boxes = append(boxes, box)
		}
		return boxes
	case *filter.And:
		for _, child := range pred.Preds {
			if boxes := prefilterBoxes(child); len(boxes) > 0 {
				return boxes
			}
		}
	}
	return nil
}

func (d *Driver) GetItem(ctx context.Context, collectionID, itemID string) (*core.Feature, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	state, ok := d.collections[collectionID]
	if !ok {
		return nil, apierr.Newf(apierr.KindNotFound, "collection '%s' not found", collectionID)
	}
	item, ok := state.items[itemID]
	if !ok {
		return nil, apierr.Newf(apierr.KindNotFound,
			"item '%s' not found in collection '%s'", itemID, collectionID)
	}
	return cloneFeature(item), nil
}

func (d *Driver) CreateItem(ctx context.Context, collectionID string, feature *core.Feature) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return createItemLocked(d.collections, collectionID, feature)
}

func (d *Driver) UpdateItem(ctx context.Context, collectionID string, feature *core.Feature) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return updateItemLocked(d.collections, collectionID, feature)
}

func (d *Driver) DeleteItem(ctx context.Context, collectionID, itemID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return deleteItemLocked(d.collections, collectionID, itemID)
}

func createItemLocked(collections map[string]*collectionState, collectionID string, feature *core.Feature) error {
	state, ok := collections[collectionID]
	if !ok {
		return apierr.Newf(apierr.KindNotFound, "collection '%s' not found", collectionID)
	}
	if _, ok := state.items[feature.ID]; ok {
		return apierr.Newf(apierr.KindAlreadyExists,
			"item '%s' already exists in collection '%s'", feature.ID, collectionID)
	}
	stored := cloneFeature(feature)
	stored.Type = "Feature"
	stored.Collection = collectionID
	stored.Version = uuid.NewString()
	state.items[stored.ID] = stored
	state.index.insert(stored)
	feature.Version = stored.Version
	return nil
}

func updateItemLocked(collections map[string]*collectionState, collectionID string, feature *core.Feature) error {
	state, ok := collections[collectionID]
	if !ok {
		return apierr.Newf(apierr.KindNotFound, "collection '%s' not found", collectionID)
	}
	current, ok := state.items[feature.ID]
	if !ok {
		return apierr.Newf(apierr.KindNotFound,
			"item '%s' not found in collection '%s'", feature.ID, collectionID)
	}
	if feature.Version != "" && feature.Version != current.Version {
		return apierr.Newf(apierr.KindConflict,
			"version token does not match stored version of item '%s'", feature.ID)
	}
	stored := cloneFeature(feature)
	stored.Type = "Feature"
	stored.Collection = collectionID
	if contentEqual(current, stored) {
		// no-op update keeps the stored version, so identical retries
		// are idempotent
		feature.Version = current.Version
		return nil
	}
	stored.Version = uuid.NewString()
	state.index.remove(current)
	state.items[stored.ID] = stored
	state.index.insert(stored)
	feature.Version = stored.Version
	return nil
}

func deleteItemLocked(collections map[string]*collectionState, collectionID, itemID string) error {
	state, ok := collections[collectionID]
	if !ok {
		return apierr.Newf(apierr.KindNotFound, "collection '%s' not found", collectionID)
	}
	current, ok := state.items[itemID]
	if !ok {
		return apierr.Newf(apierr.KindNotFound,
			"item '%s' not found in collection '%s'", itemID, collectionID)
	}
	state.index.remove(current)
	delete(state.items, itemID)
	return nil
}

func cloneFeature(f *core.Feature) *core.Feature {
	raw, _ := json.Marshal(f)
	var clone core.Feature
	_ = json.Unmarshal(raw, &clone)
	clone.Version = f.Version
	return &clone
}

// contentEqual compares two features excluding the server-populated
// version field, which both marshal away.
func contentEqual(a, b *core.Feature) bool {
	rawA, errA := json.Marshal(a)
	rawB, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(rawA, rawB)
}
