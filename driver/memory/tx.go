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
	"sync"

	"github.com/go-geospatial/featureserv/apierr"
	"github.com/go-geospatial/featureserv/core"
	"github.com/go-geospatial/featureserv/driver"
)

// tx stages mutations and applies them under the driver lock at Commit.
// Validation runs against a scratch copy of the touched collections, so a
// failing operation aborts the whole batch and nothing becomes visible.
type tx struct {
	driver *Driver

	mu     sync.Mutex
	ops    []stagedOp
	closed bool
}

type opKind int

const (
	opCreate opKind = iota
	opUpdate
	opDelete
)

type stagedOp struct {
	kind       opKind
	collection string
	feature    *core.Feature
	itemID     string
}

func (d *Driver) Begin(ctx context.Context) (driver.Tx, error) {
	return &tx{driver: d}, nil
}

func (t *tx) stage(op stagedOp) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return apierr.New(apierr.KindInvalidArgument, "transaction already closed")
	}
	t.ops = append(t.ops, op)
	return nil
}

func (t *tx) CreateItem(ctx context.Context, collectionID string, feature *core.Feature) error {
	return t.stage(stagedOp{kind: opCreate, collection: collectionID, feature: cloneFeature(feature)})
}

func (t *tx) UpdateItem(ctx context.Context, collectionID string, feature *core.Feature) error {
	return t.stage(stagedOp{kind: opUpdate, collection: collectionID, feature: cloneFeature(feature)})
}

func (t *tx) DeleteItem(ctx context.Context, collectionID, itemID string) error {
	return t.stage(stagedOp{kind: opDelete, collection: collectionID, itemID: itemID})
}

func (t *tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return apierr.New(apierr.KindInvalidArgument, "transaction already closed")
	}
	t.closed = true

	d := t.driver
	d.mu.Lock()
	defer d.mu.Unlock()

	// run the batch against scratch copies of the touched collections
	scratch := make(map[string]*collectionState)
	for _, op := range t.ops {
		if _, ok := scratch[op.collection]; ok {
			continue
		}
		state, ok := d.collections[op.collection]
		if !ok {
			return apierr.Newf(apierr.KindNotFound, "collection '%s' not found", op.collection)
		}
		scratch[op.collection] = state.scratchCopy()
	}

	for _, op := range t.ops {
		var err error
		switch op.kind {
		case opCreate:
			err = createItemLocked(scratch, op.collection, op.feature)
		case opUpdate:
			err = updateItemLocked(scratch, op.collection, op.feature)
		case opDelete:
			err = deleteItemLocked(scratch, op.collection, op.itemID)
		}
		if err != nil {
			return err
		}
	}

	for id, state := range scratch {
		d.collections[id] = state
	}
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		// rollback after commit is a no-op, matching the defer pattern
		return nil
	}
	t.closed = true
	t.ops = nil
	return nil
}

// scratchCopy shares stored feature values (they are never mutated in
// place) but owns its item map and index, so staged mutations stay
// invisible until the scratch state is swapped in.
func (s *collectionState) scratchCopy() *collectionState {
	items := make(map[string]*core.Feature, len(s.items))
	index := newSpatialIndex()
	for id, item := range s.items {
		items[id] = item
		index.insert(item)
	}
	return &collectionState{meta: s.meta, items: items, index: index}
}
