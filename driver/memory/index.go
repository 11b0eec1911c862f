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
	"github.com/dhconnelly/rtreego"

	"github.com/go-geospatial/featureserv/core"
	"github.com/go-geospatial/featureserv/filter"
)

// spatialIndex maps feature ids to R-tree entries so bbox predicates scan
// O(log n) instead of the whole collection. Features without geometry are
// not indexed; bbox predicates never match them.
type spatialIndex struct {
	rtree   *rtreego.Rtree
	entries map[string]*indexedItem
}

type indexedItem struct {
	id                     string
	minX, minY, maxX, maxY float64
}

// R-tree rectangles need non-zero extent; ~11 meters at the equator.
const pointEpsilon = 0.0001

// Bounds implements rtreego.Spatial.
func (e *indexedItem) Bounds() rtreego.Rect {
	lonLength := e.maxX - e.minX
	latLength := e.maxY - e.minY
	if lonLength < pointEpsilon {
		lonLength = pointEpsilon
	}
	if latLength < pointEpsilon {
		latLength = pointEpsilon
	}
	rect, _ := rtreego.NewRect(rtreego.Point{e.minX, e.minY}, []float64{lonLength, latLength})
	return rect
}

func newSpatialIndex() *spatialIndex {
	return &spatialIndex{
		rtree:   rtreego.NewTree(2, 25, 50),
		entries: make(map[string]*indexedItem),
	}
}

func (s *spatialIndex) insert(f *core.Feature) {
	if f.Geometry == nil {
		return
	}
	geom := f.Geometry.Geometry()
	if geom == nil {
		return
	}
	bound := geom.Bound()
	entry := &indexedItem{
		id:   f.ID,
		minX: bound.Min[0], minY: bound.Min[1],
		maxX: bound.Max[0], maxY: bound.Max[1],
	}
	s.entries[f.ID] = entry
	s.rtree.Insert(entry)
}

func (s *spatialIndex) remove(f *core.Feature) {
	entry, ok := s.entries[f.ID]
	if !ok {
		return
	}
	s.rtree.Delete(entry)
	delete(s.entries, f.ID)
}

func (s *spatialIndex) searchIntersect(box *filter.BBox) []string {
	// rtreego treats rectangles that merely touch as disjoint and Bounds()
	// only pads entries toward +X/+Y, so grow the query window by epsilon on
	// every side. The evaluator counts touching bounds as intersecting and
	// re-tests each candidate, so the wider window is never visible.
	lonLength := box.MaxX - box.MinX + 2*pointEpsilon
	latLength := box.MaxY - box.MinY + 2*pointEpsilon
	rect, err := rtreego.NewRect(rtreego.Point{box.MinX - pointEpsilon, box.MinY - pointEpsilon}, []float64{lonLength, latLength})
	if err != nil {
		return nil
	}
	spatials := s.rtree.SearchIntersect(rect)
	ids := make([]string, 0, len(spatials))
	for _, spatial := range spatials {
		ids = append(ids, spatial.(*indexedItem).id)
	}
	return ids
}
