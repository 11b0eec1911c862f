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
	"strconv"
	"strings"
	"time"

	"github.com/go-geospatial/featureserv/apierr"
	"github.com/go-geospatial/featureserv/core"
)

// ParseBBox parses a comma separated bbox query parameter of 4 or 6
// coordinates. The vertical bounds of a 6 coordinate bbox are dropped. A
// bbox whose west edge is east of its east edge crosses the antimeridian
// and is split into two envelopes combined with OR.
func ParseBBox(bboxStr string) (Predicate, error) {
	parts := strings.Split(bboxStr, ",")
	if len(parts) != 4 && len(parts) != 6 {
		return nil, apierr.Newf(apierr.KindInvalidArgument,
			"bbox must be 4 or 6 coordinates, got %d", len(parts))
	}

	coords := make([]float64, 0, len(parts))
	for _, part := range parts {
		coord, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, apierr.Newf(apierr.KindInvalidArgument,
				"could not parse bbox coordinate '%s'", part)
		}
		coords = append(coords, coord)
	}
	if len(coords) == 6 {
		// drop min/max elevation
		coords = []float64{coords[0], coords[1], coords[3], coords[4]}
	}

	minX, minY, maxX, maxY := coords[0], coords[1], coords[2], coords[3]
	if minY > maxY {
		return nil, apierr.Newf(apierr.KindInvalidArgument,
			"bbox invalid: lat1 %s > lat2 %s", formatFloat(minY), formatFloat(maxY))
	}

	if minX > maxX {
		// antimeridian crossing
		return &Or{Preds: []Predicate{
			&BBox{MinX: minX, MinY: minY, MaxX: 180, MaxY: maxY},
			&BBox{MinX: -180, MinY: minY, MaxX: maxX, MaxY: maxY},
		}}, nil
	}

	return &BBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}, nil
}

// ParseDatetime parses an RFC 3339 instant or an interval of the form
// "start/end" where either side may be ".." or empty for an open end. Both
// sides open is rejected.
func ParseDatetime(dateStr string) (Predicate, error) {
	if first, second, found := strings.Cut(dateStr, "/"); found {
		start, err := parseIntervalEnd(first)
		if err != nil {
			return nil, err
		}
		end, err := parseIntervalEnd(second)
		if err != nil {
			return nil, err
		}
		if start == nil && end == nil {
			return nil, apierr.New(apierr.KindInvalidArgument,
				"both sides of the datetime interval cannot be open")
		}
		if start != nil && end != nil && start.After(*end) {
			return nil, apierr.Newf(apierr.KindInvalidArgument,
				"datetime interval start '%s' is after end '%s'", first, second)
		}
		return &TimeRange{Start: start, End: end}, nil
	}

	instant, err := time.Parse(time.RFC3339, dateStr)
	if err != nil {
		return nil, apierr.Newf(apierr.KindInvalidArgument,
			"datetime '%s' is not RFC 3339 formatted", dateStr)
	}
	return &TimeRange{Start: &instant, End: &instant}, nil
}

func parseIntervalEnd(s string) (*time.Time, error) {
	if s == ".." || s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, apierr.Newf(apierr.KindInvalidArgument,
			"datetime '%s' is not RFC 3339 formatted or open", s)
	}
	return &t, nil
}

// Validate walks the tree and rejects comparisons referencing properties
// the collection does not declare as queryable. Unknown names fail the
// request instead of silently matching or excluding.
func Validate(p Predicate, collection *core.Collection) error {
	switch pred := p.(type) {
	case nil:
		return nil
	case *And:
		for _, child := range pred.Preds {
			if err := Validate(child, collection); err != nil {
				return err
			}
		}
	case *Or:
		for _, child := range pred.Preds {
			if err := Validate(child, collection); err != nil {
				return err
			}
		}
	case *Not:
		return Validate(pred.Pred, collection)
	case *Compare:
		if !collection.HasQueryable(pred.Property) {
			return apierr.Newf(apierr.KindInvalidArgument,
				"unknown queryable '%s' in collection '%s'", pred.Property, collection.ID).
				WithDetail("property", pred.Property)
		}
	}
	return nil
}
