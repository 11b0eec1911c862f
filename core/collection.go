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

// Package core holds the resource model shared by every other package:
// collections, features, extents, queryables, links, and the problem
// payload returned on errors.
package core

import (
	"regexp"

	json "github.com/goccy/go-json"

	"github.com/go-geospatial/featureserv/apierr"
)

// Collection is a named grouping of features sharing an extent and a set of
// queryable properties.
type Collection struct {
	ID          string                      `json:"id"`
	Type        string                      `json:"type,omitempty"`
	Title       string                      `json:"title,omitempty"`
	Description string                      `json:"description,omitempty"`
	Keywords    []string                    `json:"keywords,omitempty"`
	License     string                      `json:"license,omitempty"`
	Extent      *Extent                     `json:"extent,omitempty"`
	ItemType    string                      `json:"itemType,omitempty"`
	CRS         []string                    `json:"crs,omitempty"`
	StorageCRS  string                      `json:"storageCrs,omitempty"`
	Providers   []Provider                  `json:"providers,omitempty"`
	Summaries   map[string]*json.RawMessage `json:"summaries,omitempty"`
	Queryables  []Queryable                 `json:"-"`
	Links       []Link                      `json:"links,omitempty"`
}

type Provider struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles,omitempty"`
	URL   string   `json:"url,omitempty"`
}

// Extent bounds a collection in space and time. Multiple spatial envelopes
// are allowed so antimeridian-crossing data can be described without a
// wrapped bbox.
type Extent struct {
	Spatial  *SpatialExtent  `json:"spatial,omitempty"`
	Temporal *TemporalExtent `json:"temporal,omitempty"`
}

type SpatialExtent struct {
	Bbox [][]float64 `json:"bbox"`
}

// TemporalExtent intervals use null for an open end.
type TemporalExtent struct {
	Interval [][]*string `json:"interval"`
}

// Queryable names a feature property that filter predicates may reference.
// Native reports whether the active driver can evaluate predicates on it
// without post-filtering; it is declared by the backend, not serialized.
type Queryable struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Native bool   `json:"-"`
}

// HasQueryable reports whether name is declared as a queryable of the
// collection. The feature id is always queryable.
func (c *Collection) HasQueryable(name string) bool {
	if name == "id" {
		return true
	}
	for _, q := range c.Queryables {
		if q.Name == name {
			return true
		}
	}
	return false
}

var idRe = regexp.MustCompile(`^[a-zA-Z0-9\-_\.]+$`)

// ValidateID checks an identifier against the allowed character set shared
// by collection and feature ids.
func ValidateID(id string) error {
	if id == "" {
		return apierr.New(apierr.KindValidation, "id field is required")
	}
	if !idRe.MatchString(id) {
		return apierr.Newf(apierr.KindValidation, `id must conform to format '^[a-zA-Z0-9\-_\.]+$'`)
	}
	return nil
}
