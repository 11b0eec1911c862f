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

package core

import (
	geojson "github.com/paulmach/orb/geojson"

	"github.com/go-geospatial/featureserv/apierr"
)

// Feature is one record belonging to exactly one collection. Geometry is
// nil for non-spatial records. Version is populated by the backend and used
// for optimistic concurrency; it travels as an ETag, never in the body.
type Feature struct {
	Type       string                 `json:"type"`
	ID         string                 `json:"id"`
	Collection string                 `json:"collection,omitempty"`
	Geometry   *geojson.Geometry      `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
	Assets     map[string]Asset       `json:"assets,omitempty"`
	Links      []Link                 `json:"links,omitempty"`
	Version    string                 `json:"-"`
}

// Asset references data associated with a feature, used by catalog-style
// extensions.
type Asset struct {
	Href        string   `json:"href"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Type        string   `json:"type,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

// FeatureCollection is the paged response envelope for item queries.
type FeatureCollection struct {
	Type           string    `json:"type"`
	Features       []Feature `json:"features"`
	Links          []Link    `json:"links,omitempty"`
	TimeStamp      string    `json:"timeStamp,omitempty"`
	NumberMatched  *int64    `json:"numberMatched,omitempty"`
	NumberReturned int       `json:"numberReturned"`
}

// Validate performs the structural checks applied to request bodies before
// any driver operation sees the feature.
func (f *Feature) Validate() error {
	if f.Type != "" && f.Type != "Feature" {
		return apierr.Newf(apierr.KindValidation, "type must be 'Feature', got '%s'", f.Type)
	}
	if err := ValidateID(f.ID); err != nil {
		return err
	}
	for name, asset := range f.Assets {
		if asset.Href == "" {
			return apierr.Newf(apierr.KindValidation, "asset '%s' is missing href", name)
		}
	}
	return nil
}

// Property looks up a property by name. The feature id is addressable as
// the pseudo-property "id".
func (f *Feature) Property(name string) (interface{}, bool) {
	if name == "id" {
		return f.ID, true
	}
	v, ok := f.Properties[name]
	return v, ok
}
