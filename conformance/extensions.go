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

package conformance

import json "github.com/goccy/go-json"

// builtin is the full catalog of selectable extensions. The enabled
// subset is chosen per build configuration; everything else about an
// extension lives here, in one place.
var builtin = map[string]Extension{
	"core": {
		Name: "core",
		Classes: []string{
			"http://www.opengis.net/spec/ogcapi-features-1/1.0/conf/core",
			"http://www.opengis.net/spec/ogcapi-features-1/1.0/conf/geojson",
			"http://www.opengis.net/spec/ogcapi-features-1/1.0/conf/oas30",
		},
		Kinds: []ResourceKind{
			KindLanding, KindConformance, KindAPI, KindHealth,
			KindCollections, KindItems,
		},
		Fragment: json.RawMessage(coreFragment),
	},
	"transactions": {
		Name: "transactions",
		Classes: []string{
			"http://www.opengis.net/spec/ogcapi-features-4/1.0/conf/create-replace-delete",
			"http://www.opengis.net/spec/ogcapi-features-4/1.0/conf/simpletx",
		},
		Kinds:    []ResourceKind{KindTransactions},
		Fragment: json.RawMessage(transactionsFragment),
	},
	"queryables": {
		Name: "queryables",
		Classes: []string{
			"http://www.opengis.net/spec/ogcapi-features-3/1.0/conf/queryables",
			"http://www.opengis.net/spec/ogcapi-features-3/1.0/conf/queryables-query-parameters",
		},
		Kinds:    []ResourceKind{KindQueryables},
		Fragment: json.RawMessage(queryablesFragment),
	},
	"filter": {
		Name: "filter",
		Classes: []string{
			"http://www.opengis.net/spec/cql2/1.0/conf/basic-cql2",
			"http://www.opengis.net/spec/cql2/1.0/conf/cql2-text",
			"http://www.opengis.net/spec/ogcapi-features-3/1.0/conf/features-filter",
			"http://www.opengis.net/spec/ogcapi-features-3/1.0/conf/filter",
		},
		Kinds:    []ResourceKind{KindFilter},
		Fragment: json.RawMessage(filterFragment),
	},
	"stac": {
		Name: "stac",
		Classes: []string{
			"https://api.stacspec.org/v1.0.0/collections",
			"https://api.stacspec.org/v1.0.0/core",
			"https://api.stacspec.org/v1.0.0/ogcapi-features",
		},
		Kinds:    []ResourceKind{KindSTAC},
		Fragment: json.RawMessage(stacFragment),
	},
	"edr": {
		Name: "edr",
		Classes: []string{
			"http://www.opengis.net/spec/ogcapi-edr-1/1.0/conf/core",
		},
		Kinds:    []ResourceKind{KindEDR},
		Fragment: json.RawMessage(edrFragment),
	},
	"styles": {
		Name: "styles",
		Classes: []string{
			"http://www.opengis.net/spec/ogcapi-styles-1/1.0/conf/core",
		},
		Kinds:    []ResourceKind{KindStyles},
		Fragment: json.RawMessage(stylesFragment),
	},
	"tiles": {
		Name: "tiles",
		Classes: []string{
			"http://www.opengis.net/spec/ogcapi-tiles-1/1.0/conf/core",
		},
		Kinds:    []ResourceKind{KindTiles},
		Fragment: json.RawMessage(tilesFragment),
	},
	"processes": {
		Name: "processes",
		Classes: []string{
			"http://www.opengis.net/spec/ogcapi-processes-1/1.0/conf/core",
			"http://www.opengis.net/spec/ogcapi-processes-1/1.0/conf/json",
		},
		Kinds:    []ResourceKind{KindProcesses},
		Fragment: json.RawMessage(processesFragment),
	},
}
