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

import (
	json "github.com/goccy/go-json"

	"github.com/go-geospatial/featureserv/apierr"
	"github.com/go-geospatial/featureserv/jsonutil"
)

// buildDocument merges the skeleton document with every selected
// extension's fragment. Extensions are already sorted by conformance
// URI, so the output is reproducible for a given build configuration.
func (r *Registry) buildDocument() (json.RawMessage, error) {
	document := json.RawMessage(skeletonDocument)
	for _, ext := range r.extensions {
		if len(ext.Fragment) == 0 {
			continue
		}
		merged, err := jsonutil.Merge(ext.Fragment, document)
		if err != nil {
			return nil, apierr.Wrap(apierr.KindInternal, err,
				"could not merge API description fragment of extension '"+ext.Name+"'")
		}
		document = merged
	}
	return document, nil
}

// skeletonDocument carries everything that is not contributed by an
// extension. Conformance-class-specific paths arrive through fragments.
const skeletonDocument = `{
  "openapi": "3.0.3",
  "info": {
    "title": "featureserv",
    "description": "Storage-agnostic OGC API Features server",
    "version": "1.0.0",
    "license": {"name": "Apache-2.0", "url": "https://www.apache.org/licenses/LICENSE-2.0"}
  },
  "paths": {},
  "components": {
    "schemas": {
      "problem": {
        "type": "object",
        "required": ["kind", "message"],
        "properties": {
          "kind": {"type": "string"},
          "message": {"type": "string"},
          "details": {"type": "object"}
        }
      },
      "link": {
        "type": "object",
        "required": ["href", "rel"],
        "properties": {
          "href": {"type": "string"},
          "rel": {"type": "string"},
          "type": {"type": "string"},
          "title": {"type": "string"}
        }
      }
    }
  }
}`

const coreFragment = `{
  "paths": {
    "/": {"get": {"operationId": "getLandingPage", "tags": ["Capabilities"], "responses": {"200": {"description": "Landing page"}}}},
    "/conformance": {"get": {"operationId": "getConformance", "tags": ["Capabilities"], "responses": {"200": {"description": "Conformance classes"}}}},
    "/api": {"get": {"operationId": "getApiDescription", "tags": ["Capabilities"], "responses": {"200": {"description": "API description"}}}},
    "/collections": {"get": {"operationId": "listCollections", "tags": ["Collections"], "responses": {"200": {"description": "Collection list"}}}},
    "/collections/{collectionId}": {"get": {"operationId": "getCollection", "tags": ["Collections"], "responses": {"200": {"description": "Collection metadata"}, "404": {"description": "Not found"}}}},
    "/collections/{collectionId}/items": {"get": {"operationId": "listItems", "tags": ["Features"], "parameters": [{"name": "bbox", "in": "query", "schema": {"type": "string"}}, {"name": "datetime", "in": "query", "schema": {"type": "string"}}, {"name": "limit", "in": "query", "schema": {"type": "integer"}}, {"name": "token", "in": "query", "schema": {"type": "string"}}], "responses": {"200": {"description": "Feature collection"}, "404": {"description": "Not found"}}}},
    "/collections/{collectionId}/items/{itemId}": {"get": {"operationId": "getItem", "tags": ["Features"], "responses": {"200": {"description": "Feature"}, "404": {"description": "Not found"}}}}
  }
}`

const transactionsFragment = `{
  "paths": {
    "/collections": {"post": {"operationId": "createCollection", "tags": ["Collections"], "responses": {"201": {"description": "Created"}, "409": {"description": "Already exists"}}}},
    "/collections/{collectionId}": {"put": {"operationId": "updateCollection", "tags": ["Collections"], "responses": {"200": {"description": "Updated"}}}, "delete": {"operationId": "deleteCollection", "tags": ["Collections"], "responses": {"200": {"description": "Deleted"}}}},
    "/collections/{collectionId}/items": {"post": {"operationId": "createItems", "tags": ["Features"], "responses": {"201": {"description": "Created"}, "409": {"description": "Already exists"}}}},
    "/collections/{collectionId}/items/{itemId}": {"put": {"operationId": "updateItem", "tags": ["Features"], "responses": {"200": {"description": "Updated"}, "409": {"description": "Version conflict"}}}, "delete": {"operationId": "deleteItem", "tags": ["Features"], "responses": {"200": {"description": "Deleted"}}}}
  }
}`

const queryablesFragment = `{
  "paths": {
    "/collections/{collectionId}/queryables": {"get": {"operationId": "getQueryables", "tags": ["Features"], "responses": {"200": {"description": "Queryables schema"}}}}
  }
}`

const filterFragment = `{
  "paths": {
    "/collections/{collectionId}/items": {"get": {"parameters": [{"name": "filter", "in": "query", "schema": {"type": "string"}}, {"name": "filter-lang", "in": "query", "schema": {"type": "string", "enum": ["cql2-text"]}}]}}
  }
}`

const stacFragment = `{
  "components": {
    "schemas": {
      "asset": {
        "type": "object",
        "required": ["href"],
        "properties": {
          "href": {"type": "string"},
          "title": {"type": "string"},
          "description": {"type": "string"},
          "type": {"type": "string"},
          "roles": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

const edrFragment = `{
  "tags": {"edr": {"name": "Environmental Data Retrieval"}}
}`

const stylesFragment = `{
  "tags": {"styles": {"name": "Styles"}}
}`

const tilesFragment = `{
  "tags": {"tiles": {"name": "Tiles"}}
}`

const processesFragment = `{
  "tags": {"processes": {"name": "Processes"}}
}`
