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

package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/go-geospatial/featureserv/backend"
)

type queryableSchema struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type queryablesDocument struct {
	Schema     string                     `json:"$schema"`
	ID         string                     `json:"$id"`
	Type       string                     `json:"type"`
	Title      string                     `json:"title"`
	Properties map[string]queryableSchema `json:"properties"`
}

// Queryables describes the filterable properties of a collection as a JSON
// schema document.
// GET /collections/:collectionId/queryables
func Queryables(c *fiber.Ctx) error {
	ctx := c.UserContext()
	collectionID := c.Params("collectionId")

	mediaType, err := negotiate(c, MediaTypeJSON)
	if err != nil {
		return sendProblem(c, err)
	}

	store := backend.GetInstance(ctx)
	collection, err := store.GetCollection(ctx, collectionID)
	if err != nil {
		return sendProblem(c, err)
	}

	properties := map[string]queryableSchema{
		"id": {Type: "string", Description: "feature identifier"},
	}
	for _, q := range collection.Queryables {
		schemaType := q.Type
		if schemaType == "" {
			schemaType = "string"
		}
		properties[q.Name] = queryableSchema{Type: schemaType}
	}

	return sendNegotiated(c, mediaType, queryablesDocument{
		Schema:     "https://json-schema.org/draft/2019-09/schema",
		ID:         fmt.Sprintf("%s/collections/%s/queryables", getBaseURL(c), collectionID),
		Type:       "object",
		Title:      collection.Title,
		Properties: properties,
	})
}
