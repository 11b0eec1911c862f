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

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/go-geospatial/featureserv/apierr"
	"github.com/go-geospatial/featureserv/backend"
	"github.com/go-geospatial/featureserv/conformance"
	"github.com/go-geospatial/featureserv/core"
)

type collectionList struct {
	Collections []core.Collection `json:"collections"`
	Links       []core.Link       `json:"links"`
}

// Collections lists every collection with its navigation links.
// GET /collections
func Collections(c *fiber.Ctx) error {
	ctx := c.UserContext()

	mediaType, err := negotiate(c, MediaTypeJSON)
	if err != nil {
		return sendProblem(c, err)
	}

	store := backend.GetInstance(ctx)
	collections, err := store.ListCollections(ctx)
	if err != nil {
		return sendProblem(c, err)
	}

	baseURL := getBaseURL(c)
	for i := range collections {
		decorateCollection(c, &collections[i])
	}

	links := make([]core.Link, 0, 2)
	links = core.AddLink(links, baseURL, "self", "/collections", MediaTypeJSON)
	links = core.AddLink(links, baseURL, "root", "/", MediaTypeJSON)

	return sendNegotiated(c, mediaType, collectionList{
		Collections: collections,
		Links:       links,
	})
}

// Collection returns details of a specific collection.
// GET /collections/:collectionId
func Collection(c *fiber.Ctx) error {
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

	decorateCollection(c, collection)
	return sendNegotiated(c, mediaType, collection)
}

// CreateCollection registers a new collection.
// POST /collections
func CreateCollection(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var collection core.Collection
	if err := json.Unmarshal(c.Body(), &collection); err != nil {
		log.Debug().Err(err).Msg("cannot unmarshal provided collection JSON")
		return sendProblem(c, apierr.Wrap(apierr.KindValidation, err,
			"JSON parse failed; collection must be a valid JSON object"))
	}
	if err := core.ValidateID(collection.ID); err != nil {
		return sendProblem(c, err)
	}
	if err := decodeQueryables(c.Body(), &collection); err != nil {
		return sendProblem(c, err)
	}

	store := backend.GetInstance(ctx)
	if err := store.CreateCollection(ctx, &collection); err != nil {
		return sendProblem(c, err)
	}

	log.Info().Str("collection", collection.ID).Msg("created collection")
	decorateCollection(c, &collection)
	c.Set(fiber.HeaderLocation, fmt.Sprintf("%s/collections/%s", getBaseURL(c), collection.ID))
	c.Status(fiber.StatusCreated)
	return c.JSON(collection)
}

// UpdateCollection replaces collection metadata.
// PUT /collections/:collectionId
func UpdateCollection(c *fiber.Ctx) error {
	ctx := c.UserContext()
	collectionID := c.Params("collectionId")

	var collection core.Collection
	if err := json.Unmarshal(c.Body(), &collection); err != nil {
		log.Debug().Err(err).Msg("cannot unmarshal provided collection JSON")
		return sendProblem(c, apierr.Wrap(apierr.KindValidation, err,
			"JSON parse failed; collection must be a valid JSON object"))
	}
	if collection.ID == "" {
		collection.ID = collectionID
	}
	if collection.ID != collectionID {
		return sendProblem(c, apierr.Newf(apierr.KindValidation,
			"collection id '%s' in body does not match '%s' in path", collection.ID, collectionID))
	}
	if err := decodeQueryables(c.Body(), &collection); err != nil {
		return sendProblem(c, err)
	}

	store := backend.GetInstance(ctx)
	if err := store.UpdateCollection(ctx, &collection); err != nil {
		return sendProblem(c, err)
	}

	decorateCollection(c, &collection)
	return c.JSON(collection)
}

// DeleteCollection removes a collection and all of its items.
// DELETE /collections/:collectionId
func DeleteCollection(c *fiber.Ctx) error {
	ctx := c.UserContext()
	collectionID := c.Params("collectionId")

	store := backend.GetInstance(ctx)
	if err := store.DeleteCollection(ctx, collectionID); err != nil {
		return sendProblem(c, err)
	}

	log.Info().Str("collection", collectionID).Msg("deleted collection")
	return c.JSON(map[string]string{
		"status": "deleted",
		"id":     collectionID,
	})
}

// decorateCollection attaches navigation links; stored links are replaced
// so responses never accumulate stale hrefs.
func decorateCollection(c *fiber.Ctx, collection *core.Collection) {
	baseURL := getBaseURL(c)
	self := fmt.Sprintf("/collections/%s", collection.ID)

	links := make([]core.Link, 0, 4)
	links = core.AddLink(links, baseURL, "self", self, MediaTypeJSON)
	links = core.AddLink(links, baseURL, "root", "/", MediaTypeJSON)
	links = core.AddLink(links, baseURL, "items", self+"/items", MediaTypeGeoJSON)
	if conformance.Active().IsActive(conformance.KindQueryables) {
		links = core.AddLink(links, baseURL, "queryables", self+"/queryables", MediaTypeJSON)
	}
	collection.Links = links

	if collection.Type == "" {
		collection.Type = "Collection"
	}
	if collection.ItemType == "" {
		collection.ItemType = "feature"
	}
}

// queryablesEnvelope mirrors the body shape accepted on collection writes.
// Queryable declarations ride alongside standard metadata.
type queryablesEnvelope struct {
	Queryables []core.Queryable `json:"queryables"`
}

func decodeQueryables(body []byte, collection *core.Collection) error {
	var envelope queryablesEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return apierr.Wrap(apierr.KindValidation, err, "queryables must be a list of {name, type} objects")
	}
	for _, q := range envelope.Queryables {
		if q.Name == "" {
			return apierr.New(apierr.KindValidation, "queryable name is required")
		}
	}
	collection.Queryables = envelope.Queryables
	return nil
}
