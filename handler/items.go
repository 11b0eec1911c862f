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
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/go-geospatial/featureserv/apierr"
	"github.com/go-geospatial/featureserv/backend"
	"github.com/go-geospatial/featureserv/conformance"
	"github.com/go-geospatial/featureserv/core"
	"github.com/go-geospatial/featureserv/driver"
	"github.com/go-geospatial/featureserv/filter"
)

// Items lists features of a collection, honoring bbox, datetime, filter,
// limit, and token query parameters.
// GET /collections/:collectionId/items
func Items(c *fiber.Ctx) error {
	ctx := c.UserContext()
	collectionID := c.Params("collectionId")

	mediaType, err := negotiate(c, MediaTypeGeoJSON, MediaTypeJSON)
	if err != nil {
		return sendProblem(c, err)
	}

	limit, err := parseLimit(c)
	if err != nil {
		return sendProblem(c, err)
	}

	store := backend.GetInstance(ctx)
	collection, err := store.GetCollection(ctx, collectionID)
	if err != nil {
		return sendProblem(c, err)
	}

	predicate, err := buildPredicate(c, collection)
	if err != nil {
		return sendProblem(c, err)
	}

	query := driver.Query{
		Collection: collectionID,
		Predicate:  predicate,
		Limit:      limit,
		Token:      c.Query("token"),
	}
	page, err := store.QueryItems(ctx, query)
	if err != nil {
		return sendProblem(c, err)
	}

	features, err := applyResidual(page)
	if err != nil {
		return sendProblem(c, err)
	}

	baseURL := getBaseURL(c)
	itemsPath := fmt.Sprintf("/collections/%s/items", collectionID)
	for i := range features {
		decorateFeature(c, collectionID, &features[i])
	}

	links := make([]core.Link, 0, 3)
	links = core.AddLink(links, baseURL, "self", itemsPath, MediaTypeGeoJSON)
	links = core.AddLink(links, baseURL, "collection", fmt.Sprintf("/collections/%s", collectionID), MediaTypeJSON)
	if page.NextToken != "" {
		links = append(links, core.Link{
			Rel:  "next",
			Type: MediaTypeGeoJSON,
			Href: nextPageURL(c, page.NextToken),
		})
	}

	numberMatched := page.NumberMatched
	if page.Residual != nil {
		// post-filtering invalidates any backend count
		numberMatched = nil
	}

	return sendNegotiated(c, mediaType, core.FeatureCollection{
		Type:           "FeatureCollection",
		Features:       features,
		Links:          links,
		TimeStamp:      time.Now().UTC().Format(time.RFC3339),
		NumberMatched:  numberMatched,
		NumberReturned: len(features),
	})
}

// Item returns a single feature. The stored version travels as an ETag.
// GET /collections/:collectionId/items/:itemId
func Item(c *fiber.Ctx) error {
	ctx := c.UserContext()
	collectionID := c.Params("collectionId")
	itemID := c.Params("itemId")

	mediaType, err := negotiate(c, MediaTypeGeoJSON, MediaTypeJSON)
	if err != nil {
		return sendProblem(c, err)
	}

	store := backend.GetInstance(ctx)
	feature, err := store.GetItem(ctx, collectionID, itemID)
	if err != nil {
		return sendProblem(c, err)
	}

	decorateFeature(c, collectionID, feature)
	c.Set(fiber.HeaderETag, fmt.Sprintf("%q", feature.Version))
	return sendNegotiated(c, mediaType, feature)
}

// CreateItems inserts one feature, or several atomically when the body is
// a FeatureCollection.
// POST /collections/:collectionId/items
func CreateItems(c *fiber.Ctx) error {
	ctx := c.UserContext()
	collectionID := c.Params("collectionId")
	store := backend.GetInstance(ctx)

	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(c.Body(), &envelope); err != nil {
		return sendProblem(c, apierr.Wrap(apierr.KindValidation, err,
			"JSON parse failed; body must be a Feature or FeatureCollection"))
	}

	if envelope.Type == "FeatureCollection" {
		return createItemsBulk(c, store, collectionID)
	}

	var feature core.Feature
	if err := json.Unmarshal(c.Body(), &feature); err != nil {
		return sendProblem(c, apierr.Wrap(apierr.KindValidation, err, "JSON parse failed; body must be a Feature"))
	}
	if err := feature.Validate(); err != nil {
		return sendProblem(c, err)
	}
	if err := store.CreateItem(ctx, collectionID, &feature); err != nil {
		return sendProblem(c, err)
	}

	log.Info().Str("collection", collectionID).Str("item", feature.ID).Msg("created item")
	decorateFeature(c, collectionID, &feature)
	c.Set(fiber.HeaderLocation, fmt.Sprintf("%s/collections/%s/items/%s", getBaseURL(c), collectionID, feature.ID))
	c.Set(fiber.HeaderETag, fmt.Sprintf("%q", feature.Version))
	c.Status(fiber.StatusCreated)
	return c.JSON(feature)
}

func createItemsBulk(c *fiber.Ctx, store driver.Driver, collectionID string) error {
	ctx := c.UserContext()

	var collection core.FeatureCollection
	if err := json.Unmarshal(c.Body(), &collection); err != nil {
		return sendProblem(c, apierr.Wrap(apierr.KindValidation, err,
			"JSON parse failed; body must be a FeatureCollection"))
	}
	if len(collection.Features) == 0 {
		return sendProblem(c, apierr.New(apierr.KindValidation, "FeatureCollection has no features"))
	}

	tx, err := store.Begin(ctx)
	if err != nil {
		return sendProblem(c, err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.Error().Err(rbErr).Msg("transaction rollback failed")
		}
	}()

	ids := make([]string, 0, len(collection.Features))
	for i := range collection.Features {
		feature := &collection.Features[i]
		if err := feature.Validate(); err != nil {
			return sendProblem(c, err)
		}
		if err := tx.CreateItem(ctx, collectionID, feature); err != nil {
			return sendProblem(c, err)
		}
		ids = append(ids, feature.ID)
	}
	if err := tx.Commit(ctx); err != nil {
		return sendProblem(c, err)
	}

	log.Info().Str("collection", collectionID).Int("count", len(ids)).Msg("created items")
	c.Status(fiber.StatusCreated)
	return c.JSON(map[string]interface{}{
		"status": "created",
		"ids":    ids,
	})
}

// UpdateItem replaces a feature. An If-Match header pins the expected
// version; a stale version yields Conflict.
// PUT /collections/:collectionId/items/:itemId
func UpdateItem(c *fiber.Ctx) error {
	ctx := c.UserContext()
	collectionID := c.Params("collectionId")
	itemID := c.Params("itemId")

	var feature core.Feature
	if err := json.Unmarshal(c.Body(), &feature); err != nil {
		return sendProblem(c, apierr.Wrap(apierr.KindValidation, err, "JSON parse failed; body must be a Feature"))
	}
	if feature.ID == "" {
		feature.ID = itemID
	}
	if feature.ID != itemID {
		return sendProblem(c, apierr.Newf(apierr.KindValidation,
			"feature id '%s' in body does not match '%s' in path", feature.ID, itemID))
	}
	if err := feature.Validate(); err != nil {
		return sendProblem(c, err)
	}
	feature.Version = parseIfMatch(c)

	store := backend.GetInstance(ctx)
	if err := store.UpdateItem(ctx, collectionID, &feature); err != nil {
		return sendProblem(c, err)
	}

	decorateFeature(c, collectionID, &feature)
	c.Set(fiber.HeaderETag, fmt.Sprintf("%q", feature.Version))
	return c.JSON(feature)
}

// DeleteItem removes a feature.
// DELETE /collections/:collectionId/items/:itemId
func DeleteItem(c *fiber.Ctx) error {
	ctx := c.UserContext()
	collectionID := c.Params("collectionId")
	itemID := c.Params("itemId")

	store := backend.GetInstance(ctx)
	if err := store.DeleteItem(ctx, collectionID, itemID); err != nil {
		return sendProblem(c, err)
	}

	return c.JSON(map[string]string{
		"status": "deleted",
		"id":     itemID,
	})
}

// buildPredicate combines the bbox, datetime, and filter query parameters
// into one conjunction validated against the collection's queryables.
func buildPredicate(c *fiber.Ctx, collection *core.Collection) (filter.Predicate, error) {
	var parts []filter.Predicate

	if bboxStr := c.Query("bbox"); bboxStr != "" {
		p, err := filter.ParseBBox(bboxStr)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}

	if dateStr := c.Query("datetime"); dateStr != "" {
		p, err := filter.ParseDatetime(dateStr)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}

	if filterStr := c.Query("filter"); filterStr != "" {
		if !conformance.Active().IsActive(conformance.KindFilter) {
			return nil, apierr.New(apierr.KindInvalidArgument,
				"the filter query parameter is not enabled on this server").
				WithDetail("parameter", "filter")
		}
		lang := c.Query("filter-lang")
		if lang != "" && lang != "cql2-text" {
			return nil, apierr.Newf(apierr.KindInvalidArgument, "unsupported filter-lang '%s'", lang).
				WithDetail("filter-lang", lang)
		}
		p, err := filter.ParseCQL(filterStr)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}

	predicate := filter.Conjoin(parts...)
	if predicate != nil {
		if err := filter.Validate(predicate, collection); err != nil {
			return nil, err
		}
	}
	return predicate, nil
}

// applyResidual re-tests page items against the predicate part the backend
// could not evaluate.
func applyResidual(page *driver.Page) ([]core.Feature, error) {
	if page.Residual == nil {
		return page.Items, nil
	}
	kept := make([]core.Feature, 0, len(page.Items))
	for i := range page.Items {
		match, err := filter.Eval(page.Residual, &page.Items[i])
		if err != nil {
			return nil, err
		}
		if match {
			kept = append(kept, page.Items[i])
		}
	}
	return kept, nil
}

func decorateFeature(c *fiber.Ctx, collectionID string, feature *core.Feature) {
	baseURL := getBaseURL(c)
	feature.Type = "Feature"
	feature.Collection = collectionID

	links := make([]core.Link, 0, 2)
	links = core.AddLink(links, baseURL, "self",
		fmt.Sprintf("/collections/%s/items/%s", collectionID, feature.ID), MediaTypeGeoJSON)
	links = core.AddLink(links, baseURL, "collection",
		fmt.Sprintf("/collections/%s", collectionID), MediaTypeJSON)
	feature.Links = links
}

// parseIfMatch extracts the version token from an If-Match header,
// stripping quotes and a weak validator prefix. Empty means the client
// accepts any stored version.
func parseIfMatch(c *fiber.Ctx) string {
	etag := c.Get(fiber.HeaderIfMatch)
	if etag == "" || etag == "*" {
		return ""
	}
	if len(etag) > 2 && etag[0:2] == "W/" {
		etag = etag[2:]
	}
	if len(etag) >= 2 && etag[0] == '"' && etag[len(etag)-1] == '"' {
		etag = etag[1 : len(etag)-1]
	}
	return etag
}
