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

package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/go-geospatial/featureserv/conformance"
	"github.com/go-geospatial/featureserv/handler"
)

// SetupRoutes registers every route whose resource kind is active in the
// conformance registry. Inactive kinds are never routed, so the route
// table, the conformance document, and the OpenAPI description always
// describe the same surface.
func SetupRoutes(app *fiber.App) {
	registry := conformance.Active()

	app.Get("/", handler.Landing)
	app.Get("/conformance", handler.Conformance)
	app.Get("/api", handler.API)
	if registry.IsActive(conformance.KindHealth) {
		app.Get("/healthz", handler.Healthz)
	}

	app.Get("/collections", handler.Collections)
	app.Get("/collections/:collectionId", handler.Collection)
	app.Get("/collections/:collectionId/items", handler.Items)
	app.Get("/collections/:collectionId/items/:itemId", handler.Item)

	if registry.IsActive(conformance.KindQueryables) {
		app.Get("/collections/:collectionId/queryables", handler.Queryables)
	}

	if registry.IsActive(conformance.KindTransactions) {
		app.Post("/collections", handler.CreateCollection)
		app.Put("/collections/:collectionId", handler.UpdateCollection)
		app.Delete("/collections/:collectionId", handler.DeleteCollection)
		app.Post("/collections/:collectionId/items", handler.CreateItems)
		app.Put("/collections/:collectionId/items/:itemId", handler.UpdateItem)
		app.Delete("/collections/:collectionId/items/:itemId", handler.DeleteItem)
	}
}
