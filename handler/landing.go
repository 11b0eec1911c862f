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
	"github.com/gofiber/fiber/v2"

	"github.com/go-geospatial/featureserv/conformance"
	"github.com/go-geospatial/featureserv/core"
)

type landingPage struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Links       []core.Link `json:"links"`
}

// Landing returns the service root document.
// GET /
func Landing(c *fiber.Ctx) error {
	mediaType, err := negotiate(c, MediaTypeJSON)
	if err != nil {
		return sendProblem(c, err)
	}

	baseURL := getBaseURL(c)
	links := make([]core.Link, 0, 8)
	links = core.AddLink(links, baseURL, "self", "/", MediaTypeJSON)
	links = core.AddLink(links, baseURL, "conformance", "/conformance", MediaTypeJSON)
	links = core.AddLink(links, baseURL, "service-desc", "/api", MediaTypeOpenAPI)
	links = core.AddLink(links, baseURL, "service-doc", "/api", MediaTypeOpenAPI)
	links = core.AddLink(links, baseURL, "data", "/collections", MediaTypeJSON)

	registry := conformance.Active()
	if registry.IsActive(conformance.KindHealth) {
		links = core.AddLink(links, baseURL, "health", "/healthz", MediaTypeJSON)
	}

	return sendNegotiated(c, mediaType, landingPage{
		Title:       "featureserv",
		Description: "Storage-agnostic OGC API Features server",
		Links:       links,
	})
}
