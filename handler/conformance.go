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

	"github.com/go-geospatial/featureserv/apierr"
	"github.com/go-geospatial/featureserv/conformance"
)

type conformanceDocument struct {
	ConformsTo []string `json:"conformsTo"`
}

// Conformance lists the conformance class URIs of every active extension.
// GET /conformance
func Conformance(c *fiber.Ctx) error {
	mediaType, err := negotiate(c, MediaTypeJSON)
	if err != nil {
		return sendProblem(c, err)
	}
	return sendNegotiated(c, mediaType, conformanceDocument{
		ConformsTo: conformance.Active().Classes(),
	})
}

// API serves the merged OpenAPI description assembled at startup.
// GET /api
func API(c *fiber.Ctx) error {
	if f := c.Query("f"); f != "" && f != "json" {
		return sendProblem(c, apierr.Newf(apierr.KindNotAcceptable,
			"format '%s' is not available for the API description", f).WithDetail("format", f))
	}
	c.Set(fiber.HeaderContentType, MediaTypeOpenAPI)
	return c.Send(conformance.Active().Document())
}
