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
	"github.com/go-geospatial/featureserv/common"
)

const (
	MediaTypeJSON    = "application/json"
	MediaTypeGeoJSON = "application/geo+json"
	MediaTypeOpenAPI = "application/vnd.oai.openapi+json;version=3.0"
)

// formatAliases maps the short `f` query parameter values to media types.
var formatAliases = map[string]string{
	"json":    MediaTypeJSON,
	"geojson": MediaTypeGeoJSON,
}

// negotiate picks a response media type from the `f` query parameter or
// the Accept header. The first offer is the default when the client
// expresses no preference or only wildcards.
func negotiate(c *fiber.Ctx, offers ...string) (string, error) {
	if f := c.Query("f"); f != "" {
		mediaType, known := formatAliases[f]
		if !known {
			return "", apierr.Newf(apierr.KindNotAcceptable, "unknown format '%s'", f).
				WithDetail("format", f)
		}
		for _, offer := range offers {
			if offer == mediaType {
				return mediaType, nil
			}
		}
		return "", apierr.Newf(apierr.KindNotAcceptable, "format '%s' is not available for this resource", f).
			WithDetail("format", f)
	}

	accept := c.Get(fiber.HeaderAccept)
	if accept == "" || accept == "*/*" {
		return offers[0], nil
	}

	if chosen := c.Accepts(offers...); chosen != "" {
		return chosen, nil
	}
	return "", apierr.Newf(apierr.KindNotAcceptable, "no offered media type matches Accept '%s'", accept).
		WithDetail("accept", accept)
}

// sendNegotiated serializes payload with the negotiated media type set as
// Content-Type. GeoJSON payloads are still plain JSON on the wire.
func sendNegotiated(c *fiber.Ctx, mediaType string, payload interface{}) error {
	return common.SendJSON(c, mediaType, payload)
}
