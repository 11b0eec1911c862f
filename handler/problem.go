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
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/go-geospatial/featureserv/apierr"
	"github.com/go-geospatial/featureserv/core"
)

// statusOf is the single place a failure kind becomes an HTTP status.
// Drivers and the filter engine never see HTTP.
func statusOf(kind apierr.Kind) int {
	switch kind {
	case apierr.KindNotFound:
		return fiber.StatusNotFound
	case apierr.KindAlreadyExists, apierr.KindConflict:
		return fiber.StatusConflict
	case apierr.KindInvalidArgument:
		return fiber.StatusBadRequest
	case apierr.KindValidation:
		return fiber.StatusUnprocessableEntity
	case apierr.KindNotAcceptable:
		return fiber.StatusNotAcceptable
	case apierr.KindBackendUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// sendProblem converts any error into the problem payload. Causes stay in
// the server log; clients only see kind, message, and details.
func sendProblem(c *fiber.Ctx, err error) error {
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		apiErr = apierr.Wrap(apierr.KindInternal, err, "unexpected error")
	}

	status := statusOf(apiErr.Kind)
	event := log.Error()
	if status < fiber.StatusInternalServerError {
		event = log.Debug()
	}
	event.Err(err).
		Str("kind", string(apiErr.Kind)).
		Str("path", c.Path()).
		Msg("request failed")

	c.Status(status)
	return c.JSON(core.Problem{
		Kind:    string(apiErr.Kind),
		Message: apiErr.Message,
		Details: apiErr.Details,
	})
}
