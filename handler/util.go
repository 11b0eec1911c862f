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
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/go-geospatial/featureserv/apierr"
)

const (
	defaultLimit = 10
	maxLimit     = 1000
)

func getBaseURL(c *fiber.Ctx) string {
	return fmt.Sprintf("%s://%s", c.Protocol(), c.Hostname())
}

// parseLimit reads the limit query parameter. Values above the maximum are
// clamped rather than rejected.
func parseLimit(c *fiber.Ctx) (int, error) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, apierr.Newf(apierr.KindInvalidArgument, "limit '%s' could not be converted to int", limitStr)
	}
	if limit < 1 {
		return 0, apierr.Newf(apierr.KindInvalidArgument, "limit must be positive, got %d", limit)
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, nil
}

// nextPageURL rebuilds the items URL for the next page, keeping every query
// parameter except the token, which is replaced.
func nextPageURL(c *fiber.Ctx, token string) string {
	values := url.Values{}
	for key, val := range c.Queries() {
		if key == "token" {
			continue
		}
		values.Set(key, val)
	}
	values.Set("token", token)
	return fmt.Sprintf("%s%s?%s", getBaseURL(c), c.Path(), values.Encode())
}
