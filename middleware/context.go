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

package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// RequestContext derives a cancelable user context from the fasthttp
// request context so backend work is canceled as soon as the handler
// returns and when the server shuts down. fasthttp does not surface
// per-connection close events, so a client that silently drops the
// connection is only observed at these two points.
func RequestContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithCancel(c.Context())
		defer cancel()

		c.SetUserContext(ctx)
		return c.Next()
	}
}
