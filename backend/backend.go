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

// Package backend selects and owns the storage driver for the process.
package backend

import (
	"context"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/go-geospatial/featureserv/driver"
	"github.com/go-geospatial/featureserv/driver/memory"
	"github.com/go-geospatial/featureserv/driver/postgres"
)

var (
	once     sync.Once
	instance driver.Driver
)

// GetInstance returns the process-wide storage driver, creating it on
// first use from the backend.kind configuration key. Supported kinds
// are "memory" (default) and "postgres".
func GetInstance(ctx context.Context) driver.Driver {
	once.Do(func() {
		kind := viper.GetString("backend.kind")
		if kind == "" {
			kind = "memory"
		}
		log.Debug().Str("kind", kind).Msg("initializing storage driver for the first time")
		switch kind {
		case "memory":
			instance = memory.New()
		case "postgres":
			var err error
			instance, err = postgres.New(ctx, viper.GetString("database.dsn"))
			if err != nil {
				log.Error().Err(err).Msg("failed to connect to postgres backend")
				os.Exit(66)
			}
		default:
			log.Error().Str("kind", kind).Msg("unknown backend kind")
			os.Exit(66)
		}
	})
	return instance
}

// SetInstance replaces the process-wide driver. Tests use it to run
// handlers against a fresh in-memory backend.
func SetInstance(d driver.Driver) {
	once.Do(func() {})
	instance = d
}
