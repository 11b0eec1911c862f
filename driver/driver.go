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

// Package driver defines the storage abstraction every backend implements.
// Handlers talk only to this contract; backends differ in which predicates
// they can evaluate natively and declare that through Capabilities.
package driver

import (
	"context"

	"github.com/go-geospatial/featureserv/core"
	"github.com/go-geospatial/featureserv/filter"
)

// Sort orders query results by a single field.
type Sort struct {
	Field      string
	Descending bool
}

// Query describes one paged item query. Predicate may be nil (match all).
// Token resumes a previous query and is only valid while Predicate and
// Sort are unchanged.
type Query struct {
	Collection string
	Predicate  filter.Predicate
	Sort       []Sort
	Limit      int
	Token      string
}

// Page is the result of a single QueryItems call. Residual is the part of
// the query predicate the backend could not evaluate; nil means full
// pushdown succeeded and Items need no re-testing. Items never exceeds the
// query limit. NextToken is empty on the last page.
type Page struct {
	Items     []core.Feature
	NextToken string
	Residual  filter.Predicate
	// NumberMatched is the total match count when the backend can compute
	// it cheaply, or nil.
	NumberMatched *int64
}

// Driver is the contract between the API surface and a storage backend.
// All operations honor ctx cancellation and release backend resources on
// every exit path. Failures are reported through apierr kinds; only
// BackendUnavailable is worth retrying.
type Driver interface {
	// Capabilities declares which predicate classes this backend can
	// evaluate natively. It is constant for the driver's lifetime.
	Capabilities() filter.Capabilities

	ListCollections(ctx context.Context) ([]core.Collection, error)
	GetCollection(ctx context.Context, id string) (*core.Collection, error)
	// CreateCollection fails with AlreadyExists when the id is taken.
	CreateCollection(ctx context.Context, collection *core.Collection) error
	UpdateCollection(ctx context.Context, collection *core.Collection) error
	// DeleteCollection is idempotent: deleting an absent collection
	// reports NotFound but leaves the backend unchanged.
	DeleteCollection(ctx context.Context, id string) error

	// QueryItems evaluates as much of the query predicate as the backend
	// supports and reports the rest through Page.Residual.
	QueryItems(ctx context.Context, query Query) (*Page, error)
	GetItem(ctx context.Context, collectionID, itemID string) (*core.Feature, error)
	CreateItem(ctx context.Context, collectionID string, feature *core.Feature) error
	// UpdateItem fails with Conflict when feature.Version is set and does
	// not match the stored version. An update that changes nothing keeps
	// the stored version, making identical retries idempotent.
	UpdateItem(ctx context.Context, collectionID string, feature *core.Feature) error
	DeleteItem(ctx context.Context, collectionID, itemID string) error

	// Begin opens a transaction for multi-item mutations. Callers must
	// either Commit or Rollback; deferring Rollback after Commit is safe.
	Begin(ctx context.Context) (Tx, error)

	Ping(ctx context.Context) error
	Close()
}

// Tx scopes a group of item mutations that become visible atomically at
// Commit. A failed operation poisons the transaction; Commit then fails
// and nothing is applied.
type Tx interface {
	CreateItem(ctx context.Context, collectionID string, feature *core.Feature) error
	UpdateItem(ctx context.Context, collectionID string, feature *core.Feature) error
	DeleteItem(ctx context.Context, collectionID, itemID string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
