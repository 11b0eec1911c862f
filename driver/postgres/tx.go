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

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/go-geospatial/featureserv/core"
	"github.com/go-geospatial/featureserv/driver"
)

// pgTx adapts pgx.Tx to the driver transaction contract. All item
// mutations share the statement helpers with the non-transactional path.
type pgTx struct {
	tx pgx.Tx
}

func (d *Driver) Begin(ctx context.Context) (driver.Tx, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, mapPgError(err, "failed to begin transaction")
	}
	return &pgTx{tx: tx}, nil
}

func (t *pgTx) CreateItem(ctx context.Context, collectionID string, feature *core.Feature) error {
	return createItem(ctx, t.tx, collectionID, feature)
}

func (t *pgTx) UpdateItem(ctx context.Context, collectionID string, feature *core.Feature) error {
	return updateItem(ctx, t.tx, collectionID, feature)
}

func (t *pgTx) DeleteItem(ctx context.Context, collectionID, itemID string) error {
	return deleteItem(ctx, t.tx, collectionID, itemID)
}

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return mapPgError(err, "failed to commit transaction")
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return mapPgError(err, "failed to roll back transaction")
	}
	return nil
}
