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

// Package postgres implements the driver contract against PostgreSQL with
// PostGIS. Collection metadata lives in meta.collections; each collection
// owns one table under the items schema, provisioned and dropped inside
// the same transaction as its metadata row. Spatial, temporal, and
// comparison predicates on native queryables are pushed down as SQL;
// pattern predicates stay residual.
package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	json "github.com/goccy/go-json"

	"github.com/go-geospatial/featureserv/apierr"
	"github.com/go-geospatial/featureserv/core"
	"github.com/go-geospatial/featureserv/filter"
)

type Driver struct {
	pool *pgxpool.Pool
}

// querier is satisfied by the pool, an acquired connection, and pgx.Tx,
// so the same statement helpers serve both transactional and plain paths.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// New connects the pool and provisions the metadata schema.
func New(ctx context.Context, dsn string) (*Driver, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindBackendUnavailable, err, "failed to create database pool")
	}
	d := &Driver{pool: pool}
	if err := d.setup(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log.Debug().Msg("postgres driver initialized")
	return d, nil
}

func (d *Driver) setup(ctx context.Context) error {
	statements := []string{
		`CREATE SCHEMA IF NOT EXISTS meta`,
		`CREATE SCHEMA IF NOT EXISTS items`,
		`CREATE TABLE IF NOT EXISTS meta.collections (
			id text PRIMARY KEY,
			content jsonb NOT NULL,
			queryables jsonb NOT NULL DEFAULT '[]'::jsonb
		)`,
	}
	for _, stmt := range statements {
		if _, err := d.pool.Exec(ctx, stmt); err != nil {
			return mapPgError(err, "failed to provision metadata schema")
		}
	}
	return nil
}

func (d *Driver) Capabilities() filter.Capabilities {
	return filter.Capabilities{Spatial: true, Temporal: true, Comparison: true}
}

func (d *Driver) Ping(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return mapPgError(err, "database ping failed")
	}
	return nil
}

func (d *Driver) Close() {
	d.pool.Close()
}

// storedQueryable carries the native flag that the wire representation of
// core.Queryable deliberately omits.
type storedQueryable struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Native bool   `json:"native"`
}

func (d *Driver) ListCollections(ctx context.Context) ([]core.Collection, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, mapPgError(err, "failed to acquire connection")
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT content, queryables FROM meta.collections ORDER BY id`)
	if err != nil {
		return nil, mapPgError(err, "failed to query collections")
	}
	defer rows.Close()

	collections := make([]core.Collection, 0, 16)
	for rows.Next() {
		collection, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		collections = append(collections, *collection)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err, "failed to iterate collections")
	}
	return collections, nil
}

func (d *Driver) GetCollection(ctx context.Context, id string) (*core.Collection, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, mapPgError(err, "failed to acquire connection")
	}
	defer conn.Release()
	return getCollection(ctx, conn, id)
}

func getCollection(ctx context.Context, q querier, id string) (*core.Collection, error) {
	row := q.QueryRow(ctx, `SELECT content, queryables FROM meta.collections WHERE id = $1`, id)
	collection, err := scanCollection(row)
	if err != nil {
		if apierr.KindOf(err) == apierr.KindNotFound {
			return nil, apierr.Newf(apierr.KindNotFound, "collection '%s' not found", id)
		}
		return nil, err
	}
	return collection, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (*core.Collection, error) {
	var content, queryables []byte
	if err := row.Scan(&content, &queryables); err != nil {
		return nil, mapPgError(err, "failed to scan collection row")
	}
	var collection core.Collection
	if err := json.Unmarshal(content, &collection); err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, err, "stored collection JSON is invalid")
	}
	var stored []storedQueryable
	if err := json.Unmarshal(queryables, &stored); err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, err, "stored queryables JSON is invalid")
	}
	collection.Queryables = make([]core.Queryable, 0, len(stored))
	for _, q := range stored {
		collection.Queryables = append(collection.Queryables, core.Queryable{
			Name: q.Name, Type: q.Type, Native: q.Native,
		})
	}
	return &collection, nil
}

func marshalCollection(collection *core.Collection) (content, queryables []byte, err error) {
	meta := *collection
	if meta.Type == "" {
		meta.Type = "Collection"
	}
	if meta.ItemType == "" {
		meta.ItemType = "feature"
	}
	content, err = json.Marshal(meta)
	if err != nil {
		return nil, nil, apierr.Wrap(apierr.KindValidation, err, "could not marshal collection")
	}
	stored := make([]storedQueryable, 0, len(collection.Queryables))
	for _, q := range collection.Queryables {
		stored = append(stored, storedQueryable{Name: q.Name, Type: q.Type, Native: q.Native})
	}
	queryables, err = json.Marshal(stored)
	if err != nil {
		return nil, nil, apierr.Wrap(apierr.KindValidation, err, "could not marshal queryables")
	}
	return content, queryables, nil
}

func (d *Driver) CreateCollection(ctx context.Context, collection *core.Collection) error {
	content, queryables, err := marshalCollection(collection)
	if err != nil {
		return err
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return mapPgError(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`INSERT INTO meta.collections (id, content, queryables) VALUES ($1, $2, $3)`,
		collection.ID, content, queryables); err != nil {
		if isUniqueViolation(err) {
			return apierr.Newf(apierr.KindAlreadyExists, "collection '%s' already exists", collection.ID)
		}
		return mapPgError(err, "failed to insert collection")
	}

	table := itemsTable(collection.ID)
	statements := []string{
		`CREATE TABLE ` + table + ` (
			id text PRIMARY KEY,
			version text NOT NULL,
			geom geometry,
			datetime timestamptz,
			properties jsonb NOT NULL DEFAULT '{}'::jsonb,
			assets jsonb,
			links jsonb
		)`,
		`CREATE INDEX ON ` + table + ` USING gin (properties)`,
		`CREATE INDEX ON ` + table + ` USING gist (geom)`,
		`CREATE INDEX ON ` + table + ` (datetime)`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return mapPgError(err, "failed to provision items table")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err, "failed to commit collection create")
	}
	return nil
}

func (d *Driver) UpdateCollection(ctx context.Context, collection *core.Collection) error {
	content, queryables, err := marshalCollection(collection)
	if err != nil {
		return err
	}
	tag, err := d.pool.Exec(ctx,
		`UPDATE meta.collections SET content = $2, queryables = $3 WHERE id = $1`,
		collection.ID, content, queryables)
	if err != nil {
		return mapPgError(err, "failed to update collection")
	}
	if tag.RowsAffected() == 0 {
		return apierr.Newf(apierr.KindNotFound, "collection '%s' not found", collection.ID)
	}
	return nil
}

func (d *Driver) DeleteCollection(ctx context.Context, id string) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return mapPgError(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `DELETE FROM meta.collections WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err, "failed to delete collection")
	}
	if tag.RowsAffected() == 0 {
		return apierr.Newf(apierr.KindNotFound, "collection '%s' not found", id)
	}
	if _, err := tx.Exec(ctx, `DROP TABLE IF EXISTS `+itemsTable(id)); err != nil {
		return mapPgError(err, "failed to drop items table")
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err, "failed to commit collection delete")
	}
	return nil
}

// itemsTable builds the quoted per-collection table name. Collection ids
// pass core.ValidateID before reaching the driver, but quoting does not
// rely on it.
func itemsTable(collectionID string) string {
	return pgx.Identifier{"items", collectionID}.Sanitize()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// mapPgError folds a pgx error into an apierr kind. Connection-class
// failures become BackendUnavailable, the only kind callers retry.
func mapPgError(err error, message string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apierr.Wrap(apierr.KindNotFound, err, "not found")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apierr.Wrap(apierr.KindBackendUnavailable, err, "operation canceled")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57") {
			return apierr.Wrap(apierr.KindBackendUnavailable, err, message)
		}
		return apierr.Wrap(apierr.KindInternal, err, message)
	}
	return apierr.Wrap(apierr.KindBackendUnavailable, err, message)
}
