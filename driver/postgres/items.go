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
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	geojson "github.com/paulmach/orb/geojson"

	"github.com/go-geospatial/featureserv/apierr"
	"github.com/go-geospatial/featureserv/core"
	"github.com/go-geospatial/featureserv/driver"
	"github.com/go-geospatial/featureserv/filter"
)

func featureColumns() []interface{} {
	return []interface{}{
		goqu.C("id"),
		goqu.C("version"),
		goqu.L("ST_AsGeoJSON(geom)").As("geometry"),
		goqu.C("properties"),
		goqu.C("assets"),
		goqu.C("links"),
	}
}

func (d *Driver) QueryItems(ctx context.Context, query driver.Query) (*driver.Page, error) {
	if query.Limit < 1 {
		return nil, apierr.Newf(apierr.KindInvalidArgument, "limit must be positive, got %d", query.Limit)
	}
	for _, s := range query.Sort {
		if s.Field != "id" {
			return nil, apierr.Newf(apierr.KindInvalidArgument,
				"postgres backend sorts by id only, got '%s'", s.Field)
		}
	}

	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, mapPgError(err, "failed to acquire connection")
	}
	defer conn.Release()

	collection, err := getCollection(ctx, conn, query.Collection)
	if err != nil {
		return nil, err
	}

	push, residual := filter.Split(query.Predicate, d.Capabilities(), collection)

	lastID, err := driver.DecodeToken(query)
	if err != nil {
		return nil, err
	}

	var where []exp.Expression
	if push != nil {
		built, err := buildWhere(push, collection)
		if err != nil {
			return nil, err
		}
		where = append(where, built)
	}
	if lastID != "" {
		where = append(where, goqu.C("id").Gt(lastID))
	}

	ds := dialect.From(goqu.S("items").Table(query.Collection)).
		Select(featureColumns()...).
		Order(goqu.C("id").Asc()).
		Limit(uint(query.Limit + 1))
	if len(where) > 0 {
		ds = ds.Where(where...)
	}
	sqlStr, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, err, "failed to build items query")
	}

	rows, err := conn.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, mapPgError(err, "failed to query items")
	}
	defer rows.Close()

	page := &driver.Page{Residual: residual}
	for rows.Next() {
		feature, err := scanFeature(rows, query.Collection)
		if err != nil {
			return nil, err
		}
		if len(page.Items) == query.Limit {
			page.NextToken = driver.EncodeToken(query, page.Items[len(page.Items)-1].ID)
			break
		}
		page.Items = append(page.Items, *feature)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err, "failed to iterate items")
	}
	return page, nil
}

func (d *Driver) GetItem(ctx context.Context, collectionID, itemID string) (*core.Feature, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, mapPgError(err, "failed to acquire connection")
	}
	defer conn.Release()
	return getItem(ctx, conn, collectionID, itemID)
}

func getItem(ctx context.Context, q querier, collectionID, itemID string) (*core.Feature, error) {
	sqlStr, args, err := dialect.From(goqu.S("items").Table(collectionID)).
		Select(featureColumns()...).
		Where(goqu.C("id").Eq(itemID)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, err, "failed to build item query")
	}
	feature, err := scanFeature(q.QueryRow(ctx, sqlStr, args...), collectionID)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, apierr.Newf(apierr.KindNotFound, "collection '%s' not found", collectionID)
		}
		if apierr.KindOf(err) == apierr.KindNotFound {
			return nil, apierr.Newf(apierr.KindNotFound,
				"item '%s' not found in collection '%s'", itemID, collectionID)
		}
		return nil, err
	}
	return feature, nil
}

func (d *Driver) CreateItem(ctx context.Context, collectionID string, feature *core.Feature) error {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return mapPgError(err, "failed to acquire connection")
	}
	defer conn.Release()
	return createItem(ctx, conn, collectionID, feature)
}

func createItem(ctx context.Context, q querier, collectionID string, feature *core.Feature) error {
	enc, err := encodeFeature(feature)
	if err != nil {
		return err
	}
	version := uuid.NewString()
	_, err = q.Exec(ctx,
		`INSERT INTO `+itemsTable(collectionID)+
			` (id, version, geom, datetime, properties, assets, links)
			VALUES ($1, $2, ST_SetSRID(ST_GeomFromGeoJSON($3), 4326), $4, $5, $6, $7)`,
		feature.ID, version, enc.geometry, enc.datetime, enc.properties, enc.assets, enc.links)
	if err != nil {
		if isUniqueViolation(err) {
			return apierr.Newf(apierr.KindAlreadyExists,
				"item '%s' already exists in collection '%s'", feature.ID, collectionID)
		}
		if isUndefinedTable(err) {
			return apierr.Newf(apierr.KindNotFound, "collection '%s' not found", collectionID)
		}
		return mapPgError(err, "failed to insert item")
	}
	feature.Version = version
	return nil
}

func updateItem(ctx context.Context, q querier, collectionID string, feature *core.Feature) error {
	row := q.QueryRow(ctx,
		`SELECT version FROM `+itemsTable(collectionID)+` WHERE id = $1 FOR UPDATE`,
		feature.ID)
	var currentVersion string
	if err := row.Scan(&currentVersion); err != nil {
		mapped := mapPgError(err, "failed to read current item version")
		if isUndefinedTable(err) {
			return apierr.Newf(apierr.KindNotFound, "collection '%s' not found", collectionID)
		}
		if apierr.KindOf(mapped) == apierr.KindNotFound {
			return apierr.Newf(apierr.KindNotFound,
				"item '%s' not found in collection '%s'", feature.ID, collectionID)
		}
		return mapped
	}
	if feature.Version != "" && feature.Version != currentVersion {
		return apierr.Newf(apierr.KindConflict,
			"version token does not match stored version of item '%s'", feature.ID)
	}

	current, err := getItem(ctx, q, collectionID, feature.ID)
	if err != nil {
		return err
	}
	if featureContentEqual(current, feature, collectionID) {
		// identical retry, keep the stored version
		feature.Version = currentVersion
		return nil
	}

	enc, err := encodeFeature(feature)
	if err != nil {
		return err
	}
	version := uuid.NewString()
	_, err = q.Exec(ctx,
		`UPDATE `+itemsTable(collectionID)+
			` SET version = $2, geom = ST_SetSRID(ST_GeomFromGeoJSON($3), 4326),
			datetime = $4, properties = $5, assets = $6, links = $7
			WHERE id = $1`,
		feature.ID, version, enc.geometry, enc.datetime, enc.properties, enc.assets, enc.links)
	if err != nil {
		return mapPgError(err, "failed to update item")
	}
	feature.Version = version
	return nil
}

// UpdateItem runs the version check and write in one transaction so
// concurrent updates to the same item serialize on the row lock and the
// loser observes Conflict.
func (d *Driver) UpdateItem(ctx context.Context, collectionID string, feature *core.Feature) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return mapPgError(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := updateItem(ctx, tx, collectionID, feature); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err, "failed to commit item update")
	}
	return nil
}

func (d *Driver) DeleteItem(ctx context.Context, collectionID, itemID string) error {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return mapPgError(err, "failed to acquire connection")
	}
	defer conn.Release()
	return deleteItem(ctx, conn, collectionID, itemID)
}

func deleteItem(ctx context.Context, q querier, collectionID, itemID string) error {
	tag, err := q.Exec(ctx, `DELETE FROM `+itemsTable(collectionID)+` WHERE id = $1`, itemID)
	if err != nil {
		if isUndefinedTable(err) {
			return apierr.Newf(apierr.KindNotFound, "collection '%s' not found", collectionID)
		}
		return mapPgError(err, "failed to delete item")
	}
	if tag.RowsAffected() == 0 {
		return apierr.Newf(apierr.KindNotFound,
			"item '%s' not found in collection '%s'", itemID, collectionID)
	}
	return nil
}

type encodedFeature struct {
	geometry   *string
	datetime   *time.Time
	properties []byte
	assets     []byte
	links      []byte
}

func encodeFeature(f *core.Feature) (*encodedFeature, error) {
	enc := &encodedFeature{}

	if f.Geometry != nil {
		raw, err := json.Marshal(f.Geometry)
		if err != nil {
			return nil, apierr.Wrap(apierr.KindValidation, err, "could not marshal geometry")
		}
		s := string(raw)
		enc.geometry = &s
	}

	if raw, ok := f.Properties["datetime"]; ok {
		if str, ok := raw.(string); ok {
			if instant, err := time.Parse(time.RFC3339, str); err == nil {
				enc.datetime = &instant
			}
		}
	}

	props := f.Properties
	if props == nil {
		props = map[string]interface{}{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindValidation, err, "could not marshal properties")
	}
	enc.properties = raw

	if len(f.Assets) > 0 {
		if enc.assets, err = json.Marshal(f.Assets); err != nil {
			return nil, apierr.Wrap(apierr.KindValidation, err, "could not marshal assets")
		}
	}
	if len(f.Links) > 0 {
		if enc.links, err = json.Marshal(f.Links); err != nil {
			return nil, apierr.Wrap(apierr.KindValidation, err, "could not marshal links")
		}
	}
	return enc, nil
}

func scanFeature(row rowScanner, collectionID string) (*core.Feature, error) {
	var id, version string
	var geomJSON *string
	var properties, assets, links []byte

	if err := row.Scan(&id, &version, &geomJSON, &properties, &assets, &links); err != nil {
		return nil, mapPgError(err, "failed to scan item row")
	}

	feature := &core.Feature{
		Type:       "Feature",
		ID:         id,
		Collection: collectionID,
		Version:    version,
		Properties: map[string]interface{}{},
	}
	if geomJSON != nil {
		geom, err := geojson.UnmarshalGeometry([]byte(*geomJSON))
		if err != nil {
			return nil, apierr.Wrap(apierr.KindInternal, err, "stored geometry is invalid GeoJSON")
		}
		feature.Geometry = geom
	}
	if properties != nil {
		if err := json.Unmarshal(properties, &feature.Properties); err != nil {
			return nil, apierr.Wrap(apierr.KindInternal, err, "stored properties JSON is invalid")
		}
	}
	if assets != nil {
		if err := json.Unmarshal(assets, &feature.Assets); err != nil {
			return nil, apierr.Wrap(apierr.KindInternal, err, "stored assets JSON is invalid")
		}
	}
	if links != nil {
		if err := json.Unmarshal(links, &feature.Links); err != nil {
			return nil, apierr.Wrap(apierr.KindInternal, err, "stored links JSON is invalid")
		}
	}
	return feature, nil
}

func featureContentEqual(current, incoming *core.Feature, collectionID string) bool {
	normalized := *incoming
	normalized.Type = "Feature"
	normalized.Collection = collectionID
	rawA, errA := json.Marshal(current)
	rawB, errB := json.Marshal(&normalized)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(rawA, rawB)
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}
