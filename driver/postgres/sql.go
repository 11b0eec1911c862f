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
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/go-geospatial/featureserv/apierr"
	"github.com/go-geospatial/featureserv/core"
	"github.com/go-geospatial/featureserv/filter"
)

var dialect = goqu.Dialect("postgres")

// buildWhere translates a pushed-down predicate into a goqu expression.
// Callers only pass predicates filter.Split approved against this
// driver's capabilities, so an untranslatable node is an internal error.
func buildWhere(p filter.Predicate, collection *core.Collection) (exp.Expression, error) {
	switch pred := p.(type) {
	case *filter.And:
		children, err := buildChildren(pred.Preds, collection)
		if err != nil {
			return nil, err
		}
		return goqu.And(children...), nil
	case *filter.Or:
		children, err := buildChildren(pred.Preds, collection)
		if err != nil {
			return nil, err
		}
		return goqu.Or(children...), nil
	case *filter.Not:
		inner, err := buildWhere(pred.Pred, collection)
		if err != nil {
			return nil, err
		}
		// IS NOT TRUE so a NULL geom or property negates to true, matching
		// the evaluator, which treats missing values as a non-match.
		return goqu.L("(?) IS NOT TRUE", inner), nil
	case *filter.BBox:
		return goqu.L("geom && ST_MakeEnvelope(?, ?, ?, ?, 4326)",
			pred.MinX, pred.MinY, pred.MaxX, pred.MaxY), nil
	case *filter.TimeRange:
		var bounds []exp.Expression
		if pred.Start != nil {
			bounds = append(bounds, goqu.C("datetime").Gte(*pred.Start))
		}
		if pred.End != nil {
			bounds = append(bounds, goqu.C("datetime").Lte(*pred.End))
		}
		return goqu.And(bounds...), nil
	case *filter.Compare:
		return buildCompare(pred, collection)
	default:
		return nil, apierr.Newf(apierr.KindInternal, "cannot translate predicate %T to SQL", p)
	}
}

func buildChildren(preds []filter.Predicate, collection *core.Collection) ([]exp.Expression, error) {
	children := make([]exp.Expression, 0, len(preds))
	for _, child := range preds {
		built, err := buildWhere(child, collection)
		if err != nil {
			return nil, err
		}
		children = append(children, built)
	}
	return children, nil
}

func buildCompare(pred *filter.Compare, collection *core.Collection) (exp.Expression, error) {
	if pred.Op == filter.OpLike {
		// pattern predicates are not in this driver's capabilities
		return nil, apierr.New(apierr.KindInternal, "LIKE predicate reached SQL translation")
	}

	var column exp.Comparable
	if pred.Property == "id" {
		column = goqu.C("id")
	} else {
		switch propertyType(collection, pred.Property) {
		case "number", "integer":
			column = goqu.L("(properties->>?)::numeric", pred.Property)
		case "boolean":
			column = goqu.L("(properties->>?)::boolean", pred.Property)
		case "datetime":
			column = goqu.L("(properties->>?)::timestamptz", pred.Property)
		default:
			column = goqu.L("properties->>?", pred.Property)
		}
	}

	switch pred.Op {
	case filter.OpEq:
		return column.Eq(pred.Value), nil
	case filter.OpNe:
		return column.Neq(pred.Value), nil
	case filter.OpLt:
		return column.Lt(pred.Value), nil
	case filter.OpLe:
		return column.Lte(pred.Value), nil
	case filter.OpGt:
		return column.Gt(pred.Value), nil
	case filter.OpGe:
		return column.Gte(pred.Value), nil
	default:
		return nil, apierr.Newf(apierr.KindInternal, "unsupported comparison operator %s", pred.Op)
	}
}

func propertyType(collection *core.Collection, name string) string {
	for _, q := range collection.Queryables {
		if q.Name == name {
			return q.Type
		}
	}
	return "string"
}
