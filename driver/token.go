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

package driver

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/go-geospatial/featureserv/apierr"
	"github.com/go-geospatial/featureserv/filter"
)

// Pagination tokens are opaque to clients and backend-independent: a
// cursor position plus a fingerprint of the filter/sort context that
// issued it. A token presented with a different filter or sort is
// rejected instead of silently resuming the wrong scan.

type cursor struct {
	LastID      string `json:"l"`
	Fingerprint string `json:"f"`
}

// Fingerprint derives the context identity of a query from its canonical
// predicate and sort forms. Limit is excluded: page size may change
// between pages.
func Fingerprint(q Query) string {
	var sb strings.Builder
	sb.WriteString(q.Collection)
	sb.WriteString("|")
	sb.WriteString(filter.Canonical(q.Predicate))
	sb.WriteString("|")
	for _, s := range q.Sort {
		dir := "asc"
		if s.Descending {
			dir = "desc"
		}
		fmt.Fprintf(&sb, "%s:%s;", s.Field, dir)
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:8])
}

// EncodeToken packs the position after lastID into an opaque token for the
// given query context.
func EncodeToken(q Query, lastID string) string {
	raw, _ := json.Marshal(cursor{LastID: lastID, Fingerprint: Fingerprint(q)})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeToken unpacks a client-presented token and verifies it was issued
// by a query with the same predicate and sort context.
func DecodeToken(q Query) (lastID string, err error) {
	if q.Token == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(q.Token)
	if err != nil {
		return "", apierr.Wrap(apierr.KindInvalidArgument, err, "malformed pagination token")
	}
	var cur cursor
	if err := json.Unmarshal(raw, &cur); err != nil {
		return "", apierr.Wrap(apierr.KindInvalidArgument, err, "malformed pagination token")
	}
	if cur.Fingerprint != Fingerprint(q) {
		return "", apierr.New(apierr.KindInvalidArgument,
			"pagination token does not match the query filter or sort")
	}
	return cur.LastID, nil
}
