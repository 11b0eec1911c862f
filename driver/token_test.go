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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-geospatial/featureserv/apierr"
	"github.com/go-geospatial/featureserv/filter"
)

func TestTokenRoundTrip(t *testing.T) {
	query := Query{
		Collection: "parks",
		Predicate:  &filter.Compare{Op: filter.OpGt, Property: "area", Value: 2.0},
		Limit:      10,
	}

	query.Token = EncodeToken(query, "item-42")
	lastID, err := DecodeToken(query)
	require.NoError(t, err)
	assert.Equal(t, "item-42", lastID)
}

func TestTokenEmptyMeansFirstPage(t *testing.T) {
	lastID, err := DecodeToken(Query{Collection: "parks"})
	require.NoError(t, err)
	assert.Equal(t, "", lastID)
}

func TestTokenRejectsChangedPredicate(t *testing.T) {
	original := Query{
		Collection: "parks",
		Predicate:  &filter.Compare{Op: filter.OpGt, Property: "area", Value: 2.0},
	}
	token := EncodeToken(original, "item-42")

	changed := Query{
		Collection: "parks",
		Predicate:  &filter.Compare{Op: filter.OpGt, Property: "area", Value: 3.0},
		Token:      token,
	}
	_, err := DecodeToken(changed)
	require.Error(t, err)
	assert.Equal(t, apierr.KindInvalidArgument, apierr.KindOf(err))
}

func TestTokenRejectsChangedCollection(t *testing.T) {
	token := EncodeToken(Query{Collection: "parks"}, "item-1")

	_, err := DecodeToken(Query{Collection: "rivers", Token: token})
	require.Error(t, err)
	assert.Equal(t, apierr.KindInvalidArgument, apierr.KindOf(err))
}

func TestTokenRejectsGarbage(t *testing.T) {
	_, err := DecodeToken(Query{Collection: "parks", Token: "%%% not base64 %%%"})
	require.Error(t, err)
	assert.Equal(t, apierr.KindInvalidArgument, apierr.KindOf(err))
}

func TestFingerprintIgnoresLimitAndToken(t *testing.T) {
	base := Query{Collection: "parks", Limit: 10}
	other := Query{Collection: "parks", Limit: 50, Token: "whatever"}
	assert.Equal(t, Fingerprint(base), Fingerprint(other))
}
