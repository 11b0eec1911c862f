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

package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-geospatial/featureserv/apierr"
)

func TestParseCQLComparison(t *testing.T) {
	pred, err := ParseCQL("name = 'central park'")
	require.NoError(t, err)

	cmp, ok := pred.(*Compare)
	require.True(t, ok)
	assert.Equal(t, OpEq, cmp.Op)
	assert.Equal(t, "name", cmp.Property)
	assert.Equal(t, "central park", cmp.Value)
}

func TestParseCQLNumberAndOperators(t *testing.T) {
	for text, op := range map[string]Op{
		"area = 10":    OpEq,
		"area <> 10":   OpNe,
		"area < 10":    OpLt,
		"area <= 10":   OpLe,
		"area > 10":    OpGt,
		"area >= 10.5": OpGe,
	} {
		pred, err := ParseCQL(text)
		require.NoError(t, err, text)
		cmp := pred.(*Compare)
		assert.Equal(t, op, cmp.Op, text)
		assert.IsType(t, float64(0), cmp.Value, text)
	}
}

func TestParseCQLBooleanAndKeywordCase(t *testing.T) {
	pred, err := ParseCQL("open = TRUE and area > 3")
	require.NoError(t, err)

	and, ok := pred.(*And)
	require.True(t, ok)
	require.Len(t, and.Preds, 2)
	assert.Equal(t, true, and.Preds[0].(*Compare).Value)
}

func TestParseCQLPrecedence(t *testing.T) {
	// AND binds tighter than OR
	pred, err := ParseCQL("a = 1 OR b = 2 AND c = 3")
	require.NoError(t, err)

	or, ok := pred.(*Or)
	require.True(t, ok)
	require.Len(t, or.Preds, 2)
	_, ok = or.Preds[1].(*And)
	assert.True(t, ok)
}

func TestParseCQLParensAndNot(t *testing.T) {
	pred, err := ParseCQL("NOT (a = 1 OR b = 2)")
	require.NoError(t, err)

	not, ok := pred.(*Not)
	require.True(t, ok)
	_, ok = not.Pred.(*Or)
	assert.True(t, ok)
}

func TestParseCQLLike(t *testing.T) {
	pred, err := ParseCQL("name LIKE 'cen%'")
	require.NoError(t, err)

	cmp := pred.(*Compare)
	assert.Equal(t, OpLike, cmp.Op)
	assert.Equal(t, "cen%", cmp.Value)
}

func TestParseCQLEscapedQuote(t *testing.T) {
	pred, err := ParseCQL("name = 'o''hare'")
	require.NoError(t, err)
	assert.Equal(t, "o'hare", pred.(*Compare).Value)
}

func TestParseCQLErrors(t *testing.T) {
	for name, text := range map[string]string{
		"empty":             "",
		"dangling operator": "a =",
		"unclosed paren":    "(a = 1",
		"unclosed string":   "a = 'oops",
		"trailing token":    "a = 1 b",
		"missing property":  "= 1",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCQL(text)
			require.Error(t, err)
			assert.Equal(t, apierr.KindInvalidArgument, apierr.KindOf(err))
		})
	}
}

func TestCanonicalFormStable(t *testing.T) {
	a, err := ParseCQL("name = 'x' AND area > 2")
	require.NoError(t, err)
	b, err := ParseCQL("name  =  'x'  and  area  >  2")
	require.NoError(t, err)
	assert.Equal(t, Canonical(a), Canonical(b))

	c, err := ParseCQL("name = 'y' AND area > 2")
	require.NoError(t, err)
	assert.NotEqual(t, Canonical(a), Canonical(c))
}
