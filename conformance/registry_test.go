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

package conformance

import (
	"sort"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryCoreAlwaysIncluded(t *testing.T) {
	r, err := NewRegistry(nil)
	require.NoError(t, err)

	assert.True(t, r.IsActive(KindLanding))
	assert.True(t, r.IsActive(KindConformance))
	assert.True(t, r.IsActive(KindCollections))
	assert.True(t, r.IsActive(KindItems))
	assert.False(t, r.IsActive(KindTransactions))
	assert.NotEmpty(t, r.Classes())
}

func TestNewRegistryUnknownExtension(t *testing.T) {
	_, err := NewRegistry([]string{"warp-drive"})
	require.Error(t, err)
}

func TestRegistryClassesSorted(t *testing.T) {
	r, err := NewRegistry(DefaultExtensions())
	require.NoError(t, err)

	classes := r.Classes()
	assert.True(t, sort.StringsAreSorted(classes))

	// no duplicates
	seen := make(map[string]bool)
	for _, class := range classes {
		assert.False(t, seen[class], class)
		seen[class] = true
	}
}

// The three derived views of the extension set have to agree: an active
// resource kind implies its extension's classes are listed and its paths
// are merged into the document.
func TestRegistryViewsAgree(t *testing.T) {
	configs := [][]string{
		nil,
		{"transactions"},
		{"queryables", "filter"},
		DefaultExtensions(),
		{"transactions", "queryables", "filter", "stac", "edr", "styles", "tiles", "processes"},
	}

	for _, enabled := range configs {
		r, err := NewRegistry(enabled)
		require.NoError(t, err)

		classSet := make(map[string]bool)
		for _, class := range r.Classes() {
			classSet[class] = true
		}

		for _, ext := range r.Extensions() {
			for _, class := range ext.Classes {
				assert.True(t, classSet[class], class)
			}
			for _, kind := range ext.Kinds {
				assert.True(t, r.IsActive(kind), kind)
			}
		}
	}
}

func TestRegistryDocumentMergesFragments(t *testing.T) {
	minimal, err := NewRegistry(nil)
	require.NoError(t, err)
	full, err := NewRegistry([]string{"transactions", "queryables", "filter"})
	require.NoError(t, err)

	var minimalDoc, fullDoc struct {
		OpenAPI string                     `json:"openapi"`
		Paths   map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(minimal.Document(), &minimalDoc))
	require.NoError(t, json.Unmarshal(full.Document(), &fullDoc))

	assert.Equal(t, "3.0.3", minimalDoc.OpenAPI)
	assert.Contains(t, minimalDoc.Paths, "/collections/{collectionId}/items")
	assert.NotContains(t, minimalDoc.Paths, "/collections/{collectionId}/queryables")
	assert.Contains(t, fullDoc.Paths, "/collections/{collectionId}/queryables")
}

func TestRegistryDocumentDeterministic(t *testing.T) {
	a, err := NewRegistry([]string{"filter", "queryables", "transactions"})
	require.NoError(t, err)
	b, err := NewRegistry([]string{"transactions", "filter", "queryables"})
	require.NoError(t, err)

	assert.JSONEq(t, string(a.Document()), string(b.Document()))
}

func TestDefaultExtensionsKnown(t *testing.T) {
	r, err := NewRegistry(DefaultExtensions())
	require.NoError(t, err)
	assert.True(t, r.IsActive(KindTransactions))
	assert.True(t, r.IsActive(KindQueryables))
	assert.True(t, r.IsActive(KindFilter))
}
