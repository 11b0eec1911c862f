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

// Package conformance holds the registry of extensions a build enables.
// Conformance classes, route activation, and the generated API
// description are all derived from the one extension set selected at
// startup, so the advertised and actual surface cannot drift apart.
package conformance

import (
	"sort"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/go-geospatial/featureserv/apierr"
)

// ResourceKind names a routable resource or capability an extension
// contributes.
type ResourceKind string

const (
	KindLanding      ResourceKind = "landing"
	KindConformance  ResourceKind = "conformance"
	KindAPI          ResourceKind = "api"
	KindHealth       ResourceKind = "health"
	KindCollections  ResourceKind = "collections"
	KindItems        ResourceKind = "items"
	KindQueryables   ResourceKind = "queryables"
	KindTransactions ResourceKind = "transactions"
	KindFilter       ResourceKind = "filter"
	KindSTAC         ResourceKind = "stac"
	KindEDR          ResourceKind = "edr"
	KindStyles       ResourceKind = "styles"
	KindTiles        ResourceKind = "tiles"
	KindProcesses    ResourceKind = "processes"
)

// Extension declares one selectable capability set: its conformance
// URIs, the resource kinds it activates, and the API-description
// fragment it contributes.
type Extension struct {
	Name     string
	Classes  []string
	Kinds    []ResourceKind
	Fragment json.RawMessage
}

// Registry is immutable after construction and shared by every request.
type Registry struct {
	extensions []Extension
	classes    []string
	active     map[ResourceKind]bool
	document   json.RawMessage
}

// NewRegistry builds a registry for the named extensions. The core
// extension is always included. Unknown names fail construction; a
// deployment must not silently run without a capability it was
// configured for.
func NewRegistry(enabled []string) (*Registry, error) {
	selected := map[string]Extension{"core": builtin["core"]}
	for _, name := range enabled {
		ext, ok := builtin[name]
		if !ok {
			return nil, apierr.Newf(apierr.KindInvalidArgument, "unknown extension '%s'", name)
		}
		selected[name] = ext
	}

	extensions := make([]Extension, 0, len(selected))
	for _, ext := range selected {
		extensions = append(extensions, ext)
	}
	// deterministic order independent of registration order
	sort.Slice(extensions, func(i, j int) bool {
		return extensions[i].Classes[0] < extensions[j].Classes[0]
	})

	classSet := make(map[string]bool)
	active := make(map[ResourceKind]bool)
	for _, ext := range extensions {
		for _, class := range ext.Classes {
			classSet[class] = true
		}
		for _, kind := range ext.Kinds {
			active[kind] = true
		}
	}
	classes := make([]string, 0, len(classSet))
	for class := range classSet {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	r := &Registry{
		extensions: extensions,
		classes:    classes,
		active:     active,
	}
	document, err := r.buildDocument()
	if err != nil {
		return nil, err
	}
	r.document = document
	return r, nil
}

// Classes returns the sorted conformance class URIs of this build.
func (r *Registry) Classes() []string {
	classes := make([]string, len(r.classes))
	copy(classes, r.classes)
	return classes
}

// IsActive reports whether routes for the resource kind are served.
func (r *Registry) IsActive(kind ResourceKind) bool {
	return r.active[kind]
}

// Extensions returns the selected extensions in merge order.
func (r *Registry) Extensions() []Extension {
	extensions := make([]Extension, len(r.extensions))
	copy(extensions, r.extensions)
	return extensions
}

// Document returns the generated API description, assembled once at
// construction from the same extension set as Classes and IsActive.
func (r *Registry) Document() json.RawMessage {
	return r.document
}

var (
	once     sync.Once
	instance *Registry
)

// Active returns the process-wide registry, built once from the
// extensions.enabled config list. An empty list selects the default
// extension set.
func Active() *Registry {
	once.Do(func() {
		enabled := viper.GetStringSlice("extensions.enabled")
		if len(enabled) == 0 {
			enabled = DefaultExtensions()
		}
		var err error
		instance, err = NewRegistry(enabled)
		if err != nil {
			log.Fatal().Err(err).Strs("extensions", enabled).Msg("could not build conformance registry")
		}
		log.Info().Strs("extensions", enabled).Msg("conformance registry initialized")
	})
	return instance
}

// SetActive replaces the process-wide registry. Tests use it to run
// handlers against a specific extension set.
func SetActive(r *Registry) {
	once.Do(func() {})
	instance = r
}

// DefaultExtensions is the extension set served when none is configured.
func DefaultExtensions() []string {
	return []string{"transactions", "queryables", "filter", "stac"}
}
