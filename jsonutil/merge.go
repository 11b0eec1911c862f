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

package jsonutil

import (
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

func isObject(raw []byte) bool {
	return len(raw) > 0 && raw[0] == '{'
}

// Merge recursively folds overlay into base and returns the combined
// document. Keys present in both are merged when both values are JSON
// objects; otherwise the overlay value wins. Neither input is modified.
func Merge(overlay, base []byte) (json.RawMessage, error) {
	overlayMap := make(map[string]*json.RawMessage)
	baseMap := make(map[string]*json.RawMessage)

	if err := json.Unmarshal(overlay, &overlayMap); err != nil {
		log.Error().Err(err).Str("overlay", string(overlay)).Msg("cannot unmarshal JSON")
		return nil, err
	}

	if err := json.Unmarshal(base, &baseMap); err != nil {
		log.Error().Err(err).Str("base", string(base)).Msg("cannot unmarshal JSON")
		return nil, err
	}

	for key, overlayValue := range overlayMap {
		baseValue, present := baseMap[key]
		if present && overlayValue != nil && baseValue != nil &&
			isObject(*overlayValue) && isObject(*baseValue) {
			merged, err := Merge(*overlayValue, *baseValue)
			if err != nil {
				return nil, err
			}
			baseMap[key] = &merged
			continue
		}
		baseMap[key] = overlayValue
	}

	result, err := json.Marshal(baseMap)
	if err != nil {
		log.Error().Err(err).Msg("cannot marshal merged JSON")
		return nil, err
	}
	return result, nil
}

// MergeAll folds each overlay into base in order. Later overlays take
// precedence over earlier ones.
func MergeAll(base []byte, overlays ...[]byte) (json.RawMessage, error) {
	document := json.RawMessage(base)
	for _, overlay := range overlays {
		merged, err := Merge(overlay, document)
		if err != nil {
			return nil, err
		}
		document = merged
	}
	return document, nil
}
