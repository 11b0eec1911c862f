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

package core

import (
	"fmt"
)

type Link struct {
	Rel   string `json:"rel"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
	Href  string `json:"href"`
}

// AddLink creates a new link reference in a Links array
// rel is the name of the link relationship
// baseURL is the base URL of this server
// endpoint is the path portion of the URL i.e. <base url><endpoint>
func AddLink(links []Link, baseURL string, rel string, endpoint string, mimeType string) []Link {
	href := fmt.Sprintf("%s%s", baseURL, endpoint)
	links = append(links, Link{
		Rel:  rel,
		Type: mimeType,
		Href: href,
	})

	return links
}
