// Copyright 2024 LatentFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"strings"
)

// IsValidName reports whether name is usable as a single File, Area,
// or directory name: non-empty, with no path separator or NUL byte.
// Engine names are leaf components, never paths, so "/" is rejected
// outright rather than treated as a separator to split on.
func IsValidName(name string) bool {
	if name == "" {
		return false
	}
	return !strings.ContainsAny(name, "/\x00")
}
