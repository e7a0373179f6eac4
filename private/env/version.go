// Copyright 2025 The udplex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package env

import (
	"fmt"
	"runtime"
)

// version is overridden at build time via -ldflags.
var version = "unknown"

// VersionInfo returns a multi-line version information string.
func VersionInfo() string {
	return fmt.Sprintf("  udplex: %s\n  Go: %s %s/%s\n",
		version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
