// Copyright 2025 Esteban Alvarez. All Rights Reserved.
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

// Package robots loads the Disallow prefixes for User-agent: * from a
// robots.txt file. There is no general-purpose robots.txt parsing library
// in play here; the rule set this feature needs is a single substring
// prefix match, matching the source service's own hand-rolled parser.
package robots

import (
	"bufio"
	"os"
	"strings"
)

// Rules is an immutable, load-once-read-many set of disallowed path
// prefixes for User-agent: *.
type Rules struct {
	disallowed []string
}

// Load parses path and returns the resulting Rules. A missing file is not
// an error: it yields an empty rule set, matching the source behavior of
// logging a warning and continuing with no rules loaded.
func Load(path string) (*Rules, error) {
	r := &Rules{}
	if path == "" {
		return r, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return r, err
	}
	defer f.Close()

	var currentIsWildcard bool
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "user-agent:"):
			ua := strings.TrimSpace(strings.SplitN(line, ":", 2)[1])
			currentIsWildcard = ua == "*"
		case strings.HasPrefix(line, "disallow:") && currentIsWildcard:
			rule := strings.TrimSpace(strings.SplitN(line, ":", 2)[1])
			if rule != "" && rule != "/" {
				if _, ok := seen[rule]; !ok {
					seen[rule] = struct{}{}
					r.disallowed = append(r.disallowed, rule)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return r, err
	}
	return r, nil
}

// IsDisallowed reports whether path is covered by any loaded Disallow
// prefix.
func (r *Rules) IsDisallowed(path string) bool {
	if r == nil || path == "" {
		return false
	}
	for _, prefix := range r.disallowed {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
