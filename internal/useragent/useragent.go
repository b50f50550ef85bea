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

// Package useragent classifies user-agent strings against configured
// known-bad and known-benign-crawler lists. No UA-parsing library appears
// anywhere in the retrieved dependency corpus, so this mirrors the source
// service's own fallback path: categorical fields default to "Unknown" and
// ua_library_is_bot mirrors ua_is_known_bad.
package useragent

import "strings"

// Lists holds the configured substring match lists, lower-cased once at
// construction so every lookup is a plain substring scan.
type Lists struct {
	knownBad    []string
	knownBenign []string
}

// NewLists builds a Lists from configuration-supplied UA substrings.
func NewLists(knownBad, knownBenign []string) *Lists {
	return &Lists{
		knownBad:    lower(knownBad),
		knownBenign: lower(knownBenign),
	}
}

func lower(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// IsKnownBad reports whether ua contains any known-bad substring.
func (l *Lists) IsKnownBad(ua string) bool {
	return containsAny(strings.ToLower(ua), l.knownBad)
}

// IsKnownBenignCrawler reports whether ua contains any known-benign substring.
func (l *Lists) IsKnownBenignCrawler(ua string) bool {
	return containsAny(strings.ToLower(ua), l.knownBenign)
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// Parsed is the fallback-only UA feature set: every categorical field is
// "Unknown" and every boolean is 0, except LibraryIsBot which mirrors
// IsKnownBad per spec.
type Parsed struct {
	BrowserFamily string
	OSFamily      string
	DeviceFamily  string
	IsMobile      bool
	IsTablet      bool
	IsPC          bool
	IsTouch       bool
	LibraryIsBot  bool
}

// Parse returns the fallback UA parse result for ua.
func (l *Lists) Parse(ua string) Parsed {
	return Parsed{
		BrowserFamily: "Unknown",
		OSFamily:      "Unknown",
		DeviceFamily:  "Unknown",
		LibraryIsBot:  l.IsKnownBad(ua),
	}
}
