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

// Package features extracts the fixed-key feature set the scorer's model
// input requires. The key set must match byte-for-byte what the model
// artifact was trained against; it is never extended ad hoc.
package features

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/model"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/robots"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/useragent"
)

// Extract builds the FeatureMap for meta and freq. Every key in the closed
// set is always present.
func Extract(meta model.RequestMetadata, freq model.FrequencyRecord, windowSeconds int, rules *robots.Rules, uaLists *useragent.Lists) model.FeatureMap {
	f := make(model.FeatureMap, 24)

	ua := meta.UserAgent
	path := meta.Path
	referer := meta.Referer

	f["ua_length"] = model.NumberValue(float64(len(ua)))
	f["status_code"] = model.NumberValue(0)
	f["bytes_sent"] = model.NumberValue(0)
	f["http_method"] = model.StringValue("UNKNOWN")

	f["path_depth"] = model.NumberValue(float64(strings.Count(path, "/")))
	f["path_length"] = model.NumberValue(float64(len(path)))
	f["path_is_root"] = boolNum(path == "/")
	f["path_has_docs"] = boolNum(strings.Contains(path, "/docs"))
	f["path_is_wp"] = boolNum(strings.Contains(path, "/wp-") || strings.Contains(path, "/xmlrpc.php"))
	f["path_disallowed"] = boolNum(rules.IsDisallowed(path))

	uaLower := strings.ToLower(ua)
	isKnownBad := uaLists.IsKnownBad(uaLower)
	isKnownBenign := uaLists.IsKnownBenignCrawler(uaLower)
	f["ua_is_known_bad"] = boolNum(isKnownBad)
	f["ua_is_known_benign_crawler"] = boolNum(isKnownBenign)
	f["ua_is_empty"] = boolNum(ua == "")

	parsed := uaLists.Parse(ua)
	f["ua_browser_family"] = model.StringValue(parsed.BrowserFamily)
	f["ua_os_family"] = model.StringValue(parsed.OSFamily)
	f["ua_device_family"] = model.StringValue(parsed.DeviceFamily)
	f["ua_is_mobile"] = boolNum(parsed.IsMobile)
	f["ua_is_tablet"] = boolNum(parsed.IsTablet)
	f["ua_is_pc"] = boolNum(parsed.IsPC)
	f["ua_is_touch"] = boolNum(parsed.IsTouch)
	f["ua_library_is_bot"] = boolNum(parsed.LibraryIsBot)

	f["referer_is_empty"] = boolNum(referer == "")
	refererHasDomain := false
	if referer != "" {
		if u, err := url.Parse(referer); err == nil {
			refererHasDomain = u.Host != ""
		}
	}
	f["referer_has_domain"] = boolNum(refererHasDomain)

	hour, dow := -1, -1
	if !meta.Timestamp.IsZero() {
		t := meta.Timestamp.UTC()
		hour = t.Hour()
		dow = int(t.Weekday()+6) % 7 // Monday=0 .. Sunday=6, matching Python's weekday()
	}
	f["hour_of_day"] = model.NumberValue(float64(hour))
	f["day_of_week"] = model.NumberValue(float64(dow))

	f[reqFreqKey(windowSeconds)] = model.NumberValue(float64(freq.Count))
	f["time_since_last_sec"] = model.NumberValue(freq.TimeSinceLastSec)

	return f
}

func reqFreqKey(windowSeconds int) string {
	return "req_freq_" + strconv.Itoa(windowSeconds) + "s"
}

func boolNum(b bool) model.Value {
	if b {
		return model.NumberValue(1)
	}
	return model.NumberValue(0)
}
