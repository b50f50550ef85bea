package features_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/features"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/model"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/robots"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/useragent"
)

func TestExtractAlwaysPopulatesTheFixedKeySet(t *testing.T) {
	rules := &robots.Rules{}
	ua := useragent.NewLists([]string{"badbot"}, []string{"googlebot"})

	meta := model.RequestMetadata{
		SourceAddress: "203.0.113.5",
		UserAgent:     "badbot/1.0",
		Referer:       "https://example.com/search",
		Path:          "/wp-login.php",
		Timestamp:     time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC), // a Monday
	}
	f := features.Extract(meta, model.FrequencyRecord{Count: 4, TimeSinceLastSec: 1.5}, 60, rules, ua)

	wantKeys := []string{
		"ua_length", "status_code", "bytes_sent", "http_method",
		"path_depth", "path_length", "path_is_root", "path_has_docs", "path_is_wp", "path_disallowed",
		"ua_is_known_bad", "ua_is_known_benign_crawler", "ua_is_empty",
		"ua_browser_family", "ua_os_family", "ua_device_family",
		"ua_is_mobile", "ua_is_tablet", "ua_is_pc", "ua_is_touch", "ua_library_is_bot",
		"referer_is_empty", "referer_has_domain",
		"hour_of_day", "day_of_week",
		"req_freq_60s", "time_since_last_sec",
	}
	for _, k := range wantKeys {
		_, ok := f[k]
		assert.Truef(t, ok, "missing expected feature key %q", k)
	}
}

func TestExtractFlagsKnownBadUserAgentAndWordpressPath(t *testing.T) {
	ua := useragent.NewLists([]string{"badbot"}, nil)
	meta := model.RequestMetadata{UserAgent: "BadBot/9.0", Path: "/wp-admin/"}

	f := features.Extract(meta, model.FrequencyRecord{}, 60, &robots.Rules{}, ua)

	assert.Equal(t, float64(1), f["ua_is_known_bad"].Num)
	assert.Equal(t, float64(1), f["path_is_wp"].Num)
	assert.Equal(t, float64(1), f["ua_library_is_bot"].Num)
}

func TestExtractHourAndDayOfWeekDefaultToMinusOneForZeroTimestamp(t *testing.T) {
	f := features.Extract(model.RequestMetadata{}, model.FrequencyRecord{}, 60, &robots.Rules{}, useragent.NewLists(nil, nil))
	assert.Equal(t, float64(-1), f["hour_of_day"].Num)
	assert.Equal(t, float64(-1), f["day_of_week"].Num)
}

func TestExtractRefererHasDomainRequiresParsableHost(t *testing.T) {
	ua := useragent.NewLists(nil, nil)
	withDomain := features.Extract(model.RequestMetadata{Referer: "https://example.com/x"}, model.FrequencyRecord{}, 60, &robots.Rules{}, ua)
	assert.Equal(t, float64(1), withDomain["referer_has_domain"].Num)

	withoutDomain := features.Extract(model.RequestMetadata{Referer: "not-a-url"}, model.FrequencyRecord{}, 60, &robots.Rules{}, ua)
	assert.Equal(t, float64(0), withoutDomain["referer_has_domain"].Num)

	empty := features.Extract(model.RequestMetadata{}, model.FrequencyRecord{}, 60, &robots.Rules{}, ua)
	assert.Equal(t, float64(1), empty["referer_is_empty"].Num)
}
