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

package config

import "github.com/spf13/viper"

// defaultKnownBadUAs / defaultKnownBenignUAs mirror the original service's
// KNOWN_BAD_UAS / KNOWN_BENIGN_CRAWLERS_UAS constants exactly.
var defaultKnownBadUAs = []string{
	"python-requests", "curl", "wget", "scrapy", "java/", "ahrefsbot",
	"semrushbot", "mj12bot", "dotbot", "petalbot", "bytespider", "gptbot",
	"ccbot", "claude-web", "google-extended", "dataprovider", "purebot",
	"scan", "masscan", "zgrab", "nmap",
}

var defaultKnownBenignUAs = []string{
	"googlebot", "bingbot", "slurp", "duckduckbot", "baiduspider",
	"yandexbot", "googlebot-image",
}

// envNames lists every configuration key recognised from the environment,
// per spec.md §6. viper.BindEnv uses the key itself as the variable name
// when no explicit name is given, so this list doubles as the set of
// externally-documented environment variables.
var envNames = []string{
	"REDIS_HOST", "REDIS_PORT", "REDIS_DB_FREQUENCY", "REDIS_DB_BLOCKLIST",
	"REDIS_DB_HOPS", "REDIS_DB_TARPIT_FLAGS", "REDIS_DIAL_TIMEOUT_SEC",
	"ESCALATION_PORT", "ESCALATION_WEBHOOK_URL", "MODEL_ARTIFACT_PATH",
	"ROBOTS_TXT_PATH", "FREQUENCY_WINDOW_SECONDS",
	"HEURISTIC_THRESHOLD_LOW", "HEURISTIC_THRESHOLD_MEDIUM", "HEURISTIC_THRESHOLD_HIGH",
	"KNOWN_BAD_UAS", "KNOWN_BENIGN_CRAWLER_UAS",
	"LOCAL_LLM_API_URL", "LOCAL_LLM_MODEL", "LOCAL_LLM_TIMEOUT",
	"EXTERNAL_CLASSIFICATION_API_URL", "EXTERNAL_CLASSIFICATION_API_KEY", "EXTERNAL_API_TIMEOUT",
	"RECEIVER_PORT", "ALERT_METHOD", "ALERT_GENERIC_WEBHOOK_URL", "ALERT_SLACK_WEBHOOK_URL",
	"ALERT_SMTP_HOST", "ALERT_SMTP_PORT", "ALERT_SMTP_USER", "ALERT_SMTP_PASSWORD",
	"ALERT_SMTP_PASSWORD_FILE", "ALERT_SMTP_USE_TLS", "ALERT_EMAIL_FROM", "ALERT_EMAIL_TO",
	"ALERT_MIN_REASON_SEVERITY", "ALERT_SLACK_USERNAME", "ALERT_SLACK_ICON_EMOJI", "LOG_DIR",
	"TARPIT_PORT", "ESCALATION_ENDPOINT", "TARPIT_MAX_HOPS", "HOP_LIMIT_ENABLED",
	"MIN_STREAM_DELAY_SEC", "MAX_STREAM_DELAY_SEC", "TARPIT_FLAG_TTL", "TARPIT_STRATEGY",
	"ENABLE_FINGERPRINTING", "MARKOV_CORPUS_PATH", "LOG_LEVEL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB_FREQUENCY", 3)
	v.SetDefault("REDIS_DB_BLOCKLIST", 2)
	v.SetDefault("REDIS_DB_HOPS", 1)
	v.SetDefault("REDIS_DB_TARPIT_FLAGS", 4)
	v.SetDefault("REDIS_DIAL_TIMEOUT_SEC", 2)

	v.SetDefault("ESCALATION_PORT", 8003)
	v.SetDefault("MODEL_ARTIFACT_PATH", "")
	v.SetDefault("ROBOTS_TXT_PATH", "")
	v.SetDefault("FREQUENCY_WINDOW_SECONDS", 300)
	v.SetDefault("HEURISTIC_THRESHOLD_LOW", 0.3)
	v.SetDefault("HEURISTIC_THRESHOLD_MEDIUM", 0.6)
	v.SetDefault("HEURISTIC_THRESHOLD_HIGH", 0.8)

	v.SetDefault("LOCAL_LLM_API_URL", "http://localhost:11434/v1/chat/completions")
	v.SetDefault("LOCAL_LLM_MODEL", "llama3:latest")
	v.SetDefault("LOCAL_LLM_TIMEOUT", 45.0)
	v.SetDefault("EXTERNAL_API_TIMEOUT", 15.0)

	v.SetDefault("RECEIVER_PORT", 8000)
	v.SetDefault("ALERT_METHOD", "none")
	v.SetDefault("ALERT_SMTP_PORT", 587)
	v.SetDefault("ALERT_SMTP_USE_TLS", true)
	v.SetDefault("ALERT_MIN_REASON_SEVERITY", "Local LLM")
	v.SetDefault("ALERT_SLACK_USERNAME", "AI Defense")
	v.SetDefault("ALERT_SLACK_ICON_EMOJI", ":shield:")
	v.SetDefault("LOG_DIR", "./logs")

	v.SetDefault("TARPIT_PORT", 8001)
	v.SetDefault("ESCALATION_ENDPOINT", "http://localhost:8003/escalate")
	v.SetDefault("TARPIT_MAX_HOPS", 250)
	v.SetDefault("HOP_LIMIT_ENABLED", true)
	v.SetDefault("MIN_STREAM_DELAY_SEC", 0.6)
	v.SetDefault("MAX_STREAM_DELAY_SEC", 1.2)
	v.SetDefault("TARPIT_FLAG_TTL", 300)
	v.SetDefault("TARPIT_STRATEGY", "markov")
	v.SetDefault("ENABLE_FINGERPRINTING", false)
	v.SetDefault("MARKOV_CORPUS_PATH", "")

	v.SetDefault("LOG_LEVEL", "info")
}
