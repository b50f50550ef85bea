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

// Package config assembles the process configuration the way
// CrlsMrls-dummybox/config does: viper defaults, pflag overrides, and
// environment-variable binding — except the environment variable names are
// fixed by the external interface in spec.md §6, so they're bound directly
// rather than through a single prefix.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every knob the three services (escalation, receiver, tarpit)
// read at startup. A single struct is shared across subcommands; each
// service only consults the fields relevant to it.
type Config struct {
	// Redis / shared KV
	RedisHost           string `mapstructure:"REDIS_HOST"`
	RedisPort           int    `mapstructure:"REDIS_PORT"`
	RedisDBFrequency    int    `mapstructure:"REDIS_DB_FREQUENCY"`
	RedisDBBlocklist    int    `mapstructure:"REDIS_DB_BLOCKLIST"`
	RedisDBHops         int    `mapstructure:"REDIS_DB_HOPS"`
	RedisDBTarpitFlags  int    `mapstructure:"REDIS_DB_TARPIT_FLAGS"`
	RedisDialTimeoutSec int    `mapstructure:"REDIS_DIAL_TIMEOUT_SEC"`

	// Escalation Engine
	EscalationPort           int     `mapstructure:"ESCALATION_PORT"`
	EscalationWebhookURL     string  `mapstructure:"ESCALATION_WEBHOOK_URL"`
	ModelArtifactPath        string  `mapstructure:"MODEL_ARTIFACT_PATH"`
	RobotsTxtPath            string  `mapstructure:"ROBOTS_TXT_PATH"`
	FrequencyWindowSeconds   int     `mapstructure:"FREQUENCY_WINDOW_SECONDS"`
	HeuristicThresholdLow    float64 `mapstructure:"HEURISTIC_THRESHOLD_LOW"`
	HeuristicThresholdMedium float64 `mapstructure:"HEURISTIC_THRESHOLD_MEDIUM"`
	HeuristicThresholdHigh   float64 `mapstructure:"HEURISTIC_THRESHOLD_HIGH"`
	KnownBadUAs              []string
	KnownBenignCrawlerUAs    []string

	LocalLLMAPIURL    string  `mapstructure:"LOCAL_LLM_API_URL"`
	LocalLLMModel     string  `mapstructure:"LOCAL_LLM_MODEL"`
	LocalLLMTimeout   float64 `mapstructure:"LOCAL_LLM_TIMEOUT"`
	ExternalAPIURL    string  `mapstructure:"EXTERNAL_CLASSIFICATION_API_URL"`
	ExternalAPIKey    string  `mapstructure:"EXTERNAL_CLASSIFICATION_API_KEY"`
	ExternalAPITimeout float64 `mapstructure:"EXTERNAL_API_TIMEOUT"`

	// Webhook Receiver
	ReceiverPort          int    `mapstructure:"RECEIVER_PORT"`
	AlertMethod           string `mapstructure:"ALERT_METHOD"`
	AlertGenericWebhook   string `mapstructure:"ALERT_GENERIC_WEBHOOK_URL"`
	AlertSlackWebhook     string `mapstructure:"ALERT_SLACK_WEBHOOK_URL"`
	AlertSMTPHost         string `mapstructure:"ALERT_SMTP_HOST"`
	AlertSMTPPort         int    `mapstructure:"ALERT_SMTP_PORT"`
	AlertSMTPUser         string `mapstructure:"ALERT_SMTP_USER"`
	AlertSMTPPassword     string `mapstructure:"ALERT_SMTP_PASSWORD"`
	AlertSMTPPasswordFile string `mapstructure:"ALERT_SMTP_PASSWORD_FILE"`
	AlertSMTPUseTLS       bool   `mapstructure:"ALERT_SMTP_USE_TLS"`
	AlertEmailFrom        string `mapstructure:"ALERT_EMAIL_FROM"`
	AlertEmailTo          string `mapstructure:"ALERT_EMAIL_TO"`
	AlertMinReasonSeverity string `mapstructure:"ALERT_MIN_REASON_SEVERITY"`
	SlackBotUsername      string `mapstructure:"ALERT_SLACK_USERNAME"`
	SlackIconEmoji        string `mapstructure:"ALERT_SLACK_ICON_EMOJI"`
	LogDir                string `mapstructure:"LOG_DIR"`

	// Tarpit Responder
	TarpitPort          int     `mapstructure:"TARPIT_PORT"`
	EscalationEndpoint  string  `mapstructure:"ESCALATION_ENDPOINT"`
	TarpitMaxHops       int64   `mapstructure:"TARPIT_MAX_HOPS"`
	HopLimitEnabled     bool    `mapstructure:"HOP_LIMIT_ENABLED"`
	MinStreamDelaySec   float64 `mapstructure:"MIN_STREAM_DELAY_SEC"`
	MaxStreamDelaySec   float64 `mapstructure:"MAX_STREAM_DELAY_SEC"`
	TarpitFlagTTLSec    int     `mapstructure:"TARPIT_FLAG_TTL"`
	TarpitStrategy      string  `mapstructure:"TARPIT_STRATEGY"` // "markov" | "labyrinth"
	FingerprintingEnabled bool  `mapstructure:"ENABLE_FINGERPRINTING"`
	MarkovCorpusPath    string  `mapstructure:"MARKOV_CORPUS_PATH"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
}

// Load builds a Config from defaults, an optional .env file, environment
// variables, and command-line flags already registered on fs.
func Load(fs *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load() // best-effort; absence of a .env file is not an error

	v := viper.New()
	setDefaults(v)

	for _, name := range envNames {
		_ = v.BindEnv(name)
	}
	if fs != nil {
		_ = v.BindPFlags(fs)
	}

	cfg := &Config{
		RedisHost:                v.GetString("REDIS_HOST"),
		RedisPort:                v.GetInt("REDIS_PORT"),
		RedisDBFrequency:         v.GetInt("REDIS_DB_FREQUENCY"),
		RedisDBBlocklist:         v.GetInt("REDIS_DB_BLOCKLIST"),
		RedisDBHops:              v.GetInt("REDIS_DB_HOPS"),
		RedisDBTarpitFlags:       v.GetInt("REDIS_DB_TARPIT_FLAGS"),
		RedisDialTimeoutSec:      v.GetInt("REDIS_DIAL_TIMEOUT_SEC"),
		EscalationPort:           v.GetInt("ESCALATION_PORT"),
		EscalationWebhookURL:     v.GetString("ESCALATION_WEBHOOK_URL"),
		ModelArtifactPath:        v.GetString("MODEL_ARTIFACT_PATH"),
		RobotsTxtPath:            v.GetString("ROBOTS_TXT_PATH"),
		FrequencyWindowSeconds:   v.GetInt("FREQUENCY_WINDOW_SECONDS"),
		HeuristicThresholdLow:    v.GetFloat64("HEURISTIC_THRESHOLD_LOW"),
		HeuristicThresholdMedium: v.GetFloat64("HEURISTIC_THRESHOLD_MEDIUM"),
		HeuristicThresholdHigh:   v.GetFloat64("HEURISTIC_THRESHOLD_HIGH"),
		KnownBadUAs:              splitCSV(v.GetString("KNOWN_BAD_UAS"), defaultKnownBadUAs),
		KnownBenignCrawlerUAs:    splitCSV(v.GetString("KNOWN_BENIGN_CRAWLER_UAS"), defaultKnownBenignUAs),
		LocalLLMAPIURL:           v.GetString("LOCAL_LLM_API_URL"),
		LocalLLMModel:            v.GetString("LOCAL_LLM_MODEL"),
		LocalLLMTimeout:          v.GetFloat64("LOCAL_LLM_TIMEOUT"),
		ExternalAPIURL:           v.GetString("EXTERNAL_CLASSIFICATION_API_URL"),
		ExternalAPIKey:           v.GetString("EXTERNAL_CLASSIFICATION_API_KEY"),
		ExternalAPITimeout:       v.GetFloat64("EXTERNAL_API_TIMEOUT"),
		ReceiverPort:             v.GetInt("RECEIVER_PORT"),
		AlertMethod:              strings.ToLower(v.GetString("ALERT_METHOD")),
		AlertGenericWebhook:      v.GetString("ALERT_GENERIC_WEBHOOK_URL"),
		AlertSlackWebhook:        v.GetString("ALERT_SLACK_WEBHOOK_URL"),
		AlertSMTPHost:            v.GetString("ALERT_SMTP_HOST"),
		AlertSMTPPort:            v.GetInt("ALERT_SMTP_PORT"),
		AlertSMTPUser:            v.GetString("ALERT_SMTP_USER"),
		AlertSMTPPassword:        v.GetString("ALERT_SMTP_PASSWORD"),
		AlertSMTPPasswordFile:    v.GetString("ALERT_SMTP_PASSWORD_FILE"),
		AlertSMTPUseTLS:          v.GetBool("ALERT_SMTP_USE_TLS"),
		AlertEmailFrom:           v.GetString("ALERT_EMAIL_FROM"),
		AlertEmailTo:             v.GetString("ALERT_EMAIL_TO"),
		AlertMinReasonSeverity:   v.GetString("ALERT_MIN_REASON_SEVERITY"),
		SlackBotUsername:         v.GetString("ALERT_SLACK_USERNAME"),
		SlackIconEmoji:           v.GetString("ALERT_SLACK_ICON_EMOJI"),
		LogDir:                   v.GetString("LOG_DIR"),
		TarpitPort:               v.GetInt("TARPIT_PORT"),
		EscalationEndpoint:       v.GetString("ESCALATION_ENDPOINT"),
		TarpitMaxHops:            v.GetInt64("TARPIT_MAX_HOPS"),
		HopLimitEnabled:          v.GetBool("HOP_LIMIT_ENABLED"),
		MinStreamDelaySec:        v.GetFloat64("MIN_STREAM_DELAY_SEC"),
		MaxStreamDelaySec:        v.GetFloat64("MAX_STREAM_DELAY_SEC"),
		TarpitFlagTTLSec:         v.GetInt("TARPIT_FLAG_TTL"),
		TarpitStrategy:           v.GetString("TARPIT_STRATEGY"),
		FingerprintingEnabled:    v.GetBool("ENABLE_FINGERPRINTING"),
		MarkovCorpusPath:         v.GetString("MARKOV_CORPUS_PATH"),
		LogLevel:                 v.GetString("LOG_LEVEL"),
	}
	if cfg.AlertEmailFrom == "" {
		cfg.AlertEmailFrom = cfg.AlertSMTPUser
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate rejects configuration combinations that cannot lead to a working
// deployment; everything else degrades gracefully at runtime per spec §7.
func (c *Config) Validate() error {
	if c.FrequencyWindowSeconds <= 0 {
		return fmt.Errorf("FREQUENCY_WINDOW_SECONDS must be positive, got %d", c.FrequencyWindowSeconds)
	}
	if !(0 <= c.HeuristicThresholdLow && c.HeuristicThresholdLow <= c.HeuristicThresholdMedium &&
		c.HeuristicThresholdMedium <= c.HeuristicThresholdHigh && c.HeuristicThresholdHigh <= 1) {
		return fmt.Errorf("heuristic thresholds must satisfy 0 <= LOW <= MEDIUM <= HIGH <= 1 (got %.2f/%.2f/%.2f)",
			c.HeuristicThresholdLow, c.HeuristicThresholdMedium, c.HeuristicThresholdHigh)
	}
	switch c.AlertMethod {
	case "none", "webhook", "slack", "smtp":
	default:
		return fmt.Errorf("ALERT_METHOD must be one of none|webhook|slack|smtp, got %q", c.AlertMethod)
	}
	if c.MinStreamDelaySec < 0 || c.MaxStreamDelaySec < c.MinStreamDelaySec {
		return fmt.Errorf("MIN_STREAM_DELAY_SEC/MAX_STREAM_DELAY_SEC must satisfy 0 <= MIN <= MAX")
	}
	return nil
}

// FrequencyWindow returns the configured window as a time.Duration.
func (c *Config) FrequencyWindow() time.Duration {
	return time.Duration(c.FrequencyWindowSeconds) * time.Second
}

func splitCSV(s string, fallback []string) []string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
