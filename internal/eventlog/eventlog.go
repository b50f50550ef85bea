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

// Package eventlog appends structured JSONL records to the block, alert,
// and honeypot-hit log files. Each record is one line of JSON; a
// write failure never stops the caller, it only surfaces to the process
// logger.
package eventlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/model"
)

// Logger appends JSONL events to a fixed set of log files under a single
// directory.
type Logger struct {
	mu        sync.Mutex
	dir       string
	logger    zerolog.Logger
	blockFile string
	alertFile string
	honeyFile string
	errorFile string
}

// File names under Dir, matching the original service's log file layout.
const (
	BlockLog    = "block_events.log"
	AlertLog    = "alert_events.log"
	HoneypotLog = "honeypot_hits.log"
	ErrorLog    = "aiservice_errors.log"
)

// New builds a Logger writing into dir. dir is created if missing.
func New(dir string, logger zerolog.Logger) *Logger {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error().Err(err).Str("dir", dir).Msg("could not create log directory")
		}
	}
	return &Logger{
		dir:       dir,
		logger:    logger,
		blockFile: filepath.Join(dir, BlockLog),
		alertFile: filepath.Join(dir, AlertLog),
		honeyFile: filepath.Join(dir, HoneypotLog),
		errorFile: filepath.Join(dir, ErrorLog),
	}
}

// LogBlock appends a BLOCKLIST_ADD event.
func (l *Logger) LogBlock(ipAddress, reason string, details map[string]model.Value) {
	l.writeEvent(l.blockFile, "BLOCKLIST_ADD", map[string]any{
		"ip_address": ipAddress,
		"reason":     reason,
		"details":    valueMapToAny(details),
	})
}

// LogAlert appends an ALERT_SENT_<channel> event.
func (l *Logger) LogAlert(channel, reason, ip string, extra map[string]any) {
	data := map[string]any{"reason": reason, "ip": ip}
	for k, v := range extra {
		data[k] = v
	}
	l.writeEvent(l.alertFile, "ALERT_SENT_"+channel, data)
}

// LogHoneypotHit appends a honeypot-hit event. Unlike the block/alert logs,
// the original service flattens the request metadata directly into the
// record rather than nesting it under a "details" key.
func (l *Logger) LogHoneypotHit(meta model.RequestMetadata, hopCount int) {
	data := map[string]any{
		"ip_address": meta.NormalizedSource(),
		"user_agent": meta.UserAgent,
		"path":       meta.Path,
		"referer":    meta.Referer,
		"source":     meta.SourceLabel,
		"hop_count":  hopCount,
	}
	l.writeEvent(l.honeyFile, "HONEYPOT_HIT", data)
}

// LogError appends a line to the dedicated error log and mirrors it to the
// process logger, matching the original service's log_error helper.
func (l *Logger) LogError(message string, err error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	entry := timestamp + " - ERROR: " + message
	if err != nil {
		entry += " | Exception: " + err.Error()
	}
	l.logger.Error().Err(err).Msg(message)

	l.mu.Lock()
	defer l.mu.Unlock()
	f, openErr := os.OpenFile(l.errorFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if openErr != nil {
		l.logger.Error().Err(openErr).Str("file", l.errorFile).Msg("could not open error log file")
		return
	}
	defer f.Close()
	_, _ = f.WriteString(entry + "\n")
}

func (l *Logger) writeEvent(path, eventType string, data map[string]any) {
	record := map[string]any{
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		"event_type": eventType,
	}
	for k, v := range data {
		record[k] = v
	}

	line, err := json.Marshal(record)
	if err != nil {
		l.LogError("failed to marshal log event for "+path, err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("could not open log file")
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("could not write log event")
	}
}

func valueMapToAny(m map[string]model.Value) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Any()
	}
	return out
}
