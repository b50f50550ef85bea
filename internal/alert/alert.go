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

// Package alert dispatches notifications for blocklisted IPs through one of
// three channels (generic webhook, Slack incoming webhook, SMTP email),
// gated by a severity threshold derived from the block reason.
package alert

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"os"
	"strings"
	"time"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/eventlog"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/metricsx"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/model"
)

// severityMap mirrors the original service's reason-to-severity table.
// Reasons not listed default to severity 0 (never alerted).
var severityMap = map[string]int{
	"High Heuristic": 1,
	"Local LLM":      2,
	"External API":   3,
	"High Combined":  1,
	"Honeypot_Hit":   2,
}

// reasonKey extracts the severity-map lookup key from a full reason string
// like "High Combined Score (0.950)" -> "High Combined Score"; the map keys
// above are prefixes of that, and severityOf matches them by prefix. The
// original splits on "(" and trims, which is what we replicate.
func reasonKey(reason string) string {
	if i := strings.Index(reason, "("); i >= 0 {
		reason = reason[:i]
	}
	return strings.TrimSpace(reason)
}

func severityOf(reason string) int {
	key := reasonKey(reason)
	for prefix, sev := range severityMap {
		if strings.HasPrefix(key, prefix) {
			return sev
		}
	}
	return 0
}

func minSeverity(minReason string) int {
	field := strings.TrimSpace(minReason)
	if field == "" {
		return 1
	}
	if i := strings.Index(field, " "); i >= 0 {
		field = field[:i]
	}
	for prefix, sev := range severityMap {
		if strings.HasPrefix(prefix, field) {
			return sev
		}
	}
	return 1
}

// Config holds everything a Dispatcher needs, mirroring config.Config's
// ALERT_* fields without importing the config package directly.
type Config struct {
	Method             string // none | webhook | slack | smtp
	MinReasonSeverity  string
	GenericWebhookURL  string
	SlackWebhookURL    string
	SlackUsername      string
	SlackIconEmoji     string
	SMTPHost           string
	SMTPPort           int
	SMTPUser           string
	SMTPPassword       string
	SMTPPasswordFile   string
	SMTPUseTLS         bool
	EmailFrom          string
	EmailTo            string
	LogDir             string
}

// Dispatcher sends alerts for blocklisted IPs via the configured channel.
type Dispatcher struct {
	cfg     Config
	client  *http.Client
	events  *eventlog.Logger
	metrics *metricsx.Store
}

// New builds a Dispatcher.
func New(cfg Config, events *eventlog.Logger, metrics *metricsx.Store) *Dispatcher {
	return &Dispatcher{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		events:  events,
		metrics: metrics,
	}
}

// Method reports the configured alert method.
func (d *Dispatcher) Method() string {
	return d.cfg.Method
}

// Dispatch sends an alert for ip/reason/details if the configured method is
// enabled and the reason's severity clears the configured minimum.
func (d *Dispatcher) Dispatch(ctx context.Context, ip, reason string, details map[string]model.Value) {
	sev := severityOf(reason)
	min := minSeverity(d.cfg.MinReasonSeverity)
	if sev < min {
		return
	}

	switch d.cfg.Method {
	case "webhook":
		d.sendGenericWebhook(ctx, ip, reason, details)
	case "slack":
		d.sendSlack(ctx, ip, reason, details)
	case "smtp":
		d.sendSMTP(ip, reason, details)
	case "none", "":
	default:
		d.events.LogError(fmt.Sprintf("alert method %q is invalid or missing configuration", d.cfg.Method), nil)
	}
}

func detailString(details map[string]model.Value, key string) string {
	if v, ok := details[key]; ok {
		return v.String()
	}
	return "N/A"
}

func (d *Dispatcher) sendGenericWebhook(ctx context.Context, ip, reason string, details map[string]model.Value) {
	if d.cfg.GenericWebhookURL == "" {
		return
	}
	payload := map[string]any{
		"alert_type": "AI_DEFENSE_BLOCK",
		"reason":     reason,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		"ip_address": ip,
		"user_agent": detailString(details, "user_agent"),
		"details":    valueMapToAny(details),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		d.events.LogError("failed to serialize generic webhook payload for IP "+ip, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.GenericWebhookURL, bytes.NewReader(body))
	if err != nil {
		d.events.LogError("failed to build generic webhook request for IP "+ip, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.events.LogError("failed to send generic webhook alert to "+d.cfg.GenericWebhookURL+" for IP "+ip, err)
		d.metrics.Inc(metricsx.AlertErrors)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		d.events.LogError(fmt.Sprintf("generic webhook alert failed for IP %s with status %d", ip, resp.StatusCode), nil)
		d.metrics.Inc(metricsx.AlertErrors)
		return
	}

	d.metrics.Inc(metricsx.AlertsSent)
	d.events.LogAlert("WEBHOOK", reason, ip, nil)
}

type slackPayload struct {
	Text      string `json:"text"`
	Username  string `json:"username,omitempty"`
	IconEmoji string `json:"icon_emoji,omitempty"`
}

func (d *Dispatcher) sendSlack(ctx context.Context, ip, reason string, details map[string]model.Value) {
	if d.cfg.SlackWebhookURL == "" {
		return
	}
	ua := detailString(details, "user_agent")
	message := fmt.Sprintf(":shield: *AI Defense Alert*\n> *Reason:* %s\n> *IP Address:* `%s`\n> *User Agent:* `%s`\n> *Timestamp (UTC):* %s",
		reason, ip, ua, time.Now().UTC().Format(time.RFC3339Nano))

	payload := slackPayload{Text: message, Username: d.cfg.SlackUsername, IconEmoji: d.cfg.SlackIconEmoji}
	body, err := json.Marshal(payload)
	if err != nil {
		d.events.LogError("failed to serialize slack payload for IP "+ip, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.SlackWebhookURL, bytes.NewReader(body))
	if err != nil {
		d.events.LogError("failed to build slack request for IP "+ip, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.events.LogError("failed to send slack alert to "+d.cfg.SlackWebhookURL+" for IP "+ip, err)
		d.metrics.Inc(metricsx.AlertErrors)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		d.events.LogError(fmt.Sprintf("slack alert failed for IP %s with status %d", ip, resp.StatusCode), nil)
		d.metrics.Inc(metricsx.AlertErrors)
		return
	}

	d.metrics.Inc(metricsx.AlertsSent)
	d.events.LogAlert("SLACK", reason, ip, nil)
}

func (d *Dispatcher) resolveSMTPPassword() string {
	if d.cfg.SMTPPassword != "" {
		return d.cfg.SMTPPassword
	}
	if d.cfg.SMTPPasswordFile == "" {
		return ""
	}
	b, err := os.ReadFile(d.cfg.SMTPPasswordFile)
	if err != nil {
		d.events.LogError("failed to read SMTP password file "+d.cfg.SMTPPasswordFile, err)
		return ""
	}
	return strings.TrimSpace(string(b))
}

func (d *Dispatcher) sendSMTP(ip, reason string, details map[string]model.Value) {
	if d.cfg.EmailTo == "" || d.cfg.SMTPHost == "" || d.cfg.EmailFrom == "" {
		d.events.LogError("SMTP alert configured but missing To, Host, or From address", nil)
		return
	}
	ua := detailString(details, "user_agent")
	now := time.Now().UTC().Format(time.RFC3339Nano)

	subject := fmt.Sprintf("[AI Defense Alert] Suspicious Activity Detected - %s", reason)
	body := fmt.Sprintf(`Suspicious activity detected by the AI Defense System:

Reason: %s
Timestamp (UTC): %s
IP Address: %s
User Agent: %s

Full Details:
%s

---
Consider integrating this IP with Fail2ban or firewall rules if recurring.
Check logs in %s for more context.
`, reason, now, ip, ua, prettyDetails(details), d.cfg.LogDir)

	recipients := splitAddrs(d.cfg.EmailTo)
	msg := buildMIMEMessage(d.cfg.EmailFrom, d.cfg.EmailTo, subject, body)

	if err := d.deliver(recipients, msg); err != nil {
		d.events.LogError(fmt.Sprintf("SMTP error sending email alert for IP %s (Host: %s:%d, User: %s)",
			ip, d.cfg.SMTPHost, d.cfg.SMTPPort, d.cfg.SMTPUser), err)
		d.metrics.Inc(metricsx.AlertErrors)
		return
	}

	d.metrics.Inc(metricsx.AlertsSent)
	d.events.LogAlert("SMTP", reason, ip, map[string]any{"to": d.cfg.EmailTo})
}

func (d *Dispatcher) deliver(recipients []string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", d.cfg.SMTPHost, d.cfg.SMTPPort)
	password := d.resolveSMTPPassword()

	var auth smtp.Auth
	if d.cfg.SMTPUser != "" && password != "" {
		auth = smtp.PlainAuth("", d.cfg.SMTPUser, password, d.cfg.SMTPHost)
	}

	if d.cfg.SMTPPort == 465 {
		return sendImplicitTLS(addr, d.cfg.SMTPHost, auth, d.cfg.EmailFrom, recipients, msg)
	}

	// Port 587 (STARTTLS) or 25 (plain): with SMTPUseTLS set, STARTTLS is
	// negotiated explicitly; otherwise smtp.SendMail upgrades to STARTTLS
	// whenever the server advertises it, whether or not auth is configured.
	if d.cfg.SMTPUseTLS {
		return sendStartTLS(addr, d.cfg.SMTPHost, auth, d.cfg.EmailFrom, recipients, msg)
	}
	return smtp.SendMail(addr, auth, d.cfg.EmailFrom, recipients, msg)
}

func sendImplicitTLS(addr, host string, auth smtp.Auth, from string, to []string, msg []byte) error {
	tlsCfg := &tls.Config{ServerName: host}
	conn, err := tls.Dial("tcp", addr, tlsCfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer c.Close()
	return sendVia(c, auth, from, to, msg)
}

func sendStartTLS(addr, host string, auth smtp.Auth, from string, to []string, msg []byte) error {
	c, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer c.Close()
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	return sendVia(c, auth, from, to, msg)
}

func sendVia(c *smtp.Client, auth smtp.Auth, from string, to []string, msg []byte) error {
	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, addr := range to {
		if err := c.Rcpt(addr); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func buildMIMEMessage(from, to, subject, body string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.Bytes()
}

func splitAddrs(to string) []string {
	parts := strings.Split(to, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func prettyDetails(details map[string]model.Value) string {
	var b strings.Builder
	for k, v := range details {
		fmt.Fprintf(&b, "%s: %s\n", k, v.String())
	}
	return b.String()
}

func valueMapToAny(m map[string]model.Value) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Any()
	}
	return out
}
