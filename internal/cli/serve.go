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

package cli

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/alert"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/classifier"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/config"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/escalation"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/eventlog"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/frequency"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/httpserver"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/kv"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/logging"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/metricsx"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/receiver"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/robots"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/scorer"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/tarpit"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/useragent"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/webhookfwd"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve {escalation|receiver|tarpit|all}",
		Short: "Run one or all of the defense pipeline's HTTP services",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			logger := logging.Init(cfg.LogLevel, os.Stdout)

			switch args[0] {
			case "escalation":
				return runEscalation(cfg, logger)
			case "receiver":
				return runReceiver(cfg, logger)
			case "tarpit":
				return runTarpit(cfg, logger)
			case "all":
				return runAll(cfg, logger)
			default:
				return fmt.Errorf("unknown service %q: want escalation|receiver|tarpit|all", args[0])
			}
		},
	}
	return cmd
}

func buildNamespaces(cfg *config.Config, logger zerolog.Logger) *kv.Namespaces {
	return kv.NewNamespaces(kv.Options{
		Host:          cfg.RedisHost,
		Port:          cfg.RedisPort,
		DBFrequency:   cfg.RedisDBFrequency,
		DBBlocklist:   cfg.RedisDBBlocklist,
		DBHops:        cfg.RedisDBHops,
		DBTarpitFlags: cfg.RedisDBTarpitFlags,
		DialTimeout:   time.Duration(cfg.RedisDialTimeoutSec) * time.Second,
		Logger:        &logger,
	})
}

func runEscalation(cfg *config.Config, logger zerolog.Logger) error {
	ns := buildNamespaces(cfg, logger)
	reg := metricsx.NewRegistry()
	metrics := metricsx.NewStore(reg)

	rules, err := robots.Load(cfg.RobotsTxtPath)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load robots rules; proceeding with an empty rule set")
		rules = &robots.Rules{}
	}
	uaLists := useragent.NewLists(cfg.KnownBadUAs, cfg.KnownBenignCrawlerUAs)

	var model classifier.Model
	if cfg.ModelArtifactPath != "" {
		m, err := classifier.LoadLinearModel(cfg.ModelArtifactPath)
		if err != nil {
			logger.Error().Err(err).Str("path", cfg.ModelArtifactPath).Msg("failed to load classifier artifact; continuing with heuristic-only scoring")
		} else {
			model = m
		}
	}

	sc := &scorer.Scorer{
		Rules:         rules,
		UALists:       uaLists,
		Model:         model,
		WindowSeconds: cfg.FrequencyWindowSeconds,
		Metrics:       metrics,
	}

	gateway := classifier.NewGateway(classifier.GatewayConfig{
		LocalLLMURL:        cfg.LocalLLMAPIURL,
		LocalLLMModel:      cfg.LocalLLMModel,
		LocalLLMTimeout:    secondsToDuration(cfg.LocalLLMTimeout),
		ExternalAPIURL:     cfg.ExternalAPIURL,
		ExternalAPIKey:     cfg.ExternalAPIKey,
		ExternalAPITimeout: secondsToDuration(cfg.ExternalAPITimeout),
	}, metrics)

	svc := &escalation.Service{
		Frequency: frequency.NewTracker(ns.Frequency, metrics, cfg.FrequencyWindow()),
		Scorer:    sc,
		Gateway:   gateway,
		Forwarder: webhookfwd.NewForwarder(cfg.EscalationWebhookURL, metrics),
		Metrics:   metrics,
		Thresholds: escalation.Thresholds{
			Low:    cfg.HeuristicThresholdLow,
			Medium: cfg.HeuristicThresholdMedium,
			High:   cfg.HeuristicThresholdHigh,
		},
		Logger: logger,
	}

	router := httpserver.NewRouter(logger, metrics)
	svc.Routes(router)
	router.Handle("/internal/metrics", metricsx.Handler(reg))

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.EscalationPort), Handler: router}
	return httpserver.Serve(srv, &logger, shutdownTimeout)
}

func runReceiver(cfg *config.Config, logger zerolog.Logger) error {
	ns := buildNamespaces(cfg, logger)
	reg := metricsx.NewRegistry()
	metrics := metricsx.NewStore(reg)
	events := eventlog.New(cfg.LogDir, logger)

	dispatcher := alert.New(alert.Config{
		Method:            cfg.AlertMethod,
		MinReasonSeverity: cfg.AlertMinReasonSeverity,
		GenericWebhookURL: cfg.AlertGenericWebhook,
		SlackWebhookURL:   cfg.AlertSlackWebhook,
		SlackUsername:     cfg.SlackBotUsername,
		SlackIconEmoji:    cfg.SlackIconEmoji,
		SMTPHost:          cfg.AlertSMTPHost,
		SMTPPort:          cfg.AlertSMTPPort,
		SMTPUser:          cfg.AlertSMTPUser,
		SMTPPassword:      cfg.AlertSMTPPassword,
		SMTPPasswordFile:  cfg.AlertSMTPPasswordFile,
		SMTPUseTLS:        cfg.AlertSMTPUseTLS,
		EmailFrom:         cfg.AlertEmailFrom,
		EmailTo:           cfg.AlertEmailTo,
		LogDir:            cfg.LogDir,
	}, events, metrics)

	svc := &receiver.Service{
		Blocklist:  ns.Blocklist,
		Alerts:     dispatcher,
		Events:     events,
		Metrics:    metrics,
		MetricsReg: metricsx.Handler(reg),
	}

	router := httpserver.NewRouter(logger, metrics)
	svc.Routes(router)

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.ReceiverPort), Handler: router}
	return httpserver.Serve(srv, &logger, shutdownTimeout)
}

func runTarpit(cfg *config.Config, logger zerolog.Logger) error {
	ns := buildNamespaces(cfg, logger)
	reg := metricsx.NewRegistry()
	metrics := metricsx.NewStore(reg)
	events := eventlog.New(cfg.LogDir, logger)

	var corpus string
	if cfg.MarkovCorpusPath != "" {
		b, err := os.ReadFile(cfg.MarkovCorpusPath)
		if err != nil {
			logger.Error().Err(err).Str("path", cfg.MarkovCorpusPath).Msg("failed to load markov corpus; using built-in fallback text")
		} else {
			corpus = string(b)
		}
	}
	generator := tarpit.NewGenerator(corpus, cfg.FingerprintingEnabled, "/tarpit")

	svc := &tarpit.Service{
		Hops:            ns.Hops,
		Flags:           ns.TarpitFlags,
		Blocklist:       ns.Blocklist,
		Events:          events,
		Metrics:         metrics,
		Generator:       generator,
		Strategy:        cfg.TarpitStrategy,
		EscalationURL:   cfg.EscalationEndpoint,
		MaxHops:         cfg.TarpitMaxHops,
		HopLimitEnabled: cfg.HopLimitEnabled,
		Window:          cfg.FrequencyWindow(),
		FlagTTL:         time.Duration(cfg.TarpitFlagTTLSec) * time.Second,
		MinDelay:        secondsToDuration(cfg.MinStreamDelaySec),
		MaxDelay:        secondsToDuration(cfg.MaxStreamDelaySec),
		HTTPClient:      &http.Client{},
	}

	router := httpserver.NewRouter(logger, metrics)
	svc.Routes(router)
	router.Handle("/metrics", metricsx.Handler(reg))

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.TarpitPort), Handler: router}
	return httpserver.Serve(srv, &logger, shutdownTimeout)
}

// runAll launches all three services in the same process, each on its own
// listener, and waits for all of them to stop (each install its own signal
// handler, so a single SIGTERM/SIGINT brings every one down together).
func runAll(cfg *config.Config, logger zerolog.Logger) error {
	var wg sync.WaitGroup
	errs := make(chan error, 3)

	services := []struct {
		name string
		run  func(*config.Config, zerolog.Logger) error
	}{
		{"escalation", runEscalation},
		{"receiver", runReceiver},
		{"tarpit", runTarpit},
	}

	for _, svc := range services {
		wg.Add(1)
		go func(name string, run func(*config.Config, zerolog.Logger) error) {
			defer wg.Done()
			sublogger := logger.With().Str("service", name).Logger()
			if err := run(cfg, sublogger); err != nil {
				errs <- fmt.Errorf("%s: %w", name, err)
			}
		}(svc.name, svc.run)
	}

	wg.Wait()
	close(errs)

	var firstErr error
	for err := range errs {
		if firstErr == nil {
			firstErr = err
		} else {
			logger.Error().Err(err).Msg("service exited with error")
		}
	}
	return firstErr
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
