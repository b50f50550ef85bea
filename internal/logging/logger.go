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

// Package logging wires the process-wide zerolog logger the same way the
// teacher's ambient logging package does: a global level, RFC3339
// timestamps, and a context-embeddable instance handlers can enrich with
// per-request fields.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Init sets the global zerolog level and installs a default context logger
// writing to w (stdout if nil).
func Init(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if w == nil {
		w = os.Stdout
	}

	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	l := zerolog.New(w).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &l
	return l
}

// FromContext returns the logger embedded in ctx, falling back to the
// process default logger, and finally to a bare stdout logger if neither is
// set up (should only happen in tests that skip Init).
func FromContext(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		if zerolog.DefaultContextLogger != nil {
			return zerolog.DefaultContextLogger
		}
		fallback := zerolog.New(os.Stdout).With().Timestamp().Logger()
		return &fallback
	}
	return l
}
