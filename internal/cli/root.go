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

// Package cli wires the aidefense command tree: a root command plus one
// "serve" subcommand per service, each assembling its own dependency
// bundle from internal/config and internal/logging.
package cli

import (
	"github.com/spf13/cobra"
)

// Execute builds and runs the aidefense command tree.
func Execute() error {
	root := &cobra.Command{
		Use:   "aidefense",
		Short: "Anti-scraping defense pipeline: escalation, receiver, and tarpit services",
	}
	root.AddCommand(newServeCommand())
	return root.Execute()
}
