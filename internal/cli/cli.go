// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

// Package cli builds the dagflow command tree. The topology subcommands work
// on the topology file alone and are available in any binary; run needs live
// process and object instances, which user pipeline binaries supply through
// the App registry.
package cli

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"dagflow"
)

// App carries everything the command tree needs: the settings (loaded in the
// root's PersistentPreRunE), the logger, and the instance registries of the
// embedding binary. A management-only binary leaves the registries empty and
// loses the run command plus lifecycle hooks on topology edits.
type App struct {
	Settings  *Settings
	Logger    zerolog.Logger
	Processes []dagflow.Process
	Objects   []dagflow.Object

	configPath string
}

// ObjectByName returns the registered object instance, or nil.
func (a *App) ObjectByName(name string) dagflow.Object {
	for _, obj := range a.Objects {
		if obj.Name() == name {
			return obj
		}
	}
	return nil
}

// DefaultLogger is the logger the binaries install when nothing else is
// configured.
func DefaultLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// New assembles the root command.
func New(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "dagflow",
		Short:         "Dataflow pipeline runtime: manage the topology and run the step loop.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.Settings != nil {
				return nil
			}
			settings, err := LoadSettings(app.configPath)
			if err != nil {
				return err
			}
			app.Settings = settings
			return nil
		},
	}
	root.PersistentFlags().StringVar(&app.configPath, "config", "dagflow.yaml", "settings file")
	root.CompletionOptions.DisableDefaultCmd = true
	// Accept underscore spellings for every flag.
	root.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	root.AddCommand(newTopologyCmd(app))
	if len(app.Processes) > 0 {
		root.AddCommand(newRunCmd(app))
	}
	return root
}
