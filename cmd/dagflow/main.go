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

// Command dagflow manages the project topology file. It binds no process or
// object instances, so the run command is not available here; pipeline
// binaries embed the same command tree with their registries filled in.
package main

import (
	"os"

	"dagflow/internal/cli"
)

func main() {
	app := &cli.App{Logger: cli.DefaultLogger()}
	if err := cli.New(app).Execute(); err != nil {
		app.Logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
