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

package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aquasecurity/table"
	"github.com/spf13/cobra"

	"dagflow"
)

func newTopologyCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topology",
		Short: "Edit and validate the project topology file.",
	}
	cmd.AddCommand(
		newAddObjectCmd(app),
		newRemoveObjectCmd(app),
		newAddProcessCmd(app),
		newRemoveProcessCmd(app),
		newImportCmd(app),
		newValidateCmd(app),
	)
	return cmd
}

// editTopology loads the topology file, applies edit, and writes the file
// back only if the edit succeeded.
func editTopology(app *App, edit func(*dagflow.Topology) error) error {
	if err := app.Settings.Scaffold(); err != nil {
		return err
	}
	topo, err := dagflow.LoadTopologyFile(app.Settings.Topology)
	if err != nil {
		return err
	}
	if err := edit(topo); err != nil {
		return err
	}
	return topo.SaveFile(app.Settings.Topology)
}

func newAddObjectCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add-object NAME",
		Short: "Register an object name in the topology.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := editTopology(app, func(t *dagflow.Topology) error {
				return t.AddObject(name)
			}); err != nil {
				return err
			}
			if obj := app.ObjectByName(name); obj != nil {
				if err := obj.OnAddToPipeline(); err != nil {
					return fmt.Errorf("add hook of object %q: %w", name, err)
				}
			}
			return nil
		},
	}
}

func newRemoveObjectCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-object NAME",
		Short: "Remove an unused object from the topology.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := editTopology(app, func(t *dagflow.Topology) error {
				return t.RemoveObject(name)
			}); err != nil {
				return err
			}
			if obj := app.ObjectByName(name); obj != nil {
				if err := obj.OnRemoveFromPipeline(); err != nil {
					return fmt.Errorf("remove hook of object %q: %w", name, err)
				}
			}
			return nil
		},
	}
}

// parsePortFlags turns repeated "port=object" flag values into a port map.
func parsePortFlags(kind string, values []string) (map[string]string, error) {
	ports := make(map[string]string, len(values))
	for _, v := range values {
		port, obj, ok := strings.Cut(v, "=")
		if !ok || port == "" || obj == "" {
			return nil, fmt.Errorf("malformed %s %q, want port=object", kind, v)
		}
		ports[port] = obj
	}
	return ports, nil
}

func newAddProcessCmd(app *App) *cobra.Command {
	var inputs, outputs []string
	cmd := &cobra.Command{
		Use:   "add-process NAME --input port=object --output port=object",
		Short: "Register a process and its port wiring in the topology.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := parsePortFlags("--input", inputs)
			if err != nil {
				return err
			}
			out, err := parsePortFlags("--output", outputs)
			if err != nil {
				return err
			}
			return editTopology(app, func(t *dagflow.Topology) error {
				return t.AddProcess(args[0], in, out)
			})
		},
	}
	cmd.Flags().StringArrayVar(&inputs, "input", nil, "input port wiring, repeatable: port=object")
	cmd.Flags().StringArrayVar(&outputs, "output", nil, "output port wiring, repeatable: port=object")
	return cmd
}

func newRemoveProcessCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-process NAME",
		Short: "Remove a process and detach its port wiring.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editTopology(app, func(t *dagflow.Topology) error {
				return t.RemoveProcess(args[0])
			})
		},
	}
}

func newImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the project topology with an external topology file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := dagflow.LoadTopologyFile(args[0])
			if err != nil {
				return err
			}
			if err := app.Settings.Scaffold(); err != nil {
				return err
			}
			if err := topo.SaveFile(app.Settings.Topology); err != nil {
				return err
			}
			for _, name := range topo.Objects() {
				obj := app.ObjectByName(name)
				if obj == nil {
					continue
				}
				if err := obj.OnAddToPipeline(); err != nil {
					return fmt.Errorf("add hook of object %q: %w", name, err)
				}
			}
			return nil
		},
	}
}

func newValidateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Report objects without producers or consumers and cycles.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := dagflow.LoadTopologyFile(app.Settings.Topology)
			if err != nil {
				return err
			}
			diags := topo.Validate()
			if len(diags) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "topology is valid")
				return nil
			}
			tbl := table.New(cmd.OutOrStdout())
			tbl.SetHeaders("#", "Diagnostic")
			for i, d := range diags {
				tbl.AddRow(strconv.Itoa(i+1), d)
			}
			tbl.Render()
			return fmt.Errorf("topology has %d problems", len(diags))
		},
	}
}
