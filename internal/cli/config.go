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
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings is the project configuration, loaded once at CLI entry from a
// YAML file (dagflow.yaml by default). Zero fields fall back to defaults.
type Settings struct {
	// DataRoot is the project data directory; object state lives under
	// <DataRoot>/objects/<name>.
	DataRoot string `yaml:"data_root"`

	// Topology is the path of the topology file. Defaults to
	// <DataRoot>/configs/topology.yaml.
	Topology string `yaml:"topology"`

	// Parallelization bounds concurrent polls per step.
	Parallelization int `yaml:"parallelization"`

	// RedisAddr, when set, is the address handed to Redis-backed objects.
	RedisAddr string `yaml:"redis_addr"`
}

// LoadSettings reads path and applies defaults. A missing file yields the
// defaults so a fresh project works without configuration.
func LoadSettings(path string) (*Settings, error) {
	s := &Settings{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("decode settings %s: %w", path, err)
		}
	}
	s.applyDefaults()
	return s, nil
}

func (s *Settings) applyDefaults() {
	if s.DataRoot == "" {
		s.DataRoot = "data"
	}
	if s.Topology == "" {
		s.Topology = filepath.Join(s.DataRoot, "configs", "topology.yaml")
	}
	if s.Parallelization <= 0 {
		s.Parallelization = 4
	}
}

// ObjectDir returns the per-object state directory.
func (s *Settings) ObjectDir(name string) string {
	return filepath.Join(s.DataRoot, "objects", name)
}

// Scaffold creates the project data layout: the data root and its configs
// directory.
func (s *Settings) Scaffold() error {
	if err := os.MkdirAll(filepath.Join(s.DataRoot, "configs"), 0o755); err != nil {
		return fmt.Errorf("scaffold data dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Topology), 0o755); err != nil {
		return fmt.Errorf("scaffold topology dir: %w", err)
	}
	return nil
}
