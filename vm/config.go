// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package vm

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/postgres/postgres-sub049/fmgr"
)

// JITConfig controls JIT compilation.
type JITConfig struct {
	Enabled bool `json:"enabled"`
	// AboveCost is the plan cost from
	// which programs are compiled.
	AboveCost float64 `json:"above_cost"`
	// InlineAboveCost is the plan cost from
	// which function bodies are inlined.
	InlineAboveCost float64 `json:"inline_above_cost"`
	// Debug logs every compiled program.
	Debug bool `json:"debug"`
}

// Config is the engine configuration.
//
//	jit:
//	  enabled: true
//	  above_cost: 100000
//	  inline_above_cost: 500000
//	dispatch: auto          # auto, table, threaded or jit
//	track_functions: none   # none, pl or all
//	validate: true
type Config struct {
	JIT            JITConfig `json:"jit"`
	Dispatch       string    `json:"dispatch"`
	TrackFunctions string    `json:"track_functions"`
	Validate       bool      `json:"validate"`
}

var defaultConfig = DefaultConfig()

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		JIT: JITConfig{
			Enabled:         true,
			AboveCost:       100000,
			InlineAboveCost: 500000,
		},
		Dispatch:       "auto",
		TrackFunctions: "none",
		Validate:       true,
	}
}

// ParseConfig parses a YAML configuration;
// omitted settings keep their defaults.
func ParseConfig(data []byte) (*Config, error) {
	c := DefaultConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("vm: parsing config: %w", err)
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

func (c *Config) check() error {
	if _, ok := dispatchNames[c.Dispatch]; !ok && c.Dispatch != "auto" {
		return fmt.Errorf("vm: unknown dispatch %q", c.Dispatch)
	}
	switch c.TrackFunctions {
	case "none", "pl", "all":
	default:
		return fmt.Errorf("vm: unknown track_functions %q", c.TrackFunctions)
	}
	if c.JIT.AboveCost < 0 || c.JIT.InlineAboveCost < 0 {
		return fmt.Errorf("vm: negative jit cost")
	}
	return nil
}

func (c *Config) dispatchLevel() DispatchLevel {
	if l, ok := dispatchNames[c.Dispatch]; ok {
		return l
	}
	return GetDispatchLevel()
}

// tracks reports whether calls of fi
// collect usage statistics.
func (c *Config) tracks(fi *fmgr.Info) bool {
	switch c.TrackFunctions {
	case "all":
		return true
	case "pl":
		return fi.Track || fi.Language != "internal"
	}
	return false
}
