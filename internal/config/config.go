// Copyright 2025 EngFlow Inc. All rights reserved.
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

// Package config merges command-line flags with an optional project
// config file (tinycc.yaml) into one CompileConfig, threaded explicitly
// through the pipeline rather than held as a package-level global (§9).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/coredump-labs/tinycc/internal/codegen"
	"github.com/coredump-labs/tinycc/internal/diagnostics"
)

// CompileConfig is the merged result of CLI flags and tinycc.yaml.
type CompileConfig struct {
	Output       string
	IncludePaths []string
	Defines      map[string]string
	Platform     codegen.Platform
	KeepTemps    bool
	Verbose      bool
}

// fileConfig is the on-disk shape of tinycc.yaml. All fields are optional.
type fileConfig struct {
	Output       string            `yaml:"output"`
	IncludePaths []string          `yaml:"includePaths"`
	Defines      map[string]string `yaml:"defines"`
	KeepTemps    bool              `yaml:"keepTemps"`
}

// Flags is the parsed shape of the CLI surface (§6 [ADDED] Flags), kept
// distinct from CompileConfig so Merge's precedence rules are explicit
// about which values came from where.
type Flags struct {
	Output       string
	IncludePaths []string
	Defines      map[string]string
	KeepTemps    bool
	KeepTempsSet bool
	Verbose      bool
}

const defaultOutput = "a.out"

// Load locates tinycc.yaml by walking up from sourceDir (the directory of
// the source file being compiled) and merges it with flags. An absent
// config file is not an error; a malformed present one is (ErrConfigParse,
// via diagnostics.ConfigParse).
func Load(sourceDir string, flags Flags) (CompileConfig, error) {
	fc, err := findAndParse(sourceDir)
	if err != nil {
		return CompileConfig{}, err
	}
	return Merge(fc, flags), nil
}

func findAndParse(startDir string) (fileConfig, error) {
	dir := startDir
	for {
		path := filepath.Join(dir, "tinycc.yaml")
		data, err := os.ReadFile(path)
		if err == nil {
			var fc fileConfig
			if err := yaml.Unmarshal(data, &fc); err != nil {
				return fileConfig{}, diagnostics.Wrap(diagnostics.ConfigParse, path, 0, "malformed tinycc.yaml", err)
			}
			return fc, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return fileConfig{}, nil
		}
		dir = parent
	}
}

// Merge combines a parsed file config with CLI flags. -o and -keep-temps
// are overrides (CLI wins on conflict); -I and -D accumulate, file entries
// first, then flags, matching how repeatable compiler flags behave
// (§6 [ADDED] Flags). On a -D name collision the flag value wins, since
// flags are copied into cfg.Defines after file defines.
func Merge(fc fileConfig, flags Flags) CompileConfig {
	cfg := CompileConfig{
		Output:   defaultOutput,
		Platform: codegen.HostPlatform(),
		Verbose:  flags.Verbose,
	}

	if fc.Output != "" {
		cfg.Output = fc.Output
	}
	if flags.Output != "" {
		cfg.Output = flags.Output
	}

	cfg.KeepTemps = fc.KeepTemps
	if flags.KeepTempsSet {
		cfg.KeepTemps = flags.KeepTemps
	}

	cfg.IncludePaths = append(cfg.IncludePaths, fc.IncludePaths...)
	cfg.IncludePaths = append(cfg.IncludePaths, flags.IncludePaths...)

	cfg.Defines = make(map[string]string, len(fc.Defines)+len(flags.Defines))
	for k, v := range fc.Defines {
		cfg.Defines[k] = v
	}
	for k, v := range flags.Defines {
		cfg.Defines[k] = v
	}

	return cfg
}

// String renders a CompileConfig for -v diagnostic output.
func (c CompileConfig) String() string {
	return fmt.Sprintf("output=%s includePaths=%v defines=%v keepTemps=%v", c.Output, c.IncludePaths, c.Defines, c.KeepTemps)
}
