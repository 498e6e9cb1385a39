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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coredump-labs/tinycc/internal/diagnostics"
)

func TestLoadAbsentConfigIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir, Flags{})
	require.NoError(t, err)
	assert.Equal(t, defaultOutput, cfg.Output)
}

func TestLoadMalformedConfigIsConfigParseError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tinycc.yaml"), []byte("output: [unterminated"), 0o644))

	_, err := Load(dir, Flags{})
	require.Error(t, err)
	var diag *diagnostics.Diagnostic
	require.ErrorAs(t, err, &diag)
	assert.Equal(t, diagnostics.ConfigParse, diag.Kind)
}

func TestLoadParsesFullConfig(t *testing.T) {
	dir := t.TempDir()
	yamlBody := "output: built\nincludePaths: [\"include\", \"vendor/**/include\"]\ndefines:\n  VERSION: \"3\"\nkeepTemps: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tinycc.yaml"), []byte(yamlBody), 0o644))

	cfg, err := Load(dir, Flags{})
	require.NoError(t, err)
	assert.Equal(t, "built", cfg.Output)
	assert.Equal(t, []string{"include", "vendor/**/include"}, cfg.IncludePaths)
	assert.Equal(t, map[string]string{"VERSION": "3"}, cfg.Defines)
	assert.True(t, cfg.KeepTemps)
}

func TestLoadWalksUpToFindConfig(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "tinycc.yaml"), []byte("output: fromparent\n"), 0o644))
	nested := filepath.Join(root, "src", "pkg")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, err := Load(nested, Flags{})
	require.NoError(t, err)
	assert.Equal(t, "fromparent", cfg.Output)
}

func TestCLIFlagsOverrideOutputAndKeepTemps(t *testing.T) {
	fc := fileConfig{Output: "file-output", KeepTemps: false}
	cfg := Merge(fc, Flags{Output: "flag-output", KeepTempsSet: true, KeepTemps: true})
	assert.Equal(t, "flag-output", cfg.Output)
	assert.True(t, cfg.KeepTemps)
}

func TestIncludePathsAndDefinesAccumulate(t *testing.T) {
	fc := fileConfig{
		IncludePaths: []string{"include"},
		Defines:      map[string]string{"A": "1"},
	}
	cfg := Merge(fc, Flags{
		IncludePaths: []string{"vendor/include"},
		Defines:      map[string]string{"B": "2"},
	})
	assert.Equal(t, []string{"include", "vendor/include"}, cfg.IncludePaths)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, cfg.Defines)
}

func TestFlagDefineOverridesFileDefineOfSameName(t *testing.T) {
	fc := fileConfig{Defines: map[string]string{"VERSION": "1"}}
	cfg := Merge(fc, Flags{Defines: map[string]string{"VERSION": "2"}})
	assert.Equal(t, "2", cfg.Defines["VERSION"])
}

func TestMergeIsDeterministicAcrossRepeatedCalls(t *testing.T) {
	fc := fileConfig{
		IncludePaths: []string{"include", "vendor/a", "vendor/b"},
		Defines:      map[string]string{"A": "1", "B": "2", "C": "3"},
	}
	flags := Flags{IncludePaths: []string{"extra"}, Defines: map[string]string{"D": "4"}}

	first := Merge(fc, flags)
	second := Merge(fc, flags)
	assert.Equal(t, first, second)
}
