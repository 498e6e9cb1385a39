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

package toolchain

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coredump-labs/tinycc/internal/codegen"
	"github.com/coredump-labs/tinycc/internal/diagnostics"
)

func TestTempPaths(t *testing.T) {
	asmPath, objPath := TempPaths("tinycc", 1234)
	assert.Equal(t, "/tmp/tinycc_1234.s", asmPath)
	assert.Equal(t, "/tmp/tinycc_1234.o", objPath)
}

func TestBuildRemovesTempsOnSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := t.TempDir()
	asmPath := filepath.Join(dir, "out.s")
	objPath := filepath.Join(dir, "out.o")
	outPath := filepath.Join(dir, "a.out")

	asm := NewMockAssembler(ctrl)
	asm.EXPECT().Assemble(asmPath, objPath, codegen.Linux).Return(nil)
	ld := NewMockLinker(ctrl)
	ld.EXPECT().Link(objPath, outPath, codegen.Linux).Return(nil)

	err := Build(asm, ld, "\t.text\n", asmPath, objPath, outPath, codegen.Linux, false)
	require.NoError(t, err)

	_, err = os.Stat(asmPath)
	assert.True(t, os.IsNotExist(err), "assembly temp file should have been removed")
	_, err = os.Stat(objPath)
	assert.True(t, os.IsNotExist(err), "object temp file should have been removed")
}

func TestBuildKeepsTempsWhenRequested(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := t.TempDir()
	asmPath := filepath.Join(dir, "out.s")
	objPath := filepath.Join(dir, "out.o")
	outPath := filepath.Join(dir, "a.out")

	asm := NewMockAssembler(ctrl)
	asm.EXPECT().Assemble(asmPath, objPath, codegen.Darwin).Return(nil)
	ld := NewMockLinker(ctrl)
	ld.EXPECT().Link(objPath, outPath, codegen.Darwin).Return(nil)

	err := Build(asm, ld, "\t.text\n", asmPath, objPath, outPath, codegen.Darwin, true)
	require.NoError(t, err)

	_, err = os.Stat(asmPath)
	assert.NoError(t, err, "assembly temp file should be preserved with -keep-temps")
	_, err = os.Stat(objPath)
	assert.NoError(t, err, "object temp file should be preserved with -keep-temps")
}

func TestBuildRemovesTempsOnAssemblerFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := t.TempDir()
	asmPath := filepath.Join(dir, "out.s")
	objPath := filepath.Join(dir, "out.o")
	outPath := filepath.Join(dir, "a.out")

	asm := NewMockAssembler(ctrl)
	asm.EXPECT().Assemble(asmPath, objPath, codegen.Linux).Return(
		diagnostics.Wrap(diagnostics.ToolchainFailed, "", 0, "assembler invocation failed", errors.New("exit status 1")),
	)
	ld := NewMockLinker(ctrl)
	// Link must never be called once the assembler has failed.
	ld.EXPECT().Link(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	err := Build(asm, ld, "\t.text\n", asmPath, objPath, outPath, codegen.Linux, false)
	require.Error(t, err)
	var diag *diagnostics.Diagnostic
	require.ErrorAs(t, err, &diag)
	assert.Equal(t, diagnostics.ToolchainFailed, diag.Kind)

	_, err = os.Stat(asmPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(objPath)
	assert.True(t, os.IsNotExist(err))
}

func TestBuildPropagatesLinkerFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := t.TempDir()
	asmPath := filepath.Join(dir, "out.s")
	objPath := filepath.Join(dir, "out.o")
	outPath := filepath.Join(dir, "a.out")

	asm := NewMockAssembler(ctrl)
	asm.EXPECT().Assemble(asmPath, objPath, codegen.Linux).Return(nil)
	ld := NewMockLinker(ctrl)
	ld.EXPECT().Link(objPath, outPath, codegen.Linux).Return(
		diagnostics.Wrap(diagnostics.ToolchainFailed, "", 0, "linker invocation failed", errors.New("exit status 1")),
	)

	err := Build(asm, ld, "\t.text\n", asmPath, objPath, outPath, codegen.Linux, false)
	require.Error(t, err)
	var diag *diagnostics.Diagnostic
	require.ErrorAs(t, err, &diag)
	assert.Equal(t, diagnostics.ToolchainFailed, diag.Kind)
}
