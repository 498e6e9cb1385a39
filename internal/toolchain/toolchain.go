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

// Package toolchain shells out to the host assembler and linker to turn
// generated assembly into an executable. The two steps run strictly
// sequentially: the linker consumes the assembler's output, so there is no
// parallelism to exploit here (§5 [ADDED]).
package toolchain

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/coredump-labs/tinycc/internal/codegen"
	"github.com/coredump-labs/tinycc/internal/diagnostics"
)

// Assembler turns an assembly file into an object file.
type Assembler interface {
	Assemble(asmPath, objPath string, platform codegen.Platform) error
}

// Linker turns an object file into an executable.
type Linker interface {
	Link(objPath, outPath string, platform codegen.Platform) error
}

// execAssembler is the production Assembler, invoking the host `as`.
type execAssembler struct{}

// execLinker is the production Linker, invoking the host `ld`.
type execLinker struct{}

// NewAssembler returns the production os/exec-backed Assembler.
func NewAssembler() Assembler { return execAssembler{} }

// NewLinker returns the production os/exec-backed Linker.
func NewLinker() Linker { return execLinker{} }

func (execAssembler) Assemble(asmPath, objPath string, platform codegen.Platform) error {
	var cmd *exec.Cmd
	switch platform {
	case codegen.Darwin:
		cmd = exec.Command("as", "-arch", "x86_64", "-o", objPath, asmPath)
	default:
		cmd = exec.Command("as", "-o", objPath, asmPath)
	}
	return run(cmd, "assembler")
}

func (execLinker) Link(objPath, outPath string, platform codegen.Platform) error {
	var cmd *exec.Cmd
	switch platform {
	case codegen.Darwin:
		cmd = exec.Command("ld",
			"-arch", "x86_64",
			"-macosx_version_min", "10.13",
			"-lSystem",
			"-o", outPath, objPath,
		)
	default:
		cmd = exec.Command("ld",
			"-dynamic-linker", "/lib64/ld-linux-x86-64.so.2",
			"-o", outPath,
			"/usr/lib/x86_64-linux-gnu/crt1.o",
			"/usr/lib/x86_64-linux-gnu/crti.o",
			objPath,
			"-lc",
			"/usr/lib/x86_64-linux-gnu/crtn.o",
		)
	}
	return run(cmd, "linker")
}

func run(cmd *exec.Cmd, stageName string) error {
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return diagnostics.Wrap(diagnostics.ToolchainFailed, "", 0, fmt.Sprintf("%s invocation failed: %v", stageName, cmd.Args), err)
	}
	return nil
}

// Build compiles asm through the assembler and linker into outPath,
// removing the intermediate .s/.o files on every exit path unless keepTemps
// is set (§6). asmPath
// and objPath are caller-owned temp file names under /tmp/<prefix>_<pid>.
func Build(asm Assembler, ld Linker, asmText string, asmPath, objPath, outPath string, platform codegen.Platform, keepTemps bool) error {
	if err := os.WriteFile(asmPath, []byte(asmText), 0o644); err != nil {
		return diagnostics.Wrap(diagnostics.FileOpen, asmPath, 0, "could not write assembly to "+asmPath, err)
	}
	defer func() {
		if !keepTemps {
			os.Remove(asmPath)
		}
	}()

	if err := asm.Assemble(asmPath, objPath, platform); err != nil {
		if !keepTemps {
			os.Remove(objPath)
		}
		return err
	}
	defer func() {
		if !keepTemps {
			os.Remove(objPath)
		}
	}()

	if err := ld.Link(objPath, outPath, platform); err != nil {
		return err
	}
	return nil
}

// TempPaths returns the deterministic .s/.o temp file names for one
// invocation, following the spec's /tmp/<prefix>_<pid>.{s,o} convention.
func TempPaths(prefix string, pid int) (asmPath, objPath string) {
	base := fmt.Sprintf("/tmp/%s_%d", prefix, pid)
	return base + ".s", base + ".o"
}
