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

// Command tinycc compiles a single-function C-subset source file into a
// native executable: preprocess, lex, parse, generate assembly, then
// assemble and link via the host toolchain.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/coredump-labs/tinycc/internal/codegen"
	"github.com/coredump-labs/tinycc/internal/config"
	"github.com/coredump-labs/tinycc/internal/lexer"
	"github.com/coredump-labs/tinycc/internal/parser"
	"github.com/coredump-labs/tinycc/internal/preprocessor"
	"github.com/coredump-labs/tinycc/internal/toolchain"
)

// repeatableFlag collects every occurrence of a flag.Var-based flag, in
// the order given on the command line, the way real compilers treat
// repeatable -I/-D.
type repeatableFlag []string

func (r *repeatableFlag) String() string { return strings.Join(*r, ",") }
func (r *repeatableFlag) Set(value string) error {
	*r = append(*r, value)
	return nil
}

// progress prints the spec's staged [N/5] progress lines to standard
// output, kept separate from the stderr-bound diagnostics logger (§6).
var progress = log.New(os.Stdout, "", 0)

func main() {
	log.SetFlags(0)
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("tinycc", flag.ContinueOnError)
	output := fs.String("o", "", "output executable path")
	var includePaths repeatableFlag
	fs.Var(&includePaths, "I", "additional include search root (may repeat, may contain doublestar globs)")
	var defines repeatableFlag
	fs.Var(&defines, "D", "predefined macro NAME[=VALUE] (may repeat)")
	keepTemps := fs.Bool("keep-temps", false, "keep intermediate .s/.o files")
	verbose := fs.Bool("v", false, "print the merged configuration before compiling")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	// flag stops at the first positional argument; keep parsing after it so
	// flags may follow the source file.
	var positional []string
	for fs.NArg() > 0 {
		positional = append(positional, fs.Arg(0))
		if err := fs.Parse(fs.Args()[1:]); err != nil {
			return 2
		}
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "usage: tinycc <source-file> [-o output] [-I path]... [-D NAME[=VALUE]]... [-keep-temps] [-v]")
		return 2
	}
	sourceFile := positional[0]

	defineMap, err := parseDefines(defines)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	cfg, err := config.Load(filepath.Dir(sourceFile), config.Flags{
		Output:       *output,
		IncludePaths: includePaths,
		Defines:      defineMap,
		KeepTemps:    *keepTemps,
		KeepTempsSet: isFlagSet(fs, "keep-temps"),
		Verbose:      *verbose,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if cfg.Verbose {
		fmt.Fprintln(os.Stderr, cfg.String())
	}

	if err := compile(sourceFile, cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func parseDefines(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, entry := range raw {
		name, value, _ := strings.Cut(entry, "=")
		if name == "" {
			return nil, fmt.Errorf("invalid -D flag %q", entry)
		}
		out[name] = value
	}
	return out, nil
}

// compile runs the full pipeline, printing the spec's [1/5]..[5/5] stage
// progress to stdout as each stage starts.
func compile(sourceFile string, cfg config.CompileConfig) error {
	progress.Printf("[1/5] preprocessing %s", sourceFile)
	unit := preprocessor.New(cfg.IncludePaths)
	for name, value := range cfg.Defines {
		unit.Define(name, value)
	}
	expanded, err := unit.Preprocess(sourceFile)
	if err != nil {
		return err
	}

	progress.Printf("[2/5] lexing")
	tokens, err := lexer.Tokenize(sourceFile, []byte(expanded))
	if err != nil {
		return err
	}

	progress.Printf("[3/5] parsing")
	fn, err := parser.Parse(sourceFile, tokens)
	if err != nil {
		return err
	}

	progress.Printf("[4/5] generating assembly")
	asmText, err := codegen.Generate(sourceFile, cfg.Platform, fn)
	if err != nil {
		return err
	}

	progress.Printf("[5/5] assembling and linking")
	asmPath, objPath := toolchain.TempPaths("tinycc", os.Getpid())
	outPath := cfg.Output
	if outPath == "" {
		outPath = "a.out"
	}
	if err := toolchain.Build(toolchain.NewAssembler(), toolchain.NewLinker(), asmText, asmPath, objPath, outPath, cfg.Platform, cfg.KeepTemps); err != nil {
		return err
	}

	return nil
}
