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

// Package preprocessor expands #define and #include directives over a
// single source file, line by line, emitting #line markers so downstream
// diagnostics can report positions in terms of the original files rather
// than the flattened output. All state is scoped to one Unit so concurrent
// compilations never share a define table (§5, §9).
package preprocessor

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/coredump-labs/tinycc/internal/collections"
	"github.com/coredump-labs/tinycc/internal/diagnostics"
)

const (
	maxIncludeDepth = 100
	maxLineBytes    = 1024
	maxDefines      = 100
)

// FileReader abstracts filesystem access so tests can supply an in-memory
// tree without touching the real disk.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
	Stat(path string) (bool, error)
}

// osReader is the production FileReader, backed by the real filesystem.
type osReader struct{}

func (osReader) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }
func (osReader) Stat(path string) (bool, error) {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Unit holds all per-invocation mutable state: the define table and the
// extra -I search roots. Nothing here is package-level (§5).
type Unit struct {
	reader       FileReader
	defines      *collections.OrderedTable[string]
	includeRoots []string
}

// New constructs a Unit. includeRoots are SPEC_FULL's added search paths,
// probed after the two spec-mandated resolution steps; entries containing
// glob metacharacters are expanded with doublestar at Preprocess time.
func New(includeRoots []string) *Unit {
	return &Unit{
		reader:       osReader{},
		defines:      collections.NewOrderedTable[string](),
		includeRoots: includeRoots,
	}
}

// WithReader overrides the FileReader, for tests.
func (u *Unit) WithReader(r FileReader) *Unit {
	u.reader = r
	return u
}

// Define seeds the table before preprocessing begins, for -D command line
// macros (§6 [ADDED] Flags). A later #define of the same name still
// overwrites it, matching ordinary #define semantics. Capacity is bounded
// at maxDefines entries (§4.1); once full, defines of new names are
// silently dropped, while redefinitions of an already-tracked name still
// take effect.
func (u *Unit) Define(name, value string) {
	if _, exists := u.defines.Get(name); !exists && u.defines.Len() >= maxDefines {
		return
	}
	u.defines.Set(name, value)
}

// Preprocess expands source (read from filename) into flattened text ready
// for the lexer. filename seeds the root of the include chain and the
// initial #line marker.
func Preprocess(filename string, includeRoots []string) (string, error) {
	return New(includeRoots).Preprocess(filename)
}

// Preprocess reads filename through u's FileReader and expands it, using
// any -D macros already registered via Define.
func (u *Unit) Preprocess(filename string) (string, error) {
	source, err := u.reader.ReadFile(filename)
	if err != nil {
		return "", diagnostics.Wrap(diagnostics.FileOpen, filename, 0, "could not open "+filename, err)
	}
	return u.Expand(source, filename)
}

// Expand runs the preprocessor over in-memory source, with filename as the
// root of the include chain. Preprocess calls it; each #include is expanded
// through the same internal routine with the chain extended.
func (u *Unit) Expand(source []byte, filename string) (string, error) {
	chain := collections.NewSet[string]()
	chain.Add(filename)
	return u.expand(source, filename, chain, 0)
}

func (u *Unit) expand(source []byte, filename string, chain collections.Set[string], depth int) (string, error) {
	if depth >= maxIncludeDepth {
		return "", diagnostics.New(diagnostics.IncludeTooDeep, filename, 0, fmt.Sprintf("include depth exceeded maximum (%d)", maxIncludeDepth))
	}

	var out strings.Builder
	fmt.Fprintf(&out, "#line 1 %q\n", filename)

	lineNum := 0
	for _, raw := range splitLines(source) {
		lineNum++
		line := truncateLine(raw)
		trimmed := strings.TrimLeft(line, " \t")

		if strings.HasPrefix(trimmed, "#") {
			directive := strings.TrimLeft(trimmed[1:], " \t")
			switch {
			case strings.HasPrefix(directive, "define"):
				u.handleDefine(directive[len("define"):])
				continue
			case strings.HasPrefix(directive, "include"):
				included, err := u.handleInclude(directive[len("include"):], filename, lineNum, chain, depth)
				if err != nil {
					return "", err
				}
				out.WriteString(included)
				fmt.Fprintf(&out, "#line %d %q\n", lineNum+1, filename)
				continue
			default:
				// Any other directive is silently dropped (§4.1).
				continue
			}
		}

		out.WriteString(u.substitute(line))
		out.WriteByte('\n')
	}

	return out.String(), nil
}

func truncateLine(line string) string {
	if len(line) > maxLineBytes {
		return line[:maxLineBytes]
	}
	return line
}

func splitLines(source []byte) []string {
	text := string(bytes.ReplaceAll(source, []byte("\r\n"), []byte("\n")))
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func (u *Unit) handleDefine(rest string) {
	rest = strings.TrimLeft(rest, " \t")
	i := 0
	for i < len(rest) && isIdentByte(rest[i], i == 0) {
		i++
	}
	name := rest[:i]
	value := strings.TrimLeft(rest[i:], " \t")
	if name == "" {
		return
	}
	u.Define(name, value)
}

func (u *Unit) handleInclude(rest string, currentFile string, line int, chain collections.Set[string], depth int) (string, error) {
	rest = strings.TrimLeft(rest, " \t")
	if rest == "" {
		return "", diagnostics.New(diagnostics.IncludeNotFound, currentFile, line, "invalid #include directive")
	}
	open, closeCh := rest[0], byte(0)
	switch open {
	case '"':
		closeCh = '"'
	case '<':
		closeCh = '>'
	default:
		return "", diagnostics.New(diagnostics.IncludeNotFound, currentFile, line, "invalid #include directive")
	}
	end := strings.IndexByte(rest[1:], closeCh)
	if end < 0 {
		return "", diagnostics.New(diagnostics.IncludeNotFound, currentFile, line, "invalid #include directive")
	}
	includeName := rest[1 : 1+end]

	resolved, err := u.resolveInclude(currentFile, includeName)
	if err != nil {
		if diag, ok := err.(*diagnostics.Diagnostic); ok {
			return "", diag
		}
		return "", diagnostics.New(diagnostics.IncludeNotFound, currentFile, line, "could not find included file '"+includeName+"'")
	}

	if chain.Contains(resolved) {
		return "", diagnostics.New(diagnostics.CircularInclude, currentFile, line, "circular include detected for '"+resolved+"'")
	}

	content, err := u.reader.ReadFile(resolved)
	if err != nil {
		return "", diagnostics.Wrap(diagnostics.IncludeNotFound, currentFile, line, "could not read included file '"+resolved+"'", err)
	}

	nested := collections.NewSet[string]()
	for _, v := range chain.Values() {
		nested.Add(v)
	}
	nested.Add(resolved)

	return u.expand(content, resolved, nested, depth+1)
}

// resolveInclude tries, in order: (1) the directory of the including file,
// (2) the path verbatim relative to the process working directory, and
// then (3) the SPEC_FULL-added include roots, each expanded through
// doublestar.Glob so a root may itself be a glob pattern. The first
// readable path wins (§4.1).
func (u *Unit) resolveInclude(currentFile, includeName string) (string, error) {
	if currentFile != "" {
		candidate := filepath.Join(filepath.Dir(currentFile), includeName)
		if ok, _ := u.reader.Stat(candidate); ok {
			return candidate, nil
		}
	}
	if ok, _ := u.reader.Stat(includeName); ok {
		return includeName, nil
	}
	for _, root := range u.includeRoots {
		dirs, err := doublestar.FilepathGlob(root)
		if err != nil {
			return "", diagnostics.New(diagnostics.InvalidGlob, currentFile, 0, "malformed -I pattern "+root)
		}
		if len(dirs) == 0 && !strings.ContainsAny(root, "*?[") {
			dirs = []string{root}
		}
		for _, dir := range dirs {
			candidate := filepath.Join(dir, includeName)
			if ok, _ := u.reader.Stat(candidate); ok {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("not found")
}

// substitute replaces every maximal run of identifier characters that
// matches a defined name with its replacement text. Substitution is
// non-recursive: replacement text is copied verbatim, never rescanned
// (§4.1's documented macro-substitution limitation).
func (u *Unit) substitute(line string) string {
	var out strings.Builder
	i := 0
	for i < len(line) {
		c := line[i]
		if isIdentByte(c, true) {
			j := i + 1
			for j < len(line) && isIdentByte(line[j], false) {
				j++
			}
			ident := line[i:j]
			if value, ok := u.defines.Get(ident); ok {
				out.WriteString(value)
			} else {
				out.WriteString(ident)
			}
			i = j
			continue
		}
		out.WriteByte(c)
		i++
	}
	return out.String()
}

func isIdentByte(b byte, first bool) bool {
	if b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') {
		return true
	}
	if !first && b >= '0' && b <= '9' {
		return true
	}
	return false
}
