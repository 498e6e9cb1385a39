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

// Package diagnostics defines the compiler's error taxonomy. Every stage
// reports failures as a *Diagnostic carrying a Kind (for errors.Is-style
// matching) and the source line it occurred at, so the CLI can print a
// uniform "file:line: message" line to stderr and exit non-zero.
package diagnostics

import "fmt"

// Kind identifies one of the fixed error categories a compilation can fail
// with. It is a closed set: the compiler never invents a new Kind at
// runtime.
type Kind int

const (
	FileOpen Kind = iota
	IncludeNotFound
	CircularInclude
	IncludeTooDeep
	UnexpectedCharacter
	UnexpectedToken
	ExpectedSymbol
	InvalidRoot
	UndefinedVariable
	ToolchainFailed
	ConfigParse
	InvalidGlob
)

func (k Kind) String() string {
	switch k {
	case FileOpen:
		return "FileOpen"
	case IncludeNotFound:
		return "IncludeNotFound"
	case CircularInclude:
		return "CircularInclude"
	case IncludeTooDeep:
		return "IncludeTooDeep"
	case UnexpectedCharacter:
		return "UnexpectedCharacter"
	case UnexpectedToken:
		return "UnexpectedToken"
	case ExpectedSymbol:
		return "ExpectedSymbol"
	case InvalidRoot:
		return "InvalidRoot"
	case UndefinedVariable:
		return "UndefinedVariable"
	case ToolchainFailed:
		return "ToolchainFailed"
	case ConfigParse:
		return "ConfigParse"
	case InvalidGlob:
		return "InvalidGlob"
	default:
		return "Unknown"
	}
}

// Diagnostic is a single, non-recoverable compilation error. Line is 0 when
// the failure has no associated source position (e.g. ToolchainFailed).
type Diagnostic struct {
	Kind Kind
	File string
	Line int
	Msg  string
	Err  error // wrapped underlying error, if any
}

func (d *Diagnostic) Error() string {
	loc := ""
	switch {
	case d.File != "" && d.Line > 0:
		loc = fmt.Sprintf("%s:%d: ", d.File, d.Line)
	case d.Line > 0:
		loc = fmt.Sprintf("line %d: ", d.Line)
	}
	if d.Err != nil {
		return fmt.Sprintf("%s%s: %v", loc, d.Msg, d.Err)
	}
	return loc + d.Msg
}

func (d *Diagnostic) Unwrap() error { return d.Err }

// Is reports whether target is a *Diagnostic with the same Kind, allowing
// callers to write errors.Is(err, diagnostics.New(diagnostics.CircularInclude, "", 0, "")).
func (d *Diagnostic) Is(target error) bool {
	other, ok := target.(*Diagnostic)
	if !ok {
		return false
	}
	return other.Kind == d.Kind
}

// New constructs a Diagnostic with no wrapped error.
func New(kind Kind, file string, line int, msg string) *Diagnostic {
	return &Diagnostic{Kind: kind, File: file, Line: line, Msg: msg}
}

// Wrap constructs a Diagnostic wrapping an existing error.
func Wrap(kind Kind, file string, line int, msg string, err error) *Diagnostic {
	return &Diagnostic{Kind: kind, File: file, Line: line, Msg: msg, Err: err}
}
