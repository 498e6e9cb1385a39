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

// Package token defines the fixed token vocabulary shared by the lexer and
// parser.
package token

import "fmt"

// Type is a closed enumeration of the token kinds the lexer ever produces.
type Type int

const (
	EOF Type = iota
	Ident
	Int

	// keywords
	KwInt
	KwReturn
	KwIf
	KwElse
	KwWhile

	// punctuation
	LParen
	RParen
	LBrace
	RBrace
	Semicolon
	Comma

	// operators
	Plus
	Minus
	Star
	Slash
	Assign

	// comparisons
	Eq
	Ne
	Lt
	Gt
	Le
	Ge
)

var names = map[Type]string{
	EOF:       "EOF",
	Ident:     "identifier",
	Int:       "integer literal",
	KwInt:     "'int'",
	KwReturn:  "'return'",
	KwIf:      "'if'",
	KwElse:    "'else'",
	KwWhile:   "'while'",
	LParen:    "'('",
	RParen:    "')'",
	LBrace:    "'{'",
	RBrace:    "'}'",
	Semicolon: "';'",
	Comma:     "','",
	Plus:      "'+'",
	Minus:     "'-'",
	Star:      "'*'",
	Slash:     "'/'",
	Assign:    "'='",
	Eq:        "'=='",
	Ne:        "'!='",
	Lt:        "'<'",
	Gt:        "'>'",
	Le:        "'<='",
	Ge:        "'>='",
}

func (t Type) String() string {
	if name, ok := names[t]; ok {
		return name
	}
	return "unknown token"
}

// Keywords maps the fixed keyword spellings to their token type.
var Keywords = map[string]Type{
	"int":    KwInt,
	"return": KwReturn,
	"if":     KwIf,
	"else":   KwElse,
	"while":  KwWhile,
}

// Position is the source line a token was produced at. The spec's
// diagnostics are line-granular only (no column), since the preprocessor's
// #line tracking and this language's grammar never need finer resolution.
type Position struct {
	Line int
}

func (p Position) String() string {
	return fmt.Sprintf("line %d", p.Line)
}

// Token is a single lexical unit: a kind, the literal text that produced it
// (empty only for EOF), and the source line it was read from.
type Token struct {
	Type Type
	Text string
	Pos  Position
}

func (t Token) String() string {
	if t.Text != "" {
		return fmt.Sprintf("%s %q", t.Type, t.Text)
	}
	return t.Type.String()
}
