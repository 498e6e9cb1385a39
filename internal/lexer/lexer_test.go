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

package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coredump-labs/tinycc/internal/diagnostics"
	"github.com/coredump-labs/tinycc/internal/token"
)

func TestTokenizeSimpleProgram(t *testing.T) {
	src := "int main() { return 42; }"
	tokens, err := Tokenize("t.c", []byte(src))
	require.NoError(t, err)

	wantTypes := []token.Type{
		token.KwInt, token.Ident, token.LParen, token.RParen, token.LBrace,
		token.KwReturn, token.Int, token.Semicolon, token.RBrace, token.EOF,
	}
	require.Len(t, tokens, len(wantTypes))
	for i, want := range wantTypes {
		assert.Equal(t, want, tokens[i].Type, "token %d", i)
	}
	assert.Equal(t, "main", tokens[1].Text)
	assert.Equal(t, "42", tokens[6].Text)
}

func TestTokenizeOperators(t *testing.T) {
	testCases := []struct {
		input string
		want  token.Type
	}{
		{"==", token.Eq},
		{"!=", token.Ne},
		{"<=", token.Le},
		{">=", token.Ge},
		{"<", token.Lt},
		{">", token.Gt},
		{"=", token.Assign},
		{"+", token.Plus},
		{"-", token.Minus},
		{"*", token.Star},
		{"/", token.Slash},
	}
	for _, tc := range testCases {
		lx := New("t.c", []byte(tc.input))
		tok, err := lx.Next()
		require.NoError(t, err, "input: %q", tc.input)
		assert.Equal(t, tc.want, tok.Type, "input: %q", tc.input)
	}
}

func TestTokenizeKeywordsVsIdentifiers(t *testing.T) {
	tokens, err := Tokenize("t.c", []byte("int ifx while0 return"))
	require.NoError(t, err)
	assert.Equal(t, token.KwInt, tokens[0].Type)
	assert.Equal(t, token.Ident, tokens[1].Type) // "ifx" is not the keyword "if"
	assert.Equal(t, token.Ident, tokens[2].Type) // "while0" is not "while"
	assert.Equal(t, token.KwReturn, tokens[3].Type)
}

func TestLineMarkerUpdatesLineCounter(t *testing.T) {
	src := "int x;\n#line 100 \"included.h\"\nreturn x;\n"
	tokens, err := Tokenize("t.c", []byte(src))
	require.NoError(t, err)

	// "int" on original line 1.
	assert.Equal(t, 1, tokens[0].Pos.Line)
	// "return" follows the #line marker, which resets the counter to 100.
	var returnTok token.Token
	for _, tok := range tokens {
		if tok.Type == token.KwReturn {
			returnTok = tok
			break
		}
	}
	require.Equal(t, token.KwReturn, returnTok.Type)
	assert.Equal(t, 100, returnTok.Pos.Line)
}

func TestUnexpectedCharacter(t *testing.T) {
	_, err := Tokenize("t.c", []byte("int x = $;"))
	require.Error(t, err)
	var diag *diagnostics.Diagnostic
	require.ErrorAs(t, err, &diag)
	assert.Equal(t, diagnostics.UnexpectedCharacter, diag.Kind)
}

func TestEOFLineIsLastLineSeen(t *testing.T) {
	tokens, err := Tokenize("t.c", []byte("int x;\n\n\n"))
	require.NoError(t, err)
	last := tokens[len(tokens)-1]
	assert.Equal(t, token.EOF, last.Type)
	assert.Equal(t, 4, last.Pos.Line)
}
