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

// Package codegen translates a syntax tree into AT&T-syntax x86-64
// assembly targeting the System V AMD64 calling convention. It allocates
// one 8-byte stack slot per distinct variable name on first write and never
// reuses or spills slots; the fixed 128-byte frame therefore bounds the
// function to 16 distinct variables (§4.4).
package codegen

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/coredump-labs/tinycc/internal/ast"
	"github.com/coredump-labs/tinycc/internal/collections"
	"github.com/coredump-labs/tinycc/internal/diagnostics"
)

// Platform selects the object-file and symbol-naming conventions of the
// emitted assembly header/footer.
type Platform int

const (
	Linux Platform = iota
	Darwin
)

// HostPlatform reports the Platform implied by the running GOOS, for
// callers that don't override it explicitly via CompileConfig.
func HostPlatform() Platform {
	if runtime.GOOS == "darwin" {
		return Darwin
	}
	return Linux
}

const frameSize = 128
const slotSize = 8
const maxVariables = frameSize / slotSize

// Generator holds all per-compilation mutable state: the variable slot
// table and label counter. Nothing here is package-level, so concurrent
// compilations never interfere (§5, §9).
type Generator struct {
	filename string
	platform Platform
	vars     *collections.OrderedTable[int]
	labels   int
	out      strings.Builder
}

// New constructs a Generator for a single function compilation.
func New(filename string, platform Platform) *Generator {
	return &Generator{filename: filename, platform: platform, vars: collections.NewOrderedTable[int]()}
}

// Generate compiles node into AT&T x86-64 assembly text. node must be an
// *ast.Function; any other root fails with diagnostics.InvalidRoot.
func Generate(filename string, platform Platform, node ast.Node) (string, error) {
	fn, ok := node.(*ast.Function)
	if !ok {
		return "", diagnostics.New(diagnostics.InvalidRoot, filename, 0, fmt.Sprintf("expected a function at the root, got %T", node))
	}
	g := New(filename, platform)
	if err := g.function(*fn); err != nil {
		return "", err
	}
	return g.out.String(), nil
}

func (g *Generator) newLabel() string {
	g.labels++
	return fmt.Sprintf(".L%d", g.labels)
}

// slot returns the stack offset for name, assigning the next free slot on
// first use. Offsets are positive multiples of 8, counted below %rbp.
func (g *Generator) slot(name string) (int, error) {
	if off, ok := g.vars.Get(name); ok {
		return off, nil
	}
	off := (g.vars.Len() + 1) * slotSize
	g.vars.Set(name, off)
	return off, nil
}

// read looks up an already-assigned variable's offset. Reading a name
// never previously assigned is diagnostics.UndefinedVariable: the statement
// containing the read is abandoned, the remaining statements are still
// generated, and Generate returns the first error with no assembly text.
func (g *Generator) read(name string, line int) (int, error) {
	if off, ok := g.vars.Get(name); ok {
		return off, nil
	}
	return 0, diagnostics.New(diagnostics.UndefinedVariable, g.filename, line, "undefined variable "+name)
}

func (g *Generator) symbolName(name string) string {
	if g.platform == Darwin {
		return "_" + name
	}
	return name
}

func (g *Generator) function(fn ast.Function) error {
	sym := g.symbolName(fn.Name)

	switch g.platform {
	case Darwin:
		fmt.Fprintf(&g.out, "\t.section\t__TEXT,__text,regular,pure_instructions\n")
		fmt.Fprintf(&g.out, "\t.globl\t%s\n", sym)
		fmt.Fprintf(&g.out, "%s:\n", sym)
	default:
		fmt.Fprintf(&g.out, "\t.text\n")
		fmt.Fprintf(&g.out, "\t.globl\t%s\n", sym)
		fmt.Fprintf(&g.out, "\t.type\t%s, @function\n", sym)
		fmt.Fprintf(&g.out, "%s:\n", sym)
	}

	g.emit("pushq\t%rbp")
	g.emit("movq\t%rsp, %rbp")
	fmt.Fprintf(&g.out, "\tsubq\t$%d, %%rsp\n", frameSize)

	var firstErr error
	for _, stmt := range fn.Body.Stmts {
		if err := g.stmt(stmt); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// Every function always falls through to a default return of 0 and the
	// epilogue, so control can never fall off the end (§4.4's Epilogue
	// reachability property).
	g.emit("movq\t$0, %rax")
	g.epilogue()

	// A function using more than maxVariables distinct names silently
	// overruns the 128-byte frame: documented as undefined behavior of the
	// compiler (§4.4), not diagnosed here.

	return firstErr
}

func (g *Generator) epilogue() {
	g.emit("movq\t%rbp, %rsp")
	g.emit("popq\t%rbp")
	g.emit("ret")
}

func (g *Generator) emit(instr string) {
	g.out.WriteString("\t")
	g.out.WriteString(instr)
	g.out.WriteString("\n")
}

func (g *Generator) emitf(format string, args ...any) {
	g.emit(fmt.Sprintf(format, args...))
}

func (g *Generator) label(name string) {
	fmt.Fprintf(&g.out, "%s:\n", name)
}

func (g *Generator) stmt(s ast.Stmt) error {
	switch s := s.(type) {
	case ast.Block:
		for _, inner := range s.Stmts {
			if err := g.stmt(inner); err != nil {
				return err
			}
		}
		return nil
	case ast.Return:
		if err := g.expr(s.Expr); err != nil {
			return err
		}
		g.epilogue()
		return nil
	case ast.Assignment:
		if err := g.expr(s.Expr); err != nil {
			return err
		}
		off, _ := g.slot(s.Name)
		g.emitf("movq\t%%rax, -%d(%%rbp)", off)
		return nil
	case ast.If:
		return g.ifStmt(s)
	case ast.While:
		return g.whileStmt(s)
	default:
		return diagnostics.New(diagnostics.InvalidRoot, g.filename, 0, fmt.Sprintf("unknown statement node %T", s))
	}
}

func (g *Generator) ifStmt(s ast.If) error {
	if err := g.expr(s.Cond); err != nil {
		return err
	}
	g.emit("cmpq\t$0, %rax")
	if s.Else == nil {
		end := g.newLabel()
		g.emitf("je\t%s", end)
		if err := g.stmt(s.Then); err != nil {
			return err
		}
		g.label(end)
		return nil
	}
	elseLabel := g.newLabel()
	end := g.newLabel()
	g.emitf("je\t%s", elseLabel)
	if err := g.stmt(s.Then); err != nil {
		return err
	}
	g.emitf("jmp\t%s", end)
	g.label(elseLabel)
	if err := g.stmt(s.Else); err != nil {
		return err
	}
	g.label(end)
	return nil
}

func (g *Generator) whileStmt(s ast.While) error {
	start := g.newLabel()
	end := g.newLabel()
	g.label(start)
	if err := g.expr(s.Cond); err != nil {
		return err
	}
	g.emit("cmpq\t$0, %rax")
	g.emitf("je\t%s", end)
	if err := g.stmt(s.Body); err != nil {
		return err
	}
	g.emitf("jmp\t%s", start)
	g.label(end)
	return nil
}

// setcc maps a comparison operator to its AT&T set-byte-on-condition
// mnemonic.
var setcc = map[ast.Op]string{
	ast.Lt: "setl",
	ast.Gt: "setg",
	ast.Le: "setle",
	ast.Ge: "setge",
	ast.Eq: "sete",
	ast.Ne: "setne",
}

func isComparison(op ast.Op) bool {
	_, ok := setcc[op]
	return ok
}

// expr evaluates e into %rax. For a binary operation, the right operand is
// evaluated first, pushed, then the left operand is evaluated and the
// right popped into %rcx — the order the spec's table assumes for
// non-commutative operators like subtraction and division (§4.4).
func (g *Generator) expr(e ast.Expr) error {
	switch e := e.(type) {
	case ast.Number:
		g.emitf("movq\t$%d, %%rax", e.Value)
		return nil
	case ast.Variable:
		off, err := g.read(e.Name, 0)
		if err != nil {
			return err
		}
		g.emitf("movq\t-%d(%%rbp), %%rax", off)
		return nil
	case ast.BinaryOp:
		return g.binaryOp(e)
	default:
		return diagnostics.New(diagnostics.InvalidRoot, g.filename, 0, fmt.Sprintf("unknown expression node %T", e))
	}
}

func (g *Generator) binaryOp(b ast.BinaryOp) error {
	if err := g.expr(b.Right); err != nil {
		return err
	}
	g.emit("pushq\t%rax")
	if err := g.expr(b.Left); err != nil {
		return err
	}
	g.emit("popq\t%rcx")

	switch {
	case b.Op == ast.Add:
		g.emit("addq\t%rcx, %rax")
	case b.Op == ast.Sub:
		g.emit("subq\t%rcx, %rax")
	case b.Op == ast.Mul:
		g.emit("imulq\t%rcx, %rax")
	case b.Op == ast.Div:
		g.emit("cqto")
		g.emit("idivq\t%rcx")
	case isComparison(b.Op):
		g.emit("cmpq\t%rcx, %rax")
		g.emitf("%s\t%%al", setcc[b.Op])
		g.emit("movzbq\t%al, %rax")
	default:
		return diagnostics.New(diagnostics.InvalidRoot, g.filename, 0, fmt.Sprintf("unknown operator %v", b.Op))
	}
	return nil
}
