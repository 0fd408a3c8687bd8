package runtime

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"embers/ast"
	"embers/lexer"
	"embers/parser"
)

// CompileError is returned for any compile-time failure: an undeclared
// identifier, a redefined function, a break/continue outside a loop, a
// failed import, and so on.
type CompileError struct {
	Filename string
	Line     int
	Message  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile error at %s:%d: %s", e.Filename, e.Line, e.Message)
}

func compileErrorf(filename string, line int, format string, args ...interface{}) error {
	return errors.WithStack(&CompileError{Filename: filename, Line: line, Message: fmt.Sprintf(format, args...)})
}

// Log is the package-level debug logger. It is silent (logrus' default
// level is Info, and nothing here logs above Debug) unless the CLI raises
// its level via --debug, mirroring original_source/shared.h's
// compile-time-gated LOG/LOGN macros.
var Log = logrus.New()

func init() {
	Log.SetLevel(logrus.InfoLevel)
}

const maxNestedWhiles = 16

type whileFrame struct {
	conditionStart int
	breakJumps     []int
}

// functionBuilder accumulates one function's constant pool, bytecode, and
// local-variable table across a single walk of its AST, matching
// compile.c's codeblock_builder.
type functionBuilder struct {
	filename string

	localVars      map[string]int
	numberOfLocals int

	constants []Value

	code []int

	whiles []whileFrame
}

func newFunctionBuilder(filename string) *functionBuilder {
	return &functionBuilder{
		filename:       filename,
		localVars:      make(map[string]int),
		numberOfLocals: 1, // slot 0 is the reserved return/scratch local.
	}
}

func (b *functionBuilder) nextLocalIndex() int {
	idx := b.numberOfLocals
	b.numberOfLocals++
	return idx
}

// declareLocalVariable returns the slot for name, allocating a fresh one
// only the first time it's declared within this function (subsequent
// `local` statements with the same name reuse the slot).
func (b *functionBuilder) declareLocalVariable(name string) int {
	if idx, ok := b.localVars[name]; ok {
		return idx
	}
	idx := b.nextLocalIndex()
	b.localVars[name] = idx
	Log.Debugf("locals[%d] = %s", idx, name)
	return idx
}

func (b *functionBuilder) lookupLocalVariable(name string) (int, bool) {
	idx, ok := b.localVars[name]
	return idx, ok
}

func (b *functionBuilder) setOpcode(op OpCode) {
	Log.Debugf("code[%3d] = op(%s)", len(b.code), op)
	b.code = append(b.code, int(op))
}

func (b *functionBuilder) setCount(count int) {
	Log.Debugf("code[%3d] = count(%d)", len(b.code), count)
	b.code = append(b.code, count)
}

func (b *functionBuilder) setLocal(local int) {
	Log.Debugf("code[%3d] = local(%d)", len(b.code), local)
	b.code = append(b.code, local)
}

// deferJump reserves a code slot for a jump target to be patched later by
// setJumpDst, matching compile.c's defer_jump/set_jump_dst pair.
func (b *functionBuilder) deferJump() int {
	pos := len(b.code)
	b.code = append(b.code, -1)
	return pos
}

func (b *functionBuilder) setJumpDst(jumpSrc int) {
	b.code[jumpSrc] = len(b.code)
}

// loadConstant deduplicates structurally-equal constants via Equal,
// matching compile.c's load_constant.
func (b *functionBuilder) loadConstant(constant Value, targetLocal int) {
	constIndex := -1
	for i, c := range b.constants {
		if Equal(c, constant) {
			constIndex = i
			constant.Free()
			break
		}
	}
	if constIndex == -1 {
		constIndex = len(b.constants)
		b.constants = append(b.constants, constant)
	}

	b.setOpcode(OpLoadConstant)
	b.setCount(constIndex)
	b.setLocal(targetLocal)
}

// Compiler walks parsed declarations into compiled functions, installing
// them into a shared Globals table. One Compiler is used for an entire
// program, including every file reached via `import`.
type Compiler struct {
	globals *Globals
	loader  func(path string) (string, error)
	seen    map[string]bool
}

// NewCompiler returns a Compiler that installs declarations into globals
// and reads imported files from disk.
func NewCompiler(globals *Globals) *Compiler {
	return &Compiler{
		globals: globals,
		loader:  func(path string) (string, error) { b, err := os.ReadFile(path); return string(b), err },
		seen:    make(map[string]bool),
	}
}

// CompileSource parses and compiles one source file's declarations,
// installing functions and globals into the shared table. Used both for
// the program's entry file and for every file reached transitively via
// `import`.
func (c *Compiler) CompileSource(filename, source string) error {
	lex := lexer.New(filename, source)
	program, err := parser.ParseProgram(lex)
	if err != nil {
		return err
	}
	return c.compileProgram(program)
}

func (c *Compiler) compileProgram(program *ast.Program) error {
	for _, decl := range program.Declarations {
		if err := c.compileDeclaration(decl); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileDeclaration(decl ast.Declaration) error {
	switch d := decl.(type) {
	case *ast.FunctionDeclaration:
		// Declare the global before compiling the body so recursive calls
		// can resolve the function's own name.
		global := c.globals.Declare(d.Name)

		block, err := c.buildFunction(d)
		if err != nil {
			return err
		}
		fn := NewFunction(d.Name, block, len(d.ArgumentNames), d.Src.Filename, d.Src.Line)

		if _, isNull := c.globals.entries[global].value.(Null); !isNull {
			return compileErrorf(d.Src.Filename, d.Src.Line, "function %s redefined", d.Name)
		}
		c.globals.Assign(global, fn)
		return nil

	case *ast.GlobalDeclaration:
		c.globals.Declare(d.Name)
		return nil

	case *ast.ImportDeclaration:
		if c.seen[d.Path] {
			return nil
		}
		c.seen[d.Path] = true

		source, err := c.loader(d.Path)
		if err != nil {
			return compileErrorf(d.Src.Filename, d.Src.Line, "couldn't import %q: %s", d.Path, err)
		}
		return c.CompileSource(d.Path, source)

	default:
		return fmt.Errorf("unknown declaration type %T", decl)
	}
}

func (c *Compiler) buildFunction(d *ast.FunctionDeclaration) (*CodeBlock, error) {
	b := newFunctionBuilder(d.Src.Filename)

	for _, arg := range d.ArgumentNames {
		b.declareLocalVariable(arg)
	}

	if err := c.compileBlock(b, d.Body); err != nil {
		return nil, err
	}

	// Every function implicitly returns `null` if control falls off the end.
	b.loadConstant(Null{}, CodeBlockReturnLocal)
	b.setOpcode(OpReturn)

	return &CodeBlock{
		NumberOfLocals: b.numberOfLocals,
		Code:           b.code,
		Constants:      b.constants,
	}, nil
}

func (c *Compiler) compileBlock(b *functionBuilder, block *ast.Block) error {
	for _, stmt := range block.Statements {
		if err := c.compileStatement(b, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileStatement(b *functionBuilder, stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.LocalStatement:
		newLocal := b.declareLocalVariable(s.Name)
		if s.Initializer == nil {
			b.loadConstant(Null{}, newLocal)
			return nil
		}
		return c.compileExpression(b, s.Initializer, newLocal)

	case *ast.ReturnStatement:
		if s.Expression == nil {
			b.loadConstant(Null{}, CodeBlockReturnLocal)
		} else if err := c.compileExpression(b, s.Expression, CodeBlockReturnLocal); err != nil {
			return err
		}
		b.setOpcode(OpReturn)
		return nil

	case *ast.IfStatement:
		return c.compileIf(b, s)

	case *ast.WhileStatement:
		return c.compileWhile(b, s)

	case *ast.BreakStatement:
		if len(b.whiles) == 0 {
			return compileErrorf(b.filename, 0, "cannot break when not within a while")
		}
		b.setOpcode(OpJump)
		frame := &b.whiles[len(b.whiles)-1]
		frame.breakJumps = append(frame.breakJumps, b.deferJump())
		return nil

	case *ast.ContinueStatement:
		if len(b.whiles) == 0 {
			return compileErrorf(b.filename, 0, "cannot continue when not within a while")
		}
		b.setOpcode(OpJump)
		b.setCount(b.whiles[len(b.whiles)-1].conditionStart)
		return nil

	case *ast.ExpressionStatement:
		return c.compileExpression(b, s.Expression, CodeBlockReturnLocal)

	default:
		return fmt.Errorf("unknown statement type %T", stmt)
	}
}

func (c *Compiler) compileIf(b *functionBuilder, s *ast.IfStatement) error {
	if err := c.compileExpression(b, s.Condition, CodeBlockReturnLocal); err != nil {
		return err
	}
	b.setOpcode(OpJumpIfFalse)
	b.setLocal(CodeBlockReturnLocal)
	ifFalseJump := b.deferJump()

	if err := c.compileBlock(b, s.IfTrue); err != nil {
		return err
	}

	if s.IfFalse == nil {
		b.setJumpDst(ifFalseJump)
		return nil
	}

	b.setOpcode(OpJump)
	toEnd := b.deferJump()

	b.setJumpDst(ifFalseJump)
	if err := c.compileBlock(b, s.IfFalse); err != nil {
		return err
	}
	b.setJumpDst(toEnd)
	return nil
}

func (c *Compiler) compileWhile(b *functionBuilder, s *ast.WhileStatement) error {
	conditionStart := len(b.code)
	if err := c.compileExpression(b, s.Condition, CodeBlockReturnLocal); err != nil {
		return err
	}
	b.setOpcode(OpJumpIfFalse)
	b.setLocal(CodeBlockReturnLocal)
	toEnd := b.deferJump()

	if len(b.whiles) == maxNestedWhiles {
		return compileErrorf(b.filename, 0, "too many nested whiles encountered; only %d max allowed", maxNestedWhiles)
	}
	b.whiles = append(b.whiles, whileFrame{conditionStart: conditionStart})

	if err := c.compileBlock(b, s.Body); err != nil {
		return err
	}

	b.setOpcode(OpJump)
	b.setCount(conditionStart)
	b.setJumpDst(toEnd)

	frame := b.whiles[len(b.whiles)-1]
	b.whiles = b.whiles[:len(b.whiles)-1]
	for _, jump := range frame.breakJumps {
		b.setJumpDst(jump)
	}

	return nil
}

func binaryOpcode(op ast.BinaryOp) OpCode {
	switch op {
	case ast.BinaryOpAdd:
		return OpAdd
	case ast.BinaryOpSubtract:
		return OpSubtract
	case ast.BinaryOpMultiply:
		return OpMultiply
	case ast.BinaryOpDivide:
		return OpDivide
	case ast.BinaryOpModulo:
		return OpModulo
	case ast.BinaryOpEqual:
		return OpEqual
	case ast.BinaryOpNotEqual:
		return OpNotEqual
	case ast.BinaryOpLessThan:
		return OpLessThan
	case ast.BinaryOpLessThanOrEqual:
		return OpLessThanOrEqual
	case ast.BinaryOpGreaterThan:
		return OpGreaterThan
	case ast.BinaryOpGreaterThanOrEqual:
		return OpGreaterThanOrEqual
	default:
		panic("BinaryOpUndef outside of an assignment")
	}
}

func (c *Compiler) compileExpression(b *functionBuilder, expr ast.Expression, targetLocal int) error {
	switch e := expr.(type) {
	case *ast.AssignExpression:
		return c.compileAssign(b, e, targetLocal)

	case *ast.IndexAssignExpression:
		return c.compileIndexAssign(b, e, targetLocal)

	case *ast.ShortCircuitExpression:
		if err := c.compilePrimary(b, e.LHS, targetLocal); err != nil {
			return err
		}
		if e.Operator == ast.ShortCircuitOr {
			b.setOpcode(OpJumpIfTrue)
		} else {
			b.setOpcode(OpJumpIfFalse)
		}
		b.setLocal(targetLocal)
		toEnd := b.deferJump()
		if err := c.compileExpression(b, e.RHS, targetLocal); err != nil {
			return err
		}
		b.setJumpDst(toEnd)
		return nil

	case *ast.BinaryOperatorExpression:
		lhsLocal := b.nextLocalIndex()
		if err := c.compilePrimary(b, e.LHS, lhsLocal); err != nil {
			return err
		}
		if err := c.compileExpression(b, e.RHS, targetLocal); err != nil {
			return err
		}
		b.setOpcode(binaryOpcode(e.Operator))
		b.setLocal(lhsLocal)
		b.setLocal(targetLocal)
		b.setLocal(targetLocal)
		return nil

	case *ast.PrimaryExpression:
		return c.compilePrimary(b, e.Primary, targetLocal)

	default:
		return fmt.Errorf("unknown expression type %T", expr)
	}
}

func (c *Compiler) compileAssign(b *functionBuilder, e *ast.AssignExpression, targetLocal int) error {
	if err := c.compileExpression(b, e.Value, targetLocal); err != nil {
		return err
	}

	if localIndex, ok := b.lookupLocalVariable(e.Name); ok {
		if e.Operator != ast.BinaryOpUndef {
			b.setOpcode(binaryOpcode(e.Operator))
			b.setLocal(localIndex)
			b.setLocal(targetLocal)
			b.setLocal(targetLocal)
		}
		b.setOpcode(OpMove)
		b.setLocal(targetLocal)
		b.setLocal(localIndex)
		return nil
	}

	globalIndex := c.globals.Lookup(e.Name)
	if globalIndex == GlobalDoesNotExist {
		return compileErrorf(b.filename, 0, "unknown variable '%s'; declare it first.", e.Name)
	}

	if e.Operator != ast.BinaryOpUndef {
		oldLocal := b.nextLocalIndex()
		b.setOpcode(OpLoadGlobalVariable)
		b.setCount(globalIndex)
		b.setLocal(oldLocal)

		b.setOpcode(binaryOpcode(e.Operator))
		b.setLocal(oldLocal)
		b.setLocal(targetLocal)
		b.setLocal(oldLocal)

		b.setOpcode(OpStoreGlobalVariable)
		b.setCount(globalIndex)
		b.setLocal(oldLocal)
		b.setLocal(targetLocal)
		return nil
	}

	b.setOpcode(OpStoreGlobalVariable)
	b.setCount(globalIndex)
	b.setLocal(targetLocal)
	b.setLocal(targetLocal)
	return nil
}

func (c *Compiler) compileIndexAssign(b *functionBuilder, e *ast.IndexAssignExpression, targetLocal int) error {
	sourceLocal := b.nextLocalIndex()
	indexLocal := b.nextLocalIndex()

	if err := c.compilePrimary(b, e.Source, sourceLocal); err != nil {
		return err
	}
	if err := c.compileExpression(b, e.Index, indexLocal); err != nil {
		return err
	}
	if err := c.compileExpression(b, e.Value, targetLocal); err != nil {
		return err
	}

	if e.Operator != ast.BinaryOpUndef {
		oldValueLocal := b.nextLocalIndex()
		b.setOpcode(OpIndex)
		b.setLocal(sourceLocal)
		b.setLocal(indexLocal)
		b.setLocal(oldValueLocal)

		b.setOpcode(binaryOpcode(e.Operator))
		b.setLocal(oldValueLocal)
		b.setLocal(targetLocal)
		b.setLocal(targetLocal)
	}

	b.setOpcode(OpIndexAssign)
	b.setLocal(sourceLocal)
	b.setLocal(indexLocal)
	b.setLocal(targetLocal)
	b.setLocal(targetLocal)
	return nil
}

func (c *Compiler) compilePrimary(b *functionBuilder, primary ast.Primary, targetLocal int) error {
	switch p := primary.(type) {
	case *ast.ParenPrimary:
		return c.compileExpression(b, p.Expression, targetLocal)

	case *ast.IndexPrimary:
		sourceLocal := b.nextLocalIndex()
		if err := c.compilePrimary(b, p.Source, sourceLocal); err != nil {
			return err
		}
		if err := c.compileExpression(b, p.Index, targetLocal); err != nil {
			return err
		}
		b.setOpcode(OpIndex)
		b.setLocal(sourceLocal)
		b.setLocal(targetLocal)
		b.setLocal(targetLocal)
		return nil

	case *ast.CallPrimary:
		functionLocal := b.nextLocalIndex()
		if err := c.compilePrimary(b, p.Function, functionLocal); err != nil {
			return err
		}

		argLocals := make([]int, len(p.Arguments))
		for i, argExpr := range p.Arguments {
			argLocals[i] = b.nextLocalIndex()
			if err := c.compileExpression(b, argExpr, argLocals[i]); err != nil {
				return err
			}
		}

		b.setOpcode(OpCall)
		b.setLocal(functionLocal)
		b.setCount(len(argLocals))
		for _, l := range argLocals {
			b.setLocal(l)
		}
		b.setLocal(targetLocal)
		return nil

	case *ast.UnaryOperatorPrimary:
		if err := c.compilePrimary(b, p.Operand, targetLocal); err != nil {
			return err
		}
		if p.Operator == ast.UnaryOpNegate {
			b.setOpcode(OpNegate)
		} else {
			b.setOpcode(OpNot)
		}
		b.setLocal(targetLocal)
		b.setLocal(targetLocal)
		return nil

	case *ast.ArrayLiteralPrimary:
		elementLocals := make([]int, len(p.Elements))
		for i, elemExpr := range p.Elements {
			elementLocals[i] = b.nextLocalIndex()
			if err := c.compileExpression(b, elemExpr, elementLocals[i]); err != nil {
				return err
			}
		}
		b.setOpcode(OpArrayLiteral)
		b.setCount(len(elementLocals))
		for _, l := range elementLocals {
			b.setLocal(l)
		}
		b.setLocal(targetLocal)
		return nil

	case *ast.VariablePrimary:
		if localIndex, ok := b.lookupLocalVariable(p.Name); ok {
			b.setOpcode(OpMove)
			b.setLocal(localIndex)
			b.setLocal(targetLocal)
			return nil
		}

		globalIndex := c.globals.Lookup(p.Name)
		if globalIndex == GlobalDoesNotExist {
			return compileErrorf(b.filename, 0, "undeclared variable '%s'", p.Name)
		}
		b.setOpcode(OpLoadGlobalVariable)
		b.setCount(globalIndex)
		b.setLocal(targetLocal)
		return nil

	case *ast.LiteralPrimary:
		b.loadConstant(literalToValue(p.Value), targetLocal)
		return nil

	default:
		return fmt.Errorf("unknown primary type %T", primary)
	}
}

func literalToValue(v interface{}) Value {
	switch x := v.(type) {
	case int64:
		return Number(x)
	case string:
		return NewString(x)
	case bool:
		return Boolean(x)
	default:
		return Null{}
	}
}
