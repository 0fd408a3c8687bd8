package ast

import "testing"

// These assignments are compile-time checks that every node satisfies its
// family's marker interface; if a node stops doing so, this file fails to
// compile rather than silently losing coverage.
var (
	_ Primary     = (*ParenPrimary)(nil)
	_ Primary     = (*ArrayLiteralPrimary)(nil)
	_ Primary     = (*UnaryOperatorPrimary)(nil)
	_ Primary     = (*IndexPrimary)(nil)
	_ Primary     = (*CallPrimary)(nil)
	_ Primary     = (*VariablePrimary)(nil)
	_ Primary     = (*LiteralPrimary)(nil)
	_ Expression  = (*PrimaryExpression)(nil)
	_ Expression  = (*BinaryOperatorExpression)(nil)
	_ Expression  = (*ShortCircuitExpression)(nil)
	_ Expression  = (*AssignExpression)(nil)
	_ Expression  = (*IndexAssignExpression)(nil)
	_ Statement   = (*LocalStatement)(nil)
	_ Statement   = (*ReturnStatement)(nil)
	_ Statement   = (*BreakStatement)(nil)
	_ Statement   = (*ContinueStatement)(nil)
	_ Statement   = (*IfStatement)(nil)
	_ Statement   = (*WhileStatement)(nil)
	_ Statement   = (*ExpressionStatement)(nil)
	_ Declaration = (*ImportDeclaration)(nil)
	_ Declaration = (*GlobalDeclaration)(nil)
	_ Declaration = (*FunctionDeclaration)(nil)
)

func TestProgramHoldsDeclarationsInOrder(t *testing.T) {
	program := &Program{
		Declarations: []Declaration{
			&GlobalDeclaration{Name: "a"},
			&GlobalDeclaration{Name: "b"},
		},
	}
	if len(program.Declarations) != 2 {
		t.Fatalf("expected 2 declarations, got %d", len(program.Declarations))
	}
	first := program.Declarations[0].(*GlobalDeclaration)
	if first.Name != "a" {
		t.Fatalf("expected first declaration to be 'a', got %q", first.Name)
	}
}

func TestFunctionDeclarationCarriesSource(t *testing.T) {
	fn := &FunctionDeclaration{
		Name:          "add",
		ArgumentNames: []string{"x", "y"},
		Body:          &Block{},
		Src:           Source{Filename: "main.em", Line: 3},
	}
	if fn.Src.Line != 3 || fn.Src.Filename != "main.em" {
		t.Fatalf("source not preserved: %+v", fn.Src)
	}
	if len(fn.ArgumentNames) != 2 {
		t.Fatalf("expected 2 arguments, got %d", len(fn.ArgumentNames))
	}
}
