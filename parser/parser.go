// Package parser implements a recursive-descent parser from tokens to the
// ast package's syntax tree, following the same primary -> expression ->
// statement -> declaration layering as the lexer's grammar.
package parser

import (
	"fmt"

	"embers/ast"
	"embers/lexer"
)

// ParseError is returned for any grammatical error encountered while
// building the syntax tree.
type ParseError struct {
	Filename string
	Line     int
	Message  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s:%d: %s", e.Filename, e.Line, e.Message)
}

// Parser consumes tokens from a lexer and builds a Program.
type Parser struct {
	lex *lexer.Lexer
}

// New creates a Parser reading from lex.
func New(lex *lexer.Lexer) *Parser {
	return &Parser{lex: lex}
}

func (p *Parser) errf(line int, format string, args ...interface{}) error {
	return &ParseError{Filename: p.lex.Filename(), Line: line, Message: fmt.Sprintf(format, args...)}
}

func (p *Parser) peek() (lexer.Token, error) { return p.lex.Peek() }
func (p *Parser) advance() (lexer.Token, error) { return p.lex.Next() }

// guard consumes and returns true if the next token has the given kind.
func (p *Parser) guard(kind lexer.TokenKind) (bool, error) {
	tok, err := p.peek()
	if err != nil {
		return false, err
	}
	if tok.Kind == kind {
		_, err := p.advance()
		return true, err
	}
	return false, nil
}

func (p *Parser) expectIdentifier(whence string) (string, error) {
	tok, err := p.advance()
	if err != nil {
		return "", err
	}
	if tok.Kind != lexer.Identifier {
		return "", p.errf(tok.Line, "expected identifier %s", whence)
	}
	return tok.Identifier, nil
}

// ParseProgram parses an entire source file into a Program. Each
// declaration is returned in source order.
func ParseProgram(lex *lexer.Lexer) (*ast.Program, error) {
	p := New(lex)
	program := &ast.Program{}

	for {
		decl, err := p.nextDeclaration()
		if err != nil {
			return nil, err
		}
		if decl == nil {
			break
		}
		program.Declarations = append(program.Declarations, decl)
	}

	return program, nil
}

func (p *Parser) nextDeclaration() (ast.Declaration, error) {
	tok, err := p.advance()
	if err != nil {
		return nil, err
	}

	src := ast.Source{Filename: p.lex.Filename(), Line: tok.Line}

	switch tok.Kind {
	case lexer.Undefined:
		return nil, nil

	case lexer.Global:
		name, err := p.expectIdentifier("global name")
		if err != nil {
			return nil, err
		}
		if ok, err := p.guard(lexer.Semicolon); err != nil {
			return nil, err
		} else if !ok {
			return nil, p.errf(tok.Line, "expected `;` after `global` declaration")
		}
		return &ast.GlobalDeclaration{Name: name, Src: src}, nil

	case lexer.Import:
		pathTok, err := p.advance()
		if err != nil {
			return nil, err
		}
		path, ok := pathTok.LiteralValue.(string)
		if pathTok.Kind != lexer.Literal || !ok {
			return nil, p.errf(tok.Line, "`import` only takes strings")
		}
		if done, err := p.guard(lexer.Semicolon); err != nil {
			return nil, err
		} else if !done {
			return nil, p.errf(tok.Line, "expected `;` after `import` declaration")
		}
		return &ast.ImportDeclaration{Path: path, Src: src}, nil

	case lexer.Function:
		name, err := p.expectIdentifier("function name")
		if err != nil {
			return nil, err
		}
		if done, err := p.guard(lexer.LParen); err != nil {
			return nil, err
		} else if !done {
			return nil, p.errf(tok.Line, "expected `(` after function name")
		}

		var args []string
		for {
			if done, err := p.guard(lexer.RParen); err != nil {
				return nil, err
			} else if done {
				break
			}
			arg, err := p.expectIdentifier("function argument")
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			if done, err := p.guard(lexer.Comma); err != nil {
				return nil, err
			} else if !done {
				if done, err := p.guard(lexer.RParen); err != nil {
					return nil, err
				} else if !done {
					return nil, p.errf(tok.Line, "expected `,` or `)` after argument name")
				}
				break
			}
		}

		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		if body == nil {
			return nil, p.errf(tok.Line, "expected body for function %s", name)
		}

		return &ast.FunctionDeclaration{Name: name, ArgumentNames: args, Body: body, Src: src}, nil

	default:
		return nil, p.errf(tok.Line, "unexpected token kind %d", tok.Kind)
	}
}

func (p *Parser) parseBlock() (*ast.Block, error) {
	if done, err := p.guard(lexer.LBrace); err != nil {
		return nil, err
	} else if !done {
		return nil, nil
	}

	block := &ast.Block{}
	for {
		if done, err := p.guard(lexer.RBrace); err != nil {
			return nil, err
		} else if done {
			break
		}

		for {
			if done, err := p.guard(lexer.Semicolon); err != nil {
				return nil, err
			} else if !done {
				break
			}
		}

		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == lexer.RBrace {
			_, err := p.advance()
			return block, err
		}

		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Statements = append(block.Statements, stmt)
	}

	return block, nil
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	tok, err := p.advance()
	if err != nil {
		return nil, err
	}

	switch tok.Kind {
	case lexer.Local:
		name, err := p.expectIdentifier("local name")
		if err != nil {
			return nil, err
		}
		var init ast.Expression
		if ok, err := p.guard(lexer.Assign); err != nil {
			return nil, err
		} else if ok {
			init, err = p.parseExpression()
			if err != nil {
				return nil, err
			}
			if init == nil {
				return nil, p.errf(tok.Line, "expected expression after `=` in local declaration")
			}
		}
		if done, err := p.guard(lexer.Semicolon); err != nil {
			return nil, err
		} else if !done {
			return nil, p.errf(tok.Line, "expected `;` after `local`")
		}
		return &ast.LocalStatement{Name: name, Initializer: init}, nil

	case lexer.Return:
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if done, err := p.guard(lexer.Semicolon); err != nil {
			return nil, err
		} else if !done {
			return nil, p.errf(tok.Line, "expected `;` after `return`")
		}
		return &ast.ReturnStatement{Expression: expr}, nil

	case lexer.Continue:
		if done, err := p.guard(lexer.Semicolon); err != nil {
			return nil, err
		} else if !done {
			return nil, p.errf(tok.Line, "expected `;` after `continue`")
		}
		return &ast.ContinueStatement{}, nil

	case lexer.Break:
		if done, err := p.guard(lexer.Semicolon); err != nil {
			return nil, err
		} else if !done {
			return nil, p.errf(tok.Line, "expected `;` after `break`")
		}
		return &ast.BreakStatement{}, nil

	case lexer.While:
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if cond == nil {
			return nil, p.errf(tok.Line, "expected condition for `while`")
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		if body == nil {
			return nil, p.errf(tok.Line, "expected body for `while`")
		}
		return &ast.WhileStatement{Condition: cond, Body: body}, nil

	case lexer.If:
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if cond == nil {
			return nil, p.errf(tok.Line, "expected condition for `if`")
		}
		ifTrue, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		if ifTrue == nil {
			return nil, p.errf(tok.Line, "expected body for `if`")
		}

		var ifFalse *ast.Block
		if ok, err := p.guard(lexer.Else); err != nil {
			return nil, err
		} else if ok {
			ifFalse, err = p.parseBlock()
			if err != nil {
				return nil, err
			}
			if ifFalse == nil {
				return nil, p.errf(tok.Line, "expected body for `else`")
			}
		}
		return &ast.IfStatement{Condition: cond, IfTrue: ifTrue, IfFalse: ifFalse}, nil

	default:
		p.unadvance(tok)
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if expr == nil {
			return nil, p.errf(tok.Line, "expected a statement")
		}
		if done, err := p.guard(lexer.Semicolon); err != nil {
			return nil, err
		} else if !done {
			return nil, p.errf(tok.Line, "expected `;` after expression")
		}
		return &ast.ExpressionStatement{Expression: expr}, nil
	}
}

// unadvance pushes a single token back; only ever one is outstanding
// because every call site immediately re-peeks.
func (p *Parser) unadvance(tok lexer.Token) {
	p.lex.Unread(tok)
}

func (p *Parser) parseExpression() (ast.Expression, error) {
	primary, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if primary == nil {
		return nil, nil
	}

	tok, err := p.advance()
	if err != nil {
		return nil, err
	}

	switch tok.Kind {
	case lexer.AddAssign, lexer.SubtractAssign, lexer.MultiplyAssign, lexer.DivideAssign, lexer.ModuloAssign, lexer.Assign:
		rhs, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if rhs == nil {
			return nil, p.errf(tok.Line, "expected an expression after `=`")
		}
		op := binaryOpFromAssignToken(tok.Kind)

		switch target := primary.(type) {
		case *ast.VariablePrimary:
			return &ast.AssignExpression{Name: target.Name, Operator: op, Value: rhs}, nil
		case *ast.IndexPrimary:
			return &ast.IndexAssignExpression{Source: target.Source, Index: target.Index, Operator: op, Value: rhs}, nil
		default:
			return nil, p.errf(tok.Line, "you may only assign to identifiers and array indexes")
		}

	case lexer.AndAnd, lexer.OrOr:
		rhs, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if rhs == nil {
			return nil, p.errf(tok.Line, "expected RHS after `&&` / `||`")
		}
		op := ast.ShortCircuitAnd
		if tok.Kind == lexer.OrOr {
			op = ast.ShortCircuitOr
		}
		return &ast.ShortCircuitExpression{Operator: op, LHS: primary, RHS: rhs}, nil

	case lexer.Add, lexer.Subtract, lexer.Multiply, lexer.Divide, lexer.Modulo,
		lexer.LessThan, lexer.GreaterThan, lexer.LessThanOrEqual, lexer.GreaterThanOrEqual,
		lexer.Equal, lexer.NotEqual:
		rhs, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if rhs == nil {
			return nil, p.errf(tok.Line, "expected RHS after binary operator")
		}
		return &ast.BinaryOperatorExpression{Operator: binaryOpFromToken(tok.Kind), LHS: primary, RHS: rhs}, nil

	default:
		p.unadvance(tok)
		return &ast.PrimaryExpression{Primary: primary}, nil
	}
}

func binaryOpFromAssignToken(kind lexer.TokenKind) ast.BinaryOp {
	switch kind {
	case lexer.AddAssign:
		return ast.BinaryOpAdd
	case lexer.SubtractAssign:
		return ast.BinaryOpSubtract
	case lexer.MultiplyAssign:
		return ast.BinaryOpMultiply
	case lexer.DivideAssign:
		return ast.BinaryOpDivide
	case lexer.ModuloAssign:
		return ast.BinaryOpModulo
	default: // lexer.Assign
		return ast.BinaryOpUndef
	}
}

func binaryOpFromToken(kind lexer.TokenKind) ast.BinaryOp {
	switch kind {
	case lexer.Add:
		return ast.BinaryOpAdd
	case lexer.Subtract:
		return ast.BinaryOpSubtract
	case lexer.Multiply:
		return ast.BinaryOpMultiply
	case lexer.Divide:
		return ast.BinaryOpDivide
	case lexer.Modulo:
		return ast.BinaryOpModulo
	case lexer.Equal:
		return ast.BinaryOpEqual
	case lexer.NotEqual:
		return ast.BinaryOpNotEqual
	case lexer.LessThan:
		return ast.BinaryOpLessThan
	case lexer.LessThanOrEqual:
		return ast.BinaryOpLessThanOrEqual
	case lexer.GreaterThan:
		return ast.BinaryOpGreaterThan
	case lexer.GreaterThanOrEqual:
		return ast.BinaryOpGreaterThanOrEqual
	default:
		panic(fmt.Sprintf("invalid operator kind %d", kind))
	}
}

func (p *Parser) parsePrimary() (ast.Primary, error) {
	tok, err := p.advance()
	if err != nil {
		return nil, err
	}

	var primary ast.Primary

	switch tok.Kind {
	case lexer.LParen:
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if inner == nil {
			return nil, p.errf(tok.Line, "expected an expression after `(`")
		}
		if done, err := p.guard(lexer.RParen); err != nil {
			return nil, err
		} else if !done {
			return nil, p.errf(tok.Line, "expected `)` after expression within `(...)`")
		}
		primary = &ast.ParenPrimary{Expression: inner}

	case lexer.LBracket:
		var elements []ast.Expression
		for {
			if done, err := p.guard(lexer.RBracket); err != nil {
				return nil, err
			} else if done {
				break
			}
			elem, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if elem == nil {
				return nil, p.errf(tok.Line, "expected an expression within array literal")
			}
			elements = append(elements, elem)

			if done, err := p.guard(lexer.Comma); err != nil {
				return nil, err
			} else if !done {
				if done, err := p.guard(lexer.RBracket); err != nil {
					return nil, err
				} else if !done {
					return nil, p.errf(tok.Line, "expected either a `,` or `]` after array element literal")
				}
				break
			}
		}
		primary = &ast.ArrayLiteralPrimary{Elements: elements}

	case lexer.Subtract, lexer.Not:
		operand, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		if operand == nil {
			return nil, p.errf(tok.Line, "expected a primary after `-` / `!`")
		}
		op := ast.UnaryOpNegate
		if tok.Kind == lexer.Not {
			op = ast.UnaryOpNot
		}
		primary = &ast.UnaryOperatorPrimary{Operator: op, Operand: operand}

	case lexer.Identifier:
		primary = &ast.VariablePrimary{Name: tok.Identifier}

	case lexer.Literal:
		primary = &ast.LiteralPrimary{Value: tok.LiteralValue}

	default:
		p.unadvance(tok)
		return nil, nil
	}

	for {
		tok, err := p.advance()
		if err != nil {
			return nil, err
		}

		switch tok.Kind {
		case lexer.LBracket:
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if idx == nil {
				return nil, p.errf(tok.Line, "expected an expression for indexing")
			}
			if done, err := p.guard(lexer.RBracket); err != nil {
				return nil, err
			} else if !done {
				return nil, p.errf(tok.Line, "expected a `]` after indexing")
			}
			primary = &ast.IndexPrimary{Source: primary, Index: idx}

		case lexer.LParen:
			var args []ast.Expression
			for {
				if done, err := p.guard(lexer.RParen); err != nil {
					return nil, err
				} else if done {
					break
				}
				arg, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				if arg == nil {
					return nil, p.errf(tok.Line, "expected an expression for call arguments")
				}
				args = append(args, arg)

				if done, err := p.guard(lexer.Comma); err != nil {
					return nil, err
				} else if !done {
					if done, err := p.guard(lexer.RParen); err != nil {
						return nil, err
					} else if !done {
						return nil, p.errf(tok.Line, "expected either a `,` or `)` after call argument")
					}
					break
				}
			}
			primary = &ast.CallPrimary{Function: primary, Arguments: args}

		default:
			p.unadvance(tok)
			return primary, nil
		}
	}
}
