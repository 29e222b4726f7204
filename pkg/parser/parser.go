// Package parser implements a recursive descent parser for Tiger
package parser

import (
	"strconv"

	"github.com/raymyers/tiger-cc/pkg/ast"
	"github.com/raymyers/tiger-cc/pkg/diag"
	"github.com/raymyers/tiger-cc/pkg/lexer"
)

// Precedence levels for binary operators (lowest to highest)
const (
	precLowest     = 0
	precOr         = 1 // |
	precAnd        = 2 // &
	precRelational = 3 // =, <>, <, <=, >, >= (non-associative)
	precAdditive   = 4 // +, -
	precMulti      = 5 // *, /
)

var precedences = map[lexer.TokenType]int{
	lexer.TokenPipe:      precOr,
	lexer.TokenAmpersand: precAnd,
	lexer.TokenEq:        precRelational,
	lexer.TokenNe:        precRelational,
	lexer.TokenLt:        precRelational,
	lexer.TokenLe:        precRelational,
	lexer.TokenGt:        precRelational,
	lexer.TokenGe:        precRelational,
	lexer.TokenPlus:      precAdditive,
	lexer.TokenMinus:     precAdditive,
	lexer.TokenStar:      precMulti,
	lexer.TokenSlash:     precMulti,
}

var binops = map[lexer.TokenType]ast.Binop{
	lexer.TokenPipe:      ast.LOr,
	lexer.TokenAmpersand: ast.LAnd,
	lexer.TokenEq:        ast.Eq,
	lexer.TokenNe:        ast.Neq,
	lexer.TokenLt:        ast.Lt,
	lexer.TokenLe:        ast.Le,
	lexer.TokenGt:        ast.Gt,
	lexer.TokenGe:        ast.Ge,
	lexer.TokenPlus:      ast.Add,
	lexer.TokenMinus:     ast.Sub,
	lexer.TokenStar:      ast.Mul,
	lexer.TokenSlash:     ast.Div,
}

// Parser parses Tiger source code into an AST
type Parser struct {
	l         *lexer.Lexer
	curToken  lexer.Token
	peekToken lexer.Token
	errors    []*diag.Error
}

// New creates a new Parser for the given lexer
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a complete program: one expression followed by EOF
func (p *Parser) Parse() (ast.Exp, []*diag.Error) {
	exp := p.parseExp()
	if !p.curTokenIs(lexer.TokenEOF) {
		p.addError("expected end of file, found %q", p.curToken.Literal)
	}
	errors := p.errors
	if lexErrors := p.l.Errors(); len(lexErrors) > 0 {
		errors = append(lexErrors, errors...)
	}
	return exp, errors
}

// Errors returns the syntactic diagnostics collected so far
func (p *Parser) Errors() []*diag.Error {
	return p.errors
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t lexer.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) pos() diag.Pos {
	return diag.Pos{Line: p.curToken.Line, Column: p.curToken.Column}
}

func (p *Parser) addError(format string, args ...any) {
	p.errors = append(p.errors, diag.Errorf(diag.Syntactic, p.pos(), format, args...))
}

// expect consumes the current token if it has the given type, otherwise
// records an error. Returns the consumed token.
func (p *Parser) expect(t lexer.TokenType) lexer.Token {
	tok := p.curToken
	if !p.curTokenIs(t) {
		p.addError("expected %q, found %q", t.String(), p.curToken.Literal)
		return tok
	}
	p.nextToken()
	return tok
}

// parseExp parses a full expression
func (p *Parser) parseExp() ast.Exp {
	return p.parseBinary(precLowest)
}

// parseBinary implements precedence climbing over binary operators.
// Relational operators are non-associative: chaining them without
// parentheses is a syntax error.
func (p *Parser) parseBinary(minPrec int) ast.Exp {
	lhs := p.parseUnary()
	for {
		prec, ok := precedences[p.curToken.Type]
		if !ok || prec < minPrec {
			return lhs
		}
		op := binops[p.curToken.Type]
		pos := p.pos()
		p.nextToken()
		rhs := p.parseBinary(prec + 1)
		lhs = &ast.BinExp{Lhs: lhs, Op: op, Rhs: rhs, Position: pos}

		if prec == precRelational {
			if nextPrec, ok := precedences[p.curToken.Type]; ok && nextPrec == precRelational {
				p.addError("comparison operators do not associate: %q after %q",
					p.curToken.Literal, op.String())
			}
		}
	}
}

func (p *Parser) parseUnary() ast.Exp {
	if p.curTokenIs(lexer.TokenMinus) {
		pos := p.pos()
		p.nextToken()
		return &ast.NegExp{Exp: p.parseUnary(), Position: pos}
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() ast.Exp {
	pos := p.pos()
	switch p.curToken.Type {
	case lexer.TokenNil:
		p.nextToken()
		return &ast.NilExp{Position: pos}
	case lexer.TokenInt:
		value, err := strconv.ParseInt(p.curToken.Literal, 10, 32)
		if err != nil {
			p.addError("integer literal %q out of range", p.curToken.Literal)
		}
		p.nextToken()
		return &ast.IntExp{Value: int32(value), Position: pos}
	case lexer.TokenString:
		value := p.curToken.Literal
		p.nextToken()
		return &ast.StrExp{Value: value, Position: pos}
	case lexer.TokenBreak:
		p.nextToken()
		return &ast.BreakExp{Position: pos}
	case lexer.TokenIf:
		return p.parseIf()
	case lexer.TokenWhile:
		return p.parseWhile()
	case lexer.TokenFor:
		return p.parseFor()
	case lexer.TokenLet:
		return p.parseLet()
	case lexer.TokenLParen:
		return p.parseSeq()
	case lexer.TokenIdent:
		return p.parseIdent()
	}
	p.addError("unexpected token %q", p.curToken.Literal)
	p.nextToken()
	return &ast.NilExp{Position: pos}
}

func (p *Parser) parseIf() ast.Exp {
	pos := p.pos()
	p.expect(lexer.TokenIf)
	guard := p.parseExp()
	p.expect(lexer.TokenThen)
	then := p.parseExp()
	var orElse ast.Exp
	if p.curTokenIs(lexer.TokenElse) {
		p.nextToken()
		orElse = p.parseExp()
	}
	return &ast.IfExp{Guard: guard, Then: then, Else: orElse, Position: pos}
}

func (p *Parser) parseWhile() ast.Exp {
	pos := p.pos()
	p.expect(lexer.TokenWhile)
	guard := p.parseExp()
	p.expect(lexer.TokenDo)
	body := p.parseExp()
	return &ast.WhileExp{Guard: guard, Body: body, Position: pos}
}

func (p *Parser) parseFor() ast.Exp {
	pos := p.pos()
	p.expect(lexer.TokenFor)
	name := p.expect(lexer.TokenIdent).Literal
	p.expect(lexer.TokenAssign)
	lo := p.parseExp()
	p.expect(lexer.TokenTo)
	hi := p.parseExp()
	p.expect(lexer.TokenDo)
	body := p.parseExp()
	return &ast.ForExp{Name: name, Lo: lo, Hi: hi, Body: body, Position: pos}
}

func (p *Parser) parseLet() ast.Exp {
	pos := p.pos()
	p.expect(lexer.TokenLet)
	decs := p.parseDecs()
	p.expect(lexer.TokenIn)
	body := p.parseExpSeq(pos)
	p.expect(lexer.TokenEnd)
	return &ast.LetExp{Decs: decs, Body: body, Position: pos}
}

// parseSeq parses a parenthesized expression sequence. A single
// expression stays bare; zero or several become a SeqExp.
func (p *Parser) parseSeq() ast.Exp {
	pos := p.pos()
	p.expect(lexer.TokenLParen)
	if p.curTokenIs(lexer.TokenRParen) {
		p.nextToken()
		return &ast.SeqExp{Position: pos}
	}
	exp := p.parseExpSeq(pos)
	p.expect(lexer.TokenRParen)
	return exp
}

// parseExpSeq parses exp (; exp)*
func (p *Parser) parseExpSeq(pos diag.Pos) ast.Exp {
	first := p.parseExp()
	if !p.curTokenIs(lexer.TokenSemicolon) {
		return first
	}
	exps := []ast.Exp{first}
	for p.curTokenIs(lexer.TokenSemicolon) {
		p.nextToken()
		exps = append(exps, p.parseExp())
	}
	return &ast.SeqExp{Exps: exps, Position: pos}
}

// parseIdent parses the expressions that start with an identifier: calls,
// record and array constructors, lvalues, and assignments.
func (p *Parser) parseIdent() ast.Exp {
	pos := p.pos()
	name := p.expect(lexer.TokenIdent).Literal

	switch p.curToken.Type {
	case lexer.TokenLParen:
		return p.parseCall(name, pos)
	case lexer.TokenLBrace:
		return p.parseRecord(name, pos)
	case lexer.TokenLBracket:
		// Either "id[size] of init" (array constructor) or a subscripted
		// lvalue; only the trailing "of" distinguishes them.
		p.nextToken()
		index := p.parseExp()
		p.expect(lexer.TokenRBracket)
		if p.curTokenIs(lexer.TokenOf) {
			p.nextToken()
			init := p.parseExp()
			return &ast.ArrExp{Type: name, Size: index, Init: init, Position: pos}
		}
		v := p.parseVarSuffix(&ast.IndexVar{
			Arr:      &ast.SimpleVar{Name: name, Position: pos},
			Index:    index,
			Position: pos,
		})
		return p.finishVar(v, pos)
	}
	v := p.parseVarSuffix(&ast.SimpleVar{Name: name, Position: pos})
	return p.finishVar(v, pos)
}

func (p *Parser) parseCall(name string, pos diag.Pos) ast.Exp {
	p.expect(lexer.TokenLParen)
	var args []ast.Exp
	if !p.curTokenIs(lexer.TokenRParen) {
		args = append(args, p.parseExp())
		for p.curTokenIs(lexer.TokenComma) {
			p.nextToken()
			args = append(args, p.parseExp())
		}
	}
	p.expect(lexer.TokenRParen)
	return &ast.CallExp{Func: name, Args: args, Position: pos}
}

func (p *Parser) parseRecord(name string, pos diag.Pos) ast.Exp {
	p.expect(lexer.TokenLBrace)
	var fields []*ast.Field
	if !p.curTokenIs(lexer.TokenRBrace) {
		fields = append(fields, p.parseField())
		for p.curTokenIs(lexer.TokenComma) {
			p.nextToken()
			fields = append(fields, p.parseField())
		}
	}
	p.expect(lexer.TokenRBrace)
	return &ast.RecExp{Type: name, Fields: fields, Position: pos}
}

func (p *Parser) parseField() *ast.Field {
	pos := p.pos()
	name := p.expect(lexer.TokenIdent).Literal
	p.expect(lexer.TokenEq)
	return &ast.Field{Name: name, Exp: p.parseExp(), Position: pos}
}

// parseVarSuffix extends an lvalue with .field and [index] selectors.
func (p *Parser) parseVarSuffix(v ast.Var) ast.Var {
	for {
		switch p.curToken.Type {
		case lexer.TokenDot:
			pos := p.pos()
			p.nextToken()
			field := p.expect(lexer.TokenIdent).Literal
			v = &ast.FieldVar{Rec: v, Field: field, Position: pos}
		case lexer.TokenLBracket:
			pos := p.pos()
			p.nextToken()
			index := p.parseExp()
			p.expect(lexer.TokenRBracket)
			v = &ast.IndexVar{Arr: v, Index: index, Position: pos}
		default:
			return v
		}
	}
}

// finishVar turns a parsed lvalue into a read or, on :=, an assignment.
func (p *Parser) finishVar(v ast.Var, pos diag.Pos) ast.Exp {
	if p.curTokenIs(lexer.TokenAssign) {
		p.nextToken()
		return &ast.AssignExp{Var: v, Exp: p.parseExp(), Position: pos}
	}
	return &ast.VarExp{Var: v, Position: pos}
}

// parseDecs parses a declaration sequence, batching adjacent function
// declarations and adjacent type declarations into mutually-recursive
// groups.
func (p *Parser) parseDecs() []ast.Dec {
	var decs []ast.Dec
	for {
		switch p.curToken.Type {
		case lexer.TokenVar:
			decs = append(decs, p.parseVarDec())
		case lexer.TokenFunction:
			pos := p.pos()
			batch := &ast.FunDecs{Position: pos}
			for p.curTokenIs(lexer.TokenFunction) {
				batch.Funs = append(batch.Funs, p.parseFunDec())
			}
			decs = append(decs, batch)
		case lexer.TokenType_:
			pos := p.pos()
			batch := &ast.TypeDecs{Position: pos}
			for p.curTokenIs(lexer.TokenType_) {
				batch.Types = append(batch.Types, p.parseTypeDec())
			}
			decs = append(decs, batch)
		default:
			return decs
		}
	}
}

func (p *Parser) parseVarDec() *ast.VarDec {
	pos := p.pos()
	p.expect(lexer.TokenVar)
	name := p.expect(lexer.TokenIdent).Literal
	ty := ""
	if p.curTokenIs(lexer.TokenColon) {
		p.nextToken()
		ty = p.expect(lexer.TokenIdent).Literal
	}
	p.expect(lexer.TokenAssign)
	init := p.parseExp()
	return &ast.VarDec{Name: name, Type: ty, Init: init, Position: pos}
}

func (p *Parser) parseFunDec() *ast.FunDec {
	pos := p.pos()
	p.expect(lexer.TokenFunction)
	name := p.expect(lexer.TokenIdent).Literal
	p.expect(lexer.TokenLParen)
	args := p.parseFieldDecs()
	p.expect(lexer.TokenRParen)
	result := ""
	if p.curTokenIs(lexer.TokenColon) {
		p.nextToken()
		result = p.expect(lexer.TokenIdent).Literal
	}
	p.expect(lexer.TokenEq)
	body := p.parseExp()
	return &ast.FunDec{Name: name, Args: args, Result: result, Body: body, Position: pos}
}

func (p *Parser) parseTypeDec() *ast.TypeDec {
	pos := p.pos()
	p.expect(lexer.TokenType_)
	name := p.expect(lexer.TokenIdent).Literal
	p.expect(lexer.TokenEq)
	return &ast.TypeDec{Name: name, Type: p.parseTy(), Position: pos}
}

func (p *Parser) parseTy() ast.Ty {
	pos := p.pos()
	switch p.curToken.Type {
	case lexer.TokenArray:
		p.nextToken()
		p.expect(lexer.TokenOf)
		elem := p.expect(lexer.TokenIdent).Literal
		return &ast.ArrayTy{Elem: elem, Position: pos}
	case lexer.TokenLBrace:
		p.nextToken()
		fields := p.parseFieldDecs()
		p.expect(lexer.TokenRBrace)
		return &ast.RecordTy{Fields: fields, Position: pos}
	case lexer.TokenIdent:
		name := p.curToken.Literal
		p.nextToken()
		return &ast.NameTy{Name: name, Position: pos}
	}
	p.addError("expected type, found %q", p.curToken.Literal)
	p.nextToken()
	return &ast.NameTy{Name: "int", Position: pos}
}

// parseFieldDecs parses (id : id (, id : id)*)?
func (p *Parser) parseFieldDecs() []*ast.FieldDec {
	var fields []*ast.FieldDec
	if !p.curTokenIs(lexer.TokenIdent) {
		return fields
	}
	fields = append(fields, p.parseFieldDec())
	for p.curTokenIs(lexer.TokenComma) {
		p.nextToken()
		fields = append(fields, p.parseFieldDec())
	}
	return fields
}

func (p *Parser) parseFieldDec() *ast.FieldDec {
	pos := p.pos()
	name := p.expect(lexer.TokenIdent).Literal
	p.expect(lexer.TokenColon)
	ty := p.expect(lexer.TokenIdent).Literal
	return &ast.FieldDec{Name: name, Type: ty, Position: pos}
}
