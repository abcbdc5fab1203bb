// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package filter parses and applies row filter expressions proposed by a
// language model.
//
// The input is untrusted text. It is tokenized and parsed into an explicit
// AST of column/operator/literal comparisons joined by AND, OR and NOT;
// nothing is ever evaluated as code. Grammar:
//
//	expr       := orExpr
//	orExpr     := andExpr { ("OR" | "||") andExpr }
//	andExpr    := unary { ("AND" | "&&") unary }
//	unary      := "NOT" unary | "(" expr ")" | comparison
//	comparison := column op literal
//	column     := identifier | `quoted name`
//	op         := = | == | != | <> | < | <= | > | >= | CONTAINS
//	literal    := number | 'text' | "text" | NULL
package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// Op is a comparison operator.
type Op string

const (
	OpEq       Op = "="
	OpNe       Op = "!="
	OpLt       Op = "<"
	OpLe       Op = "<="
	OpGt       Op = ">"
	OpGe       Op = ">="
	OpContains Op = "CONTAINS"
)

// LiteralKind distinguishes literal types.
type LiteralKind uint8

const (
	LitNumber LiteralKind = iota
	LitString
	LitNull
)

// Literal is the right-hand side of a comparison.
type Literal struct {
	Kind LiteralKind
	Num  float64
	Str  string
}

func (l Literal) String() string {
	switch l.Kind {
	case LitNumber:
		return strconv.FormatFloat(l.Num, 'f', -1, 64)
	case LitNull:
		return "NULL"
	default:
		return "'" + strings.ReplaceAll(l.Str, "'", "''") + "'"
	}
}

// Expr is a node of a parsed filter.
type Expr interface {
	exprNode()
	String() string
}

// Comparison tests one column against a literal.
type Comparison struct {
	Column  string
	Op      Op
	Literal Literal
}

// And is true when both sides are true.
type And struct{ Left, Right Expr }

// Or is true when either side is true.
type Or struct{ Left, Right Expr }

// Not negates its operand.
type Not struct{ Inner Expr }

func (*Comparison) exprNode() {}
func (*And) exprNode()        {}
func (*Or) exprNode()         {}
func (*Not) exprNode()        {}

func (c *Comparison) String() string {
	return fmt.Sprintf("`%s` %s %s", strings.ReplaceAll(c.Column, "`", "``"), c.Op, c.Literal)
}
func (a *And) String() string { return "(" + a.Left.String() + " AND " + a.Right.String() + ")" }
func (o *Or) String() string  { return "(" + o.Left.String() + " OR " + o.Right.String() + ")" }
func (n *Not) String() string { return "NOT " + n.Inner.String() }

// Columns returns the distinct column names referenced by e, in first-use order.
func Columns(e Expr) []string {
	var out []string
	seen := map[string]bool{}
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case *Comparison:
			if !seen[n.Column] {
				seen[n.Column] = true
				out = append(out, n.Column)
			}
		case *And:
			walk(n.Left)
			walk(n.Right)
		case *Or:
			walk(n.Left)
			walk(n.Right)
		case *Not:
			walk(n.Inner)
		}
	}
	walk(e)
	return out
}
