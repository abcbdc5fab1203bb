// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

const (
	// MaxSourceLength is the longest filter source Parse accepts.
	MaxSourceLength = 500

	// MaxComparisons bounds the number of comparisons in one filter.
	MaxComparisons = 32

	// MaxDepth bounds parenthesis and NOT nesting.
	MaxDepth = 16
)

var (
	// ErrSyntax is returned for malformed filter text.
	ErrSyntax = errors.New("filter: syntax error")

	// ErrTooComplex is returned when a filter exceeds the size bounds.
	ErrTooComplex = errors.New("filter: expression too complex")
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokQuotedIdent
	tokString
	tokNumber
	tokOp
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokNot
	tokContains
	tokNull
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lex splits src into tokens. Keywords are case-insensitive.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == '&' || c == '|':
			if i+1 >= len(src) || src[i+1] != c {
				return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, c, i)
			}
			kind := tokAnd
			if c == '|' {
				kind = tokOr
			}
			toks = append(toks, token{kind, src[i : i+2], i})
			i += 2
		case strings.ContainsRune("=!<>", rune(c)):
			op, n := lexOperator(src[i:])
			if n == 0 {
				return nil, fmt.Errorf("%w: bad operator at %d", ErrSyntax, i)
			}
			toks = append(toks, token{tokOp, string(op), i})
			i += n
		case c == '\'' || c == '"' || c == '\x60':
			text, n, err := lexQuoted(src[i:], c)
			if err != nil {
				return nil, fmt.Errorf("%w: %v at %d", ErrSyntax, err, i)
			}
			kind := tokString
			if c == '\x60' {
				kind = tokQuotedIdent
			}
			toks = append(toks, token{kind, text, i})
			i += n
		case c == '-' || c == '.' || (c >= '0' && c <= '9'):
			j := i + 1
			for j < len(src) && (src[j] == '.' || src[j] == 'e' || src[j] == 'E' ||
				(src[j] >= '0' && src[j] <= '9') ||
				((src[j] == '-' || src[j] == '+') && (src[j-1] == 'e' || src[j-1] == 'E'))) {
				j++
			}
			toks = append(toks, token{tokNumber, src[i:j], i})
			i = j
		case c == '_' || unicode.IsLetter(rune(c)) || c >= 0x80:
			j := i
			for j < len(src) && (src[j] == '_' || src[j] >= 0x80 ||
				unicode.IsLetter(rune(src[j])) || unicode.IsDigit(rune(src[j]))) {
				j++
			}
			word := src[i:j]
			toks = append(toks, token{keywordKind(word), word, i})
			i = j
		default:
			return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, c, i)
		}
	}
	return append(toks, token{tokEOF, "", len(src)}), nil
}

func lexOperator(s string) (Op, int) {
	if len(s) >= 2 {
		switch s[:2] {
		case "==":
			return OpEq, 2
		case "!=", "<>":
			return OpNe, 2
		case "<=":
			return OpLe, 2
		case ">=":
			return OpGe, 2
		}
	}
	switch s[0] {
	case '=':
		return OpEq, 1
	case '<':
		return OpLt, 1
	case '>':
		return OpGt, 1
	}
	return "", 0
}

// lexQuoted reads a quoted run. A doubled quote inside is an escaped quote.
func lexQuoted(s string, q byte) (string, int, error) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		if s[i] != q {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == q {
			b.WriteByte(q)
			i++
			continue
		}
		return b.String(), i + 1, nil
	}
	return "", 0, errors.New("unterminated quote")
}

func keywordKind(word string) tokenKind {
	switch strings.ToUpper(word) {
	case "AND":
		return tokAnd
	case "OR":
		return tokOr
	case "NOT":
		return tokNot
	case "CONTAINS", "LIKE":
		return tokContains
	case "NULL", "NONE", "NAN":
		return tokNull
	default:
		return tokIdent
	}
}

type parser struct {
	toks        []token
	pos         int
	depth       int
	comparisons int
}

// Parse turns filter source into an expression tree.
//
// Inputs:
//   - src: Filter text, e.g. "city = 'Boston' AND `total sales` > 100".
//
// Outputs:
//   - Expr: The parsed expression.
//   - error: Wraps ErrSyntax or ErrTooComplex.
func Parse(src string) (Expr, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("%w: empty filter", ErrSyntax)
	}
	if len(src) > MaxSourceLength {
		return nil, fmt.Errorf("%w: %d characters exceeds %d", ErrTooComplex, len(src), MaxSourceLength)
	}

	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, t.text, t.pos)
	}
	return expr, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > MaxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrTooComplex, MaxDepth)
	}

	switch t := p.peek(); t.kind {
	case tokNot:
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Not{Inner: inner}, nil
	case tokLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, fmt.Errorf("%w: expected ')' at %d", ErrSyntax, closing.pos)
		}
		return inner, nil
	default:
		return p.parseComparison()
	}
}

func (p *parser) parseComparison() (Expr, error) {
	col := p.next()
	if col.kind != tokIdent && col.kind != tokQuotedIdent {
		return nil, fmt.Errorf("%w: expected column name at %d, got %q", ErrSyntax, col.pos, col.text)
	}
	if strings.TrimSpace(col.text) == "" {
		return nil, fmt.Errorf("%w: empty column name at %d", ErrSyntax, col.pos)
	}

	var op Op
	switch t := p.next(); t.kind {
	case tokOp:
		op = Op(t.text)
	case tokContains:
		op = OpContains
	default:
		return nil, fmt.Errorf("%w: expected operator after %q at %d", ErrSyntax, col.text, t.pos)
	}

	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	if lit.Kind == LitNull && op != OpEq && op != OpNe {
		return nil, fmt.Errorf("%w: NULL only supports = and !=", ErrSyntax)
	}

	p.comparisons++
	if p.comparisons > MaxComparisons {
		return nil, fmt.Errorf("%w: more than %d comparisons", ErrTooComplex, MaxComparisons)
	}
	return &Comparison{Column: col.text, Op: op, Literal: lit}, nil
}

func (p *parser) parseLiteral() (Literal, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return Literal{}, fmt.Errorf("%w: bad number %q at %d", ErrSyntax, t.text, t.pos)
		}
		return Literal{Kind: LitNumber, Num: f}, nil
	case tokString:
		return Literal{Kind: LitString, Str: t.text}, nil
	case tokNull:
		return Literal{Kind: LitNull}, nil
	default:
		return Literal{}, fmt.Errorf("%w: expected literal at %d, got %q", ErrSyntax, t.pos, t.text)
	}
}
