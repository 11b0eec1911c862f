// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package filter

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/go-geospatial/featureserv/apierr"
)

// ParseCQL parses the basic cql2-text comparison subset:
//
//	expr       = or
//	or         = and { "OR" and }
//	and        = unary { "AND" unary }
//	unary      = "NOT" unary | "(" expr ")" | comparison
//	comparison = property op value | property "LIKE" string
//	op         = "=" | "<>" | "<" | "<=" | ">" | ">="
//	value      = number | string | "TRUE" | "FALSE"
//
// Keywords are case-insensitive. Strings are single-quoted with doubled
// quotes as the escape.
func ParseCQL(input string) (Predicate, error) {
	tokens, err := lexCQL(input)
	if err != nil {
		return nil, err
	}
	p := &cqlParser{tokens: tokens}
	pred, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, apierr.Newf(apierr.KindInvalidArgument,
			"unexpected token '%s' in filter", p.peek().text)
	}
	return pred, nil
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokNumber
	tokOp
	tokLParen
	tokRParen
	tokKeyword
)

type cqlToken struct {
	kind tokenKind
	text string
}

var cqlKeywords = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "LIKE": true, "TRUE": true, "FALSE": true,
}

func lexCQL(input string) ([]cqlToken, error) {
	tokens := make([]cqlToken, 0, 16)
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, cqlToken{kind: tokLParen, text: "("})
			i++
		case r == ')':
			tokens = append(tokens, cqlToken{kind: tokRParen, text: ")"})
			i++
		case r == '\'':
			text, next, err := lexString(runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, cqlToken{kind: tokString, text: text})
			i = next
		case r == '=':
			tokens = append(tokens, cqlToken{kind: tokOp, text: "="})
			i++
		case r == '<' || r == '>':
			op := string(r)
			if i+1 < len(runes) && (runes[i+1] == '=' || (r == '<' && runes[i+1] == '>')) {
				op += string(runes[i+1])
				i++
			}
			tokens = append(tokens, cqlToken{kind: tokOp, text: op})
			i++
		case unicode.IsDigit(r) || r == '-' || r == '+':
			start := i
			i++
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.' || runes[i] == 'e' || runes[i] == 'E' || runes[i] == '-' || runes[i] == '+') {
				// sign runes only valid directly after an exponent marker
				if (runes[i] == '-' || runes[i] == '+') && !(runes[i-1] == 'e' || runes[i-1] == 'E') {
					break
				}
				i++
			}
			tokens = append(tokens, cqlToken{kind: tokNumber, text: string(runes[start:i])})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_' || runes[i] == '.' || runes[i] == ':') {
				i++
			}
			text := string(runes[start:i])
			if cqlKeywords[strings.ToUpper(text)] {
				tokens = append(tokens, cqlToken{kind: tokKeyword, text: strings.ToUpper(text)})
			} else {
				tokens = append(tokens, cqlToken{kind: tokIdent, text: text})
			}
		default:
			return nil, apierr.Newf(apierr.KindInvalidArgument,
				"unexpected character '%c' in filter", r)
		}
	}
	return tokens, nil
}

func lexString(runes []rune, start int) (string, int, error) {
	var sb strings.Builder
	i := start + 1
	for i < len(runes) {
		if runes[i] == '\'' {
			if i+1 < len(runes) && runes[i+1] == '\'' {
				sb.WriteRune('\'')
				i += 2
				continue
			}
			return sb.String(), i + 1, nil
		}
		sb.WriteRune(runes[i])
		i++
	}
	return "", 0, apierr.New(apierr.KindInvalidArgument, "unterminated string in filter")
}

type cqlParser struct {
	tokens []cqlToken
	pos    int
}

func (p *cqlParser) atEnd() bool { return p.pos >= len(p.tokens) }

func (p *cqlParser) peek() cqlToken {
	if p.atEnd() {
		return cqlToken{}
	}
	return p.tokens[p.pos]
}

func (p *cqlParser) accept(kind tokenKind, text string) bool {
	if !p.atEnd() && p.tokens[p.pos].kind == kind && p.tokens[p.pos].text == text {
		p.pos++
		return true
	}
	return false
}

func (p *cqlParser) parseOr() (Predicate, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	preds := []Predicate{left}
	for p.accept(tokKeyword, "OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		preds = append(preds, right)
	}
	if len(preds) == 1 {
		return preds[0], nil
	}
	return &Or{Preds: preds}, nil
}

func (p *cqlParser) parseAnd() (Predicate, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	preds := []Predicate{left}
	for p.accept(tokKeyword, "AND") {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		preds = append(preds, right)
	}
	if len(preds) == 1 {
		return preds[0], nil
	}
	return &And{Preds: preds}, nil
}

func (p *cqlParser) parseUnary() (Predicate, error) {
	if p.accept(tokKeyword, "NOT") {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Not{Pred: inner}, nil
	}
	if p.accept(tokLParen, "(") {
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.accept(tokRParen, ")") {
			return nil, apierr.New(apierr.KindInvalidArgument, "missing ')' in filter")
		}
		return inner, nil
	}
	return p.parseComparison()
}

func (p *cqlParser) parseComparison() (Predicate, error) {
	if p.atEnd() || p.peek().kind != tokIdent {
		return nil, apierr.Newf(apierr.KindInvalidArgument,
			"expected property name in filter, got '%s'", p.peek().text)
	}
	property := p.peek().text
	p.pos++

	if p.accept(tokKeyword, "LIKE") {
		if p.atEnd() || p.peek().kind != tokString {
			return nil, apierr.New(apierr.KindInvalidArgument, "LIKE requires a string pattern")
		}
		pattern := p.peek().text
		p.pos++
		return &Compare{Op: OpLike, Property: property, Value: pattern}, nil
	}

	if p.atEnd() || p.peek().kind != tokOp {
		return nil, apierr.Newf(apierr.KindInvalidArgument,
			"expected comparison operator after '%s'", property)
	}
	op := Op(p.peek().text)
	p.pos++

	value, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return &Compare{Op: op, Property: property, Value: value}, nil
}

func (p *cqlParser) parseValue() (interface{}, error) {
	tok := p.peek()
	switch {
	case tok.kind == tokString:
		p.pos++
		return tok.text, nil
	case tok.kind == tokNumber:
		p.pos++
		num, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, apierr.Newf(apierr.KindInvalidArgument,
				"could not parse number '%s' in filter", tok.text)
		}
		return num, nil
	case tok.kind == tokKeyword && tok.text == "TRUE":
		p.pos++
		return true, nil
	case tok.kind == tokKeyword && tok.text == "FALSE":
		p.pos++
		return false, nil
	default:
		return nil, apierr.Newf(apierr.KindInvalidArgument,
			"expected value in filter, got '%s'", tok.text)
	}
}
