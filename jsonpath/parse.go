// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package jsonpath

import (
	"strconv"
	"unicode"

	"github.com/postgres/postgres-sub049/pgerr"
)

type parser struct {
	src       string
	pos       int
	wordStart int
}

// Parse compiles a path expression.
func Parse(s string) (*Path, error) {
	p := &parser{src: s}
	path := &Path{}
	p.space()
	switch w := p.word(); w {
	case "strict":
		path.Strict = true
	case "lax":
	default:
		p.pos = p.wordStart
	}
	p.space()
	if !p.eat('$') {
		return nil, p.fail()
	}
	if p.pos < len(p.src) && (isIdent(p.peek()) || p.peek() == '"') {
		name, err := p.name()
		if err != nil {
			return nil, err
		}
		path.Var = name
	}
	for {
		p.space()
		if p.pos == len(p.src) {
			return path, nil
		}
		switch {
		case p.eat('.'):
			p.space()
			if p.eat('*') {
				path.accs = append(path.accs, accessor{kind: accAnyKey})
				continue
			}
			name, err := p.name()
			if err != nil {
				return nil, err
			}
			p.space()
			if p.eat('(') {
				p.space()
				if !p.eat(')') {
					return nil, p.fail()
				}
				if name != "size" && name != "type" {
					return nil, pgerr.Newf(pgerr.CodeSyntaxError, "unsupported jsonpath item method %s()", name)
				}
				path.accs = append(path.accs, accessor{kind: accMethod, key: name})
				continue
			}
			path.accs = append(path.accs, accessor{kind: accKey, key: name})
		case p.eat('['):
			p.space()
			if p.eat('*') {
				p.space()
				if !p.eat(']') {
					return nil, p.fail()
				}
				path.accs = append(path.accs, accessor{kind: accAnyIndex})
				continue
			}
			acc := accessor{kind: accIndex}
			for {
				var s subscript
				var err error
				if s.from, err = p.index(); err != nil {
					return nil, err
				}
				p.space()
				if p.word() == "to" {
					s.isRange = true
					if s.to, err = p.index(); err != nil {
						return nil, err
					}
				} else {
					p.pos = p.wordStart
				}
				acc.subs = append(acc.subs, s)
				p.space()
				if p.eat(',') {
					continue
				}
				if p.eat(']') {
					break
				}
				return nil, p.fail()
			}
			path.accs = append(path.accs, acc)
		default:
			return nil, p.fail()
		}
	}
}

func (p *parser) fail() error {
	near := p.src[p.pos:]
	if near == "" {
		return pgerr.Newf(pgerr.CodeSyntaxError, "syntax error at end of jsonpath input")
	}
	return pgerr.Newf(pgerr.CodeSyntaxError, "syntax error at or near %q of jsonpath input", near)
}

func (p *parser) peek() byte { return p.src[p.pos] }

func (p *parser) eat(c byte) bool {
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) space() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func isIdent(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c >= 0x80
}

// word consumes an identifier and remembers
// where it started so that it can be pushed back.
func (p *parser) word() string {
	p.wordStart = p.pos
	for p.pos < len(p.src) && isIdent(p.src[p.pos]) {
		p.pos++
	}
	return p.src[p.wordStart:p.pos]
}

func (p *parser) name() (string, error) {
	if p.pos < len(p.src) && p.peek() == '"' {
		end := p.pos + 1
		for end < len(p.src) && p.src[end] != '"' {
			if p.src[end] == '\\' {
				end++
			}
			end++
		}
		if end >= len(p.src) {
			return "", pgerr.Newf(pgerr.CodeSyntaxError, "unterminated quoted string in jsonpath input")
		}
		s, err := strconv.Unquote(p.src[p.pos : end+1])
		if err != nil {
			return "", p.fail()
		}
		p.pos = end + 1
		return s, nil
	}
	w := p.word()
	if w == "" {
		return "", p.fail()
	}
	return w, nil
}

func (p *parser) index() (index, error) {
	p.space()
	var x index
	if p.word() == "last" {
		x.last = true
		p.space()
		sign := 0
		if p.eat('-') {
			sign = -1
		} else if p.eat('+') {
			sign = 1
		}
		if sign == 0 {
			return x, nil
		}
		p.space()
		n, err := p.int()
		if err != nil {
			return x, err
		}
		x.n = sign * n
		return x, nil
	}
	p.pos = p.wordStart
	neg := p.eat('-')
	n, err := p.int()
	if err != nil {
		return x, err
	}
	if neg {
		n = -n
	}
	x.n = n
	return x, nil
}

func (p *parser) int() (int, error) {
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if start == p.pos {
		return 0, p.fail()
	}
	n, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil {
		return 0, pgerr.Newf(pgerr.CodeSyntaxError, "jsonpath array subscript %s is out of integer range", p.src[start:p.pos])
	}
	return n, nil
}
