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

// Package jsonpath implements the accessor
// subset of SQL/JSON path expressions used by
// JSON_EXISTS, JSON_QUERY and JSON_VALUE:
//
//	[lax|strict] $ | $var
//	  .key ."key" .* [n] [last] [last-n] [n to m] [*]
//	  .size() .type()
//
// Documents are decoded jsonb values
// (see datum.JSON).
package jsonpath

import (
	"strconv"
	"strings"
)

type accKind uint8

const (
	accKey accKind = iota
	accAnyKey
	accIndex
	accAnyIndex
	accMethod
)

// index is n, or last+n when last is set.
type index struct {
	last bool
	n    int
}

type subscript struct {
	from, to index
	isRange  bool
}

type accessor struct {
	kind accKind
	key  string // key or method name
	subs []subscript
}

// Path is a compiled path expression.
type Path struct {
	Strict bool
	// Var names the root variable;
	// empty for the context item $.
	Var  string
	accs []accessor
}

// String returns the canonical text of p.
func (p *Path) String() string {
	var sb strings.Builder
	if p.Strict {
		sb.WriteString("strict ")
	}
	sb.WriteByte('$')
	if p.Var != "" {
		sb.WriteString(strconv.Quote(p.Var))
	}
	for i := range p.accs {
		a := &p.accs[i]
		switch a.kind {
		case accKey:
			sb.WriteByte('.')
			sb.WriteString(strconv.Quote(a.key))
		case accAnyKey:
			sb.WriteString(".*")
		case accAnyIndex:
			sb.WriteString("[*]")
		case accMethod:
			sb.WriteByte('.')
			sb.WriteString(a.key)
			sb.WriteString("()")
		case accIndex:
			sb.WriteByte('[')
			for j, s := range a.subs {
				if j > 0 {
					sb.WriteByte(',')
				}
				s.from.write(&sb)
				if s.isRange {
					sb.WriteString(" to ")
					s.to.write(&sb)
				}
			}
			sb.WriteByte(']')
		}
	}
	return sb.String()
}

func (x index) write(sb *strings.Builder) {
	if !x.last {
		sb.WriteString(strconv.Itoa(x.n))
		return
	}
	sb.WriteString("last")
	if x.n < 0 {
		sb.WriteString(" - ")
		sb.WriteString(strconv.Itoa(-x.n))
	} else if x.n > 0 {
		sb.WriteString(" + ")
		sb.WriteString(strconv.Itoa(x.n))
	}
}

// IsSingleton reports whether p can only
// produce zero or one item in strict mode.
func (p *Path) IsSingleton() bool {
	for i := range p.accs {
		a := &p.accs[i]
		switch a.kind {
		case accAnyKey, accAnyIndex:
			return false
		case accIndex:
			if len(a.subs) != 1 || a.subs[0].isRange {
				return false
			}
		}
	}
	return true
}
