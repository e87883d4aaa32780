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

package catalog

import (
	"strings"

	"github.com/lib/pq/oid"

	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/fmgr"
	"github.com/postgres/postgres-sub049/pgerr"
)

// ArgType returns the type of argument i of the
// expression a function is called from, or 0
// when it cannot be determined. For aggregate
// transition functions argument 0 is the
// transition state.
func ArgType(fi *fmgr.Info, i int) oid.Oid {
	switch e := fi.Expr.(type) {
	case *expr.FuncExpr:
		if i < len(e.Args) {
			return e.Args[i].Type()
		}
	case *expr.OpExpr:
		if i < len(e.Args) {
			return e.Args[i].Type()
		}
	case *expr.Aggref:
		if i > 0 && i <= len(e.ArgTypes) {
			return e.ArgTypes[i-1]
		}
	}
	return 0
}

// elemFunc caches a per-element support
// function in the caller's Extra slot.
type elemFunc struct {
	elem oid.Oid
	kind string
	fn   *fmgr.Info
}

func (m *Memory) elemFunc(fc *fmgr.CallInfo, elem oid.Oid, kind string) (*fmgr.Info, error) {
	if c, ok := fc.Flinfo.Extra.(*elemFunc); ok && c.elem == elem && c.kind == kind {
		return c.fn, nil
	}
	t, err := m.Type(elem)
	if err != nil {
		return nil, err
	}
	var fo oid.Oid
	switch kind {
	case "input":
		fo = t.Input
	case "output":
		fo = t.Output
	case "equality":
		fo = t.EqFunc
	case "comparison":
		fo = t.CmpFunc
	case "hash":
		fo = t.HashFunc
	}
	if fo == 0 {
		return nil, pgerr.Newf(pgerr.CodeUndefinedFunction, "could not identify an %s function for type %s", kind, t.Name)
	}
	fi, err := m.Func(fo)
	if err != nil {
		return nil, err
	}
	fc.Flinfo.Extra = &elemFunc{elem: elem, kind: kind, fn: fi}
	return fi, nil
}

func malformedArray(s, detail string) error {
	return pgerr.Newf(pgerr.CodeInvalidTextRep, "malformed array literal: %q (%s)", s, detail)
}

type arrayLiteral struct {
	src   string
	pos   int
	ndim  int // depth of the elements, once known
	dims  [datum.MaxDims]int
	seen  [datum.MaxDims]bool
	elems []string
	nulls []bool
}

// ParseArrayLiteral splits an array literal
// into its dimensions and element strings.
func ParseArrayLiteral(s string) (dims []int, elems []string, nulls []bool, err error) {
	p := &arrayLiteral{src: s}
	p.space()
	if err := p.parse(0); err != nil {
		return nil, nil, nil, err
	}
	p.space()
	if p.pos != len(p.src) {
		return nil, nil, nil, malformedArray(s, "junk after closing right brace")
	}
	if len(p.elems) == 0 {
		return nil, nil, nil, nil
	}
	return append([]int(nil), p.dims[:p.ndim]...), p.elems, p.nulls, nil
}

func (p *arrayLiteral) space() {
	for p.pos < len(p.src) && strings.IndexByte(" \t\n\r", p.src[p.pos]) >= 0 {
		p.pos++
	}
}

func (p *arrayLiteral) parse(depth int) error {
	if depth >= datum.MaxDims {
		return pgerr.Newf(pgerr.CodeProgramLimitExceeded, "number of array dimensions exceeds the maximum allowed (%d)", datum.MaxDims)
	}
	if p.pos >= len(p.src) || p.src[p.pos] != '{' {
		return malformedArray(p.src, "array value must start with \"{\"")
	}
	p.pos++
	n := 0
	for {
		p.space()
		if p.pos >= len(p.src) {
			return malformedArray(p.src, "unexpected end of input")
		}
		if p.src[p.pos] == '}' && n == 0 {
			p.pos++
			if depth > 0 {
				return malformedArray(p.src, "empty inner array")
			}
			return nil
		}
		if p.src[p.pos] == '{' {
			if p.ndim != 0 && depth+1 >= p.ndim {
				return malformedArray(p.src, "multidimensional arrays must have sub-arrays with matching dimensions")
			}
			if err := p.parse(depth + 1); err != nil {
				return err
			}
		} else {
			if p.ndim == 0 {
				p.ndim = depth + 1
			} else if p.ndim != depth+1 {
				return malformedArray(p.src, "multidimensional arrays must have sub-arrays with matching dimensions")
			}
			if err := p.element(); err != nil {
				return err
			}
		}
		n++
		p.space()
		if p.pos >= len(p.src) {
			return malformedArray(p.src, "unexpected end of input")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
			continue
		case '}':
			p.pos++
		default:
			return malformedArray(p.src, "unexpected character")
		}
		break
	}
	if !p.seen[depth] {
		p.seen[depth] = true
		p.dims[depth] = n
	} else if p.dims[depth] != n {
		return malformedArray(p.src, "multidimensional arrays must have sub-arrays with matching dimensions")
	}
	return nil
}

func (p *arrayLiteral) element() error {
	var sb strings.Builder
	quoted := false
	if p.src[p.pos] == '"' {
		quoted = true
		p.pos++
		for {
			if p.pos >= len(p.src) {
				return malformedArray(p.src, "unterminated quoted string")
			}
			c := p.src[p.pos]
			p.pos++
			if c == '"' {
				break
			}
			if c == '\\' && p.pos < len(p.src) {
				c = p.src[p.pos]
				p.pos++
			}
			sb.WriteByte(c)
		}
	} else {
		for p.pos < len(p.src) && p.src[p.pos] != ',' && p.src[p.pos] != '}' {
			c := p.src[p.pos]
			p.pos++
			if c == '{' || c == '"' {
				return malformedArray(p.src, "unexpected character")
			}
			if c == '\\' && p.pos < len(p.src) {
				c = p.src[p.pos]
				p.pos++
			}
			sb.WriteByte(c)
		}
	}
	s := sb.String()
	if !quoted {
		s = strings.TrimSpace(s)
		if s == "" {
			return malformedArray(p.src, "unexpected \",\" or \"}\" character")
		}
	}
	p.elems = append(p.elems, s)
	p.nulls = append(p.nulls, !quoted && strings.EqualFold(s, "NULL"))
	return nil
}

func quoteArrayElem(s string) string {
	if s == "" || strings.EqualFold(s, "NULL") || strings.ContainsAny(s, "{},\"\\ \t\n\r") {
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
		return `"` + r.Replace(s) + `"`
	}
	return s
}

func (m *Memory) arrayIn(fc *fmgr.CallInfo, s string) (datum.Datum, error) {
	elem := fc.Arg(1).Oid()
	dims, elems, nulls, err := ParseArrayLiteral(s)
	if err != nil {
		return datum.Null, err
	}
	if len(elems) == 0 {
		return datum.FromRef(datum.EmptyArray(elem)), nil
	}
	in, err := m.elemFunc(fc, elem, "input")
	if err != nil {
		return datum.Null, err
	}
	et, err := m.Type(elem)
	if err != nil {
		return datum.Null, err
	}
	a := &datum.Array{ElemType: elem, Dims: dims, LBound: make([]int, len(dims))}
	for i := range a.LBound {
		a.LBound[i] = 1
	}
	a.Elems = make([]datum.Datum, len(elems))
	for i := range elems {
		if nulls[i] {
			continue
		}
		v, isnull, err := fmgr.Call(in, 0, datum.FromText(elems[i]), datum.FromOid(et.IOParam()), datum.FromInt32(-1))
		if err != nil {
			return datum.Null, err
		}
		if isnull {
			nulls[i] = true
			continue
		}
		a.Elems[i] = v
	}
	for _, n := range nulls {
		if n {
			a.Nulls = nulls
			break
		}
	}
	return datum.FromRef(a), nil
}

func (m *Memory) arrayOut(fc *fmgr.CallInfo) (datum.Datum, error) {
	a, err := datum.ArrayOf(fc.Arg(0))
	if err != nil {
		return datum.Null, err
	}
	if a.Len() == 0 {
		return datum.FromText("{}"), nil
	}
	out, err := m.elemFunc(fc, a.ElemType, "output")
	if err != nil {
		return datum.Null, err
	}
	var ferr error
	s := a.Format(func(d datum.Datum) string {
		v, _, err := fmgr.Call(out, 0, d)
		if err != nil {
			ferr = err
			return ""
		}
		t, _ := datum.TextOf(v)
		return quoteArrayElem(t)
	})
	if ferr != nil {
		return datum.Null, ferr
	}
	return datum.FromText(s), nil
}

// arrayCompare compares two arrays element by
// element with cmp; nulls sort after values.
func arrayCompare(a, b *datum.Array, cmp func(x, y datum.Datum) (int, error)) (int, error) {
	n := min(a.Len(), b.Len())
	for i := 0; i < n; i++ {
		an, bn := a.IsNull(i), b.IsNull(i)
		switch {
		case an && bn:
			continue
		case an:
			return 1, nil
		case bn:
			return -1, nil
		}
		c, err := cmp(a.Elems[i], b.Elems[i])
		if err != nil || c != 0 {
			return c, err
		}
	}
	if c := compare(a.Len(), b.Len()); c != 0 {
		return c, nil
	}
	if c := compare(a.NDim(), b.NDim()); c != 0 {
		return c, nil
	}
	for i := range a.Dims {
		if c := compare(a.Dims[i], b.Dims[i]); c != 0 {
			return c, nil
		}
		if c := compare(a.LBound[i], b.LBound[i]); c != 0 {
			return c, nil
		}
	}
	return 0, nil
}

func twoArrays(fc *fmgr.CallInfo) (*datum.Array, *datum.Array, error) {
	a, err := datum.ArrayOf(fc.Arg(0))
	if err != nil {
		return nil, nil, err
	}
	b, err := datum.ArrayOf(fc.Arg(1))
	if err != nil {
		return nil, nil, err
	}
	if a.ElemType != b.ElemType && a.Len() > 0 && b.Len() > 0 {
		return nil, nil, pgerr.Newf(pgerr.CodeDatatypeMismatch, "cannot compare arrays of different element types")
	}
	return a, b, nil
}

func (m *Memory) arrayBuiltins() []builtin {
	return []builtin{
		input(FnArrayIn, "array_in", m.arrayIn),
		{oid: FnArrayOut, name: "array_out", nargs: 1, strict: true, fn: m.arrayOut},
		{oid: FnArrayEq, name: "array_eq", nargs: 2, strict: true, fn: func(fc *fmgr.CallInfo) (datum.Datum, error) {
			a, b, err := twoArrays(fc)
			if err != nil {
				return datum.Null, err
			}
			if a.Len() != b.Len() || a.NDim() != b.NDim() {
				return datum.FromBool(false), nil
			}
			if a.Len() == 0 {
				return datum.FromBool(true), nil
			}
			eq, err := m.elemFunc(fc, a.ElemType, "equality")
			if err != nil {
				return datum.Null, err
			}
			c, err := arrayCompare(a, b, func(x, y datum.Datum) (int, error) {
				r, isnull, err := fmgr.Call(eq, fc.Collation, x, y)
				if err != nil || isnull || !r.Bool() {
					return 1, err
				}
				return 0, nil
			})
			return datum.FromBool(c == 0), err
		}},
		{oid: FnBtArrayCmp, name: "btarraycmp", nargs: 2, strict: true, fn: func(fc *fmgr.CallInfo) (datum.Datum, error) {
			a, b, err := twoArrays(fc)
			if err != nil {
				return datum.Null, err
			}
			elem := a.ElemType
			if a.Len() == 0 {
				elem = b.ElemType
			}
			var cf *fmgr.Info
			if a.Len() > 0 && b.Len() > 0 {
				if cf, err = m.elemFunc(fc, elem, "comparison"); err != nil {
					return datum.Null, err
				}
			}
			c, err := arrayCompare(a, b, func(x, y datum.Datum) (int, error) {
				r, _, err := fmgr.Call(cf, fc.Collation, x, y)
				return int(r.Int32()), err
			})
			return datum.FromInt32(int32(c)), err
		}},
		{oid: FnHashArray, name: "hash_array", nargs: 1, strict: true, fn: func(fc *fmgr.CallInfo) (datum.Datum, error) {
			a, err := datum.ArrayOf(fc.Arg(0))
			if err != nil {
				return datum.Null, err
			}
			var h uint32 = 1
			if a.Len() == 0 {
				return hashResult(h), nil
			}
			hf, err := m.elemFunc(fc, a.ElemType, "hash")
			if err != nil {
				return datum.Null, err
			}
			for i := range a.Elems {
				var eh uint32
				if !a.IsNull(i) {
					r, _, err := fmgr.Call(hf, fc.Collation, a.Elems[i])
					if err != nil {
						return datum.Null, err
					}
					eh = r.Uint32()
				}
				h = h*31 + eh
			}
			return hashResult(h), nil
		}},
		{oid: FnArrayAppend, name: "array_append", nargs: 2, fn: arrayAppend},
		{oid: FnCardinality, name: "cardinality", nargs: 1, strict: true, fn: func(fc *fmgr.CallInfo) (datum.Datum, error) {
			a, err := datum.ArrayOf(fc.Arg(0))
			if err != nil {
				return datum.Null, err
			}
			return datum.FromInt32(int32(a.Len())), nil
		}},
		{oid: FnArrayLength, name: "array_length", nargs: 2, strict: true, fn: func(fc *fmgr.CallInfo) (datum.Datum, error) {
			a, err := datum.ArrayOf(fc.Arg(0))
			if err != nil {
				return datum.Null, err
			}
			dim := int(fc.Arg(1).Int32())
			if dim < 1 || dim > a.NDim() {
				return fc.ReturnNull()
			}
			return datum.FromInt32(int32(a.Dims[dim-1])), nil
		}},
	}
}

// arrayAppend appends an element to a
// one-dimensional array. A read-write expanded
// array is extended in place.
func arrayAppend(fc *fmgr.CallInfo) (datum.Datum, error) {
	v, vnull := fc.Arg(1), fc.Args[1].IsNull
	if fc.Args[0].IsNull {
		elem := ArgType(fc.Flinfo, 1)
		return datum.FromRef(datum.NewArray(elem, []datum.Datum{v}, []bool{vnull})), nil
	}
	src := fc.Arg(0)
	a, err := datum.ArrayOf(src)
	if err != nil {
		return datum.Null, err
	}
	if a.NDim() > 1 {
		return datum.Null, pgerr.Newf(pgerr.CodeDataException, "argument must be empty or one-dimensional array")
	}
	if !datum.IsExpandedRW(src) {
		a = a.Copy()
		src = datum.FromRef(a)
	}
	next := 1
	if a.NDim() == 1 {
		next = a.LBound[0] + a.Dims[0]
	}
	if err := a.Set([]int{next}, v, vnull); err != nil {
		return datum.Null, pgerr.Wrapf(err, pgerr.CodeArraySubscript, "array_append")
	}
	return src, nil
}
