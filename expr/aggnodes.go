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

package expr

import (
	"strconv"
	"strings"

	"github.com/lib/pq/oid"
)

// SortKey is one ORDER BY column of an aggregate.
// Ref indexes the aggregate's Args.
type SortKey struct {
	Ref        int
	CmpFunc    oid.Oid
	EqFunc     oid.Oid
	Desc       bool
	NullsFirst bool
}

// Aggref is a reference to an aggregate computed
// by the enclosing aggregation node. AggNo is the
// index of its output in the aggregate values of
// the expression context; TransNo identifies the
// transition state, which may be shared.
//
// Args holds the aggregated arguments followed by
// any ORDER BY-only columns, which are marked Junk.
type Aggref struct {
	AggNo     int
	TransNo   int
	FnOid     oid.Oid
	Name      string
	AggType   oid.Oid
	ArgTypes  []oid.Oid
	Args      []*TargetEntry
	Order     []SortKey
	Distinct  bool
	Filter    Node
	Star      bool
	Presorted bool
}

func (a *Aggref) Type() oid.Oid { return a.AggType }
func (a *Aggref) walk(v Visitor) {
	for _, te := range a.Args {
		Walk(v, te)
	}
	if a.Filter != nil {
		Walk(v, a.Filter)
	}
}
func (a *Aggref) text(dst *strings.Builder, redact bool) {
	dst.WriteString(a.Name)
	dst.WriteByte('(')
	if a.Distinct {
		dst.WriteString("DISTINCT ")
	}
	if a.Star {
		dst.WriteByte('*')
	}
	n := 0
	for _, te := range a.Args {
		if te.Junk {
			continue
		}
		if n > 0 {
			dst.WriteString(", ")
		}
		te.Expr.text(dst, redact)
		n++
	}
	if len(a.Order) > 0 {
		dst.WriteString(" ORDER BY ")
		for i, k := range a.Order {
			if i > 0 {
				dst.WriteString(", ")
			}
			a.Args[k.Ref].Expr.text(dst, redact)
			if k.Desc {
				dst.WriteString(" DESC")
			}
		}
	}
	dst.WriteByte(')')
	if a.Filter != nil {
		dst.WriteString(" FILTER (WHERE ")
		a.Filter.text(dst, redact)
		dst.WriteByte(')')
	}
}

// NumArgs returns the number of aggregated
// (non-junk) arguments.
func (a *Aggref) NumArgs() int {
	n := 0
	for _, te := range a.Args {
		if !te.Junk {
			n++
		}
	}
	return n
}

// GroupingFunc is GROUPING(cols...). Refs are the
// grouping column numbers of the arguments.
type GroupingFunc struct {
	Refs []int
}

func (g *GroupingFunc) Type() oid.Oid { return oid.T_int4 }
func (g *GroupingFunc) walk(Visitor)  {}
func (g *GroupingFunc) text(dst *strings.Builder, redact bool) {
	dst.WriteString("GROUPING(")
	for i, r := range g.Refs {
		if i > 0 {
			dst.WriteString(", ")
		}
		dst.WriteString(strconv.Itoa(r))
	}
	dst.WriteByte(')')
}

// WindowFunc is a window function call whose
// output is computed by the window node into
// slot WFuncNo of the aggregate values.
type WindowFunc struct {
	FnOid   oid.Oid
	Name    string
	WinType oid.Oid
	Args    []Node
	WFuncNo int
}

func (w *WindowFunc) Type() oid.Oid  { return w.WinType }
func (w *WindowFunc) walk(v Visitor) { walkList(v, w.Args) }
func (w *WindowFunc) text(dst *strings.Builder, redact bool) {
	dst.WriteString(w.Name)
	dst.WriteByte('(')
	listText(dst, w.Args, redact)
	dst.WriteString(") OVER ()")
}
