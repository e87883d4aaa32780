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

// Package tuple implements tuple descriptors and
// the slots that carry one tuple at a time into
// expression evaluation.
package tuple

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/lib/pq/oid"
)

// Attr describes one column.
type Attr struct {
	Name    string
	Type    oid.Oid
	TypMod  int32
	Len     int16 // -1 for variable length
	ByVal   bool
	Align   byte
	Dropped bool
	NotNull bool
}

// Desc describes the columns of a tuple. ID
// changes whenever a descriptor with the same
// type identity is redefined, so that caches
// keyed on it can notice.
type Desc struct {
	TypeID oid.Oid // composite type, or oid.T_record
	TypMod int32
	Attrs  []Attr
	ID     uint64
}

var descIDs atomic.Uint64

// NewDesc returns a descriptor with a fresh ID.
func NewDesc(typ oid.Oid, attrs ...Attr) *Desc {
	return &Desc{TypeID: typ, TypMod: -1, Attrs: attrs, ID: descIDs.Add(1)}
}

// NextID allocates a new descriptor identifier.
func NextID() uint64 { return descIDs.Add(1) }

// NumAttrs returns the number of columns,
// including dropped ones.
func (d *Desc) NumAttrs() int { return len(d.Attrs) }

// Attr returns the column with 1-based number n.
func (d *Desc) Attr(n int) *Attr { return &d.Attrs[n-1] }

// Copy returns a copy of d with the same ID.
func (d *Desc) Copy() *Desc {
	c := *d
	c.Attrs = append([]Attr(nil), d.Attrs...)
	return &c
}

// EqualShape reports whether two descriptors
// have the same column types.
func (d *Desc) EqualShape(o *Desc) bool {
	if len(d.Attrs) != len(o.Attrs) {
		return false
	}
	for i := range d.Attrs {
		a, b := &d.Attrs[i], &o.Attrs[i]
		if a.Type != b.Type || a.Dropped != b.Dropped {
			return false
		}
	}
	return true
}

func (d *Desc) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "desc(%d", d.TypeID)
	for i := range d.Attrs {
		a := &d.Attrs[i]
		if a.Dropped {
			sb.WriteString(" <dropped>")
			continue
		}
		fmt.Fprintf(&sb, " %s:%d", a.Name, a.Type)
	}
	sb.WriteByte(')')
	return sb.String()
}

// System attribute numbers. They are negative
// so that they never collide with user columns.
const (
	SelfItemPointerAttr = -1
	MinTransactionAttr  = -2
	MinCommandAttr      = -3
	MaxTransactionAttr  = -4
	MaxCommandAttr      = -5
	TableOidAttr        = -6
)
