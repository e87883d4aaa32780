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

package datum

import (
	"strings"

	"github.com/lib/pq/oid"
	"golang.org/x/exp/slices"
)

// Record is a composite value. TypeID names a
// registered composite type, or is oid.T_record
// for anonymous rows, in which case TypMod
// identifies the blessed row descriptor.
type Record struct {
	TypeID oid.Oid
	TypMod int32
	Values []Datum
	Nulls  []bool
}

// NewRecord builds a record from parallel
// value and null vectors, which are copied.
func NewRecord(typ oid.Oid, typmod int32, values []Datum, nulls []bool) *Record {
	r := &Record{
		TypeID: typ,
		TypMod: typmod,
		Values: slices.Clone(values),
		Nulls:  make([]bool, len(values)),
	}
	copy(r.Nulls, nulls)
	return r
}

// NumFields returns the number of fields.
func (r *Record) NumFields() int { return len(r.Values) }

// Field returns the i-th (0-based) field.
// Fields past the end read as null.
func (r *Record) Field(i int) (Datum, bool) {
	if i < 0 || i >= len(r.Values) {
		return Null, true
	}
	return r.Values[i], r.Nulls[i]
}

// Copy returns a deep copy of the field vectors.
func (r *Record) Copy() *Record {
	return &Record{
		TypeID: r.TypeID,
		TypMod: r.TypMod,
		Values: slices.Clone(r.Values),
		Nulls:  slices.Clone(r.Nulls),
	}
}

func (r *Record) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i := range r.Values {
		if i > 0 {
			sb.WriteByte(',')
		}
		if !r.Nulls[i] {
			sb.WriteString(r.Values[i].String())
		}
	}
	sb.WriteByte(')')
	return sb.String()
}
