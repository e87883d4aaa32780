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

// Package datum defines the value cell passed
// between expression steps and the reference
// representations of the variable-length values
// it can point to.
//
// A Datum never carries its own null flag;
// every value site in a program is a Datum
// paired with a separate bool.
package datum

import (
	"fmt"
	"math"

	"github.com/lib/pq/oid"
)

// Datum is a fixed-width value cell. Pass-by-value
// types are stored in the word; pass-by-reference
// types are stored in ref.
type Datum struct {
	word uint64
	ref  any
}

// NullableDatum is a value with its null flag.
type NullableDatum struct {
	Value  Datum
	IsNull bool
}

// Null is the canonical value stored
// alongside a true null flag.
var Null Datum

func FromWord(w uint64) Datum     { return Datum{word: w} }
func FromInt16(v int16) Datum     { return Datum{word: uint64(int64(v))} }
func FromInt32(v int32) Datum     { return Datum{word: uint64(int64(v))} }
func FromInt64(v int64) Datum     { return Datum{word: uint64(v)} }
func FromUint32(v uint32) Datum   { return Datum{word: uint64(v)} }
func FromOid(v oid.Oid) Datum     { return Datum{word: uint64(v)} }
func FromFloat64(v float64) Datum { return Datum{word: math.Float64bits(v)} }

// FromBool returns the canonical boolean cell.
func FromBool(b bool) Datum {
	if b {
		return Datum{word: 1}
	}
	return Datum{}
}

// FromText returns a text value.
func FromText(s string) Datum { return Datum{ref: s} }

// FromBytes returns a bytea value. The slice is not copied.
func FromBytes(b []byte) Datum { return Datum{ref: b} }

// FromRef wraps an arbitrary by-reference value.
func FromRef(v any) Datum { return Datum{ref: v} }

func (d Datum) Word() uint64     { return d.word }
func (d Datum) Int16() int16     { return int16(d.word) }
func (d Datum) Int32() int32     { return int32(d.word) }
func (d Datum) Int64() int64     { return int64(d.word) }
func (d Datum) Uint32() uint32   { return uint32(d.word) }
func (d Datum) Oid() oid.Oid     { return oid.Oid(d.word) }
func (d Datum) Float64() float64 { return math.Float64frombits(d.word) }
func (d Datum) Bool() bool       { return d.word != 0 }

// Ref returns the by-reference payload, or nil
// for pass-by-value cells.
func (d Datum) Ref() any { return d.ref }

// IsRef reports whether d carries a reference.
func (d Datum) IsRef() bool { return d.ref != nil }

// Same reports whether a and b are the same cell:
// equal words and identical references. It is
// not a type-aware equality.
func Same(a, b Datum) bool {
	if a.word != b.word {
		return false
	}
	switch ra := a.ref.(type) {
	case nil:
		return b.ref == nil
	case []byte:
		rb, ok := b.ref.([]byte)
		return ok && len(ra) == len(rb) && (len(ra) == 0 || &ra[0] == &rb[0])
	default:
		// every other reference kind is a pointer
		// or a comparable value type
		return a.ref == b.ref
	}
}

// String formats d for diagnostics.
func (d Datum) String() string {
	switch r := d.ref.(type) {
	case nil:
		return fmt.Sprintf("%d", int64(d.word))
	case string:
		return fmt.Sprintf("%q", r)
	case []byte:
		return fmt.Sprintf("\\x%x", r)
	case fmt.Stringer:
		return r.String()
	default:
		return fmt.Sprintf("%v", r)
	}
}

// TextOf returns the text payload of d,
// decompressing it if necessary.
func TextOf(d Datum) (string, error) {
	switch r := d.ref.(type) {
	case string:
		return r, nil
	case []byte:
		return string(r), nil
	case *Compressed:
		flat, err := r.Decompress()
		if err != nil {
			return "", err
		}
		return TextOf(flat)
	default:
		return "", fmt.Errorf("datum: %T is not a text value", d.ref)
	}
}

// BytesOf returns the binary payload of d,
// decompressing it if necessary.
func BytesOf(d Datum) ([]byte, error) {
	switch r := d.ref.(type) {
	case []byte:
		return r, nil
	case string:
		return []byte(r), nil
	case *Compressed:
		flat, err := r.Decompress()
		if err != nil {
			return nil, err
		}
		return BytesOf(flat)
	default:
		return nil, fmt.Errorf("datum: %T is not a binary value", d.ref)
	}
}

// Point is a fixed-length pair of float8 values.
// It is subscriptable like a two-element array
// whose subscripts start at zero.
type Point struct {
	X, Y float64
}

func (p *Point) String() string { return fmt.Sprintf("(%g,%g)", p.X, p.Y) }
