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
	"errors"
	"strings"

	"github.com/lib/pq/oid"
	"golang.org/x/exp/slices"
)

// MaxDims is the maximum number of array dimensions.
const MaxDims = 6

var (
	// ErrSubscriptRange is returned when an element
	// outside the array bounds is required.
	ErrSubscriptRange = errors.New("array subscript out of range")
	// ErrDims is returned when subscripts do not
	// match the array dimensionality.
	ErrDims = errors.New("wrong number of array subscripts")
	// ErrSliceSize is returned when a slice
	// replacement has too few elements.
	ErrSliceSize = errors.New("source array too small")
)

// Array is a possibly multidimensional array
// stored in row-major order.
type Array struct {
	ElemType oid.Oid
	Dims     []int // empty for an empty array
	LBound   []int
	Elems    []Datum
	Nulls    []bool // nil when no element is null
}

// NewArray returns a one-dimensional array with
// lower bound 1. nulls may be nil.
func NewArray(elem oid.Oid, vals []Datum, nulls []bool) *Array {
	a := &Array{ElemType: elem, Elems: vals}
	if len(vals) > 0 {
		a.Dims = []int{len(vals)}
		a.LBound = []int{1}
	}
	for i := range nulls {
		if nulls[i] {
			a.Nulls = nulls
			break
		}
	}
	return a
}

// EmptyArray returns a zero-dimensional array.
func EmptyArray(elem oid.Oid) *Array {
	return &Array{ElemType: elem}
}

func (a *Array) NDim() int { return len(a.Dims) }
func (a *Array) Len() int  { return len(a.Elems) }

// IsNull reports whether element i (in storage
// order) is null.
func (a *Array) IsNull(i int) bool {
	return a.Nulls != nil && a.Nulls[i]
}

// HasNulls reports whether any element is null.
func (a *Array) HasNulls() bool {
	return slices.Contains(a.Nulls, true)
}

// Copy returns a deep copy of the array header
// and element vectors.
func (a *Array) Copy() *Array {
	c := &Array{
		ElemType: a.ElemType,
		Dims:     slices.Clone(a.Dims),
		LBound:   slices.Clone(a.LBound),
		Elems:    slices.Clone(a.Elems),
	}
	if a.Nulls != nil {
		c.Nulls = slices.Clone(a.Nulls)
	}
	return c
}

// offset converts subscripts to a storage offset.
func (a *Array) offset(subs []int) (int, error) {
	if len(subs) != len(a.Dims) {
		return 0, ErrDims
	}
	off := 0
	for i, s := range subs {
		idx := s - a.LBound[i]
		if idx < 0 || idx >= a.Dims[i] {
			return 0, ErrSubscriptRange
		}
		off = off*a.Dims[i] + idx
	}
	return off, nil
}

// Get returns the element at subs. ok is false
// when subs are out of range or do not match
// the number of dimensions.
func (a *Array) Get(subs []int) (v Datum, isnull bool, ok bool) {
	off, err := a.offset(subs)
	if err != nil {
		return Null, true, false
	}
	return a.Elems[off], a.IsNull(off), true
}

func (a *Array) setNull(off int, isnull bool) {
	if isnull && a.Nulls == nil {
		a.Nulls = make([]bool, len(a.Elems))
	}
	if a.Nulls != nil {
		a.Nulls[off] = isnull
	}
}

// Set stores v at subs in place. A one-dimensional
// (or empty) array is extended with nulls when subs
// lies outside its bounds; multidimensional arrays
// must be addressed within their bounds.
func (a *Array) Set(subs []int, v Datum, isnull bool) error {
	if isnull {
		v = Null
	}
	if len(a.Dims) == 0 {
		if len(subs) != 1 {
			return ErrSubscriptRange
		}
		a.Dims = []int{1}
		a.LBound = []int{subs[0]}
		a.Elems = []Datum{v}
		a.Nulls = nil
		a.setNull(0, isnull)
		return nil
	}
	if len(a.Dims) == 1 && len(subs) == 1 {
		s := subs[0]
		lb := a.LBound[0]
		if s < lb {
			grow := lb - s
			a.Elems = append(make([]Datum, grow, grow+len(a.Elems)), a.Elems...)
			nulls := make([]bool, grow+a.Dims[0])
			for i := 0; i < grow; i++ {
				nulls[i] = true
			}
			for i := 0; i < a.Dims[0]; i++ {
				nulls[grow+i] = a.IsNull(i)
			}
			a.Nulls = nulls
			a.LBound[0] = s
			a.Dims[0] += grow
		} else if hi := lb + a.Dims[0]; s >= hi {
			grow := s - hi + 1
			old := a.Dims[0]
			a.Elems = append(a.Elems, make([]Datum, grow)...)
			nulls := make([]bool, old+grow)
			for i := 0; i < old; i++ {
				nulls[i] = a.IsNull(i)
			}
			for i := old; i < old+grow; i++ {
				nulls[i] = true
			}
			a.Nulls = nulls
			a.Dims[0] += grow
		}
	}
	off, err := a.offset(subs)
	if err != nil {
		return err
	}
	a.Elems[off] = v
	a.setNull(off, isnull)
	a.compactNulls()
	return nil
}

func (a *Array) compactNulls() {
	if a.Nulls != nil && !a.HasNulls() {
		a.Nulls = nil
	}
}

// Slice returns the sub-array between lower and
// upper (inclusive, per dimension), clamped to
// the array bounds. The result has lower bounds
// of 1, or is empty when nothing overlaps.
func (a *Array) Slice(lower, upper []int) (*Array, error) {
	nd := len(a.Dims)
	if nd == 0 {
		return EmptyArray(a.ElemType), nil
	}
	if len(lower) != nd || len(upper) != nd {
		return nil, ErrDims
	}
	lo := make([]int, nd)
	hi := make([]int, nd)
	for i := 0; i < nd; i++ {
		lo[i] = max(lower[i], a.LBound[i])
		hi[i] = min(upper[i], a.LBound[i]+a.Dims[i]-1)
		if lo[i] > hi[i] {
			return EmptyArray(a.ElemType), nil
		}
	}
	out := &Array{ElemType: a.ElemType, Dims: make([]int, nd), LBound: make([]int, nd)}
	for i := range out.Dims {
		out.Dims[i] = hi[i] - lo[i] + 1
		out.LBound[i] = 1
	}
	idx := slices.Clone(lo)
	var nulls []bool
	for {
		off, _ := a.offset(idx)
		out.Elems = append(out.Elems, a.Elems[off])
		nulls = append(nulls, a.IsNull(off))
		// advance the odometer
		k := nd - 1
		for ; k >= 0; k-- {
			idx[k]++
			if idx[k] <= hi[k] {
				break
			}
			idx[k] = lo[k]
		}
		if k < 0 {
			break
		}
	}
	if slices.Contains(nulls, true) {
		out.Nulls = nulls
	}
	return out, nil
}

// SetSlice replaces the one-dimensional range
// [lower, upper] with the leading elements of src.
// Omitted bounds default to the current bounds.
func (a *Array) SetSlice(lower, upper *int, src *Array) error {
	if len(a.Dims) > 1 || len(src.Dims) > 1 {
		return ErrDims
	}
	lb, ub := 1, 0
	if len(a.Dims) == 1 {
		lb, ub = a.LBound[0], a.LBound[0]+a.Dims[0]-1
	}
	lo, hi := lb, ub
	if lower != nil {
		lo = *lower
	}
	if upper != nil {
		hi = *upper
	}
	if len(a.Dims) == 0 && (lower == nil || upper == nil) {
		return ErrSubscriptRange
	}
	if hi < lo {
		return nil
	}
	n := hi - lo + 1
	if src.Len() < n {
		return ErrSliceSize
	}
	for i := 0; i < n; i++ {
		if err := a.Set([]int{lo + i}, src.Elems[i], src.IsNull(i)); err != nil {
			return err
		}
	}
	return nil
}

// String formats the array for diagnostics
// using the elements' diagnostic format.
func (a *Array) String() string {
	var sb strings.Builder
	a.format(&sb, 0, 0, func(i int) string {
		if a.IsNull(i) {
			return "NULL"
		}
		return a.Elems[i].String()
	})
	return sb.String()
}

// Format formats the array using elem to
// render non-null elements.
func (a *Array) Format(elem func(Datum) string) string {
	var sb strings.Builder
	a.format(&sb, 0, 0, func(i int) string {
		if a.IsNull(i) {
			return "NULL"
		}
		return elem(a.Elems[i])
	})
	return sb.String()
}

func (a *Array) format(sb *strings.Builder, dim, base int, elem func(int) string) int {
	if len(a.Dims) == 0 {
		sb.WriteString("{}")
		return 0
	}
	sb.WriteByte('{')
	stride := 1
	for _, d := range a.Dims[dim+1:] {
		stride *= d
	}
	for i := 0; i < a.Dims[dim]; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		if dim == len(a.Dims)-1 {
			sb.WriteString(elem(base + i))
		} else {
			a.format(sb, dim+1, base+i*stride, elem)
		}
	}
	sb.WriteByte('}')
	return base
}
