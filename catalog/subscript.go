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
	"strconv"

	"github.com/lib/pq/oid"

	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/pgerr"
)

// SubscriptRoutines is the per-type subscripting
// support. ExecSetup fills m with the methods
// used by the evaluation steps and may install
// a Workspace in st.
type SubscriptRoutines struct {
	ExecSetup func(ref *expr.SubscriptingRef, st *SubscriptState, m *SubscriptExecSteps) error
	// FetchStrict means a null container
	// fetches null without calling Fetch.
	FetchStrict    bool
	FetchLeakproof bool
	StoreLeakproof bool
}

// SubscriptFunc operates on the container held
// in *res / *isnull.
type SubscriptFunc func(st *SubscriptState, res *datum.Datum, isnull *bool) error

// SubscriptExecSteps holds the methods filled in
// by ExecSetup. CheckSubscripts returns false when
// evaluation should stop with the current result.
type SubscriptExecSteps struct {
	CheckSubscripts func(st *SubscriptState, res *datum.Datum, isnull *bool) (bool, error)
	Fetch           SubscriptFunc
	Assign          SubscriptFunc
	FetchOld        SubscriptFunc
}

// SubscriptState is the working state of one
// subscripting expression.
type SubscriptState struct {
	IsAssignment bool
	NumUpper     int
	NumLower     int

	UpperProvided []bool
	UpperIndex    []datum.Datum
	UpperNull     []bool
	LowerProvided []bool
	LowerIndex    []datum.Datum
	LowerNull     []bool

	ReplaceValue datum.Datum
	ReplaceNull  bool
	PrevValue    datum.Datum
	PrevNull     bool

	// Workspace belongs to the type's routines.
	Workspace any
	// ErrorSave, when set, receives errors
	// raised for null assignment subscripts.
	ErrorSave *pgerr.ErrorSaveContext
}

// NewSubscriptState sizes the per-subscript
// arrays for ref.
func NewSubscriptState(ref *expr.SubscriptingRef) *SubscriptState {
	nu, nl := len(ref.Upper), len(ref.Lower)
	return &SubscriptState{
		IsAssignment:  ref.Assign != nil,
		NumUpper:      nu,
		NumLower:      nl,
		UpperProvided: make([]bool, nu),
		UpperIndex:    make([]datum.Datum, nu),
		UpperNull:     make([]bool, nu),
		LowerProvided: make([]bool, nl),
		LowerIndex:    make([]datum.Datum, nl),
		LowerNull:     make([]bool, nl),
	}
}

// nullAssignSubscript reports a null subscript in
// an assignment, softly when possible.
func nullAssignSubscript(st *SubscriptState, what string, isnull *bool) (bool, error) {
	err := pgerr.Newf(pgerr.CodeNullValueNotAllowed, "%s subscript in assignment must not be null", what)
	if err = pgerr.Save(st.ErrorSave, err); err != nil {
		return false, err
	}
	*isnull = true
	return false, nil
}

func checkIntSubscripts(ref *expr.SubscriptingRef) error {
	for _, lst := range [][]expr.Node{ref.Upper, ref.Lower} {
		for _, n := range lst {
			if n != nil && n.Type() != oid.T_int4 {
				return pgerr.Newf(pgerr.CodeDatatypeMismatch, "array subscript must have type integer")
			}
		}
	}
	return nil
}

var arraySubscript = &SubscriptRoutines{
	ExecSetup:      arrayExecSetup,
	FetchStrict:    true,
	FetchLeakproof: true,
}

type arrayWorkspace struct {
	elem         oid.Oid
	upper, lower []int
}

func arrayExecSetup(ref *expr.SubscriptingRef, st *SubscriptState, m *SubscriptExecSteps) error {
	if st.NumUpper > datum.MaxDims {
		return pgerr.Newf(pgerr.CodeProgramLimitExceeded,
			"number of array dimensions (%d) exceeds the maximum allowed (%d)", st.NumUpper, datum.MaxDims)
	}
	if err := checkIntSubscripts(ref); err != nil {
		return err
	}
	st.Workspace = &arrayWorkspace{
		elem:  ref.ElemType,
		upper: make([]int, st.NumUpper),
		lower: make([]int, st.NumLower),
	}
	m.CheckSubscripts = arrayCheckSubscripts
	if st.NumLower > 0 {
		m.Fetch = arrayFetchSlice
		m.Assign = arrayAssignSlice
		m.FetchOld = arrayFetchOldSlice
	} else {
		m.Fetch = arrayFetch
		m.Assign = arrayAssign
		m.FetchOld = arrayFetchOld
	}
	return nil
}

func arrayCheckSubscripts(st *SubscriptState, _ *datum.Datum, isnull *bool) (bool, error) {
	ws := st.Workspace.(*arrayWorkspace)
	for i := 0; i < st.NumUpper; i++ {
		if !st.UpperProvided[i] {
			continue
		}
		if st.UpperNull[i] {
			if !st.IsAssignment {
				*isnull = true
				return false, nil
			}
			return nullAssignSubscript(st, "array", isnull)
		}
		ws.upper[i] = int(st.UpperIndex[i].Int32())
	}
	for i := 0; i < st.NumLower; i++ {
		if !st.LowerProvided[i] {
			continue
		}
		if st.LowerNull[i] {
			if !st.IsAssignment {
				*isnull = true
				return false, nil
			}
			return nullAssignSubscript(st, "array", isnull)
		}
		ws.lower[i] = int(st.LowerIndex[i].Int32())
	}
	return true, nil
}

func arrayFetch(st *SubscriptState, res *datum.Datum, isnull *bool) error {
	a, err := datum.ArrayOf(*res)
	if err != nil {
		return err
	}
	v, null, ok := a.Get(st.Workspace.(*arrayWorkspace).upper)
	if !ok {
		*res, *isnull = datum.Null, true
		return nil
	}
	*res, *isnull = v, null
	return nil
}

// sliceBounds fills omitted bounds from the array
// and extends short subscript lists to every
// dimension. ok is false when the slice is empty.
func sliceBounds(st *SubscriptState, a *datum.Array) (lower, upper []int, ok bool) {
	ws := st.Workspace.(*arrayWorkspace)
	nd := a.NDim()
	if nd == 0 || st.NumUpper > nd {
		return nil, nil, false
	}
	lower = make([]int, nd)
	upper = make([]int, nd)
	for i := 0; i < nd; i++ {
		lower[i] = a.LBound[i]
		upper[i] = a.LBound[i] + a.Dims[i] - 1
		if i < st.NumLower && st.LowerProvided[i] {
			lower[i] = ws.lower[i]
		}
		if i < st.NumUpper && st.UpperProvided[i] {
			upper[i] = ws.upper[i]
		}
	}
	return lower, upper, true
}

func arrayFetchSlice(st *SubscriptState, res *datum.Datum, isnull *bool) error {
	a, err := datum.ArrayOf(*res)
	if err != nil {
		return err
	}
	lo, hi, ok := sliceBounds(st, a)
	if !ok {
		*res, *isnull = datum.FromRef(datum.EmptyArray(a.ElemType)), false
		return nil
	}
	s, err := a.Slice(lo, hi)
	if err != nil {
		return subscriptError(err)
	}
	*res, *isnull = datum.FromRef(s), false
	return nil
}

func subscriptError(err error) error {
	return pgerr.Wrapf(err, pgerr.CodeArraySubscript, "array subscript")
}

// writableArray returns an array that may be
// modified in place and the datum that refers
// to it. A read-write expanded container is
// modified in place; anything else is copied.
func writableArray(st *SubscriptState, res datum.Datum, isnull bool) (*datum.Array, datum.Datum, error) {
	if isnull {
		a := datum.EmptyArray(st.Workspace.(*arrayWorkspace).elem)
		return a, datum.FromRef(a), nil
	}
	a, err := datum.ArrayOf(res)
	if err != nil {
		return nil, datum.Null, err
	}
	if datum.IsExpandedRW(res) {
		return a, res, nil
	}
	a = a.Copy()
	return a, datum.FromRef(a), nil
}

func arrayAssign(st *SubscriptState, res *datum.Datum, isnull *bool) error {
	a, out, err := writableArray(st, *res, *isnull)
	if err != nil {
		return err
	}
	if err := a.Set(st.Workspace.(*arrayWorkspace).upper, st.ReplaceValue, st.ReplaceNull); err != nil {
		return subscriptError(err)
	}
	*res, *isnull = out, false
	return nil
}

func arrayAssignSlice(st *SubscriptState, res *datum.Datum, isnull *bool) error {
	// a null source slice leaves the array unchanged
	if st.ReplaceNull {
		return nil
	}
	src, err := datum.ArrayOf(st.ReplaceValue)
	if err != nil {
		return err
	}
	a, out, err := writableArray(st, *res, *isnull)
	if err != nil {
		return err
	}
	if st.NumUpper != 1 {
		return subscriptError(datum.ErrDims)
	}
	ws := st.Workspace.(*arrayWorkspace)
	var lo, hi *int
	if st.LowerProvided[0] {
		lo = &ws.lower[0]
	}
	if st.UpperProvided[0] {
		hi = &ws.upper[0]
	}
	if err := a.SetSlice(lo, hi, src); err != nil {
		return subscriptError(err)
	}
	*res, *isnull = out, false
	return nil
}

func arrayFetchOld(st *SubscriptState, res *datum.Datum, isnull *bool) error {
	if *isnull {
		st.PrevValue, st.PrevNull = datum.Null, true
		return nil
	}
	v, n := *res, false
	if err := arrayFetch(st, &v, &n); err != nil {
		return err
	}
	st.PrevValue, st.PrevNull = v, n
	return nil
}

func arrayFetchOldSlice(st *SubscriptState, res *datum.Datum, isnull *bool) error {
	if *isnull {
		st.PrevValue, st.PrevNull = datum.Null, true
		return nil
	}
	v, n := *res, false
	if err := arrayFetchSlice(st, &v, &n); err != nil {
		return err
	}
	st.PrevValue, st.PrevNull = v, n
	return nil
}

// point is a fixed-length container of two
// float8 elements addressed from 0.
var pointSubscript = &SubscriptRoutines{
	ExecSetup:      pointExecSetup,
	FetchStrict:    true,
	FetchLeakproof: true,
	StoreLeakproof: true,
}

func pointExecSetup(ref *expr.SubscriptingRef, st *SubscriptState, m *SubscriptExecSteps) error {
	if ref.IsSlice() {
		return pgerr.Newf(pgerr.CodeFeatureNotSupported, "slices of fixed-length arrays not implemented")
	}
	if st.NumUpper != 1 {
		return pgerr.Newf(pgerr.CodeArraySubscript, "wrong number of array subscripts")
	}
	if err := checkIntSubscripts(ref); err != nil {
		return err
	}
	st.Workspace = &arrayWorkspace{elem: oid.T_float8, upper: make([]int, 1)}
	m.CheckSubscripts = arrayCheckSubscripts
	m.Fetch = pointFetch
	m.Assign = pointAssign
	m.FetchOld = func(st *SubscriptState, res *datum.Datum, isnull *bool) error {
		if *isnull {
			st.PrevValue, st.PrevNull = datum.Null, true
			return nil
		}
		v, n := *res, false
		if err := pointFetch(st, &v, &n); err != nil {
			return err
		}
		st.PrevValue, st.PrevNull = v, n
		return nil
	}
	return nil
}

func pointOf(d datum.Datum) (*datum.Point, error) {
	p, ok := d.Ref().(*datum.Point)
	if !ok {
		return nil, pgerr.Invariant("point subscripting on %T", d.Ref())
	}
	return p, nil
}

func pointFetch(st *SubscriptState, res *datum.Datum, isnull *bool) error {
	p, err := pointOf(*res)
	if err != nil {
		return err
	}
	switch st.Workspace.(*arrayWorkspace).upper[0] {
	case 0:
		*res, *isnull = datum.FromFloat64(p.X), false
	case 1:
		*res, *isnull = datum.FromFloat64(p.Y), false
	default:
		*res, *isnull = datum.Null, true
	}
	return nil
}

func pointAssign(st *SubscriptState, res *datum.Datum, isnull *bool) error {
	// fixed-length containers keep the original
	// value when either side is null
	if *isnull || st.ReplaceNull {
		return nil
	}
	p, err := pointOf(*res)
	if err != nil {
		return err
	}
	q := *p
	switch st.Workspace.(*arrayWorkspace).upper[0] {
	case 0:
		q.X = st.ReplaceValue.Float64()
	case 1:
		q.Y = st.ReplaceValue.Float64()
	default:
		return subscriptError(datum.ErrSubscriptRange)
	}
	*res = datum.FromRef(&q)
	return nil
}

var jsonbSubscript = &SubscriptRoutines{
	ExecSetup:   jsonbExecSetup,
	FetchStrict: true,
}

type jsonbWorkspace struct {
	ints []bool
	path []string
}

func jsonbExecSetup(ref *expr.SubscriptingRef, st *SubscriptState, m *SubscriptExecSteps) error {
	if ref.IsSlice() {
		return pgerr.Newf(pgerr.CodeFeatureNotSupported, "jsonb subscript does not support slices")
	}
	ws := &jsonbWorkspace{ints: make([]bool, st.NumUpper), path: make([]string, st.NumUpper)}
	for i, n := range ref.Upper {
		switch t := n.Type(); t {
		case oid.T_int4:
			ws.ints[i] = true
		case oid.T_text:
		default:
			return pgerr.Newf(pgerr.CodeDatatypeMismatch, "subscript type %d is not supported", t)
		}
	}
	st.Workspace = ws
	m.CheckSubscripts = jsonbCheckSubscripts
	m.Fetch = jsonbFetch
	m.Assign = jsonbAssign
	m.FetchOld = func(st *SubscriptState, res *datum.Datum, isnull *bool) error {
		if *isnull {
			st.PrevValue, st.PrevNull = datum.Null, true
			return nil
		}
		v, n := *res, false
		if err := jsonbFetch(st, &v, &n); err != nil {
			return err
		}
		st.PrevValue, st.PrevNull = v, n
		return nil
	}
	return nil
}

func jsonbCheckSubscripts(st *SubscriptState, _ *datum.Datum, isnull *bool) (bool, error) {
	ws := st.Workspace.(*jsonbWorkspace)
	for i := 0; i < st.NumUpper; i++ {
		if st.UpperNull[i] {
			if !st.IsAssignment {
				*isnull = true
				return false, nil
			}
			return nullAssignSubscript(st, "jsonb", isnull)
		}
		if ws.ints[i] {
			ws.path[i] = strconv.Itoa(int(st.UpperIndex[i].Int32()))
			continue
		}
		s, err := datum.TextOf(st.UpperIndex[i])
		if err != nil {
			return false, err
		}
		ws.path[i] = s
	}
	return true, nil
}

func jsonbFetch(st *SubscriptState, res *datum.Datum, isnull *bool) error {
	j, err := JSONBOf(*res)
	if err != nil {
		return err
	}
	v := j.V
	for _, key := range st.Workspace.(*jsonbWorkspace).path {
		var ok bool
		switch c := v.(type) {
		case map[string]any:
			v, ok = c[key]
		case []any:
			var n int
			if n, err = strconv.Atoi(key); err == nil {
				v, ok = jsonbElem(c, n)
			}
		}
		if !ok {
			*res, *isnull = datum.Null, true
			return nil
		}
	}
	*res, *isnull = JSONB(v), false
	return nil
}

func jsonbAssign(st *SubscriptState, res *datum.Datum, isnull *bool) error {
	ws := st.Workspace.(*jsonbWorkspace)
	var root any
	switch {
	case *isnull && ws.ints[0]:
		root = []any{}
	case *isnull:
		root = map[string]any{}
	default:
		j, err := JSONBOf(*res)
		if err != nil {
			return err
		}
		root = datum.CopyJSON(j.V)
	}
	var val any
	if !st.ReplaceNull {
		j, err := JSONBOf(st.ReplaceValue)
		if err != nil {
			return err
		}
		val = datum.CopyJSON(j.V)
	}
	root, err := jsonbSetPath(root, ws.path, 0, val)
	if err != nil {
		return err
	}
	*res, *isnull = JSONB(root), false
	return nil
}

// jsonbSetPath stores val at path[level:] below v,
// creating missing containers, and returns the
// updated v.
func jsonbSetPath(v any, path []string, level int, val any) (any, error) {
	if level == len(path) {
		return val, nil
	}
	key := path[level]
	switch c := v.(type) {
	case map[string]any:
		child, ok := c[key]
		if !ok {
			child = newJSONContainer(path, level+1)
		}
		nv, err := jsonbSetPath(child, path, level+1, val)
		if err != nil {
			return nil, err
		}
		c[key] = nv
		return c, nil
	case []any:
		n, err := strconv.Atoi(key)
		if err != nil {
			return nil, pgerr.Newf(pgerr.CodeInvalidTextRep,
				"path element at position %d is not an integer: %q", level+1, key)
		}
		if n < 0 {
			if n+len(c) < 0 {
				return nil, pgerr.Newf(pgerr.CodeInvalidParameter,
					"path element at position %d is out of range: %d", level+1, n)
			}
			n += len(c)
		}
		for len(c) <= n {
			c = append(c, nil)
		}
		child := c[n]
		if child == nil {
			child = newJSONContainer(path, level+1)
		}
		nv, err := jsonbSetPath(child, path, level+1, val)
		if err != nil {
			return nil, err
		}
		c[n] = nv
		return c, nil
	}
	if level == 0 {
		return nil, pgerr.Newf(pgerr.CodeInvalidParameter, "cannot set path in scalar")
	}
	return nil, pgerr.Newf(pgerr.CodeInvalidParameter, "cannot replace existing key")
}

// newJSONContainer returns the container created
// for a missing path element at level: an array
// when the following element is an integer.
func newJSONContainer(path []string, level int) any {
	if level >= len(path) {
		return nil
	}
	if _, err := strconv.Atoi(path[level]); err == nil {
		return []any{}
	}
	return map[string]any{}
}
