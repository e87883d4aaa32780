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

// Package fmgr defines the uniform calling
// convention used for every externally supplied
// scalar function: a descriptor (Info) and a
// per-call-site argument block (CallInfo).
package fmgr

import (
	"github.com/lib/pq/oid"

	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/mcxt"
	"github.com/postgres/postgres-sub049/pgerr"
)

// MaxArgs is the maximum number of
// arguments a function may take.
const MaxArgs = 100

// Function is the ABI of a callable routine.
// It reads fc.Args, may set fc.IsNull, and
// returns the result value.
type Function func(fc *CallInfo) (datum.Datum, error)

// Inline2 is an optional fast path for a strict
// two-argument function over non-null inputs.
// It must compute exactly what Addr computes.
type Inline2 func(a, b datum.Datum) (datum.Datum, error)

// Info describes a function.
type Info struct {
	OID      oid.Oid
	Name     string
	Addr     Function
	NArgs    int // -1 when variadic
	Strict   bool
	RetSet   bool
	Track    bool // collect usage statistics
	Language string
	Inline2  Inline2

	// Expr is the expression the function is
	// called from, when known.
	Expr any
	// Extra is a per-call-site cache the function
	// may fill on its first call.
	Extra any
}

// CallInfo is an argument block bound to one Info.
type CallInfo struct {
	Flinfo    *Info
	Args      []datum.NullableDatum
	IsNull    bool
	Collation oid.Oid
	// Context is nil, an *pgerr.ErrorSaveContext,
	// or an AggContext for transition functions.
	Context any
}

// AggContext is the call context passed to
// aggregate transition and final functions.
type AggContext interface {
	// AggMemoryContext returns the context that
	// owns transition values across calls.
	AggMemoryContext() *mcxt.Context
}

// NewCallInfo allocates an argument block with
// nargs arguments.
func NewCallInfo(fi *Info, nargs int, collation oid.Oid, context any) *CallInfo {
	return &CallInfo{
		Flinfo:    fi,
		Args:      make([]datum.NullableDatum, nargs),
		Collation: collation,
		Context:   context,
	}
}

// Invoke calls the bound function.
func (fc *CallInfo) Invoke() (datum.Datum, error) {
	fc.IsNull = false
	return fc.Flinfo.Addr(fc)
}

// AnyArgNull reports whether any argument is null.
func (fc *CallInfo) AnyArgNull() bool {
	for i := range fc.Args {
		if fc.Args[i].IsNull {
			return true
		}
	}
	return false
}

// Arg returns argument i.
func (fc *CallInfo) Arg(i int) datum.Datum { return fc.Args[i].Value }

// ArgText returns argument i as text.
func (fc *CallInfo) ArgText(i int) (string, error) {
	return datum.TextOf(fc.Args[i].Value)
}

// ErrorSave returns the soft-error context
// the function was called with, if any.
func (fc *CallInfo) ErrorSave() *pgerr.ErrorSaveContext {
	es, _ := fc.Context.(*pgerr.ErrorSaveContext)
	return es
}

// Agg returns the aggregate call context, if any.
func (fc *CallInfo) Agg() (AggContext, bool) {
	ac, ok := fc.Context.(AggContext)
	return ac, ok
}

// Fail reports err softly when the caller supplied
// an error-save context (returning null), and
// returns it otherwise.
func (fc *CallInfo) Fail(err error) (datum.Datum, error) {
	if err = pgerr.Save(fc.ErrorSave(), err); err != nil {
		return datum.Null, err
	}
	fc.IsNull = true
	return datum.Null, nil
}

// ReturnNull sets the null flag and returns.
func (fc *CallInfo) ReturnNull() (datum.Datum, error) {
	fc.IsNull = true
	return datum.Null, nil
}

// Call invokes fi directly with non-null arguments.
func Call(fi *Info, collation oid.Oid, args ...datum.Datum) (datum.Datum, bool, error) {
	fc := NewCallInfo(fi, len(args), collation, nil)
	for i := range args {
		fc.Args[i].Value = args[i]
	}
	v, err := fc.Invoke()
	return v, fc.IsNull, err
}
