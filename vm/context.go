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

package vm

import (
	"github.com/lib/pq/oid"

	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/mcxt"
	"github.com/postgres/postgres-sub049/tuple"
)

// ExprContext is the environment a program
// is evaluated in.
type ExprContext struct {
	Scan  *tuple.Slot
	Inner *tuple.Slot
	Outer *tuple.Slot

	// AggValues and AggNulls hold the finished
	// aggregate and window function results.
	AggValues []datum.Datum
	AggNulls  []bool
	// GroupedCols are the grouping columns of
	// the current grouping set.
	GroupedCols []int

	// CaseValue and DomainValue are read by
	// CaseTestExpr and CoerceToDomainValue nodes
	// evaluated outside a CASE or domain check.
	CaseValue   datum.Datum
	CaseNull    bool
	DomainValue datum.Datum
	DomainNull  bool

	ParamExec []ParamExecData
	Params    *ParamListInfo

	// PerTuple is reset by the caller between
	// tuples; PerQuery outlives every tuple.
	PerTuple *mcxt.Context
	PerQuery *mcxt.Context
}

// NewExprContext returns a context with
// per-query and per-tuple memory.
func NewExprContext(parent *mcxt.Context) *ExprContext {
	q := mcxt.New(parent, "ExprContext")
	return &ExprContext{
		PerQuery: q,
		PerTuple: mcxt.New(q, "per-tuple"),
	}
}

// ResetPerTuple releases per-tuple memory.
func (ec *ExprContext) ResetPerTuple() {
	if ec.PerTuple != nil {
		ec.PerTuple.Reset()
	}
}

func (ec *ExprContext) slot(src expr.VarSource) *tuple.Slot {
	switch src {
	case expr.SourceInner:
		return ec.Inner
	case expr.SourceOuter:
		return ec.Outer
	}
	return ec.Scan
}

// ParamExecData is an executor parameter. When
// ExecPlan is set the value is computed by the
// plan on first use.
type ParamExecData struct {
	Value    datum.Datum
	IsNull   bool
	ExecPlan ParamPlan
}

// ParamPlan computes executor parameters.
type ParamPlan interface {
	SetParams(ec *ExprContext) error
}

// ParamExternData is one external parameter.
type ParamExternData struct {
	Value  datum.Datum
	IsNull bool
	Type   oid.Oid
}

// ParamCallback evaluates a parameter compiled
// through ParamListInfo.Compile.
type ParamCallback func(st *ExprState, ec *ExprContext, arg any, res *datum.Datum, isnull *bool) error

// ParamListInfo holds the external parameters
// $1..$n.
type ParamListInfo struct {
	Params []ParamExternData
	// Fetch, when set, supplies parameters
	// that are not in Params.
	Fetch func(id int) (ParamExternData, bool)
	// Compile, when set, may take over the
	// evaluation of a parameter.
	Compile func(p *expr.Param) (ParamCallback, any, bool)
}

func (pl *ParamListInfo) lookup(id int) (ParamExternData, bool) {
	if pl == nil {
		return ParamExternData{}, false
	}
	if id > 0 && id <= len(pl.Params) {
		return pl.Params[id-1], true
	}
	if pl.Fetch != nil {
		return pl.Fetch(id)
	}
	return ParamExternData{}, false
}

// SubPlanRunner executes subqueries for SUBPLAN
// steps. The parameters listed in ParParams are
// set before the call; a MULTIEXPR subplan sets
// its SetParams itself.
type SubPlanRunner interface {
	RunSubPlan(sp *expr.SubPlan, ec *ExprContext) (datum.Datum, bool, error)
}
