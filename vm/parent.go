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
	"log"

	"github.com/postgres/postgres-sub049/catalog"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/tuple"
)

// SlotInfo describes an input slot known at
// compile time. When Fixed is set every tuple
// presented through the slot has Desc and Ops.
type SlotInfo struct {
	Desc  *tuple.Desc
	Ops   tuple.SlotOps
	Fixed bool
}

// Parent is the plan node a program is compiled for.
type Parent struct {
	Catalog catalog.Catalog
	Config  *Config
	Logger  *log.Logger

	// Cost is the estimated plan cost used
	// to decide on JIT compilation.
	Cost float64

	Scan, Inner, Outer SlotInfo

	Params   *ParamListInfo
	SubPlans SubPlanRunner
	// Agg is set for aggregation nodes.
	Agg *AggState
	// Window is set for window aggregation nodes.
	Window bool
	// SubqueryTargets is the target list of a
	// subquery scan; whole-row references drop
	// its junk columns.
	SubqueryTargets []*expr.TargetEntry
}

// Option configures a Parent.
type Option func(p *Parent)

// NewParent returns a parent resolving
// metadata through cat.
func NewParent(cat catalog.Catalog, opts ...Option) *Parent {
	p := &Parent{Catalog: cat}
	for _, o := range opts {
		o(p)
	}
	return p
}

// WithConfig sets the engine configuration.
func WithConfig(c *Config) Option { return func(p *Parent) { p.Config = c } }

// WithLogger sets the operational logger.
func WithLogger(l *log.Logger) Option { return func(p *Parent) { p.Logger = l } }

// WithCost sets the plan cost.
func WithCost(c float64) Option { return func(p *Parent) { p.Cost = c } }

// WithSlot describes the input slot of src.
func WithSlot(src expr.VarSource, desc *tuple.Desc, ops tuple.SlotOps, fixed bool) Option {
	return func(p *Parent) {
		*p.slotInfo(src) = SlotInfo{Desc: desc, Ops: ops, Fixed: fixed}
	}
}

// WithParams sets the external parameters.
func WithParams(pl *ParamListInfo) Option { return func(p *Parent) { p.Params = pl } }

// WithSubPlans sets the subquery executor.
func WithSubPlans(r SubPlanRunner) Option { return func(p *Parent) { p.SubPlans = r } }

// WithWindow marks a window aggregation node.
func WithWindow() Option { return func(p *Parent) { p.Window = true } }

// WithSubqueryTargets sets the target list of
// the subquery a scan reads.
func WithSubqueryTargets(tl []*expr.TargetEntry) Option {
	return func(p *Parent) { p.SubqueryTargets = tl }
}

func (p *Parent) slotInfo(src expr.VarSource) *SlotInfo {
	switch src {
	case expr.SourceInner:
		return &p.Inner
	case expr.SourceOuter:
		return &p.Outer
	}
	return &p.Scan
}

func (p *Parent) logf(f string, args ...any) {
	if p != nil && p.Logger != nil {
		p.Logger.Printf(f, args...)
	}
}
