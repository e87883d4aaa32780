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
	"fmt"

	"github.com/lib/pq/oid"

	"github.com/postgres/postgres-sub049/catalog"
	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/fmgr"
	"github.com/postgres/postgres-sub049/mcxt"
	"github.com/postgres/postgres-sub049/pgerr"
	"github.com/postgres/postgres-sub049/sorting"
	"github.com/postgres/postgres-sub049/tuple"
)

// AggState holds the transition states of an
// aggregation node. Aggrefs register themselves
// while the node's target list and qual are
// compiled; CompileAggTrans then builds the
// transition program of a phase.
//
// The sort-based grouping sets of a phase each
// hold the state of one group at a time. The
// hashed set holds one state per distinct value
// of the phase's HashCols.
//
// An AggState is not safe for concurrent use.
type AggState struct {
	// Combine makes the transitions merge partial
	// states with the combine function.
	Combine bool
	// Deserialize converts serialized partial
	// states before combining them.
	Deserialize bool
	// Serialize makes Finalize emit serialized
	// transition states instead of final values.
	Serialize bool
	// HashLimit bounds the number of hashed groups;
	// rows of further groups are counted by Spilled
	// and skip the hashed transitions. Zero means
	// no limit.
	HashLimit int

	parent  *Parent
	aggrefs []*expr.Aggref
	trans   []*aggTrans
	finals  []*aggFinal
	phase   *AggPhase
	nsets   int

	mem    *mcxt.Context
	setMem []*mcxt.Context
	cur    *mcxt.Context

	groups  [][]aggGroup
	hash    aggHashTable
	hashCur []aggGroup
	spilled int
}

// aggGroup is the transition state of one
// aggregate for one group.
type aggGroup struct {
	transValue   datum.Datum
	transNull    bool
	noTransValue bool
}

// aggTrans is a transition shared by the
// aggregates with the same TransNo.
type aggTrans struct {
	aggref *expr.Aggref
	info   *catalog.AggInfo
	fi     *fmgr.Info
	// fc.Args[0] is the transition value and
	// the inputs follow
	fc *fmgr.CallInfo

	numInputs      int
	numTransInputs int
	byval          bool
	initValue      datum.Datum
	initNull       bool

	deserial *fmgr.CallInfo

	// ordered input
	sorted     bool
	keys       []sorting.Key
	sorts      []*sorting.Tuplesort
	sortValues []datum.NullableDatum
	sortVals   []datum.Datum
	sortNulls  []bool
	sortRow    []datum.NullableDatum

	// distinct input
	eqfns    []*fmgr.CallInfo
	last     []datum.NullableDatum
	haveLast bool
}

// aggFinal produces the output of one Aggref.
type aggFinal struct {
	aggref   *expr.Aggref
	finalfc  *fmgr.CallInfo
	finalfi  *fmgr.Info
	serialfc *fmgr.CallInfo
}

type aggHashEntry struct {
	rep    *tuple.Slot
	groups []aggGroup
}

type aggHashTable struct {
	buckets map[uint32][]*aggHashEntry
	entries []*aggHashEntry
}

// AggPhase describes one pass over the
// aggregation input.
type AggPhase struct {
	// NumSets is the number of sort-based grouping
	// sets advanced together; zero counts as one.
	NumSets int
	// GroupingSets lists the grouping columns of
	// each sort-based set for GROUPING().
	GroupingSets [][]int
	// HashCols are the 1-based outer columns the
	// hashed set groups on.
	HashCols []int

	trans    *ExprState
	doSort   bool
	doHash   bool
	hashProg *ExprState
	eqProg   *ExprState
}

func (ph *AggPhase) numSets() int {
	if ph.NumSets <= 0 {
		return 1
	}
	return ph.NumSets
}

// Trans returns the transition program of the
// phase, once compiled.
func (ph *AggPhase) Trans() *ExprState { return ph.trans }

// NewAggState returns an aggregation state whose
// transition values live below mem. It must be
// attached to a Parent with WithAgg.
func NewAggState(mem *mcxt.Context) *AggState {
	return &AggState{mem: mcxt.New(mem, "AggContext")}
}

// WithAgg marks an aggregation node.
func WithAgg(a *AggState) Option {
	return func(p *Parent) {
		p.Agg = a
		a.parent = p
	}
}

// AggMemoryContext implements fmgr.AggContext.
func (a *AggState) AggMemoryContext() *mcxt.Context {
	if a.cur != nil {
		return a.cur
	}
	return a.mem
}

// NumAggs returns the number of registered aggregates.
func (a *AggState) NumAggs() int { return len(a.aggrefs) }

func (a *AggState) addAggref(n *expr.Aggref) {
	for len(a.aggrefs) <= n.AggNo {
		a.aggrefs = append(a.aggrefs, nil)
	}
	a.aggrefs[n.AggNo] = n
}

func (a *AggState) cat() catalog.Catalog { return a.parent.Catalog }

// prepare builds the transitions on first use
// and allocates the per-group state of nsets
// sort-based sets and the hashed set.
func (a *AggState) prepare(nsets int) error {
	if a.trans == nil {
		if err := a.buildTrans(); err != nil {
			return err
		}
	}
	for _, c := range a.setMem {
		c.Delete()
	}
	a.nsets = nsets
	a.setMem = make([]*mcxt.Context, nsets+1)
	for i := 0; i < nsets; i++ {
		a.setMem[i] = mcxt.New(a.mem, fmt.Sprintf("aggcontext %d", i))
	}
	a.setMem[nsets] = mcxt.New(a.mem, "hashcontext")
	a.groups = make([][]aggGroup, nsets)
	for i := range a.groups {
		a.groups[i] = a.newGroups()
	}
	for _, pt := range a.trans {
		if pt == nil || !pt.sorted {
			continue
		}
		pt.sorts = make([]*sorting.Tuplesort, nsets)
		for i := range pt.sorts {
			if pt.numInputs == 1 {
				k := pt.keys[0]
				pt.sorts[i] = sorting.NewDatumSort(k.Compare, k.Direction, k.Nulls)
			} else {
				pt.sorts[i] = sorting.NewTuplesort(pt.keys)
			}
		}
	}
	a.resetHash()
	return nil
}

func (a *AggState) buildTrans() error {
	for aggno, n := range a.aggrefs {
		if n == nil {
			return pgerr.Invariant("aggregate %d was never registered", aggno)
		}
		for len(a.trans) <= n.TransNo {
			a.trans = append(a.trans, nil)
		}
		if a.trans[n.TransNo] == nil {
			pt, err := a.newTrans(n)
			if err != nil {
				return err
			}
			a.trans[n.TransNo] = pt
		}
		f, err := a.newFinal(n)
		if err != nil {
			return err
		}
		a.finals = append(a.finals, f)
	}
	return nil
}

func (a *AggState) newTrans(n *expr.Aggref) (*aggTrans, error) {
	cat := a.cat()
	info, err := cat.Aggregate(n.FnOid)
	if err != nil {
		return nil, err
	}
	fnOid := info.TransFn
	numTrans := n.NumArgs()
	if a.Combine {
		if info.CombineFn == 0 {
			return nil, pgerr.Invariant("combinefn not set for aggregate %s", info.Name)
		}
		if numTrans != 1 {
			return nil, pgerr.Invariant("combining aggregate %s with %d arguments", info.Name, numTrans)
		}
		fnOid = info.CombineFn
	}
	if err := cat.CheckExecute(fnOid); err != nil {
		return nil, err
	}
	fi, err := cat.Func(fnOid)
	if err != nil {
		return nil, err
	}
	fi.Expr = n
	ti, err := cat.Type(info.TransType)
	if err != nil {
		return nil, err
	}
	pt := &aggTrans{
		aggref:         n,
		info:           info,
		fi:             fi,
		fc:             fmgr.NewCallInfo(fi, 1+numTrans, 0, a),
		numInputs:      len(n.Args),
		numTransInputs: numTrans,
		byval:          ti.ByVal,
		initNull:       !info.HasInit,
	}
	if info.HasInit {
		if pt.initValue, pt.initNull, err = parseInitValue(cat, ti, info.InitVal); err != nil {
			return nil, err
		}
	}
	if a.Combine && a.Deserialize && info.DeserialFn != 0 {
		dfi, err := cat.Func(info.DeserialFn)
		if err != nil {
			return nil, err
		}
		pt.deserial = fmgr.NewCallInfo(dfi, 2, 0, a)
	}
	if a.Combine {
		return pt, nil
	}
	pt.sorted = (n.Distinct || len(n.Order) > 0) && !n.Presorted
	if pt.sorted {
		if err := a.sortKeys(pt); err != nil {
			return nil, err
		}
		if pt.numInputs > 1 {
			pt.sortVals = make([]datum.Datum, pt.numInputs)
			pt.sortNulls = make([]bool, pt.numInputs)
			pt.sortRow = make([]datum.NullableDatum, pt.numInputs)
		} else {
			pt.sortValues = make([]datum.NullableDatum, 1)
		}
	}
	if n.Distinct {
		pt.eqfns = make([]*fmgr.CallInfo, numTrans)
		pt.last = make([]datum.NullableDatum, numTrans)
		for i := 0; i < numTrans; i++ {
			typ := n.Args[i].Expr.Type()
			ati, err := cat.Type(typ)
			if err != nil {
				return nil, err
			}
			if ati.EqFunc == 0 {
				return nil, pgerr.Newf(pgerr.CodeUndefinedFunction,
					"could not identify an equality operator for type %s", expr.TypeName(typ))
			}
			efi, err := cat.Func(ati.EqFunc)
			if err != nil {
				return nil, err
			}
			pt.eqfns[i] = fmgr.NewCallInfo(efi, 2, 0, nil)
		}
	}
	return pt, nil
}

// sortKeys orders by the ORDER BY columns and
// then by any DISTINCT column not already
// among them.
func (a *AggState) sortKeys(pt *aggTrans) error {
	n := pt.aggref
	seen := make([]bool, len(n.Args))
	for _, sk := range n.Order {
		if sk.Ref < 0 || sk.Ref >= len(n.Args) {
			return pgerr.Invariant("aggregate %s orders by argument %d of %d", n.Name, sk.Ref, len(n.Args))
		}
		cmp, err := a.compareFunc(sk.CmpFunc)
		if err != nil {
			return err
		}
		k := sorting.Key{Col: sk.Ref, Compare: cmp, Direction: sorting.Ascending, Nulls: sorting.NullsLast}
		if sk.Desc {
			k.Direction = sorting.Descending
		}
		if sk.NullsFirst {
			k.Nulls = sorting.NullsFirst
		}
		seen[sk.Ref] = true
		pt.keys = append(pt.keys, k)
	}
	if !n.Distinct {
		return nil
	}
	for i, te := range n.Args {
		if te.Junk || seen[i] {
			continue
		}
		typ := te.Expr.Type()
		ti, err := a.cat().Type(typ)
		if err != nil {
			return err
		}
		if ti.CmpFunc == 0 {
			return pgerr.Newf(pgerr.CodeUndefinedFunction,
				"could not identify an ordering operator for type %s", expr.TypeName(typ))
		}
		cmp, err := a.compareFunc(ti.CmpFunc)
		if err != nil {
			return err
		}
		pt.keys = append(pt.keys, sorting.Key{Col: i, Compare: cmp, Direction: sorting.Ascending, Nulls: sorting.NullsLast})
	}
	return nil
}

func (a *AggState) compareFunc(fn oid.Oid) (sorting.CompareFunc, error) {
	fi, err := a.cat().Func(fn)
	if err != nil {
		return nil, err
	}
	fc := fmgr.NewCallInfo(fi, 2, 0, nil)
	return func(x, y datum.Datum) (int, error) {
		fc.Args[0] = datum.NullableDatum{Value: x}
		fc.Args[1] = datum.NullableDatum{Value: y}
		v, err := fc.Invoke()
		if err != nil {
			return 0, err
		}
		if fc.IsNull {
			return 0, pgerr.Invariant("comparison function %s returned null", fi.Name)
		}
		return int(v.Int32()), nil
	}, nil
}

func (a *AggState) newFinal(n *expr.Aggref) (*aggFinal, error) {
	cat := a.cat()
	info, err := cat.Aggregate(n.FnOid)
	if err != nil {
		return nil, err
	}
	f := &aggFinal{aggref: n}
	if a.Serialize {
		if info.SerialFn != 0 {
			sfi, err := cat.Func(info.SerialFn)
			if err != nil {
				return nil, err
			}
			f.serialfc = fmgr.NewCallInfo(sfi, 1, 0, a)
		}
		return f, nil
	}
	if info.FinalFn != 0 {
		if err := cat.CheckExecute(info.FinalFn); err != nil {
			return nil, err
		}
		ffi, err := cat.Func(info.FinalFn)
		if err != nil {
			return nil, err
		}
		ffi.Expr = n
		f.finalfi = ffi
		f.finalfc = fmgr.NewCallInfo(ffi, 1, 0, a)
	}
	return f, nil
}

// parseInitValue runs the text form of an initial
// transition value through the type's input function.
func parseInitValue(cat catalog.Catalog, ti *catalog.TypeInfo, s string) (datum.Datum, bool, error) {
	fi, err := cat.Func(ti.Input)
	if err != nil {
		return datum.Null, true, err
	}
	return fmgr.Call(fi, 0, datum.FromText(s), datum.FromOid(ti.IOParam()), datum.FromInt32(-1))
}

func (a *AggState) newGroups() []aggGroup {
	g := make([]aggGroup, len(a.trans))
	a.initGroups(g)
	return g
}

func (a *AggState) initGroups(groups []aggGroup) {
	for i, pt := range a.trans {
		if pt == nil {
			continue
		}
		groups[i] = aggGroup{
			transValue:   pt.initValue,
			transNull:    pt.initNull,
			noTransValue: pt.initNull,
		}
	}
}

// groupsFor returns the per-group states a set
// offset addresses; the hashed set has none
// until a row found or created its group.
func (a *AggState) groupsFor(setoff int) []aggGroup {
	if setoff == a.nsets {
		return a.hashCur
	}
	return a.groups[setoff]
}

// transition calls the transition function of pt
// with the inputs already in pt.fc and stores the
// new value in g.
func (a *AggState) transition(pt *aggTrans, g *aggGroup, setoff int, byref bool) error {
	a.cur = a.setMem[setoff]
	fc := pt.fc
	fc.Args[0] = datum.NullableDatum{Value: g.transValue, IsNull: g.transNull}
	v, err := fc.Invoke()
	if err != nil {
		return err
	}
	if byref {
		v = a.keepTransValue(g, v, fc.IsNull)
	}
	g.transValue, g.transNull = v, fc.IsNull
	return nil
}

// keepTransValue returns v as owned by the set's
// context and releases the expanded value it
// replaces. A read-write expanded result is moved
// into the context; any other by-reference result
// that is not the current transition value is
// copied there.
func (a *AggState) keepTransValue(g *aggGroup, v datum.Datum, isnull bool) datum.Datum {
	var nv *datum.Expanded
	if !isnull {
		switch {
		case datum.IsExpandedRW(v):
			nv, _ = datum.ExpandedOf(v)
			if nv.Owner() != a.cur {
				nv.Reparent(a.cur)
			}
		case g.transNull || !datum.Same(v, g.transValue):
			v = a.copyTransValue(v)
			nv, _ = datum.ExpandedOf(v)
		}
	}
	if g.transNull || !datum.IsExpandedRW(g.transValue) {
		return v
	}
	if old, _ := datum.ExpandedOf(g.transValue); old != nv {
		if o := old.Owner(); o != nil {
			o.Disown(old)
		}
		old.Release()
	}
	return v
}

// copyTransValue copies a by-reference value into
// the set's context. Expanded values are expanded
// again under a.cur.
func (a *AggState) copyTransValue(v datum.Datum) datum.Datum {
	if e, ok := datum.ExpandedOf(v); ok {
		return datum.Expand(a.cur, e.Value())
	}
	return datum.Copy(v)
}

// initGroup makes a copy of the first non-null
// input the transition value.
func (a *AggState) initGroup(pt *aggTrans, g *aggGroup, setoff int) {
	a.cur = a.setMem[setoff]
	v := pt.fc.Args[1].Value
	if !pt.byval {
		v = a.copyTransValue(v)
	}
	g.transValue, g.transNull, g.noTransValue = v, false, false
}

// Advance runs the transitions of the current
// phase for the input row in ec.Outer.
func (a *AggState) Advance(ec *ExprContext) error {
	ph := a.phase
	if ph == nil || ph.trans == nil {
		return pgerr.Invariant("no aggregate phase compiled")
	}
	if ph.doHash {
		if err := a.lookupHash(ec); err != nil {
			return err
		}
	}
	_, _, err := ph.trans.Eval(ec)
	return err
}

// Finalize computes the results of the current
// group of sort-based set into ec.
func (a *AggState) Finalize(ec *ExprContext, set int) error {
	if set < 0 || set >= a.nsets {
		return pgerr.Invariant("grouping set %d out of range", set)
	}
	if err := a.finalizeGroups(ec, a.groups[set], set); err != nil {
		return err
	}
	ec.GroupedCols = nil
	if set < len(a.phase.GroupingSets) {
		ec.GroupedCols = a.phase.GroupingSets[set]
	}
	return nil
}

// ResetGroup starts a new group in a
// sort-based set.
func (a *AggState) ResetGroup(set int) error {
	if set < 0 || set >= a.nsets {
		return pgerr.Invariant("grouping set %d out of range", set)
	}
	a.setMem[set].Reset()
	a.initGroups(a.groups[set])
	for _, pt := range a.trans {
		if pt == nil {
			continue
		}
		pt.haveLast = false
		if pt.sorted {
			pt.sorts[set].Reset()
		}
	}
	return nil
}

// Spilled returns the number of rows whose
// hashed group did not fit under HashLimit.
func (a *AggState) Spilled() int { return a.spilled }

// HashGroups returns the number of groups
// of the hashed set.
func (a *AggState) HashGroups() int { return len(a.hash.entries) }

// FinalizeHashGroup computes the results of
// hashed group i into ec and returns a slot
// holding the group's key columns.
func (a *AggState) FinalizeHashGroup(ec *ExprContext, i int) (*tuple.Slot, error) {
	if i < 0 || i >= len(a.hash.entries) {
		return nil, pgerr.Invariant("hash group %d out of range", i)
	}
	e := a.hash.entries[i]
	if err := a.finalizeGroups(ec, e.groups, a.nsets); err != nil {
		return nil, err
	}
	ec.GroupedCols = a.phase.HashCols
	return e.rep, nil
}

func (a *AggState) resetHash() {
	if a.nsets < len(a.setMem) {
		a.setMem[a.nsets].Reset()
	}
	a.hash = aggHashTable{buckets: make(map[uint32][]*aggHashEntry)}
	a.hashCur = nil
	a.spilled = 0
}

// ResetHash discards the hashed groups.
func (a *AggState) ResetHash() { a.resetHash() }

// lookupHash finds or creates the hashed group
// of the row in ec.Outer.
func (a *AggState) lookupHash(ec *ExprContext) error {
	ph := a.phase
	v, isnull, err := ph.hashProg.Eval(ec)
	if err != nil {
		return err
	}
	var h uint32
	if !isnull {
		h = v.Uint32()
	}
	saved := ec.Inner
	defer func() { ec.Inner = saved }()
	for _, e := range a.hash.buckets[h] {
		ec.Inner = e.rep
		eq, err := EvalQual(ph.eqProg, ec)
		if err != nil {
			return err
		}
		if eq {
			a.hashCur = e.groups
			return nil
		}
	}
	if a.HashLimit > 0 && len(a.hash.entries) >= a.HashLimit {
		a.hashCur = nil
		a.spilled++
		return nil
	}
	outer := ec.Outer
	if outer == nil {
		return errNoSlot(expr.SourceOuter)
	}
	rep := tuple.NewSlot(a.parent.Outer.Desc, tuple.Virtual)
	for i := range rep.IsNull {
		rep.IsNull[i] = true
	}
	for _, c := range ph.HashCols {
		if err := outer.GetSomeAttrs(c); err != nil {
			return err
		}
		rep.Values[c-1] = outer.Values[c-1]
		rep.IsNull[c-1] = outer.IsNull[c-1]
	}
	rep.ExecStoreVirtual()
	e := &aggHashEntry{rep: rep, groups: a.newGroups()}
	a.hash.buckets[h] = append(a.hash.buckets[h], e)
	a.hash.entries = append(a.hash.entries, e)
	a.hashCur = e.groups
	return nil
}

func (a *AggState) finalizeGroups(ec *ExprContext, groups []aggGroup, setoff int) error {
	for transno, pt := range a.trans {
		if pt == nil || !pt.sorted {
			continue
		}
		if err := a.processSorted(pt, &groups[transno], setoff); err != nil {
			return err
		}
	}
	if n := len(a.aggrefs); len(ec.AggValues) < n {
		ec.AggValues = append(ec.AggValues, make([]datum.Datum, n-len(ec.AggValues))...)
		ec.AggNulls = append(ec.AggNulls, make([]bool, n-len(ec.AggNulls))...)
	}
	a.cur = a.setMem[setoff]
	for _, f := range a.finals {
		g := &groups[f.aggref.TransNo]
		v, isnull, err := f.finish(g)
		if err != nil {
			return err
		}
		ec.AggValues[f.aggref.AggNo], ec.AggNulls[f.aggref.AggNo] = v, isnull
	}
	return nil
}

func (f *aggFinal) finish(g *aggGroup) (datum.Datum, bool, error) {
	switch {
	case f.serialfc != nil:
		if g.transNull && f.serialfc.Flinfo.Strict {
			return datum.Null, true, nil
		}
		f.serialfc.Args[0] = datum.NullableDatum{Value: g.transValue, IsNull: g.transNull}
		v, err := f.serialfc.Invoke()
		return v, f.serialfc.IsNull, err
	case f.finalfc != nil:
		if g.transNull && f.finalfi.Strict {
			return datum.Null, true, nil
		}
		f.finalfc.Args[0] = datum.NullableDatum{Value: g.transValue, IsNull: g.transNull}
		v, err := f.finalfc.Invoke()
		if err != nil {
			return datum.Null, true, err
		}
		return datum.MakeReadOnly(v), f.finalfc.IsNull, nil
	}
	return datum.MakeReadOnly(g.transValue), g.transNull, nil
}

// processSorted feeds the sorted input of pt to
// its transition function, skipping duplicates
// of a DISTINCT aggregate.
func (a *AggState) processSorted(pt *aggTrans, g *aggGroup, setoff int) error {
	ts := pt.sorts[setoff]
	if err := ts.PerformSort(); err != nil {
		return err
	}
	defer ts.Reset()
	strict := pt.fi.Strict
	var prev []datum.NullableDatum
	for {
		row, ok := ts.GetTuple()
		if !ok {
			return nil
		}
		if pt.aggref.Distinct && prev != nil {
			same, err := pt.sameInputs(prev, row)
			if err != nil {
				return err
			}
			if same {
				continue
			}
		}
		prev = row
		skip := false
		for i := 0; i < pt.numTransInputs; i++ {
			pt.fc.Args[1+i] = row[i]
			skip = skip || (strict && row[i].IsNull)
		}
		if skip {
			continue
		}
		if strict && g.noTransValue {
			a.initGroup(pt, g, setoff)
			continue
		}
		if strict && g.transNull {
			continue
		}
		if err := a.transition(pt, g, setoff, !pt.byval); err != nil {
			return err
		}
	}
}

// sameInputs compares the aggregated columns
// of two rows, with nulls equal to each other.
func (pt *aggTrans) sameInputs(x, y []datum.NullableDatum) (bool, error) {
	for i, fc := range pt.eqfns {
		eq, err := equalDatums(fc, x[i], y[i])
		if err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}

func equalDatums(fc *fmgr.CallInfo, x, y datum.NullableDatum) (bool, error) {
	if x.IsNull || y.IsNull {
		return x.IsNull && y.IsNull, nil
	}
	fc.Args[0], fc.Args[1] = x, y
	v, err := fc.Invoke()
	if err != nil {
		return false, err
	}
	return !fc.IsNull && v.Bool(), nil
}
