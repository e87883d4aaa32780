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
	"sort"
	"sync"

	"github.com/lib/pq/oid"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/fmgr"
	"github.com/postgres/postgres-sub049/pgerr"
	"github.com/postgres/postgres-sub049/tuple"
)

// Memory is an in-memory Catalog. It is safe
// for concurrent use; independent expression
// states may be compiled against it in parallel.
type Memory struct {
	mu      sync.RWMutex
	types   map[oid.Oid]*TypeInfo
	funcs   map[oid.Oid]*fmgr.Info
	aggs    map[oid.Oid]*AggInfo
	domains map[oid.Oid][]DomainConstraint
	rows    map[oid.Oid]*tuple.Desc
	blessed []*tuple.Desc
	revoked map[oid.Oid]bool
	nextOid oid.Oid
}

var _ Catalog = (*Memory)(nil)

// firstUserOid is the first OID handed out by
// NewOid; builtin objects live below it.
const firstUserOid = 16384

// NewMemory returns a catalog preloaded with
// the builtin types, functions and aggregates.
func NewMemory() *Memory {
	m := &Memory{
		types:   make(map[oid.Oid]*TypeInfo),
		funcs:   make(map[oid.Oid]*fmgr.Info),
		aggs:    make(map[oid.Oid]*AggInfo),
		domains: make(map[oid.Oid][]DomainConstraint),
		rows:    make(map[oid.Oid]*tuple.Desc),
		revoked: make(map[oid.Oid]bool),
		nextOid: firstUserOid,
	}
	m.registerTypes()
	m.registerBuiltins()
	m.registerAggregates()
	return m
}

// NewOid allocates an unused object identifier.
func (m *Memory) NewOid() oid.Oid {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.newOid()
}

func (m *Memory) newOid() oid.Oid {
	for {
		o := m.nextOid
		m.nextOid++
		if _, ok := m.types[o]; ok {
			continue
		}
		if _, ok := m.funcs[o]; ok {
			continue
		}
		return o
	}
}

func (m *Memory) Type(typ oid.Oid) (*TypeInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.types[typ]
	if !ok {
		return nil, pgerr.Newf(pgerr.CodeUndefinedObject, "cache lookup failed for type %d", typ)
	}
	return t, nil
}

func (m *Memory) Func(fn oid.Oid) (*fmgr.Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fi, ok := m.funcs[fn]
	if !ok {
		return nil, pgerr.Newf(pgerr.CodeUndefinedFunction, "cache lookup failed for function %d", fn)
	}
	c := *fi
	c.Extra = nil
	c.Expr = nil
	return &c, nil
}

// FuncByName returns the first function named name.
func (m *Memory) FuncByName(name string) (*fmgr.Info, error) {
	m.mu.RLock()
	keys := maps.Keys(m.funcs)
	slices.Sort(keys)
	found := oid.Oid(0)
	for _, k := range keys {
		if m.funcs[k].Name == name {
			found = k
			break
		}
	}
	m.mu.RUnlock()
	if found == 0 {
		return nil, pgerr.Newf(pgerr.CodeUndefinedFunction, "function %s does not exist", name)
	}
	return m.Func(found)
}

func (m *Memory) Aggregate(fn oid.Oid) (*AggInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.aggs[fn]
	if !ok {
		return nil, pgerr.Newf(pgerr.CodeUndefinedFunction, "cache lookup failed for aggregate %d", fn)
	}
	return a, nil
}

func (m *Memory) DomainConstraints(typ oid.Oid) ([]DomainConstraint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.types[typ]
	if !ok || !t.IsDomain() {
		return nil, pgerr.Newf(pgerr.CodeUndefinedObject, "type %d is not a domain", typ)
	}
	return slices.Clone(m.domains[typ]), nil
}

func (m *Memory) RowDesc(typ oid.Oid, typmod int32) (*tuple.Desc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if typ == oid.T_record {
		if typmod < 0 || int(typmod) >= len(m.blessed) {
			return nil, pgerr.Newf(pgerr.CodeDatatypeMismatch, "record type has not been registered")
		}
		return m.blessed[typmod], nil
	}
	if t, ok := m.types[typ]; ok && t.IsDomain() {
		typ = t.BaseType
	}
	d, ok := m.rows[typ]
	if !ok {
		return nil, pgerr.Newf(pgerr.CodeDatatypeMismatch, "type %s is not composite", expr.TypeName(typ))
	}
	return d, nil
}

func (m *Memory) Bless(d *tuple.Desc) *tuple.Desc {
	if d.TypeID != oid.T_record {
		return d
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.TypMod >= 0 && int(d.TypMod) < len(m.blessed) && m.blessed[d.TypMod] == d {
		return d
	}
	for _, b := range m.blessed {
		if sameColumns(b, d) {
			return b
		}
	}
	c := d.Copy()
	c.TypMod = int32(len(m.blessed))
	m.blessed = append(m.blessed, c)
	return c
}

func sameColumns(a, b *tuple.Desc) bool {
	if !a.EqualShape(b) {
		return false
	}
	for i := range a.Attrs {
		if a.Attrs[i].Name != b.Attrs[i].Name {
			return false
		}
	}
	return true
}

func (m *Memory) CheckExecute(fn oid.Oid) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.revoked[fn] {
		name := "?"
		if fi, ok := m.funcs[fn]; ok {
			name = fi.Name
		}
		return pgerr.Newf(pgerr.CodeInsufficientPriv, "permission denied for function %s", name)
	}
	return nil
}

// Revoke removes the EXECUTE privilege on fn.
func (m *Memory) Revoke(fn oid.Oid) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[fn] = true
}

// Grant restores the EXECUTE privilege on fn.
func (m *Memory) Grant(fn oid.Oid) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.revoked, fn)
}

// AddType registers or replaces a type.
func (m *Memory) AddType(t *TypeInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[t.OID] = t
}

// AddFunc registers or replaces a function.
func (m *Memory) AddFunc(fi *fmgr.Info) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs[fi.OID] = fi
}

// AddAggregate registers an aggregate.
func (m *Memory) AddAggregate(a *AggInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggs[a.FnOid] = a
}

// AddDomain registers a domain over base.
// The constraints are stored NOT NULL first,
// then CHECK constraints ordered by name.
func (m *Memory) AddDomain(typ oid.Oid, name string, base oid.Oid, cons ...DomainConstraint) error {
	bt, err := m.Type(base)
	if err != nil {
		return err
	}
	t := *bt
	t.OID = typ
	t.Name = name
	t.BaseType = base
	t.Array = 0
	cons = slices.Clone(cons)
	sort.SliceStable(cons, func(i, j int) bool {
		if cons[i].Kind != cons[j].Kind {
			return cons[i].Kind == ConstraintNotNull
		}
		return cons[i].Name < cons[j].Name
	})
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[typ] = &t
	m.domains[typ] = cons
	return nil
}

// AddRowType registers a named composite type.
func (m *Memory) AddRowType(typ oid.Oid, name string, attrs ...tuple.Attr) *tuple.Desc {
	d := tuple.NewDesc(typ, attrs...)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[typ] = &TypeInfo{
		OID:       typ,
		Name:      name,
		Len:       -1,
		Align:     'd',
		Input:     FnRecordIn,
		Output:    FnRecordOut,
		Composite: true,
	}
	m.rows[typ] = d
	return d
}

// AlterRowType replaces the columns of a
// composite type. The new descriptor has a new
// identifier so that cached copies notice.
func (m *Memory) AlterRowType(typ oid.Oid, attrs ...tuple.Attr) (*tuple.Desc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.rows[typ]
	if !ok {
		return nil, pgerr.Newf(pgerr.CodeDatatypeMismatch, "type %s is not composite", expr.TypeName(typ))
	}
	d := &tuple.Desc{TypeID: typ, TypMod: old.TypMod, Attrs: attrs, ID: tuple.NextID()}
	m.rows[typ] = d
	return d, nil
}

// Attr returns a column description for a
// column of type typ, filling in the storage
// properties from the catalog.
func (m *Memory) Attr(name string, typ oid.Oid) tuple.Attr {
	a := tuple.Attr{Name: name, Type: typ, TypMod: -1, Len: -1, Align: 'i'}
	if t, err := m.Type(typ); err == nil {
		a.Len = t.Len
		a.ByVal = t.ByVal
		a.Align = t.Align
	}
	return a
}
