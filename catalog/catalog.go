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

// Package catalog is the facade through which the
// expression compiler resolves types, functions,
// aggregates, domain constraints and row types.
//
// Memory is a self-contained implementation
// preloaded with a builtin function set.
package catalog

import (
	"github.com/lib/pq/oid"

	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/fmgr"
	"github.com/postgres/postgres-sub049/tuple"
)

// Catalog resolves metadata for the compiler.
type Catalog interface {
	// Type returns the description of type typ.
	Type(typ oid.Oid) (*TypeInfo, error)
	// Func returns a new descriptor for function fn.
	// Each call returns a distinct *fmgr.Info so that
	// per-call-site caches are not shared.
	Func(fn oid.Oid) (*fmgr.Info, error)
	// Aggregate returns the definition of aggregate fn.
	Aggregate(fn oid.Oid) (*AggInfo, error)
	// DomainConstraints returns the constraints of
	// domain typ: NOT NULL first, then CHECK
	// constraints ordered by name.
	DomainConstraints(typ oid.Oid) ([]DomainConstraint, error)
	// RowDesc returns the descriptor of a composite
	// type. Anonymous record types are identified
	// by the typmod assigned by Bless.
	RowDesc(typ oid.Oid, typmod int32) (*tuple.Desc, error)
	// Bless registers an anonymous record
	// descriptor so that RowDesc can find it.
	Bless(d *tuple.Desc) *tuple.Desc
	// CheckExecute fails if the current user
	// may not execute function fn.
	CheckExecute(fn oid.Oid) error
}

// TypeInfo describes a type.
type TypeInfo struct {
	OID   oid.Oid
	Name  string
	Len   int16 // -1 for variable length
	ByVal bool
	Align byte

	Input  oid.Oid
	Output oid.Oid

	// Elem is the element type of an
	// array (or array-like) type.
	Elem oid.Oid
	// Array is the array type whose
	// elements are this type.
	Array oid.Oid

	// BaseType is set for domains.
	BaseType oid.Oid
	// Composite is set for row types.
	Composite bool

	Subscript *SubscriptRoutines

	EqFunc      oid.Oid
	CmpFunc     oid.Oid
	HashFunc    oid.Oid
	HashExtFunc oid.Oid
}

// IsDomain reports whether t is a domain.
func (t *TypeInfo) IsDomain() bool { return t.BaseType != 0 }

// ConstraintKind is the kind of a domain constraint.
type ConstraintKind uint8

const (
	ConstraintNotNull ConstraintKind = iota
	ConstraintCheck
)

// DomainConstraint is one constraint of a domain.
// Check reads the tested value through an
// expr.CoerceToDomainValue.
type DomainConstraint struct {
	Name  string
	Kind  ConstraintKind
	Check expr.Node
}

// AggInfo describes an aggregate function.
type AggInfo struct {
	FnOid      oid.Oid
	Name       string
	TransFn    oid.Oid
	FinalFn    oid.Oid
	CombineFn  oid.Oid
	SerialFn   oid.Oid
	DeserialFn oid.Oid
	TransType  oid.Oid
	// InitVal is the text form of the initial
	// transition value; HasInit is false when
	// the initial value is null.
	InitVal string
	HasInit bool
}
