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

// Package expr defines the typed expression trees
// produced by the planner and consumed by the
// expression compiler in package vm.
//
// Trees are fully resolved: every function and
// operator carries the OID of the routine that
// implements it, and every node knows its result type.
package expr

import (
	"fmt"
	"strings"

	"github.com/lib/pq/oid"
)

// Visitor is an interface that must
// be satisfied by the argument to Walk.
//
// A Visitor's Visit method is invoked for each node encountered by Walk. If
// the result visitor w is not nil, Walk visits each of the children of node
// with the visitor w, followed by a call of w.Visit(nil).
//
// (see also: ast.Visitor)
type Visitor interface {
	Visit(Node) Visitor
}

// Walk traverses a tree in depth-first order: It starts by calling
// v.Visit(node); node must not be nil. If the visitor w returned by
// v.Visit(node) is not nil, Walk is invoked recursively with visitor w for
// each of the non-nil children of node, followed by a call of w.Visit(nil).
func Walk(v Visitor, n Node) {
	w := v.Visit(n)
	if w != nil {
		n.walk(w)
		w.Visit(nil)
	}
}

// WalkFunc is a Visitor built from a function.
// Returning false stops descent below the node.
type WalkFunc func(Node) bool

// Visit implements Visitor.
func (f WalkFunc) Visit(n Node) Visitor {
	if n == nil || !f(n) {
		return nil
	}
	return f
}

func walkList(v Visitor, lst []Node) {
	for i := range lst {
		if lst[i] != nil {
			Walk(v, lst[i])
		}
	}
}

// Printable is implemented by every node.
type Printable interface {
	// text should write the textual representation
	// of this node to dst, and should redact itself
	// if it is a constant and redact is true
	text(dst *strings.Builder, redact bool)
}

// Node is an expression tree node.
type Node interface {
	Printable
	// Type returns the OID of the type
	// the node evaluates to.
	Type() oid.Oid

	walk(Visitor)
}

// ToString returns the string
// representation of a node and its children.
func ToString(p Printable) string {
	if p == nil {
		return "<nil>"
	}
	var dst strings.Builder
	p.text(&dst, false)
	return dst.String()
}

// ToRedacted returns the string
// representation of a node and its children,
// but with all constant values replaced
// with opaque hashes of themselves.
func ToRedacted(p Printable) string {
	if p == nil {
		return "<nil>"
	}
	var dst strings.Builder
	p.text(&dst, true)
	return dst.String()
}

// TypeName returns a printable name for a type OID.
func TypeName(t oid.Oid) string {
	if name, ok := oid.TypeName[t]; ok {
		name = strings.ToLower(name)
		if strings.HasPrefix(name, "_") {
			return name[1:] + "[]"
		}
		return name
	}
	return fmt.Sprintf("type%d", uint32(t))
}

func listText(dst *strings.Builder, lst []Node, redact bool) {
	for i := range lst {
		if i > 0 {
			dst.WriteString(", ")
		}
		if lst[i] == nil {
			dst.WriteString("<omitted>")
			continue
		}
		lst[i].text(dst, redact)
	}
}
