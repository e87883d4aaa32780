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
	"fmt"

	"github.com/postgres/postgres-sub049/mcxt"
)

// Expanded is a mutable in-memory representation
// of a by-reference value (an array or a record).
// It is reachable through two handles: a read-write
// handle, through which functions may modify the
// object in place, and a read-only handle.
type Expanded struct {
	value    any // *Array or *Record
	owner    *mcxt.Context
	rw, ro   ExpandedHandle
	released bool
}

// ExpandedHandle is the reference stored in a
// Datum that points at an expanded object.
type ExpandedHandle struct {
	obj      *Expanded
	readOnly bool
}

func (h *ExpandedHandle) String() string {
	mode := "rw"
	if h.readOnly {
		mode = "ro"
	}
	return fmt.Sprintf("expanded[%s]%v", mode, h.obj.value)
}

// Expand creates an expanded object holding a copy
// of v (an *Array or *Record) owned by ctx and
// returns its read-write handle.
func Expand(ctx *mcxt.Context, v any) Datum {
	switch x := v.(type) {
	case *Array:
		v = x.Copy()
	case *Record:
		v = x.Copy()
	default:
		panic(fmt.Sprintf("datum.Expand: cannot expand %T", v))
	}
	e := &Expanded{value: v, owner: ctx}
	e.rw = ExpandedHandle{obj: e}
	e.ro = ExpandedHandle{obj: e, readOnly: true}
	if ctx != nil {
		ctx.Own(e)
	}
	return Datum{ref: &e.rw}
}

// Release implements mcxt.Owned. A released
// object must not be accessed again.
func (e *Expanded) Release() {
	e.released = true
}

// Released reports whether the owning context
// has been reset since the object was created.
func (e *Expanded) Released() bool { return e.released }

// Owner returns the owning context.
func (e *Expanded) Owner() *mcxt.Context { return e.owner }

// Reparent transfers ownership to ctx.
func (e *Expanded) Reparent(ctx *mcxt.Context) {
	if e.owner == ctx {
		return
	}
	mcxt.Transfer(e, e.owner, ctx)
	e.owner = ctx
}

// Value returns the underlying *Array or *Record.
func (e *Expanded) Value() any { return e.value }

// ExpandedOf returns the expanded object d refers to.
func ExpandedOf(d Datum) (*Expanded, bool) {
	h, ok := d.ref.(*ExpandedHandle)
	if !ok {
		return nil, false
	}
	return h.obj, true
}

// IsExpandedRW reports whether d is a read-write
// handle to an expanded object.
func IsExpandedRW(d Datum) bool {
	h, ok := d.ref.(*ExpandedHandle)
	return ok && !h.readOnly
}

// IsExpandedRO reports whether d is a read-only
// handle to an expanded object.
func IsExpandedRO(d Datum) bool {
	h, ok := d.ref.(*ExpandedHandle)
	return ok && h.readOnly
}

// MakeReadOnly converts a read-write handle into
// the read-only handle of the same object.
// Every other value is returned unchanged.
func MakeReadOnly(d Datum) Datum {
	if h, ok := d.ref.(*ExpandedHandle); ok && !h.readOnly {
		return Datum{ref: &h.obj.ro}
	}
	return d
}

// ArrayOf returns the array d refers to, whether
// flat or expanded. The result must not be
// modified unless d is a read-write handle.
func ArrayOf(d Datum) (*Array, error) {
	switch r := d.ref.(type) {
	case *Array:
		return r, nil
	case *ExpandedHandle:
		if r.obj.released {
			return nil, fmt.Errorf("datum: use of released expanded array")
		}
		if a, ok := r.obj.value.(*Array); ok {
			return a, nil
		}
	}
	return nil, fmt.Errorf("datum: %T is not an array", d.ref)
}

// RecordOf returns the record d refers to,
// whether flat or expanded.
func RecordOf(d Datum) (*Record, error) {
	switch r := d.ref.(type) {
	case *Record:
		return r, nil
	case *ExpandedHandle:
		if r.obj.released {
			return nil, fmt.Errorf("datum: use of released expanded record")
		}
		if rec, ok := r.obj.value.(*Record); ok {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("datum: %T is not a record", d.ref)
}

// Flatten returns a flat copy of an expanded value;
// other values are returned unchanged.
func Flatten(d Datum) Datum {
	h, ok := d.ref.(*ExpandedHandle)
	if !ok {
		return d
	}
	switch v := h.obj.value.(type) {
	case *Array:
		return Datum{ref: v.Copy()}
	case *Record:
		return Datum{ref: v.Copy()}
	}
	return d
}

// Copy returns a copy of d that shares no mutable
// storage with it. Expanded values are flattened;
// strings and unknown references are returned as is.
func Copy(d Datum) Datum {
	switch r := d.ref.(type) {
	case []byte:
		return Datum{word: d.word, ref: append([]byte(nil), r...)}
	case *Array:
		return Datum{word: d.word, ref: r.Copy()}
	case *Record:
		return Datum{word: d.word, ref: r.Copy()}
	case *ExpandedHandle:
		return Flatten(d)
	}
	return d
}
