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

package tuple

import (
	"github.com/lib/pq/oid"

	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/pgerr"
)

// SlotOps is the access-method table of a slot.
type SlotOps interface {
	// Name identifies the slot kind.
	Name() string
	// GetSomeAttrs makes at least the first
	// natts columns valid in Values/IsNull.
	GetSomeAttrs(s *Slot, natts int) error
	// GetSysAttr returns a system column.
	GetSysAttr(s *Slot, attnum int) (datum.Datum, bool, error)
	// Materialize makes the slot independent
	// of any underlying storage.
	Materialize(s *Slot)
}

// SysAttrs are the system columns of a stored tuple.
type SysAttrs struct {
	TID  uint64
	Xmin uint32
	Xmax uint32
	Cmin uint32
	Cmax uint32
}

// Slot holds a single tuple.
type Slot struct {
	Desc     *Desc
	Ops      SlotOps
	Values   []datum.Datum
	IsNull   []bool
	NValid   int
	Empty    bool
	TableOid oid.Oid

	// stored tuple for non-virtual slots
	stored []datum.NullableDatum
	sys    SysAttrs

	// Deformed counts calls into the
	// deforming routine.
	Deformed int
}

var (
	// Virtual slots hold already-deformed values.
	Virtual SlotOps = virtualOps{}
	// Heap slots hold a stored tuple that is
	// deformed lazily and has system columns.
	Heap SlotOps = heapOps{}
	// Minimal slots hold a stored tuple
	// without system columns.
	Minimal SlotOps = minimalOps{}
)

// NewSlot creates an empty slot.
func NewSlot(desc *Desc, ops SlotOps) *Slot {
	n := desc.NumAttrs()
	return &Slot{
		Desc:   desc,
		Ops:    ops,
		Values: make([]datum.Datum, n),
		IsNull: make([]bool, n),
		Empty:  true,
	}
}

// Clear empties the slot.
func (s *Slot) Clear() {
	for i := range s.Values {
		s.Values[i] = datum.Null
		s.IsNull[i] = true
	}
	s.NValid = 0
	s.stored = nil
	s.Empty = true
}

// StoreVirtual copies values into the slot and
// marks every column valid.
func (s *Slot) StoreVirtual(values []datum.Datum, nulls []bool) {
	for i := range s.Values {
		if i < len(values) {
			s.Values[i] = values[i]
			s.IsNull[i] = i < len(nulls) && nulls[i]
		} else {
			s.Values[i] = datum.Null
			s.IsNull[i] = true
		}
	}
	s.NValid = len(s.Values)
	s.stored = nil
	s.Empty = false
}

// ExecStoreVirtual marks a slot whose Values and
// IsNull were filled in place as valid.
func (s *Slot) ExecStoreVirtual() {
	s.NValid = len(s.Values)
	s.Empty = false
}

// StoreTuple stores a tuple in a non-virtual slot.
// Nothing is deformed until columns are requested.
func (s *Slot) StoreTuple(row []datum.NullableDatum, sys SysAttrs) {
	s.stored = row
	s.sys = sys
	s.NValid = 0
	s.Empty = false
}

// GetSomeAttrs ensures that at least n columns are valid.
func (s *Slot) GetSomeAttrs(n int) error {
	if s.NValid >= n {
		return nil
	}
	return s.Ops.GetSomeAttrs(s, n)
}

// GetAttr returns the column with 1-based number n,
// deforming as needed.
func (s *Slot) GetAttr(n int) (datum.Datum, bool, error) {
	if n <= 0 {
		if n == TableOidAttr {
			return datum.FromOid(s.TableOid), false, nil
		}
		return s.Ops.GetSysAttr(s, n)
	}
	if n > len(s.Values) {
		return datum.Null, true, pgerr.Invariant("invalid attribute number %d", n)
	}
	if err := s.GetSomeAttrs(n); err != nil {
		return datum.Null, true, err
	}
	return s.Values[n-1], s.IsNull[n-1], nil
}

// GetAllAttrs deforms every column.
func (s *Slot) GetAllAttrs() error {
	return s.GetSomeAttrs(len(s.Values))
}

// Row returns a copy of every column.
func (s *Slot) Row() ([]datum.NullableDatum, error) {
	if err := s.GetAllAttrs(); err != nil {
		return nil, err
	}
	row := make([]datum.NullableDatum, len(s.Values))
	for i := range row {
		row[i] = datum.NullableDatum{Value: s.Values[i], IsNull: s.IsNull[i]}
	}
	return row, nil
}

// Materialize detaches the slot from stored data.
func (s *Slot) Materialize() { s.Ops.Materialize(s) }

// SysAttrs returns the stored tuple's system columns.
func (s *Slot) SysAttrs() SysAttrs { return s.sys }

type virtualOps struct{}

func (virtualOps) Name() string { return "virtual" }

func (virtualOps) GetSomeAttrs(s *Slot, natts int) error {
	return pgerr.Invariant("getsomeattrs is not required to be called on a virtual tuple table slot")
}

func (virtualOps) GetSysAttr(s *Slot, attnum int) (datum.Datum, bool, error) {
	return datum.Null, true, pgerr.Newf(pgerr.CodeFeatureNotSupported,
		"cannot retrieve a system column in this context")
}

func (virtualOps) Materialize(s *Slot) {}

// deform copies stored columns into Values
// up to natts. Columns missing from a stored
// tuple (added after it was written) read as null.
func deform(s *Slot, natts int) error {
	if s.Empty {
		return pgerr.Invariant("cannot deform an empty slot")
	}
	s.Deformed++
	for i := s.NValid; i < natts; i++ {
		if i < len(s.stored) && !s.Desc.Attrs[i].Dropped {
			s.Values[i] = s.stored[i].Value
			s.IsNull[i] = s.stored[i].IsNull
		} else {
			s.Values[i] = datum.Null
			s.IsNull[i] = true
		}
	}
	s.NValid = natts
	return nil
}

type heapOps struct{}

func (heapOps) Name() string { return "heap" }

func (heapOps) GetSomeAttrs(s *Slot, natts int) error { return deform(s, natts) }

func (heapOps) GetSysAttr(s *Slot, attnum int) (datum.Datum, bool, error) {
	if s.Empty {
		return datum.Null, true, pgerr.Invariant("cannot retrieve a system column from an empty slot")
	}
	switch attnum {
	case SelfItemPointerAttr:
		return datum.FromInt64(int64(s.sys.TID)), false, nil
	case MinTransactionAttr:
		return datum.FromUint32(s.sys.Xmin), false, nil
	case MaxTransactionAttr:
		return datum.FromUint32(s.sys.Xmax), false, nil
	case MinCommandAttr:
		return datum.FromUint32(s.sys.Cmin), false, nil
	case MaxCommandAttr:
		return datum.FromUint32(s.sys.Cmax), false, nil
	}
	return datum.Null, true, pgerr.Invariant("invalid attribute number %d", attnum)
}

func (heapOps) Materialize(s *Slot) {
	if s.stored != nil {
		_ = deform(s, len(s.Values))
		s.stored = nil
	}
}

type minimalOps struct{}

func (minimalOps) Name() string { return "minimal" }

func (minimalOps) GetSomeAttrs(s *Slot, natts int) error { return deform(s, natts) }

func (minimalOps) GetSysAttr(s *Slot, attnum int) (datum.Datum, bool, error) {
	return datum.Null, true, pgerr.Newf(pgerr.CodeFeatureNotSupported,
		"minimal tuple table slot does not have system attributes")
}

func (minimalOps) Materialize(s *Slot) { heapOps{}.Materialize(s) }
