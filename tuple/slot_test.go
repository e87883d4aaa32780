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
	"testing"

	"github.com/lib/pq/oid"

	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/pgerr"
)

func testDesc() *Desc {
	return NewDesc(oid.T_record,
		Attr{Name: "a", Type: oid.T_int4, Len: 4, ByVal: true},
		Attr{Name: "b", Type: oid.T_text, Len: -1},
		Attr{Name: "c", Type: oid.T_int4, Len: 4, ByVal: true},
	)
}

func TestHeapDeformsLazily(t *testing.T) {
	s := NewSlot(testDesc(), Heap)
	s.StoreTuple([]datum.NullableDatum{
		{Value: datum.FromInt32(1)},
		{Value: datum.FromText("x")},
	}, SysAttrs{TID: 42, Xmin: 7})
	if s.NValid != 0 {
		t.Fatal("stored tuple deformed eagerly")
	}
	if err := s.GetSomeAttrs(2); err != nil {
		t.Fatal(err)
	}
	if s.NValid != 2 || s.Values[0].Int32() != 1 {
		t.Fatalf("nvalid %d", s.NValid)
	}
	if err := s.GetSomeAttrs(1); err != nil || s.Deformed != 1 {
		t.Fatalf("re-deformed: %d %v", s.Deformed, err)
	}
	// column 3 is missing from the stored tuple
	v, isnull, err := s.GetAttr(3)
	if err != nil || !isnull || v.Int64() != 0 {
		t.Fatalf("missing column: %v %v %v", v, isnull, err)
	}
	tid, isnull, err := s.GetAttr(SelfItemPointerAttr)
	if err != nil || isnull || tid.Int64() != 42 {
		t.Fatalf("ctid: %v %v %v", tid, isnull, err)
	}
	xmin, _, _ := s.GetAttr(MinTransactionAttr)
	if xmin.Uint32() != 7 {
		t.Errorf("xmin %d", xmin.Uint32())
	}
	s.TableOid = 1259
	toid, _, err := s.GetAttr(TableOidAttr)
	if err != nil || toid.Oid() != 1259 {
		t.Errorf("tableoid %v %v", toid, err)
	}
}

func TestVirtualSlot(t *testing.T) {
	s := NewSlot(testDesc(), Virtual)
	s.StoreVirtual([]datum.Datum{datum.FromInt32(5), datum.FromText("q")}, []bool{false, true})
	if s.NValid != 3 {
		t.Fatalf("nvalid %d", s.NValid)
	}
	if !s.IsNull[1] || !s.IsNull[2] || s.IsNull[0] {
		t.Fatalf("nulls %v", s.IsNull)
	}
	if err := s.Ops.GetSomeAttrs(s, 1); !pgerr.IsInvariant(err) {
		t.Errorf("virtual deform: %v", err)
	}
	if _, _, err := s.GetAttr(SelfItemPointerAttr); pgerr.GetCode(err) != pgerr.CodeFeatureNotSupported {
		t.Errorf("virtual sysattr: %v", err)
	}
	row, err := s.Row()
	if err != nil || len(row) != 3 || row[0].Value.Int32() != 5 {
		t.Errorf("row %v %v", row, err)
	}
	s.Clear()
	if !s.Empty || s.NValid != 0 {
		t.Error("clear")
	}
}

func TestDroppedColumnsReadNull(t *testing.T) {
	d := testDesc()
	d.Attrs[1].Dropped = true
	s := NewSlot(d, Minimal)
	s.StoreTuple([]datum.NullableDatum{
		{Value: datum.FromInt32(1)},
		{Value: datum.FromText("gone")},
		{Value: datum.FromInt32(3)},
	}, SysAttrs{})
	if err := s.GetAllAttrs(); err != nil {
		t.Fatal(err)
	}
	if !s.IsNull[1] {
		t.Error("dropped column should read as null")
	}
	if _, _, err := s.GetAttr(SelfItemPointerAttr); err == nil {
		t.Error("minimal slot returned a system column")
	}
}
