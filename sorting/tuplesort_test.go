// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.



package sorting

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/postgres/postgres-sub049/datum"
)

func intCmp(a, b datum.Datum) (int, error) {
	x, y := a.Int64(), b.Int64()
	switch {
	case x < y:
		return -1, nil
	case x > y:
		return 1, nil
	}
	return 0, nil
}

func drainInts(t *testing.T, ts *Tuplesort) []string {
	t.Helper()
	if err := ts.PerformSort(); err != nil {
		t.Fatal(err)
	}
	var out []string
	for {
		v, isnull, ok := ts.GetDatum()
		if !ok {
			return out
		}
		if isnull {
			out = append(out, "null")
		} else {
			out = append(out, v.String())
		}
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDatumSortNulls(t *testing.T) {
	testcases := []struct {
		dir   Direction
		nulls NullsOrder
		want  []string
	}{
		{Ascending, NullsLast, []string{"1", "2", "3", "null"}},
		{Ascending, NullsFirst, []string{"null", "1", "2", "3"}},
		{Descending, NullsLast, []string{"3", "2", "1", "null"}},
		{Descending, NullsFirst, []string{"null", "3", "2", "1"}},
	}
	for i := range testcases {
		tc := &testcases[i]
		ts := NewDatumSort(intCmp, tc.dir, tc.nulls)
		ts.PutDatum(datum.FromInt64(2), false)
		ts.PutDatum(datum.Null, true)
		ts.PutDatum(datum.FromInt64(3), false)
		ts.PutDatum(datum.FromInt64(1), false)
		got := drainInts(t, ts)
		if !equal(got, tc.want) {
			t.Errorf("case %d: got %v, want %v", i, got, tc.want)
		}
	}
}

func TestSortIsStable(t *testing.T) {
	ts := NewTuplesort([]Key{{Col: 0, Compare: intCmp, Direction: Ascending, Nulls: NullsLast}})
	for i := 0; i < 100; i++ {
		row := []datum.NullableDatum{
			{Value: datum.FromInt64(int64(i % 3))},
			{Value: datum.FromInt64(int64(i))},
		}
		if err := ts.PutTuple(row); err != nil {
			t.Fatal(err)
		}
	}
	if err := ts.PerformSort(); err != nil {
		t.Fatal(err)
	}
	prevKey, prevSeq := int64(-1), int64(-1)
	n := 0
	for {
		row, ok := ts.GetTuple()
		if !ok {
			break
		}
		n++
		k, s := row[0].Value.Int64(), row[1].Value.Int64()
		if k < prevKey {
			t.Fatalf("key %d after %d", k, prevKey)
		}
		if k == prevKey && s < prevSeq {
			t.Fatalf("row %d before %d within key %d", prevSeq, s, k)
		}
		prevKey, prevSeq = k, s
	}
	if n != 100 {
		t.Fatalf("got %d rows", n)
	}
}

func TestMultiKey(t *testing.T) {
	keys := []Key{
		{Col: 1, Compare: intCmp, Direction: Descending, Nulls: NullsLast},
		{Col: 0, Compare: intCmp, Direction: Ascending, Nulls: NullsFirst},
	}
	ts := NewTuplesort(keys)
	rows := [][2]int64{{1, 5}, {2, 7}, {0, 5}, {9, 7}, {3, 1}}
	for _, r := range rows {
		ts.PutTuple([]datum.NullableDatum{{Value: datum.FromInt64(r[0])}, {Value: datum.FromInt64(r[1])}})
	}
	if err := ts.PerformSort(); err != nil {
		t.Fatal(err)
	}
	want := [][2]int64{{2, 7}, {9, 7}, {0, 5}, {1, 5}, {3, 1}}
	for i := range want {
		row, ok := ts.GetTuple()
		if !ok {
			t.Fatalf("missing row %d", i)
		}
		got := [2]int64{row[0].Value.Int64(), row[1].Value.Int64()}
		if got != want[i] {
			t.Errorf("row %d: got %v, want %v", i, got, want[i])
		}
	}
}

func TestBoundedSort(t *testing.T) {
	ts := NewDatumSort(intCmp, Ascending, NullsLast)
	ts.SetBound(5)
	var all []int
	for i := 0; i < 1000; i++ {
		v := rand.Intn(10000)
		all = append(all, v)
		ts.PutDatum(datum.FromInt64(int64(v)), false)
		if ts.Len() > 5 {
			t.Fatalf("bounded sort holds %d rows", ts.Len())
		}
	}
	sort.Ints(all)
	if err := ts.PerformSort(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		v, _, ok := ts.GetDatum()
		if !ok {
			t.Fatalf("missing row %d", i)
		}
		if int(v.Int64()) != all[i] {
			t.Errorf("row %d: got %d, want %d", i, v.Int64(), all[i])
		}
	}
	if _, _, ok := ts.GetDatum(); ok {
		t.Fatal("expected end of rows")
	}
}

func TestCompareError(t *testing.T) {
	boom := errors.New("boom")
	ts := NewDatumSort(func(a, b datum.Datum) (int, error) {
		return 0, boom
	}, Ascending, NullsLast)
	ts.PutDatum(datum.FromInt64(1), false)
	ts.PutDatum(datum.FromInt64(2), false)
	if err := ts.PerformSort(); !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
}

func TestResetAndRescan(t *testing.T) {
	ts := NewDatumSort(intCmp, Ascending, NullsLast)
	ts.PutDatum(datum.FromInt64(2), false)
	ts.PutDatum(datum.FromInt64(1), false)
	first := drainInts(t, ts)
	ts.Rescan()
	var again []string
	for {
		v, _, ok := ts.GetDatum()
		if !ok {
			break
		}
		again = append(again, v.String())
	}
	if !equal(first, again) {
		t.Fatalf("rescan: %v != %v", again, first)
	}
	if err := ts.PutDatum(datum.FromInt64(3), false); err == nil {
		t.Fatal("expected error adding after sort")
	}
	ts.Reset()
	ts.PutDatum(datum.FromInt64(7), false)
	if got := drainInts(t, ts); !equal(got, []string{"7"}) {
		t.Fatalf("after reset: %v", got)
	}
}

func TestCompareRows(t *testing.T) {
	ts := NewDatumSort(intCmp, Descending, NullsFirst)
	a := []datum.NullableDatum{{Value: datum.FromInt64(1)}}
	b := []datum.NullableDatum{{Value: datum.FromInt64(1)}}
	n := []datum.NullableDatum{{IsNull: true}}
	if c, _ := ts.Compare(a, b); c != 0 {
		t.Errorf("equal rows compare %d", c)
	}
	if c, _ := ts.Compare(n, a); c >= 0 {
		t.Errorf("null should sort first, got %d", c)
	}
	if c, _ := ts.Compare(n, n); c != 0 {
		t.Errorf("nulls compare %d", c)
	}
}
