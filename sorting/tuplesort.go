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
	"fmt"

	"github.com/google/btree"

	"github.com/postgres/postgres-sub049/datum"
)

const btreeDegree = 16

// Tuplesort orders rows by a list of keys.
// Rows are added with PutTuple (or PutDatum for a
// single-column sort), sorted with PerformSort and
// read back with GetTuple (or GetDatum).
//
// A Tuplesort is not safe for concurrent use.
type Tuplesort struct {
	keys   []Key
	tree   *btree.BTree
	seq    uint64
	bound  int
	rows   [][]datum.NullableDatum
	pos    int
	done   bool
	err    error
}

type sortItem struct {
	ts  *Tuplesort
	row []datum.NullableDatum
	seq uint64
}

func (s *sortItem) Less(than btree.Item) bool {
	o := than.(*sortItem)
	c := s.ts.compareRows(s.row, o.row)
	if c != 0 {
		return c < 0
	}
	return s.seq < o.seq
}

// NewTuplesort returns a sort over rows ordered
// by keys. Keys are compared in order.
func NewTuplesort(keys []Key) *Tuplesort {
	for i := range keys {
		if keys[i].Compare == nil {
			panic(fmt.Sprintf("sorting: key %d has no comparison function", i))
		}
	}
	return &Tuplesort{
		keys: keys,
		tree: btree.New(btreeDegree),
	}
}

// NewDatumSort returns a sort over single values.
func NewDatumSort(cmp CompareFunc, dir Direction, nulls NullsOrder) *Tuplesort {
	return NewTuplesort([]Key{{Col: 0, Compare: cmp, Direction: dir, Nulls: nulls}})
}

func (ts *Tuplesort) compareRows(a, b []datum.NullableDatum) int {
	if ts.err != nil {
		return 0
	}
	for i := range ts.keys {
		k := &ts.keys[i]
		c, err := k.compare(a[k.Col], b[k.Col])
		if err != nil {
			ts.err = err
			return 0
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// Compare compares two rows under the sort keys.
// It is used to detect duplicates when reading
// back a DISTINCT input.
func (ts *Tuplesort) Compare(a, b []datum.NullableDatum) (int, error) {
	for i := range ts.keys {
		k := &ts.keys[i]
		c, err := k.compare(a[k.Col], b[k.Col])
		if err != nil || c != 0 {
			return c, err
		}
	}
	return 0, nil
}

// SetBound limits the output to the first n rows.
// A bound of zero or less removes the limit.
func (ts *Tuplesort) SetBound(n int) {
	ts.bound = n
	ts.trim()
}

func (ts *Tuplesort) trim() {
	for ts.bound > 0 && ts.tree.Len() > ts.bound {
		ts.tree.DeleteMax()
	}
}

// PutTuple adds a copy of row.
func (ts *Tuplesort) PutTuple(row []datum.NullableDatum) error {
	if ts.done {
		return fmt.Errorf("sorting: PutTuple after PerformSort")
	}
	if ts.err != nil {
		return ts.err
	}
	for i := range ts.keys {
		if ts.keys[i].Col >= len(row) {
			return fmt.Errorf("sorting: key column %d out of range for row of %d columns", ts.keys[i].Col, len(row))
		}
	}
	cp := append([]datum.NullableDatum(nil), row...)
	ts.seq++
	ts.tree.ReplaceOrInsert(&sortItem{ts: ts, row: cp, seq: ts.seq})
	ts.trim()
	return ts.err
}

// PutDatum adds a single value.
func (ts *Tuplesort) PutDatum(v datum.Datum, isnull bool) error {
	return ts.PutTuple([]datum.NullableDatum{{Value: v, IsNull: isnull}})
}

// Len returns the number of rows held.
func (ts *Tuplesort) Len() int {
	if ts.done {
		return len(ts.rows)
	}
	return ts.tree.Len()
}

// PerformSort finishes input. It returns the
// first error raised by a comparison function.
func (ts *Tuplesort) PerformSort() error {
	if ts.err != nil {
		return ts.err
	}
	ts.rows = ts.rows[:0]
	ts.tree.Ascend(func(i btree.Item) bool {
		ts.rows = append(ts.rows, i.(*sortItem).row)
		return true
	})
	ts.tree.Clear(false)
	ts.pos = 0
	ts.done = true
	return nil
}

// GetTuple returns the next row in sorted order,
// or false once the rows are exhausted.
func (ts *Tuplesort) GetTuple() ([]datum.NullableDatum, bool) {
	if !ts.done || ts.pos >= len(ts.rows) {
		return nil, false
	}
	r := ts.rows[ts.pos]
	ts.pos++
	return r, true
}

// GetDatum returns the first column of the next row.
func (ts *Tuplesort) GetDatum() (v datum.Datum, isnull bool, ok bool) {
	r, ok := ts.GetTuple()
	if !ok {
		return datum.Null, false, false
	}
	return r[0].Value, r[0].IsNull, true
}

// Rescan restarts reading from the first row.
func (ts *Tuplesort) Rescan() { ts.pos = 0 }

// Reset discards all rows so the sort can be reused.
func (ts *Tuplesort) Reset() {
	ts.tree.Clear(false)
	ts.rows = nil
	ts.pos = 0
	ts.seq = 0
	ts.done = false
	ts.err = nil
}
