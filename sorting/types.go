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
	"github.com/postgres/postgres-sub049/datum"
)

// Direction encodes a sorting direction of column (SQL: ASC/DESC)
type Direction int

const (
	Ascending  Direction = 1  // Sort ascending
	Descending Direction = -1 // Sort descending
)

// NullsOrder encodes order of null values (SQL: NULL FIRST/NULLS LAST)
type NullsOrder int

const (
	NullsFirst NullsOrder = iota // Null values goes first
	NullsLast                    // Null values goes last
)

// CompareFunc is a three-way comparison of two
// non-null values.
type CompareFunc func(a, b datum.Datum) (int, error)

// Key is one sort column.
type Key struct {
	Col       int // 0-based column of the row
	Compare   CompareFunc
	Direction Direction
	Nulls     NullsOrder
}

// compare orders two column values under k.
func (k *Key) compare(a, b datum.NullableDatum) (int, error) {
	switch {
	case a.IsNull && b.IsNull:
		return 0, nil
	case a.IsNull:
		if k.Nulls == NullsFirst {
			return -1, nil
		}
		return 1, nil
	case b.IsNull:
		if k.Nulls == NullsFirst {
			return 1, nil
		}
		return -1, nil
	}
	c, err := k.Compare(a.Value, b.Value)
	if err != nil {
		return 0, err
	}
	if k.Direction == Descending {
		c = -c
	}
	return c, nil
}
