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


/*
Package sorting implements the sorts used by
aggregate evaluation: ORDER BY within an aggregate
call and DISTINCT elimination.

Overview

A Tuplesort accumulates rows (or single datums)
and returns them in the order given by a list of
sort keys. Each key names a column, a three-way
comparison function, a direction ('ASC' or 'DESC')
and the placement of nulls ('NULLS FIRST' or
'NULLS LAST'). Null placement does not depend on
the direction.

Rows that compare equal on every key are returned
in insertion order, so the sort is stable.

Design

Rows are kept in a B-tree ordered by the sort keys
with the insertion sequence number as the final
tie-breaker. A bounded sort (SetBound) keeps only
the first n rows by discarding the greatest row
whenever the tree grows past the bound.
*/
package sorting
