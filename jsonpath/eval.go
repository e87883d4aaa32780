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

package jsonpath

import (
	"encoding/json"
	"strconv"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/postgres/postgres-sub049/pgerr"
)

// Vars holds the values of PASSING variables.
type Vars map[string]any

// Query returns the items selected by p from doc.
// Structural errors are reported only in strict
// mode; lax mode skips what it cannot select.
func (p *Path) Query(doc any, vars Vars) ([]any, error) {
	root := doc
	if p.Var != "" {
		v, ok := vars[p.Var]
		if !ok {
			return nil, pgerr.Newf(pgerr.CodeUndefinedObject, "could not find jsonpath variable %q", p.Var)
		}
		root = v
	}
	items := []any{root}
	for i := range p.accs {
		var next []any
		for _, it := range items {
			var err error
			next, err = p.apply(&p.accs[i], it, next)
			if err != nil {
				return nil, err
			}
		}
		items = next
	}
	return items, nil
}

// Exists reports whether p selects any item.
func (p *Path) Exists(doc any, vars Vars) (bool, error) {
	items, err := p.Query(doc, vars)
	return len(items) > 0, err
}

func (p *Path) apply(a *accessor, it any, out []any) ([]any, error) {
	switch a.kind {
	case accKey:
		switch x := it.(type) {
		case map[string]any:
			v, ok := x[a.key]
			if ok {
				return append(out, v), nil
			}
			if p.Strict {
				return out, pgerr.Newf(pgerr.CodeSQLJSONMemberNotFound, "JSON object does not contain key %q", a.key)
			}
			return out, nil
		case []any:
			if !p.Strict {
				for _, e := range x {
					var err error
					if out, err = p.apply(a, e, out); err != nil {
						return out, err
					}
				}
				return out, nil
			}
		}
		if p.Strict {
			return out, pgerr.Newf(pgerr.CodeSQLJSONObjectNotFound, "jsonpath member accessor can only be applied to an object")
		}
		return out, nil
	case accAnyKey:
		switch x := it.(type) {
		case map[string]any:
			keys := maps.Keys(x)
			slices.Sort(keys)
			for _, k := range keys {
				out = append(out, x[k])
			}
			return out, nil
		case []any:
			if !p.Strict {
				for _, e := range x {
					var err error
					if out, err = p.apply(a, e, out); err != nil {
						return out, err
					}
				}
				return out, nil
			}
		}
		if p.Strict {
			return out, pgerr.Newf(pgerr.CodeSQLJSONObjectNotFound, "jsonpath wildcard member accessor can only be applied to an object")
		}
		return out, nil
	case accAnyIndex:
		if x, ok := it.([]any); ok {
			return append(out, x...), nil
		}
		if p.Strict {
			return out, pgerr.Newf(pgerr.CodeSQLJSONArrayNotFound, "jsonpath wildcard array accessor can only be applied to an array")
		}
		return append(out, it), nil
	case accIndex:
		arr, ok := it.([]any)
		if !ok {
			if p.Strict {
				return out, pgerr.Newf(pgerr.CodeSQLJSONArrayNotFound, "jsonpath array accessor can only be applied to an array")
			}
			// lax mode wraps a non-array
			arr = []any{it}
		}
		last := len(arr) - 1
		for _, s := range a.subs {
			from := s.from.resolve(last)
			to := from
			if s.isRange {
				to = s.to.resolve(last)
			}
			if from < 0 || to > last || from > to {
				if p.Strict {
					return out, pgerr.Newf(pgerr.CodeInvalidSQLJSONSubscript, "jsonpath array subscript is out of bounds")
				}
				from = max(from, 0)
				to = min(to, last)
			}
			for i := from; i <= to; i++ {
				out = append(out, arr[i])
			}
		}
		return out, nil
	case accMethod:
		switch a.key {
		case "size":
			if x, ok := it.([]any); ok {
				return append(out, json.Number(strconv.Itoa(len(x)))), nil
			}
			if p.Strict {
				return out, pgerr.Newf(pgerr.CodeSQLJSONArrayNotFound, "jsonpath item method .size() can only be applied to an array")
			}
			return append(out, json.Number("1")), nil
		case "type":
			return append(out, typeName(it)), nil
		}
	}
	return out, pgerr.Invariant("jsonpath: unexpected accessor %d", a.kind)
}

func (x index) resolve(last int) int {
	if x.last {
		return last + x.n
	}
	return x.n
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return "unknown"
}
